package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/tcn-network/banshare-api/internal/identity"
	"github.com/tcn-network/banshare-api/internal/models"
	"gorm.io/gorm"
)

// BanshareRole is the guild staff role that grants banshare permissions.
const BanshareRole = "banshares"

// GuildRole is what a user is in one guild.
type GuildRole struct {
	Owner   bool
	Advisor bool
	Staff   bool
	Roles   []string
}

func (r GuildRole) HasRole(role string) bool {
	for _, have := range r.Roles {
		if have == role {
			return true
		}
	}
	return false
}

// Banshares reports whether the user may submit and execute banshares for the
// guild.
func (r GuildRole) Banshares() bool {
	return r.Owner || r.Advisor || (r.Staff && r.HasRole(BanshareRole))
}

// Viewer summarizes who is reading a banshare.
type Viewer struct {
	ID              string
	Internal        bool
	Observer        bool
	Council         bool
	BanshareStaffer bool
}

type PermissionService struct {
	db       *gorm.DB
	hubGuild string
}

func NewPermissionService(db *gorm.DB, hubGuild string) *PermissionService {
	return &PermissionService{db: db, hubGuild: hubGuild}
}

func (s *PermissionService) IsObserver(ctx context.Context, user string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND observer = ?", user, true).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check observer: %w", err)
	}
	return count > 0, nil
}

// IsCouncil reports whether the user owns or advises any guild.
func (s *PermissionService) IsCouncil(ctx context.Context, user string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Guild{}).
		Where("owner = ? OR advisor = ?", user, user).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check council: %w", err)
	}
	return count > 0, nil
}

// HasBanshareRoleAnywhere reports whether the user is staff with the banshares
// role in at least one guild.
func (s *PermissionService) HasBanshareRoleAnywhere(ctx context.Context, user string) (bool, error) {
	var staff []models.GuildStaff
	if err := s.db.WithContext(ctx).Where("user_id = ?", user).Find(&staff).Error; err != nil {
		return false, fmt.Errorf("failed to load staff roles: %w", err)
	}
	for _, st := range staff {
		if (GuildRole{Staff: true, Roles: st.Roles}).HasRole(BanshareRole) {
			return true, nil
		}
	}
	return false, nil
}

// Role resolves the user's position in one guild.
func (s *PermissionService) Role(ctx context.Context, user, guild string) (GuildRole, error) {
	var role GuildRole

	var g models.Guild
	err := s.db.WithContext(ctx).Where("id = ?", guild).First(&g).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return role, fmt.Errorf("failed to load guild: %w", err)
	}
	if err == nil {
		role.Owner = g.Owner == user
		role.Advisor = g.Advisor != nil && *g.Advisor == user
	}

	var staff models.GuildStaff
	err = s.db.WithContext(ctx).Where("guild = ? AND user_id = ?", guild, user).First(&staff).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return role, fmt.Errorf("failed to load staff roles: %w", err)
	}
	if err == nil {
		role.Staff = true
		role.Roles = staff.Roles
	}
	return role, nil
}

func (s *PermissionService) guild(ctx context.Context, p *identity.Principal, guild string) (*models.Guild, error) {
	var g models.Guild
	err := s.db.WithContext(ctx).Where("id = ?", guild).First(&g).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		message := fmt.Sprintf("No guild exists with ID %s.", guild)
		if p != nil && p.Internal {
			message = "This guild is not in the TCN."
		}
		return nil, newError(ErrNotFound, CodeMissingGuild, message)
	}
	if err != nil {
		return nil, internal("Failed to load guild.", err)
	}
	return &g, nil
}

// GuildName returns the display name of a member guild.
func (s *PermissionService) GuildName(ctx context.Context, guild string) (string, error) {
	g, err := s.guild(ctx, nil, guild)
	if err != nil {
		return "", err
	}
	return g.Name, nil
}

// Viewer loads the flags that decide banshare visibility.
func (s *PermissionService) Viewer(ctx context.Context, p *identity.Principal) (Viewer, error) {
	v := Viewer{ID: p.ID, Internal: p.Internal}
	var err error
	if v.Observer, err = s.IsObserver(ctx, p.ID); err != nil {
		return v, internal("Failed to check permissions.", err)
	}
	if v.Council, err = s.IsCouncil(ctx, p.ID); err != nil {
		return v, internal("Failed to check permissions.", err)
	}
	if v.BanshareStaffer, err = s.HasBanshareRoleAnywhere(ctx, p.ID); err != nil {
		return v, internal("Failed to check permissions.", err)
	}
	return v, nil
}

func (s *PermissionService) RequireObserver(ctx context.Context, p *identity.Principal) error {
	ok, err := s.IsObserver(ctx, p.ID)
	if err != nil {
		return internal("Failed to check permissions.", err)
	}
	if !ok {
		if p.Internal {
			return forbidden("This operation is restricted to observers.")
		}
		return forbidden("You must be an observer to access this route.")
	}
	return nil
}

func (s *PermissionService) RequireCouncil(ctx context.Context, p *identity.Principal) error {
	ok, err := s.IsCouncil(ctx, p.ID)
	if err != nil {
		return internal("Failed to check permissions.", err)
	}
	if !ok {
		if p.Internal {
			return forbidden("This operation is restricted to council members.")
		}
		return forbidden("You must be a council member to access this route.")
	}
	return nil
}

// CanSubmit checks that the caller may file banshares on behalf of guild.
func (s *PermissionService) CanSubmit(ctx context.Context, p *identity.Principal, guild string) error {
	role, err := s.Role(ctx, p.ID, guild)
	if err != nil {
		return internal("Failed to check permissions.", err)
	}
	if !role.Banshares() {
		return forbidden("You do not have permissions to submit banshares from that server.")
	}
	return nil
}

// CanExecute checks that the caller may enforce banshares or read banshare
// settings in guild. The hub guild is managed by observers only.
func (s *PermissionService) CanExecute(ctx context.Context, p *identity.Principal, guild string) error {
	if guild == s.hubGuild {
		return s.RequireObserver(ctx, p)
	}
	if _, err := s.guild(ctx, p, guild); err != nil {
		return err
	}
	if p.Internal {
		return nil
	}

	observer, err := s.IsObserver(ctx, p.ID)
	if err != nil {
		return internal("Failed to check permissions.", err)
	}
	if observer {
		return nil
	}

	role, err := s.Role(ctx, p.ID, guild)
	if err != nil {
		return internal("Failed to check permissions.", err)
	}
	if !role.Banshares() {
		return forbidden("You must be the owner or advisor of this guild or be a staff member and have the banshares role to access this route.")
	}
	return nil
}

// CanManageSettings checks that the caller may change guild's banshare
// settings: observers and the guild owner.
func (s *PermissionService) CanManageSettings(ctx context.Context, p *identity.Principal, guild string) error {
	if guild == s.hubGuild {
		return s.RequireObserver(ctx, p)
	}
	g, err := s.guild(ctx, p, guild)
	if err != nil {
		return err
	}

	observer, err := s.IsObserver(ctx, p.ID)
	if err != nil {
		return internal("Failed to check permissions.", err)
	}
	if observer || g.Owner == p.ID {
		return nil
	}
	if p.Internal {
		return forbidden("This operation is restricted to the owner of this guild.")
	}
	return forbidden("You must be the owner of this guild to access this route.")
}

// CanReportAbuse checks that the caller may report a banshare as abusive or
// mistaken.
func (s *PermissionService) CanReportAbuse(ctx context.Context, p *identity.Principal) error {
	if p.Internal {
		return nil
	}
	council, err := s.IsCouncil(ctx, p.ID)
	if err != nil {
		return internal("Failed to check permissions.", err)
	}
	if council {
		return nil
	}
	staffer, err := s.HasBanshareRoleAnywhere(ctx, p.ID)
	if err != nil {
		return internal("Failed to check permissions.", err)
	}
	if !staffer {
		return forbidden("You must be a council member or a staff with the banshares role to access this route.")
	}
	return nil
}
