package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/tcn-network/banshare-api/internal/dto"
	"github.com/tcn-network/banshare-api/internal/models"
	"github.com/tcn-network/banshare-api/internal/store"
)

// ResolveSettings fills every field the guild never set with its default.
func ResolveSettings(guild string, stored *models.BanshareSettings) dto.BanshareSettings {
	resolved := dto.BanshareSettings{
		Guild: guild,
		Logs:  []string{},
	}
	if stored == nil {
		return resolved
	}

	resolved.Channel = stored.Channel
	for _, l := range stored.Logs {
		resolved.Logs = append(resolved.Logs, l.Channel)
	}
	if stored.BlockDMs != nil {
		resolved.BlockDMs = *stored.BlockDMs
	}
	if stored.NoButton != nil {
		resolved.NoButton = *stored.NoButton
	}
	if stored.Daedalus != nil {
		resolved.Daedalus = *stored.Daedalus
	}
	if stored.Autoban != nil {
		resolved.Autoban = *stored.Autoban
	}
	return resolved
}

// SettingsStore is the persistence SettingsService needs.
type SettingsStore interface {
	Get(ctx context.Context, guild string) (*models.BanshareSettings, error)
	List(ctx context.Context) ([]models.BanshareSettings, error)
	Upsert(ctx context.Context, guild string, fields map[string]interface{}) (before, after *models.BanshareSettings, err error)
	NoButton(ctx context.Context, guild string) (bool, error)
	AddLogChannel(ctx context.Context, guild, channel string) error
	RemoveLogChannel(ctx context.Context, guild, channel string) error
}

// ChannelValidator checks that a channel may receive banshares.
type ChannelValidator interface {
	ValidateChannel(ctx context.Context, guild, channel string) error
}

type SettingsService struct {
	store     SettingsStore
	validator ChannelValidator
	audit     AuditSink
}

func NewSettingsService(settings SettingsStore, validator ChannelValidator, audit AuditSink) *SettingsService {
	return &SettingsService{store: settings, validator: validator, audit: audit}
}

func (s *SettingsService) Get(ctx context.Context, guild string) (dto.BanshareSettings, error) {
	stored, err := s.store.Get(ctx, guild)
	if err != nil {
		return dto.BanshareSettings{}, internal("An error occurred loading banshare settings.", err)
	}
	return ResolveSettings(guild, stored), nil
}

// List resolves every guild that stored settings.
func (s *SettingsService) List(ctx context.Context) ([]dto.BanshareSettings, error) {
	stored, err := s.store.List(ctx)
	if err != nil {
		return nil, internal("An error occurred loading banshare settings.", err)
	}
	out := make([]dto.BanshareSettings, 0, len(stored))
	for i := range stored {
		out = append(out, ResolveSettings(stored[i].Guild, &stored[i]))
	}
	return out, nil
}

// Update applies a partial change. Channels are checked with the bot unless the
// caller is internal, since the bot only sends channels it already checked.
func (s *SettingsService) Update(ctx context.Context, actor string, internalCaller bool, guild string, req dto.UpdateBanshareSettingsRequest) (dto.BanshareSettings, error) {
	fields := map[string]interface{}{}

	if req.Channel.Set {
		if req.Channel.Value != nil && *req.Channel.Value != "" {
			if err := s.checkChannel(ctx, internalCaller, guild, *req.Channel.Value); err != nil {
				return dto.BanshareSettings{}, err
			}
			fields["channel"] = *req.Channel.Value
		} else {
			fields["channel"] = nil
		}
	}
	if req.BlockDMs != nil {
		fields["blockdms"] = *req.BlockDMs
	}
	if req.NoButton != nil {
		fields["nobutton"] = *req.NoButton
	}
	if req.Daedalus != nil {
		fields["daedalus"] = *req.Daedalus
	}
	if req.Autoban != nil {
		if *req.Autoban < 0 || *req.Autoban > 255 {
			return dto.BanshareSettings{}, invalid("Autoban must be an integer between 0 and 255.")
		}
		fields["autoban"] = uint8(*req.Autoban)
	}

	before, after, err := s.store.Upsert(ctx, guild, fields)
	if err != nil {
		return dto.BanshareSettings{}, internal("An error occurred saving your settings.", err)
	}

	old, updated := ResolveSettings(guild, before), ResolveSettings(guild, after)
	s.audit.Record(ctx, AuditEntry{
		Actor:   actor,
		Action:  AuditBanshareSettings,
		Subject: guild,
		Before:  old,
		After:   updated,
	})
	slog.Info("banshare settings updated", "action", AuditBanshareSettings, "guild", guild, "actor", actor, "fields", len(fields))
	return updated, nil
}

func (s *SettingsService) Logs(ctx context.Context, guild string) ([]string, error) {
	resolved, err := s.Get(ctx, guild)
	if err != nil {
		return nil, err
	}
	return resolved.Logs, nil
}

func (s *SettingsService) AddLog(ctx context.Context, actor string, internalCaller bool, guild, channel string) error {
	if err := s.checkChannel(ctx, internalCaller, guild, channel); err != nil {
		return err
	}

	err := s.store.AddLogChannel(ctx, guild, channel)
	switch {
	case errors.Is(err, store.ErrDuplicate):
		return newError(ErrDuplicate, CodeDuplicate, "That channel is already a log channel in this guild.")
	case errors.Is(err, store.ErrLimitReached):
		return newError(ErrLimitReached, CodeLimitReached, "Each guild may only have 10 log channels.")
	case err != nil:
		return internal("An error occurred saving your settings.", err)
	}

	s.audit.Record(ctx, AuditEntry{
		Actor:   actor,
		Action:  AuditBanshareLogsAdd,
		Subject: guild,
		Data:    map[string]interface{}{"guild": guild, "channel": channel},
	})
	return nil
}

func (s *SettingsService) RemoveLog(ctx context.Context, actor, guild, channel string) error {
	err := s.store.RemoveLogChannel(ctx, guild, channel)
	if errors.Is(err, store.ErrNotFound) {
		return newError(ErrNotFound, CodeNotFound, "That channel is not a log channel in this guild.")
	}
	if err != nil {
		return internal("An error occurred saving your settings.", err)
	}

	s.audit.Record(ctx, AuditEntry{
		Actor:   actor,
		Action:  AuditBanshareLogsRemove,
		Subject: guild,
		Data:    map[string]interface{}{"guild": guild, "channel": channel},
	})
	return nil
}

func (s *SettingsService) checkChannel(ctx context.Context, internalCaller bool, guild, channel string) error {
	if internalCaller || channel == "" {
		return nil
	}
	return gatewayError(s.validator.ValidateChannel(ctx, guild, channel))
}
