package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tcn-network/banshare-api/internal/identity"
	"github.com/tcn-network/banshare-api/internal/testsupport"
)

func newPermissions(t *testing.T) *PermissionService {
	t.Helper()
	db := testsupport.NewDB(t)
	testsupport.Network(t, db)
	return NewPermissionService(db, testsupport.HubGuild)
}

func user(id string) *identity.Principal {
	return &identity.Principal{ID: id}
}

func TestRoleResolution(t *testing.T) {
	perms := newPermissions(t)
	ctx := context.Background()

	role, err := perms.Role(ctx, testsupport.OwnerA, testsupport.GuildA)
	require.NoError(t, err)
	assert.True(t, role.Owner)
	assert.True(t, role.Banshares())

	role, err = perms.Role(ctx, testsupport.AdvisorA, testsupport.GuildA)
	require.NoError(t, err)
	assert.True(t, role.Advisor)
	assert.True(t, role.Banshares())

	role, err = perms.Role(ctx, testsupport.StaffA, testsupport.GuildA)
	require.NoError(t, err)
	assert.True(t, role.Staff)
	assert.True(t, role.HasRole(BanshareRole))
	assert.True(t, role.Banshares())

	role, err = perms.Role(ctx, testsupport.PlainStaff, testsupport.GuildB)
	require.NoError(t, err)
	assert.True(t, role.Staff)
	assert.False(t, role.Banshares())

	role, err = perms.Role(ctx, testsupport.StaffA, testsupport.GuildB)
	require.NoError(t, err)
	assert.Equal(t, GuildRole{}, role)
}

func TestViewerFlags(t *testing.T) {
	perms := newPermissions(t)
	ctx := context.Background()

	v, err := perms.Viewer(ctx, user(testsupport.ObserverID))
	require.NoError(t, err)
	assert.True(t, v.Observer)
	assert.True(t, v.Council, "owns the hub")

	v, err = perms.Viewer(ctx, user(testsupport.StaffA))
	require.NoError(t, err)
	assert.False(t, v.Observer)
	assert.False(t, v.Council)
	assert.True(t, v.BanshareStaffer)

	v, err = perms.Viewer(ctx, user(testsupport.PlainStaff))
	require.NoError(t, err)
	assert.False(t, v.BanshareStaffer)
}

func TestCanSubmit(t *testing.T) {
	perms := newPermissions(t)
	ctx := context.Background()

	assert.NoError(t, perms.CanSubmit(ctx, user(testsupport.StaffA), testsupport.GuildA))
	assert.NoError(t, perms.CanSubmit(ctx, user(testsupport.AdvisorA), testsupport.GuildA))
	assert.ErrorIs(t, perms.CanSubmit(ctx, user(testsupport.StaffA), testsupport.GuildB), ErrForbidden)
	assert.ErrorIs(t, perms.CanSubmit(ctx, user(testsupport.PlainStaff), testsupport.GuildB), ErrForbidden)
}

func TestCanExecute(t *testing.T) {
	perms := newPermissions(t)
	ctx := context.Background()

	assert.NoError(t, perms.CanExecute(ctx, user(testsupport.OwnerA), testsupport.GuildA))
	assert.NoError(t, perms.CanExecute(ctx, user(testsupport.StaffA), testsupport.GuildA))
	assert.NoError(t, perms.CanExecute(ctx, user(testsupport.ObserverID), testsupport.GuildB))
	assert.ErrorIs(t, perms.CanExecute(ctx, user(testsupport.OwnerB), testsupport.GuildA), ErrForbidden)

	// The hub is managed by observers only, even for internal callers.
	assert.NoError(t, perms.CanExecute(ctx, user(testsupport.ObserverID), testsupport.HubGuild))
	assert.ErrorIs(t, perms.CanExecute(ctx, user(testsupport.OwnerA), testsupport.HubGuild), ErrForbidden)
	assert.ErrorIs(t, perms.CanExecute(ctx, &identity.Principal{ID: testsupport.OwnerA, Internal: true}, testsupport.HubGuild), ErrForbidden)

	assert.NoError(t, perms.CanExecute(ctx, &identity.Principal{ID: testsupport.Outsider, Internal: true}, testsupport.GuildB))

	err := perms.CanExecute(ctx, user(testsupport.OwnerA), "800000000000000099")
	apiErr := requireCode(t, err, CodeMissingGuild)
	assert.Equal(t, "No guild exists with ID 800000000000000099.", apiErr.Message)

	err = perms.CanExecute(ctx, &identity.Principal{ID: testsupport.OwnerA, Internal: true}, "800000000000000099")
	apiErr = requireCode(t, err, CodeMissingGuild)
	assert.Equal(t, "This guild is not in the TCN.", apiErr.Message)
}

func TestCanManageSettings(t *testing.T) {
	perms := newPermissions(t)
	ctx := context.Background()

	assert.NoError(t, perms.CanManageSettings(ctx, user(testsupport.OwnerA), testsupport.GuildA))
	assert.NoError(t, perms.CanManageSettings(ctx, user(testsupport.ObserverID), testsupport.GuildA))
	assert.ErrorIs(t, perms.CanManageSettings(ctx, user(testsupport.AdvisorA), testsupport.GuildA), ErrForbidden)
	assert.ErrorIs(t, perms.CanManageSettings(ctx, user(testsupport.StaffA), testsupport.GuildA), ErrForbidden)
	assert.ErrorIs(t, perms.CanManageSettings(ctx, &identity.Principal{ID: testsupport.StaffA, Internal: true}, testsupport.GuildA), ErrForbidden)
	assert.ErrorIs(t, perms.CanManageSettings(ctx, user(testsupport.OwnerA), testsupport.HubGuild), ErrForbidden)
}

func TestCouncilAndObserverGates(t *testing.T) {
	perms := newPermissions(t)
	ctx := context.Background()

	assert.NoError(t, perms.RequireObserver(ctx, user(testsupport.ObserverID)))
	assert.ErrorIs(t, perms.RequireObserver(ctx, user(testsupport.OwnerA)), ErrForbidden)

	assert.NoError(t, perms.RequireCouncil(ctx, user(testsupport.AdvisorA)))
	assert.NoError(t, perms.RequireCouncil(ctx, user(testsupport.OwnerB)))
	assert.ErrorIs(t, perms.RequireCouncil(ctx, user(testsupport.StaffA)), ErrForbidden)

	assert.NoError(t, perms.CanReportAbuse(ctx, user(testsupport.StaffA)))
	assert.NoError(t, perms.CanReportAbuse(ctx, user(testsupport.OwnerB)))
	assert.NoError(t, perms.CanReportAbuse(ctx, &identity.Principal{ID: testsupport.Outsider, Internal: true}))
	assert.ErrorIs(t, perms.CanReportAbuse(ctx, user(testsupport.PlainStaff)), ErrForbidden)
	assert.ErrorIs(t, perms.CanReportAbuse(ctx, user(testsupport.Outsider)), ErrForbidden)

	name, err := perms.GuildName(ctx, testsupport.GuildB)
	require.NoError(t, err)
	assert.Equal(t, "Guild B", name)
}
