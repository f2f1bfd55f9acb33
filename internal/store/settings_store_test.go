package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tcn-network/banshare-api/internal/models"
	"github.com/tcn-network/banshare-api/internal/testsupport"
)

func TestSettingsGetAbsent(t *testing.T) {
	s := NewSettingsStore(testsupport.NewDB(t))

	settings, err := s.Get(context.Background(), testsupport.GuildA)
	require.NoError(t, err)
	assert.Nil(t, settings)

	noButton, err := s.NoButton(context.Background(), testsupport.GuildA)
	require.NoError(t, err)
	assert.False(t, noButton)
}

func TestSettingsUpsertTouchesOnlySubmittedFields(t *testing.T) {
	ctx := context.Background()
	s := NewSettingsStore(testsupport.NewDB(t))

	before, after, err := s.Upsert(ctx, testsupport.GuildA, map[string]interface{}{"blockdms": true})
	require.NoError(t, err)
	assert.Nil(t, before)
	require.NotNil(t, after)
	require.NotNil(t, after.BlockDMs)
	assert.True(t, *after.BlockDMs)
	assert.Nil(t, after.NoButton)

	before, after, err = s.Upsert(ctx, testsupport.GuildA, map[string]interface{}{"nobutton": true, "autoban": uint8(0x88)})
	require.NoError(t, err)
	require.NotNil(t, before)
	assert.Nil(t, before.NoButton)
	require.NotNil(t, after.BlockDMs)
	assert.True(t, *after.BlockDMs, "earlier field survives")
	require.NotNil(t, after.Autoban)
	assert.Equal(t, uint8(0x88), *after.Autoban)

	noButton, err := s.NoButton(ctx, testsupport.GuildA)
	require.NoError(t, err)
	assert.True(t, noButton)

	_, _, err = s.Upsert(ctx, testsupport.GuildB, nil)
	require.NoError(t, err)

	all, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, testsupport.GuildA, all[0].Guild)
	assert.Equal(t, testsupport.GuildB, all[1].Guild)
}

func TestSettingsLogChannels(t *testing.T) {
	ctx := context.Background()
	s := NewSettingsStore(testsupport.NewDB(t))

	require.NoError(t, s.AddLogChannel(ctx, testsupport.GuildA, "100"))
	assert.ErrorIs(t, s.AddLogChannel(ctx, testsupport.GuildA, "100"), ErrDuplicate)

	for i := 1; i < models.MaxLogChannels; i++ {
		require.NoError(t, s.AddLogChannel(ctx, testsupport.GuildA, fmt.Sprintf("%d", 100+i)))
	}
	assert.ErrorIs(t, s.AddLogChannel(ctx, testsupport.GuildA, "999"), ErrLimitReached)

	settings, err := s.Get(ctx, testsupport.GuildA)
	require.NoError(t, err)
	assert.Len(t, settings.Logs, models.MaxLogChannels)
	assert.Equal(t, "100", settings.Logs[0].Channel)

	require.NoError(t, s.RemoveLogChannel(ctx, testsupport.GuildA, "100"))
	assert.ErrorIs(t, s.RemoveLogChannel(ctx, testsupport.GuildA, "100"), ErrNotFound)
	require.NoError(t, s.AddLogChannel(ctx, testsupport.GuildA, "999"))
}
