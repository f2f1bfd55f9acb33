package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tcn-network/banshare-api/internal/models"
	"github.com/tcn-network/banshare-api/internal/store"
	"github.com/tcn-network/banshare-api/internal/testsupport"
)

func TestReminderSweep(t *testing.T) {
	db := testsupport.NewDB(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	banshares := store.NewBanshareStore(db)
	for _, b := range []*models.Banshare{
		{Message: "1", Urgent: true, Reminded: now.Add(-3 * time.Hour)},
		{Message: "2", Reminded: now.Add(-3 * time.Hour)},
	} {
		b.Status = models.BanshareStatusPending
		b.Severity = models.SeverityP1
		b.IDs = "123456789012345678"
		b.Reason = "raid"
		b.Evidence = "logs"
		b.Server = testsupport.GuildA
		b.Author = testsupport.StaffA
		b.Created = b.Reminded
		require.NoError(t, banshares.Insert(ctx, b))
	}

	bot := newFakeBot()
	svc := NewReminderService(banshares, bot, ReminderOptions{})
	svc.now = func() time.Time { return now }

	n, err := svc.Sweep(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.Equal(t, 1, bot.reminders)

	n, err = svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 1, bot.reminders, "nothing overdue, bot is not called")

	svc.now = func() time.Time { return now.Add(4 * time.Hour) }
	bot.remindErr = errors.New("bot down")
	n, err = svc.Sweep(ctx)
	require.Error(t, err)
	assert.EqualValues(t, 2, n, "both are overdue four hours later")
}

func TestReminderRunStopsOnCancel(t *testing.T) {
	db := testsupport.NewDB(t)
	svc := NewReminderService(store.NewBanshareStore(db), newFakeBot(), ReminderOptions{Interval: time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("reminder loop did not stop")
	}
}
