package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/tcn-network/banshare-api/internal/metrics"
)

type ReminderStore interface {
	MarkReminded(ctx context.Context, now, urgentBefore, normalBefore time.Time) (int64, error)
}

type Reminder interface {
	Remind(ctx context.Context) error
}

type ReminderOptions struct {
	Interval    time.Duration
	UrgentAfter time.Duration
	NormalAfter time.Duration
}

// ReminderService pings reviewers about banshares that stayed pending too long.
type ReminderService struct {
	store ReminderStore
	bot   Reminder
	opts  ReminderOptions
	now   func() time.Time
}

func NewReminderService(banshares ReminderStore, bot Reminder, opts ReminderOptions) *ReminderService {
	if opts.Interval <= 0 {
		opts.Interval = 10 * time.Minute
	}
	if opts.UrgentAfter <= 0 {
		opts.UrgentAfter = 2 * time.Hour
	}
	if opts.NormalAfter <= 0 {
		opts.NormalAfter = 6 * time.Hour
	}
	return &ReminderService{store: banshares, bot: bot, opts: opts, now: time.Now}
}

// Sweep marks overdue pending banshares as reminded and, if there were any,
// asks the bot to send the reminder. It returns how many were overdue.
func (s *ReminderService) Sweep(ctx context.Context) (int64, error) {
	now := s.now()
	n, err := s.store.MarkReminded(ctx, now, now.Add(-s.opts.UrgentAfter), now.Add(-s.opts.NormalAfter))
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}

	metrics.Reminders.Inc()
	if err := s.bot.Remind(ctx); err != nil {
		return n, err
	}
	return n, nil
}

// Run sweeps every interval until ctx is done.
func (s *ReminderService) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			n, err := s.Sweep(ctx)
			if err != nil {
				slog.Warn("banshare reminder sweep failed", "action", "banshares/remind", "overdue", n, "error", err)
			} else if n > 0 {
				slog.Info("banshare reminder sent", "action", "banshares/remind", "overdue", n)
			}
		case <-ctx.Done():
			return nil
		}
	}
}
