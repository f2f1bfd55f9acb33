package logging

import (
	"context"
	"log/slog"
	"time"

	"github.com/tcn-network/banshare-api/internal/models"
	"gorm.io/gorm"
)

// RunCleanup deletes system_logs older than retention once a day until ctx is
// done.
func RunCleanup(ctx context.Context, db *gorm.DB, retention time.Duration) error {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			n, err := Cleanup(ctx, db, time.Now().Add(-retention))
			if err != nil {
				slog.Warn("log cleanup failed", "error", err)
			} else if n > 0 {
				slog.Info("log cleanup completed", "deleted", n)
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// Cleanup deletes system_logs recorded before cutoff.
func Cleanup(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	result := db.WithContext(ctx).Where("timestamp < ?", cutoff).Delete(&models.SystemLog{})
	return result.RowsAffected, result.Error
}
