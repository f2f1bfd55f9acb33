// Package store is the persistence boundary for banshares and their per-guild
// settings. Callers never mutate rows directly: every state change goes
// through a guarded, conditional write whose success is reported back.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tcn-network/banshare-api/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrDuplicate    = errors.New("record already exists")
	ErrLimitReached = errors.New("limit reached")
)

// errGuardFailed aborts a transaction whose precondition no longer holds.
var errGuardFailed = errors.New("guard failed")

// Guard is the precondition of a conditional update. Status is always
// checked; Severity only when non-empty.
type Guard struct {
	Status   models.BanshareStatus
	Severity models.Severity
}

type BanshareStore struct {
	db *gorm.DB
}

func NewBanshareStore(db *gorm.DB) *BanshareStore {
	return &BanshareStore{db: db}
}

func (s *BanshareStore) Insert(ctx context.Context, b *models.Banshare) error {
	if err := s.db.WithContext(ctx).Create(b).Error; err != nil {
		return fmt.Errorf("failed to insert banshare: %w", err)
	}
	return nil
}

// Get loads a banshare with its crossposts, executors and reports.
func (s *BanshareStore) Get(ctx context.Context, message string) (*models.Banshare, error) {
	var b models.Banshare
	err := s.db.WithContext(ctx).
		Preload("Crossposts").
		Preload("Executors").
		Preload("Reports", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Where("message = ?", message).
		First(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get banshare: %w", err)
	}
	return &b, nil
}

func (s *BanshareStore) Exists(ctx context.Context, message string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Banshare{}).Where("message = ?", message).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// UpdateWhere applies fields only if the row still matches guard. It returns
// false without error when the guard did not match, which is how concurrent
// review actions lose the race.
func (s *BanshareStore) UpdateWhere(ctx context.Context, message string, guard Guard, fields map[string]interface{}) (bool, error) {
	query := s.db.WithContext(ctx).Model(&models.Banshare{}).
		Where("message = ? AND status = ?", message, guard.Status)
	if guard.Severity != "" {
		query = query.Where("severity = ?", guard.Severity)
	}

	result := query.Updates(fields)
	if result.Error != nil {
		return false, fmt.Errorf("failed to update banshare: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

// AddExecutor records enforcement in a guild. It succeeds only while the
// banshare is published and has no executor for that guild yet. Touching the
// banshare row first serializes the append with status transitions.
func (s *BanshareStore) AddExecutor(ctx context.Context, message string, executor models.BanshareExecutor) (bool, error) {
	executor.BanshareMessage = message

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		touched := tx.Model(&models.Banshare{}).
			Where("message = ? AND status = ?", message, models.BanshareStatusPublished).
			Update("updated_at", time.Now())
		if touched.Error != nil {
			return touched.Error
		}
		if touched.RowsAffected != 1 {
			return errGuardFailed
		}

		inserted := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&executor)
		if inserted.Error != nil {
			return inserted.Error
		}
		if inserted.RowsAffected != 1 {
			return errGuardFailed
		}
		return nil
	})

	if errors.Is(err, errGuardFailed) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to add executor: %w", err)
	}
	return true, nil
}

// RemoveExecutor reports whether an executor for guild was deleted.
func (s *BanshareStore) RemoveExecutor(ctx context.Context, message, guild string) (bool, error) {
	result := s.db.WithContext(ctx).
		Where("banshare = ? AND guild = ?", message, guild).
		Delete(&models.BanshareExecutor{})
	if result.Error != nil {
		return false, fmt.Errorf("failed to remove executor: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

// AddCrossposts appends entries, skipping guilds that already have one. It
// returns how many entries were actually stored.
func (s *BanshareStore) AddCrossposts(ctx context.Context, message string, entries []models.BanshareCrosspost) (int64, error) {
	seen := make(map[string]bool, len(entries))
	rows := make([]models.BanshareCrosspost, 0, len(entries))
	for _, e := range entries {
		if seen[e.Guild] {
			continue
		}
		seen[e.Guild] = true
		e.BanshareMessage = message
		rows = append(rows, e)
	}

	var added int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Banshare{}).Where("message = ?", message).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrNotFound
		}
		if len(rows) == 0 {
			return nil
		}

		result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows)
		added = result.RowsAffected
		return result.Error
	})
	if errors.Is(err, ErrNotFound) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to add crossposts: %w", err)
	}
	return added, nil
}

func (s *BanshareStore) Crossposts(ctx context.Context, message string) ([]models.BanshareCrosspost, error) {
	exists, err := s.Exists(ctx, message)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrNotFound
	}

	crossposts := []models.BanshareCrosspost{}
	if err := s.db.WithContext(ctx).Where("banshare = ?", message).Order("created_at ASC").Find(&crossposts).Error; err != nil {
		return nil, err
	}
	return crossposts, nil
}

func (s *BanshareStore) AddReport(ctx context.Context, message string, report models.BanshareReport) error {
	report.BanshareMessage = message

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Banshare{}).Where("message = ?", message).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrNotFound
		}
		return tx.Create(&report).Error
	})
	if errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to add report: %w", err)
	}
	return nil
}

// Pending returns the message IDs of all pending banshares, oldest first.
func (s *BanshareStore) Pending(ctx context.Context) ([]string, error) {
	messages := []string{}
	err := s.db.WithContext(ctx).Model(&models.Banshare{}).
		Where("status = ?", models.BanshareStatusPending).
		Order("created ASC").
		Pluck("message", &messages).Error
	return messages, err
}

// MarkReminded bumps the reminder timestamp of pending banshares whose last
// reminder is older than the threshold for their urgency.
func (s *BanshareStore) MarkReminded(ctx context.Context, now, urgentBefore, normalBefore time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Model(&models.Banshare{}).
		Where("status = ?", models.BanshareStatusPending).
		Where("(urgent = ? AND reminded < ?) OR (urgent = ? AND reminded < ?)", true, urgentBefore, false, normalBefore).
		Update("reminded", now)
	return result.RowsAffected, result.Error
}

// Archive moves a banshare and its children into deleted_banshares.
func (s *BanshareStore) Archive(ctx context.Context, message, deletedBy string, reason *string) (*models.Banshare, error) {
	var archived models.Banshare

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Preload("Crossposts").Preload("Executors").Preload("Reports").
			Where("message = ?", message).First(&archived).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		snapshot, err := json.Marshal(archived)
		if err != nil {
			return err
		}

		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&models.DeletedBanshare{
			Message:   message,
			Snapshot:  snapshot,
			DeletedBy: deletedBy,
			Reason:    reason,
			DeletedAt: time.Now(),
		}).Error; err != nil {
			return err
		}

		for _, child := range []interface{}{&models.BanshareCrosspost{}, &models.BanshareExecutor{}, &models.BanshareReport{}} {
			if err := tx.Where("banshare = ?", message).Delete(child).Error; err != nil {
				return err
			}
		}
		return tx.Where("message = ?", message).Delete(&models.Banshare{}).Error
	})
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to archive banshare: %w", err)
	}
	return &archived, nil
}
