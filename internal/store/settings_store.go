package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tcn-network/banshare-api/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SettingsStore struct {
	db *gorm.DB
}

func NewSettingsStore(db *gorm.DB) *SettingsStore {
	return &SettingsStore{db: db}
}

func orderedLogs(db *gorm.DB) *gorm.DB {
	return db.Order("created_at ASC, channel ASC")
}

// Get returns the stored overrides of a guild, or nil if it never saved any.
func (s *SettingsStore) Get(ctx context.Context, guild string) (*models.BanshareSettings, error) {
	return get(s.db.WithContext(ctx), guild)
}

func get(db *gorm.DB, guild string) (*models.BanshareSettings, error) {
	var settings models.BanshareSettings
	err := db.Preload("Logs", orderedLogs).Where("guild = ?", guild).First(&settings).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get banshare settings: %w", err)
	}
	return &settings, nil
}

func (s *SettingsStore) List(ctx context.Context) ([]models.BanshareSettings, error) {
	settings := []models.BanshareSettings{}
	if err := s.db.WithContext(ctx).Preload("Logs", orderedLogs).Order("guild ASC").Find(&settings).Error; err != nil {
		return nil, fmt.Errorf("failed to list banshare settings: %w", err)
	}
	return settings, nil
}

// Upsert creates the settings row on first write and applies fields. Only the
// submitted fields are touched, so concurrent writers of disjoint fields do not
// clobber each other.
func (s *SettingsStore) Upsert(ctx context.Context, guild string, fields map[string]interface{}) (before, after *models.BanshareSettings, err error) {
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if before, err = get(tx, guild); err != nil {
			return err
		}
		if err := ensureRow(tx, guild); err != nil {
			return err
		}
		if len(fields) > 0 {
			if err := tx.Model(&models.BanshareSettings{}).Where("guild = ?", guild).Updates(fields).Error; err != nil {
				return err
			}
		}
		after, err = get(tx, guild)
		return err
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to save banshare settings: %w", err)
	}
	return before, after, nil
}

// NoButton reports whether the guild disabled manual execution.
func (s *SettingsStore) NoButton(ctx context.Context, guild string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.BanshareSettings{}).
		Where("guild = ? AND nobutton = ?", guild, true).
		Count(&count).Error
	return count > 0, err
}

// AddLogChannel appends a logging channel, enforcing uniqueness and the
// per-guild limit.
func (s *SettingsStore) AddLogChannel(ctx context.Context, guild, channel string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureRow(tx, guild); err != nil {
			return err
		}
		// Lock the settings row so concurrent adds see each other's count.
		if err := tx.Model(&models.BanshareSettings{}).Where("guild = ?", guild).Update("updated_at", time.Now()).Error; err != nil {
			return err
		}

		var logs []models.BanshareLogChannel
		if err := tx.Where("guild = ?", guild).Find(&logs).Error; err != nil {
			return err
		}
		for _, l := range logs {
			if l.Channel == channel {
				return ErrDuplicate
			}
		}
		if len(logs) >= models.MaxLogChannels {
			return ErrLimitReached
		}

		return tx.Create(&models.BanshareLogChannel{Guild: guild, Channel: channel}).Error
	})
}

func (s *SettingsStore) RemoveLogChannel(ctx context.Context, guild, channel string) error {
	result := s.db.WithContext(ctx).
		Where("guild = ? AND channel = ?", guild, channel).
		Delete(&models.BanshareLogChannel{})
	if result.Error != nil {
		return fmt.Errorf("failed to remove log channel: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func ensureRow(tx *gorm.DB, guild string) error {
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.BanshareSettings{Guild: guild}).Error
}
