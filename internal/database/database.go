package database

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/tcn-network/banshare-api/internal/config"
	"github.com/tcn-network/banshare-api/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect opens the postgres pool. The returned handle is passed explicitly to
// every component that needs it and closed by Close on shutdown.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetMaxIdleConns(25)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	slog.Info("database connected")
	return db, nil
}

// Migrate runs AutoMigrate for every table the service owns.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Guild{},
		&models.GuildStaff{},
		&models.Banshare{},
		&models.BanshareCrosspost{},
		&models.BanshareExecutor{},
		&models.BanshareReport{},
		&models.DeletedBanshare{},
		&models.BanshareSettings{},
		&models.BanshareLogChannel{},
		&models.AuditLog{},
		&models.SystemLog{},
	)
}

func Ping(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
