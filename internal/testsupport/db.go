// Package testsupport builds the fixtures shared by package tests.
package testsupport

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tcn-network/banshare-api/internal/database"
	"github.com/tcn-network/banshare-api/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB opens a migrated sqlite database in the test's temp dir. It uses a
// single connection so concurrent callers queue instead of failing with
// "database is locked".
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

// Seed inserts rows in order.
func Seed(t testing.TB, db *gorm.DB, rows ...interface{}) {
	t.Helper()
	for _, row := range rows {
		require.NoError(t, db.Create(row).Error)
	}
}

func Ptr[T any](v T) *T {
	return &v
}

// Network seeds a small federation: a hub, two member guilds with owners,
// an advisor, a staffer with the banshares role and an observer.
func Network(t testing.TB, db *gorm.DB) {
	t.Helper()
	Seed(t, db,
		&models.User{ID: ObserverID, Observer: true},
		&models.Guild{ID: HubGuild, Name: "TCN Hub", Owner: ObserverID},
		&models.Guild{ID: GuildA, Name: "Guild A", Owner: OwnerA, Advisor: Ptr(AdvisorA)},
		&models.Guild{ID: GuildB, Name: "Guild B", Owner: OwnerB},
		&models.GuildStaff{Guild: GuildA, User: StaffA, Roles: []string{"banshares"}},
		&models.GuildStaff{Guild: GuildB, User: PlainStaff, Roles: []string{"polls"}},
	)
}

const (
	HubGuild   = "800000000000000001"
	GuildA     = "800000000000000002"
	GuildB     = "800000000000000003"
	ObserverID = "900000000000000001"
	OwnerA     = "900000000000000002"
	AdvisorA   = "900000000000000003"
	StaffA     = "900000000000000004"
	OwnerB     = "900000000000000005"
	PlainStaff = "900000000000000006"
	Outsider   = "900000000000000007"
)
