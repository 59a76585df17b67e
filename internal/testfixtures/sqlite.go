package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/timeclock/internal/persistence"
	"github.com/example/timeclock/internal/persistence/sqlite"
)

// SQLiteHarness provides repository access backed by a temporary SQLite
// database for integration-style persistence tests.
type SQLiteHarness struct {
	Pool     *sqlite.ConnectionPool
	Users    persistence.UserRepository
	Entries  persistence.TimeEntryRepository
	Sessions persistence.SessionRepository
	Audit    persistence.AuditLogRepository
}

// NewSQLiteHarness opens a migrated temporary database and registers cleanup
// with the provided testing.TB.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "timeclock.db")
	pool, err := sqlite.Open(path)
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}

	if err := pool.Migrate(context.Background()); err != nil {
		_ = pool.Close()
		tb.Fatalf("failed to migrate storage: %v", err)
	}

	tb.Cleanup(func() {
		_ = pool.Close()
	})

	return &SQLiteHarness{
		Pool:     pool,
		Users:    sqlite.NewUserRepository(pool),
		Entries:  sqlite.NewTimeEntryRepository(pool),
		Sessions: sqlite.NewSessionRepository(pool),
		Audit:    sqlite.NewAuditLogRepository(pool),
	}
}
