package persistence

import (
	"context"
	"time"
)

// UserRepository exposes CRUD operations for users and their break settings.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) error
	UpdateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	UpdateBreakSetting(ctx context.Context, userID string, durationMinutes int, autoInsert bool) error
	DeleteUser(ctx context.Context, id string) error
}

// TimeEntryRepository stores tracked time intervals.
type TimeEntryRepository interface {
	CreateEntry(ctx context.Context, entry TimeEntry) (TimeEntry, error)
	GetEntry(ctx context.Context, id int64) (TimeEntry, error)
	UpdateEntry(ctx context.Context, entry TimeEntry) (TimeEntry, error)
	DeleteEntry(ctx context.Context, id int64) error
	// ListEntriesInRange returns entries fully contained in the half-open
	// window [filter.Start, filter.End), ordered by start time. Entries with
	// no end time are included when their start falls inside the window.
	// A nil filter.IsBreak matches both work and break entries.
	ListEntriesInRange(ctx context.Context, filter EntryFilter) ([]TimeEntry, error)
	FindOpenEntry(ctx context.Context, userID string) (TimeEntry, error)
	// ReplaceEntryWithSplit atomically deletes the original entry and inserts
	// the replacement rows in one transaction. It returns ErrNotFound without
	// side effects when the original row no longer exists.
	ReplaceEntryWithSplit(ctx context.Context, originalID int64, replacements []TimeEntry) ([]TimeEntry, error)
}

// SessionRepository stores authentication session state.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) (Session, error)
	GetSession(ctx context.Context, token string) (Session, error)
	RevokeSession(ctx context.Context, token string, revokedAt time.Time) error
	DeleteExpiredSessions(ctx context.Context, reference time.Time) error
}

// AuditLogRepository appends mutation records. Entries are never updated.
type AuditLogRepository interface {
	Record(ctx context.Context, entry AuditLogEntry) (AuditLogEntry, error)
}
