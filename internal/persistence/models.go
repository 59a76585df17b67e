package persistence

import "time"

// User represents an employee account together with its break configuration.
// Break settings are one-to-one with the user, so they live on the same row.
type User struct {
	ID                   string
	Email                string
	DisplayName          string
	PasswordHash         string
	IsAdmin              bool
	Disabled             bool
	Timezone             string
	BreakDurationMinutes int
	AutoInsertEnabled    bool
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// TimeEntry represents one tracked interval of work or break time.
// EndTime is nil while the interval is still running.
type TimeEntry struct {
	ID              int64
	UserID          string
	StartTime       time.Time
	EndTime         *time.Time
	DurationSeconds int64
	IsBreak         bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// EntryFilter narrows time entry range queries. A nil IsBreak matches both
// work and break entries.
type EntryFilter struct {
	UserID  string
	Start   time.Time
	End     time.Time
	IsBreak *bool
}

// Session represents an authentication session persisted for a user.
type Session struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
	RevokedAt *time.Time
}

// AuditLogEntry is an append-only record of a successful mutation.
type AuditLogEntry struct {
	ID        int64
	UserID    string
	Action    string
	Entity    string
	EntityID  int64
	Details   string
	IPAddress string
	CreatedAt time.Time
}
