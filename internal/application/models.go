package application

import "time"

// Principal represents the authenticated caller invoking a service method.
type Principal struct {
	UserID  string
	IsAdmin bool
}

// User represents an employee account exposed by the application services.
type User struct {
	ID          string
	Email       string
	DisplayName string
	IsAdmin     bool
	Timezone    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// BreakSetting is the per-user break configuration read by the insertion engine.
type BreakSetting struct {
	BreakDurationMinutes int
	AutoInsertEnabled    bool
}

// UserWithSettings couples a user identity with its break configuration, as
// returned by the settings provider in one listing.
type UserWithSettings struct {
	UserID      string
	DisplayName string
	Timezone    string
	Setting     BreakSetting
}

// TimeEntry is one tracked interval of work or break time. EndTime is nil
// while the interval is still running.
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

// EntryInput captures caller provided time entry fields. Any client supplied
// duration is ignored; the service recomputes it from the interval bounds.
type EntryInput struct {
	UserID    string
	StartTime time.Time
	EndTime   *time.Time
	IsBreak   bool
}

// CreateEntryParams wraps the data required to create a time entry.
type CreateEntryParams struct {
	Principal Principal
	Input     EntryInput
	IPAddress string
}

// UpdateEntryParams wraps the data required to update an existing time entry.
type UpdateEntryParams struct {
	Principal Principal
	EntryID   int64
	Input     EntryInput
	IPAddress string
}

// DeleteEntryParams wraps the data required to delete a time entry.
type DeleteEntryParams struct {
	Principal Principal
	EntryID   int64
	IPAddress string
}

// ListEntriesParams wraps the data required to list entries for one user day range.
type ListEntriesParams struct {
	Principal Principal
	UserID    string
	From      time.Time
	To        time.Time
}

// TimerParams wraps the data required to start or stop live tracking.
type TimerParams struct {
	Principal Principal
	IPAddress string
}

// InsertBreaksParams wraps the data required to run one break insertion batch.
type InsertBreaksParams struct {
	// TargetDate selects the calendar day to process. The zero value means
	// the current day at invocation time.
	TargetDate time.Time
	IPAddress  string
}

// BreakInsertionResult records one successful automatic break insertion.
type BreakInsertionResult struct {
	UserID               string
	UserName             string
	BreakID              int64
	BreakStartTime       time.Time
	BreakEndTime         time.Time
	BreakDurationSeconds int64
}

// SkipReason explains why the engine left a user's day untouched.
type SkipReason string

const (
	SkipNoEntries         SkipReason = "no_entries"
	SkipMultipleEntries   SkipReason = "multiple_entries"
	SkipEntryOpen         SkipReason = "entry_open"
	SkipBreakExists       SkipReason = "break_exists"
	SkipBreakDoesNotFit   SkipReason = "break_does_not_fit"
	SkipZeroBreakDuration SkipReason = "zero_break_duration"
	SkipEntryConflict     SkipReason = "entry_conflict"
)

// BreakInsertionSkip records a user the engine deliberately did not touch.
type BreakInsertionSkip struct {
	UserID string
	Reason SkipReason
}

// BreakInsertionFailure records a per-user store failure that did not abort
// the batch.
type BreakInsertionFailure struct {
	UserID  string
	Message string
}

// BreakInsertionReport aggregates the outcome of one engine batch.
type BreakInsertionReport struct {
	ProcessedUsers int
	Breaks         []BreakInsertionResult
	Skipped        []BreakInsertionSkip
	Errors         []BreakInsertionFailure
}

// Session represents an authenticated session issued to a user.
type Session struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
	RevokedAt *time.Time
}

// UserCredentials models the authentication attributes persisted for a user.
type UserCredentials struct {
	User         User
	PasswordHash string
	Disabled     bool
}

// UserInput captures caller provided user attributes.
type UserInput struct {
	Email                string
	DisplayName          string
	Password             string
	IsAdmin              bool
	Timezone             string
	BreakDurationMinutes int
	AutoInsertEnabled    bool
}

// CreateUserParams wraps the data required to create a user.
type CreateUserParams struct {
	Principal Principal
	Input     UserInput
}

// UpdateBreakSettingParams wraps the data required to change a user's break
// configuration.
type UpdateBreakSettingParams struct {
	Principal Principal
	UserID    string
	Setting   BreakSetting
}

// SetUserStatusParams wraps the data required to disable or re-enable an
// account.
type SetUserStatusParams struct {
	Principal Principal
	UserID    string
	Disabled  bool
}

// DeleteUserParams wraps the data required to remove an account.
type DeleteUserParams struct {
	Principal Principal
	UserID    string
}

// AuthenticateParams captures the data required to authenticate a user.
type AuthenticateParams struct {
	Email    string
	Password string
}

// AuthenticateResult captures the outcome of a successful authentication.
type AuthenticateResult struct {
	User    User
	Session Session
}

// Audit action and entity tags. Values are persisted, so they never change.
const (
	AuditActionAutoBreakAdded = "AUTO_BREAK_ADDED"
	AuditActionCreate         = "CREATE"
	AuditActionUpdate         = "UPDATE"
	AuditActionDelete         = "DELETE"
	AuditActionStart          = "START"
	AuditActionStop           = "STOP"

	AuditEntityTimeEntry = "TIME_ENTRY"
	AuditEntityBreak     = "BREAK"
)

// AuditEntry is the payload handed to the audit log sink.
type AuditEntry struct {
	UserID    string
	Action    string
	Entity    string
	EntityID  int64
	Details   string
	IPAddress string
}
