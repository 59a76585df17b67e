package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/timeclock/internal/persistence"
)

var (
	userCounter  uint64
	entryCounter uint64
)

var referenceTime = time.Date(2025, time.June, 2, 8, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// UserOption configures a generated user fixture.
type UserOption func(*persistence.User)

// WithAdmin marks the fixture user as an administrator.
func WithAdmin() UserOption {
	return func(u *persistence.User) { u.IsAdmin = true }
}

// WithBreakSetting overrides the fixture's break configuration.
func WithBreakSetting(durationMinutes int, autoInsert bool) UserOption {
	return func(u *persistence.User) {
		u.BreakDurationMinutes = durationMinutes
		u.AutoInsertEnabled = autoInsert
	}
}

// WithTimezone sets the fixture's IANA timezone.
func WithTimezone(name string) UserOption {
	return func(u *persistence.User) { u.Timezone = name }
}

// WithDisabled marks the fixture account disabled.
func WithDisabled() UserOption {
	return func(u *persistence.User) { u.Disabled = true }
}

// NewUserFixture returns a deterministic persistence user with optional
// overrides. The password hash is a placeholder, not a real argon2id digest.
func NewUserFixture(opts ...UserOption) persistence.User {
	idx := atomic.AddUint64(&userCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)

	user := persistence.User{
		ID:                   fmt.Sprintf("user-%03d", idx),
		Email:                fmt.Sprintf("user-%03d@example.com", idx),
		DisplayName:          fmt.Sprintf("User %03d", idx),
		PasswordHash:         fmt.Sprintf("hash-%03d", idx),
		Timezone:             "UTC",
		BreakDurationMinutes: 30,
		AutoInsertEnabled:    true,
		CreatedAt:            created,
		UpdatedAt:            created,
	}
	for _, opt := range opts {
		opt(&user)
	}
	return user
}

// EntryOption configures a generated time entry fixture.
type EntryOption func(*persistence.TimeEntry)

// WithInterval sets the fixture's bounds and derives the stored duration.
func WithInterval(start, end time.Time) EntryOption {
	return func(e *persistence.TimeEntry) {
		e.StartTime = start
		e.EndTime = &end
		e.DurationSeconds = int64(end.Sub(start) / time.Second)
	}
}

// WithOpenInterval leaves the fixture running from start.
func WithOpenInterval(start time.Time) EntryOption {
	return func(e *persistence.TimeEntry) {
		e.StartTime = start
		e.EndTime = nil
		e.DurationSeconds = 0
	}
}

// AsBreak marks the fixture as a break entry.
func AsBreak() EntryOption {
	return func(e *persistence.TimeEntry) { e.IsBreak = true }
}

// NewEntryFixture returns a deterministic closed work entry for the given
// user, spanning one hour unless overridden.
func NewEntryFixture(userID string, opts ...EntryOption) persistence.TimeEntry {
	idx := atomic.AddUint64(&entryCounter, 1)
	start := referenceTime.Add(time.Duration(idx) * time.Hour)
	end := start.Add(time.Hour)

	entry := persistence.TimeEntry{
		UserID:          userID,
		StartTime:       start,
		EndTime:         &end,
		DurationSeconds: 3600,
		CreatedAt:       start,
		UpdatedAt:       start,
	}
	for _, opt := range opts {
		opt(&entry)
	}
	return entry
}
