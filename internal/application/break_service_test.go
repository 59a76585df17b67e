package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/example/timeclock/internal/persistence"
)

type settingsProviderStub struct {
	users   []UserWithSettings
	listErr error
}

func (s *settingsProviderStub) ListUsersWithSettings(ctx context.Context) ([]UserWithSettings, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.users, nil
}

type entryQuery struct {
	userID  string
	start   time.Time
	end     time.Time
	isBreak bool
}

type entryStoreStub struct {
	work       map[string][]TimeEntry
	breaks     map[string][]TimeEntry
	listErr    error
	replaceErr error

	queries  []entryQuery
	replaced []TimeEntry
	nextID   int64
}

func newEntryStoreStub() *entryStoreStub {
	return &entryStoreStub{
		work:   make(map[string][]TimeEntry),
		breaks: make(map[string][]TimeEntry),
		nextID: 100,
	}
}

func (s *entryStoreStub) ListEntriesInRange(ctx context.Context, userID string, start, end time.Time, isBreak bool) ([]TimeEntry, error) {
	s.queries = append(s.queries, entryQuery{userID: userID, start: start, end: end, isBreak: isBreak})
	if s.listErr != nil {
		return nil, s.listErr
	}
	if isBreak {
		return s.breaks[userID], nil
	}
	return s.work[userID], nil
}

func (s *entryStoreStub) ReplaceEntryWithSplit(ctx context.Context, originalID int64, replacements []TimeEntry) ([]TimeEntry, error) {
	if s.replaceErr != nil {
		return nil, s.replaceErr
	}
	created := make([]TimeEntry, 0, len(replacements))
	for _, entry := range replacements {
		s.nextID++
		entry.ID = s.nextID
		created = append(created, entry)
	}
	s.replaced = append(s.replaced, created...)
	return created, nil
}

type auditSinkStub struct {
	entries []AuditEntry
	err     error
}

func (s *auditSinkStub) Record(ctx context.Context, entry AuditEntry) error {
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, entry)
	return nil
}

func closedEntry(id int64, userID string, start, end time.Time) TimeEntry {
	return TimeEntry{
		ID:              id,
		UserID:          userID,
		StartTime:       start,
		EndTime:         &end,
		DurationSeconds: int64(end.Sub(start) / time.Second),
	}
}

func enabledUser(id string, durationMinutes int) UserWithSettings {
	return UserWithSettings{
		UserID:      id,
		DisplayName: "User " + id,
		Timezone:    "UTC",
		Setting: BreakSetting{
			BreakDurationMinutes: durationMinutes,
			AutoInsertEnabled:    true,
		},
	}
}

func newTestBreakService(settings BreakSettingsProvider, entries TimeEntryStore, audit AuditSink, now time.Time) *BreakService {
	return NewBreakService(settings, entries, audit, NewDayWindowResolver(time.UTC), func() time.Time { return now }, nil)
}

func TestBreakService_InsertAutomaticBreaks(t *testing.T) {
	t.Parallel()

	day := time.Date(2025, time.June, 2, 0, 0, 0, 0, time.UTC)

	t.Run("splits a standard working day around its midpoint", func(t *testing.T) {
		t.Parallel()

		start := day.Add(9 * time.Hour)
		end := day.Add(17 * time.Hour)
		store := newEntryStoreStub()
		store.work["user-1"] = []TimeEntry{closedEntry(1, "user-1", start, end)}

		settings := &settingsProviderStub{users: []UserWithSettings{enabledUser("user-1", 30)}}
		audit := &auditSinkStub{}
		svc := newTestBreakService(settings, store, audit, day.Add(12*time.Hour))

		report, err := svc.InsertAutomaticBreaks(context.Background(), InsertBreaksParams{})
		if err != nil {
			t.Fatalf("InsertAutomaticBreaks failed: %v", err)
		}
		if report.ProcessedUsers != 1 || len(report.Breaks) != 1 {
			t.Fatalf("expected one processed user, got %+v", report)
		}

		wantBreakStart := day.Add(12*time.Hour + 45*time.Minute)
		wantBreakEnd := day.Add(13*time.Hour + 15*time.Minute)
		result := report.Breaks[0]
		if !result.BreakStartTime.Equal(wantBreakStart) || !result.BreakEndTime.Equal(wantBreakEnd) {
			t.Fatalf("expected break %v to %v, got %v to %v", wantBreakStart, wantBreakEnd, result.BreakStartTime, result.BreakEndTime)
		}
		if result.BreakDurationSeconds != 1800 {
			t.Fatalf("expected 1800 second break, got %d", result.BreakDurationSeconds)
		}

		if len(store.replaced) != 3 {
			t.Fatalf("expected 3 replacement entries, got %d", len(store.replaced))
		}
		first, brk, second := store.replaced[0], store.replaced[1], store.replaced[2]
		if first.DurationSeconds != 13500 || second.DurationSeconds != 13500 {
			t.Fatalf("expected 13500 second work segments, got %d and %d", first.DurationSeconds, second.DurationSeconds)
		}
		if !brk.IsBreak || brk.DurationSeconds != 1800 {
			t.Fatalf("unexpected break segment %+v", brk)
		}
	})

	t.Run("an explicit date means that calendar day in the user's zone", func(t *testing.T) {
		t.Parallel()

		user := enabledUser("user-ny", 30)
		user.Timezone = "America/New_York"

		// June 2nd 09:00 to 17:00 New York local is 13:00Z to 21:00Z. An
		// instant-based reading of the date would land in the June 1st New
		// York window and miss this entry entirely.
		start := time.Date(2025, time.June, 2, 13, 0, 0, 0, time.UTC)
		end := time.Date(2025, time.June, 2, 21, 0, 0, 0, time.UTC)
		store := newEntryStoreStub()
		store.work["user-ny"] = []TimeEntry{closedEntry(1, "user-ny", start, end)}

		settings := &settingsProviderStub{users: []UserWithSettings{user}}
		svc := newTestBreakService(settings, store, &auditSinkStub{}, day)

		report, err := svc.InsertAutomaticBreaks(context.Background(), InsertBreaksParams{
			TargetDate: time.Date(2025, time.June, 2, 0, 0, 0, 0, time.UTC),
		})
		if err != nil {
			t.Fatalf("InsertAutomaticBreaks failed: %v", err)
		}
		if report.ProcessedUsers != 1 || len(report.Breaks) != 1 {
			t.Fatalf("expected one inserted break, got %+v", report)
		}

		wantStart := time.Date(2025, time.June, 2, 4, 0, 0, 0, time.UTC)
		wantEnd := time.Date(2025, time.June, 3, 4, 0, 0, 0, time.UTC)
		if len(store.queries) == 0 {
			t.Fatal("expected entry queries")
		}
		if q := store.queries[0]; !q.start.Equal(wantStart) || !q.end.Equal(wantEnd) {
			t.Fatalf("queried window %v to %v, want %v to %v", q.start, q.end, wantStart, wantEnd)
		}
	})

	t.Run("replacement segments are contiguous and conserve the interval", func(t *testing.T) {
		t.Parallel()

		// An odd total duration exercises the flooring of the midpoint.
		start := day.Add(9 * time.Hour)
		end := start.Add(7*time.Hour + 33*time.Minute + 21*time.Second)
		store := newEntryStoreStub()
		store.work["user-1"] = []TimeEntry{closedEntry(1, "user-1", start, end)}

		settings := &settingsProviderStub{users: []UserWithSettings{enabledUser("user-1", 45)}}
		svc := newTestBreakService(settings, store, &auditSinkStub{}, day)

		report, err := svc.InsertAutomaticBreaks(context.Background(), InsertBreaksParams{TargetDate: day})
		if err != nil {
			t.Fatalf("InsertAutomaticBreaks failed: %v", err)
		}
		if len(store.replaced) != 3 {
			t.Fatalf("expected a split, got report %+v", report)
		}

		first, brk, second := store.replaced[0], store.replaced[1], store.replaced[2]
		if !first.StartTime.Equal(start) || !second.EndTime.Equal(end) {
			t.Fatalf("outer bounds changed: %+v %+v", first, second)
		}
		if !first.EndTime.Equal(brk.StartTime) || !brk.EndTime.Equal(second.StartTime) {
			t.Fatalf("segments are not contiguous: %+v %+v %+v", first, brk, second)
		}
		if brk.DurationSeconds != 45*60 {
			t.Fatalf("break duration changed: %d", brk.DurationSeconds)
		}

		total := first.DurationSeconds + brk.DurationSeconds + second.DurationSeconds
		want := int64(end.Sub(start) / time.Second)
		if total != want {
			t.Fatalf("durations not conserved: got %d, want %d", total, want)
		}
	})

	t.Run("is idempotent once a break exists", func(t *testing.T) {
		t.Parallel()

		start := day.Add(9 * time.Hour)
		end := day.Add(17 * time.Hour)
		store := newEntryStoreStub()
		store.work["user-1"] = []TimeEntry{closedEntry(1, "user-1", start, end)}
		store.breaks["user-1"] = []TimeEntry{closedEntry(2, "user-1", day.Add(12*time.Hour), day.Add(12*time.Hour+30*time.Minute))}

		settings := &settingsProviderStub{users: []UserWithSettings{enabledUser("user-1", 30)}}
		svc := newTestBreakService(settings, store, &auditSinkStub{}, day)

		report, err := svc.InsertAutomaticBreaks(context.Background(), InsertBreaksParams{TargetDate: day})
		if err != nil {
			t.Fatalf("InsertAutomaticBreaks failed: %v", err)
		}
		if len(store.replaced) != 0 {
			t.Fatalf("expected no replacements, got %d", len(store.replaced))
		}
		if len(report.Skipped) != 1 || report.Skipped[0].Reason != SkipBreakExists {
			t.Fatalf("expected break_exists skip, got %+v", report.Skipped)
		}
	})

	t.Run("refuses ambiguous days with several work entries", func(t *testing.T) {
		t.Parallel()

		store := newEntryStoreStub()
		store.work["user-1"] = []TimeEntry{
			closedEntry(1, "user-1", day.Add(9*time.Hour), day.Add(12*time.Hour)),
			closedEntry(2, "user-1", day.Add(13*time.Hour), day.Add(17*time.Hour)),
		}

		settings := &settingsProviderStub{users: []UserWithSettings{enabledUser("user-1", 30)}}
		svc := newTestBreakService(settings, store, &auditSinkStub{}, day)

		report, err := svc.InsertAutomaticBreaks(context.Background(), InsertBreaksParams{TargetDate: day})
		if err != nil {
			t.Fatalf("InsertAutomaticBreaks failed: %v", err)
		}
		if len(report.Skipped) != 1 || report.Skipped[0].Reason != SkipMultipleEntries {
			t.Fatalf("expected multiple_entries skip, got %+v", report.Skipped)
		}
		if len(store.replaced) != 0 {
			t.Fatalf("expected no replacements, got %d", len(store.replaced))
		}
	})

	t.Run("never clamps a break that does not fit", func(t *testing.T) {
		t.Parallel()

		// 20 tracked minutes cannot contain a 30 minute break.
		start := day.Add(9 * time.Hour)
		end := start.Add(20 * time.Minute)
		store := newEntryStoreStub()
		store.work["user-1"] = []TimeEntry{closedEntry(1, "user-1", start, end)}

		settings := &settingsProviderStub{users: []UserWithSettings{enabledUser("user-1", 30)}}
		svc := newTestBreakService(settings, store, &auditSinkStub{}, day)

		report, err := svc.InsertAutomaticBreaks(context.Background(), InsertBreaksParams{TargetDate: day})
		if err != nil {
			t.Fatalf("InsertAutomaticBreaks failed: %v", err)
		}
		if len(report.Skipped) != 1 || report.Skipped[0].Reason != SkipBreakDoesNotFit {
			t.Fatalf("expected break_does_not_fit skip, got %+v", report.Skipped)
		}
		if len(store.replaced) != 0 {
			t.Fatalf("expected no replacements, got %d", len(store.replaced))
		}
	})

	t.Run("skips open entries and empty days", func(t *testing.T) {
		t.Parallel()

		store := newEntryStoreStub()
		store.work["open"] = []TimeEntry{{ID: 1, UserID: "open", StartTime: day.Add(9 * time.Hour)}}

		settings := &settingsProviderStub{users: []UserWithSettings{
			enabledUser("open", 30),
			enabledUser("empty", 30),
		}}
		svc := newTestBreakService(settings, store, &auditSinkStub{}, day)

		report, err := svc.InsertAutomaticBreaks(context.Background(), InsertBreaksParams{TargetDate: day})
		if err != nil {
			t.Fatalf("InsertAutomaticBreaks failed: %v", err)
		}

		reasons := map[string]SkipReason{}
		for _, skip := range report.Skipped {
			reasons[skip.UserID] = skip.Reason
		}
		if reasons["open"] != SkipEntryOpen {
			t.Fatalf("expected entry_open for open user, got %v", reasons["open"])
		}
		if reasons["empty"] != SkipNoEntries {
			t.Fatalf("expected no_entries for empty user, got %v", reasons["empty"])
		}
	})

	t.Run("ignores users without auto insertion and never queries them", func(t *testing.T) {
		t.Parallel()

		store := newEntryStoreStub()
		disabled := enabledUser("disabled", 30)
		disabled.Setting.AutoInsertEnabled = false

		settings := &settingsProviderStub{users: []UserWithSettings{disabled}}
		svc := newTestBreakService(settings, store, &auditSinkStub{}, day)

		report, err := svc.InsertAutomaticBreaks(context.Background(), InsertBreaksParams{TargetDate: day})
		if err != nil {
			t.Fatalf("InsertAutomaticBreaks failed: %v", err)
		}
		if len(store.queries) != 0 {
			t.Fatalf("expected no store queries for disabled user, got %d", len(store.queries))
		}
		if len(report.Skipped) != 0 || report.ProcessedUsers != 0 {
			t.Fatalf("disabled user should not appear in the report: %+v", report)
		}
	})

	t.Run("skips users with a non-positive break duration", func(t *testing.T) {
		t.Parallel()

		store := newEntryStoreStub()
		settings := &settingsProviderStub{users: []UserWithSettings{enabledUser("user-1", 0)}}
		svc := newTestBreakService(settings, store, &auditSinkStub{}, day)

		report, err := svc.InsertAutomaticBreaks(context.Background(), InsertBreaksParams{TargetDate: day})
		if err != nil {
			t.Fatalf("InsertAutomaticBreaks failed: %v", err)
		}
		if len(report.Skipped) != 1 || report.Skipped[0].Reason != SkipZeroBreakDuration {
			t.Fatalf("expected zero_break_duration skip, got %+v", report.Skipped)
		}
	})

	t.Run("treats a lost split race as a conflict skip", func(t *testing.T) {
		t.Parallel()

		start := day.Add(9 * time.Hour)
		end := day.Add(17 * time.Hour)
		store := newEntryStoreStub()
		store.work["user-1"] = []TimeEntry{closedEntry(1, "user-1", start, end)}
		store.replaceErr = persistence.ErrNotFound

		settings := &settingsProviderStub{users: []UserWithSettings{enabledUser("user-1", 30)}}
		svc := newTestBreakService(settings, store, &auditSinkStub{}, day)

		report, err := svc.InsertAutomaticBreaks(context.Background(), InsertBreaksParams{TargetDate: day})
		if err != nil {
			t.Fatalf("InsertAutomaticBreaks failed: %v", err)
		}
		if len(report.Skipped) != 1 || report.Skipped[0].Reason != SkipEntryConflict {
			t.Fatalf("expected entry_conflict skip, got %+v", report.Skipped)
		}
		if len(report.Errors) != 0 {
			t.Fatalf("a conflict is not an error: %+v", report.Errors)
		}
	})

	t.Run("continues past per-user failures", func(t *testing.T) {
		t.Parallel()

		start := day.Add(9 * time.Hour)
		end := day.Add(17 * time.Hour)

		failing := newEntryStoreStub()
		failing.work["bad"] = []TimeEntry{closedEntry(1, "bad", start, end)}
		failing.work["good"] = []TimeEntry{closedEntry(2, "good", start, end)}

		// Fail only the bad user's split.
		failing.replaceErr = errors.New("disk full")
		calls := 0
		store := &conditionalStore{inner: failing, failFor: "bad", callCount: &calls}

		settings := &settingsProviderStub{users: []UserWithSettings{
			enabledUser("bad", 30),
			enabledUser("good", 30),
		}}
		svc := newTestBreakService(settings, store, &auditSinkStub{}, day)

		report, err := svc.InsertAutomaticBreaks(context.Background(), InsertBreaksParams{TargetDate: day})
		if err != nil {
			t.Fatalf("InsertAutomaticBreaks failed: %v", err)
		}
		if len(report.Errors) != 1 || report.Errors[0].UserID != "bad" {
			t.Fatalf("expected one failure for bad, got %+v", report.Errors)
		}
		if report.ProcessedUsers != 1 || len(report.Breaks) != 1 || report.Breaks[0].UserID != "good" {
			t.Fatalf("expected good user to be processed, got %+v", report)
		}
	})

	t.Run("records an audit entry for each insertion", func(t *testing.T) {
		t.Parallel()

		start := day.Add(9 * time.Hour)
		end := day.Add(17 * time.Hour)
		store := newEntryStoreStub()
		store.work["user-1"] = []TimeEntry{closedEntry(1, "user-1", start, end)}

		settings := &settingsProviderStub{users: []UserWithSettings{enabledUser("user-1", 30)}}
		audit := &auditSinkStub{}
		svc := newTestBreakService(settings, store, audit, day)

		if _, err := svc.InsertAutomaticBreaks(context.Background(), InsertBreaksParams{TargetDate: day, IPAddress: "10.0.0.1"}); err != nil {
			t.Fatalf("InsertAutomaticBreaks failed: %v", err)
		}

		if len(audit.entries) != 1 {
			t.Fatalf("expected one audit entry, got %d", len(audit.entries))
		}
		entry := audit.entries[0]
		if entry.Action != AuditActionAutoBreakAdded || entry.Entity != AuditEntityBreak {
			t.Fatalf("unexpected audit entry %+v", entry)
		}
		if entry.IPAddress != "10.0.0.1" {
			t.Fatalf("expected caller IP on the audit entry, got %q", entry.IPAddress)
		}

		var details map[string]any
		if err := json.Unmarshal([]byte(entry.Details), &details); err != nil {
			t.Fatalf("audit details are not JSON: %v", err)
		}
		if !strings.Contains(entry.Details, "splitEntryId") {
			t.Fatalf("audit details missing split entry id: %s", entry.Details)
		}
	})

	t.Run("stops between users when the context is cancelled", func(t *testing.T) {
		t.Parallel()

		store := newEntryStoreStub()
		settings := &settingsProviderStub{users: []UserWithSettings{
			enabledUser("a", 30),
			enabledUser("b", 30),
		}}
		svc := newTestBreakService(settings, store, &auditSinkStub{}, day)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := svc.InsertAutomaticBreaks(ctx, InsertBreaksParams{TargetDate: day})
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	})

	t.Run("fails the batch when the settings listing fails", func(t *testing.T) {
		t.Parallel()

		settings := &settingsProviderStub{listErr: errors.New("listing broken")}
		svc := newTestBreakService(settings, newEntryStoreStub(), &auditSinkStub{}, day)

		if _, err := svc.InsertAutomaticBreaks(context.Background(), InsertBreaksParams{TargetDate: day}); err == nil {
			t.Fatal("expected an error when the settings listing fails")
		}
	})
}

// conditionalStore fails ReplaceEntryWithSplit only for one user.
type conditionalStore struct {
	inner     *entryStoreStub
	failFor   string
	callCount *int
}

func (s *conditionalStore) ListEntriesInRange(ctx context.Context, userID string, start, end time.Time, isBreak bool) ([]TimeEntry, error) {
	return s.inner.ListEntriesInRange(ctx, userID, start, end, isBreak)
}

func (s *conditionalStore) ReplaceEntryWithSplit(ctx context.Context, originalID int64, replacements []TimeEntry) ([]TimeEntry, error) {
	*s.callCount++
	if len(replacements) > 0 && replacements[0].UserID == s.failFor {
		return nil, fmt.Errorf("split for %s: %w", s.failFor, s.inner.replaceErr)
	}
	created := make([]TimeEntry, 0, len(replacements))
	for _, entry := range replacements {
		s.inner.nextID++
		entry.ID = s.inner.nextID
		created = append(created, entry)
	}
	return created, nil
}
