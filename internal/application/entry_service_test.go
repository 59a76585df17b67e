package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/timeclock/internal/persistence"
	"github.com/example/timeclock/internal/testfixtures"
)

type entryRepositoryStub struct {
	entries map[int64]TimeEntry
	open    map[string]TimeEntry
	nextID  int64

	createErr error
	updateErr error
	deleteErr error
	listErr   error

	deleted []int64
}

func newEntryRepositoryStub() *entryRepositoryStub {
	return &entryRepositoryStub{
		entries: make(map[int64]TimeEntry),
		open:    make(map[string]TimeEntry),
	}
}

func (s *entryRepositoryStub) CreateEntry(ctx context.Context, entry TimeEntry) (TimeEntry, error) {
	if s.createErr != nil {
		return TimeEntry{}, s.createErr
	}
	s.nextID++
	entry.ID = s.nextID
	s.entries[entry.ID] = entry
	if entry.EndTime == nil {
		s.open[entry.UserID] = entry
	}
	return entry, nil
}

func (s *entryRepositoryStub) GetEntry(ctx context.Context, id int64) (TimeEntry, error) {
	entry, ok := s.entries[id]
	if !ok {
		return TimeEntry{}, persistence.ErrNotFound
	}
	return entry, nil
}

func (s *entryRepositoryStub) UpdateEntry(ctx context.Context, entry TimeEntry) (TimeEntry, error) {
	if s.updateErr != nil {
		return TimeEntry{}, s.updateErr
	}
	if _, ok := s.entries[entry.ID]; !ok {
		return TimeEntry{}, persistence.ErrNotFound
	}
	s.entries[entry.ID] = entry
	if entry.EndTime != nil {
		delete(s.open, entry.UserID)
	}
	return entry, nil
}

func (s *entryRepositoryStub) DeleteEntry(ctx context.Context, id int64) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	if _, ok := s.entries[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.entries, id)
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *entryRepositoryStub) ListEntries(ctx context.Context, userID string, from, to time.Time) ([]TimeEntry, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []TimeEntry
	for _, entry := range s.entries {
		if entry.UserID == userID {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (s *entryRepositoryStub) FindOpenEntry(ctx context.Context, userID string) (TimeEntry, error) {
	entry, ok := s.open[userID]
	if !ok {
		return TimeEntry{}, persistence.ErrNotFound
	}
	return entry, nil
}

func fieldError(t *testing.T, err error, field string) {
	t.Helper()
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if _, ok := vErr.FieldErrors[field]; !ok {
		t.Fatalf("expected error on %q, got %v", field, vErr.FieldErrors)
	}
}

func TestEntryService_CreateEntry(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, time.June, 2, 18, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	self := Principal{UserID: "user-1"}

	t.Run("persists a valid interval with a server computed duration", func(t *testing.T) {
		t.Parallel()

		repo := newEntryRepositoryStub()
		audit := &auditSinkStub{}
		svc := NewEntryService(repo, audit, clock, nil)

		start := now.Add(-8 * time.Hour)
		end := now.Add(-30 * time.Minute)
		created, err := svc.CreateEntry(context.Background(), CreateEntryParams{
			Principal: self,
			Input:     EntryInput{StartTime: start, EndTime: &end},
			IPAddress: "10.0.0.9",
		})
		if err != nil {
			t.Fatalf("CreateEntry failed: %v", err)
		}
		if created.DurationSeconds != int64((7*time.Hour+30*time.Minute)/time.Second) {
			t.Fatalf("unexpected duration %d", created.DurationSeconds)
		}
		if created.UserID != "user-1" {
			t.Fatalf("expected entry owned by caller, got %q", created.UserID)
		}
		if len(audit.entries) != 1 || audit.entries[0].Action != AuditActionCreate {
			t.Fatalf("expected one CREATE audit entry, got %+v", audit.entries)
		}
	})

	t.Run("rejects future instants", func(t *testing.T) {
		t.Parallel()

		svc := NewEntryService(newEntryRepositoryStub(), nil, clock, nil)
		start := now.Add(time.Minute)
		_, err := svc.CreateEntry(context.Background(), CreateEntryParams{
			Principal: self,
			Input:     EntryInput{StartTime: start},
		})
		fieldError(t, err, "start_time")
	})

	t.Run("rejects an end before its start", func(t *testing.T) {
		t.Parallel()

		svc := NewEntryService(newEntryRepositoryStub(), nil, clock, nil)
		start := now.Add(-time.Hour)
		end := start.Add(-time.Minute)
		_, err := svc.CreateEntry(context.Background(), CreateEntryParams{
			Principal: self,
			Input:     EntryInput{StartTime: start, EndTime: &end},
		})
		fieldError(t, err, "end_time")
	})

	t.Run("enforces the self-service edit horizon", func(t *testing.T) {
		t.Parallel()

		svc := NewEntryService(newEntryRepositoryStub(), nil, clock, nil)
		start := now.Add(-8 * 24 * time.Hour)
		end := start.Add(time.Hour)
		_, err := svc.CreateEntry(context.Background(), CreateEntryParams{
			Principal: self,
			Input:     EntryInput{StartTime: start, EndTime: &end},
		})
		fieldError(t, err, "start_time")
	})

	t.Run("admins bypass the horizon and may write for others", func(t *testing.T) {
		t.Parallel()

		repo := newEntryRepositoryStub()
		svc := NewEntryService(repo, nil, clock, nil)
		start := now.Add(-30 * 24 * time.Hour)
		end := start.Add(time.Hour)
		created, err := svc.CreateEntry(context.Background(), CreateEntryParams{
			Principal: Principal{UserID: "admin", IsAdmin: true},
			Input:     EntryInput{UserID: "user-2", StartTime: start, EndTime: &end},
		})
		if err != nil {
			t.Fatalf("CreateEntry failed: %v", err)
		}
		if created.UserID != "user-2" {
			t.Fatalf("expected admin write for user-2, got %q", created.UserID)
		}
	})

	t.Run("non-admins may not write for others", func(t *testing.T) {
		t.Parallel()

		svc := NewEntryService(newEntryRepositoryStub(), nil, clock, nil)
		start := now.Add(-time.Hour)
		_, err := svc.CreateEntry(context.Background(), CreateEntryParams{
			Principal: self,
			Input:     EntryInput{UserID: "user-2", StartTime: start},
		})
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})
}

func TestEntryService_UpdateAndDelete(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, time.June, 2, 18, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	seed := func(t *testing.T, repo *entryRepositoryStub, userID string) TimeEntry {
		t.Helper()
		start := now.Add(-6 * time.Hour)
		end := now.Add(-time.Hour)
		entry, err := repo.CreateEntry(context.Background(), TimeEntry{
			UserID:          userID,
			StartTime:       start,
			EndTime:         &end,
			DurationSeconds: int64(5 * time.Hour / time.Second),
		})
		if err != nil {
			t.Fatalf("seed entry: %v", err)
		}
		return entry
	}

	t.Run("rewrites the interval and recomputes the duration", func(t *testing.T) {
		t.Parallel()

		repo := newEntryRepositoryStub()
		existing := seed(t, repo, "user-1")
		audit := &auditSinkStub{}
		svc := NewEntryService(repo, audit, clock, nil)

		start := now.Add(-4 * time.Hour)
		end := now.Add(-2 * time.Hour)
		updated, err := svc.UpdateEntry(context.Background(), UpdateEntryParams{
			Principal: Principal{UserID: "user-1"},
			EntryID:   existing.ID,
			Input:     EntryInput{StartTime: start, EndTime: &end},
		})
		if err != nil {
			t.Fatalf("UpdateEntry failed: %v", err)
		}
		if updated.DurationSeconds != 7200 {
			t.Fatalf("expected recomputed duration 7200, got %d", updated.DurationSeconds)
		}
		if len(audit.entries) != 1 || audit.entries[0].Action != AuditActionUpdate {
			t.Fatalf("expected one UPDATE audit entry, got %+v", audit.entries)
		}
	})

	t.Run("rejects edits of entries the caller does not own", func(t *testing.T) {
		t.Parallel()

		repo := newEntryRepositoryStub()
		existing := seed(t, repo, "user-1")
		svc := NewEntryService(repo, nil, clock, nil)

		start := now.Add(-time.Hour)
		_, err := svc.UpdateEntry(context.Background(), UpdateEntryParams{
			Principal: Principal{UserID: "intruder"},
			EntryID:   existing.ID,
			Input:     EntryInput{StartTime: start},
		})
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("maps a missing entry to ErrNotFound", func(t *testing.T) {
		t.Parallel()

		svc := NewEntryService(newEntryRepositoryStub(), nil, clock, nil)
		_, err := svc.UpdateEntry(context.Background(), UpdateEntryParams{
			Principal: Principal{UserID: "user-1"},
			EntryID:   9999,
			Input:     EntryInput{StartTime: now.Add(-time.Hour)},
		})
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("deletes owned entries and audits the removal", func(t *testing.T) {
		t.Parallel()

		repo := newEntryRepositoryStub()
		existing := seed(t, repo, "user-1")
		audit := &auditSinkStub{}
		svc := NewEntryService(repo, audit, clock, nil)

		if err := svc.DeleteEntry(context.Background(), DeleteEntryParams{
			Principal: Principal{UserID: "user-1"},
			EntryID:   existing.ID,
		}); err != nil {
			t.Fatalf("DeleteEntry failed: %v", err)
		}
		if len(repo.deleted) != 1 || repo.deleted[0] != existing.ID {
			t.Fatalf("expected deletion of %d, got %v", existing.ID, repo.deleted)
		}
		if len(audit.entries) != 1 || audit.entries[0].Action != AuditActionDelete {
			t.Fatalf("expected one DELETE audit entry, got %+v", audit.entries)
		}
	})

	t.Run("refuses deleting entries outside the horizon for non-admins", func(t *testing.T) {
		t.Parallel()

		repo := newEntryRepositoryStub()
		start := now.Add(-10 * 24 * time.Hour)
		end := start.Add(time.Hour)
		old, err := repo.CreateEntry(context.Background(), TimeEntry{UserID: "user-1", StartTime: start, EndTime: &end})
		if err != nil {
			t.Fatalf("seed entry: %v", err)
		}

		svc := NewEntryService(repo, nil, clock, nil)
		err = svc.DeleteEntry(context.Background(), DeleteEntryParams{
			Principal: Principal{UserID: "user-1"},
			EntryID:   old.ID,
		})
		fieldError(t, err, "start_time")
	})
}

func TestEntryService_Timer(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, time.June, 2, 9, 0, 0, 0, time.UTC)

	t.Run("start opens a single running entry", func(t *testing.T) {
		t.Parallel()

		repo := newEntryRepositoryStub()
		svc := NewEntryService(repo, &auditSinkStub{}, func() time.Time { return now }, nil)

		entry, err := svc.StartTimer(context.Background(), TimerParams{Principal: Principal{UserID: "user-1"}})
		if err != nil {
			t.Fatalf("StartTimer failed: %v", err)
		}
		if entry.EndTime != nil {
			t.Fatalf("expected an open entry, got %+v", entry)
		}

		if _, err := svc.StartTimer(context.Background(), TimerParams{Principal: Principal{UserID: "user-1"}}); !errors.Is(err, ErrTimerRunning) {
			t.Fatalf("expected ErrTimerRunning, got %v", err)
		}
	})

	t.Run("stop closes the open entry and fixes the duration", func(t *testing.T) {
		t.Parallel()

		clock := testfixtures.NewClock(now)
		repo := newEntryRepositoryStub()
		svc := NewEntryService(repo, &auditSinkStub{}, clock.NowFunc(), nil)

		if _, err := svc.StartTimer(context.Background(), TimerParams{Principal: Principal{UserID: "user-1"}}); err != nil {
			t.Fatalf("StartTimer failed: %v", err)
		}

		clock.Advance(95 * time.Minute)
		closed, err := svc.StopTimer(context.Background(), TimerParams{Principal: Principal{UserID: "user-1"}})
		if err != nil {
			t.Fatalf("StopTimer failed: %v", err)
		}
		if closed.EndTime == nil || closed.DurationSeconds != 95*60 {
			t.Fatalf("unexpected closed entry %+v", closed)
		}
	})

	t.Run("stop without a running timer is a conflict", func(t *testing.T) {
		t.Parallel()

		svc := NewEntryService(newEntryRepositoryStub(), nil, func() time.Time { return now }, nil)
		_, err := svc.StopTimer(context.Background(), TimerParams{Principal: Principal{UserID: "user-1"}})
		if !errors.Is(err, ErrNoTimerRunning) {
			t.Fatalf("expected ErrNoTimerRunning, got %v", err)
		}
	})
}
