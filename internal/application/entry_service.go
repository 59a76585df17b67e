package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/timeclock/internal/persistence"
)

// selfServiceEditWindow bounds how far back non-admin users may create or
// modify entries.
const selfServiceEditWindow = 7 * 24 * time.Hour

// TimeEntryRepository captures the store interactions needed by the
// manual/admin mutators and the live tracking operations.
type TimeEntryRepository interface {
	CreateEntry(ctx context.Context, entry TimeEntry) (TimeEntry, error)
	GetEntry(ctx context.Context, id int64) (TimeEntry, error)
	UpdateEntry(ctx context.Context, entry TimeEntry) (TimeEntry, error)
	DeleteEntry(ctx context.Context, id int64) error
	ListEntries(ctx context.Context, userID string, from, to time.Time) ([]TimeEntry, error)
	FindOpenEntry(ctx context.Context, userID string) (TimeEntry, error)
}

// EntryService enforces the ledger invariants for manual and admin time
// entry mutations: end after start, no future instants, a bounded edit
// horizon for self-service changes, and a server-side recomputed duration.
type EntryService struct {
	entries TimeEntryRepository
	audit   AuditSink
	now     func() time.Time
	logger  *slog.Logger
}

// NewEntryService wires dependencies for time entry mutations.
func NewEntryService(entries TimeEntryRepository, audit AuditSink, now func() time.Time, logger *slog.Logger) *EntryService {
	if now == nil {
		now = time.Now
	}
	return &EntryService{
		entries: entries,
		audit:   audit,
		now:     now,
		logger:  defaultLogger(logger),
	}
}

// CreateEntry validates and persists a manually entered interval.
func (s *EntryService) CreateEntry(ctx context.Context, params CreateEntryParams) (TimeEntry, error) {
	if s == nil || s.entries == nil {
		return TimeEntry{}, fmt.Errorf("entry service not configured")
	}

	input := params.Input
	if input.UserID == "" {
		input.UserID = params.Principal.UserID
	}
	if input.UserID != params.Principal.UserID && !params.Principal.IsAdmin {
		return TimeEntry{}, ErrUnauthorized
	}

	now := s.now()
	vErr := &ValidationError{}
	s.validateInterval(input.StartTime, input.EndTime, now, vErr)
	if !params.Principal.IsAdmin {
		s.validateEditHorizon(input.StartTime, now, vErr)
	}
	if vErr.HasErrors() {
		return TimeEntry{}, vErr
	}

	entry := TimeEntry{
		UserID:          input.UserID,
		StartTime:       input.StartTime.UTC(),
		EndTime:         cloneTimePtr(input.EndTime),
		DurationSeconds: computeDurationSeconds(input.StartTime, input.EndTime),
		IsBreak:         input.IsBreak,
	}

	created, err := s.entries.CreateEntry(ctx, entry)
	if err != nil {
		return TimeEntry{}, mapStoreError(err)
	}

	s.recordAudit(ctx, AuditEntry{
		UserID:    params.Principal.UserID,
		Action:    AuditActionCreate,
		Entity:    entryEntity(created),
		EntityID:  created.ID,
		Details:   entryChangeDetails(nil, &created),
		IPAddress: params.IPAddress,
	})

	return created, nil
}

// UpdateEntry validates and rewrites an existing interval.
func (s *EntryService) UpdateEntry(ctx context.Context, params UpdateEntryParams) (TimeEntry, error) {
	if s == nil || s.entries == nil {
		return TimeEntry{}, fmt.Errorf("entry service not configured")
	}

	existing, err := s.entries.GetEntry(ctx, params.EntryID)
	if err != nil {
		return TimeEntry{}, mapStoreError(err)
	}
	if existing.UserID != params.Principal.UserID && !params.Principal.IsAdmin {
		return TimeEntry{}, ErrUnauthorized
	}

	now := s.now()
	vErr := &ValidationError{}
	s.validateInterval(params.Input.StartTime, params.Input.EndTime, now, vErr)
	if !params.Principal.IsAdmin {
		// Both the entry being edited and the proposed replacement must
		// fall inside the trailing edit window.
		s.validateEditHorizon(existing.StartTime, now, vErr)
		s.validateEditHorizon(params.Input.StartTime, now, vErr)
	}
	if vErr.HasErrors() {
		return TimeEntry{}, vErr
	}

	updated := existing
	updated.StartTime = params.Input.StartTime.UTC()
	updated.EndTime = cloneTimePtr(params.Input.EndTime)
	updated.DurationSeconds = computeDurationSeconds(params.Input.StartTime, params.Input.EndTime)
	updated.IsBreak = params.Input.IsBreak

	persisted, err := s.entries.UpdateEntry(ctx, updated)
	if err != nil {
		return TimeEntry{}, mapStoreError(err)
	}

	s.recordAudit(ctx, AuditEntry{
		UserID:    params.Principal.UserID,
		Action:    AuditActionUpdate,
		Entity:    entryEntity(persisted),
		EntityID:  persisted.ID,
		Details:   entryChangeDetails(&existing, &persisted),
		IPAddress: params.IPAddress,
	})

	return persisted, nil
}

// DeleteEntry removes an interval after the same ownership and horizon checks.
func (s *EntryService) DeleteEntry(ctx context.Context, params DeleteEntryParams) error {
	if s == nil || s.entries == nil {
		return fmt.Errorf("entry service not configured")
	}

	existing, err := s.entries.GetEntry(ctx, params.EntryID)
	if err != nil {
		return mapStoreError(err)
	}
	if existing.UserID != params.Principal.UserID && !params.Principal.IsAdmin {
		return ErrUnauthorized
	}

	if !params.Principal.IsAdmin {
		vErr := &ValidationError{}
		s.validateEditHorizon(existing.StartTime, s.now(), vErr)
		if vErr.HasErrors() {
			return vErr
		}
	}

	if err := s.entries.DeleteEntry(ctx, params.EntryID); err != nil {
		return mapStoreError(err)
	}

	s.recordAudit(ctx, AuditEntry{
		UserID:    params.Principal.UserID,
		Action:    AuditActionDelete,
		Entity:    entryEntity(existing),
		EntityID:  existing.ID,
		Details:   entryChangeDetails(&existing, nil),
		IPAddress: params.IPAddress,
	})

	return nil
}

// ListEntries returns a user's entries inside the requested window.
func (s *EntryService) ListEntries(ctx context.Context, params ListEntriesParams) ([]TimeEntry, error) {
	if s == nil || s.entries == nil {
		return nil, fmt.Errorf("entry service not configured")
	}

	userID := params.UserID
	if userID == "" {
		userID = params.Principal.UserID
	}
	if userID != params.Principal.UserID && !params.Principal.IsAdmin {
		return nil, ErrUnauthorized
	}

	entries, err := s.entries.ListEntries(ctx, userID, params.From, params.To)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return entries, nil
}

// StartTimer opens a live tracking interval for the principal. Only one
// interval may be open per user at a time.
func (s *EntryService) StartTimer(ctx context.Context, params TimerParams) (TimeEntry, error) {
	if s == nil || s.entries == nil {
		return TimeEntry{}, fmt.Errorf("entry service not configured")
	}

	if _, err := s.entries.FindOpenEntry(ctx, params.Principal.UserID); err == nil {
		return TimeEntry{}, ErrTimerRunning
	} else if !isNotFoundError(err) {
		return TimeEntry{}, mapStoreError(err)
	}

	created, err := s.entries.CreateEntry(ctx, TimeEntry{
		UserID:    params.Principal.UserID,
		StartTime: s.now().UTC(),
	})
	if err != nil {
		return TimeEntry{}, mapStoreError(err)
	}

	s.recordAudit(ctx, AuditEntry{
		UserID:    params.Principal.UserID,
		Action:    AuditActionStart,
		Entity:    AuditEntityTimeEntry,
		EntityID:  created.ID,
		Details:   entryChangeDetails(nil, &created),
		IPAddress: params.IPAddress,
	})

	return created, nil
}

// StopTimer closes the principal's open interval and fixes its duration.
func (s *EntryService) StopTimer(ctx context.Context, params TimerParams) (TimeEntry, error) {
	if s == nil || s.entries == nil {
		return TimeEntry{}, fmt.Errorf("entry service not configured")
	}

	open, err := s.entries.FindOpenEntry(ctx, params.Principal.UserID)
	if err != nil {
		if isNotFoundError(err) {
			return TimeEntry{}, ErrNoTimerRunning
		}
		return TimeEntry{}, mapStoreError(err)
	}

	end := s.now().UTC()
	closed := open
	closed.EndTime = &end
	closed.DurationSeconds = computeDurationSeconds(open.StartTime, &end)

	persisted, err := s.entries.UpdateEntry(ctx, closed)
	if err != nil {
		return TimeEntry{}, mapStoreError(err)
	}

	s.recordAudit(ctx, AuditEntry{
		UserID:    params.Principal.UserID,
		Action:    AuditActionStop,
		Entity:    AuditEntityTimeEntry,
		EntityID:  persisted.ID,
		Details:   entryChangeDetails(&open, &persisted),
		IPAddress: params.IPAddress,
	})

	return persisted, nil
}

func (s *EntryService) validateInterval(start time.Time, end *time.Time, now time.Time, vErr *ValidationError) {
	if start.IsZero() {
		vErr.add("start_time", "start time is required")
		return
	}
	if start.After(now) {
		vErr.add("start_time", "start time must not be in the future")
	}
	if end != nil {
		if !end.After(start) {
			vErr.add("end_time", "end time must be after start time")
		}
		if end.After(now) {
			vErr.add("end_time", "end time must not be in the future")
		}
	}
}

func (s *EntryService) validateEditHorizon(start time.Time, now time.Time, vErr *ValidationError) {
	if start.IsZero() {
		return
	}
	if start.Before(now.Add(-selfServiceEditWindow)) {
		vErr.add("start_time", "entry is outside the editable window")
	}
}

func (s *EntryService) recordAudit(ctx context.Context, entry AuditEntry) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		serviceLogger(ctx, s.logger, "EntryService", entry.Action).
			ErrorContext(ctx, "failed to record audit entry", "entity_id", entry.EntityID, "error", err)
	}
}

// computeDurationSeconds derives the stored duration from the interval
// bounds. Client supplied durations are never trusted.
func computeDurationSeconds(start time.Time, end *time.Time) int64 {
	if end == nil {
		return 0
	}
	ms := end.UnixMilli() - start.UnixMilli()
	if ms < 0 {
		return 0
	}
	return ms / 1000
}

func entryEntity(entry TimeEntry) string {
	if entry.IsBreak {
		return AuditEntityBreak
	}
	return AuditEntityTimeEntry
}

// entryChangeDetails serializes before/after snapshots so the audit trail can
// reconstruct what changed.
func entryChangeDetails(before, after *TimeEntry) string {
	snapshot := func(e *TimeEntry) map[string]any {
		if e == nil {
			return nil
		}
		m := map[string]any{
			"startTime":       e.StartTime.Format(time.RFC3339Nano),
			"durationSeconds": e.DurationSeconds,
			"isBreak":         e.IsBreak,
		}
		if e.EndTime != nil {
			m["endTime"] = e.EndTime.Format(time.RFC3339Nano)
		}
		return m
	}
	details, _ := json.Marshal(map[string]any{
		"before": snapshot(before),
		"after":  snapshot(after),
	})
	return string(details)
}

func cloneTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	clone := t.UTC()
	return &clone
}

func mapStoreError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return ErrAlreadyExists
	case errors.Is(err, persistence.ErrConstraintViolation):
		vErr := &ValidationError{}
		vErr.add("entry", "entry violates storage constraints")
		return vErr
	case errors.Is(err, persistence.ErrForeignKeyViolation):
		vErr := &ValidationError{}
		vErr.add("user_id", "referenced user does not exist")
		return vErr
	}
	return err
}

func isNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, persistence.ErrNotFound)
}
