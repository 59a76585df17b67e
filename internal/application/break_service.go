package application

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// BreakSettingsProvider lists every user together with its break configuration.
type BreakSettingsProvider interface {
	ListUsersWithSettings(ctx context.Context) ([]UserWithSettings, error)
}

// TimeEntryStore captures the store interactions needed by the engine.
type TimeEntryStore interface {
	// ListEntriesInRange returns entries of one kind fully contained in the
	// half-open window [start, end), ordered by start time.
	ListEntriesInRange(ctx context.Context, userID string, start, end time.Time, isBreak bool) ([]TimeEntry, error)
	// ReplaceEntryWithSplit atomically removes the original entry and inserts
	// the replacements. It returns ErrNotFound without side effects when the
	// original row was concurrently removed or modified away.
	ReplaceEntryWithSplit(ctx context.Context, originalID int64, replacements []TimeEntry) ([]TimeEntry, error)
}

// AuditSink records successful mutations.
type AuditSink interface {
	Record(ctx context.Context, entry AuditEntry) error
}

// BreakService is the automatic break insertion engine. For each user with
// auto insertion enabled it locates the single closed work entry of the
// target day, splits it around a break window centered on the entry's
// midpoint, and records the insertion.
type BreakService struct {
	settings BreakSettingsProvider
	entries  TimeEntryStore
	audit    AuditSink
	resolver *DayWindowResolver
	now      func() time.Time
	logger   *slog.Logger
}

// NewBreakService wires dependencies for the break insertion engine.
func NewBreakService(settings BreakSettingsProvider, entries TimeEntryStore, audit AuditSink, resolver *DayWindowResolver, now func() time.Time, logger *slog.Logger) *BreakService {
	if resolver == nil {
		resolver = NewDayWindowResolver(nil)
	}
	if now == nil {
		now = time.Now
	}
	return &BreakService{
		settings: settings,
		entries:  entries,
		audit:    audit,
		resolver: resolver,
		now:      now,
		logger:   defaultLogger(logger),
	}
}

// InsertAutomaticBreaks runs one batch over all users for the target day.
//
// The batch is best effort: per-user store failures are collected in the
// report and processing continues with the next user. Users the engine
// deliberately leaves untouched appear in the report's skip list with a
// reason. Context cancellation is honored between users.
func (s *BreakService) InsertAutomaticBreaks(ctx context.Context, params InsertBreaksParams) (BreakInsertionReport, error) {
	if s == nil {
		return BreakInsertionReport{}, fmt.Errorf("BreakService is nil")
	}
	if s.settings == nil || s.entries == nil {
		return BreakInsertionReport{}, fmt.Errorf("break service not fully configured")
	}

	// An explicit target date is a civil date: it names that calendar day in
	// each user's own zone. Only the default "today" path starts from an
	// instant, since there is no written date to honor.
	explicitDate := !params.TargetDate.IsZero()
	targetDate := params.TargetDate
	if !explicitDate {
		targetDate = s.now()
	}

	logger := serviceLogger(ctx, s.logger, "BreakService", "InsertAutomaticBreaks",
		"target_date", targetDate.Format("2006-01-02"),
	)

	users, err := s.settings.ListUsersWithSettings(ctx)
	if err != nil {
		return BreakInsertionReport{}, fmt.Errorf("failed to list users with settings: %w", err)
	}

	report := BreakInsertionReport{}
	for _, user := range users {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if !user.Setting.AutoInsertEnabled {
			continue
		}

		result, skip, err := s.processUser(ctx, user, targetDate, explicitDate, params.IPAddress)
		switch {
		case err != nil:
			logger.ErrorContext(ctx, "break insertion failed for user",
				"user_id", user.UserID, "error", err)
			report.Errors = append(report.Errors, BreakInsertionFailure{
				UserID:  user.UserID,
				Message: err.Error(),
			})
		case skip != "":
			logger.InfoContext(ctx, "break insertion skipped",
				"user_id", user.UserID, "reason", string(skip))
			report.Skipped = append(report.Skipped, BreakInsertionSkip{
				UserID: user.UserID,
				Reason: skip,
			})
		default:
			report.Breaks = append(report.Breaks, result)
			report.ProcessedUsers++
		}
	}

	logger.InfoContext(ctx, "break insertion batch completed",
		"processed", report.ProcessedUsers,
		"skipped", len(report.Skipped),
		"errors", len(report.Errors),
	)
	return report, nil
}

// processUser applies the eligibility gates and performs the split for one
// user. A non-empty skip reason means the user's data was left untouched.
func (s *BreakService) processUser(ctx context.Context, user UserWithSettings, targetDate time.Time, explicitDate bool, ipAddress string) (BreakInsertionResult, SkipReason, error) {
	if user.Setting.BreakDurationMinutes <= 0 {
		return BreakInsertionResult{}, SkipZeroBreakDuration, nil
	}

	var dayStart, dayEnd time.Time
	if explicitDate {
		year, month, dayOfMonth := targetDate.Date()
		dayStart, dayEnd = s.resolver.ResolveCivil(year, month, dayOfMonth, user.Timezone)
	} else {
		dayStart, dayEnd = s.resolver.Resolve(targetDate, user.Timezone)
	}

	work, err := s.entries.ListEntriesInRange(ctx, user.UserID, dayStart, dayEnd, false)
	if err != nil {
		return BreakInsertionResult{}, "", fmt.Errorf("failed to query work entries: %w", err)
	}

	// Exactly one closed entry per day is eligible. With zero entries there
	// is nothing to split; with several the target interval is ambiguous and
	// the engine refuses to guess.
	switch {
	case len(work) == 0:
		return BreakInsertionResult{}, SkipNoEntries, nil
	case len(work) > 1:
		return BreakInsertionResult{}, SkipMultipleEntries, nil
	}

	entry := work[0]
	if entry.EndTime == nil {
		return BreakInsertionResult{}, SkipEntryOpen, nil
	}

	existing, err := s.entries.ListEntriesInRange(ctx, user.UserID, dayStart, dayEnd, true)
	if err != nil {
		return BreakInsertionResult{}, "", fmt.Errorf("failed to query existing breaks: %w", err)
	}
	if len(existing) > 0 {
		return BreakInsertionResult{}, SkipBreakExists, nil
	}

	startMs := entry.StartTime.UnixMilli()
	endMs := entry.EndTime.UnixMilli()
	midpointMs := startMs + (endMs-startMs)/2

	breakMs := int64(user.Setting.BreakDurationMinutes) * 60 * 1000
	breakStartMs := midpointMs - breakMs/2
	breakEndMs := breakStartMs + breakMs

	// The break must fit inside the entry. Never clamp: a break longer than
	// the tracked interval simply is not inserted.
	if breakStartMs < startMs || breakEndMs > endMs {
		return BreakInsertionResult{}, SkipBreakDoesNotFit, nil
	}

	breakStart := time.UnixMilli(breakStartMs).UTC()
	breakEnd := time.UnixMilli(breakEndMs).UTC()
	breakSeconds := int64(user.Setting.BreakDurationMinutes) * 60
	firstSeconds := (breakStartMs - startMs) / 1000
	secondSeconds := (endMs - breakEndMs) / 1000

	replacements := []TimeEntry{
		{
			UserID:          user.UserID,
			StartTime:       entry.StartTime,
			EndTime:         &breakStart,
			DurationSeconds: firstSeconds,
		},
		{
			UserID:          user.UserID,
			StartTime:       breakStart,
			EndTime:         &breakEnd,
			DurationSeconds: breakSeconds,
			IsBreak:         true,
		},
		{
			UserID:          user.UserID,
			StartTime:       breakEnd,
			EndTime:         entry.EndTime,
			DurationSeconds: secondSeconds,
		},
	}

	created, err := s.entries.ReplaceEntryWithSplit(ctx, entry.ID, replacements)
	if err != nil {
		if isNotFoundError(err) {
			// The entry disappeared between the read and the delete; a
			// manual edit won the race. Leave the user for the next run.
			return BreakInsertionResult{}, SkipEntryConflict, nil
		}
		return BreakInsertionResult{}, "", fmt.Errorf("failed to split entry %d: %w", entry.ID, err)
	}

	var breakID int64
	for _, c := range created {
		if c.IsBreak {
			breakID = c.ID
			break
		}
	}

	if s.audit != nil {
		details, _ := json.Marshal(map[string]any{
			"breakStartTime":  breakStart.Format(time.RFC3339Nano),
			"breakEndTime":    breakEnd.Format(time.RFC3339Nano),
			"durationSeconds": breakSeconds,
			"splitEntryId":    entry.ID,
		})
		if err := s.audit.Record(ctx, AuditEntry{
			UserID:    user.UserID,
			Action:    AuditActionAutoBreakAdded,
			Entity:    AuditEntityBreak,
			EntityID:  breakID,
			Details:   string(details),
			IPAddress: ipAddress,
		}); err != nil {
			// The split committed; losing the audit row is logged but does
			// not undo the insertion.
			serviceLogger(ctx, s.logger, "BreakService", "InsertAutomaticBreaks").
				ErrorContext(ctx, "failed to record audit entry", "user_id", user.UserID, "error", err)
		}
	}

	return BreakInsertionResult{
		UserID:               user.UserID,
		UserName:             user.DisplayName,
		BreakID:              breakID,
		BreakStartTime:       breakStart,
		BreakEndTime:         breakEnd,
		BreakDurationSeconds: breakSeconds,
	}, "", nil
}
