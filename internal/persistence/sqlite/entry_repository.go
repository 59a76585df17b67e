package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/example/timeclock/internal/persistence"
)

// TimeEntryRepository implements persistence.TimeEntryRepository using SQLite.
type TimeEntryRepository struct {
	pool *ConnectionPool
}

// NewTimeEntryRepository creates a new SQLite time entry repository.
func NewTimeEntryRepository(pool *ConnectionPool) *TimeEntryRepository {
	return &TimeEntryRepository{pool: pool}
}

const entryColumns = `id, user_id, start_time, end_time, duration_seconds, is_break, created_at, updated_at`

// CreateEntry inserts a new tracked time row and returns it with its id.
func (r *TimeEntryRepository) CreateEntry(ctx context.Context, entry persistence.TimeEntry) (persistence.TimeEntry, error) {
	if entry.UserID == "" {
		return persistence.TimeEntry{}, persistence.ErrConstraintViolation
	}

	now := time.Now().UTC()
	entry.CreatedAt = now
	entry.UpdatedAt = now

	result, err := r.pool.db.ExecContext(ctx, `
		INSERT INTO time_entries (user_id, start_time, end_time, duration_seconds, is_break, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.UserID,
		formatTime(entry.StartTime),
		nullableTime(entry.EndTime),
		entry.DurationSeconds,
		entry.IsBreak,
		formatTime(entry.CreatedAt),
		formatTime(entry.UpdatedAt),
	)
	if err != nil {
		return persistence.TimeEntry{}, mapSQLiteError(err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return persistence.TimeEntry{}, fmt.Errorf("failed to read inserted entry id: %w", err)
	}
	entry.ID = id
	return entry, nil
}

// GetEntry retrieves a single entry by id.
func (r *TimeEntryRepository) GetEntry(ctx context.Context, id int64) (persistence.TimeEntry, error) {
	row := r.pool.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM time_entries WHERE id = ?`, id)
	entry, err := scanEntry(row)
	if err != nil {
		return persistence.TimeEntry{}, mapSQLiteError(err)
	}
	return entry, nil
}

// UpdateEntry rewrites an existing row. The row must already exist.
func (r *TimeEntryRepository) UpdateEntry(ctx context.Context, entry persistence.TimeEntry) (persistence.TimeEntry, error) {
	entry.UpdatedAt = time.Now().UTC()

	result, err := r.pool.db.ExecContext(ctx, `
		UPDATE time_entries
		SET start_time = ?, end_time = ?, duration_seconds = ?, is_break = ?, updated_at = ?
		WHERE id = ?`,
		formatTime(entry.StartTime),
		nullableTime(entry.EndTime),
		entry.DurationSeconds,
		entry.IsBreak,
		formatTime(entry.UpdatedAt),
		entry.ID,
	)
	if err != nil {
		return persistence.TimeEntry{}, mapSQLiteError(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.TimeEntry{}, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.TimeEntry{}, persistence.ErrNotFound
	}
	return entry, nil
}

// DeleteEntry removes a row by id, reporting ErrNotFound when it is missing.
func (r *TimeEntryRepository) DeleteEntry(ctx context.Context, id int64) error {
	result, err := r.pool.db.ExecContext(ctx, `DELETE FROM time_entries WHERE id = ?`, id)
	if err != nil {
		return mapSQLiteError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// ListEntriesInRange returns entries fully contained in the half-open window,
// ordered by start time. Open entries are matched on their start time alone.
func (r *TimeEntryRepository) ListEntriesInRange(ctx context.Context, filter persistence.EntryFilter) ([]persistence.TimeEntry, error) {
	query := `
		SELECT ` + entryColumns + `
		FROM time_entries
		WHERE user_id = ?
		  AND start_time >= ? AND start_time < ?
		  AND (end_time IS NULL OR end_time <= ?)`
	args := []any{
		filter.UserID,
		formatTime(filter.Start),
		formatTime(filter.End),
		formatTime(filter.End),
	}
	if filter.IsBreak != nil {
		query += ` AND is_break = ?`
		args = append(args, *filter.IsBreak)
	}
	query += ` ORDER BY start_time ASC, id ASC`

	rows, err := r.pool.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapSQLiteError(err)
	}
	defer rows.Close()

	var entries []persistence.TimeEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, mapSQLiteError(err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, mapSQLiteError(err)
	}
	return entries, nil
}

// FindOpenEntry returns the most recent entry without an end time for a user.
func (r *TimeEntryRepository) FindOpenEntry(ctx context.Context, userID string) (persistence.TimeEntry, error) {
	row := r.pool.db.QueryRowContext(ctx, `
		SELECT `+entryColumns+`
		FROM time_entries
		WHERE user_id = ? AND end_time IS NULL
		ORDER BY start_time DESC, id DESC
		LIMIT 1`, userID)
	entry, err := scanEntry(row)
	if err != nil {
		return persistence.TimeEntry{}, mapSQLiteError(err)
	}
	return entry, nil
}

// ReplaceEntryWithSplit deletes the original entry and inserts the
// replacement rows in one transaction. When the original row has already
// been removed by a concurrent edit the delete affects zero rows and the
// whole operation rolls back with ErrNotFound.
func (r *TimeEntryRepository) ReplaceEntryWithSplit(ctx context.Context, originalID int64, replacements []persistence.TimeEntry) ([]persistence.TimeEntry, error) {
	if len(replacements) == 0 {
		return nil, persistence.ErrConstraintViolation
	}

	created := make([]persistence.TimeEntry, 0, len(replacements))
	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `DELETE FROM time_entries WHERE id = ?`, originalID)
		if err != nil {
			return mapSQLiteError(err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if affected == 0 {
			return persistence.ErrNotFound
		}

		now := time.Now().UTC()
		for _, entry := range replacements {
			entry.CreatedAt = now
			entry.UpdatedAt = now
			res, err := tx.ExecContext(ctx, `
				INSERT INTO time_entries (user_id, start_time, end_time, duration_seconds, is_break, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				entry.UserID,
				formatTime(entry.StartTime),
				nullableTime(entry.EndTime),
				entry.DurationSeconds,
				entry.IsBreak,
				formatTime(entry.CreatedAt),
				formatTime(entry.UpdatedAt),
			)
			if err != nil {
				return mapSQLiteError(err)
			}
			id, err := res.LastInsertId()
			if err != nil {
				return fmt.Errorf("failed to read inserted entry id: %w", err)
			}
			entry.ID = id
			created = append(created, entry)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return nil, persistence.ErrNotFound
		}
		return nil, err
	}
	return created, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (persistence.TimeEntry, error) {
	var entry persistence.TimeEntry
	var startStr, createdStr, updatedStr string
	var endStr sql.NullString

	if err := row.Scan(
		&entry.ID,
		&entry.UserID,
		&startStr,
		&endStr,
		&entry.DurationSeconds,
		&entry.IsBreak,
		&createdStr,
		&updatedStr,
	); err != nil {
		return persistence.TimeEntry{}, err
	}

	var err error
	if entry.StartTime, err = parseTime(startStr); err != nil {
		return persistence.TimeEntry{}, err
	}
	if endStr.Valid {
		end, err := parseTime(endStr.String)
		if err != nil {
			return persistence.TimeEntry{}, err
		}
		entry.EndTime = &end
	}
	if entry.CreatedAt, err = parseTime(createdStr); err != nil {
		return persistence.TimeEntry{}, err
	}
	if entry.UpdatedAt, err = parseTime(updatedStr); err != nil {
		return persistence.TimeEntry{}, err
	}
	return entry, nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}
