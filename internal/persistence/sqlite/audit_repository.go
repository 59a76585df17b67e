package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/example/timeclock/internal/persistence"
)

// AuditLogRepository implements persistence.AuditLogRepository using SQLite.
// The table is append-only; nothing in the service updates or deletes rows.
type AuditLogRepository struct {
	pool *ConnectionPool
}

// NewAuditLogRepository creates a new SQLite audit log repository.
func NewAuditLogRepository(pool *ConnectionPool) *AuditLogRepository {
	return &AuditLogRepository{pool: pool}
}

// Record appends one audit entry and returns it with its assigned id.
func (r *AuditLogRepository) Record(ctx context.Context, entry persistence.AuditLogEntry) (persistence.AuditLogEntry, error) {
	if entry.UserID == "" || entry.Action == "" || entry.Entity == "" {
		return persistence.AuditLogEntry{}, persistence.ErrConstraintViolation
	}

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	result, err := r.pool.db.ExecContext(ctx, `
		INSERT INTO audit_log (user_id, action, entity, entity_id, details, ip_address, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.UserID,
		entry.Action,
		entry.Entity,
		entry.EntityID,
		entry.Details,
		entry.IPAddress,
		formatTime(entry.CreatedAt),
	)
	if err != nil {
		return persistence.AuditLogEntry{}, mapSQLiteError(err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return persistence.AuditLogEntry{}, fmt.Errorf("failed to read inserted audit id: %w", err)
	}
	entry.ID = id
	return entry, nil
}
