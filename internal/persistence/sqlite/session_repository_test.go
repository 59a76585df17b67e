package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/timeclock/internal/persistence"
	"github.com/example/timeclock/internal/testfixtures"
)

func TestSessionRepository_Lifecycle(t *testing.T) {
	t.Parallel()

	h := testfixtures.NewSQLiteHarness(t)
	user := seedUser(t, h)
	ctx := context.Background()

	now := time.Date(2025, time.June, 2, 9, 0, 0, 0, time.UTC)
	session := persistence.Session{
		ID:        "session-1",
		UserID:    user.ID,
		Token:     "token-1",
		ExpiresAt: now.Add(24 * time.Hour),
		CreatedAt: now,
		UpdatedAt: now,
	}

	created, err := h.Sessions.CreateSession(ctx, session)
	require.NoError(t, err)
	assert.Equal(t, session.Token, created.Token)

	got, err := h.Sessions.GetSession(ctx, "token-1")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.UserID)
	assert.Nil(t, got.RevokedAt)

	require.NoError(t, h.Sessions.RevokeSession(ctx, "token-1", now.Add(time.Hour)))
	revoked, err := h.Sessions.GetSession(ctx, "token-1")
	require.NoError(t, err)
	require.NotNil(t, revoked.RevokedAt)
	assert.True(t, revoked.RevokedAt.Equal(now.Add(time.Hour)))

	// Revoking twice is a not-found: the row is no longer live.
	assert.ErrorIs(t, h.Sessions.RevokeSession(ctx, "token-1", now.Add(2*time.Hour)), persistence.ErrNotFound)
}

func TestSessionRepository_DeleteExpiredSessions(t *testing.T) {
	t.Parallel()

	h := testfixtures.NewSQLiteHarness(t)
	user := seedUser(t, h)
	ctx := context.Background()

	now := time.Date(2025, time.June, 2, 9, 0, 0, 0, time.UTC)
	stale := persistence.Session{
		ID: "stale", UserID: user.ID, Token: "stale-token",
		ExpiresAt: now.Add(-time.Minute), CreatedAt: now.Add(-25 * time.Hour), UpdatedAt: now.Add(-25 * time.Hour),
	}
	live := persistence.Session{
		ID: "live", UserID: user.ID, Token: "live-token",
		ExpiresAt: now.Add(time.Hour), CreatedAt: now, UpdatedAt: now,
	}
	_, err := h.Sessions.CreateSession(ctx, stale)
	require.NoError(t, err)
	_, err = h.Sessions.CreateSession(ctx, live)
	require.NoError(t, err)

	require.NoError(t, h.Sessions.DeleteExpiredSessions(ctx, now))

	_, err = h.Sessions.GetSession(ctx, "stale-token")
	assert.ErrorIs(t, err, persistence.ErrNotFound)
	_, err = h.Sessions.GetSession(ctx, "live-token")
	assert.NoError(t, err)
}

func TestAuditLogRepository_Record(t *testing.T) {
	t.Parallel()

	h := testfixtures.NewSQLiteHarness(t)
	user := seedUser(t, h)
	ctx := context.Background()

	entry, err := h.Audit.Record(ctx, persistence.AuditLogEntry{
		UserID:    user.ID,
		Action:    "AUTO_BREAK_ADDED",
		Entity:    "BREAK",
		EntityID:  7,
		Details:   `{"durationSeconds":1800}`,
		IPAddress: "10.0.0.1",
	})
	require.NoError(t, err)
	assert.NotZero(t, entry.ID)
	assert.False(t, entry.CreatedAt.IsZero())
}
