package authkitpg

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tyemirov/shuttleup/internal/authkit"
)

var _ authkit.SessionStore = (*PostgresSessionStore)(nil)

// PostgresSessionStore persists the session registry in PostgreSQL.
type PostgresSessionStore struct {
	pool  *pgxpool.Pool
	clock authkit.Clock
}

// NewPostgresSessionStore constructs a Postgres store. Call EnsureSchema first.
func NewPostgresSessionStore(pool *pgxpool.Pool, clock authkit.Clock) *PostgresSessionStore {
	if clock == nil {
		clock = authkit.NewSystemClock()
	}
	return &PostgresSessionStore{pool: pool, clock: clock}
}

// Record inserts a session row.
func (store *PostgresSessionStore) Record(ctx context.Context, sessionID string, userID string, expiresUnix int64) error {
	if err := requireSessionID("record", sessionID); err != nil {
		return err
	}
	_, execErr := store.pool.Exec(ctx, `
INSERT INTO sessions (session_id, user_id, expires_unix, revoked_at_unix, issued_at_unix)
VALUES ($1, $2, $3, 0, $4)
`, sessionID, userID, expiresUnix, store.clock.Now().Unix())
	if execErr != nil {
		return fmt.Errorf("session_store.record.pgx: %w", execErr)
	}
	return nil
}

// Check reports whether the session is live.
func (store *PostgresSessionStore) Check(ctx context.Context, sessionID string) error {
	if err := requireSessionID("check", sessionID); err != nil {
		return err
	}
	var expiresUnix int64
	var revokedAt int64
	row := store.pool.QueryRow(ctx, `
SELECT expires_unix, revoked_at_unix
FROM sessions
WHERE session_id = $1
`, sessionID)
	if scanErr := row.Scan(&expiresUnix, &revokedAt); scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return fmt.Errorf("session_store.check.pgx: %w", authkit.ErrSessionNotFound)
		}
		return fmt.Errorf("session_store.check.pgx: %w", scanErr)
	}
	if revokedAt != 0 {
		return fmt.Errorf("session_store.check.pgx: %w", authkit.ErrSessionRevoked)
	}
	if expiresUnix < store.clock.Now().Unix() {
		return fmt.Errorf("session_store.check.pgx: %w", authkit.ErrSessionExpired)
	}
	return nil
}

// Revoke marks the session revoked; a second call reports ErrSessionAlreadyRevoked.
func (store *PostgresSessionStore) Revoke(ctx context.Context, sessionID string) error {
	if err := requireSessionID("revoke", sessionID); err != nil {
		return err
	}
	tag, execErr := store.pool.Exec(ctx, `
UPDATE sessions SET revoked_at_unix = $2
WHERE session_id = $1 AND revoked_at_unix = 0
`, sessionID, store.clock.Now().Unix())
	if execErr != nil {
		return fmt.Errorf("session_store.revoke.pgx: %w", execErr)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	var exists bool
	if scanErr := store.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM sessions WHERE session_id = $1)`, sessionID).Scan(&exists); scanErr != nil {
		return fmt.Errorf("session_store.revoke.pgx: %w", scanErr)
	}
	if !exists {
		return fmt.Errorf("session_store.revoke.pgx: %w", authkit.ErrSessionNotFound)
	}
	return fmt.Errorf("session_store.revoke.pgx: %w", authkit.ErrSessionAlreadyRevoked)
}

func requireSessionID(operation string, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return fmt.Errorf("session_store.%s: %w", operation, authkit.ErrEmptySessionID)
	}
	return nil
}
