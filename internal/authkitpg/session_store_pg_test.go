package authkitpg

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/tyemirov/shuttleup/internal/authkit"
)

type fixedClock struct {
	now time.Time
}

func (clock fixedClock) Now() time.Time {
	return clock.now
}

func TestRequireSessionIDRejectsBlank(t *testing.T) {
	err := requireSessionID("check", "  ")
	if !errors.Is(err, authkit.ErrEmptySessionID) {
		t.Fatalf("expected ErrEmptySessionID, got %v", err)
	}
}

func TestPostgresSessionStoreLifecycle(t *testing.T) {
	databaseURL := os.Getenv("SHUTTLEUP_TEST_POSTGRES_URL")
	if databaseURL == "" {
		t.Skip("SHUTTLEUP_TEST_POSTGRES_URL not set")
	}
	ctx := context.Background()
	pool, err := BuildPool(ctx, databaseURL)
	if err != nil {
		t.Fatalf("build pool: %v", err)
	}
	defer pool.Close()
	if err := EnsureSchema(ctx, pool); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}

	now := time.Unix(1_700_000_000, 0)
	store := NewPostgresSessionStore(pool, fixedClock{now: now})
	sessionID := uuid.NewString()

	if err := store.Record(ctx, sessionID, "user-1", now.Add(time.Hour).Unix()); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := store.Check(ctx, sessionID); err != nil {
		t.Fatalf("expected live session, got %v", err)
	}
	if err := store.Revoke(ctx, sessionID); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if err := store.Check(ctx, sessionID); !errors.Is(err, authkit.ErrSessionRevoked) {
		t.Fatalf("expected ErrSessionRevoked, got %v", err)
	}
	if err := store.Revoke(ctx, sessionID); !errors.Is(err, authkit.ErrSessionAlreadyRevoked) {
		t.Fatalf("expected ErrSessionAlreadyRevoked, got %v", err)
	}
	if err := store.Revoke(ctx, uuid.NewString()); !errors.Is(err, authkit.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}

	expiredID := uuid.NewString()
	if err := store.Record(ctx, expiredID, "user-1", now.Add(-time.Minute).Unix()); err != nil {
		t.Fatalf("record expired: %v", err)
	}
	if err := store.Check(ctx, expiredID); !errors.Is(err, authkit.ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
}
