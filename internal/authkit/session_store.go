package authkit

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// SessionStore records issued session ids so that sign-out can revoke them.
// Check satisfies sessionvalidator.RevocationChecker.
type SessionStore interface {
	Record(ctx context.Context, sessionID string, userID string, expiresUnix int64) error
	Check(ctx context.Context, sessionID string) error
	Revoke(ctx context.Context, sessionID string) error
}

var newSessionUUID = uuid.NewRandom

// NewSessionID returns a random identifier used as the session artifact's jti.
func NewSessionID() (string, error) {
	identifier, err := newSessionUUID()
	if err != nil {
		return "", fmt.Errorf("session_store.random: %w", err)
	}
	return identifier.String(), nil
}

func requireSessionID(operation string, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return fmt.Errorf("session_store.%s: %w", operation, ErrEmptySessionID)
	}
	return nil
}
