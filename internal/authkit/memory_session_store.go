package authkit

import (
	"context"
	"sync"
	"time"
)

// MemorySessionStore is an in-memory session registry intended for tests and dev.
type MemorySessionStore struct {
	mutex   sync.Mutex
	records map[string]*sessionMemoryRecord
	clock   Clock
}

type sessionMemoryRecord struct {
	UserID        string
	ExpiresUnix   int64
	RevokedAtUnix int64
	IssuedAtUnix  int64
}

// NewMemorySessionStore creates a new in-memory session registry.
func NewMemorySessionStore(clock Clock) *MemorySessionStore {
	if clock == nil {
		clock = NewSystemClock()
	}
	return &MemorySessionStore{
		records: make(map[string]*sessionMemoryRecord),
		clock:   clock,
	}
}

// Record registers a newly issued session.
func (store *MemorySessionStore) Record(ctx context.Context, sessionID string, userID string, expiresUnix int64) error {
	if err := requireSessionID("record", sessionID); err != nil {
		return err
	}
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.purgeExpiredLocked()
	store.records[sessionID] = &sessionMemoryRecord{
		UserID:       userID,
		ExpiresUnix:  expiresUnix,
		IssuedAtUnix: store.clock.Now().Unix(),
	}
	return nil
}

// Check reports whether the session is live.
func (store *MemorySessionStore) Check(ctx context.Context, sessionID string) error {
	if err := requireSessionID("check", sessionID); err != nil {
		return err
	}
	store.mutex.Lock()
	defer store.mutex.Unlock()
	record := store.records[sessionID]
	if record == nil {
		return ErrSessionNotFound
	}
	if record.RevokedAtUnix != 0 {
		return ErrSessionRevoked
	}
	if time.Unix(record.ExpiresUnix, 0).Before(store.clock.Now()) {
		return ErrSessionExpired
	}
	return nil
}

// Revoke marks a session as revoked.
func (store *MemorySessionStore) Revoke(ctx context.Context, sessionID string) error {
	if err := requireSessionID("revoke", sessionID); err != nil {
		return err
	}
	store.mutex.Lock()
	defer store.mutex.Unlock()
	record := store.records[sessionID]
	if record == nil {
		return ErrSessionNotFound
	}
	if record.RevokedAtUnix != 0 {
		return ErrSessionAlreadyRevoked
	}
	record.RevokedAtUnix = store.clock.Now().Unix()
	return nil
}

func (store *MemorySessionStore) purgeExpiredLocked() {
	nowUnix := store.clock.Now().Unix()
	for sessionID, record := range store.records {
		if record.ExpiresUnix < nowUnix {
			delete(store.records, sessionID)
		}
	}
}
