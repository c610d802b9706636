package authkit

import (
	"context"
	"errors"
	"fmt"

	"github.com/tyemirov/shuttleup/internal/database"
	"gorm.io/gorm"
)

// DatabaseSessionStore persists the session registry using GORM.
type DatabaseSessionStore struct {
	db          *gorm.DB
	driverLabel string
	clock       Clock
}

type sessionRecord struct {
	SessionID     string `gorm:"column:session_id;primaryKey"`
	UserID        string `gorm:"column:user_id;index;not null"`
	ExpiresUnix   int64  `gorm:"column:expires_unix;not null"`
	RevokedAtUnix int64  `gorm:"column:revoked_at_unix;not null;default:0"`
	IssuedAtUnix  int64  `gorm:"column:issued_at_unix;not null"`
}

func (sessionRecord) TableName() string {
	return "sessions"
}

// NewDatabaseSessionStore migrates the sessions table on the shared handle.
func NewDatabaseSessionStore(ctx context.Context, handle *database.Handle, clock Clock) (*DatabaseSessionStore, error) {
	if handle == nil || handle.DB == nil {
		return nil, fmt.Errorf("session_store.open: %w", database.ErrEmptyDatabaseURL)
	}
	if migrateErr := handle.DB.WithContext(ctx).AutoMigrate(&sessionRecord{}); migrateErr != nil {
		return nil, fmt.Errorf("session_store.migrate.%s: %w", handle.Driver, migrateErr)
	}
	if clock == nil {
		clock = NewSystemClock()
	}
	return &DatabaseSessionStore{db: handle.DB, driverLabel: handle.Driver, clock: clock}, nil
}

// Driver exposes the selected database driver label.
func (store *DatabaseSessionStore) Driver() string {
	return store.driverLabel
}

// Record inserts a session record.
func (store *DatabaseSessionStore) Record(ctx context.Context, sessionID string, userID string, expiresUnix int64) error {
	if err := requireSessionID("record", sessionID); err != nil {
		return err
	}
	record := sessionRecord{
		SessionID:    sessionID,
		UserID:       userID,
		ExpiresUnix:  expiresUnix,
		IssuedAtUnix: store.clock.Now().Unix(),
	}
	if err := store.db.WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("session_store.record.%s: %w", store.driverLabel, err)
	}
	return nil
}

// Check reports whether the session is live.
func (store *DatabaseSessionStore) Check(ctx context.Context, sessionID string) error {
	if err := requireSessionID("check", sessionID); err != nil {
		return err
	}
	var record sessionRecord
	err := store.db.WithContext(ctx).Where("session_id = ?", sessionID).Take(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("session_store.check.%s: %w", store.driverLabel, ErrSessionNotFound)
		}
		return fmt.Errorf("session_store.check.%s: %w", store.driverLabel, err)
	}
	if record.RevokedAtUnix != 0 {
		return fmt.Errorf("session_store.check.%s: %w", store.driverLabel, ErrSessionRevoked)
	}
	if record.ExpiresUnix < store.clock.Now().Unix() {
		return fmt.Errorf("session_store.check.%s: %w", store.driverLabel, ErrSessionExpired)
	}
	return nil
}

// Revoke marks a session as revoked.
func (store *DatabaseSessionStore) Revoke(ctx context.Context, sessionID string) error {
	if err := requireSessionID("revoke", sessionID); err != nil {
		return err
	}
	result := store.db.WithContext(ctx).Model(&sessionRecord{}).
		Where("session_id = ? AND revoked_at_unix = 0", sessionID).
		Update("revoked_at_unix", store.clock.Now().Unix())
	if result.Error != nil {
		return fmt.Errorf("session_store.revoke.%s: %w", store.driverLabel, result.Error)
	}
	if result.RowsAffected > 0 {
		return nil
	}
	var record sessionRecord
	findErr := store.db.WithContext(ctx).Where("session_id = ?", sessionID).Take(&record).Error
	if errors.Is(findErr, gorm.ErrRecordNotFound) {
		return fmt.Errorf("session_store.revoke.%s: %w", store.driverLabel, ErrSessionNotFound)
	}
	if findErr != nil {
		return fmt.Errorf("session_store.revoke.%s: %w", store.driverLabel, findErr)
	}
	return fmt.Errorf("session_store.revoke.%s: %w", store.driverLabel, ErrSessionAlreadyRevoked)
}
