package profile

import (
	"context"
	"errors"
	"fmt"

	"github.com/tyemirov/shuttleup/internal/database"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DatabaseStore persists profiles in the user_profiles table.
type DatabaseStore struct {
	db          *gorm.DB
	driverLabel string
}

// NewDatabaseStore migrates the profile table on the shared handle.
func NewDatabaseStore(ctx context.Context, handle *database.Handle) (*DatabaseStore, error) {
	if handle == nil || handle.DB == nil {
		return nil, fmt.Errorf("profile_store.open: %w", database.ErrEmptyDatabaseURL)
	}
	if migrateErr := handle.DB.WithContext(ctx).AutoMigrate(&UserProfile{}); migrateErr != nil {
		return nil, fmt.Errorf("profile_store.migrate.%s: %w", handle.Driver, migrateErr)
	}
	return &DatabaseStore{db: handle.DB, driverLabel: handle.Driver}, nil
}

func (store *DatabaseStore) Get(ctx context.Context, userID string) (UserProfile, error) {
	if err := requireUserID("get", userID); err != nil {
		return UserProfile{}, err
	}
	return store.take(store.db.WithContext(ctx), "get", userID)
}

// CreateIfAbsent inserts the profile unless a row with the same user id exists.
func (store *DatabaseStore) CreateIfAbsent(ctx context.Context, profile UserProfile) (bool, error) {
	if err := requireUserID("create", profile.UserID); err != nil {
		return false, err
	}
	result := store.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&profile)
	if result.Error != nil {
		return false, fmt.Errorf("profile_store.create.%s: %w", store.driverLabel, result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (store *DatabaseStore) UpdateDetails(ctx context.Context, userID string, update DetailsUpdate) (UserProfile, error) {
	if err := requireUserID("update", userID); err != nil {
		return UserProfile{}, err
	}
	columns := map[string]interface{}{}
	if update.Team != nil {
		columns["team"] = *update.Team
	}
	if update.SkillLevel != nil {
		columns["skill_level"] = string(*update.SkillLevel)
	}
	return store.updateColumns(ctx, "update", userID, columns)
}

func (store *DatabaseStore) SetAvatar(ctx context.Context, userID string, avatarURL string) (UserProfile, error) {
	if err := requireUserID("set_avatar", userID); err != nil {
		return UserProfile{}, err
	}
	return store.updateColumns(ctx, "set_avatar", userID, map[string]interface{}{"avatar": avatarURL})
}

func (store *DatabaseStore) List(ctx context.Context) ([]UserProfile, error) {
	var records []UserProfile
	if err := store.db.WithContext(ctx).Order("user_id").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("profile_store.list.%s: %w", store.driverLabel, err)
	}
	profiles := make([]UserProfile, 0, len(records))
	for _, record := range records {
		profiles = append(profiles, Normalize(record))
	}
	return profiles, nil
}

func (store *DatabaseStore) updateColumns(ctx context.Context, operation string, userID string, columns map[string]interface{}) (UserProfile, error) {
	var updated UserProfile
	err := store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		if len(columns) > 0 {
			result := transaction.Model(&UserProfile{}).Where("user_id = ?", userID).Updates(columns)
			if result.Error != nil {
				return fmt.Errorf("profile_store.%s.%s: %w", operation, store.driverLabel, result.Error)
			}
		}
		current, takeErr := store.take(transaction, operation, userID)
		if takeErr != nil {
			return takeErr
		}
		updated = current
		return nil
	})
	if err != nil {
		return UserProfile{}, err
	}
	return updated, nil
}

func (store *DatabaseStore) take(db *gorm.DB, operation string, userID string) (UserProfile, error) {
	var record UserProfile
	err := db.Where("user_id = ?", userID).Take(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return UserProfile{}, fmt.Errorf("profile_store.%s.%s: %w", operation, store.driverLabel, ErrNotFound)
		}
		return UserProfile{}, fmt.Errorf("profile_store.%s.%s: %w", operation, store.driverLabel, err)
	}
	return Normalize(record), nil
}
