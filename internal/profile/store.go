package profile

import (
	"context"
	"fmt"
	"strings"
)

// Store persists profiles. Reads return normalized records and ErrNotFound for
// unknown identities.
type Store interface {
	Get(ctx context.Context, userID string) (UserProfile, error)
	CreateIfAbsent(ctx context.Context, profile UserProfile) (bool, error)
	UpdateDetails(ctx context.Context, userID string, update DetailsUpdate) (UserProfile, error)
	SetAvatar(ctx context.Context, userID string, avatarURL string) (UserProfile, error)
	List(ctx context.Context) ([]UserProfile, error)
}

func requireUserID(operation string, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("profile_store.%s: %w", operation, ErrEmptyUserID)
	}
	return nil
}

func applyDetails(profile UserProfile, update DetailsUpdate) UserProfile {
	if update.Team != nil {
		profile.Team = *update.Team
	}
	if update.SkillLevel != nil {
		profile.SkillLevel = *update.SkillLevel
	}
	return profile
}

func cloneProfile(profile UserProfile) UserProfile {
	stats := make(map[Sport]SportStats, len(profile.Stats))
	for sport, values := range profile.Stats {
		stats[sport] = values
	}
	profile.Stats = stats
	return profile
}
