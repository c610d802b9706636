package profile

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
)

// MaxTeamNameLength bounds the team name in runes.
const MaxTeamNameLength = 40

// Service implements the profile operations exposed over HTTP.
type Service struct {
	store   Store
	avatars AvatarStorage
	policy  *bluemonday.Policy
	logger  *zap.Logger
}

// NewService wires the service. avatars may be nil, which disables uploads.
func NewService(store Store, avatars AvatarStorage, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, avatars: avatars, policy: bluemonday.StrictPolicy(), logger: logger}
}

// Profile returns the stored profile, or the defaults when none exists yet.
func (service *Service) Profile(ctx context.Context, seed Seed) (UserProfile, error) {
	stored, err := service.store.Get(ctx, seed.UserID)
	if err == nil {
		return stored, nil
	}
	if errors.Is(err, ErrNotFound) {
		return Defaults(seed), nil
	}
	return UserProfile{}, fmt.Errorf("profile.get: %w", err)
}

// List returns every stored profile.
func (service *Service) List(ctx context.Context) ([]UserProfile, error) {
	profiles, err := service.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("profile.list: %w", err)
	}
	return profiles, nil
}

// UpdateDetails validates and applies the team and skill level edits.
func (service *Service) UpdateDetails(ctx context.Context, seed Seed, update DetailsUpdate) (UserProfile, error) {
	if update.Team != nil {
		team, err := service.SanitizeTeam(*update.Team)
		if err != nil {
			return UserProfile{}, err
		}
		update.Team = &team
	}
	if update.SkillLevel != nil {
		level, ok := ParseSkillLevel(string(*update.SkillLevel))
		if !ok {
			return UserProfile{}, fmt.Errorf("profile.update: %w", ErrInvalidSkillLevel)
		}
		update.SkillLevel = &level
	}
	if err := service.ensure(ctx, seed); err != nil {
		return UserProfile{}, err
	}
	updated, err := service.store.UpdateDetails(ctx, seed.UserID, update)
	if err != nil {
		return UserProfile{}, fmt.Errorf("profile.update: %w", err)
	}
	return updated, nil
}

// UploadAvatar stores the image and records its URL on the profile.
func (service *Service) UploadAvatar(ctx context.Context, seed Seed, content io.Reader) (UserProfile, error) {
	if service.avatars == nil {
		return UserProfile{}, fmt.Errorf("profile.avatar: %w", ErrAvatarStorageUnavailable)
	}
	data, readErr := io.ReadAll(io.LimitReader(content, MaxAvatarBytes+1))
	if readErr != nil {
		return UserProfile{}, fmt.Errorf("profile.avatar_read: %w", readErr)
	}
	contentType, extension, detectErr := DetectAvatar(data)
	if detectErr != nil {
		return UserProfile{}, fmt.Errorf("profile.avatar: %w", detectErr)
	}
	objectName, nameErr := AvatarObjectName(seed.UserID, extension)
	if nameErr != nil {
		return UserProfile{}, nameErr
	}
	avatarURL, putErr := service.avatars.Put(ctx, objectName, contentType, data)
	if putErr != nil {
		service.logger.Error("avatar upload failed", zap.String("code", "profile.avatar_put"), zap.String("user_id", seed.UserID), zap.Error(putErr))
		return UserProfile{}, putErr
	}
	if err := service.ensure(ctx, seed); err != nil {
		return UserProfile{}, err
	}
	updated, err := service.store.SetAvatar(ctx, seed.UserID, avatarURL)
	if err != nil {
		return UserProfile{}, fmt.Errorf("profile.avatar: %w", err)
	}
	return updated, nil
}

// SanitizeTeam strips markup from a team name and enforces its bounds.
func (service *Service) SanitizeTeam(raw string) (string, error) {
	cleaned := strings.TrimSpace(html.UnescapeString(service.policy.Sanitize(raw)))
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	if cleaned == "" || utf8.RuneCountInString(cleaned) > MaxTeamNameLength {
		return "", fmt.Errorf("profile.update: %w", ErrInvalidTeam)
	}
	return cleaned, nil
}

func (service *Service) ensure(ctx context.Context, seed Seed) error {
	if _, err := service.store.CreateIfAbsent(ctx, Defaults(seed)); err != nil {
		return fmt.Errorf("profile.ensure: %w", err)
	}
	return nil
}
