package profile

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"
)

func TestProvisionerIsIdempotent(t *testing.T) {
	store := NewMemoryStore()
	provisioner := NewProvisioner(store, zaptest.NewLogger(t))
	seed := Seed{UserID: "user-1", DisplayName: "Jordan"}

	created, err := provisioner.EnsureProfile(context.Background(), seed)
	if err != nil || !created {
		t.Fatalf("expected profile creation, got created=%v err=%v", created, err)
	}
	level := SkillIntermediate
	if _, err := store.UpdateDetails(context.Background(), seed.UserID, DetailsUpdate{SkillLevel: &level}); err != nil {
		t.Fatalf("update: %v", err)
	}
	created, err = provisioner.EnsureProfile(context.Background(), seed)
	if err != nil || created {
		t.Fatalf("expected no-op provisioning, got created=%v err=%v", created, err)
	}
	stored, _ := store.Get(context.Background(), seed.UserID)
	if stored.SkillLevel != SkillIntermediate {
		t.Fatalf("expected provisioning to keep edits, got %q", stored.SkillLevel)
	}
	if _, err := provisioner.EnsureProfile(context.Background(), Seed{}); !errors.Is(err, ErrEmptyUserID) {
		t.Fatalf("expected ErrEmptyUserID, got %v", err)
	}
}

func TestServiceProfileFallsBackToDefaults(t *testing.T) {
	service := NewService(NewMemoryStore(), nil, zaptest.NewLogger(t))
	profile, err := service.Profile(context.Background(), Seed{UserID: "user-9", DisplayName: "Riley"})
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if profile.Team != DefaultTeam || profile.SkillLevel != SkillBeginner || profile.DisplayName != "Riley" {
		t.Fatalf("unexpected defaults %+v", profile)
	}
}

func TestServiceUpdateDetailsSanitizesAndValidates(t *testing.T) {
	service := NewService(NewMemoryStore(), nil, zaptest.NewLogger(t))
	seed := Seed{UserID: "user-2"}

	team := "  <b>Smash</b>   Bros <script>alert(1)</script>"
	level := SkillLevel("intermediate")
	updated, err := service.UpdateDetails(context.Background(), seed, DetailsUpdate{Team: &team, SkillLevel: &level})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Team != "Smash Bros" {
		t.Fatalf("unexpected sanitized team %q", updated.Team)
	}
	if updated.SkillLevel != SkillIntermediate {
		t.Fatalf("unexpected skill %q", updated.SkillLevel)
	}

	ampersand := "Drop & Smash"
	withAmpersand, err := service.UpdateDetails(context.Background(), seed, DetailsUpdate{Team: &ampersand})
	if err != nil || withAmpersand.Team != "Drop & Smash" {
		t.Fatalf("expected plain ampersand to survive, got %q err=%v", withAmpersand.Team, err)
	}

	bogus := SkillLevel("Pro")
	if _, err := service.UpdateDetails(context.Background(), seed, DetailsUpdate{SkillLevel: &bogus}); !errors.Is(err, ErrInvalidSkillLevel) {
		t.Fatalf("expected ErrInvalidSkillLevel, got %v", err)
	}
	blank := "<i></i>"
	if _, err := service.UpdateDetails(context.Background(), seed, DetailsUpdate{Team: &blank}); !errors.Is(err, ErrInvalidTeam) {
		t.Fatalf("expected ErrInvalidTeam for empty team, got %v", err)
	}
	long := strings.Repeat("x", MaxTeamNameLength+1)
	if _, err := service.UpdateDetails(context.Background(), seed, DetailsUpdate{Team: &long}); !errors.Is(err, ErrInvalidTeam) {
		t.Fatalf("expected ErrInvalidTeam for long team, got %v", err)
	}
}

func TestServiceUploadAvatar(t *testing.T) {
	original := newObjectID
	newObjectID = func() (string, error) { return "fixed", nil }
	defer func() { newObjectID = original }()

	avatars := NewMemoryAvatarStorage("/avatars")
	service := NewService(NewMemoryStore(), avatars, zaptest.NewLogger(t))
	seed := Seed{UserID: "user-3"}

	updated, err := service.UploadAvatar(context.Background(), seed, bytes.NewReader(pngFixture))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if updated.Avatar != "/avatars/avatars/user-3/fixed.png" {
		t.Fatalf("unexpected avatar url %q", updated.Avatar)
	}
	if _, ok := avatars.Open("avatars/user-3/fixed.png"); !ok {
		t.Fatalf("expected stored avatar object")
	}

	if _, err := service.UploadAvatar(context.Background(), seed, strings.NewReader("not an image")); !errors.Is(err, ErrAvatarUnsupportedType) {
		t.Fatalf("expected ErrAvatarUnsupportedType, got %v", err)
	}
	tooLarge := bytes.NewReader(append(append([]byte{}, pngFixture...), make([]byte, MaxAvatarBytes)...))
	if _, err := service.UploadAvatar(context.Background(), seed, tooLarge); !errors.Is(err, ErrAvatarTooLarge) {
		t.Fatalf("expected ErrAvatarTooLarge, got %v", err)
	}

	withoutStorage := NewService(NewMemoryStore(), nil, zaptest.NewLogger(t))
	if _, err := withoutStorage.UploadAvatar(context.Background(), seed, bytes.NewReader(pngFixture)); !errors.Is(err, ErrAvatarStorageUnavailable) {
		t.Fatalf("expected ErrAvatarStorageUnavailable, got %v", err)
	}
}
