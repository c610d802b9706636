package profile

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps profiles in process memory.
type MemoryStore struct {
	mutex    sync.Mutex
	profiles map[string]UserProfile
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{profiles: make(map[string]UserProfile)}
}

func (store *MemoryStore) Get(ctx context.Context, userID string) (UserProfile, error) {
	if err := requireUserID("get", userID); err != nil {
		return UserProfile{}, err
	}
	store.mutex.Lock()
	defer store.mutex.Unlock()
	profile, ok := store.profiles[userID]
	if !ok {
		return UserProfile{}, ErrNotFound
	}
	return Normalize(cloneProfile(profile)), nil
}

func (store *MemoryStore) CreateIfAbsent(ctx context.Context, profile UserProfile) (bool, error) {
	if err := requireUserID("create", profile.UserID); err != nil {
		return false, err
	}
	store.mutex.Lock()
	defer store.mutex.Unlock()
	if _, exists := store.profiles[profile.UserID]; exists {
		return false, nil
	}
	store.profiles[profile.UserID] = cloneProfile(profile)
	return true, nil
}

func (store *MemoryStore) UpdateDetails(ctx context.Context, userID string, update DetailsUpdate) (UserProfile, error) {
	if err := requireUserID("update", userID); err != nil {
		return UserProfile{}, err
	}
	store.mutex.Lock()
	defer store.mutex.Unlock()
	profile, ok := store.profiles[userID]
	if !ok {
		return UserProfile{}, ErrNotFound
	}
	profile = applyDetails(profile, update)
	store.profiles[userID] = profile
	return Normalize(cloneProfile(profile)), nil
}

func (store *MemoryStore) SetAvatar(ctx context.Context, userID string, avatarURL string) (UserProfile, error) {
	if err := requireUserID("set_avatar", userID); err != nil {
		return UserProfile{}, err
	}
	store.mutex.Lock()
	defer store.mutex.Unlock()
	profile, ok := store.profiles[userID]
	if !ok {
		return UserProfile{}, ErrNotFound
	}
	profile.Avatar = avatarURL
	store.profiles[userID] = profile
	return Normalize(cloneProfile(profile)), nil
}

func (store *MemoryStore) List(ctx context.Context) ([]UserProfile, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	profiles := make([]UserProfile, 0, len(store.profiles))
	for _, profile := range store.profiles {
		profiles = append(profiles, Normalize(cloneProfile(profile)))
	}
	sort.Slice(profiles, func(left, right int) bool {
		return profiles[left].UserID < profiles[right].UserID
	})
	return profiles, nil
}
