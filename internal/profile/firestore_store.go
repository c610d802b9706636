package profile

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// DefaultCollection holds one document per identity id.
const DefaultCollection = "users"

// FirestoreStore persists profiles as documents keyed by identity id.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
}

// NewFirestoreStore binds the store to collection, falling back to DefaultCollection.
func NewFirestoreStore(client *firestore.Client, collection string) *FirestoreStore {
	if collection == "" {
		collection = DefaultCollection
	}
	return &FirestoreStore{client: client, collection: collection}
}

func (store *FirestoreStore) Get(ctx context.Context, userID string) (UserProfile, error) {
	if err := requireUserID("get", userID); err != nil {
		return UserProfile{}, err
	}
	snapshot, err := store.document(userID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return UserProfile{}, fmt.Errorf("profile_store.get.firestore: %w", ErrNotFound)
		}
		return UserProfile{}, fmt.Errorf("profile_store.get.firestore: %w", err)
	}
	return FromDocument(snapshot.Ref.ID, snapshot.Data()), nil
}

// CreateIfAbsent relies on Create failing with AlreadyExists for an existing document.
func (store *FirestoreStore) CreateIfAbsent(ctx context.Context, profile UserProfile) (bool, error) {
	if err := requireUserID("create", profile.UserID); err != nil {
		return false, err
	}
	if _, err := store.document(profile.UserID).Create(ctx, profile); err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return false, nil
		}
		return false, fmt.Errorf("profile_store.create.firestore: %w", err)
	}
	return true, nil
}

func (store *FirestoreStore) UpdateDetails(ctx context.Context, userID string, update DetailsUpdate) (UserProfile, error) {
	if err := requireUserID("update", userID); err != nil {
		return UserProfile{}, err
	}
	var updates []firestore.Update
	if update.Team != nil {
		updates = append(updates, firestore.Update{Path: "team", Value: *update.Team})
	}
	if update.SkillLevel != nil {
		updates = append(updates, firestore.Update{Path: "skillLevel", Value: string(*update.SkillLevel)})
	}
	return store.apply(ctx, "update", userID, updates)
}

func (store *FirestoreStore) SetAvatar(ctx context.Context, userID string, avatarURL string) (UserProfile, error) {
	if err := requireUserID("set_avatar", userID); err != nil {
		return UserProfile{}, err
	}
	return store.apply(ctx, "set_avatar", userID, []firestore.Update{{Path: "avatar", Value: avatarURL}})
}

func (store *FirestoreStore) List(ctx context.Context) ([]UserProfile, error) {
	documents := store.client.Collection(store.collection).OrderBy(firestore.DocumentID, firestore.Asc).Documents(ctx)
	defer documents.Stop()
	var profiles []UserProfile
	for {
		snapshot, err := documents.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("profile_store.list.firestore: %w", err)
		}
		profiles = append(profiles, FromDocument(snapshot.Ref.ID, snapshot.Data()))
	}
	return profiles, nil
}

func (store *FirestoreStore) apply(ctx context.Context, operation string, userID string, updates []firestore.Update) (UserProfile, error) {
	if len(updates) > 0 {
		if _, err := store.document(userID).Update(ctx, updates); err != nil {
			if status.Code(err) == codes.NotFound {
				return UserProfile{}, fmt.Errorf("profile_store.%s.firestore: %w", operation, ErrNotFound)
			}
			return UserProfile{}, fmt.Errorf("profile_store.%s.firestore: %w", operation, err)
		}
	}
	return store.Get(ctx, userID)
}

func (store *FirestoreStore) document(userID string) *firestore.DocumentRef {
	return store.client.Collection(store.collection).Doc(userID)
}
