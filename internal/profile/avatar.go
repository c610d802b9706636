package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"cloud.google.com/go/storage"
	"github.com/gabriel-vasile/mimetype"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// MaxAvatarBytes bounds uploaded avatar images.
const MaxAvatarBytes = 5 << 20

var (
	// ErrAvatarEmpty indicates an upload without content.
	ErrAvatarEmpty = errors.New("profile.avatar_empty")
	// ErrAvatarTooLarge indicates an upload above MaxAvatarBytes.
	ErrAvatarTooLarge = errors.New("profile.avatar_too_large")
	// ErrAvatarUnsupportedType indicates content that is not a supported image.
	ErrAvatarUnsupportedType = errors.New("profile.avatar_unsupported_type")
	// ErrAvatarStorageUnavailable indicates no avatar storage was configured.
	ErrAvatarStorageUnavailable = errors.New("profile.avatar_storage_unavailable")
)

var allowedAvatarTypes = []string{"image/png", "image/jpeg", "image/gif", "image/webp"}

var newObjectID = func() (string, error) {
	return gonanoid.New()
}

// AvatarStorage stores avatar bytes and returns a URL the browser can load.
type AvatarStorage interface {
	Put(ctx context.Context, objectName string, contentType string, data []byte) (string, error)
}

// DetectAvatar sniffs the content type and returns it with its file extension.
func DetectAvatar(data []byte) (string, string, error) {
	if len(data) == 0 {
		return "", "", ErrAvatarEmpty
	}
	if len(data) > MaxAvatarBytes {
		return "", "", ErrAvatarTooLarge
	}
	detected := mimetype.Detect(data)
	for _, allowed := range allowedAvatarTypes {
		if detected.Is(allowed) {
			return allowed, detected.Extension(), nil
		}
	}
	return "", "", fmt.Errorf("%w: %s", ErrAvatarUnsupportedType, detected.String())
}

// AvatarObjectName returns a fresh object name under avatars/{userID}/.
func AvatarObjectName(userID string, extension string) (string, error) {
	objectID, err := newObjectID()
	if err != nil {
		return "", fmt.Errorf("profile.avatar_object_id: %w", err)
	}
	segment := strings.ReplaceAll(userID, "/", "_")
	return "avatars/" + segment + "/" + objectID + extension, nil
}

// PublicObjectURL is the public download URL of a Cloud Storage object.
func PublicObjectURL(bucket string, objectName string) string {
	return "https://storage.googleapis.com/" + bucket + "/" + objectName
}

// GCSAvatarStorage writes avatars into a Cloud Storage bucket.
type GCSAvatarStorage struct {
	client *storage.Client
	bucket string
}

// NewGCSAvatarStorage binds the storage to bucket.
func NewGCSAvatarStorage(client *storage.Client, bucket string) *GCSAvatarStorage {
	return &GCSAvatarStorage{client: client, bucket: bucket}
}

func (avatars *GCSAvatarStorage) Put(ctx context.Context, objectName string, contentType string, data []byte) (string, error) {
	writer := avatars.client.Bucket(avatars.bucket).Object(objectName).NewWriter(ctx)
	writer.ContentType = contentType
	writer.CacheControl = "public, max-age=86400"
	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return "", fmt.Errorf("profile.avatar_put.gcs: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("profile.avatar_put.gcs: %w", err)
	}
	return PublicObjectURL(avatars.bucket, objectName), nil
}

// StoredObject is an avatar held by MemoryAvatarStorage.
type StoredObject struct {
	ContentType string
	Data        []byte
}

// MemoryAvatarStorage keeps avatars in process memory and serves them under baseURL.
type MemoryAvatarStorage struct {
	baseURL string
	mutex   sync.RWMutex
	objects map[string]StoredObject
}

// NewMemoryAvatarStorage returns an empty storage whose URLs start with baseURL.
func NewMemoryAvatarStorage(baseURL string) *MemoryAvatarStorage {
	return &MemoryAvatarStorage{baseURL: strings.TrimRight(baseURL, "/"), objects: make(map[string]StoredObject)}
}

func (avatars *MemoryAvatarStorage) Put(ctx context.Context, objectName string, contentType string, data []byte) (string, error) {
	copied := make([]byte, len(data))
	copy(copied, data)
	avatars.mutex.Lock()
	avatars.objects[objectName] = StoredObject{ContentType: contentType, Data: copied}
	avatars.mutex.Unlock()
	return avatars.baseURL + "/" + objectName, nil
}

// Open returns a stored object by name.
func (avatars *MemoryAvatarStorage) Open(objectName string) (StoredObject, bool) {
	avatars.mutex.RLock()
	defer avatars.mutex.RUnlock()
	object, ok := avatars.objects[objectName]
	return object, ok
}
