package authstate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrCredentialPromptDismissed means the user closed the credential prompt; it is never reported.
	ErrCredentialPromptDismissed = errors.New("authstate.credential_prompt_dismissed")
	// ErrMalformedCredential means the credential could not be decoded into an identity.
	ErrMalformedCredential = errors.New("authstate.malformed_credential")
	// ErrNoCredential means no identity is signed in.
	ErrNoCredential = errors.New("authstate.no_credential")
)

// IsReportableSignInError reports whether a sign-in failure should be surfaced to the user.
func IsReportableSignInError(err error) bool {
	return err != nil && !errors.Is(err, ErrCredentialPromptDismissed)
}

// TokenIdentityProvider is a client-side identity provider holding one ID
// token. Claims are decoded without verification; the server verifies the
// token when the session is established.
type TokenIdentityProvider struct {
	notifyMutex sync.Mutex

	mutex          sync.Mutex
	credential     string
	identity       *Identity
	listeners      map[uint64]func(*Identity)
	nextListenerID uint64
}

// NewTokenIdentityProvider returns a signed-out provider.
func NewTokenIdentityProvider() *TokenIdentityProvider {
	return &TokenIdentityProvider{listeners: make(map[uint64]func(*Identity))}
}

// Subscribe registers listener and delivers the current identity to it.
func (provider *TokenIdentityProvider) Subscribe(listener func(identity *Identity)) func() {
	provider.notifyMutex.Lock()
	defer provider.notifyMutex.Unlock()

	provider.mutex.Lock()
	listenerID := provider.nextListenerID
	provider.nextListenerID++
	provider.listeners[listenerID] = listener
	current := copyIdentity(provider.identity)
	provider.mutex.Unlock()

	listener(current)

	return func() {
		provider.mutex.Lock()
		defer provider.mutex.Unlock()
		delete(provider.listeners, listenerID)
	}
}

// SignIn decodes credential and notifies listeners. An empty credential is a dismissed prompt.
// Calling SignIn again with a renewed token for the same subject is a refresh.
func (provider *TokenIdentityProvider) SignIn(credential string) (Identity, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return Identity{}, ErrCredentialPromptDismissed
	}
	identity, decodeErr := DecodeIdentity(credential)
	if decodeErr != nil {
		return Identity{}, decodeErr
	}
	provider.update(credential, &identity)
	return identity, nil
}

// SignOut forgets the credential and notifies listeners with nil.
func (provider *TokenIdentityProvider) SignOut() {
	provider.update("", nil)
}

// IDToken returns the current credential.
func (provider *TokenIdentityProvider) IDToken(ctx context.Context) (string, error) {
	provider.mutex.Lock()
	defer provider.mutex.Unlock()
	if provider.credential == "" {
		return "", ErrNoCredential
	}
	return provider.credential, nil
}

// CurrentIdentity returns the signed-in identity, if any.
func (provider *TokenIdentityProvider) CurrentIdentity() *Identity {
	provider.mutex.Lock()
	defer provider.mutex.Unlock()
	return copyIdentity(provider.identity)
}

func (provider *TokenIdentityProvider) update(credential string, identity *Identity) {
	provider.notifyMutex.Lock()
	defer provider.notifyMutex.Unlock()

	provider.mutex.Lock()
	provider.credential = credential
	provider.identity = copyIdentity(identity)
	listeners := make([]func(*Identity), 0, len(provider.listeners))
	for _, listener := range provider.listeners {
		listeners = append(listeners, listener)
	}
	provider.mutex.Unlock()

	for _, listener := range listeners {
		listener(copyIdentity(identity))
	}
}

// DecodeIdentity extracts the identity claims from an ID token without verifying it.
func DecodeIdentity(credential string) (Identity, error) {
	claims := jwt.MapClaims{}
	if _, _, parseErr := jwt.NewParser().ParseUnverified(credential, claims); parseErr != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrMalformedCredential, parseErr)
	}
	subject, _ := claims["sub"].(string)
	if subject == "" {
		subject, _ = claims["user_id"].(string)
	}
	if strings.TrimSpace(subject) == "" {
		return Identity{}, fmt.Errorf("%w: missing subject", ErrMalformedCredential)
	}
	displayName, _ := claims["name"].(string)
	email, _ := claims["email"].(string)
	photoURL, _ := claims["picture"].(string)
	return Identity{ID: subject, DisplayName: displayName, Email: email, PhotoURL: photoURL}, nil
}

func copyIdentity(identity *Identity) *Identity {
	if identity == nil {
		return nil
	}
	copied := *identity
	return &copied
}
