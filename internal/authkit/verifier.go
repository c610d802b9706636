package authkit

import (
	"context"
	"time"
)

// VerifiedIdentity is the identity extracted from a credential that passed verification.
type VerifiedIdentity struct {
	UserID      string
	Email       string
	DisplayName string
	PhotoURL    string
	Nonce       string
}

// CredentialVerifier exchanges a client-held identity credential for a verified identity.
// Rejected credentials are reported as ErrInvalidCredential.
type CredentialVerifier interface {
	Verify(ctx context.Context, credential string) (VerifiedIdentity, error)
}

// NonceBinder is implemented by verifiers that can report whether their credentials embed
// the sign-in nonce. Verifiers that do not implement it are treated as binding.
type NonceBinder interface {
	BindsNonce() bool
}

func bindsNonce(verifier CredentialVerifier) bool {
	binder, ok := verifier.(NonceBinder)
	return !ok || binder.BindsNonce()
}

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

// NewSystemClock returns a Clock backed by time.Now in UTC.
func NewSystemClock() Clock {
	return systemClock{}
}
