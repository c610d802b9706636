// Package authstate owns the process-wide signed-in identity and republishes it
// to every interested consumer.
package authstate

import (
	"context"
	"net/http"
)

// Identity is the provider-issued record for a signed-in person.
type Identity struct {
	ID          string
	DisplayName string
	Email       string
	PhotoURL    string
}

// State is the observable auth snapshot. IsAuthenticated mirrors Identity != nil.
type State struct {
	Identity        *Identity
	Loading         bool
	IsAuthenticated bool
	Sequence        uint64
}

// Phase is the publisher lifecycle position.
type Phase int

const (
	PhaseUninitialized Phase = iota
	PhaseLoading
	PhaseSignedIn
	PhaseSignedOut
)

func (phase Phase) String() string {
	switch phase {
	case PhaseLoading:
		return "loading"
	case PhaseSignedIn:
		return "signed_in"
	case PhaseSignedOut:
		return "signed_out"
	default:
		return "uninitialized"
	}
}

// IdentityProvider delivers identity change notifications and fresh credentials.
// Subscribe delivers the current identity (possibly nil) once registration completes.
type IdentityProvider interface {
	Subscribe(listener func(identity *Identity)) (unsubscribe func())
	IDToken(ctx context.Context) (string, error)
}

// SessionBridge establishes and clears the server-side session artifact.
// Results are returned rather than applied so that stale ones can be dropped.
type SessionBridge interface {
	Establish(ctx context.Context, credential string) (*http.Cookie, error)
	Clear(ctx context.Context) (*http.Cookie, error)
	ApplySessionCookie(cookie *http.Cookie)
}

// Provisioner lazily creates the per-identity profile record.
type Provisioner interface {
	EnsureProfile(ctx context.Context, identity Identity) error
}

// ProvisionFunc adapts a function to Provisioner.
type ProvisionFunc func(ctx context.Context, identity Identity) error

// EnsureProfile calls provision(ctx, identity).
func (provision ProvisionFunc) EnsureProfile(ctx context.Context, identity Identity) error {
	return provision(ctx, identity)
}
