package authstate

import (
	"context"
	"errors"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap/zaptest"
)

func unsignedCredential(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("client-side"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return token
}

func TestDecodeIdentity(t *testing.T) {
	t.Parallel()
	identity, err := DecodeIdentity(unsignedCredential(t, jwt.MapClaims{
		"sub": "uid-1", "name": "Player One", "email": "player@example.com", "picture": "https://example.com/p.png",
	}))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if identity != (Identity{ID: "uid-1", DisplayName: "Player One", Email: "player@example.com", PhotoURL: "https://example.com/p.png"}) {
		t.Fatalf("unexpected identity: %#v", identity)
	}

	if _, err := DecodeIdentity("garbage"); !errors.Is(err, ErrMalformedCredential) {
		t.Fatalf("expected ErrMalformedCredential, got %v", err)
	}
	if _, err := DecodeIdentity(unsignedCredential(t, jwt.MapClaims{"email": "x@example.com"})); !errors.Is(err, ErrMalformedCredential) {
		t.Fatalf("expected ErrMalformedCredential for missing subject, got %v", err)
	}
}

func TestSignInErrorsAndReporting(t *testing.T) {
	t.Parallel()
	provider := NewTokenIdentityProvider()
	_, dismissed := provider.SignIn("   ")
	if !errors.Is(dismissed, ErrCredentialPromptDismissed) {
		t.Fatalf("expected ErrCredentialPromptDismissed, got %v", dismissed)
	}
	if IsReportableSignInError(dismissed) {
		t.Fatalf("dismissed prompt must not be reported")
	}
	_, malformed := provider.SignIn("garbage")
	if !IsReportableSignInError(malformed) {
		t.Fatalf("malformed credential must be reported")
	}
	if IsReportableSignInError(nil) {
		t.Fatalf("nil is not reportable")
	}
	if _, err := provider.IDToken(context.Background()); !errors.Is(err, ErrNoCredential) {
		t.Fatalf("expected ErrNoCredential, got %v", err)
	}
}

func TestTokenIdentityProviderDrivesPublisher(t *testing.T) {
	bridge := &recordingBridge{}
	provisioner := &countingProvisioner{}
	publisher := NewPublisher(Options{Bridge: bridge, Provisioner: provisioner, Logger: zaptest.NewLogger(t)})
	provider := NewTokenIdentityProvider()
	if err := publisher.Start(provider); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer publisher.Close()

	if snapshot := publisher.Snapshot(); snapshot.Loading || snapshot.IsAuthenticated {
		t.Fatalf("expected resolved signed-out state after subscribe, got %#v", snapshot)
	}

	first := unsignedCredential(t, jwt.MapClaims{"sub": "uid-1", "name": "Player", "iat": 1})
	renewed := unsignedCredential(t, jwt.MapClaims{"sub": "uid-1", "name": "Player", "iat": 2})
	if _, err := provider.SignIn(first); err != nil {
		t.Fatalf("sign in: %v", err)
	}
	publisher.Wait()
	if _, err := provider.SignIn(renewed); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	publisher.Wait()
	provider.SignOut()
	publisher.Wait()

	establishCalls, clears, _ := bridge.snapshot()
	if len(establishCalls) != 1 || establishCalls[0] != first {
		t.Fatalf("expected one establish with the first credential, got %#v", establishCalls)
	}
	if clears != 1 || provisioner.count() != 1 {
		t.Fatalf("expected one clear and one provision, got %d and %d", clears, provisioner.count())
	}
	if publisher.Phase() != PhaseSignedOut || provider.CurrentIdentity() != nil {
		t.Fatalf("expected signed out")
	}
}
