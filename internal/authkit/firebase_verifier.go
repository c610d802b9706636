package authkit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/jwk"
	"github.com/lestrrat-go/jwx/jwt"
)

const (
	firebaseKeySetURL    = "https://www.googleapis.com/service_accounts/v1/jwk/securetoken@system.gserviceaccount.com"
	firebaseIssuerPrefix = "https://securetoken.google.com/"
	firebaseClockSkew    = 30 * time.Second
)

// KeySetSource supplies the public keys used to verify Firebase ID tokens.
type KeySetSource interface {
	Fetch(ctx context.Context) (jwk.Set, error)
}

// StaticKeySet serves a fixed key set.
type StaticKeySet struct {
	Keys jwk.Set
}

// Fetch returns the fixed key set.
func (source StaticKeySet) Fetch(ctx context.Context) (jwk.Set, error) {
	return source.Keys, nil
}

type autoRefreshKeySet struct {
	refresher *jwk.AutoRefresh
	url       string
}

func (source *autoRefreshKeySet) Fetch(ctx context.Context) (jwk.Set, error) {
	return source.refresher.Fetch(ctx, source.url)
}

// NewAutoRefreshKeySet tracks the Firebase secure-token JWKS, refreshing it in the background while ctx lives.
func NewAutoRefreshKeySet(ctx context.Context) KeySetSource {
	refresher := jwk.NewAutoRefresh(ctx)
	refresher.Configure(firebaseKeySetURL, jwk.WithMinRefreshInterval(15*time.Minute))
	return &autoRefreshKeySet{refresher: refresher, url: firebaseKeySetURL}
}

// FirebaseVerifier verifies Firebase Authentication ID tokens for a single project.
type FirebaseVerifier struct {
	projectID string
	keys      KeySetSource
	clock     Clock
}

// NewFirebaseVerifier builds a verifier bound to projectID.
func NewFirebaseVerifier(projectID string, keys KeySetSource, clock Clock) (*FirebaseVerifier, error) {
	if strings.TrimSpace(projectID) == "" {
		return nil, fmt.Errorf("firebase_verifier.new: missing project id: %w", ErrServerMisconfigured)
	}
	if keys == nil {
		return nil, fmt.Errorf("firebase_verifier.new: missing key set: %w", ErrServerMisconfigured)
	}
	if clock == nil {
		clock = NewSystemClock()
	}
	return &FirebaseVerifier{projectID: projectID, keys: keys, clock: clock}, nil
}

// Verify checks the signature against the project key set, then issuer, audience, and timing claims.
func (verifier *FirebaseVerifier) Verify(ctx context.Context, credential string) (VerifiedIdentity, error) {
	keySet, fetchErr := verifier.keys.Fetch(ctx)
	if fetchErr != nil {
		return VerifiedIdentity{}, fmt.Errorf("firebase_verifier.keys: %v: %w", fetchErr, ErrVerifierUnavailable)
	}
	token, parseErr := jwt.Parse([]byte(credential), jwt.WithKeySet(keySet))
	if parseErr != nil {
		return VerifiedIdentity{}, fmt.Errorf("firebase_verifier.parse: %v: %w", parseErr, ErrInvalidCredential)
	}
	validateErr := jwt.Validate(token,
		jwt.WithIssuer(firebaseIssuerPrefix+verifier.projectID),
		jwt.WithAudience(verifier.projectID),
		jwt.WithClock(jwt.ClockFunc(verifier.clock.Now)),
		jwt.WithAcceptableSkew(firebaseClockSkew),
	)
	if validateErr != nil {
		return VerifiedIdentity{}, fmt.Errorf("firebase_verifier.validate: %v: %w", validateErr, ErrInvalidCredential)
	}
	if strings.TrimSpace(token.Subject()) == "" {
		return VerifiedIdentity{}, fmt.Errorf("firebase_verifier.validate: empty subject: %w", ErrInvalidCredential)
	}
	return VerifiedIdentity{
		UserID:      token.Subject(),
		Email:       stringClaim(token, "email"),
		DisplayName: stringClaim(token, "name"),
		PhotoURL:    stringClaim(token, "picture"),
		Nonce:       stringClaim(token, "nonce"),
	}, nil
}

// BindsNonce is false: Firebase ID tokens minted by popup sign-in carry no caller nonce, so
// the nonce only gates the single-use login request.
func (verifier *FirebaseVerifier) BindsNonce() bool {
	return false
}

func stringClaim(token jwt.Token, name string) string {
	value, ok := token.Get(name)
	if !ok {
		return ""
	}
	text, _ := value.(string)
	return text
}
