package authkit

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/api/idtoken"
	"google.golang.org/api/option"
)

// GoogleTokenValidator is satisfied by *idtoken.Validator.
type GoogleTokenValidator interface {
	Validate(ctx context.Context, idToken string, audience string) (*idtoken.Payload, error)
}

var newGoogleTokenValidator = func(ctx context.Context, options ...option.ClientOption) (GoogleTokenValidator, error) {
	return idtoken.NewValidator(ctx, options...)
}

// GoogleVerifier verifies Google Sign-In ID tokens issued for a web client.
type GoogleVerifier struct {
	validator GoogleTokenValidator
	clientID  string
}

// NewGoogleVerifier builds a verifier for tokens whose audience is clientID.
func NewGoogleVerifier(ctx context.Context, clientID string, options ...option.ClientOption) (*GoogleVerifier, error) {
	if strings.TrimSpace(clientID) == "" {
		return nil, fmt.Errorf("google_verifier.new: missing client id: %w", ErrServerMisconfigured)
	}
	validator, err := newGoogleTokenValidator(ctx, options...)
	if err != nil {
		return nil, fmt.Errorf("google_verifier.new: %v: %w", err, ErrServerMisconfigured)
	}
	return &GoogleVerifier{validator: validator, clientID: clientID}, nil
}

// Verify validates the token signature, audience, issuer, and email verification.
func (verifier *GoogleVerifier) Verify(ctx context.Context, credential string) (VerifiedIdentity, error) {
	payload, validateErr := verifier.validator.Validate(ctx, credential, verifier.clientID)
	if validateErr != nil {
		return VerifiedIdentity{}, fmt.Errorf("google_verifier.verify: %v: %w", validateErr, ErrInvalidCredential)
	}
	issuerValue, okIssuer := payload.Claims["iss"].(string)
	if !okIssuer || (issuerValue != "https://accounts.google.com" && issuerValue != "accounts.google.com") {
		return VerifiedIdentity{}, fmt.Errorf("google_verifier.verify: invalid issuer: %w", ErrInvalidCredential)
	}
	googleSub, _ := payload.Claims["sub"].(string)
	userEmail, _ := payload.Claims["email"].(string)
	emailVerified, _ := payload.Claims["email_verified"].(bool)
	displayName, _ := payload.Claims["name"].(string)
	pictureURL, _ := payload.Claims["picture"].(string)
	nonce, _ := payload.Claims["nonce"].(string)

	if googleSub == "" || userEmail == "" || !emailVerified {
		return VerifiedIdentity{}, fmt.Errorf("google_verifier.verify: unverified identity: %w", ErrInvalidCredential)
	}
	return VerifiedIdentity{
		UserID:      "google:" + googleSub,
		Email:       userEmail,
		DisplayName: displayName,
		PhotoURL:    pictureURL,
		Nonce:       nonce,
	}, nil
}
