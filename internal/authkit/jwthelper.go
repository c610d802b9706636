package authkit

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tyemirov/shuttleup/pkg/sessionvalidator"
)

const sessionNotBeforeSkew = 30 * time.Second

// MintSessionJWT creates the signed HS256 session artifact for a verified identity.
func MintSessionJWT(clock Clock, identity VerifiedIdentity, sessionID string, issuer string, signingKey []byte, ttl time.Duration) (string, time.Time, error) {
	if strings.TrimSpace(identity.UserID) == "" {
		return "", time.Time{}, errors.New("jwt.mint.failure: subject must be non-empty")
	}
	if strings.TrimSpace(sessionID) == "" {
		return "", time.Time{}, fmt.Errorf("jwt.mint.failure: %w", ErrEmptySessionID)
	}
	issuedAt := clock.Now().UTC()
	expiresAt := issuedAt.Add(ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionvalidator.Claims{
		UserID:          identity.UserID,
		UserEmail:       identity.Email,
		UserDisplayName: identity.DisplayName,
		UserAvatarURL:   identity.PhotoURL,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionID,
			Issuer:    issuer,
			Subject:   identity.UserID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt.Add(-sessionNotBeforeSkew)),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	signed, err := token.SignedString(signingKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("jwt.mint.failure: %w", err)
	}
	return signed, expiresAt, nil
}
