package authkit

import (
	"net/http"
	"time"
)

// DefaultSessionTTL is the lifetime of the session artifact (14 days).
const DefaultSessionTTL = 14 * 24 * time.Hour

// ServerConfig configures the session artifact and its cookie.
type ServerConfig struct {
	SessionIssuer     string
	SessionSigningKey []byte
	SessionCookieName string
	SessionTTL        time.Duration
	CookieDomain      string
	SameSiteMode      http.SameSite
	SecureCookies     bool
	RequireNonce      bool
}

// CanEstablishSessions reports whether enough configuration exists to mint session artifacts.
func (configuration ServerConfig) CanEstablishSessions() bool {
	return len(configuration.SessionSigningKey) > 0 && configuration.SessionIssuer != "" && configuration.SessionTTL > 0
}
