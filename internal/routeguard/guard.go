// Package routeguard decides, per navigation request, whether to pass the
// request through or redirect it before any page renders.
//
// The edge applies a single rule: a visitor holding a session artifact is sent
// from the login page to the app entry. Protected paths are always allowed here;
// the client-side gate is the only authority that turns signed-out visitors away
// from /app.
package routeguard

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/tyemirov/shuttleup/pkg/sessionvalidator"
	"go.uber.org/zap"
)

// Class is the routing classification of a path.
type Class string

const (
	ClassPublic Class = "public"
	ClassLogin  Class = "login"
	ClassApp    Class = "app"
)

const (
	// LoginPath is the auth-only entry page.
	LoginPath = "/login"
	// AppEntryPath is where signed-in visitors land.
	AppEntryPath = "/app"
)

var excludedPrefixes = []string{
	"/api",
	"/static",
	"/_next",
	"/images",
	"/fonts",
	"/favicon.ico",
	"/metrics",
}

// Decision is either an allow or a redirect target.
type Decision struct {
	Allow      bool
	RedirectTo string
}

// Classify maps a request path onto its routing class.
func Classify(path string) Class {
	switch {
	case strings.HasPrefix(path, LoginPath):
		return ClassLogin
	case strings.HasPrefix(path, AppEntryPath):
		return ClassApp
	default:
		return ClassPublic
	}
}

// Decide never redirects away from /app.
func Decide(path string, hasSessionArtifact bool) Decision {
	if hasSessionArtifact && Classify(path) == ClassLogin {
		return Decision{RedirectTo: AppEntryPath}
	}
	return Decision{Allow: true}
}

// Excluded reports whether the guard skips path entirely.
func Excluded(path string) bool {
	for _, prefix := range excludedPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// ArtifactProbe reports whether a request carries a session artifact.
type ArtifactProbe interface {
	HasSessionArtifact(request *http.Request) bool
}

// VerifyingProbe only counts artifacts that pass full validation, so a stale
// cookie cannot bounce a visitor between /login and /app.
type VerifyingProbe struct {
	Validator *sessionvalidator.Validator
}

// HasSessionArtifact validates the session cookie on request.
func (probe VerifyingProbe) HasSessionArtifact(request *http.Request) bool {
	if probe.Validator == nil {
		return false
	}
	_, err := probe.Validator.ValidateRequest(request)
	return err == nil
}

// Middleware applies Decide to every non-excluded GET or HEAD request.
func Middleware(probe ArtifactProbe, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(contextGin *gin.Context) {
		request := contextGin.Request
		if request.Method != http.MethodGet && request.Method != http.MethodHead {
			contextGin.Next()
			return
		}
		path := request.URL.Path
		if Excluded(path) {
			contextGin.Next()
			return
		}
		decision := Decide(path, probe.HasSessionArtifact(request))
		if decision.Allow {
			contextGin.Next()
			return
		}
		logger.Debug("route guard redirect",
			zap.String("path", path),
			zap.String("redirect_to", decision.RedirectTo),
		)
		contextGin.Redirect(http.StatusTemporaryRedirect, decision.RedirectTo)
		contextGin.Abort()
	}
}
