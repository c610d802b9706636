package authkit

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tyemirov/shuttleup/pkg/sessionvalidator"
)

// RequireSession validates the session artifact and injects its claims under
// sessionvalidator.DefaultContextKey.
func RequireSession(validator *sessionvalidator.Validator) gin.HandlerFunc {
	if validator == nil {
		return func(contextGin *gin.Context) {
			contextGin.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": serverConfigurationError})
		}
	}
	return validator.GinMiddleware(sessionvalidator.DefaultContextKey)
}

// SessionClaims returns the claims injected by RequireSession.
func SessionClaims(contextGin *gin.Context) (*sessionvalidator.Claims, bool) {
	return sessionvalidator.ClaimsFromContext(contextGin, sessionvalidator.DefaultContextKey)
}
