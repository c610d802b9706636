package authkit

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tyemirov/shuttleup/pkg/sessionvalidator"
	"go.uber.org/zap"
)

const (
	serverConfigurationError = "Server configuration error"
	sessionCreationError     = "Failed to create session cookie"
	internalErrorDetails     = "An internal server error occurred."
)

// ProvisionFunc runs after a session is established. Its failure is logged and
// never fails the sign-in.
type ProvisionFunc func(ctx context.Context, identity VerifiedIdentity) error

// RouteDependencies wires the session endpoints. A nil Verifier leaves
// session establishment disabled.
type RouteDependencies struct {
	Config       ServerConfig
	Verifier     CredentialVerifier
	Sessions     SessionStore
	Nonces       NonceStore
	Validator    *sessionvalidator.Validator
	LoginLimiter *LoginRateLimiter
	Metrics      MetricsRecorder
	Provision    ProvisionFunc
	Clock        Clock
	Logger       *zap.Logger
}

type sessionHandlers struct {
	RouteDependencies
}

// MountSessionRoutes registers /api/auth/sessionLogin, /api/auth/sessionLogout,
// /api/auth/session, and (when a nonce store is configured) /api/auth/nonce.
func MountSessionRoutes(router gin.IRouter, dependencies RouteDependencies) {
	if dependencies.Logger == nil {
		dependencies.Logger = zap.NewNop()
	}
	if dependencies.Metrics == nil {
		dependencies.Metrics = nopMetrics{}
	}
	if dependencies.Clock == nil {
		dependencies.Clock = NewSystemClock()
	}
	handlers := &sessionHandlers{RouteDependencies: dependencies}

	group := router.Group("/api/auth")
	loginChain := []gin.HandlerFunc{}
	if dependencies.LoginLimiter != nil {
		loginChain = append(loginChain, dependencies.LoginLimiter.Middleware())
	}
	loginChain = append(loginChain, handlers.sessionLogin)
	group.POST("/sessionLogin", loginChain...)
	group.POST("/sessionLogout", handlers.sessionLogout)
	group.GET("/session", handlers.currentSession)
	if dependencies.Nonces != nil {
		group.POST("/nonce", handlers.issueNonce)
	}
}

func (handlers *sessionHandlers) sessionLogin(contextGin *gin.Context) {
	if handlers.Verifier == nil || handlers.Sessions == nil || !handlers.Config.CanEstablishSessions() {
		handlers.respondMisconfigured(contextGin, errors.New("session establishment disabled"))
		return
	}

	var inbound struct {
		IDToken string `json:"idToken"`
		Nonce   string `json:"nonce"`
	}
	if bindErr := contextGin.ShouldBindJSON(&inbound); bindErr != nil || strings.TrimSpace(inbound.IDToken) == "" {
		handlers.Metrics.Increment(metricSessionLoginFailure)
		contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":   "ID token is required",
			"details": "Request body must be JSON with a non-empty idToken.",
		})
		return
	}

	nonce := strings.TrimSpace(inbound.Nonce)
	if nonce == "" && handlers.Config.RequireNonce {
		handlers.Metrics.Increment(metricSessionLoginFailure)
		contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":   "Nonce is required",
			"details": "Request a nonce from /api/auth/nonce before signing in.",
		})
		return
	}
	if nonce != "" {
		if handlers.Nonces == nil {
			handlers.respondMisconfigured(contextGin, errors.New("nonce supplied without nonce store"))
			return
		}
		if consumeErr := handlers.Nonces.Consume(contextGin.Request.Context(), nonce); consumeErr != nil {
			handlers.rejectCredential(contextGin, "Invalid nonce", consumeErr)
			return
		}
	}

	identity, verifyErr := handlers.Verifier.Verify(contextGin.Request.Context(), inbound.IDToken)
	switch {
	case verifyErr == nil:
	case errors.Is(verifyErr, ErrInvalidCredential):
		handlers.rejectCredential(contextGin, "Invalid ID token", verifyErr)
		return
	case errors.Is(verifyErr, ErrServerMisconfigured):
		handlers.respondMisconfigured(contextGin, verifyErr)
		return
	default:
		handlers.respondInternal(contextGin, "auth.session_login.verifier_unavailable", verifyErr)
		return
	}
	if nonce != "" && bindsNonce(handlers.Verifier) && identity.Nonce != nonce {
		handlers.rejectCredential(contextGin, "Invalid ID token", errors.New("nonce mismatch"))
		return
	}

	sessionID, idErr := NewSessionID()
	if idErr != nil {
		handlers.respondInternal(contextGin, "auth.session_login.session_id", idErr)
		return
	}
	sessionToken, expiresAt, mintErr := MintSessionJWT(handlers.Clock, identity, sessionID, handlers.Config.SessionIssuer, handlers.Config.SessionSigningKey, handlers.Config.SessionTTL)
	if mintErr != nil {
		handlers.respondInternal(contextGin, "auth.session_login.mint", mintErr)
		return
	}
	if recordErr := handlers.Sessions.Record(contextGin.Request.Context(), sessionID, identity.UserID, expiresAt.Unix()); recordErr != nil {
		handlers.respondInternal(contextGin, "auth.session_login.record", recordErr)
		return
	}

	writeSessionCookie(contextGin, handlers.Config, sessionToken)
	handlers.Metrics.Increment(metricSessionLoginSuccess)
	handlers.Logger.Info("session established",
		zap.String("user_id", identity.UserID),
		zap.String("session_id", sessionID),
	)
	if handlers.Provision != nil {
		if provisionErr := handlers.Provision(contextGin.Request.Context(), identity); provisionErr != nil {
			handlers.Logger.Warn("profile provisioning failed",
				zap.String("code", "auth.session_login.provision"),
				zap.String("user_id", identity.UserID),
				zap.Error(provisionErr),
			)
		}
	}
	contextGin.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (handlers *sessionHandlers) sessionLogout(contextGin *gin.Context) {
	handlers.revokePresentedSession(contextGin)
	clearSessionCookie(contextGin, handlers.Config)
	handlers.Metrics.Increment(metricSessionLogoutSuccess)
	contextGin.JSON(http.StatusOK, gin.H{"status": "success"})
}

// revokePresentedSession is best-effort: an invalid or missing artifact is still cleared.
func (handlers *sessionHandlers) revokePresentedSession(contextGin *gin.Context) {
	if handlers.Validator == nil || handlers.Sessions == nil {
		return
	}
	sessionCookie, cookieErr := contextGin.Request.Cookie(handlers.Config.SessionCookieName)
	if cookieErr != nil || strings.TrimSpace(sessionCookie.Value) == "" {
		return
	}
	claims, validateErr := handlers.Validator.ValidateToken(sessionCookie.Value)
	if validateErr != nil {
		return
	}
	revokeErr := handlers.Sessions.Revoke(contextGin.Request.Context(), claims.GetSessionID())
	if revokeErr != nil && !errors.Is(revokeErr, ErrSessionAlreadyRevoked) && !errors.Is(revokeErr, ErrSessionNotFound) {
		handlers.Logger.Warn("session revocation failed",
			zap.String("code", "auth.session_logout.revoke"),
			zap.String("session_id", claims.GetSessionID()),
			zap.Error(revokeErr),
		)
	}
}

func (handlers *sessionHandlers) currentSession(contextGin *gin.Context) {
	if handlers.Validator == nil {
		contextGin.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": serverConfigurationError})
		return
	}
	claims, validateErr := handlers.Validator.ValidateRequest(contextGin.Request)
	if validateErr != nil {
		contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}
	contextGin.JSON(http.StatusOK, gin.H{
		"user_id":    claims.GetUserID(),
		"user_email": claims.GetUserEmail(),
		"display":    claims.GetUserDisplayName(),
		"avatar_url": claims.GetUserAvatarURL(),
		"expires":    claims.GetExpiresAt(),
	})
}

func (handlers *sessionHandlers) issueNonce(contextGin *gin.Context) {
	nonce, issueErr := handlers.Nonces.Issue(contextGin.Request.Context())
	if issueErr != nil {
		handlers.Logger.Error("nonce issuance failed", zap.String("code", "auth.nonce.issue"), zap.Error(issueErr))
		contextGin.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue nonce"})
		return
	}
	handlers.Metrics.Increment(metricNonceIssued)
	contextGin.JSON(http.StatusOK, gin.H{"nonce": nonce})
}

func (handlers *sessionHandlers) rejectCredential(contextGin *gin.Context, message string, cause error) {
	handlers.Metrics.Increment(metricSessionLoginFailure)
	handlers.Logger.Info("credential rejected",
		zap.String("code", "auth.session_login.invalid_credential"),
		zap.Error(cause),
	)
	contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error":   message,
		"details": cause.Error(),
	})
}

func (handlers *sessionHandlers) respondMisconfigured(contextGin *gin.Context, cause error) {
	handlers.Metrics.Increment(metricSessionLoginMisconfigured)
	handlers.Logger.Error("session establishment unavailable",
		zap.String("code", "auth.session_login.server_misconfigured"),
		zap.Error(cause),
	)
	contextGin.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": serverConfigurationError})
}

func (handlers *sessionHandlers) respondInternal(contextGin *gin.Context, code string, cause error) {
	handlers.Metrics.Increment(metricSessionLoginFailure)
	handlers.Logger.Error("session establishment failed", zap.String("code", code), zap.Error(cause))
	contextGin.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
		"error":   sessionCreationError,
		"details": internalErrorDetails,
	})
}

func writeSessionCookie(contextGin *gin.Context, configuration ServerConfig, sessionToken string) {
	http.SetCookie(contextGin.Writer, &http.Cookie{
		Name:     configuration.SessionCookieName,
		Value:    sessionToken,
		Path:     "/",
		Domain:   configuration.CookieDomain,
		MaxAge:   int(configuration.SessionTTL / time.Second),
		Secure:   configuration.SecureCookies,
		HttpOnly: true,
		SameSite: configuration.SameSiteMode,
	})
}

// clearSessionCookie emits Max-Age=0; net/http serialises MaxAge<0 that way.
func clearSessionCookie(contextGin *gin.Context, configuration ServerConfig) {
	http.SetCookie(contextGin.Writer, &http.Cookie{
		Name:     configuration.SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   configuration.CookieDomain,
		MaxAge:   -1,
		Secure:   configuration.SecureCookies,
		HttpOnly: true,
		SameSite: configuration.SameSiteMode,
	})
}
