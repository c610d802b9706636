package authkit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tyemirov/shuttleup/pkg/sessionvalidator"
	"go.uber.org/zap/zaptest"
)

type stubVerifier struct {
	identities map[string]VerifiedIdentity
	err        error
	calls      int
}

func (verifier *stubVerifier) Verify(ctx context.Context, credential string) (VerifiedIdentity, error) {
	verifier.calls++
	if verifier.err != nil {
		return VerifiedIdentity{}, verifier.err
	}
	identity, ok := verifier.identities[credential]
	if !ok {
		return VerifiedIdentity{}, fmt.Errorf("token expired: %w", ErrInvalidCredential)
	}
	return identity, nil
}

type routeFixture struct {
	router   *gin.Engine
	config   ServerConfig
	sessions *MemorySessionStore
	metrics  *CounterMetrics
}

func newTestServerConfig() ServerConfig {
	return ServerConfig{
		SessionIssuer:     "shuttleup",
		SessionSigningKey: []byte("test-signing-key"),
		SessionCookieName: "__session",
		SessionTTL:        DefaultSessionTTL,
		SameSiteMode:      http.SameSiteLaxMode,
	}
}

func newRouteFixture(t *testing.T, verifier CredentialVerifier, mutate func(*RouteDependencies)) routeFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	clock := fixedClock{timestamp: time.Unix(1700000000, 0).UTC()}
	config := newTestServerConfig()
	sessions := NewMemorySessionStore(clock)
	validator, err := sessionvalidator.New(sessionvalidator.Config{
		SigningKey:  config.SessionSigningKey,
		Issuer:      config.SessionIssuer,
		CookieName:  config.SessionCookieName,
		Clock:       clock,
		Revocations: sessions,
	})
	if err != nil {
		t.Fatalf("validator: %v", err)
	}
	metrics := NewCounterMetrics()
	dependencies := RouteDependencies{
		Config:    config,
		Verifier:  verifier,
		Sessions:  sessions,
		Validator: validator,
		Metrics:   metrics,
		Clock:     clock,
		Logger:    zaptest.NewLogger(t),
	}
	if mutate != nil {
		mutate(&dependencies)
	}
	router := gin.New()
	MountSessionRoutes(router, dependencies)
	return routeFixture{router: router, config: dependencies.Config, sessions: sessions, metrics: metrics}
}

func (fixture routeFixture) do(method string, path string, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	request := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		request.Header.Set("Content-Type", "application/json")
	}
	for _, cookie := range cookies {
		request.AddCookie(cookie)
	}
	recorder := httptest.NewRecorder()
	fixture.router.ServeHTTP(recorder, request)
	return recorder
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var payload map[string]interface{}
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode body %q: %v", recorder.Body.String(), err)
	}
	return payload
}

func sessionCookieFrom(recorder *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, cookie := range recorder.Result().Cookies() {
		if cookie.Name == name {
			return cookie
		}
	}
	return nil
}

func playerVerifier() *stubVerifier {
	return &stubVerifier{identities: map[string]VerifiedIdentity{
		"valid-token": {UserID: "uid-1", Email: "player@example.com", DisplayName: "Player One"},
	}}
}

func TestSessionLifecycle(t *testing.T) {
	fixture := newRouteFixture(t, playerVerifier(), nil)

	login := fixture.do(http.MethodPost, "/api/auth/sessionLogin", `{"idToken":"valid-token"}`)
	if login.Code != http.StatusOK {
		t.Fatalf("expected 200 from login, got %d: %s", login.Code, login.Body.String())
	}
	if decodeBody(t, login)["status"] != "success" {
		t.Fatalf("unexpected login body: %s", login.Body.String())
	}
	cookie := sessionCookieFrom(login, "__session")
	if cookie == nil || cookie.Value == "" {
		t.Fatalf("expected __session cookie")
	}
	if !cookie.HttpOnly || cookie.Secure || cookie.Path != "/" || cookie.SameSite != http.SameSiteLaxMode || cookie.MaxAge != 1209600 {
		t.Fatalf("unexpected cookie attributes: %#v", cookie)
	}

	session := fixture.do(http.MethodGet, "/api/auth/session", "", cookie)
	if session.Code != http.StatusOK {
		t.Fatalf("expected 200 from session, got %d", session.Code)
	}
	if decodeBody(t, session)["user_id"] != "uid-1" {
		t.Fatalf("unexpected session body: %s", session.Body.String())
	}

	logout := fixture.do(http.MethodPost, "/api/auth/sessionLogout", "", cookie)
	if logout.Code != http.StatusOK {
		t.Fatalf("expected 200 from logout, got %d", logout.Code)
	}
	if !strings.Contains(logout.Header().Get("Set-Cookie"), "__session=; Path=/; Max-Age=0; HttpOnly; SameSite=Lax") {
		t.Fatalf("unexpected clearing cookie: %q", logout.Header().Get("Set-Cookie"))
	}

	revoked := fixture.do(http.MethodGet, "/api/auth/session", "", cookie)
	if revoked.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for revoked session, got %d", revoked.Code)
	}

	if fixture.metrics.Count(metricSessionLoginSuccess) != 1 || fixture.metrics.Count(metricSessionLogoutSuccess) != 1 {
		t.Fatalf("unexpected metrics: %#v", fixture.metrics.Snapshot())
	}
}

func TestSessionLogoutIsIdempotent(t *testing.T) {
	fixture := newRouteFixture(t, playerVerifier(), nil)

	first := fixture.do(http.MethodPost, "/api/auth/sessionLogout", "")
	second := fixture.do(http.MethodPost, "/api/auth/sessionLogout", "", &http.Cookie{Name: "__session", Value: "garbage"})
	if first.Code != http.StatusOK || second.Code != http.StatusOK {
		t.Fatalf("expected 200 twice, got %d and %d", first.Code, second.Code)
	}
	if first.Header().Get("Set-Cookie") != second.Header().Get("Set-Cookie") {
		t.Fatalf("expected identical clearing cookies, got %q and %q", first.Header().Get("Set-Cookie"), second.Header().Get("Set-Cookie"))
	}
}

func TestSessionLoginErrors(t *testing.T) {
	tests := []struct {
		name          string
		verifier      CredentialVerifier
		body          string
		expectStatus  int
		expectError   string
		expectDetails bool
	}{
		{name: "missing token", verifier: playerVerifier(), body: `{}`, expectStatus: http.StatusBadRequest, expectError: "ID token is required", expectDetails: true},
		{name: "malformed body", verifier: playerVerifier(), body: `not-json`, expectStatus: http.StatusBadRequest, expectError: "ID token is required", expectDetails: true},
		{name: "invalid token", verifier: &stubVerifier{err: ErrInvalidCredential}, body: `{"idToken":"expired"}`, expectStatus: http.StatusUnauthorized, expectError: "Invalid ID token", expectDetails: true},
		{name: "verifier unavailable", verifier: &stubVerifier{err: ErrVerifierUnavailable}, body: `{"idToken":"valid-token"}`, expectStatus: http.StatusInternalServerError, expectError: "Failed to create session cookie", expectDetails: true},
		{name: "verifier misconfigured", verifier: &stubVerifier{err: ErrServerMisconfigured}, body: `{"idToken":"valid-token"}`, expectStatus: http.StatusInternalServerError, expectError: "Server configuration error"},
		{name: "no verifier", verifier: nil, body: `{"idToken":"valid-token"}`, expectStatus: http.StatusInternalServerError, expectError: "Server configuration error"},
	}
	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			fixture := newRouteFixture(t, testCase.verifier, nil)
			response := fixture.do(http.MethodPost, "/api/auth/sessionLogin", testCase.body)
			if response.Code != testCase.expectStatus {
				t.Fatalf("expected %d, got %d: %s", testCase.expectStatus, response.Code, response.Body.String())
			}
			payload := decodeBody(t, response)
			if payload["error"] != testCase.expectError {
				t.Fatalf("expected error %q, got %v", testCase.expectError, payload["error"])
			}
			_, hasDetails := payload["details"]
			if hasDetails != testCase.expectDetails {
				t.Fatalf("expected details present=%v, got %v", testCase.expectDetails, payload)
			}
			if sessionCookieFrom(response, "__session") != nil {
				t.Fatalf("expected no cookie on failure")
			}
		})
	}
}

func TestSessionLoginWithoutSigningKeyIsMisconfigured(t *testing.T) {
	fixture := newRouteFixture(t, playerVerifier(), func(dependencies *RouteDependencies) {
		dependencies.Config.SessionSigningKey = nil
	})
	response := fixture.do(http.MethodPost, "/api/auth/sessionLogin", `{"idToken":"valid-token"}`)
	if response.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", response.Code)
	}
	if fixture.metrics.Count(metricSessionLoginMisconfigured) != 1 {
		t.Fatalf("expected misconfiguration metric")
	}
}

func TestSessionLoginSecureCookieInProduction(t *testing.T) {
	fixture := newRouteFixture(t, playerVerifier(), func(dependencies *RouteDependencies) {
		dependencies.Config.SecureCookies = true
	})
	response := fixture.do(http.MethodPost, "/api/auth/sessionLogin", `{"idToken":"valid-token"}`)
	cookie := sessionCookieFrom(response, "__session")
	if cookie == nil || !cookie.Secure {
		t.Fatalf("expected secure cookie, got %#v", cookie)
	}
}

func TestSessionLoginNonceBinding(t *testing.T) {
	verifier := &stubVerifier{}
	fixture := newRouteFixture(t, verifier, func(dependencies *RouteDependencies) {
		dependencies.Config.RequireNonce = true
		dependencies.Nonces = NewMemoryNonceStore(time.Minute, dependencies.Clock)
	})

	missing := fixture.do(http.MethodPost, "/api/auth/sessionLogin", `{"idToken":"valid-token"}`)
	if missing.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without nonce, got %d", missing.Code)
	}

	issued := fixture.do(http.MethodPost, "/api/auth/nonce", "")
	if issued.Code != http.StatusOK {
		t.Fatalf("expected 200 from nonce, got %d", issued.Code)
	}
	nonce, _ := decodeBody(t, issued)["nonce"].(string)
	if nonce == "" {
		t.Fatalf("expected nonce value")
	}
	verifier.identities = map[string]VerifiedIdentity{
		"valid-token": {UserID: "uid-1", Email: "player@example.com", Nonce: nonce},
	}

	body := `{"idToken":"valid-token","nonce":"` + nonce + `"}`
	login := fixture.do(http.MethodPost, "/api/auth/sessionLogin", body)
	if login.Code != http.StatusOK {
		t.Fatalf("expected 200 with nonce, got %d: %s", login.Code, login.Body.String())
	}
	replay := fixture.do(http.MethodPost, "/api/auth/sessionLogin", body)
	if replay.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 on nonce replay, got %d", replay.Code)
	}
}

type requestNonceVerifier struct {
	stubVerifier
}

func (verifier *requestNonceVerifier) BindsNonce() bool {
	return false
}

func TestSessionLoginNonceClaimMatching(t *testing.T) {
	testCases := []struct {
		name         string
		verifier     func() CredentialVerifier
		expectStatus int
	}{
		{
			name: "binding verifier rejects missing claim",
			verifier: func() CredentialVerifier {
				return playerVerifier()
			},
			expectStatus: http.StatusUnauthorized,
		},
		{
			name: "request-only verifier accepts missing claim",
			verifier: func() CredentialVerifier {
				return &requestNonceVerifier{stubVerifier: *playerVerifier()}
			},
			expectStatus: http.StatusOK,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			fixture := newRouteFixture(t, testCase.verifier(), func(dependencies *RouteDependencies) {
				dependencies.Config.RequireNonce = true
				dependencies.Nonces = NewMemoryNonceStore(time.Minute, dependencies.Clock)
			})
			issued := fixture.do(http.MethodPost, "/api/auth/nonce", "")
			nonce, _ := decodeBody(t, issued)["nonce"].(string)
			if nonce == "" {
				t.Fatalf("expected nonce value")
			}
			login := fixture.do(http.MethodPost, "/api/auth/sessionLogin", `{"idToken":"valid-token","nonce":"`+nonce+`"}`)
			if login.Code != testCase.expectStatus {
				t.Fatalf("expected %d, got %d: %s", testCase.expectStatus, login.Code, login.Body.String())
			}
		})
	}
}

func TestSessionLoginRateLimited(t *testing.T) {
	fixture := newRouteFixture(t, playerVerifier(), func(dependencies *RouteDependencies) {
		dependencies.LoginLimiter = NewLoginRateLimiter(LoginRateLimiterConfig{RequestsPerMinute: 1}, dependencies.Clock, nil, nil)
	})
	first := fixture.do(http.MethodPost, "/api/auth/sessionLogin", `{"idToken":"valid-token"}`)
	second := fixture.do(http.MethodPost, "/api/auth/sessionLogin", `{"idToken":"valid-token"}`)
	if first.Code != http.StatusOK || second.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 200 then 429, got %d and %d", first.Code, second.Code)
	}
}

func TestRequireSession(t *testing.T) {
	fixture := newRouteFixture(t, playerVerifier(), nil)
	login := fixture.do(http.MethodPost, "/api/auth/sessionLogin", `{"idToken":"valid-token"}`)
	cookie := sessionCookieFrom(login, "__session")

	validator, err := sessionvalidator.New(sessionvalidator.Config{
		SigningKey:  fixture.config.SessionSigningKey,
		Issuer:      fixture.config.SessionIssuer,
		Clock:       fixedClock{timestamp: time.Unix(1700000000, 0).UTC()},
		Revocations: fixture.sessions,
	})
	if err != nil {
		t.Fatalf("validator: %v", err)
	}
	router := gin.New()
	router.GET("/api/profile", RequireSession(validator), func(contextGin *gin.Context) {
		claims, ok := SessionClaims(contextGin)
		if !ok {
			contextGin.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		contextGin.String(http.StatusOK, claims.GetUserID())
	})

	request := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	request.AddCookie(cookie)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)
	if recorder.Code != http.StatusOK || recorder.Body.String() != "uid-1" {
		t.Fatalf("unexpected response %d %q", recorder.Code, recorder.Body.String())
	}

	unconfigured := gin.New()
	unconfigured.GET("/api/profile", RequireSession(nil))
	misconfigured := httptest.NewRecorder()
	unconfigured.ServeHTTP(misconfigured, httptest.NewRequest(http.MethodGet, "/api/profile", nil))
	if misconfigured.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 without validator, got %d", misconfigured.Code)
	}
}

func TestSessionLoginProvisionFailureDoesNotBlock(t *testing.T) {
	var provisioned []string
	fixture := newRouteFixture(t, playerVerifier(), func(dependencies *RouteDependencies) {
		dependencies.Provision = func(ctx context.Context, identity VerifiedIdentity) error {
			provisioned = append(provisioned, identity.UserID)
			return errors.New("firestore unavailable")
		}
	})

	login := fixture.do(http.MethodPost, "/api/auth/sessionLogin", `{"idToken":"valid-token"}`)
	if login.Code != http.StatusOK {
		t.Fatalf("expected provisioning failure to be tolerated, got %d", login.Code)
	}
	if sessionCookieFrom(login, "__session") == nil {
		t.Fatalf("expected session cookie despite provisioning failure")
	}
	if len(provisioned) != 1 || provisioned[0] != "uid-1" {
		t.Fatalf("unexpected provisioning calls %v", provisioned)
	}
}
