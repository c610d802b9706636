package sessionbridge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/go-resty/resty/v2"
	"github.com/tyemirov/shuttleup/internal/authkit"
	"github.com/tyemirov/shuttleup/pkg/sessionvalidator"
	"go.uber.org/zap/zaptest"
)

type stubVerifier struct{}

func (stubVerifier) Verify(ctx context.Context, credential string) (authkit.VerifiedIdentity, error) {
	if credential != "good-token" {
		return authkit.VerifiedIdentity{}, fmt.Errorf("rejected: %w", authkit.ErrInvalidCredential)
	}
	return authkit.VerifiedIdentity{UserID: "uid-1", Email: "player@example.com", DisplayName: "Player One"}, nil
}

func newSessionServer(t *testing.T, verifier authkit.CredentialVerifier) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	config := authkit.ServerConfig{
		SessionIssuer:     "shuttleup",
		SessionSigningKey: []byte("bridge-test-key"),
		SessionCookieName: sessionvalidator.DefaultCookieName,
		SessionTTL:        authkit.DefaultSessionTTL,
		SameSiteMode:      http.SameSiteLaxMode,
	}
	sessions := authkit.NewMemorySessionStore(nil)
	validator, err := sessionvalidator.New(sessionvalidator.Config{
		SigningKey:  config.SessionSigningKey,
		Issuer:      config.SessionIssuer,
		Revocations: sessions,
	})
	if err != nil {
		t.Fatalf("validator: %v", err)
	}
	router := gin.New()
	authkit.MountSessionRoutes(router, authkit.RouteDependencies{
		Config:    config,
		Verifier:  verifier,
		Sessions:  sessions,
		Validator: validator,
		Logger:    zaptest.NewLogger(t),
	})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

func TestEstablishApplyAndClear(t *testing.T) {
	server := newSessionServer(t, stubVerifier{})
	client := NewClient(resty.New(), server.URL)

	cookie, err := client.Establish(context.Background(), "good-token")
	if err != nil {
		t.Fatalf("establish: %v", err)
	}
	if client.SessionCookie() != nil {
		t.Fatalf("establish must not apply the cookie itself")
	}
	client.ApplySessionCookie(cookie)

	info, sessionErr := client.Session(context.Background())
	if sessionErr != nil {
		t.Fatalf("session: %v", sessionErr)
	}
	if info.UserID != "uid-1" || info.DisplayName != "Player One" {
		t.Fatalf("unexpected session info: %#v", info)
	}

	cleared, clearErr := client.Clear(context.Background())
	if clearErr != nil {
		t.Fatalf("clear: %v", clearErr)
	}
	if cleared.Value != "" || cleared.MaxAge >= 0 {
		t.Fatalf("expected expiring cookie, got %#v", cleared)
	}
	client.ApplySessionCookie(cleared)
	if client.SessionCookie() != nil {
		t.Fatalf("expected session to be forgotten")
	}

	client.ApplySessionCookie(cookie)
	if _, revokedErr := client.Session(context.Background()); !errors.Is(revokedErr, ErrNoSession) {
		t.Fatalf("expected revoked session to be rejected, got %v", revokedErr)
	}
}

func TestClearIsIdempotent(t *testing.T) {
	server := newSessionServer(t, stubVerifier{})
	client := NewClient(nil, server.URL)

	first, err := client.Clear(context.Background())
	if err != nil {
		t.Fatalf("first clear: %v", err)
	}
	client.ApplySessionCookie(first)
	second, err := client.Clear(context.Background())
	if err != nil {
		t.Fatalf("second clear: %v", err)
	}
	client.ApplySessionCookie(second)
	if first.String() != second.String() || client.SessionCookie() != nil {
		t.Fatalf("expected identical empty state, got %q and %q", first.String(), second.String())
	}
}

func TestEstablishErrorTaxonomy(t *testing.T) {
	server := newSessionServer(t, stubVerifier{})
	client := NewClient(nil, server.URL)

	_, invalidErr := client.Establish(context.Background(), "bad-token")
	if !errors.Is(invalidErr, ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential, got %v", invalidErr)
	}
	var responseErr *ResponseError
	if !errors.As(invalidErr, &responseErr) || responseErr.StatusCode != http.StatusUnauthorized || responseErr.Message != "Invalid ID token" {
		t.Fatalf("unexpected response error: %#v", responseErr)
	}

	_, missingErr := client.Establish(context.Background(), "")
	if !errors.Is(missingErr, ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential for empty token, got %v", missingErr)
	}

	misconfigured := newSessionServer(t, nil)
	_, configErr := NewClient(nil, misconfigured.URL).Establish(context.Background(), "good-token")
	if !errors.Is(configErr, ErrServerMisconfigured) {
		t.Fatalf("expected ErrServerMisconfigured, got %v", configErr)
	}
	if errors.As(configErr, &responseErr) && responseErr.Details != "" {
		t.Fatalf("server configuration errors must not carry details")
	}
}

func TestNetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	address := server.URL
	server.Close()

	client := NewClient(nil, address)
	if _, err := client.Establish(context.Background(), "good-token"); !errors.Is(err, ErrNetworkFailure) {
		t.Fatalf("expected ErrNetworkFailure, got %v", err)
	}
	if _, err := client.Clear(context.Background()); !errors.Is(err, ErrNetworkFailure) {
		t.Fatalf("expected ErrNetworkFailure from clear, got %v", err)
	}
}

func TestUnexpectedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	client := NewClient(nil, server.URL)
	if _, err := client.Establish(context.Background(), "good-token"); !errors.Is(err, ErrUnexpectedResponse) {
		t.Fatalf("expected ErrUnexpectedResponse without cookie, got %v", err)
	}
	if _, err := client.Session(context.Background()); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession without a held cookie, got %v", err)
	}
}
