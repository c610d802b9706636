// Package sessionbridge is the client side of the session exchange: it trades
// an identity credential for the server's session cookie and clears it again.
package sessionbridge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tyemirov/shuttleup/pkg/sessionvalidator"
)

const (
	sessionLoginPath  = "/api/auth/sessionLogin"
	sessionLogoutPath = "/api/auth/sessionLogout"
	sessionPath       = "/api/auth/session"

	serverConfigurationMessage = "Server configuration error"
)

var (
	// ErrInvalidCredential indicates the server rejected the credential.
	ErrInvalidCredential = errors.New("session_bridge.invalid_credential")
	// ErrServerMisconfigured indicates the server cannot verify credentials at all.
	ErrServerMisconfigured = errors.New("session_bridge.server_misconfigured")
	// ErrNetworkFailure indicates the request never produced an HTTP response.
	ErrNetworkFailure = errors.New("session_bridge.network_failure")
	// ErrUnexpectedResponse indicates a response outside the documented contract.
	ErrUnexpectedResponse = errors.New("session_bridge.unexpected_response")
	// ErrNoSession indicates no session cookie is held or the server rejected it.
	ErrNoSession = errors.New("session_bridge.no_session")
)

// ResponseError carries the server's error body.
type ResponseError struct {
	StatusCode int
	Message    string
	Details    string
	kind       error
}

func (responseError *ResponseError) Error() string {
	if responseError.Details == "" {
		return fmt.Sprintf("%s: status %d: %s", responseError.kind, responseError.StatusCode, responseError.Message)
	}
	return fmt.Sprintf("%s: status %d: %s (%s)", responseError.kind, responseError.StatusCode, responseError.Message, responseError.Details)
}

func (responseError *ResponseError) Unwrap() error {
	return responseError.kind
}

type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}

// SessionInfo is the server's view of the current session.
type SessionInfo struct {
	UserID      string    `json:"user_id"`
	UserEmail   string    `json:"user_email"`
	DisplayName string    `json:"display"`
	AvatarURL   string    `json:"avatar_url"`
	Expires     time.Time `json:"expires"`
}

// Client holds at most one session cookie and attaches it explicitly to requests.
type Client struct {
	http       *resty.Client
	cookieName string

	mutex   sync.Mutex
	session *http.Cookie
}

// NewClient wraps httpClient, pointing it at baseURL. The client's cookie jar is
// disabled so that only applied cookies are ever sent.
func NewClient(httpClient *resty.Client, baseURL string) *Client {
	if httpClient == nil {
		httpClient = resty.New()
	}
	httpClient.SetBaseURL(strings.TrimRight(baseURL, "/"))
	httpClient.SetCookieJar(nil)
	httpClient.SetHeader("Accept", "application/json")
	return &Client{http: httpClient, cookieName: sessionvalidator.DefaultCookieName}
}

// Establish posts credential to the session endpoint and returns the issued cookie
// without applying it.
func (client *Client) Establish(ctx context.Context, credential string) (*http.Cookie, error) {
	failure := &errorBody{}
	response, err := client.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{"idToken": credential}).
		SetError(failure).
		Post(sessionLoginPath)
	if err != nil {
		return nil, fmt.Errorf("session_bridge.establish: %v: %w", err, ErrNetworkFailure)
	}
	switch status := response.StatusCode(); {
	case status == http.StatusOK:
		cookie := findCookie(response.Cookies(), client.cookieName)
		if cookie == nil || cookie.Value == "" {
			return nil, fmt.Errorf("session_bridge.establish: missing %s cookie: %w", client.cookieName, ErrUnexpectedResponse)
		}
		return cookie, nil
	case status == http.StatusBadRequest || status == http.StatusUnauthorized:
		return nil, &ResponseError{StatusCode: status, Message: failure.Error, Details: failure.Details, kind: ErrInvalidCredential}
	case status == http.StatusInternalServerError && failure.Error == serverConfigurationMessage:
		return nil, &ResponseError{StatusCode: status, Message: failure.Error, kind: ErrServerMisconfigured}
	default:
		return nil, &ResponseError{StatusCode: status, Message: failure.Error, Details: failure.Details, kind: ErrUnexpectedResponse}
	}
}

// Clear asks the server to expire the session cookie and returns the expiring
// replacement without applying it. The currently held cookie is sent so the
// server can revoke it.
func (client *Client) Clear(ctx context.Context) (*http.Cookie, error) {
	failure := &errorBody{}
	request := client.http.R().SetContext(ctx).SetError(failure)
	if held := client.SessionCookie(); held != nil {
		request.SetCookie(held)
	}
	response, err := request.Post(sessionLogoutPath)
	if err != nil {
		return nil, fmt.Errorf("session_bridge.clear: %v: %w", err, ErrNetworkFailure)
	}
	if response.StatusCode() != http.StatusOK {
		return nil, &ResponseError{StatusCode: response.StatusCode(), Message: failure.Error, Details: failure.Details, kind: ErrUnexpectedResponse}
	}
	cookie := findCookie(response.Cookies(), client.cookieName)
	if cookie == nil {
		cookie = &http.Cookie{Name: client.cookieName, Value: "", Path: "/", MaxAge: -1}
	}
	return cookie, nil
}

// ApplySessionCookie stores cookie, or forgets the session when cookie is empty or expiring.
func (client *Client) ApplySessionCookie(cookie *http.Cookie) {
	client.mutex.Lock()
	defer client.mutex.Unlock()
	if cookie == nil || cookie.Value == "" || cookie.MaxAge < 0 {
		client.session = nil
		return
	}
	copied := *cookie
	client.session = &copied
}

// SessionCookie returns a copy of the held cookie, or nil.
func (client *Client) SessionCookie() *http.Cookie {
	client.mutex.Lock()
	defer client.mutex.Unlock()
	if client.session == nil {
		return nil
	}
	copied := *client.session
	return &copied
}

// Session fetches the server's view of the held session.
func (client *Client) Session(ctx context.Context) (SessionInfo, error) {
	held := client.SessionCookie()
	if held == nil {
		return SessionInfo{}, ErrNoSession
	}
	info := SessionInfo{}
	response, err := client.http.R().SetContext(ctx).SetCookie(held).SetResult(&info).Get(sessionPath)
	if err != nil {
		return SessionInfo{}, fmt.Errorf("session_bridge.session: %v: %w", err, ErrNetworkFailure)
	}
	switch response.StatusCode() {
	case http.StatusOK:
		return info, nil
	case http.StatusUnauthorized:
		return SessionInfo{}, fmt.Errorf("session_bridge.session: %w", ErrNoSession)
	default:
		return SessionInfo{}, &ResponseError{StatusCode: response.StatusCode(), kind: ErrUnexpectedResponse}
	}
}

func findCookie(cookies []*http.Cookie, name string) *http.Cookie {
	for _, cookie := range cookies {
		if cookie.Name == name {
			return cookie
		}
	}
	return nil
}
