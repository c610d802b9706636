package authkit

import "errors"

var (
	// ErrInvalidCredential indicates a malformed, expired, or otherwise rejected identity credential.
	ErrInvalidCredential = errors.New("session.invalid_credential")
	// ErrServerMisconfigured indicates the trusted verification service could not be initialised.
	ErrServerMisconfigured = errors.New("session.server_misconfigured")
	// ErrVerifierUnavailable indicates the verification service failed for reasons unrelated to the credential.
	ErrVerifierUnavailable = errors.New("session.verifier_unavailable")

	// ErrSessionNotFound indicates no session record matched the provided identifier.
	ErrSessionNotFound = errors.New("session_store.not_found")
	// ErrSessionRevoked indicates the session has been revoked.
	ErrSessionRevoked = errors.New("session_store.revoked")
	// ErrSessionExpired indicates the session has exceeded its expiry.
	ErrSessionExpired = errors.New("session_store.expired")
	// ErrSessionAlreadyRevoked signals an idempotent revoke call on an already-revoked session.
	ErrSessionAlreadyRevoked = errors.New("session_store.already_revoked")
	// ErrEmptySessionID indicates that the provided session identifier is empty.
	ErrEmptySessionID = errors.New("session_store.empty_session_id")
)
