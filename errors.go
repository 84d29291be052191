package portsession

import (
	"context"
	"errors"
	"fmt"
	"net/url"
)

// ErrorKind classifies every failure the session store can surface.
type ErrorKind string

const (
	KindInvalidCredentials ErrorKind = "invalid_credentials"
	KindDuplicateAccount   ErrorKind = "duplicate_account"
	KindValidation         ErrorKind = "validation"
	KindUnauthorized       ErrorKind = "unauthorized"
	KindNetwork            ErrorKind = "network"
	KindTimeout            ErrorKind = "timeout"
	KindProvider           ErrorKind = "provider"
	KindTokenExpired       ErrorKind = "token_expired"
)

// Sentinel errors - Configuration
var (
	ErrMissingAPIBaseURL   = errors.New("portsession: APIBaseURL is required")
	ErrMissingSnapshotPath = errors.New("portsession: SnapshotPath is required")
)

// Sentinel errors - Session
var (
	ErrNotAuthenticated = errors.New("portsession: not authenticated")
	ErrStoreClosed      = errors.New("portsession: session store is closed")
)

// Sentinel errors - Snapshot store
var (
	ErrSnapshotPersist   = errors.New("portsession: failed to persist snapshot")
	ErrSnapshotCorrupted = errors.New("portsession: snapshot corrupted")
)

// Sentinel errors - Auth taxonomy, one per kind
var (
	ErrInvalidCredentials = errors.New("portsession: invalid credentials")
	ErrDuplicateAccount   = errors.New("portsession: account already exists")
	ErrValidation         = errors.New("portsession: request rejected by backend validation")
	ErrUnauthorized       = errors.New("portsession: session no longer valid")
	ErrNetwork            = errors.New("portsession: failed to reach identity backend")
	ErrTimeout            = errors.New("portsession: identity backend request timed out")
	ErrProvider           = errors.New("portsession: identity provider rejected the request")
	ErrTokenExpired       = errors.New("portsession: token expired")
)

// defaultMessages are the human-readable fallbacks used when the backend
// supplies no message of its own.
var defaultMessages = map[ErrorKind]string{
	KindInvalidCredentials: "Invalid email or password",
	KindDuplicateAccount:   "An account with this email already exists",
	KindValidation:         "The request was rejected, check your input",
	KindUnauthorized:       "Your session has expired, please sign in again",
	KindNetwork:            "Could not reach the server",
	KindTimeout:            "The server took too long to respond",
	KindProvider:           "Sign-in with the identity provider failed",
	KindTokenExpired:       "Your session has expired, please sign in again",
}

// sentinelFor maps kinds to their sentinel errors for errors.Is checks.
var sentinelFor = map[ErrorKind]error{
	KindInvalidCredentials: ErrInvalidCredentials,
	KindDuplicateAccount:   ErrDuplicateAccount,
	KindValidation:         ErrValidation,
	KindUnauthorized:       ErrUnauthorized,
	KindNetwork:            ErrNetwork,
	KindTimeout:            ErrTimeout,
	KindProvider:           ErrProvider,
	KindTokenExpired:       ErrTokenExpired,
}

// AuthError is the normalized error every store action rejects with.
// Raw transport errors never leak past the identity client boundary.
type AuthError struct {
	Kind       ErrorKind
	Message    string // backend-supplied where available, generic otherwise
	StatusCode int    // HTTP status, 0 for transport-level failures
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s (HTTP %d): %s", e.Kind, e.StatusCode, e.Message)
}

// Is implements the errors.Is interface so callers can match an AuthError
// against the taxonomy sentinels.
func (e *AuthError) Is(target error) bool {
	sentinel, ok := sentinelFor[e.Kind]
	if !ok {
		return false
	}
	return errors.Is(target, sentinel)
}

// NewAuthError creates an AuthError, filling in the per-kind default message
// when the backend supplied none.
func NewAuthError(kind ErrorKind, statusCode int, message string) *AuthError {
	if message == "" {
		message = defaultMessages[kind]
	}
	return &AuthError{
		Kind:       kind,
		Message:    message,
		StatusCode: statusCode,
	}
}

// KindOf returns the ErrorKind carried by err, or "" when err is not an
// AuthError.
func KindOf(err error) ErrorKind {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

// normalizeTransportError converts a failed round trip into the taxonomy.
// Context deadlines become Timeout, everything else Network.
func normalizeTransportError(err error) *AuthError {
	if errors.Is(err, context.DeadlineExceeded) {
		return NewAuthError(KindTimeout, 0, "")
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return NewAuthError(KindTimeout, 0, "")
	}
	return NewAuthError(KindNetwork, 0, "")
}
