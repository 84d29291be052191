package portsession

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *AuthError
		expected string
	}{
		{
			name:     "with status and message",
			err:      &AuthError{Kind: KindInvalidCredentials, StatusCode: 401, Message: "Invalid email or password"},
			expected: "invalid_credentials (HTTP 401): Invalid email or password",
		},
		{
			name:     "transport failure has no status",
			err:      &AuthError{Kind: KindNetwork, Message: "Could not reach the server"},
			expected: "network: Could not reach the server",
		},
		{
			name:     "timeout",
			err:      &AuthError{Kind: KindTimeout, Message: "The server took too long to respond"},
			expected: "timeout: The server took too long to respond",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestAuthError_Is(t *testing.T) {
	tests := []struct {
		name        string
		authErr     *AuthError
		target      error
		shouldMatch bool
	}{
		{
			name:        "invalid credentials matches its sentinel",
			authErr:     &AuthError{Kind: KindInvalidCredentials},
			target:      ErrInvalidCredentials,
			shouldMatch: true,
		},
		{
			name:        "duplicate account matches its sentinel",
			authErr:     &AuthError{Kind: KindDuplicateAccount},
			target:      ErrDuplicateAccount,
			shouldMatch: true,
		},
		{
			name:        "unauthorized does not match invalid credentials",
			authErr:     &AuthError{Kind: KindUnauthorized},
			target:      ErrInvalidCredentials,
			shouldMatch: false,
		},
		{
			name:        "token expired matches its sentinel",
			authErr:     &AuthError{Kind: KindTokenExpired},
			target:      ErrTokenExpired,
			shouldMatch: true,
		},
		{
			name:        "network matches its sentinel",
			authErr:     &AuthError{Kind: KindNetwork},
			target:      ErrNetwork,
			shouldMatch: true,
		},
		{
			name:        "unknown kind matches nothing",
			authErr:     &AuthError{Kind: ErrorKind("weird")},
			target:      ErrNetwork,
			shouldMatch: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.shouldMatch, errors.Is(tt.authErr, tt.target))
		})
	}
}

func TestNewAuthError_DefaultMessages(t *testing.T) {
	for kind, want := range defaultMessages {
		err := NewAuthError(kind, 0, "")
		assert.Equal(t, want, err.Message, "kind %s", kind)
	}
}

func TestNewAuthError_BackendMessageWins(t *testing.T) {
	err := NewAuthError(KindInvalidCredentials, 401, "Invalid email or password")
	assert.Equal(t, "Invalid email or password", err.Message)
	assert.Equal(t, 401, err.StatusCode)
}

func TestKindOf(t *testing.T) {
	require.Equal(t, KindValidation, KindOf(NewAuthError(KindValidation, 400, "")))

	// Wrapped AuthErrors are still recognized
	wrapped := fmt.Errorf("login: %w", NewAuthError(KindTimeout, 0, ""))
	require.Equal(t, KindTimeout, KindOf(wrapped))

	require.Equal(t, ErrorKind(""), KindOf(errors.New("plain")))
	require.Equal(t, ErrorKind(""), KindOf(nil))
}

func TestNormalizeTransportError(t *testing.T) {
	t.Run("context deadline becomes timeout", func(t *testing.T) {
		err := normalizeTransportError(context.DeadlineExceeded)
		assert.Equal(t, KindTimeout, err.Kind)
	})

	t.Run("url timeout becomes timeout", func(t *testing.T) {
		urlErr := &url.Error{Op: "Post", URL: "https://api", Err: context.DeadlineExceeded}
		err := normalizeTransportError(urlErr)
		assert.Equal(t, KindTimeout, err.Kind)
	})

	t.Run("connection refused becomes network", func(t *testing.T) {
		urlErr := &url.Error{Op: "Post", URL: "https://api", Err: errors.New("connection refused")}
		err := normalizeTransportError(urlErr)
		assert.Equal(t, KindNetwork, err.Kind)
		assert.Equal(t, defaultMessages[KindNetwork], err.Message)
	})
}
