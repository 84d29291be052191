package portsession

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mintToken creates a signed token with the given expiry for testing.
// The store never verifies signatures, so any key works.
func mintToken(t *testing.T, expiresAt time.Time) string {
	t.Helper()

	claims := jwt.RegisteredClaims{
		Subject:   "1",
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	raw, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return raw
}

// mintTokenNoExpiry creates a signed token without an exp claim.
func mintTokenNoExpiry(t *testing.T) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "1"})
	raw, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return raw
}

func TestTokenExpiry(t *testing.T) {
	t.Run("decodes the exp claim", func(t *testing.T) {
		want := time.Now().Add(time.Hour).Truncate(time.Second)
		raw := mintToken(t, want)

		exp, ok := TokenExpiry(raw)
		require.True(t, ok)
		assert.True(t, exp.Equal(want))
	})

	t.Run("no exp claim", func(t *testing.T) {
		_, ok := TokenExpiry(mintTokenNoExpiry(t))
		assert.False(t, ok)
	})

	t.Run("opaque non-JWT token", func(t *testing.T) {
		_, ok := TokenExpiry("abc")
		assert.False(t, ok)
	})

	t.Run("empty token", func(t *testing.T) {
		_, ok := TokenExpiry("")
		assert.False(t, ok)
	})
}

func TestTokenExpired(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		token   string
		expired bool
	}{
		{
			name:    "expiry in the past",
			token:   mintToken(t, now.Add(-10*time.Second)),
			expired: true,
		},
		{
			name:    "expiry in the future",
			token:   mintToken(t, now.Add(time.Hour)),
			expired: false,
		},
		{
			name:    "no decodable expiry is never locally expired",
			token:   "abc",
			expired: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expired, TokenExpired(tt.token, now))
		})
	}
}
