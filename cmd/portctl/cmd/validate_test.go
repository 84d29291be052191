package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckLoginInput(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		password string
		wantErr  string
	}{
		{"valid", "test@example.com", "123456", ""},
		{"missing email", "", "123456", "Email is required"},
		{"malformed email", "not-an-email", "123456", "Email must be a valid email address"},
		{"missing password", "test@example.com", "", "Password is required"},
		{"short password", "test@example.com", "123", "Password must be at least 6 characters"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkLoginInput(tt.email, tt.password)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, err.Error())
		})
	}
}

func TestCheckRegisterInput(t *testing.T) {
	tests := []struct {
		name     string
		username string
		email    string
		password string
		wantErr  bool
	}{
		{"valid", "Demo User", "test@example.com", "123456", false},
		{"missing username", "", "test@example.com", "123456", true},
		{"single-char username", "x", "test@example.com", "123456", true},
		{"malformed email", "Demo User", "nope", "123456", true},
		{"short password", "Demo User", "test@example.com", "123", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkRegisterInput(tt.username, tt.email, tt.password)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
