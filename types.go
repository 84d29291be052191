// Package portsession provides the client-side session store for the
// portfolio application: it establishes, persists, rehydrates, and tears
// down an authenticated session against the remote identity backend.
package portsession

import (
	"crypto/tls"
	"log/slog"
	"time"
)

// Defaults
const (
	DefaultHTTPTimeout     = 15 * time.Second
	DefaultSnapshotVersion = 1
)

// Provider constants
const (
	ProviderEmail  = "email"
	ProviderGoogle = "google"
)

// Config holds configuration for SessionStore initialization.
type Config struct {
	APIBaseURL    string        // Identity backend base URL
	SnapshotPath  string        // Path to the persisted session snapshot
	HTTPTimeout   time.Duration // HTTP request timeout
	TLSConfig     *tls.Config   // Optional: custom TLS config
	SkipTLSVerify bool          // INSECURE: skip TLS verification
	Logger        *slog.Logger  // Optional: defaults to slog.Default()
}

// WithDefaults returns Config with default values applied.
func (c Config) WithDefaults() Config {
	if c.HTTPTimeout == 0 {
		c.HTTPTimeout = DefaultHTTPTimeout
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Validate checks required configuration fields.
func (c *Config) Validate() error {
	if c.APIBaseURL == "" {
		return ErrMissingAPIBaseURL
	}
	if c.SnapshotPath == "" {
		return ErrMissingSnapshotPath
	}
	return nil
}

// User is the authenticated principal's profile as the backend represents it.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatarUrl,omitempty"`
	Provider  string `json:"provider,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Address   string `json:"address,omitempty"`
	City      string `json:"city,omitempty"`
	State     string `json:"state,omitempty"`
	Zip       string `json:"zip,omitempty"`
}

// ProfilePatch carries the mutable profile fields for UpdateProfile.
// Unset fields are omitted from the request so the backend leaves them alone.
type ProfilePatch struct {
	Username  string `json:"username,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Address   string `json:"address,omitempty"`
	City      string `json:"city,omitempty"`
	State     string `json:"state,omitempty"`
	Zip       string `json:"zip,omitempty"`
}

// AuthResponse is the backend's reply to login, register, and google-login.
type AuthResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

// Snapshot is the persisted session format. IsLoading is transient UI state
// and is never written here.
type Snapshot struct {
	Version         int    `json:"version"`
	User            *User  `json:"user"`
	Token           string `json:"token"`
	IsAuthenticated bool   `json:"isAuthenticated"`
}

// State is the session view published to subscribers.
type State struct {
	User            *User
	Token           string
	IsAuthenticated bool
	IsLoading       bool
}

// Event is broadcast to subscribers on every session mutation.
// Err is non-nil for forced logouts (local token expiry, backend 401)
// where there may be no caller awaiting the failure.
type Event struct {
	State State
	Err   error
}

// copyUser creates a copy of a User so callers cannot mutate store state.
func copyUser(u *User) *User {
	if u == nil {
		return nil
	}
	cp := *u
	return &cp
}
