package portsession

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// IdentityAPI is the identity backend collaborator consumed by the
// SessionStore. A test double substitutes for the real HTTP client.
type IdentityAPI interface {
	Login(ctx context.Context, email, password string) (*AuthResponse, error)
	Register(ctx context.Context, username, email, password string) (*AuthResponse, error)
	GoogleLogin(ctx context.Context, credential string) (*AuthResponse, error)
	GetProfile(ctx context.Context, token string) (*User, error)
	UpdateProfile(ctx context.Context, token string, patch ProfilePatch) (*User, error)
}

// APIClient handles HTTP communication with the identity backend.
type APIClient struct {
	httpClient *http.Client
	baseURL    string
}

// Verify interface compliance
var _ IdentityAPI = (*APIClient)(nil)

// NewAPIClient creates a new client instance.
func NewAPIClient(cfg Config) (*APIClient, error) {
	cfg = cfg.WithDefaults()

	// Build TLS config
	tlsConfig := cfg.TLSConfig
	if tlsConfig == nil {
		tlsConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	if cfg.SkipTLSVerify {
		tlsConfig.InsecureSkipVerify = true
	}

	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig:     tlsConfig,
	}

	return &APIClient{
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout, Transport: transport},
		baseURL:    strings.TrimSuffix(cfg.APIBaseURL, "/"),
	}, nil
}

// Login exchanges email/password credentials for a token and user.
func (c *APIClient) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	body := map[string]string{"email": email, "password": password}
	return c.authRequest(ctx, "/auth/login", body, mapLoginStatus)
}

// Register creates an account and returns the issued token and user.
// Email uniqueness is the backend's responsibility; a conflict is surfaced
// as DuplicateAccount without further interpretation.
func (c *APIClient) Register(ctx context.Context, username, email, password string) (*AuthResponse, error) {
	body := map[string]string{"username": username, "email": email, "password": password}
	return c.authRequest(ctx, "/auth/register", body, mapRegisterStatus)
}

// GoogleLogin exchanges a provider-issued assertion for a token and user.
func (c *APIClient) GoogleLogin(ctx context.Context, credential string) (*AuthResponse, error) {
	body := map[string]string{"credential": credential}
	return c.authRequest(ctx, "/auth/google-login", body, mapGoogleStatus)
}

// GetProfile fetches the authenticated user's profile.
func (c *APIClient) GetProfile(ctx context.Context, token string) (*User, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/auth/profile", token, nil, mapAuthenticatedStatus)
	if err != nil {
		return nil, err
	}

	var user User
	if err := json.Unmarshal(resp, &user); err != nil {
		return nil, NewAuthError(KindNetwork, 0, "malformed profile response")
	}
	return &user, nil
}

// UpdateProfile sends a partial profile update and returns the backend's
// authoritative user representation.
func (c *APIClient) UpdateProfile(ctx context.Context, token string, patch ProfilePatch) (*User, error) {
	resp, err := c.doRequest(ctx, http.MethodPut, "/auth/profile", token, patch, mapAuthenticatedStatus)
	if err != nil {
		return nil, err
	}

	var user User
	if err := json.Unmarshal(resp, &user); err != nil {
		return nil, NewAuthError(KindNetwork, 0, "malformed profile response")
	}
	return &user, nil
}

// authRequest posts an unauthenticated auth operation and decodes the
// token/user envelope.
func (c *APIClient) authRequest(ctx context.Context, path string, body interface{}, mapStatus statusMapper) (*AuthResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, path, "", body, mapStatus)
	if err != nil {
		return nil, err
	}

	var result AuthResponse
	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, NewAuthError(KindNetwork, 0, "malformed auth response")
	}
	if result.Token == "" || result.User == nil {
		return nil, NewAuthError(KindNetwork, 0, "incomplete auth response")
	}
	return &result, nil
}

// statusMapper converts an HTTP error status into the taxonomy kind for the
// operation that produced it. A 401 means different things on a login
// attempt (bad credentials) and on an authenticated call (dead session).
type statusMapper func(statusCode int) ErrorKind

func mapLoginStatus(statusCode int) ErrorKind {
	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindInvalidCredentials
	case http.StatusBadRequest:
		return KindValidation
	default:
		return KindNetwork
	}
}

func mapRegisterStatus(statusCode int) ErrorKind {
	switch statusCode {
	case http.StatusConflict:
		return KindDuplicateAccount
	case http.StatusBadRequest:
		return KindValidation
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindInvalidCredentials
	default:
		return KindNetwork
	}
}

func mapGoogleStatus(statusCode int) ErrorKind {
	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindProvider
	case http.StatusBadRequest:
		return KindValidation
	default:
		return KindNetwork
	}
}

func mapAuthenticatedStatus(statusCode int) ErrorKind {
	switch statusCode {
	case http.StatusUnauthorized:
		return KindUnauthorized
	case http.StatusBadRequest:
		return KindValidation
	default:
		return KindNetwork
	}
}

func (c *APIClient) doRequest(ctx context.Context, method, path, token string, body interface{}, mapStatus statusMapper) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, NewAuthError(KindNetwork, 0, "")
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, NewAuthError(KindNetwork, 0, "")
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.New().String())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, normalizeTransportError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, normalizeTransportError(err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(respBody, &errResp)
		return nil, NewAuthError(mapStatus(resp.StatusCode), resp.StatusCode, errResp.Message)
	}

	return respBody, nil
}
