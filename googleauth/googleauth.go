// Package googleauth obtains a Google-issued credential through the
// authorization-code flow with a loopback redirect listener. The resulting
// ID token is the opaque assertion fed to SessionStore.LoginWithGoogle.
package googleauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	portsession "github.com/Sahityah/portfolio-session"
)

// DefaultScopes requested from Google. The openid scope is required for the
// provider to include an ID token in the exchange response.
var DefaultScopes = []string{"openid", "email", "profile"}

// Config holds the provider client registration and flow options.
type Config struct {
	ClientID     string
	ClientSecret string
	Scopes       []string       // defaults to DefaultScopes
	ListenAddr   string             // loopback listener, defaults to 127.0.0.1:0
	OpenURL      func(string) error // how to present the auth URL; defaults to logging it
	Logger       *slog.Logger
	Endpoint     *oauth2.Endpoint // overrides the Google endpoint, used in tests
}

// Flow runs the interactive Google sign-in and yields the credential.
type Flow struct {
	oauth   *oauth2.Config
	listen  string
	openURL func(string) error
	logger  *slog.Logger
}

// New creates a Flow from the given configuration.
func New(cfg Config) (*Flow, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("googleauth: client ID and secret are required")
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}
	listen := cfg.ListenAddr
	if listen == "" {
		listen = "127.0.0.1:0"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	openURL := cfg.OpenURL
	if openURL == nil {
		openURL = func(u string) error {
			logger.Info("open this URL to sign in with Google", slog.String("url", u))
			return nil
		}
	}

	endpoint := google.Endpoint
	if cfg.Endpoint != nil {
		endpoint = *cfg.Endpoint
	}

	return &Flow{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     endpoint,
			Scopes:       scopes,
		},
		listen:  listen,
		openURL: openURL,
		logger:  logger,
	}, nil
}

// callbackResult carries the provider's answer from the loopback handler.
type callbackResult struct {
	code string
	err  error
}

// Authenticate runs the code flow: it starts the loopback listener, sends
// the user to the provider, waits for the redirect, and exchanges the code.
// The returned credential is the provider's ID token.
func (f *Flow) Authenticate(ctx context.Context) (string, error) {
	state, err := randomState()
	if err != nil {
		return "", fmt.Errorf("googleauth: generate state: %w", err)
	}

	listener, err := net.Listen("tcp", f.listen)
	if err != nil {
		return "", fmt.Errorf("googleauth: listen: %w", err)
	}

	cfg := *f.oauth
	cfg.RedirectURL = fmt.Sprintf("http://%s/callback", listener.Addr().String())

	results := make(chan callbackResult, 1)

	r := chi.NewRouter()
	r.Get("/callback", func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()

		if errParam := q.Get("error"); errParam != "" {
			http.Error(w, "Sign-in failed, you can close this window.", http.StatusBadRequest)
			results <- callbackResult{err: portsession.NewAuthError(portsession.KindProvider, 0, errParam)}
			return
		}
		if q.Get("state") != state {
			http.Error(w, "State mismatch, you can close this window.", http.StatusBadRequest)
			results <- callbackResult{err: portsession.NewAuthError(portsession.KindProvider, 0, "state mismatch")}
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><body>Signed in. You can close this window.</body></html>"))
		results <- callbackResult{code: q.Get("code")}
	})

	srv := &http.Server{Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() { _ = srv.Serve(listener) }()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	authURL := cfg.AuthCodeURL(state, oauth2.AccessTypeOffline)
	if err := f.openURL(authURL); err != nil {
		return "", fmt.Errorf("googleauth: open auth URL: %w", err)
	}

	var result callbackResult
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case result = <-results:
	}
	if result.err != nil {
		return "", result.err
	}

	token, err := cfg.Exchange(ctx, result.code)
	if err != nil {
		return "", portsession.NewAuthError(portsession.KindProvider, 0, "code exchange failed")
	}

	idToken, ok := token.Extra("id_token").(string)
	if !ok || idToken == "" {
		return "", portsession.NewAuthError(portsession.KindProvider, 0, "provider returned no ID token")
	}
	return idToken, nil
}

// randomState generates the CSRF state parameter.
func randomState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
