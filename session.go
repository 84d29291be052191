package portsession

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// SessionStore is the single source of truth for the client's authentication
// state. It composes the identity backend client with the persisted snapshot
// and publishes every mutation to its subscribers.
//
// Overlapping auth attempts are not serialized: the last one to resolve wins
// the final state. A generation counter discards results that settle after a
// logout or a newer attempt has advanced the session.
type SessionStore struct {
	mu        sync.Mutex
	api       IdentityAPI
	snapshots *SnapshotStore
	logger    *slog.Logger
	now       func() time.Time

	user            *User
	token           string
	isAuthenticated bool
	isLoading       bool
	gen             uint64
	closed          bool

	subMu     sync.Mutex
	subs      map[uint64]func(Event)
	nextSubID uint64
}

// New creates a SessionStore with the given configuration.
// It validates the configuration, creates the backend client, and opens the
// snapshot store. The caller is expected to run Rehydrate once at startup and
// Close on teardown.
func New(cfg Config) (*SessionStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.WithDefaults()

	api, err := NewAPIClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}

	snapshots, err := NewSnapshotStore(cfg.SnapshotPath)
	if err != nil {
		return nil, fmt.Errorf("create snapshot store: %w", err)
	}

	return &SessionStore{
		api:       api,
		snapshots: snapshots,
		logger:    cfg.Logger,
		now:       time.Now,
		subs:      make(map[uint64]func(Event)),
	}, nil
}

// Login authenticates with email/password credentials.
// On success the backend's token and user become the session state, written
// through to the snapshot store. On failure the prior session state, if any,
// is left untouched.
func (s *SessionStore) Login(ctx context.Context, email, password string) error {
	gen, err := s.beginAttempt()
	if err != nil {
		return err
	}
	defer s.endAttempt()

	resp, err := s.api.Login(ctx, email, password)
	if err != nil {
		s.logger.Warn("login failed", slog.String("kind", string(KindOf(err))))
		return err
	}
	return s.installSession(gen, resp, "login")
}

// Register creates an account and signs in with the issued token.
func (s *SessionStore) Register(ctx context.Context, username, email, password string) error {
	gen, err := s.beginAttempt()
	if err != nil {
		return err
	}
	defer s.endAttempt()

	resp, err := s.api.Register(ctx, username, email, password)
	if err != nil {
		s.logger.Warn("register failed", slog.String("kind", string(KindOf(err))))
		return err
	}
	return s.installSession(gen, resp, "register")
}

// LoginWithGoogle authenticates with an opaque provider-issued assertion.
// The credential is obtained either from the provider SDK integration or, for
// the server-side redirect flow, the application consumes the redirect return
// URL instead (see ConsumeRedirect) and this method is not called.
func (s *SessionStore) LoginWithGoogle(ctx context.Context, credential string) error {
	gen, err := s.beginAttempt()
	if err != nil {
		return err
	}
	defer s.endAttempt()

	resp, err := s.api.GoogleLogin(ctx, credential)
	if err != nil {
		s.logger.Warn("google login failed", slog.String("kind", string(KindOf(err))))
		return err
	}
	return s.installSession(gen, resp, "google login")
}

// UpdateProfile sends a partial profile update and replaces the session user
// with the backend's authoritative representation. The token is unchanged.
// On failure the prior user is left untouched.
func (s *SessionStore) UpdateProfile(ctx context.Context, patch ProfilePatch) error {
	s.mu.Lock()
	token := s.token
	closed := s.closed
	s.mu.Unlock()

	if closed {
		return ErrStoreClosed
	}
	if token == "" {
		return ErrNotAuthenticated
	}
	if s.CheckExpiry() {
		return NewAuthError(KindTokenExpired, 0, "")
	}

	gen, err := s.beginAttempt()
	if err != nil {
		return err
	}
	defer s.endAttempt()

	user, err := s.api.UpdateProfile(ctx, token, patch)
	if err != nil {
		if KindOf(err) == KindUnauthorized {
			s.HandleUnauthorized()
		}
		return err
	}

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		s.logger.Debug("profile update result discarded, session advanced")
		return nil
	}
	s.user = copyUser(user)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	saveErr := s.snapshots.Save(snap)
	s.publish(nil)
	return saveErr
}

// SetAuthenticated installs a session directly from an externally obtained
// token and user. This is the entry point for the OAuth redirect-return path,
// where the backend performed the provider handshake and handed the token
// back in the return URL.
func (s *SessionStore) SetAuthenticated(token string, user *User) error {
	if token == "" || user == nil {
		return ErrNotAuthenticated
	}
	if TokenExpired(token, s.now()) {
		return NewAuthError(KindTokenExpired, 0, "")
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrStoreClosed
	}
	s.gen++
	s.user = copyUser(user)
	s.token = token
	s.isAuthenticated = true
	snap := s.snapshotLocked()
	s.mu.Unlock()

	saveErr := s.snapshots.Save(snap)
	s.publish(nil)
	s.logger.Info("session installed from redirect", slog.String("user_id", user.ID))
	return saveErr
}

// Logout clears the session unconditionally. It is synchronous, always
// succeeds, and is idempotent: calling it while already logged out is a no-op.
// An in-flight auth attempt is not aborted, but its eventual result is
// discarded because the generation has advanced.
func (s *SessionStore) Logout() {
	s.forceLogout(nil, "logout")
}

// HandleUnauthorized reacts to a 401 received on any authenticated request
// anywhere in the application: the session is no longer valid server-side,
// so it performs the logout transition and broadcasts the failure.
func (s *SessionStore) HandleUnauthorized() {
	s.forceLogout(NewAuthError(KindUnauthorized, 0, ""), "backend returned 401")
}

// CheckExpiry proactively validates the token's embedded expiry and forces a
// logout when it has passed. It reports whether an expiry was detected.
// Run it periodically or before authenticated requests; rehydration alone
// only covers the startup boundary.
func (s *SessionStore) CheckExpiry() bool {
	s.mu.Lock()
	token := s.token
	auth := s.isAuthenticated
	s.mu.Unlock()

	if !auth || !TokenExpired(token, s.now()) {
		return false
	}
	s.forceLogout(NewAuthError(KindTokenExpired, 0, ""), "token expired")
	return true
}

// Rehydrate reconstructs the session from the persisted snapshot at startup.
// An expired persisted token yields a logged-out session with the storage
// purged; the expiry is broadcast since no caller awaits it.
func (s *SessionStore) Rehydrate() error {
	snap := s.snapshots.Load()
	if snap == nil || snap.Token == "" || snap.User == nil || !snap.IsAuthenticated {
		s.logger.Debug("rehydrate: no persisted session")
		return nil
	}

	if TokenExpired(snap.Token, s.now()) {
		s.logger.Info("rehydrate: persisted token expired, clearing session")
		s.forceLogout(NewAuthError(KindTokenExpired, 0, ""), "persisted token expired")
		return nil
	}

	s.mu.Lock()
	s.gen++
	s.user = copyUser(snap.User)
	s.token = snap.Token
	s.isAuthenticated = true
	s.mu.Unlock()

	s.publish(nil)
	s.logger.Info("rehydrate: session restored",
		slog.String("user_id", snap.User.ID),
	)
	return nil
}

// State returns a copy of the current session state.
func (s *SessionStore) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		User:            copyUser(s.user),
		Token:           s.token,
		IsAuthenticated: s.isAuthenticated,
		IsLoading:       s.isLoading,
	}
}

// Subscribe registers a listener invoked on every session mutation.
// The returned disposer removes the listener; calling it more than once is
// harmless. Every Subscribe must have a matching disposer call on teardown.
func (s *SessionStore) Subscribe(fn func(Event)) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	if s.subs == nil {
		s.subs = make(map[uint64]func(Event))
	}
	s.nextSubID++
	id := s.nextSubID
	s.subs[id] = fn

	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subs, id)
	}
}

// Close releases subscribers and marks the store unusable for further auth
// operations. The persisted snapshot is left in place for the next start.
func (s *SessionStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.subMu.Lock()
	s.subs = nil
	s.subMu.Unlock()
	return nil
}

// --- Internal transitions ---

// beginAttempt marks a new auth attempt: bumps the generation, raises
// isLoading, and publishes. The returned generation identifies the attempt.
func (s *SessionStore) beginAttempt() (uint64, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, ErrStoreClosed
	}
	s.gen++
	gen := s.gen
	s.isLoading = true
	s.mu.Unlock()

	s.publish(nil)
	return gen, nil
}

// endAttempt clears isLoading regardless of outcome. Deferred by every
// action so the flag can never remain stuck after an attempt settles.
func (s *SessionStore) endAttempt() {
	s.mu.Lock()
	s.isLoading = false
	s.mu.Unlock()
	s.publish(nil)
}

// installSession applies a successful auth response, unless the attempt is
// stale because a logout or a newer attempt advanced the generation.
func (s *SessionStore) installSession(gen uint64, resp *AuthResponse, op string) error {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		s.logger.Info("stale auth result discarded", slog.String("op", op))
		return nil
	}
	s.user = copyUser(resp.User)
	s.token = resp.Token
	s.isAuthenticated = true
	snap := s.snapshotLocked()
	s.mu.Unlock()

	saveErr := s.snapshots.Save(snap)
	s.publish(nil)
	s.logger.Info("session established",
		slog.String("op", op),
		slog.String("user_id", resp.User.ID),
	)
	return saveErr
}

// forceLogout clears the session state and storage. err, when non-nil, is
// broadcast so the failure is observable even without an awaiting caller.
func (s *SessionStore) forceLogout(err error, reason string) {
	s.mu.Lock()
	hadSession := s.user != nil || s.token != "" || s.isAuthenticated
	s.gen++
	s.user = nil
	s.token = ""
	s.isAuthenticated = false
	s.mu.Unlock()

	if clearErr := s.snapshots.Clear(); clearErr != nil {
		s.logger.Warn("failed to clear snapshot", slog.String("error", clearErr.Error()))
	}

	if hadSession || err != nil {
		s.publish(err)
		s.logger.Info("session cleared", slog.String("reason", reason))
	}
}

// snapshotLocked builds the persisted snapshot from current state.
// Must be called with the state lock held.
func (s *SessionStore) snapshotLocked() *Snapshot {
	return &Snapshot{
		Version:         DefaultSnapshotVersion,
		User:            copyUser(s.user),
		Token:           s.token,
		IsAuthenticated: s.isAuthenticated,
	}
}

// publish broadcasts the current state to all subscribers.
func (s *SessionStore) publish(err error) {
	state := s.State()

	s.subMu.Lock()
	fns := make([]func(Event), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(Event{State: state, Err: err})
	}
}

// newSessionStoreForTesting creates a SessionStore with an injected backend
// double and snapshot store, bypassing config validation and HTTP setup.
func newSessionStoreForTesting(api IdentityAPI, snapshots *SnapshotStore) *SessionStore {
	return &SessionStore{
		api:       api,
		snapshots: snapshots,
		logger:    slog.Default(),
		now:       time.Now,
		subs:      make(map[uint64]func(Event)),
	}
}
