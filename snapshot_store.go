package portsession

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// SnapshotStore persists the session snapshot with atomic file writes.
// The SessionStore is its sole writer; no other component touches the file.
type SnapshotStore struct {
	mu   sync.RWMutex
	path string
	data *Snapshot // nil when no session is persisted
}

// NewSnapshotStore creates or opens a snapshot store at the given path.
// If the file doesn't exist, the store starts empty.
// If the directory doesn't exist, it is created with 0700 permissions.
func NewSnapshotStore(path string) (*SnapshotStore, error) {
	store := &SnapshotStore{path: path}

	// Create directory with restricted permissions
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}

	// Load existing snapshot file
	if err := store.load(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	return store, nil
}

// load reads the snapshot from disk.
// Returns os.ErrNotExist if the file doesn't exist (not an error for new stores).
func (s *SnapshotStore) load() error {
	f, err := os.Open(s.path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	// Empty file is valid - treat as no persisted session
	if len(data) == 0 {
		return nil
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("%w: %v", ErrSnapshotCorrupted, err)
	}

	// Version validation
	if snap.Version > DefaultSnapshotVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrSnapshotCorrupted, snap.Version)
	}

	s.data = &snap
	return nil
}

// Save writes the snapshot through to disk atomically using the temp file +
// rename pattern.
func (s *SnapshotStore) Save(snap *Snapshot) error {
	if snap == nil {
		return fmt.Errorf("snapshot cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *snap
	cp.User = copyUser(snap.User)
	if cp.Version == 0 {
		cp.Version = DefaultSnapshotVersion
	}

	// Memory-only store used in tests
	if s.path == "" {
		s.data = &cp
		return nil
	}

	data, err := json.MarshalIndent(&cp, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	tmpPath := s.path + ".tmp"

	// Create temp file with restricted permissions
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("%w: create temp: %v", ErrSnapshotPersist, err)
	}

	// Write data
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("%w: write: %v", ErrSnapshotPersist, err)
	}

	// Fsync to ensure data is on disk before rename
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("%w: fsync: %v", ErrSnapshotPersist, err)
	}

	// Close before rename
	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("%w: close: %v", ErrSnapshotPersist, err)
	}

	// Atomic rename
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("%w: rename: %v", ErrSnapshotPersist, err)
	}

	s.data = &cp
	return nil
}

// Load returns a copy of the persisted snapshot, or nil when none exists.
func (s *SnapshotStore) Load() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.data == nil {
		return nil
	}
	cp := *s.data
	cp.User = copyUser(s.data.User)
	return &cp
}

// Clear removes the persisted snapshot. Clearing an empty store is a no-op.
func (s *SnapshotStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = nil
	if s.path == "" {
		return nil
	}
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: remove: %v", ErrSnapshotPersist, err)
	}
	return nil
}

// Has reports whether a snapshot is persisted.
func (s *SnapshotStore) Has() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data != nil
}

// Path returns the snapshot file path.
func (s *SnapshotStore) Path() string {
	return s.path
}

// newSnapshotStoreForTesting creates a store for testing without file
// operations. Saves and clears mutate memory only.
func newSnapshotStoreForTesting() *SnapshotStore {
	return &SnapshotStore{path: ""}
}
