package portsession

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSnapshot() *Snapshot {
	return &Snapshot{
		Version: DefaultSnapshotVersion,
		User: &User{
			ID:       "1",
			Email:    "test@example.com",
			Username: "Demo User",
			Provider: ProviderEmail,
		},
		Token:           "abc",
		IsAuthenticated: true,
	}
}

func TestNewSnapshotStore_CreatesDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "subdir", "nested", "session.json")

	store, err := NewSnapshotStore(path)
	require.NoError(t, err)
	require.NotNil(t, store)

	info, err := os.Stat(filepath.Dir(path))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, path, store.Path())
}

func TestNewSnapshotStore_StartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")

	store, err := NewSnapshotStore(path)
	require.NoError(t, err)
	assert.Nil(t, store.Load())
	assert.False(t, store.Has())
}

func TestNewSnapshotStore_LoadsExistingSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")

	data, err := json.MarshalIndent(testSnapshot(), "", "  ")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0600))

	store, err := NewSnapshotStore(path)
	require.NoError(t, err)

	snap := store.Load()
	require.NotNil(t, snap)
	assert.Equal(t, "abc", snap.Token)
	assert.Equal(t, "1", snap.User.ID)
	assert.Equal(t, "test@example.com", snap.User.Email)
	assert.True(t, snap.IsAuthenticated)
}

func TestNewSnapshotStore_EmptyFileIsValid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, nil, 0600))

	store, err := NewSnapshotStore(path)
	require.NoError(t, err)
	assert.Nil(t, store.Load())
}

func TestNewSnapshotStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	_, err := NewSnapshotStore(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSnapshotCorrupted)
}

func TestNewSnapshotStore_UnsupportedVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")

	snap := testSnapshot()
	snap.Version = DefaultSnapshotVersion + 1
	data, err := json.Marshal(snap)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0600))

	_, err = NewSnapshotStore(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSnapshotCorrupted)
}

func TestSnapshotStore_SaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")

	store, err := NewSnapshotStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Save(testSnapshot()))

	// A fresh store sees exactly what was written
	reopened, err := NewSnapshotStore(path)
	require.NoError(t, err)

	snap := reopened.Load()
	require.NotNil(t, snap)
	assert.Equal(t, testSnapshot(), snap)

	// No temp file is left behind
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestSnapshotStore_SaveRestrictsPermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")

	store, err := NewSnapshotStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Save(testSnapshot()))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestSnapshotStore_SaveNil(t *testing.T) {
	store, err := NewSnapshotStore(filepath.Join(t.TempDir(), "session.json"))
	require.NoError(t, err)
	require.Error(t, store.Save(nil))
}

func TestSnapshotStore_LoadReturnsCopy(t *testing.T) {
	store := newSnapshotStoreForTesting()
	require.NoError(t, store.Save(testSnapshot()))

	first := store.Load()
	first.User.Phone = "mutated"
	first.Token = "mutated"

	second := store.Load()
	assert.Equal(t, "abc", second.Token)
	assert.Empty(t, second.User.Phone)
}

func TestSnapshotStore_Clear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")

	store, err := NewSnapshotStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Save(testSnapshot()))
	require.True(t, store.Has())

	require.NoError(t, store.Clear())
	assert.Nil(t, store.Load())
	assert.False(t, store.Has())

	// The file is gone
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// Clearing an empty store is a no-op
	require.NoError(t, store.Clear())
}

func TestSnapshotStore_SaveAppliesDefaultVersion(t *testing.T) {
	store := newSnapshotStoreForTesting()

	snap := testSnapshot()
	snap.Version = 0
	require.NoError(t, store.Save(snap))

	assert.Equal(t, DefaultSnapshotVersion, store.Load().Version)
}
