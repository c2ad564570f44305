package checkpoint

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSidecar(t *testing.T) *SidecarStore {
	t.Helper()
	store := NewSidecarStore(":memory:")
	require.NoError(t, store.Open())
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSidecarStore_LoadAbsent(t *testing.T) {
	store := newTestSidecar(t)

	_, ok, err := store.Load("/a", "/b", InstanceKey("h", "/a", "/b"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSidecarStore_SaveLoadClear(t *testing.T) {
	store := newTestSidecar(t)
	key := InstanceKey("h", "/a", "/b")
	ts := time.Date(2025, 5, 20, 8, 0, 0, 123456789, time.UTC)

	require.NoError(t, store.Save("/a", "/b", key, ts))

	got, ok, err := store.Load("/a", "/b", key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.Equal(ts), "got %v, want %v", got, ts)

	// Save replaces, never appends.
	later := ts.Add(time.Hour)
	require.NoError(t, store.Save("/a", "/b", key, later))
	got, ok, err = store.Load("/a", "/b", key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.Equal(later))

	count, err := store.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, store.Clear("/a", "/b", key))
	_, ok, err = store.Load("/a", "/b", key)
	require.NoError(t, err)
	assert.False(t, ok)

	// Clearing again is a no-op.
	assert.NoError(t, store.Clear("/a", "/b", key))
}

func TestSidecarStore_KeysAreIndependent(t *testing.T) {
	store := newTestSidecar(t)
	keyAB := InstanceKey("h", "/a", "/b")
	keyBA := InstanceKey("h", "/b", "/a")
	ts := time.Now().UTC()

	require.NoError(t, store.Save("/a", "/b", keyAB, ts))

	_, ok, err := store.Load("/b", "/a", keyBA)
	require.NoError(t, err)
	assert.False(t, ok, "reversed pairing must not see the forward checkpoint")
}

func TestSidecarStore_PersistsAcrossReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "state", "checkpoints.db")
	key := InstanceKey("h", "/a", "/b")
	ts := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	store := NewSidecarStore(dbPath)
	require.NoError(t, store.Open())
	require.NoError(t, store.Save("/a", "/b", key, ts))
	require.NoError(t, store.Close())

	reopened := NewSidecarStore(dbPath)
	require.NoError(t, reopened.Open())
	defer reopened.Close()

	got, ok, err := reopened.Load("/a", "/b", key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.Equal(ts))
}

func TestSidecarStore_NotOpen(t *testing.T) {
	store := NewSidecarStore(":memory:")

	_, _, err := store.Load("/a", "/b", "k")
	assert.Error(t, err)
	assert.Error(t, store.Save("/a", "/b", "k", time.Now()))
	assert.Error(t, store.Clear("/a", "/b", "k"))
	assert.NoError(t, store.Close())
}
