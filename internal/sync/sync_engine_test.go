package sync

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syncpair/syncpair/internal/checkpoint"
	"github.com/syncpair/syncpair/internal/utils"
)

// memStore is an in-memory checkpoint.Store for engine tests.
type memStore struct {
	saved   map[string]time.Time
	loadErr error
	saveErr error
}

func newMemStore() *memStore {
	return &memStore{saved: make(map[string]time.Time)}
}

func (m *memStore) Load(_, _, key string) (time.Time, bool, error) {
	if m.loadErr != nil {
		return time.Time{}, false, m.loadErr
	}
	t, ok := m.saved[key]
	return t, ok, nil
}

func (m *memStore) Save(_, _, key string, t time.Time) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved[key] = t
	return nil
}

func (m *memStore) Clear(_, _, key string) error {
	delete(m.saved, key)
	return nil
}

func (m *memStore) Close() error { return nil }

func pairKey(pathRoot, destRoot string) string {
	return checkpoint.InstanceKey("", pathRoot, destRoot)
}

// listFiles walks root and returns relative path -> content for every file.
func listFiles(t *testing.T, root string) map[string]string {
	t.Helper()
	files := map[string]string{}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		require.NoError(t, walkErr)
		if d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		require.NoError(t, relErr)
		data, readErr := os.ReadFile(path)
		require.NoError(t, readErr)
		files[utils.NormRelPath(rel)] = string(data)
		return nil
	})
	require.NoError(t, err)
	return files
}

func mustPolicy(t *testing.T, preset Preset, opts ...PolicyOption) Policy {
	t.Helper()
	policy, err := ResolvePolicy(preset, opts...)
	require.NoError(t, err)
	return policy
}

var (
	t1 = time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)
	t2 = time.Date(2025, 7, 1, 11, 0, 0, 0, time.UTC)
	t3 = time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
)

func TestSynchronize_NewFileReachesEmptyDestination(t *testing.T) {
	pathRoot, destRoot := t.TempDir(), t.TempDir()
	writeTestFile(t, pathRoot, "x.txt", "hello", t1)

	store := newMemStore()
	engine := NewEngine(store)

	result, err := engine.Synchronize(context.Background(), pathRoot, destRoot, mustPolicy(t, PresetSync))
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"x.txt": "hello"}, listFiles(t, destRoot))
	assert.Equal(t, 1, result.FilesCopied)
	assert.Equal(t, 1, result.Changes())
	assert.Empty(t, result.Errors)

	// copies carry the source mtime
	info, err := os.Stat(filepath.Join(destRoot, "x.txt"))
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(t1))

	// checkpoint created with the run-start time
	assert.True(t, result.CheckpointSaved)
	saved, ok := store.saved[pairKey(pathRoot, destRoot)]
	require.True(t, ok, "checkpoint must be recorded under the pairing key")
	assert.True(t, saved.Equal(result.Started))
	assert.True(t, result.NewCheckpointTime.Equal(result.Started))
}

func TestSynchronize_NewerSideWinsConflicts(t *testing.T) {
	pathRoot, destRoot := t.TempDir(), t.TempDir()
	writeTestFile(t, pathRoot, "x.txt", "v2", t2)
	writeTestFile(t, destRoot, "x.txt", "v1", t1)
	writeTestFile(t, pathRoot, "y.txt", "stale", t1)
	writeTestFile(t, destRoot, "y.txt", "fresh", t2)

	engine := NewEngine(newMemStore())
	result, err := engine.Synchronize(context.Background(), pathRoot, destRoot, mustPolicy(t, PresetSync))
	require.NoError(t, err)

	want := map[string]string{"x.txt": "v2", "y.txt": "fresh"}
	assert.Equal(t, want, listFiles(t, pathRoot))
	assert.Equal(t, want, listFiles(t, destRoot))
	assert.Equal(t, 2, result.ConflictsResolved)
	assert.Empty(t, result.Errors)
}

func TestSynchronize_MirrorRemovesStaleTargetFile(t *testing.T) {
	pathRoot, destRoot := t.TempDir(), t.TempDir()
	old := time.Now().UTC().Add(-2 * time.Hour)
	writeTestFile(t, destRoot, "old.txt", "obsolete", old)

	store := newMemStore()
	store.saved[pairKey(pathRoot, destRoot)] = time.Now().UTC().Add(-time.Hour)

	engine := NewEngine(store)
	result, err := engine.Synchronize(context.Background(), pathRoot, destRoot, mustPolicy(t, PresetMirror))
	require.NoError(t, err)

	assert.Empty(t, listFiles(t, destRoot))
	assert.Equal(t, 1, result.FilesDeleted)
}

func TestSynchronize_SkipExistingLeavesConflictsAlone(t *testing.T) {
	pathRoot, destRoot := t.TempDir(), t.TempDir()
	writeTestFile(t, pathRoot, "x.txt", "mine", t2)
	writeTestFile(t, destRoot, "x.txt", "theirs", t1)
	writeTestFile(t, pathRoot, "extra.txt", "new", t2)

	engine := NewEngine(newMemStore())
	result, err := engine.Synchronize(context.Background(), pathRoot, destRoot, mustPolicy(t, PresetMissing))
	require.NoError(t, err)

	// the conflicting file is untouched on both sides, the absent one copied
	assert.Equal(t, map[string]string{"x.txt": "mine", "extra.txt": "new"}, listFiles(t, pathRoot))
	assert.Equal(t, map[string]string{"x.txt": "theirs", "extra.txt": "new"}, listFiles(t, destRoot))
	assert.Equal(t, 1, result.FilesCopied)
	assert.Zero(t, result.ConflictsResolved)
}

func TestSynchronize_SecondRunMakesNoChanges(t *testing.T) {
	pathRoot, destRoot := t.TempDir(), t.TempDir()
	writeTestFile(t, pathRoot, "a.txt", "a", t1)
	writeTestFile(t, pathRoot, "docs/d.md", "d", t1)
	writeTestFile(t, destRoot, "b.txt", "b", t2)

	engine := NewEngine(newMemStore())
	policy := mustPolicy(t, PresetSync)

	first, err := engine.Synchronize(context.Background(), pathRoot, destRoot, policy)
	require.NoError(t, err)
	require.Empty(t, first.Errors)
	require.Positive(t, first.Changes())

	second, err := engine.Synchronize(context.Background(), pathRoot, destRoot, policy)
	require.NoError(t, err)
	assert.Zero(t, second.Changes(), "second run must be a no-op, got %+v", second)
	assert.Empty(t, second.Errors)
}

func TestSynchronize_ConvergenceBothWays(t *testing.T) {
	pathRoot, destRoot := t.TempDir(), t.TempDir()
	writeTestFile(t, pathRoot, "common.txt", "newer", t2)
	writeTestFile(t, pathRoot, "onlyA/deep.txt", "deep", t1)
	writeTestFile(t, pathRoot, "rootA.txt", "ra", t1)
	writeTestFile(t, destRoot, "common.txt", "older", t1)
	writeTestFile(t, destRoot, "onlyB.txt", "ob", t3)

	engine := NewEngine(newMemStore())
	result, err := engine.Synchronize(context.Background(), pathRoot, destRoot, mustPolicy(t, PresetSync))
	require.NoError(t, err)
	require.Empty(t, result.Errors)

	left := listFiles(t, pathRoot)
	right := listFiles(t, destRoot)
	assert.Equal(t, left, right, "both trees must hold the same files after a two-way run")
	assert.Equal(t, "newer", left["common.txt"], "newer mtime wins the common path")
	assert.Len(t, left, 4)
}

func TestSynchronize_MirrorNeverWritesSource(t *testing.T) {
	pathRoot, destRoot := t.TempDir(), t.TempDir()
	writeTestFile(t, pathRoot, "a.txt", "a", t1)
	writeTestFile(t, pathRoot, "sub/b.txt", "b", t1)
	writeTestFile(t, destRoot, "extra.txt", "keep", t2)

	before := listFiles(t, pathRoot)

	engine := NewEngine(newMemStore())
	_, err := engine.Synchronize(context.Background(), pathRoot, destRoot, mustPolicy(t, PresetMirror))
	require.NoError(t, err)

	assert.Equal(t, before, listFiles(t, pathRoot), "a forward run must leave the source untouched")

	after := listFiles(t, destRoot)
	for rel, content := range before {
		assert.Equal(t, content, after[rel], "destination must contain source file %q", rel)
	}
}

func TestSynchronize_DeletionFencing(t *testing.T) {
	pathRoot, destRoot := t.TempDir(), t.TempDir()
	now := time.Now().UTC()
	writeTestFile(t, destRoot, "fenced.txt", "made during the gap", now.Add(-10*time.Minute))
	writeTestFile(t, destRoot, "doomed.txt", "long stale", now.Add(-2*time.Hour))

	store := newMemStore()
	store.saved[pairKey(pathRoot, destRoot)] = now.Add(-time.Hour)

	engine := NewEngine(store)
	result, err := engine.Synchronize(context.Background(), pathRoot, destRoot, mustPolicy(t, PresetMirror))
	require.NoError(t, err)

	got := listFiles(t, destRoot)
	assert.Contains(t, got, "fenced.txt", "files newer than the checkpoint must never be deleted")
	assert.NotContains(t, got, "doomed.txt")
	assert.Equal(t, 1, result.FilesDeleted)
}

func TestSynchronize_UnreadableCheckpointFallsBackToFullCompare(t *testing.T) {
	pathRoot, destRoot := t.TempDir(), t.TempDir()
	writeTestFile(t, pathRoot, "a.txt", "a", t1)
	writeTestFile(t, destRoot, "ancient.txt", "b", t1.Add(-100*time.Hour))

	store := newMemStore()
	store.loadErr = assert.AnError

	engine := NewEngine(store)
	result, err := engine.Synchronize(context.Background(), pathRoot, destRoot, mustPolicy(t, PresetMirror))
	require.NoError(t, err, "an unreadable checkpoint must not fail the run")

	// degraded to "never synced": nothing is stale, so nothing is deleted
	assert.Contains(t, listFiles(t, destRoot), "ancient.txt")
	assert.Zero(t, result.FilesDeleted)

	// the store itself still works for saving
	store.loadErr = nil
	assert.True(t, result.CheckpointSaved)
	assert.Contains(t, store.saved, pairKey(pathRoot, destRoot))
}

func TestSynchronize_InvalidPolicyRejected(t *testing.T) {
	engine := NewEngine(newMemStore())
	_, err := engine.Synchronize(context.Background(), t.TempDir(), t.TempDir(), Policy{Direction: "sideways"})
	assert.Error(t, err)
}
