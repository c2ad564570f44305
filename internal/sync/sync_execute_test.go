package sync

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chtimesRel(t *testing.T, root, rel string, mtime time.Time) {
	t.Helper()
	require.NoError(t, os.Chtimes(filepath.Join(root, filepath.FromSlash(rel)), mtime, mtime))
}

func TestSynchronize_PurgeResetsTargetToSourceCopy(t *testing.T) {
	pathRoot, destRoot := t.TempDir(), t.TempDir()
	writeTestFile(t, pathRoot, "keep.txt", "k", t1)
	writeTestFile(t, pathRoot, "sub/nested.txt", "n", t1)
	// recent junk on the target; purge removes it regardless of staleness
	now := time.Now().UTC()
	writeTestFile(t, destRoot, "junk.txt", "j", now)
	writeTestFile(t, destRoot, "junkdir/x.txt", "x", now)

	engine := NewEngine(newMemStore())
	result, err := engine.Synchronize(context.Background(), pathRoot, destRoot,
		mustPolicy(t, PresetMirror, WithPurge(true)))
	require.NoError(t, err)
	require.Empty(t, result.Errors)

	assert.Equal(t, map[string]string{"keep.txt": "k", "sub/nested.txt": "n"}, listFiles(t, destRoot))
	assert.Equal(t, 2, result.FilesCopied)
	assert.Equal(t, 1, result.FilesDeleted)
	assert.Equal(t, 1, result.DirsDeleted)
}

func TestSynchronize_StaleDirsRemovedOnlyWhenEmpty(t *testing.T) {
	pathRoot, destRoot := t.TempDir(), t.TempDir()
	now := time.Now().UTC()
	old := now.Add(-2 * time.Hour)

	// whole stale branch: file first, then pin directory mtimes deepest-first
	writeTestFile(t, destRoot, "d1/d2/old.txt", "bye", old)
	chtimesRel(t, destRoot, "d1/d2", old)
	chtimesRel(t, destRoot, "d1", old)

	// stale dir that will NOT be empty: its file is fenced by the checkpoint
	writeTestFile(t, destRoot, "keepdir/live.txt", "hi", now.Add(-10*time.Minute))
	chtimesRel(t, destRoot, "keepdir", old)

	store := newMemStore()
	store.saved[pairKey(pathRoot, destRoot)] = now.Add(-time.Hour)

	engine := NewEngine(store)
	result, err := engine.Synchronize(context.Background(), pathRoot, destRoot, mustPolicy(t, PresetMirror))
	require.NoError(t, err)
	require.Empty(t, result.Errors)

	assert.NoDirExists(t, filepath.Join(destRoot, "d1"))
	assert.FileExists(t, filepath.Join(destRoot, "keepdir", "live.txt"))
	assert.Equal(t, 1, result.FilesDeleted)
	assert.Equal(t, 2, result.DirsDeleted, "d1 and d1/d2 removed, keepdir retained")
}

func TestSynchronize_ItemFailureDoesNotAbortRun(t *testing.T) {
	pathRoot, destRoot := t.TempDir(), t.TempDir()
	writeTestFile(t, pathRoot, "blocked", "file here", t1)
	writeTestFile(t, pathRoot, "ok.txt", "fine", t1)
	// a directory squatting where a file must land makes the rename fail
	writeTestFile(t, destRoot, "blocked/squatter.txt", "dir here", t1)

	store := newMemStore()
	engine := NewEngine(store)
	result, err := engine.Synchronize(context.Background(), pathRoot, destRoot, mustPolicy(t, PresetMirror))
	require.NoError(t, err, "per-item failures must not fail the run")

	require.Len(t, result.Errors, 1)
	assert.Equal(t, "blocked", result.Errors[0].Item)
	assert.Equal(t, OpCopy, result.Errors[0].Op)
	assert.Error(t, result.Errors[0].Err)

	// the healthy sibling still made it over
	assert.Equal(t, "fine", listFiles(t, destRoot)["ok.txt"])

	// default behavior: checkpoint advances despite item errors
	assert.True(t, result.CheckpointSaved)
	assert.Contains(t, store.saved, pairKey(pathRoot, destRoot))
}

func TestSynchronize_StrictCheckpointHoldsBackAfterErrors(t *testing.T) {
	pathRoot, destRoot := t.TempDir(), t.TempDir()
	writeTestFile(t, pathRoot, "blocked", "file here", t1)
	writeTestFile(t, destRoot, "blocked/squatter.txt", "dir here", t1)

	store := newMemStore()
	engine := NewEngine(store, WithStrictCheckpoint())
	result, err := engine.Synchronize(context.Background(), pathRoot, destRoot, mustPolicy(t, PresetMirror))
	require.NoError(t, err)

	require.NotEmpty(t, result.Errors)
	assert.False(t, result.CheckpointSaved)
	assert.Empty(t, store.saved, "strict mode must not advance the checkpoint after errors")
}

func TestSynchronize_MissingDestinationIsFatalWithoutCreate(t *testing.T) {
	pathRoot := t.TempDir()
	destRoot := filepath.Join(t.TempDir(), "not-there")

	engine := NewEngine(newMemStore())
	result, err := engine.Synchronize(context.Background(), pathRoot, destRoot, mustPolicy(t, PresetMirror))
	require.Error(t, err)
	assert.Nil(t, result)

	var epErr *EndpointError
	require.ErrorAs(t, err, &epErr)
	assert.Equal(t, "destination", epErr.Label)
}

func TestSynchronize_CreatesEndpointsWhenAsked(t *testing.T) {
	base := t.TempDir()
	pathRoot := filepath.Join(base, "new-path")
	destRoot := filepath.Join(base, "new-dest")

	engine := NewEngine(newMemStore())
	result, err := engine.Synchronize(context.Background(), pathRoot, destRoot,
		mustPolicy(t, PresetSync, WithCreatePath(true), WithCreateDestination(true)))
	require.NoError(t, err)

	assert.DirExists(t, pathRoot)
	assert.DirExists(t, destRoot)
	assert.Zero(t, result.Changes())
}

func TestSynchronize_ReverseWritesPathSide(t *testing.T) {
	pathRoot, destRoot := t.TempDir(), t.TempDir()
	writeTestFile(t, destRoot, "from-dest.txt", "payload", t1)

	engine := NewEngine(newMemStore())
	result, err := engine.Synchronize(context.Background(), pathRoot, destRoot,
		mustPolicy(t, PresetMirror, WithDirection(DirectionReverse)))
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"from-dest.txt": "payload"}, listFiles(t, pathRoot))
	assert.Equal(t, map[string]string{"from-dest.txt": "payload"}, listFiles(t, destRoot))
	assert.Equal(t, 1, result.FilesCopied)
}

func TestSynchronize_SkipFilesOnlyCreatesDirectories(t *testing.T) {
	pathRoot, destRoot := t.TempDir(), t.TempDir()
	writeTestFile(t, pathRoot, "d1/f.txt", "x", t1)

	engine := NewEngine(newMemStore())
	result, err := engine.Synchronize(context.Background(), pathRoot, destRoot,
		mustPolicy(t, PresetMirror, WithSkipFiles(true)))
	require.NoError(t, err)

	assert.DirExists(t, filepath.Join(destRoot, "d1"))
	assert.Empty(t, listFiles(t, destRoot))
	assert.Equal(t, 1, result.DirsCreated)
	assert.Zero(t, result.FilesCopied)
}

func TestSynchronize_NoRecurseSyncsTopLevelOnly(t *testing.T) {
	pathRoot, destRoot := t.TempDir(), t.TempDir()
	writeTestFile(t, pathRoot, "top.txt", "t", t1)
	writeTestFile(t, pathRoot, "sub/inner.txt", "i", t1)

	engine := NewEngine(newMemStore())
	result, err := engine.Synchronize(context.Background(), pathRoot, destRoot,
		mustPolicy(t, PresetMirror, WithRecurse(false)))
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"top.txt": "t"}, listFiles(t, destRoot))
	assert.Zero(t, result.DirsCreated)
	assert.Equal(t, 1, result.FilesCopied)
}

func TestSynchronize_CheckHashSkipsEqualContent(t *testing.T) {
	pathRoot, destRoot := t.TempDir(), t.TempDir()
	// same bytes, different mtimes: mtime comparison would recopy, hashes skip
	writeTestFile(t, pathRoot, "same.txt", "identical bytes", t2)
	writeTestFile(t, destRoot, "same.txt", "identical bytes", t1)
	// same size, different bytes: must still be resolved
	writeTestFile(t, pathRoot, "diff.txt", "aaaa", t2)
	writeTestFile(t, destRoot, "diff.txt", "bbbb", t1)

	engine := NewEngine(newMemStore())
	result, err := engine.Synchronize(context.Background(), pathRoot, destRoot,
		mustPolicy(t, PresetSync, WithCheckHash(true)))
	require.NoError(t, err)

	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 1, result.ConflictsResolved)
	assert.Equal(t, "aaaa", listFiles(t, destRoot)["diff.txt"])

	// the equal file kept its own mtime on each side
	info, err := os.Stat(filepath.Join(destRoot, "same.txt"))
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(t1))
}

func TestSynchronize_CanceledContextReturnsEarly(t *testing.T) {
	pathRoot, destRoot := t.TempDir(), t.TempDir()
	writeTestFile(t, pathRoot, "a.txt", "a", t1)
	writeTestFile(t, pathRoot, "b.txt", "b", t1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := newMemStore()
	engine := NewEngine(store)
	result, err := engine.Synchronize(ctx, pathRoot, destRoot, mustPolicy(t, PresetMirror))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	require.NotNil(t, result, "a canceled run still reports what it did")
	assert.Empty(t, store.saved, "a canceled run must not advance the checkpoint")
}
