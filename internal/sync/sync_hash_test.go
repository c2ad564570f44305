package sync

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentHasher_SameDigestForSameContent(t *testing.T) {
	root := t.TempDir()
	mtime := time.Now().Add(-time.Hour)
	writeTestFile(t, root, "a.txt", "identical", mtime)
	writeTestFile(t, root, "b.txt", "identical", mtime)

	hasher := NewContentHasher()
	recA := &FileRecord{Path: "a.txt", Size: 9, LastModified: mtime}
	recB := &FileRecord{Path: "b.txt", Size: 9, LastModified: mtime}

	hashA, err := hasher.Hash(filepath.Join(root, "a.txt"), recA)
	require.NoError(t, err)
	hashB, err := hasher.Hash(filepath.Join(root, "b.txt"), recB)
	require.NoError(t, err)

	assert.Equal(t, hashA, hashB)
}

func TestContentHasher_CacheInvalidatesOnMtimeChange(t *testing.T) {
	root := t.TempDir()
	abs := filepath.Join(root, "f.txt")
	t1 := time.Now().Add(-2 * time.Hour)
	t2 := time.Now().Add(-1 * time.Hour)
	writeTestFile(t, root, "f.txt", "version one", t1)

	hasher := NewContentHasher()
	first, err := hasher.Hash(abs, &FileRecord{Path: "f.txt", Size: 11, LastModified: t1})
	require.NoError(t, err)

	// rewrite with same length but different content and mtime
	require.NoError(t, os.WriteFile(abs, []byte("version two"), 0o644))
	require.NoError(t, os.Chtimes(abs, t2, t2))

	second, err := hasher.Hash(abs, &FileRecord{Path: "f.txt", Size: 11, LastModified: t2})
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestContentHasher_CachedEntrySkipsReread(t *testing.T) {
	root := t.TempDir()
	abs := filepath.Join(root, "f.txt")
	mtime := time.Now().Add(-time.Hour)
	writeTestFile(t, root, "f.txt", "stable", mtime)

	hasher := NewContentHasher()
	rec := &FileRecord{Path: "f.txt", Size: 6, LastModified: mtime}

	first, err := hasher.Hash(abs, rec)
	require.NoError(t, err)

	// remove the file; the cached digest must still come back for the same
	// (path, size, mtime) key
	require.NoError(t, os.Remove(abs))
	second, err := hasher.Hash(abs, rec)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestContentHasher_MissingFileErrors(t *testing.T) {
	hasher := NewContentHasher()
	_, err := hasher.Hash(filepath.Join(t.TempDir(), "nope.txt"), &FileRecord{Path: "nope.txt"})
	assert.Error(t, err)
}
