package sync

import (
	"path/filepath"
	"time"
)

// FileRecord describes one file below an endpoint root at scan time. Records
// are produced fresh on every run and never persisted.
type FileRecord struct {
	Path         string // relative to the endpoint root, slash-normalized
	Size         int64
	LastModified time.Time // UTC
}

// DirRecord describes one directory below an endpoint root.
type DirRecord struct {
	Path         string
	LastModified time.Time
}

// Tree holds one endpoint's scan output keyed by relative path.
type Tree struct {
	Root  string // absolute endpoint root
	Files map[string]*FileRecord
	Dirs  map[string]*DirRecord
}

func NewTree(root string) *Tree {
	return &Tree{
		Root:  root,
		Files: make(map[string]*FileRecord),
		Dirs:  make(map[string]*DirRecord),
	}
}

// Abs returns the absolute path of a relative entry under this tree's root.
func (t *Tree) Abs(relPath string) string {
	return filepath.Join(t.Root, filepath.FromSlash(relPath))
}
