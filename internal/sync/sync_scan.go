package sync

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/syncpair/syncpair/internal/utils"
)

// Scanner enumerates the files and directories below an endpoint root. Scans
// never mutate the tree; each call produces fresh records.
type Scanner struct {
	ignore *IgnoreList
}

func NewScanner(ignore *IgnoreList) *Scanner {
	return &Scanner{ignore: ignore}
}

// Scan walks root and returns its current tree. With recurse false only the
// immediate children of root are listed. Entries that cannot be read are
// logged and skipped; only a failure on the root itself is returned.
func (s *Scanner) Scan(root string, recurse bool) (*Tree, error) {
	tree := NewTree(root)

	if !recurse {
		return tree, s.scanShallow(tree)
	}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if path == root {
			if walkErr != nil {
				return fmt.Errorf("read root: %w", walkErr)
			}
			return nil
		}
		if walkErr != nil {
			slog.Warn("scan skipping unreadable entry", "path", path, "error", walkErr)
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			slog.Warn("scan skipping entry outside root", "path", path, "error", err)
			return nil
		}
		rel = utils.NormRelPath(rel)

		if s.ignore != nil && s.ignore.ShouldIgnore(rel) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		info, err := d.Info()
		if err != nil {
			slog.Warn("scan skipping entry without stat", "path", path, "error", err)
			return nil
		}
		s.record(tree, rel, info)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return tree, nil
}

// scanShallow lists just the direct children of the root.
func (s *Scanner) scanShallow(tree *Tree) error {
	entries, err := os.ReadDir(tree.Root)
	if err != nil {
		return fmt.Errorf("read root: %w", err)
	}

	for _, entry := range entries {
		rel := utils.NormRelPath(entry.Name())
		if s.ignore != nil && s.ignore.ShouldIgnore(rel) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			slog.Warn("scan skipping entry without stat", "path", tree.Abs(rel), "error", err)
			continue
		}
		s.record(tree, rel, info)
	}
	return nil
}

func (s *Scanner) record(tree *Tree, rel string, info fs.FileInfo) {
	switch {
	case info.IsDir():
		tree.Dirs[rel] = &DirRecord{
			Path:         rel,
			LastModified: info.ModTime().UTC(),
		}
	case info.Mode().IsRegular():
		tree.Files[rel] = &FileRecord{
			Path:         rel,
			Size:         info.Size(),
			LastModified: info.ModTime().UTC(),
		}
	default:
		// symlinks, sockets, devices
		slog.Debug("scan skipping irregular file", "path", rel, "mode", info.Mode().String())
	}
}
