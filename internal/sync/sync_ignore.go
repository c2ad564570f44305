package sync

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	gitignore "github.com/sabhiram/go-gitignore"

	"github.com/syncpair/syncpair/internal/utils"
)

// IgnoreFileName is looked up in each endpoint root; its rules use gitignore
// syntax and apply to both sides of the pairing.
const IgnoreFileName = ".syncpairignore"

var defaultIgnoreLines = []string{
	// syncpair state, never synced
	IgnoreFileName,
	".syncpair/",
	utils.TempFileGlob,
	// VCS
	".git/",
	".hg/",
	".svn/",
	// OS noise
	".DS_Store",
	"Thumbs.db",
	"desktop.ini",
	// editor leftovers
	"*.swp",
	"*~",
}

// IgnoreList decides which relative paths a scan leaves out. It combines the
// built-in defaults, any .syncpairignore files found in the given roots
// (gitignore syntax) and explicit exclude globs.
type IgnoreList struct {
	roots    []string
	excludes []string
	ignore   *gitignore.GitIgnore
}

// NewIgnoreList creates an ignore list for the given roots. Exclude patterns
// use doublestar glob syntax against slash-normalized relative paths; an
// invalid pattern is rejected here rather than silently matching nothing.
func NewIgnoreList(excludes []string, roots ...string) (*IgnoreList, error) {
	for _, pattern := range excludes {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid exclude pattern %q", pattern)
		}
	}
	return &IgnoreList{
		roots:    roots,
		excludes: excludes,
	}, nil
}

// Load reads the ignore files and compiles the rule set. Unreadable ignore
// files are logged and skipped, never fatal.
func (l *IgnoreList) Load() {
	lines := make([]string, 0, len(defaultIgnoreLines))
	lines = append(lines, defaultIgnoreLines...)

	for _, root := range l.roots {
		ignorePath := filepath.Join(root, IgnoreFileName)
		if !utils.FileExists(ignorePath) {
			continue
		}

		fileLines, err := readIgnoreFile(ignorePath)
		if err != nil {
			slog.Warn("failed to read ignore file", "path", ignorePath, "error", err)
			continue
		}
		lines = append(lines, fileLines...)
		slog.Debug("loaded ignore file", "path", ignorePath, "rules", len(fileLines))
	}

	l.ignore = gitignore.CompileIgnoreLines(lines...)
}

// ShouldIgnore reports whether the relative path is excluded from syncing.
// Paths are also tested with a trailing slash so directory-only rules like
// "logs/" apply to the directory entry itself.
func (l *IgnoreList) ShouldIgnore(relPath string) bool {
	for _, pattern := range l.excludes {
		if ok, _ := doublestar.Match(pattern, relPath); ok {
			return true
		}
	}
	if l.ignore == nil {
		return false
	}
	return l.ignore.MatchesPath(relPath) || l.ignore.MatchesPath(relPath+"/")
}

func readIgnoreFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}
