package utils

import (
	"crypto/md5"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// tempInfix marks the in-flight temp files CopyFile creates next to its
// destination. TempFileGlob matches them so scanners can skip copies in
// progress.
const (
	tempInfix    = ".sp-tmp-"
	TempFileGlob = "*.sp-tmp-*"
)

// FileHash calculates the MD5 hash of a file and returns it as a hex string.
func FileHash(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := md5.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}

	return fmt.Sprintf("%x", hash.Sum(nil)), nil
}

// CopyFile copies src to dst, carrying over src's modification time.
func CopyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}
	return CopyFileMtime(src, dst, info.ModTime())
}

// CopyFileMtime copies src to dst through a temp file in dst's own directory
// followed by a rename, so a crash mid-copy leaves either the old file or the
// fully written new one, never a partial. The destination ends up with the
// given modification time; preserving mtimes is what keeps repeated runs from
// seeing a freshly copied file as changed.
func CopyFileMtime(src, dst string, mtime time.Time) error {
	if err := EnsureParent(dst); err != nil {
		return fmt.Errorf("ensure parent: %w", err)
	}

	srcFile, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer srcFile.Close()

	// Temp file must live in the destination directory: rename is only atomic
	// within one filesystem.
	tempFile, err := os.CreateTemp(filepath.Dir(dst), filepath.Base(dst)+tempInfix+"*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tempPath := tempFile.Name()

	success := false
	defer func() {
		if !success {
			tempFile.Close()
			os.Remove(tempPath)
		}
	}()

	if _, err := io.Copy(tempFile, srcFile); err != nil {
		return fmt.Errorf("copy content: %w", err)
	}

	// Flush to disk before the rename so the new name never points at
	// unwritten data.
	if err := tempFile.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Chtimes(tempPath, time.Now(), mtime); err != nil {
		return fmt.Errorf("set mtime: %w", err)
	}

	if err := os.Rename(tempPath, dst); err != nil {
		return fmt.Errorf("rename temp file to %s: %w", dst, err)
	}

	success = true
	return nil
}
