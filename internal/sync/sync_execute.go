package sync

import (
	"context"
	"log/slog"
	"os"
	"sort"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/dustin/go-humanize"

	"github.com/syncpair/syncpair/internal/utils"
)

// executor applies one DiffResult to the filesystem. Phases run in a fixed
// order so an interrupted run is never worse than idempotent: purge, then
// directory creation shallow-to-deep, then copies, then conflict resolution,
// then stale deletion with directories last, deepest-first, only-if-empty.
//
// Every per-item failure is recorded and skipped; nothing in here aborts the
// run except context cancellation.
type executor struct {
	policy Policy
	source *Tree
	target *Tree
	diff   *DiffResult
	hasher *ContentHasher
	ignore *IgnoreList
	result *SyncResult
}

func (e *executor) twoWay() bool {
	return e.policy.Direction == DirectionBoth
}

func (e *executor) run(ctx context.Context) error {
	if e.policy.Purge {
		if err := e.purgeTarget(ctx); err != nil {
			return err
		}
	}
	if e.policy.Recurse {
		if err := e.createDirs(ctx); err != nil {
			return err
		}
	}
	if !e.policy.SkipFiles {
		if err := e.copyMissing(ctx); err != nil {
			return err
		}
		if err := e.resolveCommon(ctx); err != nil {
			return err
		}
	}
	if !e.policy.SkipDelete && !e.policy.Purge {
		if err := e.deleteStale(ctx); err != nil {
			return err
		}
	}
	return nil
}

// fail records a per-item failure and lets the run continue.
func (e *executor) fail(item string, op Op, err error) {
	e.result.Errors = append(e.result.Errors, &ItemError{Item: item, Op: op, Err: err})
	slog.Warn("sync item failed", "op", op, "path", item, "error", err)
}

// purgeTarget removes everything under the target root except ignored
// entries, so the run degenerates to a clean copy of the source.
func (e *executor) purgeTarget(ctx context.Context) error {
	entries, err := os.ReadDir(e.target.Root)
	if err != nil {
		e.fail(".", OpPurge, err)
		return nil
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}

		rel := utils.NormRelPath(entry.Name())
		if e.ignore != nil && e.ignore.ShouldIgnore(rel) {
			continue
		}

		slog.Info("purge", "path", rel)
		if err := os.RemoveAll(e.target.Abs(rel)); err != nil {
			e.fail(rel, OpPurge, err)
			continue
		}
		if entry.IsDir() {
			e.result.DirsDeleted++
		} else {
			e.result.FilesDeleted++
		}
	}
	return nil
}

// createDirs creates the directories missing on each writable side,
// shallow-to-deep so parents exist before children.
func (e *executor) createDirs(ctx context.Context) error {
	forward := e.diff.MissingDirsAtTarget
	if e.policy.Purge {
		forward = keySet(e.source.Dirs)
	}

	if err := e.createDirSet(ctx, forward, e.target); err != nil {
		return err
	}
	if e.twoWay() && !e.policy.Purge {
		if err := e.createDirSet(ctx, e.diff.MissingDirsAtSource, e.source); err != nil {
			return err
		}
	}
	return nil
}

func (e *executor) createDirSet(ctx context.Context, dirs mapset.Set[string], dst *Tree) error {
	paths := dirs.ToSlice()
	sortByDepth(paths, false)

	for _, rel := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}

		abs := dst.Abs(rel)
		if utils.DirExists(abs) {
			continue
		}
		slog.Info("mkdir", "path", rel)
		if err := os.MkdirAll(abs, 0o755); err != nil {
			e.fail(rel, OpMkdir, err)
			continue
		}
		e.result.DirsCreated++
	}
	return nil
}

// copyMissing copies files absent on the other side. Paths that exist on
// both sides are left to resolveCommon, which owns the conflict rules; after
// a purge everything on the source is copied outright.
func (e *executor) copyMissing(ctx context.Context) error {
	forward := e.diff.MissingFilesAtTarget
	if e.policy.Purge {
		forward = keySet(e.source.Files)
	}

	if err := e.copyFileSet(ctx, forward, e.source, e.target, !e.policy.Purge); err != nil {
		return err
	}
	if e.twoWay() && !e.policy.Purge {
		if err := e.copyFileSet(ctx, e.diff.MissingFilesAtSource, e.target, e.source, true); err != nil {
			return err
		}
	}
	return nil
}

func (e *executor) copyFileSet(ctx context.Context, files mapset.Set[string], from, to *Tree, skipCommon bool) error {
	for _, rel := range sortedSlice(files) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if skipCommon && e.diff.CommonFiles.Contains(rel) {
			continue
		}

		rec := from.Files[rel]
		slog.Info("copy", "path", rel, "size", humanize.Bytes(uint64(rec.Size)))
		if err := utils.CopyFile(from.Abs(rel), to.Abs(rel)); err != nil {
			e.fail(rel, OpCopy, err)
			continue
		}
		e.result.FilesCopied++
		e.result.BytesCopied += rec.Size
	}
	return nil
}

// resolveCommon applies the conflict rules to files present on both sides:
// equal content or equal mtime is a skip, otherwise the newer file wins. A
// one-way run always copies source over target regardless of which is newer.
func (e *executor) resolveCommon(ctx context.Context) error {
	if e.policy.Purge || e.policy.SkipExisting {
		return nil
	}

	for _, rel := range sortedSlice(e.diff.CommonFiles) {
		if err := ctx.Err(); err != nil {
			return err
		}

		srcRec := e.source.Files[rel]
		tgtRec := e.target.Files[rel]

		if e.policy.CheckHash {
			srcHash, err := e.hasher.Hash(e.source.Abs(rel), srcRec)
			if err != nil {
				e.fail(rel, OpHash, err)
				continue
			}
			tgtHash, err := e.hasher.Hash(e.target.Abs(rel), tgtRec)
			if err != nil {
				e.fail(rel, OpHash, err)
				continue
			}
			if srcHash == tgtHash {
				e.result.Skipped++
				continue
			}
		} else if srcRec.LastModified.Equal(tgtRec.LastModified) {
			e.result.Skipped++
			continue
		}

		// Two-way: newest wins. One-way: the source wins by contract, and a
		// content mismatch with equal mtimes resolves forward as well.
		from, to := e.source, e.target
		winner := srcRec
		if e.twoWay() && tgtRec.LastModified.After(srcRec.LastModified) {
			from, to = e.target, e.source
			winner = tgtRec
		}

		slog.Info("resolve", "path", rel, "size", humanize.Bytes(uint64(winner.Size)))
		if err := utils.CopyFile(from.Abs(rel), to.Abs(rel)); err != nil {
			e.fail(rel, OpCopy, err)
			continue
		}
		e.result.FilesCopied++
		e.result.ConflictsResolved++
		e.result.BytesCopied += winner.Size
	}
	return nil
}

// deleteStale removes single-sided items older than the checkpoint: always
// on the target, additionally on the source for two-way runs. Files go
// first; directories follow deepest-first and only once empty.
func (e *executor) deleteStale(ctx context.Context) error {
	if err := e.deleteFileSet(ctx, e.diff.StaleFilesAtTarget, e.target); err != nil {
		return err
	}
	if e.twoWay() {
		if err := e.deleteFileSet(ctx, e.diff.StaleFilesAtSource, e.source); err != nil {
			return err
		}
	}

	if err := e.deleteDirSet(ctx, e.diff.StaleDirsAtTarget, e.target); err != nil {
		return err
	}
	if e.twoWay() {
		if err := e.deleteDirSet(ctx, e.diff.StaleDirsAtSource, e.source); err != nil {
			return err
		}
	}
	return nil
}

func (e *executor) deleteFileSet(ctx context.Context, files mapset.Set[string], at *Tree) error {
	for _, rel := range sortedSlice(files) {
		if err := ctx.Err(); err != nil {
			return err
		}

		slog.Info("delete", "path", rel)
		if err := os.Remove(at.Abs(rel)); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			e.fail(rel, OpDelete, err)
			continue
		}
		e.result.FilesDeleted++
	}
	return nil
}

func (e *executor) deleteDirSet(ctx context.Context, dirs mapset.Set[string], at *Tree) error {
	paths := dirs.ToSlice()
	sortByDepth(paths, true)

	for _, rel := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}

		abs := at.Abs(rel)
		entries, err := os.ReadDir(abs)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			e.fail(rel, OpRmdir, err)
			continue
		}
		if len(entries) > 0 {
			slog.Debug("rmdir skipped, not empty", "path", rel, "entries", len(entries))
			continue
		}

		slog.Info("rmdir", "path", rel)
		if err := os.Remove(abs); err != nil {
			e.fail(rel, OpRmdir, err)
			continue
		}
		e.result.DirsDeleted++
	}
	return nil
}

// keySet collects a record map's relative paths into a set.
func keySet[R any](records map[string]R) mapset.Set[string] {
	set := mapset.NewSet[string]()
	for path := range records {
		set.Add(path)
	}
	return set
}

// sortedSlice returns a set's members in lexicographic order, so runs apply
// operations deterministically.
func sortedSlice(set mapset.Set[string]) []string {
	paths := set.ToSlice()
	sort.Strings(paths)
	return paths
}

// sortByDepth orders relative paths by segment count, ties lexicographic.
func sortByDepth(paths []string, deepestFirst bool) {
	sort.Slice(paths, func(i, j int) bool {
		di := strings.Count(paths[i], "/")
		dj := strings.Count(paths[j], "/")
		if di != dj {
			if deepestFirst {
				return di > dj
			}
			return di < dj
		}
		return paths[i] < paths[j]
	})
}
