package sync

import (
	"time"

	mapset "github.com/deckarep/golang-set/v2"
)

// DiffResult classifies both trees' contents into the sets the executor
// consumes. All sets hold slash-normalized relative paths. Source and target
// are roles: which endpoint plays which is decided by the direction before
// diffing.
type DiffResult struct {
	// present recently on source, not recently on target: copy forward
	MissingFilesAtTarget mapset.Set[string]
	MissingDirsAtTarget  mapset.Set[string]

	// present recently on target, not recently on source: copy backward.
	// Only populated for two-way runs.
	MissingFilesAtSource mapset.Set[string]
	MissingDirsAtSource  mapset.Set[string]

	// present on both sides regardless of recency: conflict candidates
	CommonFiles mapset.Set[string]
	CommonDirs  mapset.Set[string]

	// single-sided and older than the checkpoint: deletion candidates
	StaleFilesAtTarget mapset.Set[string]
	StaleFilesAtSource mapset.Set[string]
	StaleDirsAtTarget  mapset.Set[string]
	StaleDirsAtSource  mapset.Set[string]
}

// Diff computes the classified sets for one run from the two scanned trees
// and the checkpoint. cpFound false means no prior sync: everything counts as
// recent, the old partitions stay empty, and consequently nothing is ever
// classified stale on a first run.
func Diff(source, target *Tree, cpTime time.Time, cpFound bool, policy Policy) *DiffResult {
	allSrcFiles, recentSrcFiles, oldSrcFiles := partition(source.Files, fileModTime, cpTime, cpFound)
	allTgtFiles, recentTgtFiles, oldTgtFiles := partition(target.Files, fileModTime, cpTime, cpFound)
	allSrcDirs, recentSrcDirs, oldSrcDirs := partition(source.Dirs, dirModTime, cpTime, cpFound)
	allTgtDirs, recentTgtDirs, oldTgtDirs := partition(target.Dirs, dirModTime, cpTime, cpFound)

	commonFiles := allSrcFiles.Intersect(allTgtFiles)
	commonDirs := allSrcDirs.Intersect(allTgtDirs)

	diff := &DiffResult{
		MissingFilesAtTarget: recentSrcFiles.Difference(recentTgtFiles),
		MissingDirsAtTarget:  recentSrcDirs.Difference(recentTgtDirs),
		MissingFilesAtSource: mapset.NewSet[string](),
		MissingDirsAtSource:  mapset.NewSet[string](),
		CommonFiles:          commonFiles,
		CommonDirs:           commonDirs,
		StaleFilesAtTarget:   oldTgtFiles.Difference(commonFiles),
		StaleFilesAtSource:   oldSrcFiles.Difference(commonFiles),
		StaleDirsAtTarget:    oldTgtDirs.Difference(commonDirs),
		StaleDirsAtSource:    oldSrcDirs.Difference(commonDirs),
	}

	if policy.Direction == DirectionBoth {
		diff.MissingFilesAtSource = recentTgtFiles.Difference(recentSrcFiles)
		diff.MissingDirsAtSource = recentTgtDirs.Difference(recentSrcDirs)
	}

	return diff
}

func fileModTime(r *FileRecord) time.Time { return r.LastModified }
func dirModTime(r *DirRecord) time.Time   { return r.LastModified }

// partition splits records into the full path set plus the recent/old split
// against the checkpoint. Modified exactly at the checkpoint counts as
// recent. With no checkpoint everything is recent.
func partition[R any](records map[string]R, modTime func(R) time.Time, cpTime time.Time, cpFound bool) (all, recent, old mapset.Set[string]) {
	all = mapset.NewSet[string]()
	recent = mapset.NewSet[string]()
	old = mapset.NewSet[string]()

	for path, rec := range records {
		all.Add(path)
		if !cpFound || !modTime(rec).Before(cpTime) {
			recent.Add(path)
		} else {
			old.Add(path)
		}
	}
	return all, recent, old
}
