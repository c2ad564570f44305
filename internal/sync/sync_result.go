package sync

import "time"

// SyncResult summarizes one Synchronize run. It reports what happened; it
// does not itself mutate any state. Callers decide whether a non-empty Errors
// list constitutes an overall failure.
type SyncResult struct {
	RunID             string
	Policy            Policy
	NewCheckpointTime time.Time // run-start UTC time offered to the checkpoint store
	CheckpointSaved   bool      // false when saving failed or strict mode withheld it
	Started           time.Time
	Finished          time.Time

	DirsCreated       int
	FilesCopied       int
	ConflictsResolved int // common files rewritten by the winning side
	FilesDeleted      int
	DirsDeleted       int
	Skipped           int // common files left untouched as equal
	BytesCopied       int64

	Errors []*ItemError
}

func (r *SyncResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// Changes returns the number of mutations applied to either tree. A second
// run over unchanged trees reports zero.
func (r *SyncResult) Changes() int {
	return r.DirsCreated + r.FilesCopied + r.FilesDeleted + r.DirsDeleted
}

func (r *SyncResult) Duration() time.Duration {
	return r.Finished.Sub(r.Started)
}
