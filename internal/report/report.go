// Package report renders run outcomes as machine-readable JSON for the
// --json flag and the status surfaces.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/syncpair/syncpair/internal/sync"
	"github.com/syncpair/syncpair/internal/version"
)

// ItemFailure is one per-item error in serializable form.
type ItemFailure struct {
	Item  string `json:"item"`
	Op    string `json:"op"`
	Cause string `json:"cause"`
}

// PairReport is the outcome of one pairing's run.
type PairReport struct {
	Pair              string        `json:"pair"`
	RunID             string        `json:"runId,omitempty"`
	Direction         string        `json:"direction,omitempty"`
	Started           time.Time     `json:"started"`
	Finished          time.Time     `json:"finished"`
	DurationMS        int64         `json:"durationMs"`
	DirsCreated       int           `json:"dirsCreated"`
	FilesCopied       int           `json:"filesCopied"`
	ConflictsResolved int           `json:"conflictsResolved"`
	FilesDeleted      int           `json:"filesDeleted"`
	DirsDeleted       int           `json:"dirsDeleted"`
	Skipped           int           `json:"skipped"`
	BytesCopied       int64         `json:"bytesCopied"`
	CheckpointSaved   bool          `json:"checkpointSaved"`
	NewCheckpoint     *time.Time    `json:"newCheckpoint,omitempty"`
	Fatal             string        `json:"fatal,omitempty"`
	Errors            []ItemFailure `json:"errors,omitempty"`
}

// FromResult converts an engine result for the named pairing.
func FromResult(pair string, result *sync.SyncResult) PairReport {
	pr := PairReport{
		Pair:              pair,
		RunID:             result.RunID,
		Direction:         string(result.Policy.Direction),
		Started:           result.Started,
		Finished:          result.Finished,
		DurationMS:        result.Duration().Milliseconds(),
		DirsCreated:       result.DirsCreated,
		FilesCopied:       result.FilesCopied,
		ConflictsResolved: result.ConflictsResolved,
		FilesDeleted:      result.FilesDeleted,
		DirsDeleted:       result.DirsDeleted,
		Skipped:           result.Skipped,
		BytesCopied:       result.BytesCopied,
		CheckpointSaved:   result.CheckpointSaved,
	}
	if !result.NewCheckpointTime.IsZero() {
		cp := result.NewCheckpointTime
		pr.NewCheckpoint = &cp
	}
	for _, itemErr := range result.Errors {
		pr.Errors = append(pr.Errors, ItemFailure{
			Item:  itemErr.Item,
			Op:    string(itemErr.Op),
			Cause: itemErr.Err.Error(),
		})
	}
	return pr
}

// FromFatal records a run that never got past endpoint resolution.
func FromFatal(pair string, err error) PairReport {
	return PairReport{
		Pair:  pair,
		Fatal: err.Error(),
	}
}

// Report aggregates one invocation over all its pairings.
type Report struct {
	Version   string       `json:"version"`
	Generated time.Time    `json:"generated"`
	Pairs     []PairReport `json:"pairs"`
}

func New(pairs ...PairReport) *Report {
	return &Report{
		Version:   version.Version,
		Generated: time.Now().UTC(),
		Pairs:     pairs,
	}
}

// HasErrors reports whether any pairing failed fatally or had item errors.
func (r *Report) HasErrors() bool {
	for _, pr := range r.Pairs {
		if pr.Fatal != "" || len(pr.Errors) > 0 {
			return true
		}
	}
	return false
}

// Encode writes the report as indented JSON.
func (r *Report) Encode(w io.Writer) error {
	data, err := jsonMarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

// Decode parses an encoded report, mainly for tests and tooling.
func Decode(data []byte) (*Report, error) {
	var r Report
	if err := jsonUnmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return &r, nil
}
