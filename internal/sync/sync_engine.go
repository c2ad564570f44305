package sync

import (
	"context"
	"log/slog"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v4/disk"

	"github.com/syncpair/syncpair/internal/checkpoint"
)

// Engine coordinates full synchronization runs over endpoint pairings. One
// engine may serve many pairings; runs over distinct pairings can proceed
// concurrently since all per-run state is local to Synchronize.
type Engine struct {
	store            checkpoint.Store
	hasher           *ContentHasher
	host             string
	excludes         []string
	strictCheckpoint bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithHostID sets the host identity mixed into each pairing's instance key.
// The engine never reads ambient machine state itself; callers resolve the
// identity once and pass it in.
func WithHostID(host string) Option {
	return func(e *Engine) {
		e.host = host
	}
}

// WithExcludes adds glob patterns excluded from every scan, on top of the
// built-in ignores and any .syncpairignore files.
func WithExcludes(patterns ...string) Option {
	return func(e *Engine) {
		e.excludes = append(e.excludes, patterns...)
	}
}

// WithStrictCheckpoint withholds the checkpoint advance when a run records
// any per-item errors, so the next run re-examines everything since the last
// clean pass. The default advances regardless, trading re-examination for
// uninterrupted incremental convergence.
func WithStrictCheckpoint() Option {
	return func(e *Engine) {
		e.strictCheckpoint = true
	}
}

func NewEngine(store checkpoint.Store, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		hasher: NewContentHasher(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Synchronize reconciles the trees under path and destination according to
// policy and returns what happened. The only fatal failures are unusable
// endpoint roots (*EndpointError) and context cancellation; everything else
// is recorded per item in the result. On completion the pairing's checkpoint
// advances to the time the run started, so changes made elsewhere during the
// run are picked up next time.
func (e *Engine) Synchronize(ctx context.Context, path, destination string, policy Policy) (*SyncResult, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	result := &SyncResult{
		RunID:   uuid.NewString(),
		Policy:  policy,
		Started: time.Now().UTC(),
	}

	pathEp, err := resolveEndpoint(labelPath, path, policy.CreatePath)
	if err != nil {
		return nil, err
	}
	destEp, err := resolveEndpoint(labelDestination, destination, policy.CreateDestination)
	if err != nil {
		return nil, err
	}

	slog.Info("sync run",
		"run", result.RunID,
		"path", pathEp.Root,
		"destination", destEp.Root,
		"direction", policy.Direction,
	)

	key := checkpoint.InstanceKey(e.host, pathEp.Root, destEp.Root)
	cpTime, cpFound, err := e.store.Load(pathEp.Root, destEp.Root, key)
	if err != nil {
		// degraded, full comparison
		slog.Warn("checkpoint unreadable, treating as never synced", "key", key, "error", err)
		cpTime, cpFound = time.Time{}, false
	}

	ignore, err := NewIgnoreList(e.excludes, pathEp.Root, destEp.Root)
	if err != nil {
		return nil, err
	}
	ignore.Load()

	scanner := NewScanner(ignore)
	pathTree, err := scanner.Scan(pathEp.Root, policy.Recurse)
	if err != nil {
		return nil, &EndpointError{Label: labelPath, Root: pathEp.Root, Err: err}
	}
	destTree, err := scanner.Scan(destEp.Root, policy.Recurse)
	if err != nil {
		return nil, &EndpointError{Label: labelDestination, Root: destEp.Root, Err: err}
	}

	// Role resolution: reverse runs swap which tree is written to. Everything
	// below operates on source/target roles only.
	source, target := pathTree, destTree
	if policy.Direction == DirectionReverse {
		source, target = destTree, pathTree
	}

	diff := Diff(source, target, cpTime, cpFound, policy)
	e.preflightFreeSpace(source, target, diff, policy)

	exec := &executor{
		policy: policy,
		source: source,
		target: target,
		diff:   diff,
		hasher: e.hasher,
		ignore: ignore,
		result: result,
	}
	if err := exec.run(ctx); err != nil {
		// canceled mid-run: report what happened, keep the old checkpoint
		result.Finished = time.Now().UTC()
		return result, err
	}

	result.Finished = time.Now().UTC()
	result.NewCheckpointTime = result.Started

	if e.strictCheckpoint && result.HasErrors() {
		slog.Warn("checkpoint not advanced", "run", result.RunID, "errors", len(result.Errors))
	} else if err := e.store.Save(pathEp.Root, destEp.Root, key, result.Started); err != nil {
		slog.Warn("checkpoint save failed", "key", key, "error", err)
	} else {
		result.CheckpointSaved = true
	}

	slog.Info("sync done",
		"run", result.RunID,
		"copied", result.FilesCopied,
		"resolved", result.ConflictsResolved,
		"deleted", result.FilesDeleted+result.DirsDeleted,
		"mkdir", result.DirsCreated,
		"skipped", result.Skipped,
		"bytes", humanize.Bytes(uint64(result.BytesCopied)),
		"errors", len(result.Errors),
		"took", result.Duration().Round(time.Millisecond),
	)

	return result, nil
}

// preflightFreeSpace warns when the copy volume headed for the target looks
// larger than the free space there. Advisory only: the run proceeds and any
// real shortage surfaces as per-item copy errors.
func (e *Engine) preflightFreeSpace(source, target *Tree, diff *DiffResult, policy Policy) {
	if policy.SkipFiles {
		return
	}

	var planned int64
	if policy.Purge {
		for _, rec := range source.Files {
			planned += rec.Size
		}
	} else {
		planned = sumSizes(source, diff.MissingFilesAtTarget)
	}
	if planned == 0 {
		return
	}

	usage, err := disk.Usage(target.Root)
	if err != nil {
		slog.Debug("free space check unavailable", "path", target.Root, "error", err)
		return
	}
	if uint64(planned) > usage.Free {
		slog.Warn("target may not have enough free space",
			"path", target.Root,
			"planned", humanize.Bytes(uint64(planned)),
			"free", humanize.Bytes(usage.Free),
		)
	}
}

func sumSizes(tree *Tree, files mapset.Set[string]) int64 {
	var total int64
	for _, rel := range files.ToSlice() {
		if rec, ok := tree.Files[rel]; ok {
			total += rec.Size
		}
	}
	return total
}
