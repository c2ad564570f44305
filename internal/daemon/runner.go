package daemon

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	syncpkg "github.com/syncpair/syncpair/internal/sync"

	"github.com/syncpair/syncpair/internal/config"
	"github.com/syncpair/syncpair/internal/report"
	"github.com/syncpair/syncpair/internal/utils"
)

// ErrRunInFlight is returned when a run is requested while the previous one
// for the same pairing is still going.
var ErrRunInFlight = errors.New("sync already running for this pair")

// pairRunner schedules and executes runs for one pairing: an interval timer,
// optionally sharpened by filesystem events. Runs never overlap; triggers
// arriving mid-run coalesce into at most one follow-up.
type pairRunner struct {
	name     string
	pair     *config.Pair
	policy   syncpkg.Policy
	engine   *syncpkg.Engine
	registry *Registry
	interval time.Duration
	watch    bool
	ignore   *syncpkg.IgnoreList

	muSync sync.Mutex
}

func newPairRunner(pair *config.Pair, policy syncpkg.Policy, engine *syncpkg.Engine, registry *Registry, interval time.Duration, watch bool) (*pairRunner, error) {
	// The runner's own ignore list mirrors the engine's scan exclusions, so
	// watcher noise from ignored files never schedules a run.
	ignore, err := syncpkg.NewIgnoreList(pair.Excludes, pair.Path, pair.Destination)
	if err != nil {
		return nil, err
	}
	ignore.Load()

	return &pairRunner{
		name:     pair.DisplayName(),
		pair:     pair,
		policy:   policy,
		engine:   engine,
		registry: registry,
		interval: interval,
		watch:    watch,
		ignore:   ignore,
	}, nil
}

// start blocks until ctx is canceled. It performs an immediate first run,
// then keeps running on the interval timer and, when watching, on settled
// filesystem changes. A timer instead of a ticker: a run longer than the
// interval must not queue ticks behind itself.
func (r *pairRunner) start(ctx context.Context) error {
	slog.Info("pair runner start", "pair", r.name, "interval", r.interval, "watch", r.watch)
	r.registry.Register(r.name, time.Now().Add(r.interval))

	var events <-chan string
	if r.watch {
		watcher := NewWatcher(r.filterPath, r.pair.Path, r.pair.Destination)
		if err := watcher.Start(ctx); err != nil {
			// endpoints may not exist yet; the timer still drives runs
			slog.Warn("file watching unavailable, falling back to interval only",
				"pair", r.name, "error", err)
		} else {
			events = watcher.Events()
			defer watcher.Stop()
		}
	}

	if err := r.runOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("initial sync failed", "pair", r.name, "error", err)
	}

	timer := time.NewTimer(r.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("pair runner stop", "pair", r.name)
			return ctx.Err()

		case <-timer.C:
			if err := r.runOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("scheduled sync failed", "pair", r.name, "error", err)
			}
			timer.Reset(r.interval)

		case path, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			slog.Debug("change triggered sync", "pair", r.name, "path", path)
			if err := r.runOnce(ctx); err != nil &&
				!errors.Is(err, context.Canceled) && !errors.Is(err, ErrRunInFlight) {
				slog.Error("triggered sync failed", "pair", r.name, "error", err)
			}
			// a change just got handled; push the periodic run out
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(r.interval)
		}
	}
}

// runOnce executes a single synchronization pass and records its outcome.
func (r *pairRunner) runOnce(ctx context.Context) error {
	if !r.muSync.TryLock() {
		return ErrRunInFlight
	}
	defer r.muSync.Unlock()

	r.registry.SetSyncing(r.name)
	nextRun := time.Now().Add(r.interval)

	result, err := r.engine.Synchronize(ctx, r.pair.Path, r.pair.Destination, r.policy)
	if err != nil {
		// shutdown is not a pair failure
		if !errors.Is(err, context.Canceled) {
			r.registry.SetResult(r.name, report.FromFatal(r.name, err), nextRun)
		}
		return err
	}

	r.registry.SetResult(r.name, report.FromResult(r.name, result), nextRun)
	return nil
}

// filterPath drops watcher events for paths the engine would not sync
// anyway, including its own in-flight temp files. Without this, every run's
// writes would schedule one extra (harmless but pointless) run.
func (r *pairRunner) filterPath(absPath string) bool {
	if ok, _ := filepath.Match(utils.TempFileGlob, filepath.Base(absPath)); ok {
		return true
	}
	for _, root := range []string{r.pair.Path, r.pair.Destination} {
		rel, err := filepath.Rel(root, absPath)
		if err != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		return r.ignore.ShouldIgnore(utils.NormRelPath(rel))
	}
	return false
}
