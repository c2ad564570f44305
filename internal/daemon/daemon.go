// Package daemon keeps a set of endpoint pairings converging in the
// background: one runner per pairing on an interval timer, optional
// filesystem triggers, and a registry feeding the status surfaces.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"github.com/syncpair/syncpair/internal/checkpoint"
	"github.com/syncpair/syncpair/internal/config"
	syncpkg "github.com/syncpair/syncpair/internal/sync"
	"github.com/syncpair/syncpair/internal/utils"
)

const lockFileName = "daemon.lock"

// ErrDaemonRunning means another daemon already serves this state directory.
var ErrDaemonRunning = errors.New("another syncpair daemon is already running")

// Options configures a Daemon.
type Options struct {
	HostID           string   // identity mixed into checkpoint instance keys
	StateDir         string   // holds the daemon lock file
	Watch            bool     // react to filesystem events between intervals
	Excludes         []string // global exclude globs added to every pair
	StrictCheckpoint bool     // withhold checkpoint advance on per-item errors
}

// Daemon runs every configured pairing until its context is canceled.
// Distinct pairings run concurrently, which is safe: runs share no mutable
// state beyond the checkpoint store, and each pairing has its own runner.
type Daemon struct {
	cfg      *config.Config
	opts     Options
	registry *Registry
	runners  []*pairRunner
	flock    *flock.Flock
}

// New wires one runner per configured pair. Each runner gets its own engine
// so per-pair exclude lists and hash caches stay independent; the checkpoint
// store is the single shared resource.
func New(cfg *config.Config, store checkpoint.Store, registry *Registry, opts Options) (*Daemon, error) {
	d := &Daemon{
		cfg:      cfg,
		opts:     opts,
		registry: registry,
		flock:    flock.New(filepath.Join(opts.StateDir, lockFileName)),
	}

	for i := range cfg.Pairs {
		pair := &cfg.Pairs[i]
		policy, err := pair.Policy()
		if err != nil {
			return nil, fmt.Errorf("pair %s: %w", pair.DisplayName(), err)
		}

		engineOpts := []syncpkg.Option{
			syncpkg.WithHostID(opts.HostID),
			syncpkg.WithExcludes(append(append([]string{}, opts.Excludes...), pair.Excludes...)...),
		}
		if opts.StrictCheckpoint {
			engineOpts = append(engineOpts, syncpkg.WithStrictCheckpoint())
		}
		engine := syncpkg.NewEngine(store, engineOpts...)

		runner, err := newPairRunner(pair, policy, engine, registry, cfg.EffectiveInterval(pair), opts.Watch)
		if err != nil {
			return nil, fmt.Errorf("pair %s: %w", pair.DisplayName(), err)
		}
		d.runners = append(d.runners, runner)
	}

	return d, nil
}

// Registry exposes the daemon's status registry.
func (d *Daemon) Registry() *Registry {
	return d.registry
}

// Start acquires the state-directory lock and runs all pairings until ctx is
// canceled. Exactly one daemon may serve a state directory at a time; the
// engine itself stays lock-free, so one-shot runs against the same pairs
// remain possible while the daemon is up.
func (d *Daemon) Start(ctx context.Context) error {
	if err := d.lock(); err != nil {
		return err
	}
	defer d.unlock()

	slog.Info("daemon start", "pairs", len(d.runners), "watch", d.opts.Watch)

	eg, egCtx := errgroup.WithContext(ctx)
	for _, runner := range d.runners {
		runner := runner
		eg.Go(func() error {
			return runner.start(egCtx)
		})
	}

	err := eg.Wait()
	d.registry.Close()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	slog.Info("daemon stopped")
	return nil
}

func (d *Daemon) lock() error {
	if err := utils.EnsureDir(d.opts.StateDir); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	locked, err := d.flock.TryLock()
	if err != nil {
		return fmt.Errorf("lock state dir: %w", err)
	}
	if !locked {
		return ErrDaemonRunning
	}
	return nil
}

func (d *Daemon) unlock() {
	if !d.flock.Locked() {
		return
	}
	if err := d.flock.Unlock(); err != nil {
		slog.Warn("unlock state dir", "error", err)
	}
}
