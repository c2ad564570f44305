package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/viper"

	"github.com/syncpair/syncpair/internal/checkpoint"
	"github.com/syncpair/syncpair/internal/config"
	"github.com/syncpair/syncpair/internal/utils"
)

// openStore resolves the checkpoint strategy (flag > pairs file > auto) and
// returns a ready-to-use store. Auto picks xattr only when every existing
// endpoint root supports extended attributes, otherwise the sidecar database.
func openStore(cfg *config.Config) (checkpoint.Store, error) {
	strategy := viper.GetString("checkpoint")
	if strategy == "" {
		strategy = cfg.Checkpoint
	}
	if strategy == "" {
		strategy = config.CheckpointAuto
	}

	switch strategy {
	case config.CheckpointSidecar:
		return openSidecarStore(cfg)
	case config.CheckpointXattr:
		return checkpoint.NewXattrStore(), nil
	case config.CheckpointAuto:
		if xattrUsable(cfg) {
			slog.Debug("checkpoint strategy", "resolved", "xattr")
			return checkpoint.NewXattrStore(), nil
		}
		slog.Debug("checkpoint strategy", "resolved", "sidecar")
		return openSidecarStore(cfg)
	default:
		return nil, fmt.Errorf("unknown checkpoint strategy %q", strategy)
	}
}

func openSidecarStore(cfg *config.Config) (checkpoint.Store, error) {
	dbPath := viper.GetString("state-db")
	if dbPath == "" {
		dbPath = cfg.StateDB
	}
	if dbPath == "" {
		dbPath = config.DefaultStateDB
	}

	if dbPath != ":memory:" {
		abs, err := utils.ResolvePath(dbPath)
		if err != nil {
			return nil, fmt.Errorf("state db path: %w", err)
		}
		if err := utils.EnsureParent(abs); err != nil {
			return nil, fmt.Errorf("create state db directory: %w", err)
		}
		dbPath = abs
	}

	store := checkpoint.NewSidecarStore(dbPath)
	if err := store.Open(); err != nil {
		return nil, err
	}
	return store, nil
}

// xattrUsable probes every endpoint root that already exists. A pairing whose
// roots are not yet created cannot vote, and no existing roots at all means
// no evidence xattrs work.
func xattrUsable(cfg *config.Config) bool {
	probed := false
	for i := range cfg.Pairs {
		pair := &cfg.Pairs[i]
		for _, root := range []string{pair.Path, pair.Destination} {
			if !utils.DirExists(root) {
				continue
			}
			probed = true
			if !checkpoint.XattrSupported(root) {
				return false
			}
		}
	}
	return probed
}
