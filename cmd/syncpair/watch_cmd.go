package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/syncpair/syncpair/internal/config"
	"github.com/syncpair/syncpair/internal/daemon"
	"github.com/syncpair/syncpair/internal/statusapi"
	"github.com/syncpair/syncpair/internal/utils"
	"github.com/syncpair/syncpair/internal/version"
)

func init() {
	rootCmd.AddCommand(newWatchCmd())
}

func newWatchCmd() *cobra.Command {
	var (
		interval  time.Duration
		fsEvents  bool
		tui       bool
		httpOn    bool
		httpAddr  string
		httpToken string
		strict    bool
		excludes  []string
	)

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Run continuously, keeping every pair converged",
		Long: `Watch runs every pair in the pairs file on its scheduling interval and,
unless disabled, immediately after filesystem changes settle. A local status
API and a terminal dashboard can observe the runs.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			slog.Info("syncpair", "version", version.Version, "revision", version.Revision, "build", version.BuildDate)

			cfg, err := loadPairs()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("interval") {
				cfg.Interval = config.Duration(interval)
			}

			stateDir, err := utils.ResolvePath(viper.GetString("state-dir"))
			if err != nil {
				return err
			}

			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			registry := daemon.NewRegistry()
			d, err := daemon.New(cfg, store, registry, daemon.Options{
				HostID:           resolveHostID(),
				StateDir:         stateDir,
				Watch:            fsEvents,
				Excludes:         excludes,
				StrictCheckpoint: strict,
			})
			if err != nil {
				return err
			}

			api := statusapi.New(statusapi.Config{
				Enabled: httpOn,
				Addr:    httpAddr,
				Token:   httpToken,
			}, registry)

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			eg, egCtx := errgroup.WithContext(ctx)
			eg.Go(func() error { return d.Start(egCtx) })
			eg.Go(func() error { return api.Start(egCtx) })
			if tui {
				// the dashboard owns the terminal from here on
				muteTerminalLogging()
				eg.Go(func() error {
					defer cancel()
					return runDashboard(egCtx, registry)
				})
			}

			defer slog.Info("Bye!")
			if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	watchCmd.Flags().SortFlags = false
	watchCmd.Flags().DurationVarP(&interval, "interval", "i", config.DefaultInterval, "scheduling interval between runs")
	watchCmd.Flags().BoolVar(&fsEvents, "fs-events", true, "also trigger runs when files change")
	watchCmd.Flags().BoolVar(&tui, "tui", false, "show a live dashboard instead of plain logs")
	watchCmd.Flags().BoolVar(&httpOn, "http", true, "serve the local status API")
	watchCmd.Flags().StringVarP(&httpAddr, "http-addr", "a", statusapi.DefaultAddr, "address to bind the status API")
	watchCmd.Flags().StringVarP(&httpToken, "http-token", "t", "", "bearer token for the status API (empty disables auth)")
	watchCmd.Flags().BoolVar(&strict, "strict-checkpoint", false, "do not advance checkpoints when a run has item errors")
	watchCmd.Flags().StringArrayVar(&excludes, "exclude", nil, "glob pattern every pair excludes (repeatable)")

	return watchCmd
}
