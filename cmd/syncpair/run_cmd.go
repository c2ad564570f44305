package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/syncpair/syncpair/internal/checkpoint"
	"github.com/syncpair/syncpair/internal/config"
	"github.com/syncpair/syncpair/internal/report"
	"github.com/syncpair/syncpair/internal/sync"
)

func init() {
	rootCmd.AddCommand(newRunCmd())
}

func newRunCmd() *cobra.Command {
	var (
		pathFlag  string
		destFlag  string
		preset    string
		direction string
		excludes  []string
		jsonOut   bool
		strict    bool
	)

	runCmd := &cobra.Command{
		Use:   "run [pair...]",
		Short: "Synchronize pairs once and exit",
		Long: `Run one synchronization pass. With --path and --destination a single ad-hoc
pair is synchronized; otherwise every pair in the pairs file runs, concurrently
and independently. Name pairs as arguments to run a subset.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			cfg, err := runConfig(cmd, pathFlag, destFlag, preset, direction, excludes, args)
			if err != nil {
				return err
			}
			pairs, err := selectPairs(cfg, args)
			if err != nil {
				return err
			}

			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			rep := report.New(runPairs(cmd.Context(), pairs, store, resolveHostID(), strict)...)

			if jsonOut {
				if err := rep.Encode(cmd.OutOrStdout()); err != nil {
					return err
				}
			} else {
				printSummary(cmd.OutOrStdout(), rep)
			}

			if rep.HasErrors() {
				return fmt.Errorf("one or more pairs reported errors")
			}
			return nil
		},
	}

	runCmd.Flags().SortFlags = false
	runCmd.Flags().StringVarP(&pathFlag, "path", "P", "", "left endpoint of an ad-hoc pair")
	runCmd.Flags().StringVarP(&destFlag, "destination", "D", "", "right endpoint of an ad-hoc pair")
	runCmd.Flags().StringVar(&preset, "preset", "sync", "policy preset: sync, merge, mirror, contribute or missing")
	runCmd.Flags().StringVar(&direction, "direction", "", "override preset direction: forward, reverse or both")
	runCmd.Flags().Bool("purge", false, "copy everything, overwriting the target")
	runCmd.Flags().Bool("recurse", true, "descend into subdirectories")
	runCmd.Flags().Bool("check-hash", false, "compare content hashes, not just size and mtime")
	runCmd.Flags().Bool("skip-delete", false, "never delete anything at the target")
	runCmd.Flags().Bool("skip-existing", false, "never overwrite files that already exist")
	runCmd.Flags().Bool("skip-files", false, "only reconcile directory structure")
	runCmd.Flags().Bool("create-path", false, "create the path endpoint if missing")
	runCmd.Flags().Bool("create-destination", false, "create the destination endpoint if missing")
	runCmd.Flags().StringArrayVar(&excludes, "exclude", nil, "glob pattern to exclude (repeatable)")
	runCmd.Flags().BoolVar(&jsonOut, "json", false, "emit a machine-readable report on stdout")
	runCmd.Flags().BoolVar(&strict, "strict-checkpoint", false, "do not advance the checkpoint when a run has item errors")

	return runCmd
}

// runConfig builds the effective configuration: an ad-hoc single pair when
// --path/--destination are set, the pairs file otherwise.
func runConfig(cmd *cobra.Command, path, dest, preset, direction string, excludes, args []string) (*config.Config, error) {
	if path == "" && dest == "" {
		return loadPairs()
	}
	if path == "" || dest == "" {
		return nil, fmt.Errorf("--path and --destination must be given together")
	}
	if len(args) > 0 {
		return nil, fmt.Errorf("cannot combine pair names with --path/--destination")
	}

	pair := config.Pair{
		Path:              path,
		Destination:       dest,
		Preset:            preset,
		Direction:         direction,
		Purge:             boolFlagPtr(cmd, "purge"),
		Recurse:           boolFlagPtr(cmd, "recurse"),
		CheckHash:         boolFlagPtr(cmd, "check-hash"),
		SkipDelete:        boolFlagPtr(cmd, "skip-delete"),
		SkipExisting:      boolFlagPtr(cmd, "skip-existing"),
		SkipFiles:         boolFlagPtr(cmd, "skip-files"),
		CreatePath:        boolFlagPtr(cmd, "create-path"),
		CreateDestination: boolFlagPtr(cmd, "create-destination"),
		Excludes:          excludes,
	}

	cfg := &config.Config{Pairs: []config.Pair{pair}}
	if err := cfg.ResolvePaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// boolFlagPtr returns the flag's value only when it was set explicitly, so
// preset defaults stay in charge of everything left untouched.
func boolFlagPtr(cmd *cobra.Command, name string) *bool {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, _ := cmd.Flags().GetBool(name)
	return &v
}

// runPairs synchronizes every pair concurrently. Pair failures never abort
// the group; they are carried in the returned reports.
func runPairs(ctx context.Context, pairs []*config.Pair, store checkpoint.Store, host string, strict bool) []report.PairReport {
	reports := make([]report.PairReport, len(pairs))

	eg, egCtx := errgroup.WithContext(ctx)
	for i, pair := range pairs {
		i, pair := i, pair
		eg.Go(func() error {
			reports[i] = runPair(egCtx, pair, store, host, strict)
			return nil
		})
	}
	_ = eg.Wait()
	return reports
}

func runPair(ctx context.Context, pair *config.Pair, store checkpoint.Store, host string, strict bool) report.PairReport {
	name := pair.DisplayName()

	policy, err := pair.Policy()
	if err != nil {
		return report.FromFatal(name, err)
	}

	opts := []sync.Option{
		sync.WithHostID(host),
		sync.WithExcludes(pair.Excludes...),
	}
	if strict {
		opts = append(opts, sync.WithStrictCheckpoint())
	}

	result, err := sync.NewEngine(store, opts...).Synchronize(ctx, pair.Path, pair.Destination, policy)
	if err != nil {
		return report.FromFatal(name, err)
	}
	return report.FromResult(name, result)
}

const maxErrorLines = 5

func printSummary(w io.Writer, rep *report.Report) {
	for i := range rep.Pairs {
		pr := &rep.Pairs[i]
		if i > 0 {
			fmt.Fprintln(w)
		}

		if pr.Fatal != "" {
			fmt.Fprintf(w, "%s %s\n", red.Render("✗"), cyan.Render(pr.Pair))
			fmt.Fprintf(w, "  %s%s\n", gray.Render("Error    "), red.Render(pr.Fatal))
			continue
		}

		marker := green.Render("✓")
		if len(pr.Errors) > 0 {
			marker = yellow.Render("!")
		}
		fmt.Fprintf(w, "%s %s %s\n", marker, cyan.Render(pr.Pair), gray.Render(pr.Direction))
		fmt.Fprintf(w, "  %s%d files (%s)\n", gray.Render("Copied   "), pr.FilesCopied, humanize.Bytes(uint64(pr.BytesCopied)))
		if pr.ConflictsResolved > 0 {
			fmt.Fprintf(w, "  %s%d conflicts\n", gray.Render("Resolved "), pr.ConflictsResolved)
		}
		if pr.DirsCreated > 0 {
			fmt.Fprintf(w, "  %s%d dirs\n", gray.Render("Created  "), pr.DirsCreated)
		}
		if pr.FilesDeleted > 0 || pr.DirsDeleted > 0 {
			fmt.Fprintf(w, "  %s%d files, %d dirs\n", gray.Render("Deleted  "), pr.FilesDeleted, pr.DirsDeleted)
		}
		if pr.Skipped > 0 {
			fmt.Fprintf(w, "  %s%d items\n", gray.Render("Skipped  "), pr.Skipped)
		}
		fmt.Fprintf(w, "  %s%s\n", gray.Render("Took     "), (time.Duration(pr.DurationMS) * time.Millisecond).String())

		if len(pr.Errors) > 0 {
			fmt.Fprintf(w, "  %s%d\n", gray.Render("Errors   "), len(pr.Errors))
			for j, itemErr := range pr.Errors {
				if j == maxErrorLines {
					fmt.Fprintf(w, "    %s\n", gray.Render(fmt.Sprintf("… and %d more", len(pr.Errors)-maxErrorLines)))
					break
				}
				fmt.Fprintf(w, "    %s\n", red.Render(fmt.Sprintf("%s %s: %s", itemErr.Op, itemErr.Item, itemErr.Cause)))
			}
		}
	}
}
