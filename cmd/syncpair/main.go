package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/syncpair/syncpair/internal/config"
	"github.com/syncpair/syncpair/internal/utils"
	"github.com/syncpair/syncpair/internal/version"
)

var (
	home, _         = os.UserHomeDir()
	defaultStateDir = filepath.Join(home, ".syncpair")
)

var rootCmd = &cobra.Command{
	Use:   "syncpair",
	Short: "Keep pairs of directory trees converged",
	Long: `syncpair compares two directory trees against the checkpoint of their last
run and reconciles the differences: new files travel, deletions propagate only
for items both sides knew about, and newer content wins conflicts.`,
	Version: version.Detailed(),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := bindFlags(cmd); err != nil {
			return err
		}
		return setupFileLogging()
	},
}

func init() {
	addGlobalFlags(rootCmd)
}

func addGlobalFlags(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.SortFlags = false
	pf.StringP("pairs", "p", config.DefaultPairsPath, "pairs file declaring what to synchronize")
	pf.String("state-dir", defaultStateDir, "directory for the daemon lock and local state")
	pf.String("checkpoint", "", "checkpoint strategy: sidecar, xattr or auto")
	pf.String("state-db", "", "sidecar checkpoint database (default from pairs file)")
	pf.String("log-file", "", "also write logs to this file")
}

func main() {
	// .env before anything reads the environment
	_ = godotenv.Load()

	slog.SetDefault(slog.New(newConsoleHandler()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// newConsoleHandler logs to stderr so command output on stdout (reports,
// status listings) stays machine-readable.
func newConsoleHandler() slog.Handler {
	return tint.NewHandler(os.Stderr, &tint.Options{
		Level:      slog.LevelDebug,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	})
}

// bindFlags wires the persistent flags into viper so SYNCPAIR_* environment
// variables can stand in for them. Precedence: flag > env > default.
func bindFlags(cmd *cobra.Command) error {
	viper.SetEnvPrefix("SYNCPAIR")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	pf := cmd.Root().PersistentFlags()
	for _, name := range []string{"pairs", "state-dir", "checkpoint", "state-db", "log-file"} {
		flag := pf.Lookup(name)
		if flag == nil {
			continue
		}
		if err := viper.BindPFlag(name, flag); err != nil {
			return err
		}
	}
	return nil
}

// setupFileLogging fans logs out to a file next to the console once flags are
// parsed. Append mode: every invocation of the binary shares the file.
func setupFileLogging() error {
	logFile := viper.GetString("log-file")
	if logFile == "" {
		return nil
	}

	abs, err := utils.ResolvePath(logFile)
	if err != nil {
		return fmt.Errorf("log file path: %w", err)
	}
	if err := utils.EnsureParent(abs); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	file, err := os.OpenFile(abs, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}

	fileHandler := slog.NewTextHandler(file, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})
	slog.SetDefault(slog.New(utils.NewMultiLogHandler(newConsoleHandler(), fileHandler)))
	return nil
}
