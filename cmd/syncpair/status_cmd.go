package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/syncpair/syncpair/internal/checkpoint"
)

func init() {
	rootCmd.AddCommand(newStatusCmd())
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [pair...]",
		Short: "Show checkpoint state for configured pairs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			cfg, err := loadPairs()
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

			host := resolveHostID()
			w := cmd.OutOrStdout()
			for i, pair := range pairs {
				if i > 0 {
					fmt.Fprintln(w)
				}
				fmt.Fprintf(w, "%s\n", cyan.Render(pair.DisplayName()))
				fmt.Fprintf(w, "%s%s\n", gray.Render("Path         "), pair.Path)
				fmt.Fprintf(w, "%s%s\n", gray.Render("Destination  "), pair.Destination)
				fmt.Fprintf(w, "%s%s\n", gray.Render("Preset       "), string(pair.PresetName()))

				key := checkpoint.InstanceKey(host, pair.Path, pair.Destination)
				when, ok, err := store.Load(pair.Path, pair.Destination, key)
				switch {
				case err != nil:
					fmt.Fprintf(w, "%s%s\n", gray.Render("Checkpoint   "), red.Render(err.Error()))
				case !ok:
					fmt.Fprintf(w, "%s%s\n", gray.Render("Checkpoint   "), "never synced")
				default:
					fmt.Fprintf(w, "%s%s %s\n", gray.Render("Checkpoint   "),
						when.Local().Format(time.RFC3339), gray.Render("("+humanize.Time(when)+")"))
				}
			}
			return nil
		},
	}
}
