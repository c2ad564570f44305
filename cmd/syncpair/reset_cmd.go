package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/syncpair/syncpair/internal/checkpoint"
)

func init() {
	rootCmd.AddCommand(newResetCmd())
}

func newResetCmd() *cobra.Command {
	var all bool

	resetCmd := &cobra.Command{
		Use:   "reset [pair...]",
		Short: "Clear stored checkpoints so the next run compares full trees",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			if !all && len(args) == 0 {
				return fmt.Errorf("name the pairs to reset, or pass --all")
			}

			cfg, err := loadPairs()
			if err != nil {
				return err
			}
			var names []string
			if !all {
				names = args
			}
			pairs, err := selectPairs(cfg, names)
			if err != nil {
				return err
			}

			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			host := resolveHostID()
			for _, pair := range pairs {
				key := checkpoint.InstanceKey(host, pair.Path, pair.Destination)
				if err := store.Clear(pair.Path, pair.Destination, key); err != nil {
					return fmt.Errorf("reset %s: %w", pair.DisplayName(), err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reset checkpoint for '%s'\n", green.Render(pair.DisplayName()))
			}
			return nil
		},
	}

	resetCmd.Flags().BoolVar(&all, "all", false, "reset every configured pair")

	return resetCmd
}
