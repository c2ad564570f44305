package main

import (
	"bytes"
	"context"
	"regexp"
	"testing"

	"github.com/spf13/cobra"
)

var ansiRE = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func stripANSI(s string) string {
	return ansiRE.ReplaceAllString(s, "")
}

// newTestRoot builds an isolated command tree mirroring the real one, so
// tests never share parsed flag state through the package-level rootCmd.
func newTestRoot(cmds ...*cobra.Command) *cobra.Command {
	root := &cobra.Command{
		Use:               "syncpair",
		SilenceErrors:     true,
		PersistentPreRunE: rootCmd.PersistentPreRunE,
	}
	addGlobalFlags(root)
	root.AddCommand(cmds...)
	return root
}

// execute runs the tree with args and returns the combined output.
func execute(t *testing.T, root *cobra.Command, args ...string) (string, error) {
	t.Helper()

	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(args)

	err := root.ExecuteContext(context.Background())
	return buf.String(), err
}
