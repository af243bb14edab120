// Package cli wires cobra, the process configuration, and the C1-C7
// pipeline together into the "keron apply" command.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "keron",
	Short: "keron — a declarative dotfile manager",
	Long: `keron discovers .lua manifests under a source directory, evaluates
them in a sandboxed scripting host, orders them by declared dependencies,
and plans (or applies) the filesystem and host operations they describe.

Common workflow:

  keron apply .                       # dry run against the current directory
  keron apply . --execute             # apply the plan
  keron apply <git-url> --format json # plan a remote dotfiles repo as JSON`,
}

func init() {
	rootCmd.PersistentFlags().Bool("verbose", false, "enable debug-level logging")
	rootCmd.PersistentFlags().Bool("no-hints", false, "suppress hint lines in text output")
	rootCmd.AddCommand(applyCmd)
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("cli error: %w", err)
	}
	return nil
}
