// Package commands wires the CLI surface to the engine. Every command
// emits a single machine-readable result envelope on stdout and
// signals failure or partial completion through its exit code.
package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	workspacePath string
	catalogPath   string
	logLevel      string
	jsonOutput    bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "restorix",
		Short: "Restorix - workstation state reconciliation",
		Long: `Restorix reconciles a machine's installed software and configuration
files against a declarative manifest, and captures live machine state
into a portable, replayable bundle artifact.

Features:
  - Diff-based planning: install before configure, empty plan when converged
  - Capture into a single portable archive with per-module payloads
  - Backup-before-overwrite with single-generation revert
  - Dry-run previews and read-only verification`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVar(&workspacePath, "workspace", "", "workspace directory (default ~/.restorix)")
	rootCmd.PersistentFlags().StringVar(&catalogPath, "catalog", "", "module catalog file or directory (default <workspace>/catalog)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "structured JSON logs on stderr (envelope is always JSON)")

	toolVersion := version

	// Add subcommands
	rootCmd.AddCommand(newCaptureCommand(toolVersion))
	rootCmd.AddCommand(newPlanCommand(toolVersion))
	rootCmd.AddCommand(newApplyCommand(toolVersion))
	rootCmd.AddCommand(newRestoreCommand(toolVersion))
	rootCmd.AddCommand(newRevertCommand(toolVersion))
	rootCmd.AddCommand(newVerifyCommand(toolVersion))
	rootCmd.AddCommand(newStateCommand(toolVersion))

	return rootCmd
}
