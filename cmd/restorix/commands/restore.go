package commands

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/restorix/restorix/pkg/engine"
	"github.com/restorix/restorix/pkg/output"
)

func newRestoreCommand(toolVersion string) *cobra.Command {
	var (
		enableRestore bool
		dryRun        bool
	)

	cmd := &cobra.Command{
		Use:   "restore <profile>",
		Short: "Replay a captured bundle artifact on this machine",
		Long: `Replay a captured bundle artifact: install its packages and, when
config restore is enabled, write its per-module config payloads.

Config files are only touched with --enable-restore; without it the
replay is install-only, which every artifact supports even when it
carries no configs.`,
		Example: `  # Install-only replay
  restorix restore laptop.tar.gz

  # Full replay including config files
  restorix restore laptop.tar.gz --enable-restore

  # Preview what a full replay would do
  restorix restore laptop.tar.gz --enable-restore --dry-run`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env := output.New("restore", toolVersion)

			rt, err := buildRuntime(toolVersion, true)
			if err != nil {
				return emit(env.Fail(err))
			}

			graph, cleanup, err := rt.resolveProfile(args[0])
			if err != nil {
				return emit(env.Fail(err))
			}
			defer cleanup()

			if !enableRestore {
				// Install-only: drop config intents before planning so
				// the plan, not the executor, reflects the gate.
				graph.Restores = nil
			}

			planner := engine.NewPlanner(rt.fsys, rt.installer)
			observed, err := planner.Observe(cmd.Context(), graph)
			if err != nil {
				return emit(env.Fail(err))
			}
			plan, err := planner.Plan(cmd.Context(), graph, observed)
			if err != nil {
				return emit(env.Fail(err))
			}

			executor := engine.NewExecutor(rt.fsys, rt.installer, rt.store, rt.paths.BackupRoot, rt.log)
			record, err := executor.Execute(cmd.Context(), plan, "restore", dryRun)
			if err != nil {
				return emit(env.Fail(err))
			}
			env.WithRunID(record.RunID)

			if record.Outcome != engine.OutcomeSuccess {
				env.Data = record
				return emit(env.Fail(errors.New("run outcome: " + string(record.Outcome))))
			}
			return emit(env.Succeed(record))
		},
	}

	cmd.Flags().BoolVar(&enableRestore, "enable-restore", false, "also restore config files (default install-only)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "perform all reads and diffs but no writes")

	return cmd
}
