package commands

import (
	"encoding/json"
	"errors"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/restorix/restorix/pkg/engine"
	"github.com/restorix/restorix/pkg/output"
)

func newApplyCommand(toolVersion string) *cobra.Command {
	var (
		profileName string
		planFile    string
		dryRun      bool
	)

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply a profile or a saved plan",
		Long: `Reconcile this machine with a profile's desired state.

This command:
  - Computes the plan (or loads a saved one)
  - Executes install steps, then restore steps, strictly in order
  - Backs up every file it overwrites
  - Continues past failed steps and reports a partial outcome
  - Records the run in the state store

With --dry-run every read and diff still happens, but nothing is
installed, written, or backed up; the result shows what would happen.`,
		Example: `  # Apply a profile
  restorix apply --profile ./laptop

  # Preview without committing
  restorix apply --profile ./laptop --dry-run

  # Execute a previously saved plan
  restorix apply --plan plan.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			env := output.New("apply", toolVersion)

			rt, err := buildRuntime(toolVersion, profileName != "")
			if err != nil {
				return emit(env.Fail(err))
			}

			var plan *engine.Plan
			var graph *engine.Graph
			cleanup := func() {}

			if planFile != "" {
				data, err := afero.ReadFile(rt.fsys, rt.paths.Expand(planFile))
				if err != nil {
					return emit(env.Fail(engine.NewInputError("failed to read plan file", err)))
				}
				plan = &engine.Plan{}
				if err := json.Unmarshal(data, plan); err != nil {
					return emit(env.Fail(engine.NewInputError("malformed plan file", err)))
				}
			} else {
				g, c, err := rt.resolveProfile(profileName)
				if err != nil {
					return emit(env.Fail(err))
				}
				graph = g
				cleanup = c

				planner := engine.NewPlanner(rt.fsys, rt.installer)
				observed, err := planner.Observe(cmd.Context(), graph)
				if err != nil {
					cleanup()
					return emit(env.Fail(err))
				}
				plan, err = planner.Plan(cmd.Context(), graph, observed)
				if err != nil {
					cleanup()
					return emit(env.Fail(err))
				}
			}
			defer cleanup()

			executor := engine.NewExecutor(rt.fsys, rt.installer, rt.store, rt.paths.BackupRoot, rt.log)
			record, err := executor.Execute(cmd.Context(), plan, "apply", dryRun)
			if err != nil {
				return emit(env.Fail(err))
			}
			env.WithRunID(record.RunID)

			// Refresh the stored snapshot so the state command reflects
			// the machine as this run left it.
			if !dryRun && graph != nil {
				planner := engine.NewPlanner(rt.fsys, rt.installer)
				if observed, err := planner.Observe(cmd.Context(), graph); err == nil {
					_ = rt.store.SaveSnapshot(cmd.Context(), observed)
				}
			}

			if record.Outcome != engine.OutcomeSuccess {
				env.Data = record
				return emit(env.Fail(errors.New("run outcome: " + string(record.Outcome))))
			}
			return emit(env.Succeed(record))
		},
	}

	cmd.Flags().StringVarP(&profileName, "profile", "p", "", "profile name: artifact, directory, or manifest file")
	cmd.Flags().StringVar(&planFile, "plan", "", "execute a previously saved plan file")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "perform all reads and diffs but no writes")
	cmd.MarkFlagsOneRequired("profile", "plan")
	cmd.MarkFlagsMutuallyExclusive("profile", "plan")

	return cmd
}
