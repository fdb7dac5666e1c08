package commands

import (
	"encoding/json"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/restorix/restorix/pkg/engine"
	"github.com/restorix/restorix/pkg/output"
)

func newPlanCommand(toolVersion string) *cobra.Command {
	var (
		profileName string
		outFile     string
	)

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Compute the plan for a profile",
		Long: `Compute the ordered plan that would reconcile this machine with a
profile's desired state.

The plan:
  - Resolves the profile (archive, directory, or bare manifest)
  - Takes a fresh observed-state snapshot
  - Diffs desired against observed; an empty plan means converged
  - Optionally persists the plan for a later apply`,
		Example: `  # Plan against a profile directory
  restorix plan --profile ./laptop

  # Persist the plan for apply
  restorix plan --profile laptop.tar.gz --out plan.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			env := output.New("plan", toolVersion)

			rt, err := buildRuntime(toolVersion, true)
			if err != nil {
				return emit(env.Fail(err))
			}

			graph, cleanup, err := rt.resolveProfile(profileName)
			if err != nil {
				return emit(env.Fail(err))
			}
			defer cleanup()

			planner := engine.NewPlanner(rt.fsys, rt.installer)
			observed, err := planner.Observe(cmd.Context(), graph)
			if err != nil {
				return emit(env.Fail(err))
			}
			if err := rt.store.SaveSnapshot(cmd.Context(), observed); err != nil {
				return emit(env.Fail(err))
			}

			plan, err := planner.Plan(cmd.Context(), graph, observed)
			if err != nil {
				return emit(env.Fail(err))
			}

			if outFile != "" {
				data, err := json.MarshalIndent(plan, "", "  ")
				if err != nil {
					return emit(env.Fail(err))
				}
				if err := afero.WriteFile(rt.fsys, rt.paths.Expand(outFile), data, 0o644); err != nil {
					return emit(env.Fail(err))
				}
			}

			return emit(env.Succeed(plan))
		},
	}

	cmd.Flags().StringVarP(&profileName, "profile", "p", "", "profile name: artifact, directory, or manifest file")
	cmd.Flags().StringVarP(&outFile, "out", "o", "", "persist the plan to this file")
	cmd.MarkFlagRequired("profile")

	return cmd
}
