package commands

import (
	"github.com/spf13/cobra"

	"github.com/restorix/restorix/pkg/engine"
	"github.com/restorix/restorix/pkg/output"
)

// stateReport is the state command's envelope payload.
type stateReport struct {
	Snapshot *engine.Snapshot    `json:"snapshot,omitempty"`
	Runs     []*engine.RunRecord `json:"runs"`
}

func newStateCommand(toolVersion string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "state",
		Short: "Show the last observed state and run history",
		Example: `  # Last snapshot and the five most recent runs
  restorix state

  # More history
  restorix state --limit 20`,
		RunE: func(cmd *cobra.Command, args []string) error {
			env := output.New("state", toolVersion)

			rt, err := buildRuntime(toolVersion, false)
			if err != nil {
				return emit(env.Fail(err))
			}

			snapshot, err := rt.store.LoadSnapshot(cmd.Context())
			if err != nil {
				return emit(env.Fail(err))
			}
			runs, err := rt.store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return emit(env.Fail(err))
			}
			if runs == nil {
				runs = []*engine.RunRecord{}
			}

			return emit(env.Succeed(stateReport{Snapshot: snapshot, Runs: runs}))
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 5, "maximum run records to show")

	return cmd
}
