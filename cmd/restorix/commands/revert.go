package commands

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/restorix/restorix/pkg/engine"
	"github.com/restorix/restorix/pkg/output"
)

func newRevertCommand(toolVersion string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "revert",
		Short: "Undo the most recent run",
		Long: `Undo the most recent run by replaying its backup entries in reverse
step order. Files the run overwrote get their original bytes back;
files it created are removed.

Only one rollback generation is addressable: revert cannot traverse
further back than the immediately preceding run, and backups are
fingerprint-checked before anything is written.`,
		Example: `  restorix revert`,
		RunE: func(cmd *cobra.Command, args []string) error {
			env := output.New("revert", toolVersion)

			rt, err := buildRuntime(toolVersion, false)
			if err != nil {
				return emit(env.Fail(err))
			}

			reverter := engine.NewReverter(rt.fsys, rt.store, rt.log)
			record, err := reverter.Revert(cmd.Context())
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

	return cmd
}
