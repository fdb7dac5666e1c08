package commands

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/restorix/restorix/pkg/engine"
	"github.com/restorix/restorix/pkg/output"
)

func newVerifyCommand(toolVersion string) *cobra.Command {
	var profileName string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify this machine against a profile",
		Long: `Run read-only checks confirming each desired item is present and
correct: packages installed, restore targets holding their post-merge
content, and every module-declared check passing.

Nothing is mutated. Failing checks are reported through the exit
code.`,
		Example: `  restorix verify --profile ./laptop`,
		RunE: func(cmd *cobra.Command, args []string) error {
			env := output.New("verify", toolVersion)

			rt, err := buildRuntime(toolVersion, true)
			if err != nil {
				return emit(env.Fail(err))
			}

			graph, cleanup, err := rt.resolveProfile(profileName)
			if err != nil {
				return emit(env.Fail(err))
			}
			defer cleanup()

			verifier := engine.NewVerifier(rt.fsys, rt.installer)
			report, err := verifier.Verify(cmd.Context(), graph)
			if err != nil {
				return emit(env.Fail(err))
			}

			if !report.Ok() {
				env.Data = report
				return emit(env.Fail(errors.New("verification failed")))
			}
			return emit(env.Succeed(report))
		},
	}

	cmd.Flags().StringVarP(&profileName, "profile", "p", "", "profile name: artifact, directory, or manifest file")
	cmd.MarkFlagRequired("profile")

	return cmd
}
