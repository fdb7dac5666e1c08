package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/restorix/restorix/pkg/capture"
	"github.com/restorix/restorix/pkg/output"
)

func newCaptureCommand(toolVersion string) *cobra.Command {
	var outFile string

	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Capture machine state into a bundle artifact",
		Long: `Capture the live machine into a portable bundle artifact.

This command:
  - Enumerates installed packages via the install capability
  - Matches catalog modules against the installed set
  - Collects each matched module's config files, never touching
    declared sensitive files
  - Publishes a single tar.gz artifact atomically

A module whose collection fails is skipped with a warning; the
package manifest is always captured.`,
		Example: `  # Capture to a named artifact
  restorix capture --out laptop.tar.gz

  # Capture with a custom catalog
  restorix capture --catalog ./catalog --out laptop.tar.gz`,
		RunE: func(cmd *cobra.Command, args []string) error {
			env := output.New("capture", toolVersion)

			rt, err := buildRuntime(toolVersion, true)
			if err != nil {
				return emit(env.Fail(err))
			}

			dest := outFile
			if dest == "" {
				host, _ := os.Hostname()
				dest = fmt.Sprintf("restorix-%s-%s.tar.gz", host, time.Now().UTC().Format("20060102"))
			}
			dest = rt.paths.Expand(dest)

			eng := capture.NewEngine(rt.fsys, rt.installer, rt.catalog, rt.paths, rt.store, rt.log)
			result, err := eng.Capture(cmd.Context(), dest)
			if err != nil {
				return emit(env.Fail(err))
			}
			env.WithRunID(result.RunID)

			return emit(env.Succeed(result))
		},
	}

	cmd.Flags().StringVarP(&outFile, "out", "o", "", "artifact output path (default restorix-<host>-<date>.tar.gz)")

	return cmd
}
