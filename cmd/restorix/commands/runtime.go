package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/restorix/restorix/pkg/catalog"
	"github.com/restorix/restorix/pkg/engine"
	"github.com/restorix/restorix/pkg/installers/brew"
	"github.com/restorix/restorix/pkg/output"
	"github.com/restorix/restorix/pkg/paths"
	"github.com/restorix/restorix/pkg/state"
	"github.com/restorix/restorix/pkg/telemetry"
)

// runtime bundles the objects every command needs: filesystem, path
// context, logger, catalog, state store, and the install capability.
// It is built once per invocation; nothing here is ambient.
type runtime struct {
	fsys      afero.Fs
	paths     *paths.Context
	log       *telemetry.Logger
	catalog   *catalog.Catalog
	store     *state.Store
	installer engine.Installer
	version   string
}

// buildRuntime resolves paths and loads the catalog. Commands that do
// not consume the catalog (state, revert) pass needCatalog=false so a
// missing catalog does not block them.
func buildRuntime(version string, needCatalog bool) (*runtime, error) {
	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}

	pathCtx, err := paths.Resolve(workspacePath, wd)
	if err != nil {
		return nil, err
	}

	format := "console"
	if jsonOutput {
		format = "json"
	}
	log, err := telemetry.NewLogger(telemetry.LoggingConfig{
		Level:  logLevel,
		Format: format,
		Output: "stderr",
	})
	if err != nil {
		return nil, err
	}

	fsys := afero.NewOsFs()
	rt := &runtime{
		fsys:      fsys,
		paths:     pathCtx,
		log:       log,
		store:     state.NewStore(fsys, pathCtx.StateDir),
		installer: brew.New(),
		version:   version,
	}

	if needCatalog {
		path := catalogPath
		if path == "" {
			path = filepath.Join(pathCtx.Workspace, "catalog")
		}
		cat, err := catalog.Load(fsys, path)
		if err != nil {
			return nil, err
		}
		rt.catalog = cat
	}

	return rt, nil
}

// emit writes the result envelope to stdout and converts a failed or
// partial envelope into a non-zero exit code.
func emit(env *output.Envelope) error {
	if err := env.Write(os.Stdout); err != nil {
		return err
	}
	if !env.Success {
		return fmt.Errorf("%s did not complete successfully", env.Command)
	}
	return nil
}
