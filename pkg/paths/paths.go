// Package paths resolves the filesystem locations the engine reads and
// writes. Components receive an explicit Context instead of consulting
// the process environment themselves.
package paths

import (
	"fmt"
	"path/filepath"
	"strings"

	homedir "github.com/mitchellh/go-homedir"
)

// DefaultWorkspaceDir is the workspace directory under the user home
// when none is configured.
const DefaultWorkspaceDir = ".restorix"

// Context holds every location the engine needs. It is built once per
// invocation and threaded through resolver, capture, and executor.
type Context struct {
	// Home is the user home directory.
	Home string

	// Workspace is the tool's own data directory.
	Workspace string

	// StateDir holds the observed-state file and run records.
	StateDir string

	// BackupRoot holds timestamp-named backup directories.
	BackupRoot string

	// WorkDir is the invocation working directory, used to resolve
	// relative profile and manifest paths.
	WorkDir string
}

// Resolve builds a Context. An empty workspace selects
// ~/.restorix; workdir resolves relative manifest paths.
func Resolve(workspace, workdir string) (*Context, error) {
	home, err := homedir.Dir()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve home directory: %w", err)
	}

	if workspace == "" {
		workspace = filepath.Join(home, DefaultWorkspaceDir)
	} else if expanded, err := homedir.Expand(workspace); err == nil {
		workspace = expanded
	}

	return &Context{
		Home:       home,
		Workspace:  workspace,
		StateDir:   filepath.Join(workspace, "state"),
		BackupRoot: filepath.Join(workspace, "backups"),
		WorkDir:    workdir,
	}, nil
}

// Expand resolves a leading "~/" against the context home and makes
// relative paths absolute against the working directory.
func (c *Context) Expand(path string) string {
	if path == "~" {
		return c.Home
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(c.Home, path[2:])
	}
	if !filepath.IsAbs(path) && c.WorkDir != "" {
		return filepath.Join(c.WorkDir, path)
	}
	return path
}
