// Package brew implements the install capability over the Homebrew
// command line. It is one of the platform drivers the engine
// consumes; the engine itself never shells out.
package brew

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/restorix/restorix/pkg/engine"
)

// Installer drives Homebrew via its CLI.
type Installer struct {
	// Bin is the brew executable, "brew" by default.
	Bin string
}

// New creates a Homebrew installer.
func New() *Installer {
	return &Installer{Bin: "brew"}
}

var _ engine.Installer = (*Installer)(nil)

// Ensure installs the package unless it is already present. A failed
// brew invocation is reported in the result, not as an error; errors
// mean brew itself is unusable.
func (b *Installer) Ensure(ctx context.Context, pkg string) (engine.EnsureResult, error) {
	result := engine.EnsureResult{Package: pkg}

	installed, err := b.Query(ctx)
	if err != nil {
		return result, err
	}
	for _, p := range installed {
		if p == pkg {
			result.Status = engine.EnsureAlreadyPresent
			return result, nil
		}
	}

	cmd := exec.CommandContext(ctx, b.Bin, "install", pkg)
	output, err := cmd.CombinedOutput()
	if err != nil {
		result.Status = engine.EnsureFailed
		result.Reason = fmt.Sprintf("brew install %s failed: %v (output: %s)",
			pkg, err, strings.TrimSpace(string(output)))
		return result, nil
	}

	result.Status = engine.EnsureInstalled
	return result, nil
}

// Query lists installed formulae and casks.
func (b *Installer) Query(ctx context.Context) ([]string, error) {
	cmd := exec.CommandContext(ctx, b.Bin, "list", "-1")
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("brew list failed: %w (stderr: %s)",
				err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("brew list failed: %w", err)
	}

	var packages []string
	for _, line := range strings.Split(string(output), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			packages = append(packages, line)
		}
	}
	return packages, nil
}
