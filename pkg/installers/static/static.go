// Package static implements an in-memory install capability used by
// tests and dry runs: the package set lives in the driver, and ensure
// calls mutate it without touching the machine.
package static

import (
	"context"
	"sort"
	"sync"

	"github.com/restorix/restorix/pkg/engine"
)

// Installer is an in-memory install capability.
type Installer struct {
	mu        sync.Mutex
	installed map[string]bool

	// FailPackages lists packages whose ensure calls report failure.
	FailPackages map[string]string
}

// New creates a static installer pre-seeded with the given packages.
func New(installed ...string) *Installer {
	set := make(map[string]bool, len(installed))
	for _, pkg := range installed {
		set[pkg] = true
	}
	return &Installer{installed: set}
}

var _ engine.Installer = (*Installer)(nil)

// Ensure marks the package installed, or reports the configured
// failure reason.
func (s *Installer) Ensure(ctx context.Context, pkg string) (engine.EnsureResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := engine.EnsureResult{Package: pkg}
	if reason, fail := s.FailPackages[pkg]; fail {
		result.Status = engine.EnsureFailed
		result.Reason = reason
		return result, nil
	}
	if s.installed[pkg] {
		result.Status = engine.EnsureAlreadyPresent
		return result, nil
	}
	s.installed[pkg] = true
	result.Status = engine.EnsureInstalled
	return result, nil
}

// Query returns the installed package identifiers, sorted.
func (s *Installer) Query(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.installed))
	for pkg := range s.installed {
		out = append(out, pkg)
	}
	sort.Strings(out)
	return out, nil
}
