// Package catalog loads and serves the declarative module catalog: the
// per-application descriptions of what to match, capture, restore, and
// verify. The catalog is read-only reference data; it is loaded once
// per invocation and passed explicitly to the components that need it.
package catalog

import (
	"github.com/gobwas/glob"

	"github.com/restorix/restorix/pkg/merge"
)

// Sensitivity classifies the risk of a module's payload.
type Sensitivity string

const (
	SensitivityLow    Sensitivity = "low"
	SensitivityMedium Sensitivity = "medium"
	SensitivityHigh   Sensitivity = "high"
)

// MatchSpec declares the predicates that tie a module to observed
// package identifiers.
type MatchSpec struct {
	// Packages are glob patterns matched against installed package
	// identifiers. A module is included when any pattern matches.
	Packages []string `yaml:"packages" json:"packages" validate:"required,min=1"`
}

// CaptureSpec declares which files a module captures.
type CaptureSpec struct {
	// Files are glob patterns, relative to the user home, selecting
	// files to include.
	Files []string `yaml:"files,omitempty" json:"files,omitempty"`

	// ExcludeGlobs are patterns removed from the Files expansion.
	ExcludeGlobs []string `yaml:"excludeGlobs,omitempty" json:"excludeGlobs,omitempty"`

	// SensitiveFiles are paths or patterns that must never be
	// captured, enforced at collection time.
	SensitiveFiles []string `yaml:"sensitiveFiles,omitempty" json:"sensitiveFiles,omitempty"`
}

// RestoreOp is one ordered configuration action a module performs on
// restore.
type RestoreOp struct {
	// Action is the merge strategy: copy, merge-json, merge-ini, append.
	Action merge.Strategy `yaml:"action" json:"action" validate:"required"`

	// Source is the payload path relative to the module's config
	// directory in a bundle artifact. Empty when Content is inline.
	Source string `yaml:"source,omitempty" json:"source,omitempty"`

	// Content is inline payload content.
	Content string `yaml:"content,omitempty" json:"content,omitempty"`

	// Target is the destination path, typically home-relative ("~/...").
	Target string `yaml:"target" json:"target" validate:"required"`
}

// VerifyOp is one read-only check a module declares.
type VerifyOp struct {
	// Kind is "file-exists" or "file-contains".
	Kind string `yaml:"kind" json:"kind" validate:"required,oneof=file-exists file-contains"`

	// Path is the file the check inspects.
	Path string `yaml:"path" json:"path" validate:"required"`

	// Contains is the substring a file-contains check requires.
	Contains string `yaml:"contains,omitempty" json:"contains,omitempty"`
}

// Module describes one application's restorable surface.
type Module struct {
	// ID is the unique module identifier.
	ID string `yaml:"id" json:"id" validate:"required"`

	// DisplayName is the human-readable name.
	DisplayName string `yaml:"displayName" json:"displayName" validate:"required"`

	// Sensitivity classifies the payload risk.
	Sensitivity Sensitivity `yaml:"sensitivity,omitempty" json:"sensitivity,omitempty" validate:"omitempty,oneof=low medium high"`

	// Matches ties the module to observed package identifiers.
	Matches MatchSpec `yaml:"matches" json:"matches" validate:"required"`

	// Capture declares which files the module captures.
	Capture CaptureSpec `yaml:"capture,omitempty" json:"capture,omitempty"`

	// Restore are the ordered restore actions.
	Restore []RestoreOp `yaml:"restore,omitempty" json:"restore,omitempty" validate:"dive"`

	// Verify are the module's post-apply checks.
	Verify []VerifyOp `yaml:"verify,omitempty" json:"verify,omitempty" validate:"dive"`

	// Compiled match predicates, built at load time.
	matchGlobs     []glob.Glob
	excludeGlobs   []glob.Glob
	sensitiveGlobs []glob.Glob
}

// Bundle is a catalog grouping: a named, ordered list of module ids
// expanded during manifest resolution. It is unrelated to the portable
// bundle artifact.
type Bundle struct {
	// ID is the unique bundle identifier.
	ID string `yaml:"id" json:"id" validate:"required"`

	// Modules are the member module ids, in order.
	Modules []string `yaml:"modules" json:"modules" validate:"required,min=1"`
}

// MatchesPackage reports whether any match predicate matches the
// package identifier.
func (m *Module) MatchesPackage(pkg string) bool {
	for _, g := range m.matchGlobs {
		if g.Match(pkg) {
			return true
		}
	}
	return false
}

// Excluded reports whether a home-relative path matches an exclude
// glob.
func (m *Module) Excluded(rel string) bool {
	for _, g := range m.excludeGlobs {
		if g.Match(rel) {
			return true
		}
	}
	return false
}

// Sensitive reports whether a home-relative path is declared
// sensitive. Sensitive paths are rejected at collection time, before
// any bytes are staged.
func (m *Module) Sensitive(rel string) bool {
	for _, g := range m.sensitiveGlobs {
		if g.Match(rel) {
			return true
		}
	}
	return false
}
