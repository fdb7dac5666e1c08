// Package manifest loads desired-state documents and resolves them
// into the engine's desired-state graph. Resolution is deterministic,
// order-preserving, and free of side effects.
package manifest

import (
	"github.com/restorix/restorix/pkg/merge"
)

// SchemaVersion is the newest manifest schema this build understands.
const SchemaVersion = 1

// InlineOp is a restore operation declared directly in a manifest.
// Inline operations resolve after every bundle and module entry, so
// they can override catalog-declared content for the same target.
type InlineOp struct {
	// Action is the merge strategy.
	Action merge.Strategy `yaml:"action" json:"action" validate:"required"`

	// Source is a payload path relative to the profile root.
	Source string `yaml:"source,omitempty" json:"source,omitempty"`

	// Content is inline payload content.
	Content string `yaml:"content,omitempty" json:"content,omitempty"`

	// Target is the destination path.
	Target string `yaml:"target" json:"target" validate:"required"`
}

// Document is the on-disk manifest shape: the declarative desired
// state for one machine.
type Document struct {
	// SchemaVersion is the manifest schema version.
	SchemaVersion int `yaml:"schemaVersion" json:"schemaVersion" validate:"required,min=1"`

	// Includes are other manifest files merged in, relative to this
	// document, before this document's own entries.
	Includes []string `yaml:"includes,omitempty" json:"includes,omitempty"`

	// Packages are package identifiers to install, in order.
	Packages []string `yaml:"packages,omitempty" json:"packages,omitempty"`

	// Bundles are catalog bundle ids expanded depth-first in
	// declaration order.
	Bundles []string `yaml:"bundles,omitempty" json:"bundles,omitempty"`

	// Modules are catalog module ids referenced directly.
	Modules []string `yaml:"modules,omitempty" json:"modules,omitempty"`

	// Restore are inline operations appended after all module entries.
	Restore []InlineOp `yaml:"restore,omitempty" json:"restore,omitempty" validate:"dive"`
}
