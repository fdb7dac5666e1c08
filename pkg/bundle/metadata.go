// Package bundle reads and writes the portable capture artifact: a
// tar.gz archive holding the app manifest, per-module config payloads
// under configs/<module-id>/, and metadata.json. It also resolves
// profile names, so an unpacked archive stays a valid profile.
package bundle

import (
	"time"
)

// Well-known entry names inside an artifact.
const (
	// ManifestName is the desired-state document entry.
	ManifestName = "manifest.yaml"

	// MetadataName is the capture metadata entry.
	MetadataName = "metadata.json"

	// ConfigsDir is the per-module payload tree.
	ConfigsDir = "configs"

	// ArchiveExt is the file extension of a packed artifact.
	ArchiveExt = ".tar.gz"
)

// MetadataSchemaVersion is the metadata.json schema version this
// build writes and the newest it understands.
const MetadataSchemaVersion = 1

// SkippedModule records one module the capture left out and why.
type SkippedModule struct {
	// Module is the catalog module id.
	Module string `json:"module"`

	// Reason is why the module was skipped.
	Reason string `json:"reason"`
}

// Metadata is the capture record embedded in every artifact.
type Metadata struct {
	// SchemaVersion is the metadata schema version.
	SchemaVersion int `json:"schemaVersion"`

	// CapturedAtUTC is when the capture ran.
	CapturedAtUTC time.Time `json:"capturedAtUtc"`

	// SourceMachineID identifies the machine the capture ran on.
	SourceMachineID string `json:"sourceMachineId"`

	// ModulesIncluded are the module ids with captured payloads,
	// sorted by id.
	ModulesIncluded []string `json:"modulesIncluded"`

	// ModulesSkipped are the modules left out, with reasons.
	ModulesSkipped []SkippedModule `json:"modulesSkipped"`

	// Warnings are non-fatal capture problems, one per isolated
	// module failure.
	Warnings []string `json:"warnings"`
}
