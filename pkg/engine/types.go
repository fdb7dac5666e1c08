package engine

import (
	"time"

	"github.com/restorix/restorix/pkg/merge"
)

// Provenance records which manifest, bundle, or module produced an
// intent, for diagnostics only. It never affects execution.
type Provenance struct {
	// Manifest is the path of the manifest document that declared the
	// intent, or of the manifest that included it.
	Manifest string `json:"manifest,omitempty"`

	// Bundle is the catalog bundle id the intent was expanded from.
	Bundle string `json:"bundle,omitempty"`

	// Module is the catalog module id the intent belongs to.
	Module string `json:"module,omitempty"`
}

// InstallIntent is the desire for one package to be installed.
type InstallIntent struct {
	// Package is the opaque package identifier handed to the install
	// capability (e.g. a Homebrew formula name).
	Package string `json:"package"`

	// Provenance records where the intent came from.
	Provenance Provenance `json:"provenance,omitempty"`
}

// RestoreIntent is the desire for one config file to hold merged
// content. Source bytes are resolved before planning; the intent is
// self-contained.
type RestoreIntent struct {
	// Module is the catalog module id that owns the target file.
	Module string `json:"module"`

	// Source is the path of the payload file, resolved against the
	// profile root. Empty when Content carries inline bytes.
	Source string `json:"source,omitempty"`

	// Content is inline payload content declared directly in a
	// manifest. Mutually exclusive with Source.
	Content []byte `json:"content,omitempty"`

	// Target is the absolute destination path on the machine.
	Target string `json:"target"`

	// Strategy selects how source content is combined with the
	// existing target.
	Strategy merge.Strategy `json:"strategy"`

	// Provenance records where the intent came from.
	Provenance Provenance `json:"provenance,omitempty"`
}

// VerifyIntent is a read-only post-apply check declared by a module.
type VerifyIntent struct {
	// Module is the catalog module id declaring the check.
	Module string `json:"module"`

	// Kind is the check kind: "file-exists" or "file-contains".
	Kind string `json:"kind"`

	// Path is the file the check inspects.
	Path string `json:"path"`

	// Contains is the substring a "file-contains" check requires.
	Contains string `json:"contains,omitempty"`
}

// Graph is the resolver output: a flattened, ordered, de-duplicated
// sequence of install and restore intents.
type Graph struct {
	// Installs are package-install intents in resolution order.
	Installs []InstallIntent `json:"installs"`

	// Restores are config-restore intents in resolution order.
	Restores []RestoreIntent `json:"restores"`

	// Verifies are module-declared verification checks.
	Verifies []VerifyIntent `json:"verifies,omitempty"`
}

// Snapshot is a point-in-time record of observed machine state.
type Snapshot struct {
	// SchemaVersion is the snapshot schema version.
	SchemaVersion int `json:"schema_version"`

	// TakenAt is when the snapshot was recorded.
	TakenAt time.Time `json:"taken_at"`

	// Packages are the installed package identifiers.
	Packages []string `json:"packages"`

	// Files maps tracked file paths to their sha256 content hash.
	Files map[string]string `json:"files,omitempty"`
}

// HasPackage reports whether the snapshot records pkg as installed.
func (s *Snapshot) HasPackage(pkg string) bool {
	for _, p := range s.Packages {
		if p == pkg {
			return true
		}
	}
	return false
}

// StepKind discriminates plan steps.
type StepKind string

const (
	// StepInstall invokes the install capability for one package.
	StepInstall StepKind = "install"

	// StepRestore writes merged content to one target file.
	StepRestore StepKind = "restore"

	// StepCapture collects one module's config payload. Capture steps
	// never appear in plans; they exist so capture runs record
	// per-module results the same way apply runs do.
	StepCapture StepKind = "capture"
)

// Step is one unit of a plan. A step is pure data; nothing happens
// until the executor runs it.
type Step struct {
	// ID is the unique identifier for this step within its plan.
	ID string `json:"id"`

	// Kind is the step kind.
	Kind StepKind `json:"kind"`

	// Package is the package identifier for install steps.
	Package string `json:"package,omitempty"`

	// Module is the catalog module id for restore steps.
	Module string `json:"module,omitempty"`

	// Source is the payload path for restore steps with file sources.
	Source string `json:"source,omitempty"`

	// Content is the inline payload for restore steps without sources.
	Content []byte `json:"content,omitempty"`

	// Target is the destination path for restore steps.
	Target string `json:"target,omitempty"`

	// Strategy is the merge strategy for restore steps.
	Strategy merge.Strategy `json:"strategy,omitempty"`

	// BackupRequired is true when the target exists and must be
	// preserved before the write.
	BackupRequired bool `json:"backup_required"`

	// Reason explains why the differ emitted the step.
	Reason string `json:"reason"`

	// Provenance records where the underlying intent came from.
	Provenance Provenance `json:"provenance,omitempty"`
}

// PlanSummary provides counts over a plan.
type PlanSummary struct {
	// Installs is the number of install steps.
	Installs int `json:"installs"`

	// Restores is the number of restore steps.
	Restores int `json:"restores"`

	// Converged is the number of intents that required no step.
	Converged int `json:"converged"`
}

// Plan is an ordered list of steps computed by the differ. An empty
// plan means the machine already matches the desired state.
type Plan struct {
	// ID is the unique identifier for this plan.
	ID string `json:"id"`

	// CreatedAt is when the plan was computed.
	CreatedAt time.Time `json:"created_at"`

	// Steps are the ordered steps: all installs, then all restores.
	Steps []Step `json:"steps"`

	// Summary provides counts over the plan.
	Summary PlanSummary `json:"summary"`
}

// Empty reports whether the plan has no steps.
func (p *Plan) Empty() bool {
	return len(p.Steps) == 0
}

// StepStatus is the execution status of one step.
type StepStatus string

const (
	StepStatusSucceeded StepStatus = "succeeded"
	StepStatusFailed    StepStatus = "failed"
	StepStatusSkipped   StepStatus = "skipped"
	StepStatusPlanned   StepStatus = "planned"
)

// StepResult is the recorded outcome of executing one step.
type StepResult struct {
	// StepID is the plan step this result belongs to.
	StepID string `json:"step_id"`

	// Kind is the step kind.
	Kind StepKind `json:"kind"`

	// Package is the package identifier for install steps.
	Package string `json:"package,omitempty"`

	// Module is the module id for restore steps.
	Module string `json:"module,omitempty"`

	// Target is the destination path for restore steps.
	Target string `json:"target,omitempty"`

	// Status is the execution status.
	Status StepStatus `json:"status"`

	// Error is the failure reason when Status is failed.
	Error string `json:"error,omitempty"`

	// Created is true when the step created a file that did not exist
	// before. Revert removes such files instead of restoring bytes.
	Created bool `json:"created,omitempty"`

	// BackupPath is the backup entry written before an overwrite.
	BackupPath string `json:"backup_path,omitempty"`

	// BackupHash is the sha256 of the backed-up bytes, used by revert
	// to detect backup corruption.
	BackupHash string `json:"backup_hash,omitempty"`
}

// Outcome is the overall result of a run.
type Outcome string

const (
	// OutcomeSuccess means every step succeeded.
	OutcomeSuccess Outcome = "success"

	// OutcomePartial means at least one step failed but execution
	// continued through the remaining independent steps.
	OutcomePartial Outcome = "partial"

	// OutcomeFailed means the run could not execute at all.
	OutcomeFailed Outcome = "failed"
)

// RunRecord is the durable, append-only record of one engine
// invocation. Never mutated after write.
type RunRecord struct {
	// RunID is the unique identifier for this run.
	RunID string `json:"run_id"`

	// Command is the engine operation that produced the run
	// (apply, restore, capture, revert).
	Command string `json:"command"`

	// TimestampUTC is when the run started.
	TimestampUTC time.Time `json:"timestamp_utc"`

	// Outcome is the overall run outcome.
	Outcome Outcome `json:"outcome"`

	// DryRun is true when no writes were performed.
	DryRun bool `json:"dry_run,omitempty"`

	// BackupDir is the timestamp-named directory holding this run's
	// backup entries, when any were created.
	BackupDir string `json:"backup_dir,omitempty"`

	// Steps are the per-step results in execution order.
	Steps []StepResult `json:"steps"`
}
