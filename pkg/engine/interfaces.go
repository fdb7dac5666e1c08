package engine

import (
	"context"
)

// EnsureStatus is the outcome of one install-capability call.
type EnsureStatus string

const (
	// EnsureInstalled means the package was installed by this call.
	EnsureInstalled EnsureStatus = "installed"

	// EnsureAlreadyPresent means the package was already installed.
	EnsureAlreadyPresent EnsureStatus = "already-present"

	// EnsureFailed means the install failed; Reason carries the cause.
	EnsureFailed EnsureStatus = "failed"
)

// EnsureResult is the result of ensuring one package.
type EnsureResult struct {
	// Package is the package identifier that was ensured.
	Package string `json:"package"`

	// Status is the ensure outcome.
	Status EnsureStatus `json:"status"`

	// Reason is the failure cause when Status is failed.
	Reason string `json:"reason,omitempty"`
}

// Installer is the platform package-installation capability. Drivers
// are external collaborators; the engine only consumes this contract.
// Ensure must be idempotent from the engine's point of view: ensuring
// an installed package reports already-present, not an error. The
// engine does not arbitrate timeouts; a driver owns its own deadline
// behavior and honors ctx cancellation.
type Installer interface {
	// Ensure makes the package installed. A failed install is reported
	// in the result, not as an error; errors are reserved for the
	// capability itself being unusable.
	Ensure(ctx context.Context, pkg string) (EnsureResult, error)

	// Query returns the identifiers of every installed package.
	Query(ctx context.Context) ([]string, error)
}

// StateStore persists the last observed snapshot and the append-only
// run history. Implementations must publish every write atomically:
// readers never observe a partially-written file.
type StateStore interface {
	// LoadSnapshot returns the last observed snapshot, or nil when no
	// usable snapshot exists (first run). A snapshot with a schema
	// version newer than supported is the one fatal read error.
	LoadSnapshot(ctx context.Context) (*Snapshot, error)

	// SaveSnapshot durably records the observed snapshot.
	SaveSnapshot(ctx context.Context, snap *Snapshot) error

	// AppendRun durably appends a run record. Records are immutable
	// once written.
	AppendRun(ctx context.Context, rec *RunRecord) error

	// LastRun returns the most recent run record, or nil when the
	// history is empty.
	LastRun(ctx context.Context) (*RunRecord, error)

	// ListRuns returns up to limit run records, newest first.
	ListRuns(ctx context.Context, limit int) ([]*RunRecord, error)
}
