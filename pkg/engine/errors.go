package engine

import (
	"errors"
	"fmt"
)

// ErrorKind classifies an error by the pipeline stage that produced it
// and the recovery semantics callers should apply.
type ErrorKind string

const (
	// ErrorKindInput indicates malformed or unresolvable input
	// (manifest, catalog, schema version). Fatal; nothing was executed.
	ErrorKindInput ErrorKind = "input"

	// ErrorKindCapture indicates a per-module capture failure.
	// Non-fatal; the capture continues and records a warning.
	ErrorKindCapture ErrorKind = "capture"

	// ErrorKindApply indicates an install or restore step failure.
	// Recorded per step; execution continues to independent steps.
	ErrorKindApply ErrorKind = "apply"

	// ErrorKindBackup indicates a missing or corrupt backup.
	// Fatal for the revert operation only.
	ErrorKindBackup ErrorKind = "backup"

	// ErrorKindState indicates a state-store failure that cannot be
	// treated as empty state (unsupported schema version).
	ErrorKindState ErrorKind = "state"

	// ErrorKindInternal indicates a bug or an unrecoverable condition.
	ErrorKindInternal ErrorKind = "internal"
)

// Error represents a classified engine error with context.
type Error struct {
	// Kind is the error classification.
	Kind ErrorKind `json:"kind"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code is an optional error code for programmatic handling.
	Code string `json:"code,omitempty"`

	// Module is the catalog module id involved, if applicable.
	Module string `json:"module,omitempty"`

	// Path is the filesystem path involved, if applicable.
	Path string `json:"path,omitempty"`

	// Err is the underlying error.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	if e.Module != "" {
		msg += fmt.Sprintf(" (module=%s)", e.Module)
	}
	if e.Path != "" {
		msg += fmt.Sprintf(" (path=%s)", e.Path)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is implements error equality checking for errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Code == t.Code
}

// NewInputError creates a new input error.
func NewInputError(message string, err error) *Error {
	return &Error{Kind: ErrorKindInput, Message: message, Err: err}
}

// NewCaptureError creates a new capture error.
func NewCaptureError(message string, err error) *Error {
	return &Error{Kind: ErrorKindCapture, Message: message, Err: err}
}

// NewApplyError creates a new apply error.
func NewApplyError(message string, err error) *Error {
	return &Error{Kind: ErrorKindApply, Message: message, Err: err}
}

// NewBackupError creates a new backup error.
func NewBackupError(message string, err error) *Error {
	return &Error{Kind: ErrorKindBackup, Message: message, Err: err}
}

// NewStateError creates a new state error.
func NewStateError(message string, err error) *Error {
	return &Error{Kind: ErrorKindState, Message: message, Err: err}
}

// NewInternalError creates a new internal error.
func NewInternalError(message string, err error) *Error {
	return &Error{Kind: ErrorKindInternal, Message: message, Err: err}
}

// WithCode adds an error code to an error.
func (e *Error) WithCode(code string) *Error {
	e.Code = code
	return e
}

// WithModule adds module context to an error.
func (e *Error) WithModule(moduleID string) *Error {
	e.Module = moduleID
	return e
}

// WithPath adds path context to an error.
func (e *Error) WithPath(path string) *Error {
	e.Path = path
	return e
}

// KindOf returns the classification of err, or ErrorKindInternal when
// err carries no classification.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrorKindInternal
}

// CodeOf returns the error code of err, or empty when none is attached.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsInput returns true if the error is classified as an input error.
func IsInput(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == ErrorKindInput
	}
	return false
}

// IsBackup returns true if the error is classified as a backup error.
func IsBackup(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == ErrorKindBackup
	}
	return false
}

// Common error codes.
const (
	ErrCodeManifestParse         = "MANIFEST_PARSE"
	ErrCodeModuleNotFound        = "MODULE_NOT_FOUND"
	ErrCodeCircularInclude       = "CIRCULAR_INCLUDE"
	ErrCodeSchemaVersionMismatch = "SCHEMA_VERSION_MISMATCH"
	ErrCodeBackupMissing         = "BACKUP_MISSING"
	ErrCodeBackupCorrupt         = "BACKUP_CORRUPT"
	ErrCodeInstallFailed         = "INSTALL_FAILED"
	ErrCodeRestoreFailed         = "RESTORE_FAILED"
	ErrCodeCaptureFailed         = "CAPTURE_FAILED"
	ErrCodeVerifyFailed          = "VERIFY_FAILED"
	ErrCodeProfileNotFound       = "PROFILE_NOT_FOUND"
	ErrCodeValidation            = "VALIDATION_ERROR"
	ErrCodeInternal              = "INTERNAL_ERROR"
)
