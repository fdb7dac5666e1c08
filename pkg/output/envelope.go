// Package output emits the machine-readable result envelope every
// command produces exactly once. Breaking changes to the envelope
// require a major version bump on both schema and tool.
package output

import (
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/restorix/restorix/pkg/engine"
)

// SchemaVersion is the envelope schema version.
const SchemaVersion = 1

// ErrorBody is the structured error inside an envelope.
type ErrorBody struct {
	// Kind is the engine error classification.
	Kind string `json:"kind"`

	// Code is the engine error code, when one is attached.
	Code string `json:"code,omitempty"`

	// Message is the human-readable error message.
	Message string `json:"message"`
}

// Envelope is the single machine-readable result of one command.
type Envelope struct {
	SchemaVersion int        `json:"schemaVersion"`
	ToolVersion   string     `json:"toolVersion"`
	Command       string     `json:"command"`
	RunID         string     `json:"runId,omitempty"`
	TimestampUTC  time.Time  `json:"timestampUtc"`
	Success       bool       `json:"success"`
	Data          any        `json:"data,omitempty"`
	Error         *ErrorBody `json:"error,omitempty"`
}

// New creates an envelope for a command invocation.
func New(command, toolVersion string) *Envelope {
	return &Envelope{
		SchemaVersion: SchemaVersion,
		ToolVersion:   toolVersion,
		Command:       command,
		TimestampUTC:  time.Now().UTC(),
	}
}

// Succeed marks the envelope successful with the given payload.
func (e *Envelope) Succeed(data any) *Envelope {
	e.Success = true
	e.Data = data
	return e
}

// Fail marks the envelope failed with the given error.
func (e *Envelope) Fail(err error) *Envelope {
	e.Success = false
	body := &ErrorBody{Message: err.Error(), Kind: string(engine.ErrorKindInternal)}
	var engErr *engine.Error
	if errors.As(err, &engErr) {
		body.Kind = string(engErr.Kind)
		body.Code = engErr.Code
	}
	e.Error = body
	return e
}

// WithRunID attaches the run identifier.
func (e *Envelope) WithRunID(runID string) *Envelope {
	e.RunID = runID
	return e
}

// Write encodes the envelope as indented JSON.
func (e *Envelope) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(e)
}
