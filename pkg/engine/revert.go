package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/restorix/restorix/pkg/telemetry"
)

// RevertCommand is the command name recorded by revert runs.
const RevertCommand = "revert"

// Reverter undoes the most recent run by replaying its backup entries
// in reverse step order. Only one rollback generation is addressable:
// revert refuses to traverse past the immediately preceding run, and
// refuses to revert a revert.
type Reverter struct {
	fsys  afero.Fs
	store StateStore
	log   *telemetry.Logger
}

// NewReverter creates a reverter.
func NewReverter(fsys afero.Fs, store StateStore, log *telemetry.Logger) *Reverter {
	return &Reverter{fsys: fsys, store: store, log: log.NewComponentLogger("revert")}
}

// Revert restores the original bytes of every file the last run
// overwrote and removes every file it created. Backup content is
// fingerprint-checked against the hash recorded at backup time before
// anything is written back.
func (r *Reverter) Revert(ctx context.Context) (*RunRecord, error) {
	last, err := r.store.LastRun(ctx)
	if err != nil {
		return nil, err
	}
	if last == nil {
		return nil, NewBackupError("no prior run to revert", nil).
			WithCode(ErrCodeBackupMissing)
	}
	if last.Command == RevertCommand {
		return nil, NewBackupError(
			"last run is itself a revert; only one rollback generation is addressable", nil).
			WithCode(ErrCodeBackupMissing)
	}

	// Validate every backup entry before touching the machine, so a
	// corrupt backup aborts the revert with no partial restoration.
	for _, step := range last.Steps {
		if step.Kind != StepRestore || step.Status != StepStatusSucceeded || step.Created {
			continue
		}
		data, err := afero.ReadFile(r.fsys, step.BackupPath)
		if err != nil {
			return nil, NewBackupError(
				fmt.Sprintf("backup entry for %s is missing", step.Target), err).
				WithCode(ErrCodeBackupMissing).WithPath(step.BackupPath)
		}
		if HashBytes(data) != step.BackupHash {
			return nil, NewBackupError(
				fmt.Sprintf("backup entry for %s does not match its recorded fingerprint", step.Target), nil).
				WithCode(ErrCodeBackupCorrupt).WithPath(step.BackupPath)
		}
	}

	rec := &RunRecord{
		RunID:        uuid.New().String(),
		Command:      RevertCommand,
		TimestampUTC: time.Now().UTC(),
		Steps:        make([]StepResult, 0, len(last.Steps)),
	}
	log := r.log.WithRunID(rec.RunID)
	failed := 0

	for i := len(last.Steps) - 1; i >= 0; i-- {
		step := last.Steps[i]
		if step.Kind != StepRestore || step.Status != StepStatusSucceeded {
			continue
		}

		result := StepResult{
			StepID: step.StepID,
			Kind:   StepRestore,
			Module: step.Module,
			Target: step.Target,
		}

		if step.Created {
			// The run created this file; revert removes it.
			if err := r.fsys.Remove(step.Target); err != nil {
				result.Status = StepStatusFailed
				result.Error = "remove failed: " + err.Error()
				failed++
			} else {
				result.Status = StepStatusSucceeded
				log.Debugf("removed created file %s", step.Target)
			}
			rec.Steps = append(rec.Steps, result)
			continue
		}

		data, err := afero.ReadFile(r.fsys, step.BackupPath)
		if err != nil {
			result.Status = StepStatusFailed
			result.Error = "backup read failed: " + err.Error()
			failed++
			rec.Steps = append(rec.Steps, result)
			continue
		}
		if err := afero.WriteFile(r.fsys, step.Target, data, 0o644); err != nil {
			result.Status = StepStatusFailed
			result.Error = "restore write failed: " + err.Error()
			failed++
			rec.Steps = append(rec.Steps, result)
			continue
		}

		result.Status = StepStatusSucceeded
		log.Debugf("restored original bytes of %s", step.Target)
		rec.Steps = append(rec.Steps, result)
	}

	switch {
	case failed == 0:
		rec.Outcome = OutcomeSuccess
	case failed == len(rec.Steps):
		rec.Outcome = OutcomeFailed
	default:
		rec.Outcome = OutcomePartial
	}

	if err := r.store.AppendRun(ctx, rec); err != nil {
		return rec, err
	}
	return rec, nil
}
