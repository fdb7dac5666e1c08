package engine

import (
	"context"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/restorix/restorix/pkg/merge"
	"github.com/restorix/restorix/pkg/telemetry"
)

// backupDirFormat names a run's backup directory after its start time.
const backupDirFormat = "20060102T150405.000000000"

// Executor runs plans against the real machine. Steps execute
// sequentially, strictly in plan order; a failed step is recorded and
// execution continues to subsequent independent steps. Every overwrite
// is preceded by a backup entry.
type Executor struct {
	fsys       afero.Fs
	installer  Installer
	store      StateStore
	backupRoot string
	log        *telemetry.Logger
}

// NewExecutor creates an executor. backupRoot is the directory under
// which per-run backup directories are created.
func NewExecutor(fsys afero.Fs, installer Installer, store StateStore, backupRoot string, log *telemetry.Logger) *Executor {
	return &Executor{
		fsys:       fsys,
		installer:  installer,
		store:      store,
		backupRoot: backupRoot,
		log:        log.NewComponentLogger("executor"),
	}
}

// Execute runs the plan. In dry-run mode every read and diff still
// happens, but no install is invoked, no file is written, and no
// backup or run record is persisted; the returned record describes
// what would happen. In commit mode the run record is appended to the
// state store before returning.
func (e *Executor) Execute(ctx context.Context, plan *Plan, command string, dryRun bool) (*RunRecord, error) {
	if plan == nil {
		return nil, NewInternalError("plan is nil", nil).WithCode(ErrCodeValidation)
	}

	started := time.Now().UTC()
	rec := &RunRecord{
		RunID:        uuid.New().String(),
		Command:      command,
		TimestampUTC: started,
		DryRun:       dryRun,
		Steps:        make([]StepResult, 0, len(plan.Steps)),
	}
	log := e.log.WithRunID(rec.RunID)

	backupDir := filepath.Join(e.backupRoot, started.Format(backupDirFormat))
	failed := 0

	for _, step := range plan.Steps {
		var result StepResult
		switch step.Kind {
		case StepInstall:
			result = e.runInstall(ctx, step, dryRun, log)
		case StepRestore:
			result = e.runRestore(step, dryRun, backupDir, log)
		default:
			result = StepResult{
				StepID: step.ID,
				Kind:   step.Kind,
				Status: StepStatusFailed,
				Error:  "unknown step kind",
			}
		}
		if result.Status == StepStatusFailed {
			failed++
		}
		if result.BackupPath != "" {
			rec.BackupDir = backupDir
		}
		rec.Steps = append(rec.Steps, result)
	}

	switch {
	case failed == 0:
		rec.Outcome = OutcomeSuccess
	case failed == len(plan.Steps):
		rec.Outcome = OutcomeFailed
	default:
		rec.Outcome = OutcomePartial
	}

	if !dryRun {
		if err := e.store.AppendRun(ctx, rec); err != nil {
			return rec, err
		}
	}

	log.Infof("run complete: outcome=%s steps=%d failed=%d dry_run=%v",
		rec.Outcome, len(rec.Steps), failed, dryRun)
	return rec, nil
}

// runInstall executes one install step through the install capability.
// A failed install is recorded, never returned: the step result is the
// failure channel, and later restore steps are not gated on it.
func (e *Executor) runInstall(ctx context.Context, step Step, dryRun bool, log *telemetry.Logger) StepResult {
	result := StepResult{
		StepID:  step.ID,
		Kind:    StepInstall,
		Package: step.Package,
	}

	if dryRun {
		result.Status = StepStatusPlanned
		return result
	}

	ensured, err := e.installer.Ensure(ctx, step.Package)
	if err != nil {
		result.Status = StepStatusFailed
		result.Error = err.Error()
		log.WithStepID(step.ID).WithError(err).Error("install capability unusable")
		return result
	}
	if ensured.Status == EnsureFailed {
		result.Status = StepStatusFailed
		result.Error = ensured.Reason
		log.WithStepID(step.ID).Errorf("install failed: %s: %s", step.Package, ensured.Reason)
		return result
	}

	result.Status = StepStatusSucceeded
	log.WithStepID(step.ID).Debugf("package ensured: %s (%s)", step.Package, ensured.Status)
	return result
}

// runRestore executes one restore step: back up the current target
// when required, apply the merge strategy, and write the result.
func (e *Executor) runRestore(step Step, dryRun bool, backupDir string, log *telemetry.Logger) StepResult {
	result := StepResult{
		StepID: step.ID,
		Kind:   StepRestore,
		Module: step.Module,
		Target: step.Target,
	}
	slog := log.WithStepID(step.ID)

	source := step.Content
	if source == nil {
		data, err := afero.ReadFile(e.fsys, step.Source)
		if err != nil {
			result.Status = StepStatusFailed
			result.Error = "payload unreadable: " + err.Error()
			slog.WithError(err).Error("restore payload unreadable")
			return result
		}
		source = data
	}

	existing, err := afero.ReadFile(e.fsys, step.Target)
	targetExists := err == nil
	result.Created = !targetExists

	var current []byte
	if targetExists {
		current = existing
	}

	merged, err := merge.Apply(step.Strategy, current, source)
	if err != nil {
		result.Status = StepStatusFailed
		result.Error = "merge failed: " + err.Error()
		slog.WithError(err).Error("restore merge failed")
		return result
	}

	if dryRun {
		result.Status = StepStatusPlanned
		return result
	}

	// The backup entry must exist before the write becomes visible.
	// Newly-created targets get no entry; there is nothing to preserve.
	if targetExists && step.BackupRequired {
		backupPath := filepath.Join(backupDir, step.ID)
		if err := e.fsys.MkdirAll(backupDir, 0o755); err != nil {
			result.Status = StepStatusFailed
			result.Error = "backup dir: " + err.Error()
			return result
		}
		if err := afero.WriteFile(e.fsys, backupPath, current, 0o600); err != nil {
			result.Status = StepStatusFailed
			result.Error = "backup write: " + err.Error()
			slog.WithError(err).Error("backup write failed, target untouched")
			return result
		}
		result.BackupPath = backupPath
		result.BackupHash = HashBytes(current)
	}

	if err := e.fsys.MkdirAll(filepath.Dir(step.Target), 0o755); err != nil {
		result.Status = StepStatusFailed
		result.Error = "target dir: " + err.Error()
		return result
	}
	if err := afero.WriteFile(e.fsys, step.Target, merged, 0o644); err != nil {
		result.Status = StepStatusFailed
		result.Error = "target write: " + err.Error()
		slog.WithError(err).Error("restore write failed")
		return result
	}

	result.Status = StepStatusSucceeded
	slog.Debugf("restored %s (%s)", step.Target, step.Strategy)
	return result
}
