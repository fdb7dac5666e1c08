package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/restorix/restorix/pkg/merge"
)

// Planner computes plans by diffing a desired-state graph against an
// observed snapshot. The planner never writes: it queries the install
// capability and reads files, nothing else.
type Planner struct {
	fsys      afero.Fs
	installer Installer
}

// NewPlanner creates a planner over the given filesystem and install
// capability.
func NewPlanner(fsys afero.Fs, installer Installer) *Planner {
	return &Planner{fsys: fsys, installer: installer}
}

// Observe takes a point-in-time snapshot of the machine: the installed
// package set from the install capability, plus a content fingerprint
// of every file the graph tracks.
func (p *Planner) Observe(ctx context.Context, graph *Graph) (*Snapshot, error) {
	packages, err := p.installer.Query(ctx)
	if err != nil {
		return nil, NewInternalError("install capability query failed", err)
	}

	snap := &Snapshot{
		SchemaVersion: SnapshotSchemaVersion,
		TakenAt:       time.Now().UTC(),
		Packages:      packages,
		Files:         make(map[string]string),
	}

	for _, intent := range graph.Restores {
		if _, ok := snap.Files[intent.Target]; ok {
			continue
		}
		hash, err := HashFile(p.fsys, intent.Target)
		if err != nil {
			// Missing targets are simply untracked; the differ treats
			// absence as drift.
			continue
		}
		snap.Files[intent.Target] = hash
	}

	return snap, nil
}

// Plan diffs the desired graph against the observed snapshot and
// returns the ordered plan. All install steps precede all restore
// steps; within each group, desired-graph order is preserved. An
// empty plan means the machine is already converged.
func (p *Planner) Plan(ctx context.Context, graph *Graph, observed *Snapshot) (*Plan, error) {
	if graph == nil {
		return nil, NewInternalError("desired-state graph is nil", nil).WithCode(ErrCodeValidation)
	}
	if observed == nil {
		observed = &Snapshot{SchemaVersion: SnapshotSchemaVersion}
	}

	plan := &Plan{
		ID:        uuid.New().String(),
		CreatedAt: time.Now().UTC(),
		Steps:     make([]Step, 0, len(graph.Installs)+len(graph.Restores)),
	}

	for _, intent := range graph.Installs {
		if observed.HasPackage(intent.Package) {
			plan.Summary.Converged++
			continue
		}
		plan.Steps = append(plan.Steps, Step{
			ID:         uuid.New().String(),
			Kind:       StepInstall,
			Package:    intent.Package,
			Reason:     "package absent",
			Provenance: intent.Provenance,
		})
		plan.Summary.Installs++
	}

	for _, intent := range graph.Restores {
		step, changed, err := p.diffRestore(intent)
		if err != nil {
			return nil, err
		}
		if !changed {
			plan.Summary.Converged++
			continue
		}
		plan.Steps = append(plan.Steps, *step)
		plan.Summary.Restores++
	}

	return plan, nil
}

// diffRestore computes whether one restore intent needs a step. The
// merge strategy runs in a dry pass against the current target bytes;
// a step is emitted only when the post-merge content would differ.
func (p *Planner) diffRestore(intent RestoreIntent) (*Step, bool, error) {
	source, err := p.sourceBytes(intent)
	if err != nil {
		return nil, false, err
	}

	existing, err := afero.ReadFile(p.fsys, intent.Target)
	targetExists := err == nil

	var current []byte
	if targetExists {
		current = existing
	}

	desired, err := merge.Apply(intent.Strategy, current, source)
	if err != nil {
		return nil, false, NewApplyError("merge dry pass failed", err).
			WithCode(ErrCodeRestoreFailed).WithModule(intent.Module).WithPath(intent.Target)
	}

	if targetExists && HashBytes(current) == HashBytes(desired) {
		return nil, false, nil
	}

	reason := "content drift"
	if !targetExists {
		reason = "target missing"
	}

	return &Step{
		ID:             uuid.New().String(),
		Kind:           StepRestore,
		Module:         intent.Module,
		Source:         intent.Source,
		Content:        intent.Content,
		Target:         intent.Target,
		Strategy:       intent.Strategy,
		BackupRequired: targetExists,
		Reason:         reason,
		Provenance:     intent.Provenance,
	}, true, nil
}

// sourceBytes resolves the payload for a restore intent.
func (p *Planner) sourceBytes(intent RestoreIntent) ([]byte, error) {
	if intent.Content != nil {
		return intent.Content, nil
	}
	data, err := afero.ReadFile(p.fsys, intent.Source)
	if err != nil {
		return nil, NewInputError(
			fmt.Sprintf("restore payload %s is unreadable", intent.Source), err).
			WithCode(ErrCodeValidation).WithModule(intent.Module).WithPath(intent.Source)
	}
	return data, nil
}
