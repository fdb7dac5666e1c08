package engine

import (
	"context"
	"testing"

	"github.com/spf13/afero"

	"github.com/restorix/restorix/pkg/merge"
)

func TestObserve(t *testing.T) {
	fsys := afero.NewMemMapFs()
	if err := afero.WriteFile(fsys, "/home/u/.gitconfig", []byte("[user]\nname = u\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	graph := &Graph{
		Restores: []RestoreIntent{
			{Module: "git", Target: "/home/u/.gitconfig", Strategy: merge.StrategyINI},
			{Module: "vim", Target: "/home/u/.vimrc", Strategy: merge.StrategyCopy},
		},
	}

	planner := NewPlanner(fsys, newFakeInstaller("git", "vim"))
	snap, err := planner.Observe(context.Background(), graph)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if snap.SchemaVersion != SnapshotSchemaVersion {
		t.Errorf("expected schema version %d, got %d", SnapshotSchemaVersion, snap.SchemaVersion)
	}
	if !snap.HasPackage("git") || !snap.HasPackage("vim") {
		t.Errorf("expected installed packages in snapshot, got %v", snap.Packages)
	}
	if _, ok := snap.Files["/home/u/.gitconfig"]; !ok {
		t.Error("expected a fingerprint for the existing target")
	}
	if _, ok := snap.Files["/home/u/.vimrc"]; ok {
		t.Error("missing targets must stay untracked")
	}
}

func TestObserveQueryError(t *testing.T) {
	inst := newFakeInstaller()
	inst.queryErr = errCapabilityDown

	planner := NewPlanner(afero.NewMemMapFs(), inst)
	if _, err := planner.Observe(context.Background(), &Graph{}); err == nil {
		t.Fatal("expected error when the install capability is unusable")
	}
}

func TestPlanInstallsBeforeRestores(t *testing.T) {
	fsys := afero.NewMemMapFs()
	if err := afero.WriteFile(fsys, "/profile/configs/vim/vimrc", []byte("set number\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	graph := &Graph{
		Installs: []InstallIntent{{Package: "ripgrep"}, {Package: "vim"}},
		Restores: []RestoreIntent{
			{Module: "vim", Source: "/profile/configs/vim/vimrc", Target: "/home/u/.vimrc", Strategy: merge.StrategyCopy},
		},
	}

	planner := NewPlanner(fsys, newFakeInstaller())
	plan, err := planner.Plan(context.Background(), graph, &Snapshot{SchemaVersion: SnapshotSchemaVersion})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(plan.Steps) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(plan.Steps))
	}
	if plan.Steps[0].Kind != StepInstall || plan.Steps[1].Kind != StepInstall {
		t.Error("install steps must precede restore steps")
	}
	if plan.Steps[0].Package != "ripgrep" || plan.Steps[1].Package != "vim" {
		t.Errorf("install order not preserved: %s, %s", plan.Steps[0].Package, plan.Steps[1].Package)
	}
	if plan.Steps[2].Kind != StepRestore || plan.Steps[2].Reason != "target missing" {
		t.Errorf("unexpected restore step: %+v", plan.Steps[2])
	}
	if plan.Steps[2].BackupRequired {
		t.Error("a missing target needs no backup")
	}
	if plan.Summary.Installs != 2 || plan.Summary.Restores != 1 {
		t.Errorf("unexpected summary: %+v", plan.Summary)
	}
}

func TestPlanConverged(t *testing.T) {
	fsys := afero.NewMemMapFs()
	content := []byte("set number\n")
	if err := afero.WriteFile(fsys, "/profile/configs/vim/vimrc", content, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := afero.WriteFile(fsys, "/home/u/.vimrc", content, 0o644); err != nil {
		t.Fatal(err)
	}

	graph := &Graph{
		Installs: []InstallIntent{{Package: "vim"}},
		Restores: []RestoreIntent{
			{Module: "vim", Source: "/profile/configs/vim/vimrc", Target: "/home/u/.vimrc", Strategy: merge.StrategyCopy},
		},
	}

	planner := NewPlanner(fsys, newFakeInstaller("vim"))
	snap, err := planner.Observe(context.Background(), graph)
	if err != nil {
		t.Fatal(err)
	}
	plan, err := planner.Plan(context.Background(), graph, snap)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !plan.Empty() {
		t.Errorf("expected an empty plan, got %d steps", len(plan.Steps))
	}
	if plan.Summary.Converged != 2 {
		t.Errorf("expected 2 converged intents, got %d", plan.Summary.Converged)
	}
}

func TestPlanContentDrift(t *testing.T) {
	fsys := afero.NewMemMapFs()
	if err := afero.WriteFile(fsys, "/profile/configs/vim/vimrc", []byte("set number\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := afero.WriteFile(fsys, "/home/u/.vimrc", []byte("set nonumber\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	graph := &Graph{
		Restores: []RestoreIntent{
			{Module: "vim", Source: "/profile/configs/vim/vimrc", Target: "/home/u/.vimrc", Strategy: merge.StrategyCopy},
		},
	}

	planner := NewPlanner(fsys, newFakeInstaller())
	plan, err := planner.Plan(context.Background(), graph, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(plan.Steps) != 1 {
		t.Fatalf("expected 1 step, got %d", len(plan.Steps))
	}
	step := plan.Steps[0]
	if step.Reason != "content drift" {
		t.Errorf("expected content drift, got %q", step.Reason)
	}
	if !step.BackupRequired {
		t.Error("an existing target must be backed up before overwrite")
	}
}

// A merge-strategy diff that would be a no-op must not produce a step
// even when the target and source bytes differ.
func TestPlanMergeAlreadyApplied(t *testing.T) {
	fsys := afero.NewMemMapFs()
	if err := afero.WriteFile(fsys, "/home/u/.zshrc", []byte("export A=1\nalias ll='ls -la'\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	graph := &Graph{
		Restores: []RestoreIntent{
			{Module: "zsh", Content: []byte("alias ll='ls -la'\n"), Target: "/home/u/.zshrc", Strategy: merge.StrategyAppend},
		},
	}

	planner := NewPlanner(fsys, newFakeInstaller())
	plan, err := planner.Plan(context.Background(), graph, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !plan.Empty() {
		t.Errorf("block is already present, expected no step: %+v", plan.Steps)
	}
}

func TestPlanUnreadablePayload(t *testing.T) {
	graph := &Graph{
		Restores: []RestoreIntent{
			{Module: "vim", Source: "/profile/configs/vim/missing", Target: "/home/u/.vimrc", Strategy: merge.StrategyCopy},
		},
	}

	planner := NewPlanner(afero.NewMemMapFs(), newFakeInstaller())
	_, err := planner.Plan(context.Background(), graph, nil)
	if err == nil {
		t.Fatal("expected error for unreadable payload")
	}
	if !IsInput(err) {
		t.Errorf("expected an input error, got %v", err)
	}
}

func TestPlanNilGraph(t *testing.T) {
	planner := NewPlanner(afero.NewMemMapFs(), newFakeInstaller())
	if _, err := planner.Plan(context.Background(), nil, nil); err == nil {
		t.Fatal("expected error for nil graph")
	}
}
