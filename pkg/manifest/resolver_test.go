package manifest

import (
	"testing"

	"github.com/spf13/afero"

	"github.com/restorix/restorix/pkg/catalog"
	"github.com/restorix/restorix/pkg/engine"
	"github.com/restorix/restorix/pkg/merge"
	"github.com/restorix/restorix/pkg/paths"
)

const testCatalog = `
modules:
  - id: git
    displayName: Git
    matches:
      packages: ["git"]
    restore:
      - action: merge-ini
        source: gitconfig
        target: "~/.gitconfig"
    verify:
      - kind: file-exists
        path: "~/.gitconfig"
  - id: vim
    displayName: Vim
    matches:
      packages: ["vim"]
    restore:
      - action: copy
        source: vimrc
        target: "~/.vimrc"
  - id: zsh
    displayName: Zsh
    matches:
      packages: ["zsh"]
    restore:
      - action: append
        content: "alias ll='ls -la'\n"
        target: "~/.zshrc"
bundles:
  - id: dev-core
    modules: [git, vim]
`

func newTestResolver(t *testing.T, fsys afero.Fs) *Resolver {
	t.Helper()
	if err := afero.WriteFile(fsys, "/catalog.yaml", []byte(testCatalog), 0o644); err != nil {
		t.Fatal(err)
	}
	cat, err := catalog.Load(fsys, "/catalog.yaml")
	if err != nil {
		t.Fatal(err)
	}
	return NewResolver(fsys, cat, &paths.Context{Home: "/home/u", WorkDir: "/work"})
}

func writeManifest(t *testing.T, fsys afero.Fs, path, content string) {
	t.Helper()
	if err := afero.WriteFile(fsys, path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestResolveBundleExpansion(t *testing.T) {
	fsys := afero.NewMemMapFs()
	r := newTestResolver(t, fsys)
	writeManifest(t, fsys, "/profile/manifest.yaml", `
schemaVersion: 1
packages: [git, vim]
bundles: [dev-core]
`)

	graph, err := r.Resolve("/profile/manifest.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(graph.Installs) != 2 {
		t.Fatalf("expected 2 installs, got %d", len(graph.Installs))
	}
	if len(graph.Restores) != 2 {
		t.Fatalf("expected 2 restores, got %d", len(graph.Restores))
	}

	git := graph.Restores[0]
	if git.Module != "git" || git.Target != "/home/u/.gitconfig" || git.Strategy != merge.StrategyINI {
		t.Errorf("unexpected git restore: %+v", git)
	}
	if git.Source != "/profile/configs/git/gitconfig" {
		t.Errorf("payload not anchored at the profile root: %s", git.Source)
	}
	if git.Provenance.Bundle != "dev-core" {
		t.Errorf("bundle provenance not recorded: %+v", git.Provenance)
	}
	if len(graph.Verifies) != 1 || graph.Verifies[0].Path != "/home/u/.gitconfig" {
		t.Errorf("unexpected verifies: %+v", graph.Verifies)
	}
}

func TestResolveInlineContent(t *testing.T) {
	fsys := afero.NewMemMapFs()
	r := newTestResolver(t, fsys)
	writeManifest(t, fsys, "/profile/manifest.yaml", `
schemaVersion: 1
modules: [zsh]
restore:
  - action: append
    content: "export EDITOR=vim\n"
    target: "~/.zshrc"
`)

	graph, err := r.Resolve("/profile/manifest.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Both append intents survive: each appended block is independent.
	if len(graph.Restores) != 2 {
		t.Fatalf("expected 2 restores, got %d: %+v", len(graph.Restores), graph.Restores)
	}
	if string(graph.Restores[0].Content) != "alias ll='ls -la'\n" {
		t.Errorf("module content lost: %q", graph.Restores[0].Content)
	}
	if string(graph.Restores[1].Content) != "export EDITOR=vim\n" {
		t.Errorf("inline content lost: %q", graph.Restores[1].Content)
	}
}

func TestResolveDedupeInstalls(t *testing.T) {
	fsys := afero.NewMemMapFs()
	r := newTestResolver(t, fsys)
	writeManifest(t, fsys, "/profile/manifest.yaml", `
schemaVersion: 1
packages: [git, vim, git]
`)

	graph, err := r.Resolve("/profile/manifest.yaml")
	if err != nil {
		t.Fatal(err)
	}

	if len(graph.Installs) != 2 {
		t.Fatalf("expected duplicates to collapse, got %d", len(graph.Installs))
	}
	if graph.Installs[0].Package != "git" || graph.Installs[1].Package != "vim" {
		t.Errorf("first position not kept: %+v", graph.Installs)
	}
}

// A later restore declaration for the same target and strategy
// replaces the earlier one in place.
func TestResolveDedupeRestoresLaterWins(t *testing.T) {
	fsys := afero.NewMemMapFs()
	r := newTestResolver(t, fsys)
	writeManifest(t, fsys, "/profile/manifest.yaml", `
schemaVersion: 1
modules: [vim]
restore:
  - action: copy
    content: "set relativenumber\n"
    target: "~/.vimrc"
`)

	graph, err := r.Resolve("/profile/manifest.yaml")
	if err != nil {
		t.Fatal(err)
	}

	if len(graph.Restores) != 1 {
		t.Fatalf("expected the pair to collapse, got %d: %+v", len(graph.Restores), graph.Restores)
	}
	got := graph.Restores[0]
	if string(got.Content) != "set relativenumber\n" {
		t.Errorf("later declaration did not win: %+v", got)
	}
}

func TestResolveIncludes(t *testing.T) {
	fsys := afero.NewMemMapFs()
	r := newTestResolver(t, fsys)
	writeManifest(t, fsys, "/profile/base.yaml", `
schemaVersion: 1
packages: [git]
`)
	writeManifest(t, fsys, "/profile/manifest.yaml", `
schemaVersion: 1
includes: [base.yaml]
packages: [vim]
`)

	graph, err := r.Resolve("/profile/manifest.yaml")
	if err != nil {
		t.Fatal(err)
	}

	// Included documents resolve before the including document's own
	// entries.
	if len(graph.Installs) != 2 || graph.Installs[0].Package != "git" || graph.Installs[1].Package != "vim" {
		t.Errorf("unexpected install order: %+v", graph.Installs)
	}
}

func TestResolveIncludeCycle(t *testing.T) {
	fsys := afero.NewMemMapFs()
	r := newTestResolver(t, fsys)
	writeManifest(t, fsys, "/profile/a.yaml", `
schemaVersion: 1
includes: [b.yaml]
`)
	writeManifest(t, fsys, "/profile/b.yaml", `
schemaVersion: 1
includes: [a.yaml]
`)

	_, err := r.Resolve("/profile/a.yaml")
	if err == nil {
		t.Fatal("expected cycle error")
	}
	if engine.CodeOf(err) != engine.ErrCodeCircularInclude {
		t.Errorf("expected %s, got %v", engine.ErrCodeCircularInclude, err)
	}
}

// The same document included by two siblings is not a cycle.
func TestResolveDiamondInclude(t *testing.T) {
	fsys := afero.NewMemMapFs()
	r := newTestResolver(t, fsys)
	writeManifest(t, fsys, "/profile/shared.yaml", `
schemaVersion: 1
packages: [git]
`)
	writeManifest(t, fsys, "/profile/left.yaml", `
schemaVersion: 1
includes: [shared.yaml]
`)
	writeManifest(t, fsys, "/profile/right.yaml", `
schemaVersion: 1
includes: [shared.yaml]
`)
	writeManifest(t, fsys, "/profile/manifest.yaml", `
schemaVersion: 1
includes: [left.yaml, right.yaml]
`)

	graph, err := r.Resolve("/profile/manifest.yaml")
	if err != nil {
		t.Fatalf("diamond include must resolve: %v", err)
	}
	if len(graph.Installs) != 1 {
		t.Errorf("expected the duplicate install to collapse, got %+v", graph.Installs)
	}
}

func TestResolveUnknownModule(t *testing.T) {
	fsys := afero.NewMemMapFs()
	r := newTestResolver(t, fsys)
	writeManifest(t, fsys, "/profile/manifest.yaml", `
schemaVersion: 1
modules: [emacs]
`)

	_, err := r.Resolve("/profile/manifest.yaml")
	if err == nil {
		t.Fatal("expected error for unknown module")
	}
	if engine.CodeOf(err) != engine.ErrCodeModuleNotFound {
		t.Errorf("expected %s, got %v", engine.ErrCodeModuleNotFound, err)
	}
}

func TestResolveUnknownBundle(t *testing.T) {
	fsys := afero.NewMemMapFs()
	r := newTestResolver(t, fsys)
	writeManifest(t, fsys, "/profile/manifest.yaml", `
schemaVersion: 1
bundles: [nonexistent]
`)

	if _, err := r.Resolve("/profile/manifest.yaml"); err == nil {
		t.Fatal("expected error for unknown bundle")
	}
}

func TestLoadSchemaVersionTooNew(t *testing.T) {
	fsys := afero.NewMemMapFs()
	r := newTestResolver(t, fsys)
	writeManifest(t, fsys, "/profile/manifest.yaml", `
schemaVersion: 99
packages: [git]
`)

	_, err := r.Load("/profile/manifest.yaml")
	if err == nil {
		t.Fatal("expected error for newer schema version")
	}
	if engine.CodeOf(err) != engine.ErrCodeSchemaVersionMismatch {
		t.Errorf("expected %s, got %v", engine.ErrCodeSchemaVersionMismatch, err)
	}
}

func TestLoadUnknownField(t *testing.T) {
	fsys := afero.NewMemMapFs()
	r := newTestResolver(t, fsys)
	writeManifest(t, fsys, "/profile/manifest.yaml", `
schemaVersion: 1
typo: [git]
`)

	if _, err := r.Load("/profile/manifest.yaml"); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestLoadInlineRestoreInvalid(t *testing.T) {
	fsys := afero.NewMemMapFs()
	r := newTestResolver(t, fsys)
	writeManifest(t, fsys, "/profile/manifest.yaml", `
schemaVersion: 1
restore:
  - action: copy
    target: "~/.vimrc"
`)

	if _, err := r.Load("/profile/manifest.yaml"); err == nil {
		t.Fatal("expected error for inline restore without payload")
	}
}
