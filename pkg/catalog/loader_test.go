package catalog

import (
	"testing"

	"github.com/spf13/afero"

	"github.com/restorix/restorix/pkg/engine"
)

const gitModule = `
modules:
  - id: git
    displayName: Git
    sensitivity: medium
    matches:
      packages: ["git"]
    capture:
      files: [".gitconfig"]
      sensitiveFiles: [".git-credentials"]
    restore:
      - action: merge-ini
        source: gitconfig
        target: "~/.gitconfig"
    verify:
      - kind: file-exists
        path: "~/.gitconfig"
`

func writeCatalog(t *testing.T, fsys afero.Fs, path, content string) {
	t.Helper()
	if err := afero.WriteFile(fsys, path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadSingleFile(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeCatalog(t, fsys, "/catalog.yaml", gitModule)

	c, err := Load(fsys, "/catalog.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m, ok := c.Module("git")
	if !ok {
		t.Fatal("expected git module")
	}
	if m.DisplayName != "Git" || m.Sensitivity != SensitivityMedium {
		t.Errorf("unexpected module fields: %+v", m)
	}
	if len(m.Restore) != 1 || m.Restore[0].Target != "~/.gitconfig" {
		t.Errorf("unexpected restore ops: %+v", m.Restore)
	}
}

func TestLoadDirectoryMergesLexically(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeCatalog(t, fsys, "/catalog/10-git.yaml", gitModule)
	writeCatalog(t, fsys, "/catalog/20-vim.yaml", `
modules:
  - id: vim
    displayName: Vim
    matches:
      packages: ["vim", "neovim"]
`)
	writeCatalog(t, fsys, "/catalog/30-bundles.yaml", `
bundles:
  - id: dev-core
    modules: [git, vim]
`)
	writeCatalog(t, fsys, "/catalog/README.md", "not yaml")

	c, err := Load(fsys, "/catalog")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	modules := c.Modules()
	if len(modules) != 2 || modules[0].ID != "git" || modules[1].ID != "vim" {
		t.Errorf("unexpected module order: %+v", modules)
	}
	if _, ok := c.Bundle("dev-core"); !ok {
		t.Error("expected dev-core bundle")
	}
}

func TestLoadUnknownField(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeCatalog(t, fsys, "/catalog.yaml", `
modules:
  - id: git
    displayName: Git
    typo: true
    matches:
      packages: ["git"]
`)

	_, err := Load(fsys, "/catalog.yaml")
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
	if engine.CodeOf(err) != engine.ErrCodeManifestParse {
		t.Errorf("expected %s, got %v", engine.ErrCodeManifestParse, err)
	}
}

func TestLoadMissingRequiredField(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeCatalog(t, fsys, "/catalog.yaml", `
modules:
  - id: git
    displayName: Git
    matches:
      packages: []
`)

	if _, err := Load(fsys, "/catalog.yaml"); err == nil {
		t.Fatal("expected validation error for empty match patterns")
	}
}

func TestLoadDuplicateModule(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeCatalog(t, fsys, "/catalog.yaml", gitModule+`
  - id: git
    displayName: Git again
    matches:
      packages: ["git"]
`)

	if _, err := Load(fsys, "/catalog.yaml"); err == nil {
		t.Fatal("expected error for duplicate module id")
	}
}

func TestLoadBundleUnknownMember(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeCatalog(t, fsys, "/catalog.yaml", gitModule+`
bundles:
  - id: dev
    modules: [git, nonexistent]
`)

	_, err := Load(fsys, "/catalog.yaml")
	if err == nil {
		t.Fatal("expected error for unknown bundle member")
	}
	if engine.CodeOf(err) != engine.ErrCodeModuleNotFound {
		t.Errorf("expected %s, got %v", engine.ErrCodeModuleNotFound, err)
	}
}

func TestLoadInvalidRestoreAction(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeCatalog(t, fsys, "/catalog.yaml", `
modules:
  - id: git
    displayName: Git
    matches:
      packages: ["git"]
    restore:
      - action: symlink
        source: gitconfig
        target: "~/.gitconfig"
`)

	if _, err := Load(fsys, "/catalog.yaml"); err == nil {
		t.Fatal("expected error for unknown restore action")
	}
}

func TestLoadRestoreWithoutPayload(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeCatalog(t, fsys, "/catalog.yaml", `
modules:
  - id: git
    displayName: Git
    matches:
      packages: ["git"]
    restore:
      - action: copy
        target: "~/.gitconfig"
`)

	if _, err := Load(fsys, "/catalog.yaml"); err == nil {
		t.Fatal("expected error for restore op without source or content")
	}
}

func TestLoadMissingCatalog(t *testing.T) {
	if _, err := Load(afero.NewMemMapFs(), "/nope"); err == nil {
		t.Fatal("expected error for missing catalog")
	}
}

func TestMatchesPackage(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeCatalog(t, fsys, "/catalog.yaml", `
modules:
  - id: python
    displayName: Python
    matches:
      packages: ["python@*", "pyenv"]
`)

	c, err := Load(fsys, "/catalog.yaml")
	if err != nil {
		t.Fatal(err)
	}
	m, _ := c.Module("python")

	cases := map[string]bool{
		"python@3.12": true,
		"pyenv":       true,
		"ruby":        false,
	}
	for pkg, want := range cases {
		if got := m.MatchesPackage(pkg); got != want {
			t.Errorf("MatchesPackage(%q) = %v, want %v", pkg, got, want)
		}
	}
}

func TestMatchInstalled(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeCatalog(t, fsys, "/catalog.yaml", gitModule+`
  - id: vim
    displayName: Vim
    matches:
      packages: ["vim"]
`)

	c, err := Load(fsys, "/catalog.yaml")
	if err != nil {
		t.Fatal(err)
	}

	matched := c.MatchInstalled([]string{"vim", "ripgrep"})
	if len(matched) != 1 || matched[0].ID != "vim" {
		t.Errorf("unexpected matches: %+v", matched)
	}
}

func TestSensitiveAndExcluded(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeCatalog(t, fsys, "/catalog.yaml", `
modules:
  - id: ssh
    displayName: SSH
    sensitivity: high
    matches:
      packages: ["openssh"]
    capture:
      files: [".ssh/config"]
      excludeGlobs: [".ssh/known_hosts*"]
      sensitiveFiles: [".ssh/id_*", ".ssh/*.pem"]
`)

	c, err := Load(fsys, "/catalog.yaml")
	if err != nil {
		t.Fatal(err)
	}
	m, _ := c.Module("ssh")

	if !m.Sensitive(".ssh/id_ed25519") || !m.Sensitive(".ssh/server.pem") {
		t.Error("private key paths must be sensitive")
	}
	if m.Sensitive(".ssh/config") {
		t.Error("the ssh config itself is not sensitive")
	}
	if !m.Excluded(".ssh/known_hosts") || !m.Excluded(".ssh/known_hosts.old") {
		t.Error("known_hosts must be excluded")
	}
	if m.Excluded(".ssh/config") {
		t.Error("config must not be excluded")
	}
}
