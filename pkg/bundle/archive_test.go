package bundle

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"io"
	"testing"

	"github.com/spf13/afero"
)

func stageTree(t *testing.T, fsys afero.Fs, files map[string]string) {
	t.Helper()
	for path, content := range files {
		if err := afero.WriteFile(fsys, path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestWriteArchiveRoundTrip(t *testing.T) {
	fsys := afero.NewMemMapFs()
	stageTree(t, fsys, map[string]string{
		"/staging/manifest.yaml":           "schemaVersion: 1\n",
		"/staging/metadata.json":           "{}\n",
		"/staging/configs/git/gitconfig":   "[user]\nname = u\n",
		"/staging/configs/vim/vimrc":       "set number\n",
		"/staging/configs/vim/colors/zenb": "dark\n",
	})

	if err := WriteArchive(fsys, "/staging", "/out/profile.tar.gz"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if exists, _ := afero.Exists(fsys, "/out/profile.tar.gz.tmp"); exists {
		t.Error("temporary artifact left behind")
	}

	if err := Extract(fsys, "/out/profile.tar.gz", "/restored"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := afero.ReadFile(fsys, "/restored/configs/git/gitconfig")
	if err != nil {
		t.Fatalf("extracted payload missing: %v", err)
	}
	if string(got) != "[user]\nname = u\n" {
		t.Errorf("payload bytes changed in transit: %q", got)
	}
	if ok, _ := afero.Exists(fsys, "/restored/configs/vim/colors/zenb"); !ok {
		t.Error("nested payload missing after extraction")
	}
}

// Entry order is the lexical walk order of the staging tree, so two
// captures of identical trees produce identically-ordered archives.
func TestWriteArchiveDeterministicOrder(t *testing.T) {
	fsys := afero.NewMemMapFs()
	stageTree(t, fsys, map[string]string{
		"/staging/manifest.yaml":         "x",
		"/staging/configs/git/gitconfig": "x",
		"/staging/configs/vim/vimrc":     "x",
	})

	if err := WriteArchive(fsys, "/staging", "/out/a.tar.gz"); err != nil {
		t.Fatal(err)
	}

	data, err := afero.ReadFile(fsys, "/out/a.tar.gz")
	if err != nil {
		t.Fatal(err)
	}
	gr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	tr := tar.NewReader(gr)

	var names []string
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		names = append(names, hdr.Name)
	}

	want := []string{"configs/git/gitconfig", "configs/vim/vimrc", "manifest.yaml"}
	if len(names) != len(want) {
		t.Fatalf("unexpected entries: %v", names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("entry %d = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestExtractRejectsEscapingEntries(t *testing.T) {
	fsys := afero.NewMemMapFs()

	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gw)
	if err := tw.WriteHeader(&tar.Header{Name: "../evil", Mode: 0o644, Size: 4}); err != nil {
		t.Fatal(err)
	}
	if _, err := tw.Write([]byte("oops")); err != nil {
		t.Fatal(err)
	}
	tw.Close()
	gw.Close()
	if err := afero.WriteFile(fsys, "/evil.tar.gz", buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := Extract(fsys, "/evil.tar.gz", "/dest"); err == nil {
		t.Fatal("expected traversal entry to be rejected")
	}
}

func TestIsArchive(t *testing.T) {
	fsys := afero.NewMemMapFs()
	stageTree(t, fsys, map[string]string{"/staging/manifest.yaml": "schemaVersion: 1\n"})
	if err := WriteArchive(fsys, "/staging", "/p.tar.gz"); err != nil {
		t.Fatal(err)
	}
	if err := afero.WriteFile(fsys, "/plain.yaml", []byte("schemaVersion: 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if !IsArchive(fsys, "/p.tar.gz") {
		t.Error("expected gzip artifact to be recognized")
	}
	if IsArchive(fsys, "/plain.yaml") {
		t.Error("plain yaml is not an archive")
	}
	if IsArchive(fsys, "/missing") {
		t.Error("missing files are not archives")
	}
}
