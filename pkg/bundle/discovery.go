package bundle

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/restorix/restorix/pkg/engine"
)

// Profile is a resolved bundle or manifest location ready for the
// resolver and executor.
type Profile struct {
	// Root is the profile root directory: the directory holding the
	// manifest and any configs/ payload tree.
	Root string

	// ManifestPath is the desired-state document inside Root.
	ManifestPath string

	// Extracted is true when the profile was unpacked from an archive
	// into a temporary directory the caller should clean up.
	Extracted bool
}

// Discover resolves a profile name by trying candidate forms in fixed
// order: the name itself as an archive, a packed sibling named
// <name>.tar.gz, a loose directory containing an app manifest, and
// finally a bare manifest file. Archives outrank directories, so a
// packed profile wins over a stale unpacked copy of the same name.
func Discover(fsys afero.Fs, name string) (*Profile, error) {
	info, err := fsys.Stat(name)
	if err != nil {
		return nil, engine.NewInputError(
			fmt.Sprintf("profile %q not found", name), err).
			WithCode(engine.ErrCodeProfileNotFound).WithPath(name)
	}

	if !info.IsDir() && IsArchive(fsys, name) {
		return extractArchive(fsys, name)
	}

	if packed := name + ArchiveExt; IsArchive(fsys, packed) {
		return extractArchive(fsys, packed)
	}

	if info.IsDir() {
		manifest := filepath.Join(name, ManifestName)
		if ok, _ := afero.Exists(fsys, manifest); ok {
			return &Profile{Root: name, ManifestPath: manifest}, nil
		}
		return nil, engine.NewInputError(
			fmt.Sprintf("directory %q has no %s", name, ManifestName), nil).
			WithCode(engine.ErrCodeProfileNotFound).WithPath(name)
	}

	// A plain file that is not an archive is a bare manifest.
	return &Profile{Root: filepath.Dir(name), ManifestPath: name}, nil
}

// extractArchive unpacks a profile archive into a temporary directory
// and locates its app manifest.
func extractArchive(fsys afero.Fs, name string) (*Profile, error) {
	tmp, err := afero.TempDir(fsys, "", "restorix-profile-")
	if err != nil {
		return nil, engine.NewInternalError("failed to create extraction directory", err)
	}
	if err := Extract(fsys, name, tmp); err != nil {
		return nil, err
	}
	manifest := filepath.Join(tmp, ManifestName)
	if ok, _ := afero.Exists(fsys, manifest); !ok {
		return nil, engine.NewInputError(
			fmt.Sprintf("archive %q has no %s", name, ManifestName), nil).
			WithCode(engine.ErrCodeProfileNotFound).WithPath(name)
	}
	return &Profile{Root: tmp, ManifestPath: manifest, Extracted: true}, nil
}
