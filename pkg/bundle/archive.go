package bundle

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/restorix/restorix/pkg/engine"
)

// WriteArchive packs the staging directory into a tar.gz artifact at
// destPath. The archive is written to a temporary sibling and renamed
// into place, so a partially-written artifact is never visible at the
// destination. Entry order is the deterministic lexical walk order of
// the staging tree.
func WriteArchive(fsys afero.Fs, stagingDir, destPath string) error {
	if err := fsys.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return engine.NewInternalError("failed to create artifact directory", err).WithPath(destPath)
	}

	tmp := destPath + ".tmp"
	out, err := fsys.Create(tmp)
	if err != nil {
		return engine.NewInternalError("failed to create artifact", err).WithPath(tmp)
	}

	gw := gzip.NewWriter(out)
	tw := tar.NewWriter(gw)

	walkErr := afero.Walk(fsys, stagingDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(stagingDir, path)
		if err != nil {
			return err
		}

		hdr := &tar.Header{
			Name:    filepath.ToSlash(rel),
			Mode:    0o644,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}

		f, err := fsys.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})

	if walkErr == nil {
		walkErr = tw.Close()
	} else {
		tw.Close()
	}
	if err := gw.Close(); err != nil && walkErr == nil {
		walkErr = err
	}
	if err := out.Close(); err != nil && walkErr == nil {
		walkErr = err
	}

	if walkErr != nil {
		_ = fsys.Remove(tmp)
		return engine.NewInternalError("failed to write artifact", walkErr).WithPath(destPath)
	}

	if err := fsys.Rename(tmp, destPath); err != nil {
		_ = fsys.Remove(tmp)
		return engine.NewInternalError("failed to publish artifact", err).WithPath(destPath)
	}
	return nil
}

// Extract unpacks an artifact into destDir.
func Extract(fsys afero.Fs, archivePath, destDir string) error {
	f, err := fsys.Open(archivePath)
	if err != nil {
		return engine.NewInputError("failed to open artifact", err).WithPath(archivePath)
	}
	defer f.Close()

	gr, err := gzip.NewReader(f)
	if err != nil {
		return engine.NewInputError("artifact is not a gzip archive", err).WithPath(archivePath)
	}
	defer gr.Close()

	tr := tar.NewReader(gr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return engine.NewInputError("artifact is not a tar archive", err).WithPath(archivePath)
		}

		name := filepath.Clean(filepath.FromSlash(hdr.Name))
		if strings.HasPrefix(name, "..") || filepath.IsAbs(name) {
			return engine.NewInputError(
				fmt.Sprintf("artifact entry %q escapes the extraction root", hdr.Name), nil).
				WithPath(archivePath)
		}

		dest := filepath.Join(destDir, name)
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := fsys.MkdirAll(dest, 0o755); err != nil {
				return engine.NewInternalError("failed to extract artifact", err).WithPath(dest)
			}
		case tar.TypeReg:
			if err := fsys.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
				return engine.NewInternalError("failed to extract artifact", err).WithPath(dest)
			}
			out, err := fsys.Create(dest)
			if err != nil {
				return engine.NewInternalError("failed to extract artifact", err).WithPath(dest)
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return engine.NewInternalError("failed to extract artifact", err).WithPath(dest)
			}
			if err := out.Close(); err != nil {
				return engine.NewInternalError("failed to extract artifact", err).WithPath(dest)
			}
		}
	}
	return nil
}

// IsArchive reports whether path is a readable gzip file. Used by
// discovery to distinguish artifacts from bare manifests.
func IsArchive(fsys afero.Fs, path string) bool {
	f, err := fsys.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	var magic [2]byte
	if _, err := io.ReadFull(f, magic[:]); err != nil {
		return false
	}
	return magic[0] == 0x1f && magic[1] == 0x8b
}
