package engine

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/spf13/afero"
)

// SnapshotSchemaVersion is the newest snapshot schema this build
// understands.
const SnapshotSchemaVersion = 1

// HashBytes returns the hex sha256 fingerprint of data.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashFile returns the hex sha256 fingerprint of the file at path.
func HashFile(fsys afero.Fs, path string) (string, error) {
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return "", err
	}
	return HashBytes(data), nil
}
