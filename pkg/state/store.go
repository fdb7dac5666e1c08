// Package state persists the engine's durable records: the last
// observed snapshot and the append-only run history. Every write goes
// to a temporary file first and is published by rename, so readers
// never observe a partially-written state file.
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/restorix/restorix/pkg/engine"
)

const (
	snapshotFile = "observed.json"
	runsDir      = "runs"
)

// Store is the file-backed state store. It assumes a single writer
// per invocation; cross-process locking is the caller's concern.
type Store struct {
	fsys afero.Fs
	dir  string
}

// NewStore creates a store rooted at dir. The directory is created on
// first write, not here.
func NewStore(fsys afero.Fs, dir string) *Store {
	return &Store{fsys: fsys, dir: dir}
}

// LoadSnapshot returns the last observed snapshot. A missing or
// corrupt file reads as no snapshot (first run); a snapshot whose
// schema version is newer than supported is fatal, with no
// auto-migration.
func (s *Store) LoadSnapshot(ctx context.Context) (*engine.Snapshot, error) {
	data, err := afero.ReadFile(s.fsys, filepath.Join(s.dir, snapshotFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, nil
	}

	var snap engine.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		// Fail closed: unreadable state is empty state.
		return nil, nil
	}

	if snap.SchemaVersion > engine.SnapshotSchemaVersion {
		return nil, engine.NewStateError(
			fmt.Sprintf("state schema version %d is newer than supported %d",
				snap.SchemaVersion, engine.SnapshotSchemaVersion), nil).
			WithCode(engine.ErrCodeSchemaVersionMismatch)
	}

	return &snap, nil
}

// SaveSnapshot atomically records the observed snapshot.
func (s *Store) SaveSnapshot(ctx context.Context, snap *engine.Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return engine.NewStateError("failed to encode snapshot", err)
	}
	return s.writeAtomic(filepath.Join(s.dir, snapshotFile), data)
}

// AppendRun atomically appends a run record. Records are one file per
// run, named so lexical order matches chronological order.
func (s *Store) AppendRun(ctx context.Context, rec *engine.RunRecord) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return engine.NewStateError("failed to encode run record", err)
	}
	name := fmt.Sprintf("%s-%s.json",
		rec.TimestampUTC.UTC().Format("20060102T150405.000000000"), rec.RunID)
	return s.writeAtomic(filepath.Join(s.dir, runsDir, name), data)
}

// LastRun returns the most recent run record, or nil when the history
// is empty.
func (s *Store) LastRun(ctx context.Context) (*engine.RunRecord, error) {
	runs, err := s.ListRuns(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return runs[0], nil
}

// ListRuns returns up to limit run records, newest first. A limit of
// zero or less returns everything.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*engine.RunRecord, error) {
	entries, err := afero.ReadDir(s.fsys, filepath.Join(s.dir, runsDir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, engine.NewStateError("failed to read run history", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))

	var out []*engine.RunRecord
	for _, name := range names {
		if limit > 0 && len(out) >= limit {
			break
		}
		data, err := afero.ReadFile(s.fsys, filepath.Join(s.dir, runsDir, name))
		if err != nil {
			continue
		}
		var rec engine.RunRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			// A torn record cannot exist given atomic publication;
			// anything unreadable is skipped rather than fatal.
			continue
		}
		out = append(out, &rec)
	}
	return out, nil
}

// writeAtomic writes data to a temporary sibling and renames it into
// place.
func (s *Store) writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := s.fsys.MkdirAll(dir, 0o755); err != nil {
		return engine.NewStateError("failed to create state directory", err).WithPath(dir)
	}

	tmp := path + ".tmp"
	if err := afero.WriteFile(s.fsys, tmp, data, 0o644); err != nil {
		return engine.NewStateError("failed to write state file", err).WithPath(tmp)
	}
	if err := s.fsys.Rename(tmp, path); err != nil {
		_ = s.fsys.Remove(tmp)
		return engine.NewStateError("failed to publish state file", err).WithPath(path)
	}
	return nil
}
