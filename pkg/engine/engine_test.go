package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// fakeInstaller is an in-memory install capability for tests.
type fakeInstaller struct {
	mu        sync.Mutex
	installed map[string]bool
	fail      map[string]string
	queryErr  error
	ensured   []string
}

func newFakeInstaller(installed ...string) *fakeInstaller {
	set := make(map[string]bool, len(installed))
	for _, pkg := range installed {
		set[pkg] = true
	}
	return &fakeInstaller{installed: set, fail: map[string]string{}}
}

func (f *fakeInstaller) Ensure(_ context.Context, pkg string) (EnsureResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensured = append(f.ensured, pkg)
	if reason, ok := f.fail[pkg]; ok {
		return EnsureResult{Package: pkg, Status: EnsureFailed, Reason: reason}, nil
	}
	if f.installed[pkg] {
		return EnsureResult{Package: pkg, Status: EnsureAlreadyPresent}, nil
	}
	f.installed[pkg] = true
	return EnsureResult{Package: pkg, Status: EnsureInstalled}, nil
}

func (f *fakeInstaller) Query(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	out := make([]string, 0, len(f.installed))
	for pkg := range f.installed {
		out = append(out, pkg)
	}
	sort.Strings(out)
	return out, nil
}

// memStore is an in-memory StateStore for tests.
type memStore struct {
	mu        sync.Mutex
	snap      *Snapshot
	runs      []*RunRecord
	appendErr error
}

func (s *memStore) LoadSnapshot(context.Context) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap, nil
}

func (s *memStore) SaveSnapshot(_ context.Context, snap *Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = snap
	return nil
}

func (s *memStore) AppendRun(_ context.Context, rec *RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return s.appendErr
	}
	s.runs = append(s.runs, rec)
	return nil
}

func (s *memStore) LastRun(context.Context) (*RunRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.runs) == 0 {
		return nil, nil
	}
	return s.runs[len(s.runs)-1], nil
}

func (s *memStore) ListRuns(_ context.Context, limit int) ([]*RunRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*RunRecord, 0, limit)
	for i := len(s.runs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.runs[i])
	}
	return out, nil
}

var errCapabilityDown = fmt.Errorf("capability unreachable")
