// Package capture inspects the live machine and assembles a portable
// bundle artifact: the installed-package manifest plus each matched
// module's config payload. Module collection failures are isolated;
// the app-list manifest is captured even when every module fails.
package capture

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gobwas/glob"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/restorix/restorix/pkg/bundle"
	"github.com/restorix/restorix/pkg/catalog"
	"github.com/restorix/restorix/pkg/engine"
	"github.com/restorix/restorix/pkg/manifest"
	"github.com/restorix/restorix/pkg/paths"
	"github.com/restorix/restorix/pkg/telemetry"
)

// defaultWorkers bounds concurrent module collection.
const defaultWorkers = 4

// Engine captures live machine state into a bundle artifact.
type Engine struct {
	fsys      afero.Fs
	installer engine.Installer
	catalog   *catalog.Catalog
	paths     *paths.Context
	store     engine.StateStore
	log       *telemetry.Logger
	workers   int
}

// NewEngine creates a capture engine. Every capture appends a run
// record to the state store, like apply and restore runs do.
func NewEngine(fsys afero.Fs, installer engine.Installer, cat *catalog.Catalog, pathCtx *paths.Context, store engine.StateStore, log *telemetry.Logger) *Engine {
	return &Engine{
		fsys:      fsys,
		installer: installer,
		catalog:   cat,
		paths:     pathCtx,
		store:     store,
		log:       log.NewComponentLogger("capture"),
		workers:   defaultWorkers,
	}
}

// Result describes a finished capture.
type Result struct {
	// RunID is the recorded capture run.
	RunID string `json:"run_id"`

	// ArtifactPath is where the artifact was published.
	ArtifactPath string `json:"artifact_path"`

	// Metadata is the capture metadata embedded in the artifact.
	Metadata bundle.Metadata `json:"metadata"`

	// Packages are the captured package identifiers.
	Packages []string `json:"packages"`
}

// moduleOutcome is one module's collection result.
type moduleOutcome struct {
	id       string
	included bool
	reason   string
	err      error
}

// Capture enumerates installed packages, matches catalog modules,
// collects each included module's files into a staging tree, and
// publishes the artifact atomically at destPath.
func (e *Engine) Capture(ctx context.Context, destPath string) (*Result, error) {
	packages, err := e.installer.Query(ctx)
	if err != nil {
		return nil, engine.NewInternalError("install capability query failed", err)
	}
	sort.Strings(packages)
	e.log.Infof("captured package list: %d packages", len(packages))

	staging, err := afero.TempDir(e.fsys, "", "restorix-capture-")
	if err != nil {
		return nil, engine.NewInternalError("failed to create staging directory", err)
	}
	defer e.fsys.RemoveAll(staging)

	matched := e.catalog.MatchInstalled(packages)
	matchedSet := make(map[string]bool, len(matched))
	for _, m := range matched {
		matchedSet[m.ID] = true
	}

	meta := bundle.Metadata{
		SchemaVersion:   bundle.MetadataSchemaVersion,
		CapturedAtUTC:   time.Now().UTC(),
		SourceMachineID: machineID(),
		ModulesIncluded: []string{},
		ModulesSkipped:  []bundle.SkippedModule{},
		Warnings:        []string{},
	}

	for _, m := range e.catalog.Modules() {
		if !matchedSet[m.ID] {
			meta.ModulesSkipped = append(meta.ModulesSkipped, bundle.SkippedModule{
				Module: m.ID,
				Reason: "no matching package installed",
			})
		}
	}

	outcomes := e.collectModules(ctx, matched, staging)
	for _, o := range outcomes {
		switch {
		case o.err != nil:
			// Isolated: record a warning naming the module, skip it,
			// and keep capturing everything else.
			meta.Warnings = append(meta.Warnings, fmt.Sprintf("module %s: %v", o.id, o.err))
			meta.ModulesSkipped = append(meta.ModulesSkipped, bundle.SkippedModule{
				Module: o.id,
				Reason: "capture failed: " + o.err.Error(),
			})
			_ = e.fsys.RemoveAll(filepath.Join(staging, bundle.ConfigsDir, o.id))
			e.log.WithModuleID(o.id).WithError(o.err).Warn("module capture failed, skipping")
		case !o.included:
			meta.ModulesSkipped = append(meta.ModulesSkipped, bundle.SkippedModule{
				Module: o.id,
				Reason: o.reason,
			})
		default:
			meta.ModulesIncluded = append(meta.ModulesIncluded, o.id)
		}
	}
	sort.Strings(meta.ModulesIncluded)
	sort.Slice(meta.ModulesSkipped, func(i, j int) bool {
		return meta.ModulesSkipped[i].Module < meta.ModulesSkipped[j].Module
	})
	sort.Strings(meta.Warnings)

	if err := e.writeManifest(staging, packages, meta.ModulesIncluded); err != nil {
		return nil, err
	}
	if err := e.writeMetadata(staging, &meta); err != nil {
		return nil, err
	}

	if err := bundle.WriteArchive(e.fsys, staging, destPath); err != nil {
		return nil, err
	}

	rec := e.runRecord(&meta, outcomes)
	if err := e.store.AppendRun(ctx, rec); err != nil {
		return nil, err
	}
	e.log.WithRunID(rec.RunID).Infof("artifact published: %s (%d modules, %d warnings)",
		destPath, len(meta.ModulesIncluded), len(meta.Warnings))

	return &Result{
		RunID:        rec.RunID,
		ArtifactPath: destPath,
		Metadata:     meta,
		Packages:     packages,
	}, nil
}

// runRecord builds the capture run record: one step per collected
// module. A module failure downgrades the outcome to partial; the
// capture as a whole still succeeded, since the artifact published.
func (e *Engine) runRecord(meta *bundle.Metadata, outcomes []moduleOutcome) *engine.RunRecord {
	rec := &engine.RunRecord{
		RunID:        uuid.New().String(),
		Command:      "capture",
		TimestampUTC: meta.CapturedAtUTC,
		Outcome:      engine.OutcomeSuccess,
		Steps:        make([]engine.StepResult, 0, len(outcomes)),
	}
	for _, o := range outcomes {
		result := engine.StepResult{
			StepID: uuid.New().String(),
			Kind:   engine.StepCapture,
			Module: o.id,
		}
		switch {
		case o.err != nil:
			result.Status = engine.StepStatusFailed
			result.Error = o.err.Error()
			rec.Outcome = engine.OutcomePartial
		case !o.included:
			result.Status = engine.StepStatusSkipped
		default:
			result.Status = engine.StepStatusSucceeded
		}
		rec.Steps = append(rec.Steps, result)
	}
	return rec
}

// collectModules runs per-module collection with a bounded worker
// group. Completion order never affects the artifact: outcomes are
// re-sorted by module id and the staging tree is archived in lexical
// order.
func (e *Engine) collectModules(ctx context.Context, modules []*catalog.Module, staging string) []moduleOutcome {
	sem := make(chan struct{}, e.workers)
	outcomes := make([]moduleOutcome, len(modules))
	var wg sync.WaitGroup

	for i, m := range modules {
		wg.Add(1)
		go func(i int, m *catalog.Module) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if ctx.Err() != nil {
				outcomes[i] = moduleOutcome{id: m.ID, err: ctx.Err()}
				return
			}
			outcomes[i] = e.collectModule(m, staging)
		}(i, m)
	}
	wg.Wait()

	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].id < outcomes[j].id })
	return outcomes
}

// collectModule expands one module's capture globs and copies the
// matched files into the staging tree. Excluded and sensitive paths
// are rejected here, at collection time, before any bytes move.
func (e *Engine) collectModule(m *catalog.Module, staging string) moduleOutcome {
	out := moduleOutcome{id: m.ID}

	var files []string
	var errs *multierror.Error
	for _, pattern := range m.Capture.Files {
		matches, err := expandPattern(e.fsys, e.paths.Home, pattern)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("pattern %q: %w", pattern, err))
			continue
		}
		files = append(files, matches...)
	}

	copied := 0
	for _, rel := range files {
		if m.Sensitive(rel) || m.Excluded(rel) {
			continue
		}
		src := filepath.Join(e.paths.Home, rel)
		dst := filepath.Join(staging, bundle.ConfigsDir, m.ID, rel)
		if err := copyFile(e.fsys, src, dst); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("copy %s: %w", rel, err))
			continue
		}
		copied++
	}

	if err := errs.ErrorOrNil(); err != nil {
		out.err = err
		return out
	}
	if copied == 0 {
		out.reason = "no config files found"
		return out
	}
	out.included = true
	return out
}

// writeManifest writes the app manifest: the captured package list
// plus the included module references. This entry is always present,
// even when every config module failed.
func (e *Engine) writeManifest(staging string, packages, modules []string) error {
	doc := manifest.Document{
		SchemaVersion: manifest.SchemaVersion,
		Packages:      packages,
		Modules:       modules,
	}
	data, err := yaml.Marshal(&doc)
	if err != nil {
		return engine.NewInternalError("failed to encode manifest", err)
	}
	path := filepath.Join(staging, bundle.ManifestName)
	if err := afero.WriteFile(e.fsys, path, data, 0o644); err != nil {
		return engine.NewInternalError("failed to stage manifest", err).WithPath(path)
	}
	return nil
}

func (e *Engine) writeMetadata(staging string, meta *bundle.Metadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return engine.NewInternalError("failed to encode metadata", err)
	}
	path := filepath.Join(staging, bundle.MetadataName)
	if err := afero.WriteFile(e.fsys, path, data, 0o644); err != nil {
		return engine.NewInternalError("failed to stage metadata", err).WithPath(path)
	}
	return nil
}

// expandPattern resolves a home-relative glob pattern to the matching
// home-relative file paths. Patterns without a "**" segment go through
// the filesystem glob; recursive patterns walk their static prefix.
func expandPattern(fsys afero.Fs, home, pattern string) ([]string, error) {
	if !strings.Contains(pattern, "**") {
		matches, err := afero.Glob(fsys, filepath.Join(home, pattern))
		if err != nil {
			return nil, err
		}
		var out []string
		for _, match := range matches {
			info, err := fsys.Stat(match)
			if err != nil || info.IsDir() {
				continue
			}
			rel, err := filepath.Rel(home, match)
			if err != nil {
				continue
			}
			out = append(out, rel)
		}
		return out, nil
	}

	prefix := staticPrefix(pattern)
	root := filepath.Join(home, prefix)
	matcher, err := glob.Compile(filepath.ToSlash(pattern), '/')
	if err != nil {
		return nil, err
	}

	var out []string
	walkErr := afero.Walk(fsys, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // unreadable subtrees are not a module failure
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(home, path)
		if err != nil {
			return nil
		}
		if matcher.Match(filepath.ToSlash(rel)) {
			out = append(out, rel)
		}
		return nil
	})
	if walkErr != nil && !os.IsNotExist(walkErr) {
		return nil, walkErr
	}
	return out, nil
}

// staticPrefix returns the pattern's leading glob-free directories.
func staticPrefix(pattern string) string {
	parts := strings.Split(pattern, "/")
	var out []string
	for _, part := range parts {
		if strings.ContainsAny(part, "*?[{") {
			break
		}
		out = append(out, part)
	}
	return filepath.Join(out...)
}

func copyFile(fsys afero.Fs, src, dst string) error {
	data, err := afero.ReadFile(fsys, src)
	if err != nil {
		return err
	}
	if err := fsys.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return afero.WriteFile(fsys, dst, data, 0o600)
}

// machineID identifies the capture source: hostname plus platform.
func machineID() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return host + "/" + runtime.GOOS
}
