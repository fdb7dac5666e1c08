package manifest

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/restorix/restorix/pkg/catalog"
	"github.com/restorix/restorix/pkg/engine"
	"github.com/restorix/restorix/pkg/merge"
	"github.com/restorix/restorix/pkg/paths"
)

// Resolver expands a manifest document into a desired-state graph.
type Resolver struct {
	fsys    afero.Fs
	catalog *catalog.Catalog
	paths   *paths.Context
	val     *validator.Validate
}

// NewResolver creates a resolver over the given filesystem, catalog,
// and path context.
func NewResolver(fsys afero.Fs, cat *catalog.Catalog, pathCtx *paths.Context) *Resolver {
	return &Resolver{
		fsys:    fsys,
		catalog: cat,
		paths:   pathCtx,
		val:     validator.New(),
	}
}

// Load parses and validates a single manifest document without
// resolving includes or references.
func (r *Resolver) Load(path string) (*Document, error) {
	data, err := afero.ReadFile(r.fsys, path)
	if err != nil {
		return nil, engine.NewInputError("failed to read manifest", err).
			WithCode(engine.ErrCodeManifestParse).WithPath(path)
	}

	var doc Document
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, engine.NewInputError("malformed manifest", err).
			WithCode(engine.ErrCodeManifestParse).WithPath(path)
	}

	if err := r.val.Struct(&doc); err != nil {
		return nil, engine.NewInputError("invalid manifest", err).
			WithCode(engine.ErrCodeValidation).WithPath(path)
	}
	if doc.SchemaVersion > SchemaVersion {
		return nil, engine.NewInputError(
			fmt.Sprintf("manifest schema version %d is newer than supported %d",
				doc.SchemaVersion, SchemaVersion), nil).
			WithCode(engine.ErrCodeSchemaVersionMismatch).WithPath(path)
	}

	for i, op := range doc.Restore {
		if !op.Action.Valid() {
			return nil, engine.NewInputError(
				fmt.Sprintf("inline restore %d: unknown strategy %q", i, op.Action), nil).
				WithCode(engine.ErrCodeValidation).WithPath(path)
		}
		if op.Source == "" && op.Content == "" {
			return nil, engine.NewInputError(
				fmt.Sprintf("inline restore %d: needs a source or inline content", i), nil).
				WithCode(engine.ErrCodeValidation).WithPath(path)
		}
	}

	return &doc, nil
}

// Resolve loads the manifest at path and produces the desired-state
// graph. The profile root (the directory holding the manifest) anchors
// payload sources; includes resolve relative to the document that
// declares them, depth-first in declaration order.
func (r *Resolver) Resolve(path string) (*engine.Graph, error) {
	root := filepath.Dir(path)
	st := &resolution{
		resolver: r,
		root:     root,
		visiting: make(map[string]bool),
	}
	if err := st.walk(path); err != nil {
		return nil, err
	}
	return st.finish(), nil
}

// resolution accumulates ordered intents across the include tree.
type resolution struct {
	resolver *Resolver
	root     string
	visiting map[string]bool

	installs []engine.InstallIntent
	restores []engine.RestoreIntent
	verifies []engine.VerifyIntent
	inline   []engine.RestoreIntent
}

// walk processes one document depth-first: includes, then packages,
// bundles, modules, and inline operations.
func (st *resolution) walk(path string) error {
	abs := filepath.Clean(path)
	if st.visiting[abs] {
		return engine.NewInputError(
			fmt.Sprintf("manifest include cycle through %s", abs), nil).
			WithCode(engine.ErrCodeCircularInclude).WithPath(abs)
	}
	st.visiting[abs] = true

	doc, err := st.resolver.Load(abs)
	if err != nil {
		return err
	}

	for _, inc := range doc.Includes {
		incPath := inc
		if !filepath.IsAbs(incPath) {
			incPath = filepath.Join(filepath.Dir(abs), inc)
		}
		if err := st.walk(incPath); err != nil {
			return err
		}
	}

	prov := engine.Provenance{Manifest: abs}

	for _, pkg := range doc.Packages {
		st.installs = append(st.installs, engine.InstallIntent{
			Package:    pkg,
			Provenance: prov,
		})
	}

	for _, bundleID := range doc.Bundles {
		b, ok := st.resolver.catalog.Bundle(bundleID)
		if !ok {
			return engine.NewInputError(
				fmt.Sprintf("manifest references unknown bundle %q", bundleID), nil).
				WithCode(engine.ErrCodeModuleNotFound).WithPath(abs)
		}
		for _, moduleID := range b.Modules {
			if err := st.addModule(moduleID, engine.Provenance{Manifest: abs, Bundle: bundleID, Module: moduleID}); err != nil {
				return err
			}
		}
	}

	for _, moduleID := range doc.Modules {
		if err := st.addModule(moduleID, engine.Provenance{Manifest: abs, Module: moduleID}); err != nil {
			return err
		}
	}

	for _, op := range doc.Restore {
		intent := engine.RestoreIntent{
			Target:     st.resolver.paths.Expand(op.Target),
			Strategy:   op.Action,
			Provenance: prov,
		}
		if op.Content != "" {
			intent.Content = []byte(op.Content)
		} else {
			intent.Source = filepath.Join(st.root, op.Source)
		}
		st.inline = append(st.inline, intent)
	}

	// A finished include may be included again by a sibling; only an
	// active ancestor counts as a cycle.
	delete(st.visiting, abs)
	return nil
}

// addModule appends a module's restore and verify operations.
func (st *resolution) addModule(moduleID string, prov engine.Provenance) error {
	m, ok := st.resolver.catalog.Module(moduleID)
	if !ok {
		return engine.NewInputError(
			fmt.Sprintf("manifest references unknown module %q", moduleID), nil).
			WithCode(engine.ErrCodeModuleNotFound).WithModule(moduleID)
	}

	for _, op := range m.Restore {
		intent := engine.RestoreIntent{
			Module:     m.ID,
			Target:     st.resolver.paths.Expand(op.Target),
			Strategy:   op.Action,
			Provenance: prov,
		}
		if op.Content != "" {
			intent.Content = []byte(op.Content)
		} else {
			intent.Source = filepath.Join(st.root, "configs", m.ID, op.Source)
		}
		st.restores = append(st.restores, intent)
	}

	for _, op := range m.Verify {
		st.verifies = append(st.verifies, engine.VerifyIntent{
			Module:   m.ID,
			Kind:     op.Kind,
			Path:     st.resolver.paths.Expand(op.Path),
			Contains: op.Contains,
		})
	}
	return nil
}

// finish flattens the accumulated intents: inline operations append
// last, duplicate package intents collapse keeping the last
// declaration's provenance, and duplicate (target, strategy) restore
// pairs collapse to the later declaration.
func (st *resolution) finish() *engine.Graph {
	g := &engine.Graph{
		Installs: dedupeInstalls(st.installs),
		Restores: dedupeRestores(append(st.restores, st.inline...)),
		Verifies: st.verifies,
	}
	return g
}

// dedupeInstalls collapses duplicate package references. The intent
// keeps its first position in the order but carries the last
// declaration's provenance (later wins).
func dedupeInstalls(in []engine.InstallIntent) []engine.InstallIntent {
	index := make(map[string]int)
	out := make([]engine.InstallIntent, 0, len(in))
	for _, intent := range in {
		if i, seen := index[intent.Package]; seen {
			out[i].Provenance = intent.Provenance
			continue
		}
		index[intent.Package] = len(out)
		out = append(out, intent)
	}
	return out
}

// dedupeRestores collapses restore intents that share a target and
// strategy: the later declaration replaces the earlier one in place
// (later wins). Append intents never collapse, since each appended
// block is independent content; intents with different strategies on
// the same target all survive, in order.
func dedupeRestores(in []engine.RestoreIntent) []engine.RestoreIntent {
	type key struct {
		target   string
		strategy string
	}
	index := make(map[key]int)
	out := make([]engine.RestoreIntent, 0, len(in))
	for _, intent := range in {
		if intent.Strategy == merge.StrategyAppend {
			out = append(out, intent)
			continue
		}
		k := key{intent.Target, string(intent.Strategy)}
		if i, seen := index[k]; seen {
			out[i] = intent
			continue
		}
		index[k] = len(out)
		out = append(out, intent)
	}
	return out
}
