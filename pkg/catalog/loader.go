package catalog

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gobwas/glob"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/restorix/restorix/pkg/engine"
)

// Catalog is the loaded, immutable module catalog.
type Catalog struct {
	modules map[string]*Module
	bundles map[string]*Bundle
	order   []string
}

// document is the on-disk catalog file shape. A catalog may be split
// across several files; they are merged in lexical filename order.
type document struct {
	Modules []*Module `yaml:"modules,omitempty"`
	Bundles []*Bundle `yaml:"bundles,omitempty"`
}

// Load reads a catalog from a file or from every .yaml/.yml file in a
// directory. Documents are validated against the typed schema at load
// time; unknown required fields fail immediately, before any engine
// operation runs.
func Load(fsys afero.Fs, path string) (*Catalog, error) {
	info, err := fsys.Stat(path)
	if err != nil {
		return nil, engine.NewInputError("catalog not found", err).
			WithCode(engine.ErrCodeValidation).WithPath(path)
	}

	var files []string
	if info.IsDir() {
		entries, err := afero.ReadDir(fsys, path)
		if err != nil {
			return nil, engine.NewInputError("failed to read catalog directory", err).WithPath(path)
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			ext := filepath.Ext(e.Name())
			if ext == ".yaml" || ext == ".yml" {
				files = append(files, filepath.Join(path, e.Name()))
			}
		}
		sort.Strings(files)
	} else {
		files = []string{path}
	}

	c := &Catalog{
		modules: make(map[string]*Module),
		bundles: make(map[string]*Bundle),
	}
	validate := validator.New()

	for _, file := range files {
		data, err := afero.ReadFile(fsys, file)
		if err != nil {
			return nil, engine.NewInputError("failed to read catalog file", err).WithPath(file)
		}

		var doc document
		dec := yaml.NewDecoder(strings.NewReader(string(data)))
		dec.KnownFields(true)
		if err := dec.Decode(&doc); err != nil {
			return nil, engine.NewInputError("malformed catalog document", err).
				WithCode(engine.ErrCodeManifestParse).WithPath(file)
		}

		for _, m := range doc.Modules {
			if err := validate.Struct(m); err != nil {
				return nil, engine.NewInputError("invalid module definition", err).
					WithCode(engine.ErrCodeValidation).WithModule(m.ID).WithPath(file)
			}
			if err := compileModule(m); err != nil {
				return nil, engine.NewInputError("invalid module pattern", err).
					WithCode(engine.ErrCodeValidation).WithModule(m.ID).WithPath(file)
			}
			if _, dup := c.modules[m.ID]; dup {
				return nil, engine.NewInputError(
					fmt.Sprintf("duplicate module id %q", m.ID), nil).
					WithCode(engine.ErrCodeValidation).WithPath(file)
			}
			c.modules[m.ID] = m
			c.order = append(c.order, m.ID)
		}

		for _, b := range doc.Bundles {
			if err := validate.Struct(b); err != nil {
				return nil, engine.NewInputError("invalid bundle definition", err).
					WithCode(engine.ErrCodeValidation).WithPath(file)
			}
			if _, dup := c.bundles[b.ID]; dup {
				return nil, engine.NewInputError(
					fmt.Sprintf("duplicate bundle id %q", b.ID), nil).
					WithCode(engine.ErrCodeValidation).WithPath(file)
			}
			c.bundles[b.ID] = b
		}
	}

	// Bundle members must exist.
	for _, b := range c.bundles {
		for _, id := range b.Modules {
			if _, ok := c.modules[id]; !ok {
				return nil, engine.NewInputError(
					fmt.Sprintf("bundle %q references unknown module %q", b.ID, id), nil).
					WithCode(engine.ErrCodeModuleNotFound)
			}
		}
	}

	return c, nil
}

// compileModule compiles the module's glob predicates and validates
// its restore actions.
func compileModule(m *Module) error {
	for _, p := range m.Matches.Packages {
		g, err := glob.Compile(p)
		if err != nil {
			return fmt.Errorf("match pattern %q: %w", p, err)
		}
		m.matchGlobs = append(m.matchGlobs, g)
	}
	for _, p := range m.Capture.ExcludeGlobs {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return fmt.Errorf("exclude pattern %q: %w", p, err)
		}
		m.excludeGlobs = append(m.excludeGlobs, g)
	}
	for _, p := range m.Capture.SensitiveFiles {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return fmt.Errorf("sensitive pattern %q: %w", p, err)
		}
		m.sensitiveGlobs = append(m.sensitiveGlobs, g)
	}
	for i, op := range m.Restore {
		if !op.Action.Valid() {
			return fmt.Errorf("restore action %d: unknown strategy %q", i, op.Action)
		}
		if op.Source == "" && op.Content == "" {
			return fmt.Errorf("restore action %d: needs a source or inline content", i)
		}
	}
	return nil
}

// Module returns the module with the given id.
func (c *Catalog) Module(id string) (*Module, bool) {
	m, ok := c.modules[id]
	return m, ok
}

// Bundle returns the catalog bundle with the given id.
func (c *Catalog) Bundle(id string) (*Bundle, bool) {
	b, ok := c.bundles[id]
	return b, ok
}

// Modules returns every module in declaration order.
func (c *Catalog) Modules() []*Module {
	out := make([]*Module, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.modules[id])
	}
	return out
}

// MatchInstalled returns the modules whose match predicates hit any of
// the given installed package identifiers, in declaration order.
func (c *Catalog) MatchInstalled(packages []string) []*Module {
	var out []*Module
	for _, id := range c.order {
		m := c.modules[id]
		for _, pkg := range packages {
			if m.MatchesPackage(pkg) {
				out = append(out, m)
				break
			}
		}
	}
	return out
}
