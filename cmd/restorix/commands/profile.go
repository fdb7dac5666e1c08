package commands

import (
	"github.com/restorix/restorix/pkg/bundle"
	"github.com/restorix/restorix/pkg/engine"
	"github.com/restorix/restorix/pkg/manifest"
)

// resolveProfile discovers a profile by name and resolves its manifest
// into the desired-state graph. The returned cleanup removes the
// temporary extraction directory when the profile came from an
// archive.
func (rt *runtime) resolveProfile(name string) (*engine.Graph, func(), error) {
	profile, err := bundle.Discover(rt.fsys, rt.paths.Expand(name))
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {}
	if profile.Extracted {
		root := profile.Root
		cleanup = func() { _ = rt.fsys.RemoveAll(root) }
	}

	resolver := manifest.NewResolver(rt.fsys, rt.catalog, rt.paths)
	graph, err := resolver.Resolve(profile.ManifestPath)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return graph, cleanup, nil
}
