// Package loader turns a load order into the list of asset files to load.
package loader

import (
	"slices"

	"github.com/matzehuels/loadorder/pkg/registry"
)

// Asset is one file contributed by a library.
type Asset struct {
	Path    string `json:"path"`
	Type    string `json:"type,omitempty"`
	Library string `json:"library"`
}

// Plan is the ordered asset list for a load order.
type Plan struct {
	Assets []Asset `json:"assets"`
}

// New walks order and collects the declared files of each library, in
// order. A file path claimed by several libraries is loaded once, at its
// first position. Plugins and ids without a library contribute nothing.
func New(order []string, reg *registry.Registry) Plan {
	plan := Plan{Assets: []Asset{}}
	seen := make(map[string]bool)
	for _, id := range order {
		lib, ok := reg.Library(id)
		if !ok {
			continue
		}
		for _, f := range lib.Files {
			if seen[f] {
				continue
			}
			seen[f] = true
			plan.Assets = append(plan.Assets, Asset{Path: f, Type: lib.Type, Library: id})
		}
	}
	return plan
}

// Files returns the asset paths in load order.
func (p Plan) Files() []string {
	out := make([]string, len(p.Assets))
	for i, a := range p.Assets {
		out[i] = a.Path
	}
	return out
}

// ByType groups asset paths by library type, keeping load order within each
// group.
func (p Plan) ByType() map[string][]string {
	out := make(map[string][]string)
	for _, a := range p.Assets {
		out[a.Type] = append(out[a.Type], a.Path)
	}
	return out
}

// Types returns the library types present in the plan in ascending order.
func (p Plan) Types() []string {
	var types []string
	for _, a := range p.Assets {
		if !slices.Contains(types, a.Type) {
			types = append(types, a.Type)
		}
	}
	slices.Sort(types)
	return types
}
