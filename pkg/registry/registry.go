// Package registry reads component declaration files.
//
// A declaration file lists libraries (static assets with a type and a file
// list) and plugins (components that can be switched on or off). Both kinds
// declare dependencies on other component ids, optionally with a version
// constraint that travels through the engine as an opaque edge payload.
//
// Four formats are recognised by file extension: TOML, YAML, JSON and HCL.
// The TOML form looks like:
//
//	[library.core]
//	type = "js"
//	files = ["core.js"]
//
//	[plugin.shop]
//	dependencies = ["core"]
//	versions = { core = ">=1.2" }
//
// HCL uses labelled blocks instead of tables:
//
//	library "core" {
//	  type  = "js"
//	  files = ["core.js"]
//	}
//
// Several files can be merged into one [Registry]; a component id may be
// declared only once across all of them.
package registry

import (
	"maps"
	"slices"

	"github.com/matzehuels/loadorder/pkg/dag"
	"github.com/matzehuels/loadorder/pkg/errors"
)

// Library is a component that ships asset files.
type Library struct {
	ID           string
	Type         string
	Files        []string
	Dependencies []string
	// Versions maps a dependency id to a version constraint.
	Versions map[string]string
	// Source is the declaration file the library came from.
	Source string
}

// Plugin is a component that can be enabled or disabled.
type Plugin struct {
	ID           string
	Enabled      bool
	Dependencies []string
	Versions     map[string]string
	Source       string
}

// Registry is the merged content of one or more declaration files.
type Registry struct {
	Libraries map[string]*Library
	Plugins   map[string]*Plugin
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		Libraries: make(map[string]*Library),
		Plugins:   make(map[string]*Plugin),
	}
}

// Len returns the number of declared components, enabled or not.
func (r *Registry) Len() int {
	return len(r.Libraries) + len(r.Plugins)
}

// Library returns the library with the given id.
func (r *Registry) Library(id string) (*Library, bool) {
	l, ok := r.Libraries[id]
	return l, ok
}

// Enabled returns the ids of enabled plugins in ascending order.
func (r *Registry) Enabled() []string {
	var ids []string
	for id, p := range r.Plugins {
		if p.Enabled {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// IDs returns the ids of all libraries and enabled plugins in ascending order.
func (r *Registry) IDs() []string {
	ids := slices.Collect(maps.Keys(r.Libraries))
	ids = append(ids, r.Enabled()...)
	slices.Sort(ids)
	return ids
}

// Components converts the registry into the engine's input contract.
// Libraries and enabled plugins become components; disabled plugins are left
// out, so dependencies on them dangle. Each edge carries the declared
// version constraint, or nil when there is none.
func (r *Registry) Components() map[string]dag.Component {
	out := make(map[string]dag.Component, r.Len())
	for id, l := range r.Libraries {
		out[id] = component(l.Dependencies, l.Versions)
	}
	for id, p := range r.Plugins {
		if p.Enabled {
			out[id] = component(p.Dependencies, p.Versions)
		}
	}
	return out
}

func component(deps []string, versions map[string]string) dag.Component {
	if len(deps) == 0 {
		return dag.Component{}
	}
	m := make(map[string]dag.Payload, len(deps))
	for _, d := range deps {
		if v, ok := versions[d]; ok {
			m[d] = v
		} else {
			m[d] = nil
		}
	}
	return dag.Component{Dependencies: m}
}

// Merge adds every component of other to r. A component id present in both
// fails with DUPLICATE_COMPONENT and leaves r unchanged.
func (r *Registry) Merge(other *Registry) error {
	for _, id := range slices.Sorted(maps.Keys(other.Libraries)) {
		if err := r.checkFree(id, other.Libraries[id].Source); err != nil {
			return err
		}
	}
	for _, id := range slices.Sorted(maps.Keys(other.Plugins)) {
		if err := r.checkFree(id, other.Plugins[id].Source); err != nil {
			return err
		}
	}
	maps.Copy(r.Libraries, other.Libraries)
	maps.Copy(r.Plugins, other.Plugins)
	return nil
}

func (r *Registry) checkFree(id, source string) error {
	prev := ""
	if l, ok := r.Libraries[id]; ok {
		prev = l.Source
	} else if p, ok := r.Plugins[id]; ok {
		prev = p.Source
	} else {
		return nil
	}
	return errors.New(errors.ErrCodeDuplicateComponent,
		"component %q declared in %s and %s", id, prev, source)
}
