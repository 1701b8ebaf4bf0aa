package dag

import (
	"maps"
	"slices"
)

// Payload is the opaque data attached to a dependency edge, usually a
// version constraint. It is copied verbatim and never interpreted.
type Payload = any

// Component is a component declaration as supplied by a registry.
// A nil or empty Dependencies map declares a component without dependencies.
type Component struct {
	Dependencies map[string]Payload `json:"dependencies,omitempty"`
}

// Vertex is a component in the graph together with its direct dependencies.
type Vertex struct {
	ID    string
	Edges map[string]Payload // dependency id -> payload (never nil)
}

// Dependency is a single directed edge: From requires To.
type Dependency struct {
	From    string  `json:"from"`
	To      string  `json:"to"`
	Payload Payload `json:"payload,omitempty"`
}

// Graph is the adjacency structure built from a component map.
//
// The zero value is an empty graph. Use New to build one from declarations.
type Graph struct {
	vertices map[string]*Vertex
	ids      []string
	targets  map[string][]string
}

// New builds a graph from the given component map. Each component becomes a
// vertex whose edge set is a copy of its Dependencies. Edge targets are not
// checked for existence.
func New(components map[string]Component) *Graph {
	g := &Graph{
		vertices: make(map[string]*Vertex, len(components)),
		targets:  make(map[string][]string, len(components)),
	}
	for id, c := range components {
		edges := make(map[string]Payload, len(c.Dependencies))
		maps.Copy(edges, c.Dependencies)
		g.vertices[id] = &Vertex{ID: id, Edges: edges}
		g.targets[id] = slices.Sorted(maps.Keys(edges))
	}
	g.ids = slices.Sorted(maps.Keys(g.vertices))
	return g
}

// Has reports whether id is a vertex of the graph.
func (g *Graph) Has(id string) bool {
	_, ok := g.vertices[id]
	return ok
}

// Vertex returns the vertex with the given id and true, or nil and false.
// The returned vertex must be treated as read-only.
func (g *Graph) Vertex(id string) (*Vertex, bool) {
	v, ok := g.vertices[id]
	return v, ok
}

// IDs returns all vertex ids in ascending order. The slice must not be modified.
func (g *Graph) IDs() []string { return g.ids }

// Targets returns the dependency ids of id in ascending order, including
// targets that are not vertices. The slice must not be modified.
func (g *Graph) Targets(id string) []string { return g.targets[id] }

// Len returns the number of vertices.
func (g *Graph) Len() int { return len(g.vertices) }

// EdgeCount returns the number of declared dependency edges, dangling ones included.
func (g *Graph) EdgeCount() int {
	n := 0
	for _, v := range g.vertices {
		n += len(v.Edges)
	}
	return n
}

// Dangling returns every edge whose target is not a vertex, sorted by From
// and then To. Returns nil when all targets exist.
func (g *Graph) Dangling() []Dependency {
	var out []Dependency
	for _, id := range g.ids {
		v := g.vertices[id]
		for _, to := range g.targets[id] {
			if !g.Has(to) {
				out = append(out, Dependency{From: id, To: to, Payload: v.Edges[to]})
			}
		}
	}
	return out
}

// Dependencies returns every edge of the graph sorted by From and then To.
func (g *Graph) Dependencies() []Dependency {
	out := make([]Dependency, 0, g.EdgeCount())
	for _, id := range g.ids {
		v := g.vertices[id]
		for _, to := range g.targets[id] {
			out = append(out, Dependency{From: id, To: to, Payload: v.Edges[to]})
		}
	}
	return out
}
