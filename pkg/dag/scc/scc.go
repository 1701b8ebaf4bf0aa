// Package scc reports the dependency cycles of a component graph.
//
// Cycles are the strongly connected components of the graph that contain
// more than one vertex, plus single vertices that depend on themselves.
// The components are found with Tarjan's algorithm from gonum.
package scc

import (
	"slices"
	"strings"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/matzehuels/loadorder/pkg/dag"
)

// Cycles returns every cycle in g. Each cycle lists its member ids in
// ascending order, and cycles are ordered by their first member. Dangling
// edges are ignored. Returns nil for an acyclic graph.
func Cycles(g *dag.Graph) [][]string {
	ids := g.IDs()
	index := make(map[string]int64, len(ids))
	dg := simple.NewDirectedGraph()
	for i, id := range ids {
		index[id] = int64(i)
		dg.AddNode(simple.Node(i))
	}

	selfLoops := make(map[string]bool)
	for _, id := range ids {
		for _, to := range g.Targets(id) {
			j, ok := index[to]
			if !ok {
				continue
			}
			if to == id {
				// gonum's simple graphs reject self edges
				selfLoops[id] = true
				continue
			}
			dg.SetEdge(dg.NewEdge(dg.Node(index[id]), dg.Node(j)))
		}
	}

	var cycles [][]string
	for _, comp := range topo.TarjanSCC(dg) {
		if len(comp) == 1 && !selfLoops[ids[comp[0].ID()]] {
			continue
		}
		members := make([]string, len(comp))
		for i, n := range comp {
			members[i] = ids[n.ID()]
		}
		slices.Sort(members)
		cycles = append(cycles, members)
	}
	slices.SortFunc(cycles, func(a, b []string) int { return strings.Compare(a[0], b[0]) })
	return cycles
}

// Members returns the set of ids that take part in any of the given cycles.
func Members(cycles [][]string) map[string]bool {
	m := make(map[string]bool)
	for _, c := range cycles {
		for _, id := range c {
			m[id] = true
		}
	}
	return m
}
