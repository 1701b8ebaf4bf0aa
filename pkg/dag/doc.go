// Package dag provides the in-memory component graph that the load order
// engine works on.
//
// # Overview
//
// A registry hands the engine a plain map of component declarations: each
// component id maps to a [Component] whose Dependencies name other
// components. [New] turns that map into a [Graph] of vertices, one per
// component, whose edges are copies of the declared dependencies:
//
//	g := dag.New(map[string]dag.Component{
//	    "jquery": {},
//	    "ui":     {Dependencies: map[string]dag.Payload{"jquery": ">=3.0"}},
//	})
//
// Building the graph is a pure data transformation. It performs no
// validation of edge targets: a dependency naming an unknown component is
// kept as data (see [Graph.Dangling]) but can never be expanded.
//
// # Payloads
//
// Every edge carries a [Payload] copied verbatim from the input. Payloads
// are typically version constraints; this package and its subpackages never
// interpret them.
//
// # Errors
//
// The sentinel errors [ErrUnknownComponent], [ErrCyclicDependency] and
// [ErrDanglingDependency] are shared by the subpackages. Their typed
// counterparts ([UnknownComponentError], [CycleError], [DanglingError])
// carry the offending ids and match the sentinels through errors.Is.
//
// # Concurrency
//
// A Graph is never modified after [New] returns and may be read from
// multiple goroutines.
//
// # Related Packages
//
// The [annotate] subpackage computes transitive closures and ranks, and the
// [order] subpackage extracts dependency-first load orders from them.
//
// [annotate]: github.com/matzehuels/loadorder/pkg/dag/annotate
// [order]: github.com/matzehuels/loadorder/pkg/dag/order
package dag
