// Package annotate computes transitive closures and load ranks for every
// component of a [dag.Graph].
//
// # Overview
//
// [Annotate] walks the graph depth-first, treating each not-yet-visited
// vertex (in ascending id order) as a new traversal root. For every vertex
// it produces a [Record] holding:
//
//   - Requires: the full transitive set of dependencies
//   - RequiredBy: the full transitive set of dependents
//   - Group: the component group the vertex ended up in
//   - Weight: an integer rank; sorting by it in descending order yields a
//     dependency-first order
//
// Payloads from the input edges are carried into Requires and RequiredBy
// unchanged. When several paths lead to the same dependency, the payload of
// the direct edge (or the first one discovered) is kept.
//
// # Traversal
//
// The walk uses an explicit stack with a three-state marker (unvisited,
// in progress, done), so long dependency chains cannot overflow the call
// stack. Reaching a vertex that is still in progress is a positive cycle
// detection.
//
// # Component groups and weights
//
// Roots started independently may later turn out to share a dependency.
// Their vertices are then merged into one component group through a
// union-find structure ([disjoint.Set]). After the walk, each group gets a
// counter starting at 0; walking the global finish order, every vertex
// takes its group's counter as weight and the counter is decremented. The
// first vertex to finish in a group (a leaf) therefore ranks highest.
// Weights are only comparable within a group and must be treated as opaque
// ordering keys.
//
// # Cycles
//
// Cyclic input is not rejected here. The walk still terminates, cycles are
// reported in [Result.Cycles], and the closures are completed so that
// Requires(v) is exactly the set of vertices reachable from v, excluding v
// itself. Whether a cycle is an error is up to the caller.
//
// # Dangling dependencies
//
// An edge whose target is not a vertex is recorded in Requires but never
// expanded, and the target gets no record. Such edges are listed in
// [Result.Dangling].
package annotate
