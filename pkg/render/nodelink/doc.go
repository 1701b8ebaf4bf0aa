// Package nodelink renders annotated component graphs as node-link diagrams.
//
// # Overview
//
// Components appear as boxes with an arrow from each component to every
// component it depends on. Dependencies on ids outside the graph are drawn
// as dashed grey boxes, and members of a dependency cycle are filled red so
// that a rejected build can be inspected visually.
//
// # Usage
//
// Convert an annotation result to DOT, then render it:
//
//	dot := nodelink.ToDOT(res, nodelink.Options{Detailed: true})
//	svg, err := nodelink.RenderSVG(ctx, dot)
//	png, err := nodelink.RenderPNG(ctx, dot)
//
// # Options
//
// The [Options] struct controls diagram generation:
//
//   - Detailed: node labels include group, weight and closure sizes
//   - Highlight: ids drawn with a bold outline, typically a load order
//
// # DOT Format
//
// The [ToDOT] function produces Graphviz DOT source that can be:
//
//   - Rendered directly via [RenderSVG] or [RenderPNG]
//   - Saved and processed with external Graphviz tools
//
// Output is deterministic: vertices and edges are emitted in ascending id
// order.
//
// # Dependencies
//
// This package uses [github.com/goccy/go-graphviz] for in-process rendering,
// so no Graphviz installation is required.
package nodelink
