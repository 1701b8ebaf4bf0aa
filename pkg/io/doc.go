// Package io provides JSON import and export for component graphs.
//
// # Input Formats
//
// Two JSON shapes are accepted as engine input. The component map mirrors
// the engine's input contract directly:
//
//	{
//	  "app":   {"dependencies": {"lib-a": ">=2", "lib-b": null}},
//	  "lib-a": {"dependencies": {"lib-b": null}},
//	  "lib-b": {}
//	}
//
// The node-link form lists vertices and edges separately, which is what
// most graph tools emit:
//
//	{
//	  "nodes": [{"id": "app"}, {"id": "lib-a"}, {"id": "lib-b"}],
//	  "edges": [
//	    {"from": "app", "to": "lib-a", "payload": ">=2"},
//	    {"from": "lib-a", "to": "lib-b"}
//	  ]
//	}
//
// An edge from app to lib-a means app depends on lib-a. Edge targets need
// not be listed as nodes; such edges dangle.
//
// Use [ReadComponents] or [ReadNodeLink] on an io.Reader, or [ImportComponents]
// on a file path, which recognises either shape.
//
// # Output
//
// [WriteResult] encodes an annotated result: every component with its direct
// dependencies, transitive requires and required_by sets, group and weight,
// followed by detected cycles and dangling edges. [WriteNodeLink] writes the
// node-link form of a component map. Payloads are written as given; values
// JSON cannot encode make the write fail.
//
// # Concurrency
//
// All functions are safe for concurrent use. Decoded maps are owned by the
// caller.
package io
