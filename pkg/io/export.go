package io

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"

	"github.com/matzehuels/loadorder/pkg/dag"
	"github.com/matzehuels/loadorder/pkg/dag/annotate"
)

type result struct {
	Components []record         `json:"components"`
	Cycles     [][]string       `json:"cycles,omitempty"`
	Dangling   []dag.Dependency `json:"dangling,omitempty"`
}

type record struct {
	ID           string                 `json:"id"`
	Dependencies map[string]dag.Payload `json:"dependencies,omitempty"`
	Requires     map[string]dag.Payload `json:"requires,omitempty"`
	RequiredBy   map[string]dag.Payload `json:"required_by,omitempty"`
	Group        string                 `json:"group"`
	Weight       int                    `json:"weight"`
}

// WriteResult encodes an annotated result as JSON and writes it to w.
// Components are listed in ascending id order.
func WriteResult(res *annotate.Result, w io.Writer) error {
	out := result{
		Components: make([]record, 0, len(res.Records)),
		Cycles:     res.Cycles,
		Dangling:   res.Dangling,
	}
	for _, id := range res.IDs() {
		rec := res.Records[id]
		out.Components = append(out.Components, record{
			ID:           id,
			Dependencies: rec.Edges,
			Requires:     rec.Requires,
			RequiredBy:   rec.RequiredBy,
			Group:        rec.Group,
			Weight:       rec.Weight,
		})
	}
	return encode(w, out)
}

// ExportResult writes an annotated result to a JSON file at path.
func ExportResult(res *annotate.Result, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteResult(res, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteNodeLink encodes a component map in node-link form. Nodes and edges
// are sorted so equal maps produce identical output.
func WriteNodeLink(components map[string]dag.Component, w io.Writer) error {
	out := nodeLink{Nodes: []node{}, Edges: []edge{}}
	for _, id := range slices.Sorted(maps.Keys(components)) {
		out.Nodes = append(out.Nodes, node{ID: id})
		deps := components[id].Dependencies
		for _, to := range slices.Sorted(maps.Keys(deps)) {
			out.Edges = append(out.Edges, edge{From: id, To: to, Payload: deps[to]})
		}
	}
	return encode(w, out)
}

// WriteOrder encodes a load order as {"order": [...]}.
func WriteOrder(order []string, w io.Writer) error {
	if order == nil {
		order = []string{}
	}
	return encode(w, struct {
		Order []string `json:"order"`
	}{order})
}

func encode(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}
