package io

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/matzehuels/loadorder/pkg/dag"
)

type nodeLink struct {
	Nodes []node `json:"nodes"`
	Edges []edge `json:"edges"`
}

type node struct {
	ID string `json:"id"`
}

type edge struct {
	From    string      `json:"from"`
	To      string      `json:"to"`
	Payload dag.Payload `json:"payload,omitempty"`
}

// ReadComponents decodes a component map from r.
//
// Unknown fields inside a component object are rejected so that a misspelt
// "dependencies" key does not silently drop edges. A null component is an
// empty component. ReadComponents does not close r.
func ReadComponents(r io.Reader) (map[string]dag.Component, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	var out map[string]dag.Component
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if out == nil {
		out = map[string]dag.Component{}
	}
	return out, nil
}

// ReadNodeLink decodes the node-link form from r into a component map.
//
// ReadNodeLink returns an error if a node id is empty or repeated, or if an
// edge leaves a node that is not listed. Repeated edges keep the last
// payload. ReadNodeLink does not close r.
func ReadNodeLink(r io.Reader) (map[string]dag.Component, error) {
	var data nodeLink
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	out := make(map[string]dag.Component, len(data.Nodes))
	for _, n := range data.Nodes {
		if n.ID == "" {
			return nil, fmt.Errorf("node with empty id")
		}
		if _, dup := out[n.ID]; dup {
			return nil, fmt.Errorf("node %s: duplicate id", n.ID)
		}
		out[n.ID] = dag.Component{}
	}
	for _, e := range data.Edges {
		c, ok := out[e.From]
		if !ok {
			return nil, fmt.Errorf("edge %s->%s: unknown source node", e.From, e.To)
		}
		if c.Dependencies == nil {
			c.Dependencies = make(map[string]dag.Payload)
			out[e.From] = c
		}
		c.Dependencies[e.To] = e.Payload
	}
	return out, nil
}

// ImportComponents reads a JSON file at path in either input shape. A
// document whose only keys are "nodes" and "edges", both holding arrays, is
// read as node-link; anything else as a component map.
func ImportComponents(path string) (map[string]dag.Component, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	read := ReadComponents
	if isNodeLink(data) {
		read = ReadNodeLink
	}
	out, err := read(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return out, nil
}

func isNodeLink(data []byte) bool {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil || len(top) != 2 {
		return false
	}
	for _, key := range []string{"nodes", "edges"} {
		raw, ok := top[key]
		if !ok {
			return false
		}
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 || raw[0] != '[' {
			return false
		}
	}
	return true
}
