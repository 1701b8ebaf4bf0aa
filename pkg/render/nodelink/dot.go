package nodelink

import (
	"bytes"
	"context"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/loadorder/pkg/dag/annotate"
	"github.com/matzehuels/loadorder/pkg/dag/scc"
)

// Options configures node-link diagram rendering.
type Options struct {
	// Detailed includes group, weight and closure sizes in node labels.
	// When false, only the component id is shown.
	Detailed bool
	// Highlight lists ids drawn with a bold outline.
	Highlight []string
}

// ToDOT converts an annotation result to Graphviz DOT format.
// The resulting DOT string can be rendered using [RenderSVG] or [RenderPNG].
func ToDOT(res *annotate.Result, opts Options) string {
	cyclic := scc.Members(res.Cycles)
	highlight := make(map[string]bool, len(opts.Highlight))
	for _, id := range opts.Highlight {
		highlight[id] = true
	}

	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=24, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  ranksep=0.5;\n")
	buf.WriteString("  nodesep=0.3;\n")
	buf.WriteString("\n")

	for _, id := range res.IDs() {
		rec := res.Records[id]
		attrs := []string{"label=" + quote(fmtLabel(rec, opts.Detailed))}
		if cyclic[id] {
			attrs = append(attrs, "fillcolor=\"#fbd5d5\"", "color=\"#c0392b\"")
		}
		if highlight[id] {
			attrs = append(attrs, "penwidth=3")
		}
		fmt.Fprintf(&buf, "  %s [%s];\n", quote(id), strings.Join(attrs, ", "))
	}

	seen := make(map[string]bool)
	for _, d := range res.Dangling {
		if seen[d.To] {
			continue
		}
		seen[d.To] = true
		fmt.Fprintf(&buf, "  %s [label=%s, style=\"rounded,dashed\", color=grey50, fontcolor=grey50];\n", quote(d.To), quote(d.To))
	}

	buf.WriteString("\n")
	for _, id := range res.IDs() {
		for _, dep := range slices.Sorted(maps.Keys(res.Records[id].Edges)) {
			if _, ok := res.Records[dep]; ok {
				fmt.Fprintf(&buf, "  %s -> %s;\n", quote(id), quote(dep))
			} else {
				fmt.Fprintf(&buf, "  %s -> %s [style=dashed, color=grey50];\n", quote(id), quote(dep))
			}
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

// dotEscaper escapes the characters DOT treats specially inside a quoted
// string. Everything else, including non-ASCII text, is written as is.
var dotEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", "")

// quote returns s as a DOT quoted string.
func quote(s string) string {
	return `"` + dotEscaper.Replace(s) + `"`
}

func fmtLabel(rec *annotate.Record, detailed bool) string {
	if !detailed {
		return rec.ID
	}
	return fmt.Sprintf("%s\ngroup: %s\nweight: %d\nrequires: %d\nrequired by: %d",
		rec.ID, rec.Group, rec.Weight, len(rec.Requires), len(rec.RequiredBy))
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	out, err := render(ctx, dot, graphviz.SVG)
	if err != nil {
		return nil, err
	}
	return normalizeViewBox(out), nil
}

// RenderPNG renders a DOT graph to PNG using Graphviz.
func RenderPNG(ctx context.Context, dot string) ([]byte, error) {
	return render(ctx, dot, graphviz.PNG)
}

func render(ctx context.Context, dot string, format graphviz.Format) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, format, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return buf.Bytes(), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox replaces Graphviz's point-based svg header with a
// viewBox anchored at the origin so the image scales in browsers.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	header := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(header))
}
