package nodelink

import (
	"context"
	"strings"
	"testing"

	"github.com/matzehuels/loadorder/pkg/dag"
	"github.com/matzehuels/loadorder/pkg/dag/annotate"
)

func annotated(components map[string]dag.Component) *annotate.Result {
	return annotate.Annotate(dag.New(components), annotate.Options{})
}

func TestToDOT(t *testing.T) {
	res := annotated(map[string]dag.Component{
		"core": {},
		"ui":   {Dependencies: map[string]dag.Payload{"core": nil, "optional": nil}},
	})

	dot := ToDOT(res, Options{Highlight: []string{"ui"}})

	for _, want := range []string{
		"digraph G {",
		`"core" [label="core"];`,
		`"ui" [label="ui", penwidth=3];`,
		`"ui" -> "core";`,
		`"ui" -> "optional" [style=dashed, color=grey50];`,
		`"optional" [label="optional", style="rounded,dashed"`,
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("DOT missing %q:\n%s", want, dot)
		}
	}
}

func TestToDOT_Deterministic(t *testing.T) {
	components := map[string]dag.Component{
		"a": {}, "b": {Dependencies: map[string]dag.Payload{"a": nil}},
		"c": {Dependencies: map[string]dag.Payload{"a": nil, "b": nil}},
	}
	first := ToDOT(annotated(components), Options{Detailed: true})
	for i := 0; i < 5; i++ {
		if again := ToDOT(annotated(components), Options{Detailed: true}); again != first {
			t.Fatalf("ToDOT output changed between runs:\n%s\n%s", first, again)
		}
	}
}

func TestToDOT_Detailed(t *testing.T) {
	res := annotated(map[string]dag.Component{
		"a": {},
		"b": {Dependencies: map[string]dag.Payload{"a": nil}},
	})
	dot := ToDOT(res, Options{Detailed: true})
	if !strings.Contains(dot, `weight: -1`) || !strings.Contains(dot, `required by: 1`) {
		t.Errorf("detailed labels missing annotation:\n%s", dot)
	}
}

func TestToDOT_MarksCycles(t *testing.T) {
	res := annotated(map[string]dag.Component{
		"a": {Dependencies: map[string]dag.Payload{"b": nil}},
		"b": {Dependencies: map[string]dag.Payload{"a": nil}},
		"c": {},
	})
	dot := ToDOT(res, Options{})
	if strings.Count(dot, `fillcolor="#fbd5d5"`) != 2 {
		t.Errorf("expected both cycle members filled:\n%s", dot)
	}
}

func TestNormalizeViewBox(t *testing.T) {
	in := []byte(`<svg width="100pt" height="50pt" viewBox="0.00 0.00 100.00 50.00" xmlns="http://www.w3.org/2000/svg"><g/></svg>`)
	out := string(normalizeViewBox(in))
	if !strings.Contains(out, `viewBox="0 0 100.00 50.00" width="100" height="50"`) {
		t.Errorf("normalizeViewBox = %s", out)
	}
	if got := normalizeViewBox([]byte("<svg>")); string(got) != "<svg>" {
		t.Errorf("svg without viewBox should pass through, got %s", got)
	}
}

func TestRenderSVG(t *testing.T) {
	if testing.Short() {
		t.Skip("graphviz rendering is slow")
	}
	res := annotated(map[string]dag.Component{
		"a": {}, "b": {Dependencies: map[string]dag.Payload{"a": nil}},
	})
	svg, err := RenderSVG(context.Background(), ToDOT(res, Options{}))
	if err != nil {
		t.Fatalf("RenderSVG error: %v", err)
	}
	if !strings.Contains(string(svg), "<svg") {
		t.Errorf("RenderSVG output is not SVG: %.80s", svg)
	}
}

func TestToDOT_Escaping(t *testing.T) {
	tests := []struct {
		name string
		id   string
		want string
	}{
		{"plain", "core", `"core"`},
		{"quote", `say "hi"`, `"say \"hi\""`},
		{"backslash", `C:\lib`, `"C:\\lib"`},
		{"non-ascii", "café", `"café"`},
		{"zero width", "a\u200bb", "\"a\u200bb\""},
		{"newline", "a\nb", `"a\nb"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := quote(tt.id); got != tt.want {
				t.Errorf("quote(%q) = %s, want %s", tt.id, got, tt.want)
			}

			res := annotated(map[string]dag.Component{
				tt.id: {},
				"ui":  {Dependencies: map[string]dag.Payload{tt.id: nil}},
			})
			dot := ToDOT(res, Options{})
			for _, want := range []string{
				"  " + tt.want + " [label=" + tt.want + "];",
				`  "ui" -> ` + tt.want + ";",
			} {
				if !strings.Contains(dot, want) {
					t.Errorf("DOT missing %s:\n%s", want, dot)
				}
			}
		})
	}
}
