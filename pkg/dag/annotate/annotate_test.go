package annotate

import (
	"bytes"
	"fmt"
	"maps"
	"math/rand"
	"reflect"
	"slices"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/loadorder/pkg/dag"
)

func deps(ids ...string) dag.Component {
	m := make(map[string]dag.Payload, len(ids))
	for _, id := range ids {
		m[id] = nil
	}
	return dag.Component{Dependencies: m}
}

func keys(m map[string]dag.Payload) []string { return slices.Sorted(maps.Keys(m)) }

func diamond() map[string]dag.Component {
	return map[string]dag.Component{
		"A": {},
		"B": deps("A"),
		"C": deps("A"),
		"D": deps("B", "C"),
	}
}

func TestAnnotate_Diamond(t *testing.T) {
	res := Annotate(dag.New(diamond()), Options{})

	wantRequires := map[string][]string{
		"A": {},
		"B": {"A"},
		"C": {"A"},
		"D": {"A", "B", "C"},
	}
	wantRequiredBy := map[string][]string{
		"A": {"B", "C", "D"},
		"B": {"D"},
		"C": {"D"},
		"D": {},
	}
	for id, want := range wantRequires {
		rec, ok := res.Record(id)
		if !ok {
			t.Fatalf("Record(%s) missing", id)
		}
		if got := keys(rec.Requires); !slices.Equal(got, want) {
			t.Errorf("Requires(%s) = %v, want %v", id, got, want)
		}
		if got := keys(rec.RequiredBy); !slices.Equal(got, wantRequiredBy[id]) {
			t.Errorf("RequiredBy(%s) = %v, want %v", id, got, wantRequiredBy[id])
		}
	}

	if res.HasCycles() {
		t.Errorf("Cycles = %v, want none", res.Cycles)
	}
}

func TestAnnotate_WeightsFollowFinishOrder(t *testing.T) {
	res := Annotate(dag.New(diamond()), Options{})

	// Roots are taken in ascending order: A finishes alone, then B, C and D
	// each start a root that merges into A's group.
	if got, want := res.FinishOrder, []string{"A", "B", "C", "D"}; !slices.Equal(got, want) {
		t.Fatalf("FinishOrder = %v, want %v", got, want)
	}
	for i, id := range res.FinishOrder {
		rec := res.Records[id]
		if rec.Weight != -i {
			t.Errorf("Weight(%s) = %d, want %d", id, rec.Weight, -i)
		}
		if rec.Group != res.Records["A"].Group {
			t.Errorf("Group(%s) = %q, want the group of A", id, rec.Group)
		}
	}
}

func TestAnnotate_LateMergingTrees(t *testing.T) {
	res := Annotate(dag.New(map[string]dag.Component{
		"X": {},
		"Y": deps("X"),
		"Z": {},
		"W": deps("Z", "Y"),
	}), Options{})

	group := res.Records["W"].Group
	for _, id := range []string{"X", "Y", "Z"} {
		if res.Records[id].Group != group {
			t.Errorf("Group(%s) = %q, want %q", id, res.Records[id].Group, group)
		}
	}

	w := func(id string) int { return res.Records[id].Weight }
	if !(w("X") > w("Y") && w("Y") > w("W") && w("Z") > w("W")) {
		t.Errorf("weights X=%d Y=%d Z=%d W=%d violate dependency order", w("X"), w("Y"), w("Z"), w("W"))
	}
}

func TestAnnotate_MergesGroupsAcrossRoots(t *testing.T) {
	// "a" and "b" are visited as separate roots; "c" later connects them.
	res := Annotate(dag.New(map[string]dag.Component{
		"a": {},
		"b": {},
		"c": deps("a", "b"),
	}), Options{})

	if res.Records["a"].Group != res.Records["b"].Group {
		t.Fatalf("groups of a (%q) and b (%q) should be merged", res.Records["a"].Group, res.Records["b"].Group)
	}

	seen := make(map[int]string)
	for id, rec := range res.Records {
		if other, dup := seen[rec.Weight]; dup {
			t.Errorf("weight %d shared by %s and %s within one group", rec.Weight, id, other)
		}
		seen[rec.Weight] = id
	}
	if res.Records["c"].Weight >= res.Records["a"].Weight || res.Records["c"].Weight >= res.Records["b"].Weight {
		t.Errorf("c must rank below a and b")
	}
}

func TestAnnotate_IndependentGroupsStartAtZero(t *testing.T) {
	res := Annotate(dag.New(map[string]dag.Component{
		"a1": {}, "a2": deps("a1"),
		"b1": {}, "b2": deps("b1"),
	}), Options{})

	if res.Records["a1"].Group == res.Records["b1"].Group {
		t.Fatal("unconnected components should not share a group")
	}
	for _, id := range []string{"a1", "b1"} {
		if res.Records[id].Weight != 0 {
			t.Errorf("Weight(%s) = %d, want 0", id, res.Records[id].Weight)
		}
	}
	for _, id := range []string{"a2", "b2"} {
		if res.Records[id].Weight != -1 {
			t.Errorf("Weight(%s) = %d, want -1", id, res.Records[id].Weight)
		}
	}
}

func TestAnnotate_PayloadsCopied(t *testing.T) {
	res := Annotate(dag.New(map[string]dag.Component{
		"core": {},
		"lib":  {Dependencies: map[string]dag.Payload{"core": ">=2.0"}},
		"app":  {Dependencies: map[string]dag.Payload{"lib": "~1.4", "core": "^2.1"}},
	}), Options{})

	app := res.Records["app"]
	if app.Requires["lib"] != "~1.4" {
		t.Errorf("Requires(app)[lib] = %v, want ~1.4", app.Requires["lib"])
	}
	// direct edge wins over the payload inherited through lib
	if app.Requires["core"] != "^2.1" {
		t.Errorf("Requires(app)[core] = %v, want ^2.1", app.Requires["core"])
	}
	if got := res.Records["core"].RequiredBy["lib"]; got != ">=2.0" {
		t.Errorf("RequiredBy(core)[lib] = %v, want >=2.0", got)
	}
	if got := res.Records["core"].RequiredBy["app"]; got != "^2.1" {
		t.Errorf("RequiredBy(core)[app] = %v, want ^2.1", got)
	}
}

func TestAnnotate_Dangling(t *testing.T) {
	res := Annotate(dag.New(map[string]dag.Component{
		"a": deps("b", "ghost"),
		"b": {},
	}), Options{})

	if got, want := keys(res.Records["a"].Requires), []string{"b", "ghost"}; !slices.Equal(got, want) {
		t.Errorf("Requires(a) = %v, want %v", got, want)
	}
	if _, ok := res.Record("ghost"); ok {
		t.Error("dangling target must not get a record")
	}
	if len(res.Dangling) != 1 || res.Dangling[0].To != "ghost" {
		t.Errorf("Dangling = %v, want a -> ghost", res.Dangling)
	}
}

func TestAnnotate_TwoCycle(t *testing.T) {
	res := Annotate(dag.New(map[string]dag.Component{
		"A": deps("B"),
		"B": deps("A"),
	}), Options{})

	if !reflect.DeepEqual(res.Cycles, [][]string{{"A", "B"}}) {
		t.Fatalf("Cycles = %v, want [[A B]]", res.Cycles)
	}
	if got := keys(res.Records["A"].Requires); !slices.Equal(got, []string{"B"}) {
		t.Errorf("Requires(A) = %v, want [B]", got)
	}
	if got := keys(res.Records["B"].Requires); !slices.Equal(got, []string{"A"}) {
		t.Errorf("Requires(B) = %v, want [A]", got)
	}
	if len(res.FinishOrder) != 2 {
		t.Errorf("FinishOrder = %v, want both vertices", res.FinishOrder)
	}
}

func TestAnnotate_CycleClosuresAreComplete(t *testing.T) {
	// x -> y -> z -> x, and z also needs leaf; app depends on x.
	res := Annotate(dag.New(map[string]dag.Component{
		"app":  deps("x"),
		"x":    deps("y"),
		"y":    deps("z"),
		"z":    deps("x", "leaf"),
		"leaf": {},
	}), Options{})

	want := map[string][]string{
		"app":  {"leaf", "x", "y", "z"},
		"x":    {"leaf", "y", "z"},
		"y":    {"leaf", "x", "z"},
		"z":    {"leaf", "x", "y"},
		"leaf": {},
	}
	for id, w := range want {
		if got := keys(res.Records[id].Requires); !slices.Equal(got, w) {
			t.Errorf("Requires(%s) = %v, want %v", id, got, w)
		}
	}
	if got := keys(res.Records["leaf"].RequiredBy); !slices.Equal(got, []string{"app", "x", "y", "z"}) {
		t.Errorf("RequiredBy(leaf) = %v", got)
	}
}

func TestAnnotate_SelfLoop(t *testing.T) {
	res := Annotate(dag.New(map[string]dag.Component{"a": deps("a")}), Options{})

	if !reflect.DeepEqual(res.Cycles, [][]string{{"a"}}) {
		t.Errorf("Cycles = %v, want [[a]]", res.Cycles)
	}
	if len(res.Records["a"].Requires) != 0 {
		t.Errorf("Requires(a) = %v, want empty", keys(res.Records["a"].Requires))
	}
}

func TestAnnotate_Empty(t *testing.T) {
	res := Annotate(dag.New(nil), Options{})
	if len(res.Records) != 0 || len(res.FinishOrder) != 0 {
		t.Errorf("empty graph produced %d records", len(res.Records))
	}
}

func TestAnnotate_LongChain(t *testing.T) {
	const n = 3000
	components := make(map[string]dag.Component, n)
	for i := 0; i < n; i++ {
		if i == 0 {
			components["n0"] = dag.Component{}
			continue
		}
		components[fmt.Sprintf("n%d", i)] = deps(fmt.Sprintf("n%d", i-1))
	}

	res := Annotate(dag.New(components), Options{})
	if len(res.FinishOrder) != n {
		t.Fatalf("FinishOrder has %d entries, want %d", len(res.FinishOrder), n)
	}
	if res.Records["n0"].Weight <= res.Records["n1"].Weight {
		t.Error("n0 should rank above n1")
	}
}

func TestAnnotate_Idempotent(t *testing.T) {
	input := randomDAG(rand.New(rand.NewSource(7)), 60, 0.1)

	first := Annotate(dag.New(input), Options{})
	for i := 0; i < 5; i++ {
		again := Annotate(dag.New(input), Options{})
		for id, rec := range first.Records {
			other := again.Records[id]
			if !slices.Equal(keys(rec.Requires), keys(other.Requires)) {
				t.Fatalf("run %d: Requires(%s) changed", i, id)
			}
			if !slices.Equal(keys(rec.RequiredBy), keys(other.RequiredBy)) {
				t.Fatalf("run %d: RequiredBy(%s) changed", i, id)
			}
			if rec.Weight != other.Weight {
				t.Fatalf("run %d: Weight(%s) changed from %d to %d", i, id, rec.Weight, other.Weight)
			}
		}
	}
}

func TestAnnotate_RandomDAGProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for round := 0; round < 25; round++ {
		input := randomDAG(rng, 40, 0.08)
		res := Annotate(dag.New(input), Options{})

		if res.HasCycles() {
			t.Fatalf("round %d: random DAG reported cycles %v", round, res.Cycles)
		}

		for id := range input {
			want := reachable(input, id)
			if got := keys(res.Records[id].Requires); !slices.Equal(got, want) {
				t.Fatalf("round %d: Requires(%s) = %v, want %v", round, id, got, want)
			}
		}

		for v, rec := range res.Records {
			for d := range rec.Requires {
				target := res.Records[d]
				if _, ok := target.RequiredBy[v]; !ok {
					t.Fatalf("round %d: %s requires %s but RequiredBy(%s) lacks %s", round, v, d, d, v)
				}
				if target.Group != rec.Group {
					t.Fatalf("round %d: %s and its dependency %s are in different groups", round, v, d)
				}
				if target.Weight <= rec.Weight {
					t.Fatalf("round %d: Weight(%s)=%d must exceed Weight(%s)=%d", round, d, target.Weight, v, rec.Weight)
				}
			}
			for d := range rec.RequiredBy {
				if _, ok := res.Records[d].Requires[v]; !ok {
					t.Fatalf("round %d: RequiredBy(%s) has %s without the matching Requires", round, v, d)
				}
			}
		}

		// weights within a group are 0, -1, -2, ... in finish order
		next := make(map[string]int)
		for _, id := range res.FinishOrder {
			rec := res.Records[id]
			if rec.Weight != next[rec.Group] {
				t.Fatalf("round %d: Weight(%s) = %d, want %d", round, id, rec.Weight, next[rec.Group])
			}
			next[rec.Group]--
		}
	}
}

func TestAnnotate_Logger(t *testing.T) {
	var buf bytes.Buffer
	logger := log.NewWithOptions(&buf, log.Options{Level: log.DebugLevel})

	Annotate(dag.New(map[string]dag.Component{"a": deps("b"), "b": deps("a")}), Options{Logger: logger})

	out := buf.String()
	for _, want := range []string{"traversal root", "back edge", "cycles detected"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}

// randomDAG builds an acyclic component map: vertex i may only depend on
// vertices with a smaller index. Ids are shuffled so the traversal order
// does not follow the construction order.
func randomDAG(rng *rand.Rand, n int, p float64) map[string]dag.Component {
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("c%03d", i)
	}
	rng.Shuffle(n, func(i, j int) { names[i], names[j] = names[j], names[i] })

	out := make(map[string]dag.Component, n)
	for i := 0; i < n; i++ {
		var ds []string
		for j := 0; j < i; j++ {
			if rng.Float64() < p {
				ds = append(ds, names[j])
			}
		}
		out[names[i]] = deps(ds...)
	}
	return out
}

// reachable computes the transitive dependencies of id by breadth-first search.
func reachable(components map[string]dag.Component, id string) []string {
	seen := make(map[string]bool)
	queue := []string{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for d := range components[cur].Dependencies {
			if !seen[d] {
				seen[d] = true
				queue = append(queue, d)
			}
		}
	}
	out := make([]string, 0, len(seen))
	for d := range seen {
		if d != id {
			out = append(out, d)
		}
	}
	slices.Sort(out)
	return out
}
