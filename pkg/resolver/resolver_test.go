package resolver

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"math/rand"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/loadorder/pkg/cache"
	"github.com/matzehuels/loadorder/pkg/dag"
	"github.com/matzehuels/loadorder/pkg/errors"
	"github.com/matzehuels/loadorder/pkg/observability"
)

func deps(ids ...string) dag.Component {
	m := make(map[string]dag.Payload, len(ids))
	for _, id := range ids {
		m[id] = nil
	}
	return dag.Component{Dependencies: m}
}

func quiet() *log.Logger {
	return log.New(&bytes.Buffer{})
}

func diamond() map[string]dag.Component {
	return map[string]dag.Component{
		"A": {},
		"B": deps("A"),
		"C": deps("A"),
		"D": deps("B", "C"),
	}
}

func TestParsePolicies(t *testing.T) {
	tests := []struct {
		in      string
		cycles  CyclePolicy
		wantErr bool
	}{
		{"", CyclesReject, false},
		{"reject", CyclesReject, false},
		{" Tolerate ", CyclesTolerate, false},
		{"ignore", "", true},
	}
	for _, tt := range tests {
		t.Run("cycles/"+tt.in, func(t *testing.T) {
			got, err := ParseCyclePolicy(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseCyclePolicy(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, errors.ErrCodeInvalidPolicy) {
				t.Errorf("code = %v, want INVALID_POLICY", errors.GetCode(err))
			}
			if got != tt.cycles {
				t.Errorf("ParseCyclePolicy(%q) = %q, want %q", tt.in, got, tt.cycles)
			}
		})
	}

	if p, err := ParseDanglingPolicy(""); err != nil || p != DanglingIgnore {
		t.Errorf("ParseDanglingPolicy(\"\") = %q, %v", p, err)
	}
	if p, err := ParseDanglingPolicy("REJECT"); err != nil || p != DanglingReject {
		t.Errorf("ParseDanglingPolicy(REJECT) = %q, %v", p, err)
	}
	if _, err := ParseDanglingPolicy("tolerate"); err == nil {
		t.Error("ParseDanglingPolicy(tolerate) should fail")
	}
}

func TestNewDefaults(t *testing.T) {
	r := New(nil, nil, nil, Options{})
	if r.Options.Cycles != CyclesReject || r.Options.Dangling != DanglingIgnore {
		t.Errorf("default policies = %q/%q", r.Options.Cycles, r.Options.Dangling)
	}
	if r.Options.TTL != DefaultTTL {
		t.Errorf("default TTL = %v, want %v", r.Options.TTL, DefaultTTL)
	}
	if _, ok := r.Cache.(*cache.NullCache); !ok {
		t.Errorf("default cache = %T, want *cache.NullCache", r.Cache)
	}
}

func TestBuild_RequiresAndRequiredByAgree(t *testing.T) {
	r := New(nil, nil, quiet(), Options{})
	rng := rand.New(rand.NewSource(3))

	for round := 0; round < 20; round++ {
		res, err := r.Build(context.Background(), randomDAG(rng, 30, 0.12))
		if err != nil {
			t.Fatalf("round %d: Build error: %v", round, err)
		}
		for v, rec := range res.Records {
			for d := range rec.Requires {
				if _, ok := res.Records[d].RequiredBy[v]; !ok {
					t.Fatalf("round %d: %s requires %s but is not in its RequiredBy", round, v, d)
				}
			}
			for w := range rec.RequiredBy {
				if _, ok := res.Records[w].Requires[v]; !ok {
					t.Fatalf("round %d: %s required by %s but not in its Requires", round, v, w)
				}
			}
		}
	}
}

func TestBuild_Idempotent(t *testing.T) {
	r := New(nil, nil, quiet(), Options{})
	components := randomDAG(rand.New(rand.NewSource(5)), 40, 0.1)

	first, err := r.Build(context.Background(), components)
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	second, err := r.Build(context.Background(), components)
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}

	for id, a := range first.Records {
		b := second.Records[id]
		if !sameKeys(a.Requires, b.Requires) || !sameKeys(a.RequiredBy, b.RequiredBy) {
			t.Fatalf("%s: closures differ between builds", id)
		}
		if a.Weight != b.Weight {
			t.Fatalf("%s: weight %d vs %d", id, a.Weight, b.Weight)
		}
	}
}

func TestBuild_RejectsCyclesByDefault(t *testing.T) {
	r := New(nil, nil, quiet(), Options{})

	_, err := r.Build(context.Background(), map[string]dag.Component{
		"A": deps("B"),
		"B": deps("A"),
		"C": deps("A"),
	})
	if !errors.Is(err, errors.ErrCodeCyclicDependency) {
		t.Fatalf("err = %v, want CYCLIC_DEPENDENCY", err)
	}
	if !stderrors.Is(err, dag.ErrCyclicDependency) {
		t.Error("error chain should reach dag.ErrCyclicDependency")
	}
	var ce *dag.CycleError
	if !stderrors.As(err, &ce) {
		t.Fatalf("err = %T, want *dag.CycleError in chain", err)
	}
	if len(ce.Cycles) != 1 || !slices.Equal(ce.Cycles[0], []string{"A", "B"}) {
		t.Errorf("Cycles = %v, want [[A B]]", ce.Cycles)
	}
}

func TestBuild_ToleratedCycleTerminates(t *testing.T) {
	r := New(nil, nil, quiet(), Options{Cycles: CyclesTolerate})
	ctx := context.Background()

	res, err := r.Build(ctx, map[string]dag.Component{
		"A": deps("B"),
		"B": deps("A"),
	})
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	if !res.HasCycles() {
		t.Error("result should report the cycle")
	}

	got, err := r.Sort(ctx, []string{"A"}, res)
	if err != nil {
		t.Fatalf("Sort error: %v", err)
	}
	slices.Sort(got)
	if !slices.Equal(got, []string{"A", "B"}) {
		t.Errorf("Sort = %v, want A and B", got)
	}
}

func TestBuild_DanglingPolicies(t *testing.T) {
	components := map[string]dag.Component{
		"app": deps("lib", "optional"),
		"lib": {},
	}
	ctx := context.Background()

	res, err := New(nil, nil, quiet(), Options{}).Build(ctx, components)
	if err != nil {
		t.Fatalf("Build (ignore) error: %v", err)
	}
	if _, ok := res.Records["app"].Requires["optional"]; !ok {
		t.Error("dangling id should stay in Requires")
	}

	_, err = New(nil, nil, quiet(), Options{Dangling: DanglingReject}).Build(ctx, components)
	if !errors.Is(err, errors.ErrCodeDanglingDependency) {
		t.Fatalf("err = %v, want DANGLING_DEPENDENCY", err)
	}
	var de *dag.DanglingError
	if !stderrors.As(err, &de) || len(de.Edges) != 1 || de.Edges[0].To != "optional" {
		t.Errorf("DanglingError = %+v, want app -> optional", de)
	}
}

func TestBuild_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(nil, nil, quiet(), Options{}).Build(ctx, diamond())
	if !stderrors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestSort(t *testing.T) {
	r := New(nil, nil, quiet(), Options{})
	ctx := context.Background()
	res, err := r.Build(ctx, diamond())
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}

	tests := []struct {
		name    string
		ids     []string
		want    []string
		wantErr errors.Code
	}{
		{name: "empty", ids: nil, want: []string{}},
		{name: "leaf", ids: []string{"A"}, want: []string{"A"}},
		{name: "diamond", ids: []string{"D"}, want: []string{"A", "B", "C", "D"}},
		{name: "unknown", ids: []string{"unknown"}, wantErr: errors.ErrCodeUnknownComponent},
		{name: "mixed unknown", ids: []string{"D", "nope"}, wantErr: errors.ErrCodeUnknownComponent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Sort(ctx, tt.ids, res)
			if tt.wantErr != "" {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %s", err, tt.wantErr)
				}
				if len(got) != 0 {
					t.Errorf("Sort = %v, want empty on error", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Sort error: %v", err)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("Sort = %v, want %v", got, tt.want)
			}
		})
	}

	if _, err := r.Sort(ctx, []string{"A"}, nil); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("Sort(nil result) err = %v, want INVALID_INPUT", err)
	}
}

func TestSort_DependenciesFirst(t *testing.T) {
	r := New(nil, nil, quiet(), Options{})
	ctx := context.Background()
	rng := rand.New(rand.NewSource(11))

	for round := 0; round < 25; round++ {
		res, err := r.Build(ctx, randomDAG(rng, 40, 0.08))
		if err != nil {
			t.Fatalf("Build error: %v", err)
		}
		ids := res.IDs()
		got, err := r.Sort(ctx, []string{ids[rng.Intn(len(ids))]}, res)
		if err != nil {
			t.Fatalf("Sort error: %v", err)
		}
		pos := make(map[string]int, len(got))
		for i, id := range got {
			pos[id] = i
		}
		for _, v := range got {
			for d := range res.Records[v].Requires {
				if pos[d] >= pos[v] {
					t.Fatalf("round %d: %s must precede %s in %v", round, d, v, got)
				}
			}
		}
	}
}

func TestResolve_Memoizes(t *testing.T) {
	mem, err := cache.NewMemoryCache(16)
	if err != nil {
		t.Fatalf("NewMemoryCache error: %v", err)
	}
	hooks := &countingCacheHooks{}
	observability.SetCacheHooks(hooks)
	defer observability.Reset()

	r := New(mem, nil, quiet(), Options{TTL: time.Minute})
	ctx := context.Background()

	first, hit, err := r.ResolveWithCacheInfo(ctx, []string{"D"}, diamond())
	if err != nil || hit {
		t.Fatalf("first Resolve = %v, hit=%v, err=%v", first, hit, err)
	}
	second, hit, err := r.ResolveWithCacheInfo(ctx, []string{"D"}, diamond())
	if err != nil || !hit {
		t.Fatalf("second Resolve = %v, hit=%v, err=%v; want cache hit", second, hit, err)
	}
	if !slices.Equal(first, second) {
		t.Errorf("cached order %v differs from computed %v", second, first)
	}
	if hooks.hits != 1 || hooks.misses != 1 || hooks.sets != 1 {
		t.Errorf("hooks = %+v, want 1 hit, 1 miss, 1 set", *hooks)
	}

	// A different policy must not reuse the entry.
	r.Options.Cycles = CyclesTolerate
	if _, hit, _ := r.ResolveWithCacheInfo(ctx, []string{"D"}, diamond()); hit {
		t.Error("changing the cycle policy should miss the cache")
	}
}

func TestResolve_ErrorsAreNotCached(t *testing.T) {
	mem, _ := cache.NewMemoryCache(16)
	r := New(mem, nil, quiet(), Options{})

	_, err := r.Resolve(context.Background(), []string{"missing"}, diamond())
	if !errors.Is(err, errors.ErrCodeUnknownComponent) {
		t.Fatalf("err = %v, want UNKNOWN_COMPONENT", err)
	}
	if n := mem.(*cache.MemoryCache).Len(); n != 0 {
		t.Errorf("cache holds %d entries after a failed resolve", n)
	}
}

func TestResolve_UnencodablePayload(t *testing.T) {
	mem, _ := cache.NewMemoryCache(16)
	r := New(mem, nil, quiet(), Options{})

	components := map[string]dag.Component{
		"a": {},
		"b": {Dependencies: map[string]dag.Payload{"a": func() {}}},
	}
	got, hit, err := r.ResolveWithCacheInfo(context.Background(), []string{"b"}, components)
	if err != nil || hit {
		t.Fatalf("Resolve = %v, hit=%v, err=%v", got, hit, err)
	}
	if !slices.Equal(got, []string{"a", "b"}) {
		t.Errorf("Resolve = %v, want [a b]", got)
	}
	if n := mem.(*cache.MemoryCache).Len(); n != 0 {
		t.Errorf("unencodable graph should not be memoized, cache holds %d", n)
	}
}

func TestResolve_LogsRunID(t *testing.T) {
	var buf bytes.Buffer
	logger := log.NewWithOptions(&buf, log.Options{Level: log.DebugLevel})
	r := New(nil, nil, logger, Options{})

	if _, err := r.Resolve(context.Background(), []string{"D"}, diamond()); err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if !strings.Contains(buf.String(), "run=") {
		t.Errorf("log output missing run id:\n%s", buf.String())
	}
}

func TestResolverHooks(t *testing.T) {
	hooks := &recordingResolverHooks{}
	observability.SetResolverHooks(hooks)
	defer observability.Reset()

	r := New(nil, nil, quiet(), Options{})
	_, _ = r.Resolve(context.Background(), []string{"D"}, diamond())
	_, _ = r.Build(context.Background(), map[string]dag.Component{"A": deps("A")})

	want := []string{
		"build-start 4", "build-complete 4 0 ok",
		"sort-start 1", "sort-complete 1 4 ok",
		"build-start 1", "build-complete 1 1 err",
	}
	if !slices.Equal(hooks.events, want) {
		t.Errorf("events = %v\nwant %v", hooks.events, want)
	}
}

type countingCacheHooks struct {
	observability.NoopCacheHooks
	hits, misses, sets int
}

func (h *countingCacheHooks) OnCacheHit(context.Context, string)      { h.hits++ }
func (h *countingCacheHooks) OnCacheMiss(context.Context, string)     { h.misses++ }
func (h *countingCacheHooks) OnCacheSet(context.Context, string, int) { h.sets++ }

type recordingResolverHooks struct {
	events []string
}

func (h *recordingResolverHooks) OnBuildStart(_ context.Context, n int) {
	h.events = append(h.events, fmt.Sprintf("build-start %d", n))
}

func (h *recordingResolverHooks) OnBuildComplete(_ context.Context, n, cycles int, _ time.Duration, err error) {
	h.events = append(h.events, fmt.Sprintf("build-complete %d %d %s", n, cycles, status(err)))
}

func (h *recordingResolverHooks) OnSortStart(_ context.Context, n int) {
	h.events = append(h.events, fmt.Sprintf("sort-start %d", n))
}

func (h *recordingResolverHooks) OnSortComplete(_ context.Context, n, ordered int, _ time.Duration, err error) {
	h.events = append(h.events, fmt.Sprintf("sort-complete %d %d %s", n, ordered, status(err)))
}

func status(err error) string {
	if err != nil {
		return "err"
	}
	return "ok"
}

func sameKeys(a, b map[string]dag.Payload) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

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
