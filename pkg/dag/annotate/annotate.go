package annotate

import (
	"io"
	"maps"
	"slices"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/loadorder/pkg/dag"
	"github.com/matzehuels/loadorder/pkg/dag/disjoint"
	"github.com/matzehuels/loadorder/pkg/dag/scc"
)

// Record is the annotated view of one vertex.
type Record struct {
	ID         string
	Edges      map[string]dag.Payload // direct dependencies, as declared
	Requires   map[string]dag.Payload // transitive dependencies
	RequiredBy map[string]dag.Payload // transitive dependents
	Group      string                 // component group representative
	Weight     int                    // rank: higher means fewer unresolved dependencies
}

// Result holds the annotation of a whole graph. It is not modified after
// Annotate returns and may be shared between goroutines for reading.
type Result struct {
	// Records maps every vertex id to its record.
	Records map[string]*Record
	// FinishOrder lists vertex ids in the order their traversal completed.
	FinishOrder []string
	// Cycles lists the strongly connected components that form cycles,
	// each sorted. Nil for acyclic input.
	Cycles [][]string
	// Dangling lists edges whose target is not a vertex.
	Dangling []dag.Dependency
}

// Record returns the record for id and true, or nil and false.
func (r *Result) Record(id string) (*Record, bool) {
	rec, ok := r.Records[id]
	return rec, ok
}

// IDs returns all annotated ids in ascending order.
func (r *Result) IDs() []string { return slices.Sorted(maps.Keys(r.Records)) }

// HasCycles reports whether the annotated graph contains a cycle.
func (r *Result) HasCycles() bool { return len(r.Cycles) > 0 }

// Options configures Annotate.
type Options struct {
	// Logger receives debug events about the traversal. Nil disables logging.
	Logger *log.Logger
}

type state uint8

const (
	unvisited state = iota
	inProgress
	done
)

type frame struct {
	id   string
	next int // index of the next target to process
}

type annotator struct {
	g         *dag.Graph
	log       *log.Logger
	records   map[string]*Record
	state     map[string]state
	groups    *disjoint.Set
	order     []string
	backEdges int
}

// Annotate computes the closures, component groups and weights for every
// vertex of g. It never fails: cycles and dangling edges are reported in the
// result instead.
func Annotate(g *dag.Graph, opts Options) *Result {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	a := &annotator{
		g:       g,
		log:     logger,
		records: make(map[string]*Record, g.Len()),
		state:   make(map[string]state, g.Len()),
		groups:  disjoint.New(),
		order:   make([]string, 0, g.Len()),
	}
	for _, id := range g.IDs() {
		v, _ := g.Vertex(id)
		a.records[id] = &Record{
			ID:         id,
			Edges:      maps.Clone(v.Edges),
			Requires:   make(map[string]dag.Payload, len(v.Edges)),
			RequiredBy: make(map[string]dag.Payload),
		}
	}

	for _, id := range g.IDs() {
		if a.state[id] == unvisited {
			a.walk(id)
		}
	}

	res := &Result{
		Records:     a.records,
		FinishOrder: a.order,
		Dangling:    g.Dangling(),
	}
	if a.backEdges > 0 {
		res.Cycles = scc.Cycles(g)
		a.log.Debug("cycles detected", "back_edges", a.backEdges, "cycles", len(res.Cycles))
		a.closeCycles()
	}
	a.reverse()
	a.assignWeights()

	a.log.Debug("annotation complete",
		"vertices", len(a.records),
		"groups", a.groups.Groups(),
		"dangling", len(res.Dangling))
	return res
}

// walk runs one depth-first traversal from root. Dependencies finish before
// the vertices that depend on them.
func (a *annotator) walk(root string) {
	a.log.Debug("traversal root", "id", root)
	a.enter(root)
	stack := []*frame{{id: root}}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		targets := a.g.Targets(top.id)

		if top.next == len(targets) {
			stack = stack[:len(stack)-1]
			a.finish(top.id)
			if len(stack) > 0 {
				a.absorb(stack[len(stack)-1].id, top.id)
			}
			continue
		}

		end := targets[top.next]
		top.next++

		rec := a.records[top.id]
		rec.Requires[end] = rec.Edges[end]
		if !a.g.Has(end) {
			continue
		}

		switch a.state[end] {
		case unvisited:
			a.enter(end)
			a.groups.Union(end, top.id)
			stack = append(stack, &frame{id: end})
		case inProgress:
			a.backEdges++
			a.log.Debug("back edge", "from", top.id, "to", end)
			a.absorb(top.id, end)
		case done:
			if !a.groups.Same(top.id, end) {
				a.log.Debug("merging component groups", "from", top.id, "to", end)
				a.groups.Union(top.id, end)
			}
			a.absorb(top.id, end)
		}
	}
}

func (a *annotator) enter(id string) {
	a.state[id] = inProgress
	a.groups.Add(id)
}

func (a *annotator) finish(id string) {
	a.state[id] = done
	a.order = append(a.order, id)
}

// absorb unions src's closure into dst's. Keys already present in dst keep
// their payload.
func (a *annotator) absorb(dst, src string) {
	to := a.records[dst].Requires
	for k, p := range a.records[src].Requires {
		if _, ok := to[k]; !ok {
			to[k] = p
		}
	}
}

// closeCycles completes closures that were cut short by back edges. It
// iterates to the least fixpoint of Requires(v) = Edges(v) ∪ ⋃ Requires(child)
// and then removes each vertex from its own closure.
func (a *annotator) closeCycles() {
	for changed := true; changed; {
		changed = false
		for _, id := range a.order {
			rec := a.records[id]
			for _, to := range a.g.Targets(id) {
				child, ok := a.records[to]
				if !ok {
					continue
				}
				for k, p := range child.Requires {
					if _, seen := rec.Requires[k]; !seen {
						rec.Requires[k] = p
						changed = true
					}
				}
			}
		}
	}
	for id, rec := range a.records {
		delete(rec.Requires, id)
	}
}

// reverse fills RequiredBy from the final Requires sets.
func (a *annotator) reverse() {
	for _, id := range a.order {
		for dep, p := range a.records[id].Requires {
			if target, ok := a.records[dep]; ok {
				target.RequiredBy[id] = p
			}
		}
	}
}

// assignWeights gives every vertex its group's counter in finish order,
// decrementing the counter afterwards.
func (a *annotator) assignWeights() {
	counters := make(map[string]int)
	for _, id := range a.order {
		rec := a.records[id]
		rec.Group = a.groups.Find(id)
		rec.Weight = counters[rec.Group]
		counters[rec.Group]--
	}
}
