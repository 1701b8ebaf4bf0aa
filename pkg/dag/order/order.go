// Package order extracts dependency-first load orders from an annotated
// component graph.
//
// [Extract] expands a requested set of component ids to its transitive
// closure over Requires and sorts the collected ids by weight in descending
// order, so every component comes after the components it depends on.
// Requests naming an unknown component fail as a whole: no partial order is
// ever returned.
package order

import (
	"cmp"
	"slices"

	"github.com/matzehuels/loadorder/pkg/dag"
	"github.com/matzehuels/loadorder/pkg/dag/annotate"
)

// Extract returns the load order for the requested ids.
//
// An empty request yields an empty, non-nil slice. If any requested id has
// no record in res, Extract returns nil and a [dag.UnknownComponentError]
// listing every missing id. Dependencies that are not vertices (dangling
// edges) are left out because they cannot be loaded. Ids with equal weight
// (components of unrelated groups) are ordered by id so the output is
// deterministic.
func Extract(requested []string, res *annotate.Result) ([]string, error) {
	var missing []string
	for _, id := range requested {
		if _, ok := res.Records[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return nil, &dag.UnknownComponentError{IDs: slices.Compact(missing)}
	}

	set := Closure(requested, res)
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	slices.SortFunc(out, func(a, b string) int {
		wa, wb := res.Records[a].Weight, res.Records[b].Weight
		if wa != wb {
			return cmp.Compare(wb, wa)
		}
		return cmp.Compare(a, b)
	})
	return out, nil
}

// Closure returns the requested ids plus everything they transitively
// require, restricted to ids that have a record in res. Unknown requested ids
// are skipped.
func Closure(requested []string, res *annotate.Result) map[string]bool {
	set := make(map[string]bool, len(requested))
	queue := make([]string, 0, len(requested))
	for _, id := range requested {
		if _, ok := res.Records[id]; ok && !set[id] {
			set[id] = true
			queue = append(queue, id)
		}
	}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for dep := range res.Records[id].Requires {
			if _, ok := res.Records[dep]; ok && !set[dep] {
				set[dep] = true
				queue = append(queue, dep)
			}
		}
	}
	return set
}
