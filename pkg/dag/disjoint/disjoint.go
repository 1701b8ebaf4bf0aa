// Package disjoint implements a union-find (disjoint-set) structure over
// string ids.
//
// The annotator uses it to track component groups: sets of vertices that
// were discovered to be connected while traversing from different roots.
// Merging two groups is a single Union call instead of relabelling every
// member.
package disjoint

// Set is a disjoint-set forest keyed by id.
// The zero value is not usable; create one with New.
type Set struct {
	parent map[string]string
	size   map[string]int
}

// New returns an empty set.
func New() *Set {
	return &Set{
		parent: make(map[string]string),
		size:   make(map[string]int),
	}
}

// Add registers id as a singleton group. Adding an existing id is a no-op.
func (s *Set) Add(id string) {
	if _, ok := s.parent[id]; ok {
		return
	}
	s.parent[id] = id
	s.size[id] = 1
}

// Contains reports whether id has been added.
func (s *Set) Contains(id string) bool {
	_, ok := s.parent[id]
	return ok
}

// Find returns the representative of id's group. Unknown ids are their own
// representative.
func (s *Set) Find(id string) string {
	if _, ok := s.parent[id]; !ok {
		return id
	}
	for s.parent[id] != id {
		// path halving
		s.parent[id] = s.parent[s.parent[id]]
		id = s.parent[id]
	}
	return id
}

// Union merges the groups of a and b (adding either if needed) and returns
// the representative of the merged group. The larger group absorbs the
// smaller; on equal sizes b's representative wins, so repeated runs over the
// same sequence of calls produce the same representatives.
func (s *Set) Union(a, b string) string {
	s.Add(a)
	s.Add(b)
	ra, rb := s.Find(a), s.Find(b)
	if ra == rb {
		return ra
	}
	if s.size[ra] > s.size[rb] {
		ra, rb = rb, ra
	}
	s.parent[ra] = rb
	s.size[rb] += s.size[ra]
	delete(s.size, ra)
	return rb
}

// Same reports whether a and b belong to the same group.
func (s *Set) Same(a, b string) bool { return s.Find(a) == s.Find(b) }

// Size returns the number of members in id's group, or 0 if id was never added.
func (s *Set) Size(id string) int {
	if !s.Contains(id) {
		return 0
	}
	return s.size[s.Find(id)]
}

// Groups returns the number of distinct groups.
func (s *Set) Groups() int { return len(s.size) }
