package resolver

import (
	"strings"

	"github.com/matzehuels/loadorder/pkg/errors"
)

// CyclePolicy decides what Build does when the graph contains a cycle.
type CyclePolicy string

const (
	// CyclesReject fails the build with CYCLIC_DEPENDENCY.
	CyclesReject CyclePolicy = "reject"
	// CyclesTolerate annotates the graph anyway. Members of a cycle require
	// each other and the order between them is unspecified.
	CyclesTolerate CyclePolicy = "tolerate"
)

// DanglingPolicy decides what Build does with dependencies on ids that are
// not part of the graph.
type DanglingPolicy string

const (
	// DanglingIgnore keeps dangling ids in Requires but never orders them.
	DanglingIgnore DanglingPolicy = "ignore"
	// DanglingReject fails the build with DANGLING_DEPENDENCY.
	DanglingReject DanglingPolicy = "reject"
)

// ParseCyclePolicy parses a policy name. The empty string selects
// [CyclesReject].
func ParseCyclePolicy(s string) (CyclePolicy, error) {
	switch p := CyclePolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return CyclesReject, nil
	case CyclesReject, CyclesTolerate:
		return p, nil
	default:
		return "", errors.New(errors.ErrCodeInvalidPolicy, "unknown cycle policy %q (want reject or tolerate)", s)
	}
}

// ParseDanglingPolicy parses a policy name. The empty string selects
// [DanglingIgnore].
func ParseDanglingPolicy(s string) (DanglingPolicy, error) {
	switch p := DanglingPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return DanglingIgnore, nil
	case DanglingIgnore, DanglingReject:
		return p, nil
	default:
		return "", errors.New(errors.ErrCodeInvalidPolicy, "unknown dangling policy %q (want ignore or reject)", s)
	}
}
