package dag

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownComponent is matched by errors returned when a requested
	// component id is not part of the graph.
	ErrUnknownComponent = errors.New("unknown component")

	// ErrCyclicDependency is matched by errors returned when the dependency
	// graph contains a directed cycle and cycles are not tolerated.
	ErrCyclicDependency = errors.New("cyclic dependency")

	// ErrDanglingDependency is matched by errors returned when a component
	// depends on an id that is not part of the graph and dangling
	// dependencies are not tolerated.
	ErrDanglingDependency = errors.New("dangling dependency")
)

// UnknownComponentError lists requested ids missing from the graph.
type UnknownComponentError struct {
	IDs []string
}

func (e *UnknownComponentError) Error() string {
	return fmt.Sprintf("%s: %s", ErrUnknownComponent, strings.Join(e.IDs, ", "))
}

// Is reports whether target is ErrUnknownComponent.
func (e *UnknownComponentError) Is(target error) bool { return target == ErrUnknownComponent }

// CycleError lists the cycles found in a graph. Each cycle holds the ids of
// one strongly connected component in ascending order.
type CycleError struct {
	Cycles [][]string
}

func (e *CycleError) Error() string {
	parts := make([]string, len(e.Cycles))
	for i, c := range e.Cycles {
		parts[i] = "[" + strings.Join(c, " ") + "]"
	}
	return fmt.Sprintf("%s: %s", ErrCyclicDependency, strings.Join(parts, ", "))
}

// Is reports whether target is ErrCyclicDependency.
func (e *CycleError) Is(target error) bool { return target == ErrCyclicDependency }

// DanglingError lists edges whose target is not part of the graph.
type DanglingError struct {
	Edges []Dependency
}

func (e *DanglingError) Error() string {
	parts := make([]string, len(e.Edges))
	for i, d := range e.Edges {
		parts[i] = d.From + " -> " + d.To
	}
	return fmt.Sprintf("%s: %s", ErrDanglingDependency, strings.Join(parts, ", "))
}

// Is reports whether target is ErrDanglingDependency.
func (e *DanglingError) Is(target error) bool { return target == ErrDanglingDependency }
