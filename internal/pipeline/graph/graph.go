// Package graph resolves a requested target into the ordered list of targets
// that must run, dependencies first.
package graph

import (
	"fmt"
	"strings"

	"taskgraph/internal/pipeline/types"
)

// UnknownTargetError is returned when a requested target or a dependency
// does not exist.
type UnknownTargetError struct {
	Name string
	// Dependent is the target that referenced Name; empty when Name was requested directly.
	Dependent string
}

func (e *UnknownTargetError) Error() string {
	if e.Dependent == "" {
		return fmt.Sprintf("unknown target %q", e.Name)
	}
	return fmt.Sprintf("unknown target %q (dependency of %q)", e.Name, e.Dependent)
}

// CyclicDependencyError names the dependency cycle that was found. The first
// and last entries of Cycle are the same target.
type CyclicDependencyError struct {
	Cycle []string
}

func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("cyclic dependency: %s", strings.Join(e.Cycle, " -> "))
}

// DuplicateTargetError is returned when two targets share a name.
type DuplicateTargetError struct {
	Name string
}

func (e *DuplicateTargetError) Error() string {
	return fmt.Sprintf("duplicate target %q", e.Name)
}

// Plan is the ordered, de-duplicated list of targets to execute.
type Plan struct {
	Requested string
	Targets   []string
}

// Contains reports whether name is part of the plan.
func (p Plan) Contains(name string) bool {
	for _, t := range p.Targets {
		if t == name {
			return true
		}
	}
	return false
}

func (p Plan) String() string {
	return strings.Join(p.Targets, " -> ")
}

// Graph is the index-based node/edge form of a set of targets. Node indices
// follow declaration order.
type Graph struct {
	names []string
	index map[string]int
	deps  [][]int // by node index, in declared dependency order

	// dangling dependency names that did not resolve, by node index
	unknown map[int][]string
}

// New builds a graph from targets in declaration order. Dependencies that do
// not name a target are recorded and reported when a traversal reaches them.
func New(targets []types.Target) (*Graph, error) {
	g := &Graph{
		names:   make([]string, len(targets)),
		index:   make(map[string]int, len(targets)),
		deps:    make([][]int, len(targets)),
		unknown: make(map[int][]string),
	}
	for i, t := range targets {
		if _, exists := g.index[t.Name]; exists {
			return nil, &DuplicateTargetError{Name: t.Name}
		}
		g.names[i] = t.Name
		g.index[t.Name] = i
	}
	for i, t := range targets {
		for _, dep := range t.DependsOn {
			j, ok := g.index[dep]
			if !ok {
				g.unknown[i] = append(g.unknown[i], dep)
				continue
			}
			g.deps[i] = append(g.deps[i], j)
		}
	}
	return g, nil
}

type visitState uint8

const (
	unvisited visitState = iota
	inProgress
	done
)

type frame struct {
	node int
	next int // index into deps[node] of the next dependency to visit
}

// Plan computes the execution order for requested: a post-order depth-first
// traversal visiting dependencies in declared order. Each target appears once,
// after all of its dependencies.
func (g *Graph) Plan(requested string) (Plan, error) {
	root, ok := g.index[requested]
	if !ok {
		return Plan{}, &UnknownTargetError{Name: requested}
	}

	state := make([]visitState, len(g.names))
	var order []string
	stack := []frame{{node: root}}
	state[root] = inProgress
	if err := g.checkUnknown(root); err != nil {
		return Plan{}, err
	}

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.next < len(g.deps[top.node]) {
			dep := g.deps[top.node][top.next]
			top.next++
			switch state[dep] {
			case done:
				continue
			case inProgress:
				return Plan{}, &CyclicDependencyError{Cycle: g.cyclePath(stack, dep)}
			}
			if err := g.checkUnknown(dep); err != nil {
				return Plan{}, err
			}
			state[dep] = inProgress
			stack = append(stack, frame{node: dep})
			continue
		}
		state[top.node] = done
		order = append(order, g.names[top.node])
		stack = stack[:len(stack)-1]
	}

	return Plan{Requested: requested, Targets: order}, nil
}

// checkUnknown fails when node declares a dependency that is not a target.
// Dangling names are reported before any other dependency of node is visited.
func (g *Graph) checkUnknown(node int) error {
	if missing := g.unknown[node]; len(missing) > 0 {
		return &UnknownTargetError{Name: missing[0], Dependent: g.names[node]}
	}
	return nil
}

// cyclePath returns the names from dep's position on the stack to the top,
// closed with dep again.
func (g *Graph) cyclePath(stack []frame, dep int) []string {
	start := 0
	for i, f := range stack {
		if f.node == dep {
			start = i
			break
		}
	}
	cycle := make([]string, 0, len(stack)-start+1)
	for _, f := range stack[start:] {
		cycle = append(cycle, g.names[f.node])
	}
	return append(cycle, g.names[dep])
}

// Unreferenced returns the targets, in declaration order, that are not the
// default target and are not a dependency of any other target.
func (g *Graph) Unreferenced(defaultTarget string) []string {
	referenced := make([]bool, len(g.names))
	for i, deps := range g.deps {
		for _, d := range deps {
			if d != i {
				referenced[d] = true
			}
		}
	}
	var out []string
	for i, name := range g.names {
		if !referenced[i] && name != defaultTarget {
			out = append(out, name)
		}
	}
	return out
}

// Resolve builds the graph for targets and computes the plan for requested.
func Resolve(targets []types.Target, requested string) (Plan, error) {
	g, err := New(targets)
	if err != nil {
		return Plan{}, err
	}
	return g.Plan(requested)
}
