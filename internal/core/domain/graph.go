package domain

import (
	"iter"
	"slices"
	"strings"

	"go.trai.ch/zerr"
)

// Graph is the install-order view of a SpecSet: an edge A -> B means A
// depends on B and B must be installed first.
type Graph struct {
	specs          map[string]*Specification
	dependencies   map[string][]string
	dependents     map[string][]string
	executionOrder []string
}

// NewGraph builds the dependency graph of set. Edges to names outside the set
// are dropped; the closure property guarantees there are none for a valid set.
func NewGraph(set *SpecSet) *Graph {
	g := &Graph{
		specs:        make(map[string]*Specification, set.Len()),
		dependencies: make(map[string][]string, set.Len()),
		dependents:   make(map[string][]string, set.Len()),
	}
	for _, spec := range set.Sorted() {
		g.specs[spec.Name] = spec
	}
	for _, spec := range set.Sorted() {
		for _, dep := range spec.DependencyNames() {
			if _, ok := g.specs[dep]; !ok || dep == spec.Name {
				continue
			}
			if slices.Contains(g.dependencies[spec.Name], dep) {
				continue
			}
			g.dependencies[spec.Name] = append(g.dependencies[spec.Name], dep)
			g.dependents[dep] = append(g.dependents[dep], spec.Name)
		}
	}
	return g
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.specs)
}

// Spec returns the specification for name.
func (g *Graph) Spec(name string) (*Specification, bool) {
	s, ok := g.specs[name]
	return s, ok
}

// Dependencies returns the names name depends on.
func (g *Graph) Dependencies(name string) []string {
	return g.dependencies[name]
}

// Dependents returns the names that depend on name.
func (g *Graph) Dependents(name string) []string {
	return g.dependents[name]
}

// Validate checks for cycles using a depth-first topological sort over the
// names in sorted order, and populates the execution order.
func (g *Graph) Validate() error {
	names := make([]string, 0, len(g.specs))
	for n := range g.specs {
		names = append(names, n)
	}
	slices.Sort(names)

	g.executionOrder = make([]string, 0, len(names))
	visited := make(map[string]int) // 0: unvisited, 1: visiting, 2: visited
	var path []string

	var visit func(u string) error
	visit = func(u string) error {
		visited[u] = 1
		path = append(path, u)

		for _, dep := range g.dependencies[u] {
			if visited[dep] == 1 {
				return g.buildCycleError(path, dep)
			}
			if visited[dep] == 0 {
				if err := visit(dep); err != nil {
					return err
				}
			}
		}

		visited[u] = 2
		path = path[:len(path)-1]
		g.executionOrder = append(g.executionOrder, u)
		return nil
	}

	for _, name := range names {
		if visited[name] == 0 {
			if err := visit(name); err != nil {
				return err
			}
		}
	}
	return nil
}

// buildCycleError constructs an error with cycle path metadata.
func (g *Graph) buildCycleError(path []string, dep string) error {
	start := slices.Index(path, dep)
	cycle := append(slices.Clone(path[start:]), dep)
	return zerr.With(ErrDependencyCycle, "cycle", strings.Join(cycle, " -> "))
}

// Walk yields specifications with dependencies before their dependents.
// It assumes Validate has been called and returned nil.
func (g *Graph) Walk() iter.Seq[*Specification] {
	return func(yield func(*Specification) bool) {
		for _, name := range g.executionOrder {
			if !yield(g.specs[name]) {
				return
			}
		}
	}
}
