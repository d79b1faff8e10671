package dag

import (
	"fmt"
)

// Graph is the set of rule instantiations needed to produce the requested
// targets, plus their file dependency edges. It is built by the single
// coordinating goroutine and mutated only by it, so it carries no locking.
type Graph struct {
	// Nodes holds every instantiation keyed by ID.
	Nodes map[string]*Node

	// Targets are the concrete paths the graph was resolved for.
	Targets []string

	order     []*Node
	producers map[string]*Node
}

// NewGraph creates an initialized, empty Graph.
func NewGraph() *Graph {
	return &Graph{
		Nodes:     make(map[string]*Node),
		producers: make(map[string]*Node),
	}
}

// Order returns the nodes in creation order.
func (g *Graph) Order() []*Node {
	out := make([]*Node, len(g.order))
	copy(out, g.order)
	return out
}

// Producer returns the node producing the given concrete path, or nil.
func (g *Graph) Producer(path string) *Node {
	return g.producers[path]
}

func (g *Graph) add(n *Node) {
	g.Nodes[n.ID] = n
	g.order = append(g.order, n)
}

// link records that dependent consumes an output of dep.
func (g *Graph) link(dep, dependent *Node) {
	if dep == dependent {
		return
	}
	dependent.Deps[dep.ID] = dep
	dep.Dependents[dependent.ID] = dependent
}

// TopoSort returns the nodes in dependency order, ties broken by rule
// registration order and then creation sequence, so runs over the same
// pipeline report identically.
func (g *Graph) TopoSort() ([]*Node, error) {
	waiting := make(map[string]int, len(g.Nodes))
	for _, n := range g.Nodes {
		waiting[n.ID] = len(n.Deps)
	}

	ready := make([]*Node, 0, len(g.Nodes))
	for _, n := range g.order {
		if waiting[n.ID] == 0 {
			ready = append(ready, n)
		}
	}

	less := func(a, b *Node) bool {
		if a.Rule.Pos != b.Rule.Pos {
			return a.Rule.Pos < b.Rule.Pos
		}
		return a.Seq < b.Seq
	}

	sorted := make([]*Node, 0, len(g.Nodes))
	for len(ready) > 0 {
		// Pick the smallest ready node. Graphs are small enough that a
		// linear scan beats maintaining a heap.
		best := 0
		for i := 1; i < len(ready); i++ {
			if less(ready[i], ready[best]) {
				best = i
			}
		}
		n := ready[best]
		ready = append(ready[:best], ready[best+1:]...)
		sorted = append(sorted, n)

		for _, dep := range depsInOrder(n.Dependents) {
			waiting[dep.ID]--
			if waiting[dep.ID] == 0 {
				ready = append(ready, dep)
			}
		}
	}

	if len(sorted) != len(g.Nodes) {
		return nil, fmt.Errorf("graph is not acyclic: %w", ErrCyclicDependency)
	}
	return sorted, nil
}

// depsInOrder returns map values ordered by creation sequence for
// deterministic iteration.
func depsInOrder(m map[string]*Node) []*Node {
	out := make([]*Node, 0, len(m))
	for _, n := range m {
		out = append(out, n)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Seq < out[j-1].Seq; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}
