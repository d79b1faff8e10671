package executor

import (
	"time"

	"github.com/specialistvlad/pipegridgo/internal/dag"
	"github.com/specialistvlad/pipegridgo/internal/runner"
)

// result is what a worker reports back to the coordinator for one node.
type result struct {
	node *dag.Node
	res  *runner.Result
	err  error
	dur  time.Duration
}

// runState is the coordinator's scheduling state. It is touched only by the
// coordinating loop, never by workers.
type runState struct {
	waiting   map[*dag.Node]int
	depRan    map[*dag.Node]bool
	results   map[*dag.Node]*runner.Result
	durations map[*dag.Node]time.Duration
	ready     []*dag.Node
	remaining int
	free      int
}

func newRunState(g *dag.Graph, workers int) *runState {
	st := &runState{
		waiting:   make(map[*dag.Node]int),
		depRan:    make(map[*dag.Node]bool),
		results:   make(map[*dag.Node]*runner.Result),
		durations: make(map[*dag.Node]time.Duration),
		free:      workers,
	}
	for _, n := range g.Order() {
		st.waiting[n] = len(n.Deps)
		st.remaining++
		if st.waiting[n] == 0 {
			st.push(n)
		}
	}
	return st
}

func (st *runState) push(n *dag.Node) {
	st.ready = append(st.ready, n)
}

func (st *runState) removeReady(n *dag.Node) {
	for i, r := range st.ready {
		if r == n {
			st.ready = append(st.ready[:i], st.ready[i+1:]...)
			return
		}
	}
}

// nextDispatchable returns the index of the smallest ready node, by rule
// registration order then creation sequence, that fits into the free worker
// slots. Returns -1 when nothing can be dispatched right now.
func (st *runState) nextDispatchable(poolSize int) int {
	best := -1
	for i, n := range st.ready {
		if n.Threads(poolSize) > st.free {
			continue
		}
		if best < 0 || nodeLess(n, st.ready[best]) {
			best = i
		}
	}
	return best
}

// complete releases the dependents of a settled node. ran records whether the
// node actually executed, which forces dependents to run regardless of
// timestamps.
func (st *runState) complete(n *dag.Node, ran bool) {
	for _, d := range sortedDependents(n) {
		if ran {
			st.depRan[d] = true
		}
		st.waiting[d]--
		if st.waiting[d] == 0 && d.State() == dag.Pending {
			st.push(d)
		}
	}
}

// nonTerminalDeps counts the node's dependencies that have not yet settled.
func (st *runState) nonTerminalDeps(n *dag.Node) int {
	count := 0
	for _, d := range n.Deps {
		if !d.State().Terminal() {
			count++
		}
	}
	return count
}

func nodeLess(a, b *dag.Node) bool {
	if a.Rule.Pos != b.Rule.Pos {
		return a.Rule.Pos < b.Rule.Pos
	}
	return a.Seq < b.Seq
}

// sortedDependents returns a node's dependents in creation order so that
// scheduling decisions are deterministic.
func sortedDependents(n *dag.Node) []*dag.Node {
	out := make([]*dag.Node, 0, len(n.Dependents))
	for _, d := range n.Dependents {
		out = append(out, d)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Seq < out[j-1].Seq; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}
