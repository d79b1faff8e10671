package executor

import (
	"context"
	"strings"
	"sync"

	"github.com/specialistvlad/pipegridgo/internal/ctxlog"
	"github.com/specialistvlad/pipegridgo/internal/dag"
	"github.com/specialistvlad/pipegridgo/internal/report"
)

// upstreamFailedPrefix starts the skip reason of every node settled because
// a dependency failed; failedDep keys off it to cascade through nodes that
// were skipped rather than failed outright.
const upstreamFailedPrefix = "upstream failed: "

// run drives the concurrent execution of the graph. A single coordinating
// loop owns all scheduling state; workers only execute actions and report
// back over a channel. Checkpoint reevaluation mutates the graph, which is
// safe because it happens on the coordinator between dispatches.
func (e *Executor) run(ctx context.Context, mode Mode, rep *report.Run) error {
	logger := ctxlog.FromContext(ctx)
	st := newRunState(e.graph, e.workers)

	tasks := make(chan *dag.Node)
	results := make(chan result)
	var wg sync.WaitGroup
	for i := 0; i < e.workers; i++ {
		wg.Add(1)
		go e.worker(ctx, i, tasks, results, &wg)
	}

	var runErr error
	for st.remaining > 0 {
		if mode != Force {
			e.skipUpToDate(ctx, st)
			if st.remaining == 0 {
				break
			}
		}

		var next *dag.Node
		var dispatch chan<- *dag.Node
		if i := st.nextDispatchable(e.workers); i >= 0 {
			next = st.ready[i]
			dispatch = tasks
		}

		select {
		case dispatch <- next:
			st.removeReady(next)
			st.free -= next.Threads(e.workers)
		case r := <-results:
			st.free += r.node.Threads(e.workers)
			st.record(r)
			if r.err != nil {
				e.fail(ctx, st, r.node, r.err)
			} else {
				e.succeed(ctx, st, r.node, true)
			}
		case <-ctx.Done():
			runErr = ctx.Err()
			logger.Warn("Run canceled, waiting for in-flight actions.", "error", runErr)
			e.cancel(st)
		}
	}

	close(tasks)
	go func() {
		wg.Wait()
		close(results)
	}()
	for r := range results {
		st.record(r)
		if r.err != nil {
			r.node.Err = r.err
			r.node.SetState(dag.Failed)
		} else {
			r.node.SetState(dag.Done)
		}
	}

	e.appendEntries(st, rep)
	return runErr
}

func (st *runState) record(r result) {
	st.durations[r.node] = r.dur
	if r.res != nil {
		st.results[r.node] = r.res
	}
}

// skipUpToDate settles every ready node whose outputs are already newer than
// its inputs, as long as nothing upstream ran this time. Skipping a node can
// make its dependents ready, so the pass repeats until it settles nothing.
func (e *Executor) skipUpToDate(ctx context.Context, st *runState) {
	logger := ctxlog.FromContext(ctx)
	for changed := true; changed; {
		changed = false
		for i := 0; i < len(st.ready); i++ {
			n := st.ready[i]
			if st.depRan[n] || !e.upToDate(n) {
				continue
			}
			st.ready = append(st.ready[:i], st.ready[i+1:]...)
			i--
			changed = true
			logger.Info("Skipping up-to-date target.", "id", n.ID)
			e.succeed(ctx, st, n, false)
		}
	}
}

// succeed settles a node that either finished its action (ran) or was found
// up to date. For checkpoints the graph is reevaluated before dependents are
// released, because their dependents were resolved against the checkpoint's
// discovered outputs.
func (e *Executor) succeed(ctx context.Context, st *runState, n *dag.Node, ran bool) {
	if ran {
		n.SetState(dag.Done)
	} else {
		n.Reason = "up to date"
		n.SetState(dag.Skipped)
	}
	st.remaining--

	if !n.Rule.Checkpoint {
		st.complete(n, ran)
		return
	}

	created, err := e.builder.Reevaluate(ctx, e.graph, n)
	if err != nil {
		n.Reason = ""
		n.SetState(dag.Failed)
		n.Err = err
		e.skipDependents(ctx, st, n)
		return
	}
	logger := ctxlog.FromContext(ctx)
	if len(created) > 0 {
		logger.Info("Checkpoint reevaluated.", "id", n.ID, "new_nodes", len(created))
	}
	for _, c := range created {
		st.remaining++
		st.waiting[c] = st.nonTerminalDeps(c)
	}
	for _, c := range created {
		if c.State() != dag.Pending {
			continue
		}
		if bad := failedDep(c); bad != nil {
			e.skipForUpstream(ctx, st, c, bad)
			continue
		}
		if st.waiting[c] == 0 {
			st.push(c)
		}
	}
	// Deferred dependents gained new dependencies during reevaluation, so
	// their counters are recomputed rather than decremented. A recomputed
	// dependency may already have failed; a settled dep must not read as a
	// satisfied one.
	for _, d := range sortedDependents(n) {
		if d.State().Terminal() {
			continue
		}
		if ran {
			st.depRan[d] = true
		}
		st.waiting[d] = st.nonTerminalDeps(d)
		if bad := failedDep(d); bad != nil {
			e.skipForUpstream(ctx, st, d, bad)
			continue
		}
		if st.waiting[d] == 0 && d.State() == dag.Pending {
			st.push(d)
		}
	}
}

// failedDep returns a dependency that failed, or was itself skipped because
// of a failure upstream, if the node has one.
func failedDep(n *dag.Node) *dag.Node {
	for _, d := range n.Deps {
		switch d.State() {
		case dag.Failed:
			return d
		case dag.Skipped:
			if strings.HasPrefix(d.Reason, upstreamFailedPrefix) {
				return d
			}
		}
	}
	return nil
}

// fail marks a node failed and cascades a skip through everything that
// depends on it. Unrelated branches of the graph keep running.
func (e *Executor) fail(ctx context.Context, st *runState, n *dag.Node, err error) {
	n.Err = err
	n.SetState(dag.Failed)
	st.remaining--
	e.skipDependents(ctx, st, n)
}

func (e *Executor) skipDependents(ctx context.Context, st *runState, n *dag.Node) {
	for _, d := range sortedDependents(n) {
		if d.State() != dag.Pending {
			continue
		}
		e.skipForUpstream(ctx, st, d, n)
	}
}

// skipForUpstream settles a node as skipped because something it depends on
// failed, and cascades through its own dependents.
func (e *Executor) skipForUpstream(ctx context.Context, st *runState, n *dag.Node, failed *dag.Node) {
	logger := ctxlog.FromContext(ctx)
	n.Reason = upstreamFailedPrefix + failed.ID
	n.SetState(dag.Skipped)
	st.remaining--
	logger.Warn("Skipping dependent of failed target.", "id", n.ID, "failed", failed.ID)
	e.skipDependents(ctx, st, n)
}

// cancel settles every node that has not started yet. In-flight actions are
// drained by the caller after the scheduling loop exits.
func (e *Executor) cancel(st *runState) {
	for _, n := range e.graph.Order() {
		if n.State().Terminal() || n.State() == dag.Running {
			continue
		}
		n.Reason = "run canceled"
		n.SetState(dag.Skipped)
	}
	st.ready = nil
	st.remaining = 0
}

// appendEntries converts the settled graph into report entries in
// topological order.
func (e *Executor) appendEntries(st *runState, rep *report.Run) {
	sorted, err := e.graph.TopoSort()
	if err != nil {
		sorted = e.graph.Order()
	}
	for _, n := range sorted {
		entry := report.Entry{
			ID:        n.ID,
			Rule:      n.Rule.Name,
			Wildcards: wildcardsMap(n.Binding),
			State:     n.State().String(),
			Reason:    n.Reason,
			Duration:  st.durations[n],
		}
		if res := st.results[n]; res != nil {
			entry.Command = res.Command
			entry.Log = res.LogPath
		}
		if n.Err != nil {
			entry.Error = n.Err.Error()
		}
		rep.Add(entry)
	}
}
