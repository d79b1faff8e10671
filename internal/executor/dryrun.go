package executor

import (
	"context"

	"github.com/specialistvlad/pipegridgo/internal/ctxlog"
	"github.com/specialistvlad/pipegridgo/internal/dag"
	"github.com/specialistvlad/pipegridgo/internal/pattern"
	"github.com/specialistvlad/pipegridgo/internal/report"
	"github.com/specialistvlad/pipegridgo/internal/runner"
)

// dryRun walks the graph in topological order and reports what a normal run
// would do without executing anything. Checkpoints are not reevaluated, so
// instantiations hidden behind one are reported as a single deferred entry.
func (e *Executor) dryRun(ctx context.Context, rep *report.Run) error {
	logger := ctxlog.FromContext(ctx)
	sorted, err := e.graph.TopoSort()
	if err != nil {
		return err
	}

	wouldRun := make(map[*dag.Node]bool)
	for _, n := range sorted {
		depRan := false
		for _, d := range n.Deps {
			if wouldRun[d] {
				depRan = true
				break
			}
		}

		entry := report.Entry{
			ID:        n.ID,
			Rule:      n.Rule.Name,
			Wildcards: wildcardsMap(n.Binding),
		}
		if !depRan && e.upToDate(n) {
			entry.State = "skipped"
			entry.Reason = "up to date"
			logger.Info("Would skip up-to-date target.", "id", n.ID)
			rep.Add(entry)
			continue
		}

		wouldRun[n] = true
		entry.State = "done"
		entry.Reason = "would run"
		if n.Deferred {
			entry.Command = n.Rule.Shell
			entry.Reason = "would run after checkpoint " + n.Rule.WildcardsFrom + " discovers its outputs"
		} else if cmd, err := runner.Interpolate(n.Rule.Shell, e.invocation(n)); err == nil {
			entry.Command = cmd
		} else {
			entry.Command = n.Rule.Shell
		}
		logger.Info("Would run action.", "id", n.ID, "command", entry.Command)
		rep.Add(entry)
	}
	return nil
}

func wildcardsMap(b pattern.Binding) map[string]string {
	if len(b) == 0 {
		return nil
	}
	return map[string]string(b)
}
