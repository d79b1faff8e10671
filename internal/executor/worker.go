package executor

import (
	"context"
	"sync"
	"time"

	"github.com/specialistvlad/pipegridgo/internal/ctxlog"
	"github.com/specialistvlad/pipegridgo/internal/dag"
)

// worker executes nodes handed to it by the coordinator and reports each
// outcome back. It never touches scheduling state.
func (e *Executor) worker(ctx context.Context, id int, tasks <-chan *dag.Node, results chan<- result, wg *sync.WaitGroup) {
	defer wg.Done()
	logger := ctxlog.FromContext(ctx).With("worker_id", id)
	for n := range tasks {
		n.SetState(dag.Running)
		logger.Info("▶️ Running action.", "id", n.ID, "threads", n.Threads(e.workers))
		start := time.Now()
		res, err := e.shell.Run(ctx, e.invocation(n))
		if err != nil {
			logger.Error("Action failed.", "id", n.ID, "error", err)
		} else {
			logger.Info("✅ Action finished.", "id", n.ID, "duration", time.Since(start))
		}
		results <- result{node: n, res: res, err: err, dur: time.Since(start)}
	}
}
