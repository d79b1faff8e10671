package executor

import (
	"context"
	"time"

	"github.com/specialistvlad/pipegridgo/internal/config"
	"github.com/specialistvlad/pipegridgo/internal/dag"
	"github.com/specialistvlad/pipegridgo/internal/report"
	"github.com/specialistvlad/pipegridgo/internal/runner"
)

// Mode selects how a run treats existing outputs.
type Mode int

const (
	// Normal skips instantiations whose outputs are already up to date.
	Normal Mode = iota
	// DryRun reports planned actions without executing anything.
	DryRun
	// Force re-executes every instantiation regardless of timestamps.
	Force
)

// String returns the mode name used in reports and logs.
func (m Mode) String() string {
	switch m {
	case DryRun:
		return "dry-run"
	case Force:
		return "force"
	default:
		return "normal"
	}
}

// Executor walks a resolved graph and runs rule actions with a bounded
// worker pool. All graph and scheduling state is owned by the coordinating
// loop in run(); workers only execute actions and report back.
type Executor struct {
	graph   *dag.Graph
	builder *dag.Builder
	params  *config.Store
	shell   *runner.Shell
	workers int
}

// New creates an executor over a resolved graph. The builder is retained for
// checkpoint reevaluation, which may grow the graph mid-run.
func New(graph *dag.Graph, builder *dag.Builder, params *config.Store, workers int) *Executor {
	if workers < 1 {
		workers = 1
	}
	return &Executor{
		graph:   graph,
		builder: builder,
		params:  params,
		shell:   runner.NewShell(),
		workers: workers,
	}
}

// Run executes the graph in the given mode and returns the per-instantiation
// report. Action failures are collected into the report, not returned; the
// error is reserved for cancellation and internal inconsistencies.
func (e *Executor) Run(ctx context.Context, mode Mode) (*report.Run, error) {
	rep := report.New(e.graph.Targets, mode.String())
	started := time.Now()

	var err error
	if mode == DryRun {
		err = e.dryRun(ctx, rep)
	} else {
		err = e.run(ctx, mode, rep)
	}
	rep.Duration = time.Since(started)
	return rep, err
}

// invocation assembles the runner invocation for a node.
func (e *Executor) invocation(n *dag.Node) *runner.Invocation {
	return &runner.Invocation{
		Shell:     n.Rule.Shell,
		Inputs:    n.Inputs,
		Outputs:   n.Outputs,
		Wildcards: n.Binding,
		Params:    e.params,
		Threads:   n.Threads(e.workers),
		LogPath:   n.LogPath,
	}
}
