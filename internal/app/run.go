package app

import (
	"context"
	"fmt"

	"github.com/specialistvlad/pipegridgo/internal/ctxlog"
	"github.com/specialistvlad/pipegridgo/internal/dag"
	"github.com/specialistvlad/pipegridgo/internal/executor"
	"github.com/specialistvlad/pipegridgo/internal/pattern"
	"github.com/specialistvlad/pipegridgo/internal/report"
)

// Run resolves the requested targets and executes the pipeline once,
// returning the per-instantiation report.
func (a *App) Run(ctx context.Context) (*report.Run, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)

	targets, err := a.targets()
	if err != nil {
		return nil, err
	}

	a.logger.Debug("Building dependency graph.", "targets", targets)
	builder := dag.NewBuilder(a.registry)
	graph, err := builder.Resolve(ctx, targets...)
	if err != nil {
		return nil, fmt.Errorf("failed to build dependency graph: %w", err)
	}
	a.logger.Debug("Dependency graph built.", "node_count", len(graph.Nodes))

	mode := executor.Normal
	switch {
	case a.cfg.DryRun:
		mode = executor.DryRun
	case a.cfg.Force:
		mode = executor.Force
	}

	a.logger.Info("🚀 Starting pipeline run.", "targets", targets, "mode", mode.String(), "workers", a.cfg.Workers)
	exec := executor.New(graph, builder, a.model.Params, a.cfg.Workers)
	rep, err := exec.Run(ctx, mode)
	if err != nil {
		return rep, fmt.Errorf("execution failed: %w", err)
	}

	done, failed, skipped := rep.Counts()
	a.logger.Info("🏁 Run finished.", "status", rep.Status, "done", done, "failed", failed, "skipped", skipped)

	if a.cfg.ReportPath != "" {
		if err := rep.WriteFile(a.cfg.ReportPath); err != nil {
			return rep, err
		}
		a.logger.Info("Report written.", "path", a.cfg.ReportPath)
	}
	return rep, nil
}

// targets returns the configured targets, falling back to the outputs of the
// first rule in the pipeline.
func (a *App) targets() ([]string, error) {
	if len(a.cfg.Targets) > 0 {
		return a.cfg.Targets, nil
	}
	if len(a.model.Rules) == 0 {
		return nil, fmt.Errorf("pipeline defines no rules")
	}
	first := a.model.Rules[0]
	for _, out := range first.Output {
		if pattern.HasWildcards(out) {
			return nil, fmt.Errorf("default target %q of %s %q contains wildcards; name concrete targets on the command line",
				out, first.Kind(), first.Name)
		}
	}
	a.logger.Debug("No targets given, defaulting to first rule's outputs.",
		"rule", first.Name, "outputs", first.Output)
	return first.Output, nil
}
