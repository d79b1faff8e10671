package app

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/specialistvlad/pipegridgo/internal/ctxlog"
	"github.com/specialistvlad/pipegridgo/internal/dag"
	"github.com/specialistvlad/pipegridgo/internal/fsutil"
)

// settleWindow is how long Watch lets events quiesce before re-running, so
// editors that write a file in several steps trigger one run, not many.
const settleWindow = 200 * time.Millisecond

// Watch runs the pipeline, then re-runs it whenever one of its source files
// changes. Source files are the leaf inputs of the graph, the paths nothing
// in the pipeline produces. Watch returns when the context is canceled.
func (a *App) Watch(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("starting file watcher: %w", err)
	}
	defer watcher.Close()

	for {
		if _, err := a.Run(ctx); err != nil {
			if ctx.Err() != nil {
				return err
			}
			// Stay alive on run failures; a source edit may fix them.
			a.logger.Error("Run failed, still watching.", "error", err)
		}

		dirs, err := a.sourceDirs(ctx)
		if err != nil {
			return err
		}
		for _, dir := range dirs {
			if err := watcher.Add(dir); err != nil {
				a.logger.Warn("Cannot watch directory.", "dir", dir, "error", err)
			}
		}
		a.logger.Info("👀 Watching for changes.", "dirs", dirs)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-watcher.Events:
			a.logger.Info("Change detected, re-running.", "path", ev.Name, "op", ev.Op.String())
		case werr := <-watcher.Errors:
			a.logger.Warn("Watcher error.", "error", werr)
			continue
		}

		timer := time.NewTimer(settleWindow)
	settle:
		for {
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-watcher.Events:
			case <-timer.C:
				break settle
			}
		}
	}
}

// sourceDirs resolves the graph and returns the parent directories of every
// leaf input, sorted and deduplicated.
func (a *App) sourceDirs(ctx context.Context) ([]string, error) {
	targets, err := a.targets()
	if err != nil {
		return nil, err
	}
	graph, err := dag.NewBuilder(a.registry).Resolve(ctx, targets...)
	if err != nil {
		return nil, fmt.Errorf("failed to build dependency graph: %w", err)
	}

	seen := make(map[string]bool)
	var dirs []string
	add := func(path string) {
		dir := filepath.Dir(path)
		if !seen[dir] && fsutil.Exists(dir) {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}
	for _, n := range graph.Order() {
		for _, in := range n.Inputs {
			if graph.Producer(in) == nil {
				add(in)
			}
		}
	}
	// Targets that exist with no producer are sources too.
	for _, target := range targets {
		if graph.Producer(target) == nil {
			add(target)
		}
	}
	sort.Strings(dirs)
	return dirs, nil
}
