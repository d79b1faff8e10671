package executor

import (
	"time"

	"github.com/specialistvlad/pipegridgo/internal/dag"
	"github.com/specialistvlad/pipegridgo/internal/fsutil"
	"github.com/specialistvlad/pipegridgo/internal/pattern"
)

// upToDate reports whether a node's outputs already exist and are at least as
// new as every input. A node with no inputs is up to date as soon as its
// outputs exist. Deferred nodes are never up to date: their inputs are
// unknown until the checkpoint they wait on has settled.
func (e *Executor) upToDate(n *dag.Node) bool {
	if n.Deferred {
		return false
	}

	oldestOut, ok := e.oldestOutput(n)
	if !ok {
		return false
	}

	newestIn := time.Time{}
	for _, in := range n.Inputs {
		mt, ok := fsutil.ModTime(in)
		if !ok {
			return false
		}
		if mt.After(newestIn) {
			newestIn = mt
		}
	}
	return !oldestOut.Before(newestIn)
}

// oldestOutput finds the oldest existing output of the node. Checkpoint
// outputs are templates, so discovery runs through their wildcard patterns;
// a checkpoint with no matches on disk is treated as never having run.
func (e *Executor) oldestOutput(n *dag.Node) (time.Time, bool) {
	var oldest time.Time
	found := false
	for _, out := range n.Outputs {
		if n.Rule.Checkpoint && pattern.HasWildcards(out) {
			matches, err := pattern.Glob(out)
			if err != nil || len(matches) == 0 {
				return time.Time{}, false
			}
			for _, m := range matches {
				mt, ok := fsutil.ModTime(m.Path)
				if !ok {
					return time.Time{}, false
				}
				if !found || mt.Before(oldest) {
					oldest = mt
					found = true
				}
			}
			continue
		}
		mt, ok := fsutil.ModTime(out)
		if !ok {
			return time.Time{}, false
		}
		if !found || mt.Before(oldest) {
			oldest = mt
			found = true
		}
	}
	return oldest, found
}
