package dag

import (
	"context"
	"fmt"
	"strings"

	"github.com/specialistvlad/pipegridgo/internal/config"
	"github.com/specialistvlad/pipegridgo/internal/ctxlog"
	"github.com/specialistvlad/pipegridgo/internal/fsutil"
	"github.com/specialistvlad/pipegridgo/internal/pattern"
	"github.com/specialistvlad/pipegridgo/internal/registry"
)

// Builder resolves requested target paths backward into a graph of rule
// instantiations, and re-resolves deferred branches after a checkpoint has
// materialized its outputs.
type Builder struct {
	reg *registry.Registry
}

// NewBuilder creates a Builder over the given rule registry.
func NewBuilder(reg *registry.Registry) *Builder {
	return &Builder{reg: reg}
}

// Resolve builds a complete, validated dependency graph for the targets.
// Leaves must be pre-existing files; every failure here is fatal and happens
// before any side effect.
func (b *Builder) Resolve(ctx context.Context, targets ...string) (*Graph, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Resolve: starting backward resolution.", "targets", targets)

	g := NewGraph()
	g.Targets = targets
	for _, target := range targets {
		n, err := b.resolvePath(ctx, g, target, map[string]bool{}, nil)
		if err != nil {
			return nil, err
		}
		if n == nil {
			logger.Info("Target already exists and has no producer, nothing to do.", "target", target)
		}
	}

	logger.Debug("Resolve: graph construction successful.", "node_count", len(g.Nodes))
	return g, nil
}

// resolvePath finds or creates the instantiation producing path. It returns
// nil when the path is a pre-existing leaf file. The active resolution path
// is carried in stack (node IDs) and chain (file paths, for error messages).
func (b *Builder) resolvePath(ctx context.Context, g *Graph, path string, stack map[string]bool, chain []string) (*Node, error) {
	logger := ctxlog.FromContext(ctx)

	if n := g.Producer(path); n != nil {
		if stack[n.ID] {
			return nil, cycleError(chain, path)
		}
		return n, nil
	}

	prod, err := b.reg.FindProducer(path)
	if err != nil {
		return nil, err
	}
	if prod == nil {
		if fsutil.Exists(path) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w for %q (required%s)", ErrNoProducer, path, chainSuffix(chain))
	}

	id := instanceID(prod.Rule, prod.Binding)
	if n, ok := g.Nodes[id]; ok {
		if stack[id] {
			return nil, cycleError(chain, path)
		}
		// The path matched a template of an already-instantiated node.
		g.producers[path] = n
		return n, nil
	}

	n := newNode(prod.Rule, prod.Binding, len(g.order))
	logger.Debug("Instantiating rule.", "id", n.ID, "for", path)

	for _, tmpl := range prod.Rule.Output {
		out := pattern.Apply(tmpl, prod.Binding)
		if missing := pattern.Unbound(out, nil); len(missing) > 0 {
			return nil, fmt.Errorf("%w {%s} in output %q of rule %q", ErrUnboundWildcard, missing[0], tmpl, prod.Rule.Name)
		}
		if other := g.Producer(out); other != nil && other.ID != n.ID {
			return nil, fmt.Errorf("path %q claimed by %s and %s: %w", out, other.ID, n.ID, registry.ErrAmbiguousProducer)
		}
		n.Outputs = append(n.Outputs, out)
		g.producers[out] = n
	}
	g.add(n)

	stack[id] = true
	defer delete(stack, id)

	if prod.Rule.WildcardsFrom != "" {
		cp, err := b.resolveCheckpoint(ctx, g, prod.Rule, stack, append(chain, path))
		if err != nil {
			return nil, err
		}
		n.Deferred = true
		g.link(cp, n)
		logger.Debug("Deferred instantiation until checkpoint completes.", "id", n.ID, "checkpoint", cp.ID)
		return n, nil
	}

	for _, tmpl := range prod.Rule.Input {
		in := pattern.Apply(tmpl, prod.Binding)
		if missing := pattern.Unbound(in, nil); len(missing) > 0 {
			return nil, fmt.Errorf("%w {%s} in input %q of rule %q: not bound by its outputs and no wildcards_from given",
				ErrUnboundWildcard, missing[0], tmpl, prod.Rule.Name)
		}
		n.Inputs = append(n.Inputs, in)
		child, err := b.resolvePath(ctx, g, in, stack, append(chain, path))
		if err != nil {
			return nil, err
		}
		if child != nil {
			g.link(child, n)
		}
	}

	return n, nil
}

// resolveCheckpoint finds or creates the single instantiation of a rule's
// wildcards_from checkpoint. Checkpoints are instantiated with an empty
// binding; their output templates are kept raw for post-run discovery.
func (b *Builder) resolveCheckpoint(ctx context.Context, g *Graph, consumer *config.Rule, stack map[string]bool, chain []string) (*Node, error) {
	cpRule, ok := b.reg.Lookup(consumer.WildcardsFrom)
	if !ok {
		return nil, fmt.Errorf("rule %q: wildcards_from references unknown rule %q", consumer.Name, consumer.WildcardsFrom)
	}
	if !cpRule.Checkpoint {
		return nil, fmt.Errorf("rule %q: wildcards_from %q is not a checkpoint", consumer.Name, consumer.WildcardsFrom)
	}

	id := instanceID(cpRule, nil)
	if n, ok := g.Nodes[id]; ok {
		if stack[id] {
			return nil, cycleError(chain, "checkpoint "+cpRule.Name)
		}
		return n, nil
	}

	n := newNode(cpRule, nil, len(g.order))
	n.Outputs = append(n.Outputs, cpRule.Output...)
	g.add(n)

	stack[id] = true
	defer delete(stack, id)

	for _, tmpl := range cpRule.Input {
		if pattern.HasWildcards(tmpl) {
			return nil, fmt.Errorf("%w {%s} in input %q of checkpoint %q", ErrUnboundWildcard, pattern.Wildcards(tmpl)[0], tmpl, cpRule.Name)
		}
		n.Inputs = append(n.Inputs, tmpl)
		child, err := b.resolvePath(ctx, g, tmpl, stack, append(chain, "checkpoint "+cpRule.Name))
		if err != nil {
			return nil, err
		}
		if child != nil {
			g.link(child, n)
		}
	}

	return n, nil
}

// Reevaluate runs after the checkpoint node cp has completed: it globs the
// checkpoint's output templates against the filesystem, expands every
// deferred dependent's inputs with the discovered wildcard values, and
// resolves the new concrete inputs into the live graph. It returns the nodes
// created by this round of resolution.
func (b *Builder) Reevaluate(ctx context.Context, g *Graph, cp *Node) ([]*Node, error) {
	logger := ctxlog.FromContext(ctx)

	values := make(map[string][]string)
	seen := make(map[string]map[string]bool)
	total := 0
	for _, tmpl := range cp.Rule.Output {
		found, err := pattern.Glob(tmpl)
		if err != nil {
			return nil, fmt.Errorf("checkpoint %q: discovering outputs of %q: %w", cp.Rule.Name, tmpl, err)
		}
		total += len(found)
		for _, m := range found {
			for name, val := range m.Binding {
				if seen[name] == nil {
					seen[name] = make(map[string]bool)
				}
				if !seen[name][val] {
					seen[name][val] = true
					values[name] = append(values[name], val)
				}
			}
		}
	}
	if total == 0 {
		return nil, fmt.Errorf("checkpoint %q completed but produced no files matching %v", cp.Rule.Name, cp.Rule.Output)
	}
	logger.Debug("Checkpoint outputs discovered.", "checkpoint", cp.ID, "files", total, "wildcards", values)

	before := len(g.order)
	for _, dep := range depsInOrder(cp.Dependents) {
		if !dep.Deferred {
			continue
		}
		dep.Deferred = false

		var inputs []string
		for _, tmpl := range dep.Rule.Input {
			bound := pattern.Apply(tmpl, dep.Binding)
			inputs = append(inputs, pattern.Expand(bound, values)...)
		}
		dep.Inputs = inputs
		logger.Debug("Expanded deferred inputs.", "id", dep.ID, "inputs", len(inputs))

		for _, in := range inputs {
			if missing := pattern.Unbound(in, nil); len(missing) > 0 {
				return nil, fmt.Errorf("%w {%s} in input of %s: checkpoint %q did not discover it",
					ErrUnboundWildcard, missing[0], dep.ID, cp.Rule.Name)
			}
			child, err := b.resolvePath(ctx, g, in, map[string]bool{dep.ID: true}, []string{dep.ID})
			if err != nil {
				return nil, err
			}
			if child != nil {
				g.link(child, dep)
			}
		}
	}

	created := g.Order()[before:]
	logger.Debug("Reevaluation complete.", "checkpoint", cp.ID, "new_nodes", len(created))
	return created, nil
}

func cycleError(chain []string, at string) error {
	return fmt.Errorf("%w detected at %q%s", ErrCyclicDependency, at, chainSuffix(chain))
}

func chainSuffix(chain []string) string {
	if len(chain) == 0 {
		return ""
	}
	return " via " + strings.Join(chain, " <- ")
}
