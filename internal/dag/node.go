package dag

import (
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/specialistvlad/pipegridgo/internal/config"
	"github.com/specialistvlad/pipegridgo/internal/pattern"
)

// State is the lifecycle state of a rule instantiation.
type State int32

const (
	Pending State = iota
	Ready
	Running
	Done
	Failed
	Skipped
)

// String returns the lower-case state name used in logs and reports.
func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Ready:
		return "ready"
	case Running:
		return "running"
	case Done:
		return "done"
	case Failed:
		return "failed"
	case Skipped:
		return "skipped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Terminal reports whether the state is final.
func (s State) Terminal() bool {
	return s == Done || s == Failed || s == Skipped
}

// Node is a rule instantiation: a rule bound to one concrete wildcard
// assignment, with its resolved input and output file sets.
type Node struct {
	// ID uniquely identifies the instantiation, e.g. rule.trim[sample=a].
	ID string

	Rule    *config.Rule
	Binding pattern.Binding

	// Inputs and Outputs are concrete paths. For a deferred node Inputs is
	// nil until the checkpoint it waits on has executed; for a checkpoint
	// node Outputs keeps the raw templates used for discovery.
	Inputs  []string
	Outputs []string

	// LogPath is the concrete log destination, empty when the rule has none.
	LogPath string

	// Deferred marks a node whose inputs await checkpoint discovery.
	Deferred bool

	// Deps are the producing nodes this node waits for; Dependents the
	// consumers waiting on it.
	Deps       map[string]*Node
	Dependents map[string]*Node

	// Seq is the creation sequence number, used for deterministic ordering
	// among nodes of the same rule.
	Seq int

	// Err holds the failure or skip cause once the node is terminal.
	Err error

	// Reason is a human-readable note for skipped and dry-run entries.
	Reason string

	state atomic.Int32
}

// State returns the node's current lifecycle state.
func (n *Node) State() State {
	return State(n.state.Load())
}

// SetState transitions the node to the given state.
func (n *Node) SetState(s State) {
	n.state.Store(int32(s))
}

// Threads returns the number of worker slots the node occupies, clamped to
// the pool size.
func (n *Node) Threads(poolSize int) int {
	t := n.Rule.Threads
	if t < 1 {
		t = 1
	}
	if t > poolSize {
		t = poolSize
	}
	return t
}

func newNode(rule *config.Rule, binding pattern.Binding, seq int) *Node {
	n := &Node{
		ID:         instanceID(rule, binding),
		Rule:       rule,
		Binding:    binding,
		Deps:       make(map[string]*Node),
		Dependents: make(map[string]*Node),
		Seq:        seq,
	}
	if rule.Log != "" {
		n.LogPath = pattern.Apply(rule.Log, binding)
	}
	return n
}

// instanceID derives the stable node identifier for a rule under a binding.
func instanceID(rule *config.Rule, binding pattern.Binding) string {
	id := rule.Kind() + "." + rule.Name
	if len(binding) == 0 {
		return id
	}
	keys := make([]string, 0, len(binding))
	for k := range binding {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = k + "=" + binding[k]
	}
	return id + "[" + strings.Join(pairs, ",") + "]"
}
