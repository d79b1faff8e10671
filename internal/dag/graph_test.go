package dag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/pipegridgo/internal/config"
	"github.com/specialistvlad/pipegridgo/internal/pattern"
)

func testNode(g *Graph, rule string, pos int) *Node {
	n := newNode(&config.Rule{Name: rule, Pos: pos, Threads: 1, Shell: "true"}, nil, len(g.order))
	g.add(n)
	return n
}

func TestInstanceID(t *testing.T) {
	r := &config.Rule{Name: "trim"}
	assert.Equal(t, "rule.trim", instanceID(r, nil))
	assert.Equal(t, "rule.trim[sample=a]", instanceID(r, pattern.Binding{"sample": "a"}))
	assert.Equal(t, "rule.trim[a=1,b=2]", instanceID(r, pattern.Binding{"b": "2", "a": "1"}))

	cp := &config.Rule{Name: "split", Checkpoint: true}
	assert.Equal(t, "checkpoint.split", instanceID(cp, nil))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "pending", Pending.String())
	assert.Equal(t, "done", Done.String())
	assert.True(t, Done.Terminal())
	assert.True(t, Skipped.Terminal())
	assert.False(t, Running.Terminal())
}

func TestNodeThreads(t *testing.T) {
	n := &Node{Rule: &config.Rule{Threads: 8}}
	assert.Equal(t, 4, n.Threads(4), "threads clamp to pool size")
	n.Rule.Threads = 2
	assert.Equal(t, 2, n.Threads(4))
}

func TestTopoSort(t *testing.T) {
	t.Run("dependency order with registration tie-break", func(t *testing.T) {
		g := NewGraph()
		a := testNode(g, "a", 0)
		b := testNode(g, "b", 1)
		c := testNode(g, "c", 2)
		g.link(a, c)
		g.link(b, c)

		sorted, err := g.TopoSort()
		require.NoError(t, err)
		assert.Equal(t, []*Node{a, b, c}, sorted)
	})

	t.Run("roots sort by registration order regardless of creation", func(t *testing.T) {
		g := NewGraph()
		// Created in reverse registration order, as backward resolution does.
		c := testNode(g, "c", 2)
		b := testNode(g, "b", 1)
		a := testNode(g, "a", 0)
		g.link(b, c)
		g.link(a, b)

		sorted, err := g.TopoSort()
		require.NoError(t, err)
		assert.Equal(t, []*Node{a, b, c}, sorted)
	})

	t.Run("cycle is reported", func(t *testing.T) {
		g := NewGraph()
		a := testNode(g, "a", 0)
		b := testNode(g, "b", 1)
		g.link(a, b)
		g.link(b, a)

		_, err := g.TopoSort()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrCyclicDependency)
	})
}
