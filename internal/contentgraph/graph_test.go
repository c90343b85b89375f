package contentgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type strNode string

func (s strNode) ContentKey() string { return string(s) }

type label string

const (
	labelA label = "a"
	labelB label = "b"
)

func TestAddNodeByContentKeyIsIdempotent(t *testing.T) {
	g := New[strNode, label]()
	id1 := g.AddNodeByContentKey("x", "x")
	id2 := g.AddNodeByContentKey("x", "x")
	assert.Equal(t, id1, id2)
	assert.Len(t, g.NodeIDs(), 1)
}

func TestAddEdgeIdempotentPerLabel(t *testing.T) {
	g := New[strNode, label]()
	a := g.AddNodeByContentKey("a", "a")
	b := g.AddNodeByContentKey("b", "b")

	require.True(t, g.AddEdge(a, b, labelA))
	require.False(t, g.AddEdge(a, b, labelA)) // already exists
	require.True(t, g.AddEdge(a, b, labelB))  // different label, new edge

	assert.True(t, g.HasEdge(a, b, labelA))
	assert.True(t, g.HasEdge(a, b, labelB))
	assert.ElementsMatch(t, []ID{b}, g.GetNodeIdsConnectedFrom(a, labelA))
	assert.ElementsMatch(t, []ID{a}, g.GetNodeIdsConnectedTo(b, labelA))
}

func TestRemoveEdge(t *testing.T) {
	g := New[strNode, label]()
	a := g.AddNodeByContentKey("a", "a")
	b := g.AddNodeByContentKey("b", "b")
	g.AddEdge(a, b, labelA)
	g.RemoveEdge(a, b, labelA)
	assert.False(t, g.HasEdge(a, b, labelA))
	assert.Empty(t, g.GetNodeIdsConnectedFrom(a, labelA))
	assert.Empty(t, g.GetNodeIdsConnectedTo(b, labelA))
}

func TestReplaceNodeIdsConnectedTo(t *testing.T) {
	g := New[strNode, label]()
	p := g.AddNodeByContentKey("p", "p")
	c1 := g.AddNodeByContentKey("c1", "c1")
	c2 := g.AddNodeByContentKey("c2", "c2")
	c3 := g.AddNodeByContentKey("c3", "c3")

	g.AddEdge(c1, p, labelA)
	g.AddEdge(c2, p, labelA)

	added, removed := g.ReplaceNodeIdsConnectedTo(p, []ID{c2, c3}, labelA)
	assert.Equal(t, []ID{c3}, added)
	assert.Equal(t, []ID{c1}, removed)
	assert.ElementsMatch(t, []ID{c2, c3}, g.GetNodeIdsConnectedTo(p, labelA))
}

func TestRemoveNodeDetachesAllEdgesAndKey(t *testing.T) {
	g := New[strNode, label]()
	a := g.AddNodeByContentKey("a", "a")
	b := g.AddNodeByContentKey("b", "b")
	c := g.AddNodeByContentKey("c", "c")
	g.AddEdge(a, b, labelA)
	g.AddEdge(c, a, labelB)

	g.RemoveNode(a)

	assert.False(t, g.HasNode(a))
	assert.False(t, g.HasContentKey("a"))
	assert.Empty(t, g.GetNodeIdsConnectedFrom(a, labelA))
	assert.Empty(t, g.GetNodeIdsConnectedTo(b, labelA))
	assert.Empty(t, g.GetNodeIdsConnectedFrom(c, labelB))
}

func TestGetNodeByContentKey(t *testing.T) {
	g := New[strNode, label]()
	id := g.AddNodeByContentKey("k", "v")
	n, gotID, ok := g.GetNodeByContentKey("k")
	require.True(t, ok)
	assert.Equal(t, id, gotID)
	assert.Equal(t, strNode("v"), n)

	_, _, ok = g.GetNodeByContentKey("missing")
	assert.False(t, ok)
}
