package structural

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraph_AddEdgeIndexes(t *testing.T) {
	g := NewGraph(".")
	g.AddNode(Node{Name: "foo", Kind: KindFunction, File: "a.py", Line: 1, QualifiedName: "a.foo"})
	g.AddNode(Node{Name: "bar", Kind: KindFunction, File: "b.py", Line: 3, QualifiedName: "b.bar"})

	g.AddEdge(Edge{Source: "a.foo", Target: "b.bar", Kind: EdgeCalls, File: "a.py", Line: 2})
	g.AddEdge(Edge{Source: "a.foo", Target: "b.bar", Kind: EdgeCalls, File: "a.py", Line: 5})

	t.Run("edge list keeps every occurrence", func(t *testing.T) {
		assert.Len(t, g.Edges, 2)
	})

	t.Run("indexes collapse duplicate pairs", func(t *testing.T) {
		assert.Equal(t, []string{"a.foo"}, g.Callers("b.bar"))
		assert.Equal(t, []string{"b.bar"}, g.Callees("a.foo"))
	})
}

func TestGraph_RebuildIndexes(t *testing.T) {
	g := NewGraph(".")
	g.AddEdge(Edge{Source: "m.f", Target: "m.g", Kind: EdgeCalls})
	g.AddEdge(Edge{Source: "m.f", Target: "m.h", Kind: EdgeCalls})

	// Wipe the caches, then restore them from the edge list alone.
	g.callers = make(map[string][]string)
	g.callees = make(map[string][]string)
	g.RebuildIndexes()

	assert.Equal(t, []string{"m.g", "m.h"}, g.Callees("m.f"))
	assert.Equal(t, []string{"m.f"}, g.Callers("m.g"))
}

func TestGraph_OverwriteOnReinsert(t *testing.T) {
	g := NewGraph(".")
	g.AddNode(Node{Name: "foo", Kind: KindFunction, File: "a.py", Line: 1, QualifiedName: "a.foo"})
	g.AddNode(Node{Name: "foo", Kind: KindFunction, File: "a.py", Line: 9, QualifiedName: "a.foo"})

	require.Len(t, g.Nodes, 1)
	assert.Equal(t, 9, g.Nodes["a.foo"].Line)
}

func TestGraph_PartialNameMatch(t *testing.T) {
	g := NewGraph(".")
	g.AddNode(Node{Name: "save", Kind: KindMethod, File: "store.py", Line: 10, QualifiedName: "store.Store.save"})
	g.AddNode(Node{Name: "main", Kind: KindFunction, File: "app.py", Line: 1, QualifiedName: "app.main"})
	g.AddEdge(Edge{Source: "app.main", Target: "store.Store.save", Kind: EdgeCalls, File: "app.py", Line: 4})

	t.Run("bare name resolves through suffix match", func(t *testing.T) {
		assert.Equal(t, []string{"app.main"}, g.Callers("save"))
	})

	t.Run("find node by bare name", func(t *testing.T) {
		n := g.FindNode("save")
		require.NotNil(t, n)
		assert.Equal(t, "store.Store.save", n.QualifiedName)
	})

	t.Run("unknown name is empty, not an error", func(t *testing.T) {
		assert.Empty(t, g.Callers("does_not_exist"))
		assert.Nil(t, g.FindNode("does_not_exist"))
	})
}

func TestGraph_FindNodeAmbiguousNameIsDeterministic(t *testing.T) {
	// The same bare name defined in several files must resolve to the
	// same node on every lookup, regardless of map iteration order.
	build := func() *Graph {
		g := NewGraph(".")
		g.AddNode(Node{Name: "local", Kind: KindFunction, File: "zeta.py", Line: 1, QualifiedName: "zeta.local"})
		g.AddNode(Node{Name: "local", Kind: KindFunction, File: "alpha.py", Line: 1, QualifiedName: "alpha.local"})
		g.AddNode(Node{Name: "local", Kind: KindFunction, File: "mid.py", Line: 1, QualifiedName: "mid.local"})
		return g
	}

	for i := 0; i < 20; i++ {
		n := build().FindNode("local")
		require.NotNil(t, n)
		assert.Equal(t, "alpha.local", n.QualifiedName)
	}
}

func TestGraph_Query(t *testing.T) {
	g := NewGraph(".")
	g.AddNode(Node{Name: "foo", Kind: KindFunction, File: "a.py", Line: 1, QualifiedName: "a.foo"})
	g.AddNode(Node{Name: "bar", Kind: KindFunction, File: "b.py", Line: 1, QualifiedName: "b.bar"})
	g.AddNode(Node{Name: "baz", Kind: KindFunction, File: "c.py", Line: 1, QualifiedName: "c.baz"})
	g.AddEdge(Edge{Source: "a.foo", Target: "b.bar", Kind: EdgeCalls, File: "a.py", Line: 2})
	g.AddEdge(Edge{Source: "b.bar", Target: "c.baz", Kind: EdgeCalls, File: "b.py", Line: 2})

	res := g.Query("bar")
	require.NotNil(t, res.Node)
	assert.Equal(t, "b.bar", res.Node.QualifiedName)
	require.Len(t, res.Callers, 1)
	assert.Equal(t, "a.foo", res.Callers[0].Name)
	require.Len(t, res.Callees, 1)
	assert.Equal(t, "c.baz", res.Callees[0].Name)
	assert.Equal(t, []string{"a.py", "b.py", "c.py"}, res.RelatedFiles)
}

func TestGraph_RemoveFile(t *testing.T) {
	g := NewGraph(".")
	g.AddNode(Node{Name: "foo", Kind: KindFunction, File: "a.py", Line: 1, QualifiedName: "a.foo"})
	g.AddNode(Node{Name: "bar", Kind: KindFunction, File: "b.py", Line: 1, QualifiedName: "b.bar"})
	g.AddEdge(Edge{Source: "a.foo", Target: "b.bar", Kind: EdgeCalls, File: "a.py", Line: 2})

	removed := g.RemoveFile("a.py")
	assert.Equal(t, 1, removed)
	assert.Empty(t, g.Edges)
	assert.Empty(t, g.Callers("b.bar"))
	assert.Contains(t, g.Nodes, "b.bar")
}
