package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codemap/internal/history"
	"codemap/internal/hybrid"
	"codemap/internal/structural"
)

func sampleHybridGraph() *hybrid.Graph {
	g := hybrid.NewGraph()
	g.AddNode(hybrid.Node{ID: "a.py", Kind: hybrid.KindFile, Path: "a.py", Name: "a.py", StructuralScore: 0.1})
	g.AddNode(hybrid.Node{ID: "b.py", Kind: hybrid.KindFile, Path: "b.py", Name: "b.py", StructuralScore: 0.1})
	g.AddNode(hybrid.Node{ID: "c.py", Kind: hybrid.KindFile, Path: "c.py", Name: "c.py"})
	g.AddEdge("a.py", "b.py", hybrid.RelCalls, 1.0)
	g.AddEdge("a.py", "c.py", hybrid.RelImports, 1.0)
	g.RecordComodification([]string{"a.py", "b.py"})
	return g
}

func searchIDs(g *hybrid.Graph, query string) []string {
	var ids []string
	for _, r := range g.Search(query, 0) {
		ids = append(ids, r.Node.ID)
	}
	return ids
}

func TestJSONStore_HybridRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), ".codemap")
	store := NewJSONStore(dir)
	ctx := context.Background()

	g := sampleHybridGraph()
	require.NoError(t, store.SaveHybrid(ctx, g))

	loaded, err := store.LoadHybrid(ctx)
	require.NoError(t, err)

	for _, query := range []string{"a", "py", "b", "zzz"} {
		assert.Equal(t, searchIDs(g, query), searchIDs(loaded, query), "query %q", query)
	}
	assert.Equal(t, g.RelatedNodes("a.py", 0), loaded.RelatedNodes("a.py", 0))
	assert.Equal(t, g.ComodCount("a.py", "b.py"), loaded.ComodCount("a.py", "b.py"))
}

func TestJSONStore_MissingSnapshotIsNotFound(t *testing.T) {
	store := NewJSONStore(filepath.Join(t.TempDir(), ".codemap"))

	_, err := store.LoadHybrid(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.LoadStructural(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.LoadCorrelations(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestJSONStore_CorruptSnapshotIsNotFound(t *testing.T) {
	dir := filepath.Join(t.TempDir(), ".codemap")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, hybridFile), []byte("{not json"), 0o644))

	_, err := NewJSONStore(dir).LoadHybrid(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestJSONStore_OffVersionSnapshotIsNotFound(t *testing.T) {
	dir := filepath.Join(t.TempDir(), ".codemap")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	doc := `{"version": 2, "nodes": [], "edges": []}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, hybridFile), []byte(doc), 0o644))

	_, err := NewJSONStore(dir).LoadHybrid(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestJSONStore_StructuralRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), ".codemap")
	store := NewJSONStore(dir)
	ctx := context.Background()

	g := structural.NewGraph("/repo")
	g.AddNode(structural.Node{Name: "foo", Kind: structural.KindFunction, File: "a.py", Line: 3, QualifiedName: "a.foo"})
	g.AddNode(structural.Node{Name: "bar", Kind: structural.KindFunction, File: "b.py", Line: 1, QualifiedName: "b.bar"})
	g.AddEdge(structural.Edge{Source: "a.foo", Target: "b.bar", Kind: structural.EdgeCalls, File: "a.py", Line: 4})
	require.NoError(t, store.SaveStructural(ctx, g))

	loaded, err := store.LoadStructural(ctx)
	require.NoError(t, err)
	assert.Equal(t, "/repo", loaded.Root)
	assert.Equal(t, g.Nodes, loaded.Nodes)
	assert.Equal(t, g.Edges, loaded.Edges)
	assert.Equal(t, []string{"a.foo"}, loaded.Callers("b.bar"))
}

func TestJSONStore_CorrelationsRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), ".codemap")
	store := NewJSONStore(dir)
	ctx := context.Background()

	d := history.NewCorrelationData("/repo")
	d.RecordComod([]string{"a.py", "b.py"})
	d.CommitsAnalyzed = 1
	d.LastCommit = "abc123"
	require.NoError(t, store.SaveCorrelations(ctx, d))

	loaded, err := store.LoadCorrelations(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.ComodCounts["a.py"]["b.py"])
	assert.Equal(t, 1, loaded.CommitsAnalyzed)
	assert.Equal(t, "abc123", loaded.LastCommit)
	assert.NotNil(t, loaded.AccessCounts)
}

func TestOpen_BackendSelection(t *testing.T) {
	dir := t.TempDir()

	s, err := Open("", dir)
	require.NoError(t, err)
	assert.IsType(t, &JSONStore{}, s)

	s, err = Open("sqlite", dir)
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open("bolt", dir)
	assert.Error(t, err)
}
