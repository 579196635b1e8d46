package hybrid

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codemap/internal/crawler"
	"codemap/internal/extractor"
	"codemap/internal/history"
)

// stubRunner serves canned git log output instead of executing git.
type stubRunner struct {
	out string
	err error
}

func (s *stubRunner) Run(_ context.Context, _ string, _ ...string) ([]byte, error) {
	return []byte(s.out), s.err
}

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func pythonBuilder(t *testing.T, runner *stubRunner) *Builder {
	t.Helper()
	ext, err := extractor.NewExtractor("python")
	require.NoError(t, err)
	b := &Builder{
		Crawler: crawler.New([]*extractor.Extractor{ext}, nil, nil),
	}
	if runner != nil {
		b.Miner = history.NewMiner(runner, 200, []string{".py"}, nil)
	}
	return b
}

func TestBuild_CrossFileCallBecomesFileEdge(t *testing.T) {
	root := writeTree(t, map[string]string{
		"a.py": "from b import bar\n\ndef foo():\n    bar()\n",
		"b.py": "def bar():\n    pass\n",
		"c.py": "def lonely():\n    pass\n",
	})

	res, err := pythonBuilder(t, nil).Build(context.Background(), root, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Files)

	related := res.Graph.RelatedNodes("a.py", 0)
	require.NotEmpty(t, related)
	found := false
	for _, r := range related {
		if r.ID == "b.py" {
			found = true
			assert.Contains(t, r.RelationshipTypes, RelCalls)
		}
		assert.NotEqual(t, "c.py", r.ID, "unconnected file must not appear")
	}
	assert.True(t, found, "a.py must relate to b.py")
}

func TestBuild_SameFileEdgesDropped(t *testing.T) {
	root := writeTree(t, map[string]string{
		"a.py": "def helper():\n    pass\n\ndef main():\n    helper()\n",
	})

	res, err := pythonBuilder(t, nil).Build(context.Background(), root, nil)
	require.NoError(t, err)

	assert.NotEmpty(t, res.Structural.Edges, "symbol graph keeps the intra-file call")
	assert.Empty(t, res.Graph.Edges(), "file graph drops same-file edges")
}

func TestBuild_ComodScoreFromHistory(t *testing.T) {
	root := writeTree(t, map[string]string{
		"a.py": "def foo():\n    pass\n",
		"b.py": "def bar():\n    pass\n",
	})

	// Real log shape: blank line after the header, none before the
	// next one.
	var log strings.Builder
	for i := 0; i < 6; i++ {
		fmt.Fprintf(&log, "%040x|dev|touch both\n\na.py\nb.py\n", i+1)
	}
	runner := &stubRunner{out: log.String()}

	res, err := pythonBuilder(t, runner).Build(context.Background(), root, nil)
	require.NoError(t, err)
	assert.Equal(t, 6, res.Commits)

	assert.Equal(t, 6, res.Graph.ComodCount("a.py", "b.py"))
	assert.InDelta(t, 0.3, res.Graph.Node("a.py").ComodScore, 1e-9)
	assert.InDelta(t, 0.3, res.Graph.Node("b.py").ComodScore, 1e-9)

	related := res.Graph.RelatedNodes("a.py", 0)
	require.NotEmpty(t, related)
	assert.Equal(t, "b.py", related[0].ID)
	assert.Contains(t, related[0].RelationshipTypes, RelModifiedTogether)
}

func TestBuild_StructuralScoreFromDegree(t *testing.T) {
	root := writeTree(t, map[string]string{
		"a.py": "from b import bar\nfrom c import baz\n\ndef foo():\n    bar()\n    baz()\n",
		"b.py": "def bar():\n    pass\n",
		"c.py": "def baz():\n    pass\n",
	})

	res, err := pythonBuilder(t, nil).Build(context.Background(), root, nil)
	require.NoError(t, err)

	// a.py touches b.py and c.py, so two distinct neighbors.
	assert.InDelta(t, 0.2, res.Graph.Node("a.py").StructuralScore, 1e-12)
	assert.InDelta(t, 0.1, res.Graph.Node("b.py").StructuralScore, 1e-12)
}

func TestBuild_GitFailureDegrades(t *testing.T) {
	root := writeTree(t, map[string]string{
		"a.py": "def foo():\n    pass\n",
	})
	runner := &stubRunner{err: os.ErrPermission}

	res, err := pythonBuilder(t, runner).Build(context.Background(), root, nil)
	require.NoError(t, err, "history failure must not abort the build")
	assert.Zero(t, res.Commits)
	assert.Zero(t, res.Graph.Node("a.py").ComodScore)
}

func TestBuild_CarriesTemporalState(t *testing.T) {
	root := writeTree(t, map[string]string{
		"a.py": "def foo():\n    pass\n",
		"b.py": "def bar():\n    pass\n",
	})
	b := pythonBuilder(t, nil)

	first, err := b.Build(context.Background(), root, nil)
	require.NoError(t, err)

	first.Graph.RecordAccess("a.py")
	first.Graph.RecordAccess("b.py")

	second, err := b.Build(context.Background(), root, first.Graph)
	require.NoError(t, err)

	n := second.Graph.Node("a.py")
	assert.Equal(t, 1, n.AccessCount)
	assert.Positive(t, n.TemporalScore)
	assert.Len(t, second.Graph.AccessHistory(), 2)

	e := second.Graph.edges[edgeKey("a.py", "b.py")]
	require.NotNil(t, e, "temporal edge survives the rebuild")
	assert.Equal(t, 0.05, e.TemporalWeight)
	assert.Contains(t, e.RelationshipTypes, RelAccessedTogether)
}

func TestBuild_InsertionOrderDeterministic(t *testing.T) {
	root := writeTree(t, map[string]string{
		"z.py": "def zf():\n    pass\n",
		"a.py": "def af():\n    pass\n",
		"m.py": "def mf():\n    pass\n",
	})
	b := pythonBuilder(t, nil)

	res, err := b.Build(context.Background(), root, nil)
	require.NoError(t, err)

	var ids []string
	for _, n := range res.Graph.Nodes() {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []string{"a.py", "m.py", "z.py"}, ids)
}
