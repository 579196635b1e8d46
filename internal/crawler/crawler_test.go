package crawler

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codemap/internal/extractor"
)

func write(t *testing.T, root, name, content string) {
	t.Helper()
	path := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func scanFiles(t *testing.T, c *Crawler, root string) []string {
	t.Helper()
	var files []string
	err := c.Scan(context.Background(), root, func(res *extractor.FileResult) {
		files = append(files, res.File)
	})
	require.NoError(t, err)
	sort.Strings(files)
	return files
}

func newPythonCrawler(t *testing.T, exclude []string) *Crawler {
	t.Helper()
	ext, err := extractor.NewExtractor("python")
	require.NoError(t, err)
	return New([]*extractor.Extractor{ext}, exclude, nil)
}

func TestCrawler_ScanCollectsSourceFiles(t *testing.T) {
	root := t.TempDir()
	write(t, root, "a.py", "def foo():\n    pass\n")
	write(t, root, "pkg/b.py", "def bar():\n    pass\n")
	write(t, root, "README.md", "# nope\n")
	write(t, root, "__pycache__/c.py", "def cached():\n    pass\n")
	write(t, root, ".git/d.py", "def hidden():\n    pass\n")

	c := newPythonCrawler(t, nil)
	assert.Equal(t, []string{"a.py", "pkg/b.py"}, scanFiles(t, c, root))
}

func TestCrawler_ExclusionGlobs(t *testing.T) {
	root := t.TempDir()
	write(t, root, "keep.py", "def keep():\n    pass\n")
	write(t, root, "gen/skipped.py", "def skipped():\n    pass\n")
	write(t, root, "models_gen.py", "def also_skipped():\n    pass\n")

	c := newPythonCrawler(t, []string{"gen", "*_gen.py"})
	assert.Equal(t, []string{"keep.py"}, scanFiles(t, c, root))
}

func TestCrawler_InvalidPatternSkipped(t *testing.T) {
	root := t.TempDir()
	write(t, root, "a.py", "def foo():\n    pass\n")

	c := newPythonCrawler(t, []string{"["})
	assert.Equal(t, []string{"a.py"}, scanFiles(t, c, root))
}

func TestCrawler_MultipleLanguages(t *testing.T) {
	root := t.TempDir()
	write(t, root, "a.py", "def foo():\n    pass\n")
	write(t, root, "b.go", "package b\n\nfunc Bar() {}\n")
	write(t, root, "b_test.go", "package b\n")

	py, err := extractor.NewExtractor("python")
	require.NoError(t, err)
	goExt, err := extractor.NewExtractor("go")
	require.NoError(t, err)

	c := New([]*extractor.Extractor{py, goExt}, nil, nil)
	assert.Equal(t, []string{"a.py", "b.go"}, scanFiles(t, c, root))
}
