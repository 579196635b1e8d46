package crawler

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/gobwas/glob"
	"golang.org/x/sync/errgroup"

	"codemap/internal/extractor"
)

// Directories that never contain indexable sources.
var defaultIgnoredDirs = []string{
	".git", ".hg", ".codemap", "vendor", "node_modules",
	"__pycache__", ".venv", "venv", ".tox", "testdata",
}

// Crawler scans a source tree and extracts structural information from
// every file an extractor claims. Files parse in parallel, one worker per
// file, and results merge through a single callback under a lock, so merge
// order cannot produce two competing parses of the same file.
type Crawler struct {
	extractors map[string]*extractor.Extractor // keyed by file extension
	exclude    []glob.Glob
	logger     *slog.Logger
}

// New creates a crawler for the given extractors. Exclusion patterns are
// globs matched against root-relative paths (and against path base names,
// so a plain "*.gen.py" works too). Invalid patterns are skipped with a
// warning rather than failing the scan.
func New(extractors []*extractor.Extractor, exclude []string, logger *slog.Logger) *Crawler {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Crawler{
		extractors: make(map[string]*extractor.Extractor),
		logger:     logger,
	}
	for _, ext := range extractors {
		for _, suffix := range ext.Extensions() {
			c.extractors[suffix] = ext
		}
	}
	for _, pattern := range exclude {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			logger.Warn("skipping invalid exclude pattern", "pattern", pattern, "error", err)
			continue
		}
		c.exclude = append(c.exclude, g)
	}
	return c
}

// Scan walks root and streams one FileResult per parseable source file.
// A file that cannot be read or parsed is logged and skipped; it never
// aborts the scan. The onFile callback runs serialized.
func (c *Crawler) Scan(ctx context.Context, root string, onFile func(*extractor.FileResult)) error {
	files, err := c.collect(root)
	if err != nil {
		return err
	}

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for _, path := range files {
		path := path
		g.Go(func() error {
			ext := c.extractors[filepath.Ext(path)]
			res, err := ext.ExtractFile(ctx, path, root)
			if err != nil {
				c.logger.Warn("skipping file", "path", path, "error", err)
				return nil
			}
			mu.Lock()
			onFile(res)
			mu.Unlock()
			return nil
		})
	}
	return g.Wait()
}

// collect walks the tree and returns the file list in walk order.
func (c *Crawler) collect(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			c.logger.Warn("skipping unreadable entry", "path", path, "error", err)
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if path == root {
				return nil
			}
			for _, ign := range defaultIgnoredDirs {
				if d.Name() == ign {
					return filepath.SkipDir
				}
			}
			if c.excluded(rel, d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}

		if _, ok := c.extractors[filepath.Ext(path)]; !ok {
			return nil
		}
		if strings.HasSuffix(d.Name(), "_test.go") {
			return nil
		}
		if c.excluded(rel, d.Name()) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	return files, err
}

func (c *Crawler) excluded(rel, base string) bool {
	for _, g := range c.exclude {
		if g.Match(rel) || g.Match(base) {
			return true
		}
	}
	return false
}
