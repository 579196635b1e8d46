package hybrid

import (
	"context"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"time"

	"codemap/internal/crawler"
	"codemap/internal/extractor"
	"codemap/internal/history"
	"codemap/internal/structural"
)

// Node score coefficients recomputed on every build.
const (
	structuralScoreStep = 0.1
	comodScoreStep      = 0.05
)

// Builder performs a full rebuild: rescan the tree, re-extract structure,
// replay commit history, and fold everything into a fresh fusion graph.
// The miner is optional; without one the graph carries no co-modification
// signal, which is a degradation, not an error.
type Builder struct {
	Crawler *crawler.Crawler
	Miner   *history.Miner
	Logger  *slog.Logger
}

// Result is what one build produces: the symbol-level structural graph and
// the file-level fusion graph derived from it.
type Result struct {
	Structural *structural.Graph
	Graph      *Graph
	Files      int
	Commits    int
}

// Build rebuilds both graphs from scratch. prev, when non-nil, donates its
// runtime temporal state (access history, access counters, temporal edge
// weights) so that a rebuild does not forget what the session has learned.
func (b *Builder) Build(ctx context.Context, root string, prev *Graph) (*Result, error) {
	logger := b.Logger
	if logger == nil {
		logger = slog.Default()
	}

	sg := structural.NewGraph(root)
	var results []*extractor.FileResult
	err := b.Crawler.Scan(ctx, root, func(res *extractor.FileResult) {
		results = append(results, res)
	})
	if err != nil {
		return nil, err
	}
	// Parse completion order is nondeterministic; sort by file so that
	// insertion order, and with it tie-breaking, is stable across builds.
	sort.Slice(results, func(i, j int) bool {
		return results[i].File < results[j].File
	})

	hg := NewGraph()
	for _, res := range results {
		for _, n := range res.Nodes {
			sg.AddNode(n)
		}
		for _, e := range res.Edges {
			sg.AddEdge(e)
		}
		hg.AddNode(Node{
			ID:           res.File,
			Kind:         KindFile,
			Path:         res.File,
			Name:         path.Base(res.File),
			LastModified: modTime(root, res.File),
		})
	}

	b.addStructuralEdges(sg, hg)

	commits := 0
	if b.Miner != nil {
		commits = b.replayHistory(ctx, root, hg, logger)
	}

	b.scoreNodes(hg)
	if prev != nil {
		hg.carryTemporal(prev)
	}

	logger.Info("graph built",
		"root", root,
		"files", len(results),
		"nodes", hg.Len(),
		"edges", len(hg.edgeOrder),
		"commits", commits)
	return &Result{Structural: sg, Graph: hg, Files: len(results), Commits: commits}, nil
}

// addStructuralEdges projects symbol-level edges down to file level. An
// edge between two symbols defined in different files becomes a file→file
// edge of the same kind; same-file and unresolved edges are dropped here
// since the fusion graph's nodes are files.
func (b *Builder) addStructuralEdges(sg *structural.Graph, hg *Graph) {
	for _, e := range sg.Edges {
		srcFile := symbolFile(sg, e.Source)
		dstFile := symbolFile(sg, e.Target)
		if srcFile == "" || dstFile == "" || srcFile == dstFile {
			continue
		}
		hg.AddEdge(srcFile, dstFile, string(e.Kind), 1.0)
	}
}

func symbolFile(sg *structural.Graph, name string) string {
	if n, ok := sg.Nodes[name]; ok {
		return n.File
	}
	if n := sg.FindNode(name); n != nil {
		return n.File
	}
	return ""
}

func (b *Builder) replayHistory(ctx context.Context, root string, hg *Graph, logger *slog.Logger) int {
	commits, err := b.Miner.Commits(ctx, root)
	if err != nil {
		logger.Warn("skipping commit history", "root", root, "error", err)
		return 0
	}
	counted := 0
	for _, c := range commits {
		if len(c.Files) < 2 {
			continue
		}
		hg.RecordComodification(c.Files)
		counted++
	}
	return counted
}

// scoreNodes recomputes the per-node structural and co-modification scores
// with diminishing returns and a hard ceiling at 1.0. Temporal scores are
// runtime state and are never recomputed here.
func (b *Builder) scoreNodes(hg *Graph) {
	degree := make(map[string]map[string]struct{})
	link := func(a, b string) {
		m := degree[a]
		if m == nil {
			m = make(map[string]struct{})
			degree[a] = m
		}
		m[b] = struct{}{}
	}
	for _, key := range hg.edgeOrder {
		e := hg.edges[key]
		link(e.Source, e.Target)
		link(e.Target, e.Source)
	}

	for _, id := range hg.nodeOrder {
		n := hg.nodes[id]
		n.StructuralScore = capped(structuralScoreStep * float64(len(degree[id])))

		total := 0
		for _, count := range hg.comodCounts[id] {
			total += count
		}
		n.ComodScore = capped(comodScoreStep * float64(total))
	}
}

func capped(v float64) float64 {
	if v > 1 {
		return 1
	}
	return v
}

// carryTemporal copies the previous graph's runtime temporal state into
// this one: the access history, per-node access counters, and the temporal
// weight of any edge whose endpoints both survived the rebuild.
func (g *Graph) carryTemporal(prev *Graph) {
	g.accessHistory = append(g.accessHistory, prev.accessHistory...)
	if len(g.accessHistory) > maxAccessHistory {
		g.accessHistory = g.accessHistory[len(g.accessHistory)-maxAccessHistory:]
	}

	for _, id := range prev.nodeOrder {
		old := prev.nodes[id]
		n, ok := g.nodes[id]
		if !ok {
			continue
		}
		n.TemporalScore = old.TemporalScore
		n.AccessCount = old.AccessCount
		n.LastAccessed = old.LastAccessed
	}

	for _, key := range prev.edgeOrder {
		old := prev.edges[key]
		if old.TemporalWeight == 0 {
			continue
		}
		if _, ok := g.nodes[old.Source]; !ok {
			continue
		}
		if _, ok := g.nodes[old.Target]; !ok {
			continue
		}
		e, ok := g.edges[key]
		if !ok {
			e = &Edge{Source: old.Source, Target: old.Target, LastUpdated: old.LastUpdated}
			g.edges[key] = e
			g.edgeOrder = append(g.edgeOrder, key)
			g.neighbors[old.Source] = append(g.neighbors[old.Source], key)
		}
		e.TemporalWeight = old.TemporalWeight
		if !e.hasType(RelAccessedTogether) {
			e.RelationshipTypes = append(e.RelationshipTypes, RelAccessedTogether)
		}
	}
}

func modTime(root, file string) time.Time {
	info, err := os.Stat(filepath.Join(root, filepath.FromSlash(file)))
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}
