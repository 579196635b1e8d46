package retrieval

import (
	"context"
	"log/slog"
	"sort"

	"codemap/internal/gitlog"
	"codemap/internal/hybrid"
	"codemap/internal/semantic"
)

// Config controls how context subgraphs are expanded.
type Config struct {
	MaxHops   int
	MinWeight float64
	Limit     int
}

func DefaultConfig() Config {
	return Config{
		MaxHops:   2,
		MinWeight: 0.0,
		Limit:     10,
	}
}

// Entry is one file in a predicted context, with the reasons it was pulled
// in.
type Entry struct {
	ID                string
	Score             float64
	Hops              int
	RelationshipTypes []string
}

// Context is the retrieval result handed to downstream consumers.
type Context struct {
	Query   string
	SeedIDs []string
	Entries []Entry
}

// Engine predicts which files matter for a task by expanding outward from
// seed nodes over the fusion graph. A semantic backend, when present,
// contributes additional seeds; without one prediction degrades to graph
// signals alone.
type Engine struct {
	Graph    *hybrid.Graph
	Semantic semantic.Searcher
	Logger   *slog.Logger
}

// Semantic seed scores blend at the combined-weight semantic share.
const semanticSeedShare = 0.2

// Predict expands a context for a free-text task description. Seeds come
// from graph search blended with semantic matches; each hop multiplies the
// parent score by the edge's combined weight, so distant files fade.
func (e *Engine) Predict(ctx context.Context, query string, cfg Config) (*Context, error) {
	seeds := make(map[string]float64)
	for _, hit := range e.Graph.Search(query, cfg.Limit) {
		seeds[hit.Node.ID] = hit.Score
	}

	if e.Semantic != nil {
		matches, err := e.Semantic.Search(ctx, query, cfg.Limit)
		if err != nil {
			e.logger().Warn("semantic search unavailable", "error", err)
		}
		for _, m := range matches {
			if e.Graph.Node(m.Path) == nil {
				continue
			}
			if s := m.Score * semanticSeedShare; s > 0 {
				seeds[m.Path] += s
			}
		}
	}

	out := e.expand(seeds, cfg)
	out.Query = query
	return out, nil
}

// FromChanges expands a context from a set of changed files, typically one
// parsed from a version-control diff. Changed files not present in the
// graph are ignored rather than failing.
func (e *Engine) FromChanges(changes []gitlog.ChangedFile, cfg Config) *Context {
	seeds := make(map[string]float64)
	for _, ch := range changes {
		if ch.Path == "" || e.Graph.Node(ch.Path) == nil {
			continue
		}
		seeds[ch.Path] = 1.0
	}
	return e.expand(seeds, cfg)
}

type queueItem struct {
	id    string
	depth int
}

// expand walks the neighborhood breadth-first up to MaxHops, tracking the
// best depth seen per node so that cyclic graphs terminate. A node's score
// is the best seed-score-times-edge-weights product over all paths to it.
func (e *Engine) expand(seeds map[string]float64, cfg Config) *Context {
	if cfg.MaxHops < 0 {
		cfg.MaxHops = 0
	}

	seedIDs := sortedKeys(seeds)
	visitedDepth := make(map[string]int, len(seeds))
	scores := make(map[string]float64, len(seeds))
	reasons := make(map[string][]string)
	queue := make([]queueItem, 0, len(seeds))
	for _, id := range seedIDs {
		visitedDepth[id] = 0
		scores[id] = seeds[id]
		queue = append(queue, queueItem{id: id})
	}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		if cur.depth >= cfg.MaxHops {
			continue
		}

		for _, rel := range e.Graph.RelatedNodes(cur.id, 0) {
			if rel.Score < cfg.MinWeight {
				continue
			}
			candidate := scores[cur.id] * rel.Score
			if candidate > scores[rel.ID] {
				scores[rel.ID] = candidate
				reasons[rel.ID] = rel.RelationshipTypes
			}
			nextDepth := cur.depth + 1
			prevDepth, seen := visitedDepth[rel.ID]
			if !seen || nextDepth < prevDepth {
				visitedDepth[rel.ID] = nextDepth
				queue = append(queue, queueItem{id: rel.ID, depth: nextDepth})
			}
		}
	}

	entries := make([]Entry, 0, len(scores))
	for id, score := range scores {
		entries = append(entries, Entry{
			ID:                id,
			Score:             score,
			Hops:              visitedDepth[id],
			RelationshipTypes: reasons[id],
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score == entries[j].Score {
			return entries[i].ID < entries[j].ID
		}
		return entries[i].Score > entries[j].Score
	})
	if cfg.Limit > 0 && len(entries) > cfg.Limit {
		entries = entries[:cfg.Limit]
	}

	return &Context{SeedIDs: seedIDs, Entries: entries}
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
