package hybrid

import (
	"sort"
	"strings"
	"time"
)

const (
	maxAccessHistory = 1000
	accessWindow     = 5 * time.Minute
	recentAccessSize = 5
	accessEdgeWeight = 0.5

	saturationStep = 0.1
	comodEdgeStep  = 0.2
)

// Graph fuses structural, temporal and co-modification signals into one
// weighted graph. Nodes and edges keep their insertion order so that
// equal-score results rank deterministically.
//
// Graph is not safe for concurrent use; callers serialize access.
type Graph struct {
	nodes     map[string]*Node
	nodeOrder []string

	edges     map[string]*Edge
	edgeOrder []string

	// neighbors holds outgoing edge keys per source, in insertion order.
	neighbors map[string][]string

	accessHistory []AccessEvent
	comodCounts   map[string]map[string]int

	now func() time.Time
}

// NewGraph returns an empty graph using the wall clock.
func NewGraph() *Graph {
	return &Graph{
		nodes:       make(map[string]*Node),
		edges:       make(map[string]*Edge),
		neighbors:   make(map[string][]string),
		comodCounts: make(map[string]map[string]int),
		now:         time.Now,
	}
}

func edgeKey(source, target string) string {
	return source + "|" + target
}

// AddNode inserts or updates a node. An existing node keeps its insertion
// slot and its temporal counters; kind, path, name and scores are refreshed.
func (g *Graph) AddNode(n Node) {
	if existing, ok := g.nodes[n.ID]; ok {
		existing.Kind = n.Kind
		existing.Path = n.Path
		existing.Name = n.Name
		existing.StructuralScore = n.StructuralScore
		existing.ComodScore = n.ComodScore
		if n.TemporalScore > 0 {
			existing.TemporalScore = n.TemporalScore
		}
		if !n.LastModified.IsZero() {
			existing.LastModified = n.LastModified
		}
		return
	}
	copied := n
	g.nodes[n.ID] = &copied
	g.nodeOrder = append(g.nodeOrder, n.ID)
}

// Node returns the node with the given id, or nil.
func (g *Graph) Node(id string) *Node {
	return g.nodes[id]
}

// Nodes returns all nodes in insertion order.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.nodeOrder))
	for _, id := range g.nodeOrder {
		out = append(out, g.nodes[id])
	}
	return out
}

// Edges returns all edges in insertion order.
func (g *Graph) Edges() []*Edge {
	out := make([]*Edge, 0, len(g.edgeOrder))
	for _, k := range g.edgeOrder {
		out = append(out, g.edges[k])
	}
	return out
}

// Len reports the node count.
func (g *Graph) Len() int { return len(g.nodes) }

// AddEdge records a relationship observation between two known nodes.
// Structural kinds (calls, imports, inherits, similar) set the matching
// dimension to max(current, weight), so repeating a fact is idempotent.
// Temporal and co-modification kinds accumulate with saturation:
// min(1, current + weight*0.1). Unknown endpoints are dropped.
func (g *Graph) AddEdge(source, target, kind string, weight float64) {
	if _, ok := g.nodes[source]; !ok {
		return
	}
	if _, ok := g.nodes[target]; !ok {
		return
	}

	key := edgeKey(source, target)
	e, ok := g.edges[key]
	if !ok {
		e = &Edge{Source: source, Target: target}
		g.edges[key] = e
		g.edgeOrder = append(g.edgeOrder, key)
		g.neighbors[source] = append(g.neighbors[source], key)
	}

	switch kind {
	case RelAccessedTogether:
		e.TemporalWeight = saturate(e.TemporalWeight, weight)
	case RelModifiedTogether:
		e.ComodWeight = saturate(e.ComodWeight, weight)
	case RelSimilar:
		if weight > e.SemanticWeight {
			e.SemanticWeight = weight
		}
	default:
		if weight > e.StructuralWeight {
			e.StructuralWeight = weight
		}
	}

	if !e.hasType(kind) {
		e.RelationshipTypes = append(e.RelationshipTypes, kind)
	}
	e.LastUpdated = g.now()
}

func saturate(current, weight float64) float64 {
	v := current + weight*saturationStep
	if v > 1 {
		return 1
	}
	return v
}

// RecordAccess notes that a node was just touched. Accesses of distinct
// nodes within a five minute window strengthen accessed_together edges in
// both directions. Unknown ids are recorded in the history but produce no
// edges, so a later rebuild that adds the node benefits retroactively
// from nothing; only the node's own counters require it to exist.
func (g *Graph) RecordAccess(id string) {
	ts := g.now()
	g.accessHistory = append(g.accessHistory, AccessEvent{ID: id, At: ts})
	if len(g.accessHistory) > maxAccessHistory {
		g.accessHistory = g.accessHistory[len(g.accessHistory)-maxAccessHistory:]
	}

	if n, ok := g.nodes[id]; ok {
		n.AccessCount++
		n.LastAccessed = ts
		n.TemporalScore = saturate(n.TemporalScore, 1)
	}

	recent := g.recentAccesses(id, ts)
	for _, other := range recent {
		g.AddEdge(id, other, RelAccessedTogether, accessEdgeWeight)
		g.AddEdge(other, id, RelAccessedTogether, accessEdgeWeight)
	}
}

// recentAccesses returns the ids of the last few history entries within
// the window, excluding the node itself. Duplicates are kept: accessing a
// pair twice in a window strengthens it twice.
func (g *Graph) recentAccesses(self string, ts time.Time) []string {
	cutoff := ts.Add(-accessWindow)
	var ids []string
	// Skip the entry just appended for self.
	for i := len(g.accessHistory) - 2; i >= 0; i-- {
		ev := g.accessHistory[i]
		if ev.At.Before(cutoff) {
			break
		}
		if ev.ID == self {
			continue
		}
		ids = append(ids, ev.ID)
		if len(ids) == recentAccessSize {
			break
		}
	}
	// Restore chronological order.
	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}
	return ids
}

// RecordComodification notes that a set of files changed in one commit.
// Every unordered pair gets its count bumped by one, symmetrically, and
// the modified_together edge in both directions is strengthened with a
// per-observation weight proportional to the accumulated count.
func (g *Graph) RecordComodification(ids []string) {
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			a, b := ids[i], ids[j]
			if a == b {
				continue
			}
			g.bumpComod(a, b)
			g.bumpComod(b, a)
			w := comodEdgeStep * float64(g.comodCounts[a][b])
			if w > 1 {
				w = 1
			}
			g.AddEdge(a, b, RelModifiedTogether, w)
			g.AddEdge(b, a, RelModifiedTogether, w)
		}
	}
}

func (g *Graph) bumpComod(a, b string) {
	m := g.comodCounts[a]
	if m == nil {
		m = make(map[string]int)
		g.comodCounts[a] = m
	}
	m[b]++
}

// ComodCount reports how many commits touched both a and b.
func (g *Graph) ComodCount(a, b string) int {
	return g.comodCounts[a][b]
}

// ComodCounts exposes the symmetric co-modification matrix.
func (g *Graph) ComodCounts() map[string]map[string]int {
	return g.comodCounts
}

// AccessHistory exposes the rolling access log, oldest first.
func (g *Graph) AccessHistory() []AccessEvent {
	return g.accessHistory
}

// RelatedNodes returns the one-hop neighborhood of id ranked by combined
// edge weight, strongest first. Both edge directions count; when a pair
// has edges both ways the stronger one wins. Unknown ids yield an empty
// result, not an error.
func (g *Graph) RelatedNodes(id string, limit int) []Related {
	if _, ok := g.nodes[id]; !ok {
		return nil
	}

	best := make(map[string]*Edge)
	var order []string
	consider := func(other string, e *Edge) {
		prev, ok := best[other]
		if !ok {
			best[other] = e
			order = append(order, other)
			return
		}
		if e.CombinedWeight() > prev.CombinedWeight() {
			best[other] = e
		}
	}

	for _, key := range g.neighbors[id] {
		e := g.edges[key]
		consider(e.Target, e)
	}
	for _, key := range g.edgeOrder {
		e := g.edges[key]
		if e.Target == id {
			consider(e.Source, e)
		}
	}

	out := make([]Related, 0, len(order))
	for _, other := range order {
		e := best[other]
		out = append(out, Related{
			ID:                other,
			Score:             e.CombinedWeight(),
			RelationshipTypes: append([]string(nil), e.RelationshipTypes...),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Search scoring terms.
const (
	searchNameMatch  = 0.5
	searchPathMatch  = 0.3
	searchStructural = 0.2
	searchTemporal   = 0.1
	searchComod      = 0.1
)

// Search ranks nodes against a query string. A case-insensitive substring
// hit on the name contributes 0.5, on the path 0.3, and the node's
// intrinsic scores contribute smaller shares. The empty query matches
// every node, so it lists the whole graph ranked by intrinsic scores.
// Only strictly positive scores are returned; ties keep insertion order.
func (g *Graph) Search(query string, limit int) []SearchResult {
	q := strings.ToLower(query)
	var out []SearchResult
	for _, id := range g.nodeOrder {
		n := g.nodes[id]
		var score float64
		if strings.Contains(strings.ToLower(n.Name), q) {
			score += searchNameMatch
		}
		if strings.Contains(strings.ToLower(n.Path), q) {
			score += searchPathMatch
		}
		score += n.StructuralScore*searchStructural +
			n.TemporalScore*searchTemporal +
			n.ComodScore*searchComod
		if score > 0 {
			out = append(out, SearchResult{Node: n, Score: score})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
