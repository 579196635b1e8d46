package structural

import (
	"sort"
	"strings"
)

// Graph is the symbol-level call/structure graph for one source tree.
// Nodes are keyed by qualified name; Edges keep one entry per occurrence.
// The callers/callees indexes are a deduplicated cache over Edges and can be
// rebuilt from the edge list alone.
type Graph struct {
	Root  string
	Nodes map[string]Node
	Edges []Edge

	callers map[string][]string // target -> sources
	callees map[string][]string // source -> targets
}

// NewGraph creates an empty graph rooted at the given directory.
func NewGraph(root string) *Graph {
	return &Graph{
		Root:    root,
		Nodes:   make(map[string]Node),
		callers: make(map[string][]string),
		callees: make(map[string][]string),
	}
}

// AddNode upserts a node; the last parse of a qualified name wins.
func (g *Graph) AddNode(n Node) {
	g.Nodes[n.QualifiedName] = n
}

// AddEdge appends an edge and updates the lookup indexes. Duplicate
// (source,target) pairs collapse in the indexes but not in the edge list.
func (g *Graph) AddEdge(e Edge) {
	g.Edges = append(g.Edges, e)
	g.indexEdge(e)
}

func (g *Graph) indexEdge(e Edge) {
	if !contains(g.callers[e.Target], e.Source) {
		g.callers[e.Target] = append(g.callers[e.Target], e.Source)
	}
	if !contains(g.callees[e.Source], e.Target) {
		g.callees[e.Source] = append(g.callees[e.Source], e.Target)
	}
}

// RebuildIndexes recomputes the callers/callees indexes from the edge list.
// Must be called after deserialization or bulk node removal.
func (g *Graph) RebuildIndexes() {
	g.callers = make(map[string][]string)
	g.callees = make(map[string][]string)
	for _, e := range g.Edges {
		g.indexEdge(e)
	}
}

// Callers returns the sources of edges pointing at name. An exact match on
// the qualified name is tried first, then a suffix match on the final
// component so that a bare function name still resolves.
func (g *Graph) Callers(name string) []string {
	if sources, ok := g.callers[name]; ok {
		return sources
	}
	return suffixMatches(g.callers, name)
}

// Callees returns the targets of edges originating at name, with the same
// matching rules as Callers.
func (g *Graph) Callees(name string) []string {
	if targets, ok := g.callees[name]; ok {
		return targets
	}
	return suffixMatches(g.callees, name)
}

// FindNode looks a node up by qualified name, then by suffix or bare name.
// Fallback candidates are tried in qualified-name order so that an
// ambiguous bare name resolves to the same node on every build.
func (g *Graph) FindNode(name string) *Node {
	if n, ok := g.Nodes[name]; ok {
		return &n
	}
	keys := make([]string, 0, len(g.Nodes))
	for qn := range g.Nodes {
		keys = append(keys, qn)
	}
	sort.Strings(keys)
	for _, qn := range keys {
		if n := g.Nodes[qn]; strings.HasSuffix(qn, "."+name) || n.Name == name {
			node := n
			return &node
		}
	}
	return nil
}

// SearchNodes returns every node whose name or qualified name contains the
// query, case-insensitively.
func (g *Graph) SearchNodes(query string) []Node {
	q := strings.ToLower(query)
	var matches []Node
	for qn, n := range g.Nodes {
		if strings.Contains(strings.ToLower(qn), q) || strings.Contains(strings.ToLower(n.Name), q) {
			matches = append(matches, n)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].QualifiedName < matches[j].QualifiedName
	})
	return matches
}

// RemoveFile drops every node defined in the given file along with the edges
// recorded from that file, then rebuilds the indexes. Used by incremental
// re-extraction when a file changes on disk.
func (g *Graph) RemoveFile(file string) int {
	removed := 0
	for qn, n := range g.Nodes {
		if n.File == file {
			delete(g.Nodes, qn)
			removed++
		}
	}
	kept := g.Edges[:0]
	for _, e := range g.Edges {
		if e.File != file {
			kept = append(kept, e)
		}
	}
	g.Edges = kept
	g.RebuildIndexes()
	return removed
}

// Query resolves a name and gathers its callers, callees and the set of
// files those symbols live in. Unresolvable references are tolerated and
// simply absent from the result.
func (g *Graph) Query(name string) QueryResult {
	res := QueryResult{Query: name, Callers: []Ref{}, Callees: []Ref{}}
	related := make(map[string]bool)

	if n := g.FindNode(name); n != nil {
		res.Node = n
		related[n.File] = true
	}
	for _, src := range g.Callers(name) {
		if n, ok := g.Nodes[src]; ok {
			res.Callers = append(res.Callers, Ref{Name: src, File: n.File, Line: n.Line})
			related[n.File] = true
		}
	}
	for _, dst := range g.Callees(name) {
		if n, ok := g.Nodes[dst]; ok {
			res.Callees = append(res.Callees, Ref{Name: dst, File: n.File, Line: n.Line})
			related[n.File] = true
		}
	}

	res.RelatedFiles = make([]string, 0, len(related))
	for f := range related {
		res.RelatedFiles = append(res.RelatedFiles, f)
	}
	sort.Strings(res.RelatedFiles)
	return res
}

// CountByKind tallies nodes per kind, for stats reporting.
func (g *Graph) CountByKind() map[NodeKind]int {
	counts := make(map[NodeKind]int)
	for _, n := range g.Nodes {
		counts[n.Kind]++
	}
	return counts
}

func suffixMatches(index map[string][]string, name string) []string {
	seen := make(map[string]bool)
	var out []string
	keys := make([]string, 0, len(index))
	for k := range index {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, qn := range keys {
		if qn == name || strings.HasSuffix(qn, "."+name) {
			for _, v := range index[qn] {
				if !seen[v] {
					seen[v] = true
					out = append(out, v)
				}
			}
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
