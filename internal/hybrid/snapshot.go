package hybrid

// State is the serializable form of a Graph. Nodes and edges appear in
// insertion order so that a restored graph breaks ranking ties exactly as
// the original did.
type State struct {
	Nodes         []Node                    `json:"nodes"`
	Edges         []Edge                    `json:"edges"`
	AccessHistory []AccessEvent             `json:"access_history,omitempty"`
	ComodCounts   map[string]map[string]int `json:"comod_counts,omitempty"`
}

// State captures the graph for persistence.
func (g *Graph) State() State {
	s := State{
		Nodes:         make([]Node, 0, len(g.nodeOrder)),
		Edges:         make([]Edge, 0, len(g.edgeOrder)),
		AccessHistory: append([]AccessEvent(nil), g.accessHistory...),
		ComodCounts:   make(map[string]map[string]int, len(g.comodCounts)),
	}
	for _, id := range g.nodeOrder {
		s.Nodes = append(s.Nodes, *g.nodes[id])
	}
	for _, key := range g.edgeOrder {
		s.Edges = append(s.Edges, *g.edges[key])
	}
	for a, row := range g.comodCounts {
		copied := make(map[string]int, len(row))
		for b, count := range row {
			copied[b] = count
		}
		s.ComodCounts[a] = copied
	}
	return s
}

// FromState rebuilds a graph from a captured state. Edge weights are
// restored verbatim, bypassing the max/saturate routing, since they were
// produced by it in the first place. Dangling edges are kept; queries
// tolerate them.
func FromState(s State) *Graph {
	g := NewGraph()
	for _, n := range s.Nodes {
		copied := n
		g.nodes[n.ID] = &copied
		g.nodeOrder = append(g.nodeOrder, n.ID)
	}
	for _, e := range s.Edges {
		copied := e
		key := edgeKey(e.Source, e.Target)
		if _, ok := g.edges[key]; ok {
			continue
		}
		g.edges[key] = &copied
		g.edgeOrder = append(g.edgeOrder, key)
		g.neighbors[e.Source] = append(g.neighbors[e.Source], key)
	}
	g.accessHistory = append(g.accessHistory, s.AccessHistory...)
	for a, row := range s.ComodCounts {
		copied := make(map[string]int, len(row))
		for b, count := range row {
			copied[b] = count
		}
		g.comodCounts[a] = copied
	}
	return g
}
