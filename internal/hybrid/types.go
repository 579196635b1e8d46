package hybrid

import "time"

// NodeKind classifies a fusion-graph node.
type NodeKind string

const (
	KindFile     NodeKind = "file"
	KindFunction NodeKind = "function"
	KindClass    NodeKind = "class"
)

// Relationship kinds an edge can carry. Structural kinds are binary facts
// and set their weight by max; temporal and co-modification kinds are
// frequentist and accumulate with saturation.
const (
	RelCalls            = "calls"
	RelImports          = "imports"
	RelInherits         = "inherits"
	RelAccessedTogether = "accessed_together"
	RelModifiedTogether = "modified_together"
	RelSimilar          = "similar"
)

// Node is a fusion-graph node. ID is the primary key and is stable across
// rebuilds: the same path always yields the same id.
type Node struct {
	ID   string   `json:"id"`
	Kind NodeKind `json:"kind"`
	Path string   `json:"path"`
	Name string   `json:"name"`

	StructuralScore float64 `json:"structural_score"`
	TemporalScore   float64 `json:"temporal_score"`
	ComodScore      float64 `json:"comod_score"`

	LastAccessed time.Time `json:"last_accessed,omitempty"`
	AccessCount  int       `json:"access_count"`
	LastModified time.Time `json:"last_modified,omitempty"`
}

// Edge carries one weight per signal dimension for an ordered
// (source,target) pair. Weights never exceed 1.0.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`

	StructuralWeight float64 `json:"structural_weight"`
	TemporalWeight   float64 `json:"temporal_weight"`
	ComodWeight      float64 `json:"comod_weight"`
	SemanticWeight   float64 `json:"semantic_weight"`

	RelationshipTypes []string  `json:"relationship_types"`
	LastUpdated       time.Time `json:"last_updated"`
}

// Combined-weight coefficients used to rank related nodes.
const (
	combinedStructural = 0.3
	combinedTemporal   = 0.2
	combinedComod      = 0.3
	combinedSemantic   = 0.2
)

// CombinedWeight folds the four dimensions into one ranking score.
func (e *Edge) CombinedWeight() float64 {
	return e.StructuralWeight*combinedStructural +
		e.TemporalWeight*combinedTemporal +
		e.ComodWeight*combinedComod +
		e.SemanticWeight*combinedSemantic
}

func (e *Edge) hasType(kind string) bool {
	for _, t := range e.RelationshipTypes {
		if t == kind {
			return true
		}
	}
	return false
}

// AccessEvent is one entry in the rolling access history.
type AccessEvent struct {
	ID string    `json:"id"`
	At time.Time `json:"at"`
}

// Related is one ranked neighbor of a query node.
type Related struct {
	ID                string
	Score             float64
	RelationshipTypes []string
}

// SearchResult is one ranked hit of a text search over the graph.
type SearchResult struct {
	Node  *Node
	Score float64
}
