package structural

// NodeKind classifies a symbol extracted from source.
type NodeKind string

const (
	KindModule   NodeKind = "module"
	KindClass    NodeKind = "class"
	KindFunction NodeKind = "function"
	KindMethod   NodeKind = "method"
)

// EdgeKind classifies a relationship derived purely from syntax.
type EdgeKind string

const (
	EdgeCalls    EdgeKind = "calls"
	EdgeImports  EdgeKind = "imports"
	EdgeInherits EdgeKind = "inherits"
)

// Node is a symbol in the structural graph. QualifiedName is the primary key;
// re-inserting the same qualified name overwrites the previous node.
type Node struct {
	Name          string   `json:"name"`
	Kind          NodeKind `json:"kind"`
	File          string   `json:"file"`
	Line          int      `json:"line"`
	QualifiedName string   `json:"qualified_name"`
}

// Edge is a directed relationship between two symbols. Target may be a bare
// name when resolution failed; edges are stored once per occurrence.
type Edge struct {
	Source string   `json:"source"`
	Target string   `json:"target"`
	Kind   EdgeKind `json:"kind"`
	File   string   `json:"file"`
	Line   int      `json:"line"`
}

// Ref points at a symbol's definition site, used in query results.
type Ref struct {
	Name string `json:"name"`
	File string `json:"file"`
	Line int    `json:"line"`
}

// QueryResult is the answer to a symbol query: the matched node plus its
// incoming and outgoing call relationships.
type QueryResult struct {
	Query        string   `json:"query"`
	Node         *Node    `json:"node,omitempty"`
	Callers      []Ref    `json:"callers"`
	Callees      []Ref    `json:"callees"`
	RelatedFiles []string `json:"related_files"`
}
