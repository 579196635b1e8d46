// Package semantic defines the seam to an external vector-search
// capability. The graph works without one; when a searcher is present its
// scores blend into the hybrid ranking as the semantic dimension.
package semantic

import "context"

// Match is one ranked hit from a semantic search backend.
type Match struct {
	Path    string
	Content string
	Score   float64
}

// Searcher is the interface a vector-search backend implements.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]Match, error)
}

// None is the absent backend. It matches nothing and never fails, so
// callers degrade to structural/temporal/comod scoring without branching.
type None struct{}

func (None) Search(context.Context, string, int) ([]Match, error) {
	return nil, nil
}
