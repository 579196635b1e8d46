package storage

import (
	"context"
	"errors"

	"codemap/internal/history"
	"codemap/internal/hybrid"
	"codemap/internal/structural"
)

// ErrNotFound signals that no usable snapshot exists. A corrupt or
// unreadable snapshot reports the same way; the data is a cache, and a
// caller's answer to a missing cache is always a rebuild.
var ErrNotFound = errors.New("storage: snapshot not found")

// SnapshotVersion is the current persisted document version. Loaders
// accept only documents at this version; anything else is ErrNotFound.
const SnapshotVersion = 1

// Store persists the three graph documents. Each document saves and
// loads independently.
type Store interface {
	SaveStructural(ctx context.Context, g *structural.Graph) error
	LoadStructural(ctx context.Context) (*structural.Graph, error)

	SaveHybrid(ctx context.Context, g *hybrid.Graph) error
	LoadHybrid(ctx context.Context) (*hybrid.Graph, error)

	SaveCorrelations(ctx context.Context, d *history.CorrelationData) error
	LoadCorrelations(ctx context.Context) (*history.CorrelationData, error)

	Close() error
}

// Open creates a store for the configured backend. dir is the snapshot
// directory for the json backend and the database directory for sqlite.
func Open(backend, dir string) (Store, error) {
	switch backend {
	case "", "json":
		return NewJSONStore(dir), nil
	case "sqlite":
		return NewSQLiteStore(dir)
	default:
		return nil, errors.New("storage: unknown backend " + backend)
	}
}
