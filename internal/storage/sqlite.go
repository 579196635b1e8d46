package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"codemap/internal/history"
	"codemap/internal/hybrid"
	"codemap/internal/structural"
)

// SQLiteStore keeps the structural graph relational and the hybrid and
// correlation documents as JSON rows. Relational structural storage makes
// the symbol tables queryable from outside the process.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates or opens the database at dir/codemap.db.
func NewSQLiteStore(dir string) (*SQLiteStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", filepath.Join(dir, "codemap.db"))
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLiteStore{db: db, logger: slog.Default()}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS symbols (
			qualified_name TEXT PRIMARY KEY,
			name TEXT,
			kind TEXT,
			file TEXT,
			line INTEGER
		);`,
		// One row per occurrence; duplicates are intentional.
		`CREATE TABLE IF NOT EXISTS symbol_edges (
			source TEXT,
			target TEXT,
			kind TEXT,
			file TEXT,
			line INTEGER
		);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			name TEXT PRIMARY KEY,
			version INTEGER,
			body TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_symbols_file ON symbols(file);`,
		`CREATE INDEX IF NOT EXISTS idx_symbol_edges_source ON symbol_edges(source);`,
	}
	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

// SaveStructural replaces the stored symbol graph wholesale. Builds are
// full rescans, so there is nothing to merge with.
func (s *SQLiteStore) SaveStructural(ctx context.Context, g *structural.Graph) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM symbols`); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM symbol_edges`); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO symbols (qualified_name, name, kind, file, line)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, n := range g.Nodes {
		if _, err := stmt.Exec(n.QualifiedName, n.Name, string(n.Kind), n.File, n.Line); err != nil {
			return err
		}
	}

	edgeStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO symbol_edges (source, target, kind, file, line)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer edgeStmt.Close()
	for _, e := range g.Edges {
		if _, err := edgeStmt.Exec(e.Source, e.Target, string(e.Kind), e.File, e.Line); err != nil {
			return err
		}
	}

	if err := upsertSnapshot(ctx, tx, "structural", g.Root); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) LoadStructural(ctx context.Context) (*structural.Graph, error) {
	root, err := s.snapshotBody(ctx, "structural")
	if err != nil {
		return nil, err
	}
	g := structural.NewGraph(root)

	rows, err := s.db.QueryContext(ctx, `SELECT qualified_name, name, kind, file, line FROM symbols`)
	if err != nil {
		return nil, fmt.Errorf("failed to query symbols: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var n structural.Node
		var kind string
		if err := rows.Scan(&n.QualifiedName, &n.Name, &kind, &n.File, &n.Line); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		n.Kind = structural.NodeKind(kind)
		g.AddNode(n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	edgeRows, err := s.db.QueryContext(ctx, `SELECT source, target, kind, file, line FROM symbol_edges ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to query symbol edges: %w", err)
	}
	defer edgeRows.Close()
	for edgeRows.Next() {
		var e structural.Edge
		var kind string
		if err := edgeRows.Scan(&e.Source, &e.Target, &kind, &e.File, &e.Line); err != nil {
			return nil, fmt.Errorf("failed to scan symbol edge: %w", err)
		}
		e.Kind = structural.EdgeKind(kind)
		g.Edges = append(g.Edges, e)
	}
	if err := edgeRows.Err(); err != nil {
		return nil, err
	}

	g.RebuildIndexes()
	return g, nil
}

func (s *SQLiteStore) SaveHybrid(ctx context.Context, g *hybrid.Graph) error {
	return s.saveDoc(ctx, "hybrid", g.State())
}

func (s *SQLiteStore) LoadHybrid(ctx context.Context) (*hybrid.Graph, error) {
	var state hybrid.State
	if err := s.loadDoc(ctx, "hybrid", &state); err != nil {
		return nil, err
	}
	return hybrid.FromState(state), nil
}

func (s *SQLiteStore) SaveCorrelations(ctx context.Context, d *history.CorrelationData) error {
	return s.saveDoc(ctx, "correlations", d)
}

func (s *SQLiteStore) LoadCorrelations(ctx context.Context) (*history.CorrelationData, error) {
	var d history.CorrelationData
	if err := s.loadDoc(ctx, "correlations", &d); err != nil {
		return nil, err
	}
	d.Normalize()
	return &d, nil
}

func (s *SQLiteStore) saveDoc(ctx context.Context, name string, doc any) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (name, version, body) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET version=excluded.version, body=excluded.body
	`, name, SnapshotVersion, string(body))
	return err
}

func (s *SQLiteStore) loadDoc(ctx context.Context, name string, out any) error {
	body, err := s.snapshotBody(ctx, name)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(body), out); err != nil {
		s.logger.Warn("discarding corrupt snapshot row", "name", name, "error", err)
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) snapshotBody(ctx context.Context, name string) (string, error) {
	var version int
	var body string
	row := s.db.QueryRowContext(ctx, `SELECT version, body FROM snapshots WHERE name = ?`, name)
	if err := row.Scan(&version, &body); err != nil {
		return "", ErrNotFound
	}
	if version != SnapshotVersion {
		s.logger.Warn("discarding off-version snapshot row", "name", name, "version", version)
		return "", ErrNotFound
	}
	return body, nil
}

func upsertSnapshot(ctx context.Context, tx *sql.Tx, name, body string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO snapshots (name, version, body) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET version=excluded.version, body=excluded.body
	`, name, SnapshotVersion, body)
	return err
}
