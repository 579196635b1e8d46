package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	"codemap/internal/history"
	"codemap/internal/hybrid"
	"codemap/internal/structural"
)

// Snapshot file names inside the store directory.
const (
	structuralFile   = "structural.json"
	hybridFile       = "hybrid.json"
	correlationsFile = "correlations.json"
)

// JSONStore persists each document as one JSON file under a directory,
// typically <root>/.codemap. Writes go through a temp file and rename so
// a crashed save never leaves a half-written snapshot behind.
type JSONStore struct {
	dir    string
	logger *slog.Logger
}

// NewJSONStore creates a store rooted at dir. The directory is created
// lazily on first save.
func NewJSONStore(dir string) *JSONStore {
	return &JSONStore{dir: dir, logger: slog.Default()}
}

func (s *JSONStore) Close() error { return nil }

type structuralDoc struct {
	Version int               `json:"version"`
	Root    string            `json:"root"`
	Nodes   []structural.Node `json:"nodes"`
	Edges   []structural.Edge `json:"edges"`
}

type hybridDoc struct {
	Version int `json:"version"`
	hybrid.State
}

type correlationsDoc struct {
	Version int                      `json:"version"`
	Data    *history.CorrelationData `json:"correlations"`
}

func (s *JSONStore) SaveStructural(_ context.Context, g *structural.Graph) error {
	doc := structuralDoc{Version: SnapshotVersion, Root: g.Root, Edges: g.Edges}
	names := make([]string, 0, len(g.Nodes))
	for name := range g.Nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		doc.Nodes = append(doc.Nodes, g.Nodes[name])
	}
	return s.write(structuralFile, doc)
}

func (s *JSONStore) LoadStructural(_ context.Context) (*structural.Graph, error) {
	var doc structuralDoc
	if err := s.read(structuralFile, structuralSchema(), &doc); err != nil {
		return nil, err
	}
	g := structural.NewGraph(doc.Root)
	for _, n := range doc.Nodes {
		g.AddNode(n)
	}
	g.Edges = doc.Edges
	g.RebuildIndexes()
	return g, nil
}

func (s *JSONStore) SaveHybrid(_ context.Context, g *hybrid.Graph) error {
	return s.write(hybridFile, hybridDoc{Version: SnapshotVersion, State: g.State()})
}

func (s *JSONStore) LoadHybrid(_ context.Context) (*hybrid.Graph, error) {
	var doc hybridDoc
	if err := s.read(hybridFile, hybridSchema(), &doc); err != nil {
		return nil, err
	}
	return hybrid.FromState(doc.State), nil
}

func (s *JSONStore) SaveCorrelations(_ context.Context, d *history.CorrelationData) error {
	return s.write(correlationsFile, correlationsDoc{Version: SnapshotVersion, Data: d})
}

func (s *JSONStore) LoadCorrelations(_ context.Context) (*history.CorrelationData, error) {
	var doc correlationsDoc
	if err := s.read(correlationsFile, correlationsSchema(), &doc); err != nil {
		return nil, err
	}
	if doc.Data == nil {
		return nil, ErrNotFound
	}
	doc.Data.Normalize()
	return doc.Data, nil
}

func (s *JSONStore) write(name string, doc any) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return os.Rename(tmp, path)
}

// read loads and schema-checks one snapshot. Every failure mode short of
// an I/O bug maps to ErrNotFound: a missing, corrupt, off-version or
// invalid document is just a cache miss.
func (s *JSONStore) read(name string, schema *jsonschema.Schema, out any) error {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return ErrNotFound
	}

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		s.logger.Warn("discarding corrupt snapshot", "file", name, "error", err)
		return ErrNotFound
	}
	if err := schema.Validate(raw); err != nil {
		s.logger.Warn("discarding invalid snapshot", "file", name, "error", err)
		return ErrNotFound
	}
	if err := json.Unmarshal(data, out); err != nil {
		s.logger.Warn("discarding undecodable snapshot", "file", name, "error", err)
		return ErrNotFound
	}
	return nil
}

// Schemas are compiled once and cached; they gate the document shape and
// pin the version so load never has to guess at unknown layouts.
var (
	schemaOnce   sync.Once
	schemaByName map[string]*jsonschema.Schema
)

func structuralSchema() *jsonschema.Schema   { return compiledSchema(structuralFile) }
func hybridSchema() *jsonschema.Schema       { return compiledSchema(hybridFile) }
func correlationsSchema() *jsonschema.Schema { return compiledSchema(correlationsFile) }

func compiledSchema(name string) *jsonschema.Schema {
	schemaOnce.Do(func() {
		schemaByName = make(map[string]*jsonschema.Schema, len(schemaSources))
		for file, src := range schemaSources {
			compiler := jsonschema.NewCompiler()
			if err := compiler.AddResource(file, strings.NewReader(src)); err != nil {
				panic(err)
			}
			schemaByName[file] = compiler.MustCompile(file)
		}
	})
	return schemaByName[name]
}

var schemaSources = map[string]string{
	structuralFile: `{
		"type": "object",
		"required": ["version", "nodes"],
		"properties": {
			"version": {"const": 1},
			"root": {"type": "string"},
			"nodes": {
				"type": "array",
				"items": {
					"type": "object",
					"required": ["qualified_name", "kind"],
					"properties": {
						"name": {"type": "string"},
						"kind": {"enum": ["module", "class", "function", "method"]},
						"file": {"type": "string"},
						"line": {"type": "integer"},
						"qualified_name": {"type": "string"}
					}
				}
			},
			"edges": {
				"type": "array",
				"items": {
					"type": "object",
					"required": ["source", "target", "kind"],
					"properties": {
						"kind": {"enum": ["calls", "imports", "inherits"]}
					}
				}
			}
		}
	}`,
	hybridFile: `{
		"type": "object",
		"required": ["version", "nodes", "edges"],
		"properties": {
			"version": {"const": 1},
			"nodes": {
				"type": "array",
				"items": {
					"type": "object",
					"required": ["id", "kind"],
					"properties": {
						"id": {"type": "string"},
						"kind": {"enum": ["file", "function", "class"]},
						"structural_score": {"type": "number", "minimum": 0, "maximum": 1},
						"temporal_score": {"type": "number", "minimum": 0, "maximum": 1},
						"comod_score": {"type": "number", "minimum": 0, "maximum": 1}
					}
				}
			},
			"edges": {
				"type": "array",
				"items": {
					"type": "object",
					"required": ["source", "target"],
					"properties": {
						"structural_weight": {"type": "number", "minimum": 0, "maximum": 1},
						"temporal_weight": {"type": "number", "minimum": 0, "maximum": 1},
						"comod_weight": {"type": "number", "minimum": 0, "maximum": 1},
						"semantic_weight": {"type": "number", "minimum": 0, "maximum": 1}
					}
				}
			},
			"access_history": {"type": "array"},
			"comod_counts": {"type": "object"}
		}
	}`,
	correlationsFile: `{
		"type": "object",
		"required": ["version", "correlations"],
		"properties": {
			"version": {"const": 1},
			"correlations": {
				"type": "object",
				"properties": {
					"comod_counts": {"type": "object"},
					"access_counts": {"type": "object"},
					"learned_patterns": {"type": "array", "items": {"type": "string"}},
					"commits_analyzed": {"type": "integer"}
				}
			}
		}
	}`,
}
