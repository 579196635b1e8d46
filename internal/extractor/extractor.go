package extractor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"codemap/internal/structural"
)

// Frontend is the language-specific half of extraction. Given a parsed tree
// it emits structural nodes and edges for one file.
type Frontend interface {
	Language() *sitter.Language
	Extensions() []string
	Extract(root *sitter.Node, src []byte, file, module string) ([]structural.Node, []structural.Edge)
}

// FileResult is everything extracted from a single source file.
type FileResult struct {
	File  string
	Nodes []structural.Node
	Edges []structural.Edge
}

// Extractor parses source files and extracts structural nodes and edges
// using a language-specific frontend.
type Extractor struct {
	frontend Frontend
	langName string
}

// NewExtractor creates an extractor for a given language.
func NewExtractor(lang string) (*Extractor, error) {
	var fe Frontend
	switch lang {
	case "python":
		fe = &PythonFrontend{}
	case "go":
		fe = &GoFrontend{}
	default:
		return nil, fmt.Errorf("unsupported language: %s", lang)
	}
	return &Extractor{frontend: fe, langName: lang}, nil
}

// Language returns the configured language name.
func (e *Extractor) Language() string { return e.langName }

// Extensions returns the file extensions this extractor handles.
func (e *Extractor) Extensions() []string { return e.frontend.Extensions() }

// ExtractFile parses one source file and extracts its nodes and edges.
// The file's module name is its root-relative path with the extension
// stripped and separators normalized to dots. A module node is always
// emitted first so that file-level mapping has an anchor. Tree-sitter is
// error-tolerant, so a file with syntax errors yields a partial result
// rather than a failure.
func (e *Extractor) ExtractFile(ctx context.Context, path, root string) (*FileResult, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	parser := sitter.NewParser()
	parser.SetLanguage(e.frontend.Language())
	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	defer tree.Close()

	file := relativePath(path, root)
	module := ModuleName(file)

	res := &FileResult{File: file}
	res.Nodes = append(res.Nodes, structural.Node{
		Name:          filepath.Base(path),
		Kind:          structural.KindModule,
		File:          file,
		Line:          1,
		QualifiedName: module,
	})

	nodes, edges := e.frontend.Extract(tree.RootNode(), src, file, module)
	res.Nodes = append(res.Nodes, nodes...)
	res.Edges = append(res.Edges, edges...)
	return res, nil
}

// ModuleName converts a root-relative file path into a dotted module path.
func ModuleName(file string) string {
	mod := strings.TrimSuffix(file, filepath.Ext(file))
	mod = filepath.ToSlash(mod)
	mod = strings.ReplaceAll(mod, "\\", "/")
	return strings.ReplaceAll(mod, "/", ".")
}

func relativePath(path, root string) string {
	if root == "" {
		return filepath.ToSlash(path)
	}
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func line(n *sitter.Node) int {
	return int(n.StartPoint().Row) + 1
}
