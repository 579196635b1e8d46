package extractor

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"

	"codemap/internal/structural"
)

// GoFrontend extracts structural information from Go sources. Types map to
// class nodes, methods hang off their receiver's type, and struct embedding
// is reported as inheritance, which keeps the graph shape uniform across
// languages.
type GoFrontend struct{}

func (g *GoFrontend) Language() *sitter.Language { return golang.GetLanguage() }

func (g *GoFrontend) Extensions() []string { return []string{".go"} }

func (g *GoFrontend) Extract(root *sitter.Node, src []byte, file, module string) ([]structural.Node, []structural.Edge) {
	w := &goWalker{
		src:     src,
		file:    file,
		module:  module,
		aliases: make(map[string]string),
	}
	w.visit(root)
	return w.nodes, w.edges
}

type goWalker struct {
	src    []byte
	file   string
	module string

	currentClass    string // receiver type of the enclosing method, if any
	currentFunction string
	aliases         map[string]string // local package name -> import path

	nodes []structural.Node
	edges []structural.Edge
}

func (w *goWalker) visit(n *sitter.Node) {
	switch n.Type() {
	case "import_spec":
		w.visitImport(n)
	case "type_spec":
		w.visitType(n)
	case "function_declaration":
		w.visitFunction(n, "")
		return
	case "method_declaration":
		w.visitFunction(n, w.receiverType(n))
		return
	case "call_expression":
		w.visitCall(n)
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		w.visit(n.NamedChild(i))
	}
}

func (w *goWalker) visitImport(n *sitter.Node) {
	pathNode := n.ChildByFieldName("path")
	if pathNode == nil {
		return
	}
	path := strings.Trim(pathNode.Content(w.src), `"`)

	local := path
	if idx := strings.LastIndex(local, "/"); idx != -1 {
		local = local[idx+1:]
	}
	if nameNode := n.ChildByFieldName("name"); nameNode != nil {
		local = nameNode.Content(w.src)
	}
	if local != "_" && local != "." {
		w.aliases[local] = path
	}

	w.edges = append(w.edges, structural.Edge{
		Source: w.module,
		Target: path,
		Kind:   structural.EdgeImports,
		File:   w.file,
		Line:   line(n),
	})
}

func (w *goWalker) visitType(n *sitter.Node) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := nameNode.Content(w.src)
	qualified := w.module + "." + name

	w.nodes = append(w.nodes, structural.Node{
		Name:          name,
		Kind:          structural.KindClass,
		File:          w.file,
		Line:          line(n),
		QualifiedName: qualified,
	})

	// Embedded struct fields become inherits edges.
	typeNode := n.ChildByFieldName("type")
	if typeNode == nil || typeNode.Type() != "struct_type" {
		return
	}
	for i := 0; i < int(typeNode.NamedChildCount()); i++ {
		list := typeNode.NamedChild(i)
		if list.Type() != "field_declaration_list" {
			continue
		}
		for j := 0; j < int(list.NamedChildCount()); j++ {
			field := list.NamedChild(j)
			if field.Type() != "field_declaration" || w.hasFieldName(field) {
				continue
			}
			ft := field.ChildByFieldName("type")
			if ft == nil {
				continue
			}
			base := w.resolveTypeName(ft)
			if base == "" {
				continue
			}
			w.edges = append(w.edges, structural.Edge{
				Source: qualified,
				Target: base,
				Kind:   structural.EdgeInherits,
				File:   w.file,
				Line:   line(field),
			})
		}
	}
}

func (w *goWalker) hasFieldName(field *sitter.Node) bool {
	for i := 0; i < int(field.NamedChildCount()); i++ {
		if field.NamedChild(i).Type() == "field_identifier" {
			return true
		}
	}
	return false
}

func (w *goWalker) visitFunction(n *sitter.Node, receiver string) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := nameNode.Content(w.src)

	kind := structural.KindFunction
	qualified := w.module + "." + name
	if receiver != "" {
		kind = structural.KindMethod
		qualified = w.module + "." + receiver + "." + name
	}

	w.nodes = append(w.nodes, structural.Node{
		Name:          name,
		Kind:          kind,
		File:          w.file,
		Line:          line(n),
		QualifiedName: qualified,
	})

	oldClass, oldFunction := w.currentClass, w.currentFunction
	w.currentClass, w.currentFunction = receiver, name
	for i := 0; i < int(n.NamedChildCount()); i++ {
		w.visit(n.NamedChild(i))
	}
	w.currentClass, w.currentFunction = oldClass, oldFunction
}

func (w *goWalker) visitCall(n *sitter.Node) {
	if w.currentFunction == "" {
		return
	}
	fn := n.ChildByFieldName("function")
	if fn == nil {
		return
	}
	callee := w.resolveExpr(fn)
	if callee == "" {
		return
	}
	w.edges = append(w.edges, structural.Edge{
		Source: w.scope(),
		Target: callee,
		Kind:   structural.EdgeCalls,
		File:   w.file,
		Line:   line(n),
	})
}

func (w *goWalker) scope() string {
	s := w.module
	if w.currentClass != "" {
		s += "." + w.currentClass
	}
	if w.currentFunction != "" {
		s += "." + w.currentFunction
	}
	return s
}

// receiverType extracts the bare receiver type name of a method, stripping
// pointers and type parameters.
func (w *goWalker) receiverType(n *sitter.Node) string {
	recv := n.ChildByFieldName("receiver")
	if recv == nil {
		return ""
	}
	for i := 0; i < int(recv.NamedChildCount()); i++ {
		if decl := recv.NamedChild(i); decl.Type() == "parameter_declaration" {
			if t := decl.ChildByFieldName("type"); t != nil {
				return w.resolveTypeName(t)
			}
		}
	}
	return ""
}

// resolveExpr maps a call expression's function part to a dotted name.
// Selector chains substitute the import path of their root identifier.
func (w *goWalker) resolveExpr(n *sitter.Node) string {
	switch n.Type() {
	case "identifier":
		name := n.Content(w.src)
		if full, ok := w.aliases[name]; ok {
			return full
		}
		return name
	case "selector_expression":
		operand := n.ChildByFieldName("operand")
		field := n.ChildByFieldName("field")
		if operand == nil || field == nil {
			return ""
		}
		base := w.resolveExpr(operand)
		if base == "" {
			return ""
		}
		return base + "." + field.Content(w.src)
	case "parenthesized_expression":
		if n.NamedChildCount() == 1 {
			return w.resolveExpr(n.NamedChild(0))
		}
	}
	return ""
}

// resolveTypeName strips pointers, slices and generic arguments down to the
// underlying named type.
func (w *goWalker) resolveTypeName(n *sitter.Node) string {
	switch n.Type() {
	case "type_identifier", "field_identifier":
		return n.Content(w.src)
	case "qualified_type", "selector_expression":
		return n.Content(w.src)
	case "pointer_type", "generic_type":
		if n.NamedChildCount() > 0 {
			return w.resolveTypeName(n.NamedChild(0))
		}
	}
	return ""
}
