package extractor

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"codemap/internal/structural"
)

// PythonFrontend extracts structural information from Python sources.
//
// Name resolution is best-effort: bare names go through the file's import
// alias table, attribute chains are resolved by substituting the alias of
// the chain's root. Calls through variables of unknown type stay at the
// bare-name level; that precision loss is accepted.
type PythonFrontend struct{}

func (p *PythonFrontend) Language() *sitter.Language { return python.GetLanguage() }

func (p *PythonFrontend) Extensions() []string { return []string{".py"} }

func (p *PythonFrontend) Extract(root *sitter.Node, src []byte, file, module string) ([]structural.Node, []structural.Edge) {
	w := &pyWalker{
		src:     src,
		file:    file,
		module:  module,
		aliases: make(map[string]string),
	}
	w.visit(root)
	return w.nodes, w.edges
}

// pyWalker traverses the syntax tree keeping track of the enclosing class
// and function so that definitions and calls are attributed to the
// innermost scope.
type pyWalker struct {
	src    []byte
	file   string
	module string

	currentClass    string
	currentFunction string
	aliases         map[string]string // local name -> imported module path

	nodes []structural.Node
	edges []structural.Edge
}

func (w *pyWalker) visit(n *sitter.Node) {
	switch n.Type() {
	case "import_statement":
		w.visitImport(n)
	case "import_from_statement":
		w.visitImportFrom(n)
	case "class_definition":
		w.visitClass(n)
		return
	case "function_definition":
		w.visitFunction(n)
		return
	case "call":
		w.visitCall(n)
	}
	w.visitChildren(n)
}

func (w *pyWalker) visitChildren(n *sitter.Node) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		w.visit(n.NamedChild(i))
	}
}

// visitImport handles `import a.b` and `import a.b as c`.
func (w *pyWalker) visitImport(n *sitter.Node) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "dotted_name":
			name := child.Content(w.src)
			w.aliases[name] = name
			w.addImportEdge(name, n)
		case "aliased_import":
			nameNode := child.ChildByFieldName("name")
			aliasNode := child.ChildByFieldName("alias")
			if nameNode == nil || aliasNode == nil {
				continue
			}
			full := nameNode.Content(w.src)
			w.aliases[aliasNode.Content(w.src)] = full
			w.addImportEdge(full, n)
		}
	}
}

// visitImportFrom handles `from a.b import c [as d]`. Each imported name is
// aliased to its fully dotted origin; one imports edge is recorded per name,
// targeting the source module.
func (w *pyWalker) visitImportFrom(n *sitter.Node) {
	moduleNode := n.ChildByFieldName("module_name")
	if moduleNode == nil {
		return
	}
	from := moduleNode.Content(w.src)

	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child.StartByte() == moduleNode.StartByte() {
			continue
		}
		switch child.Type() {
		case "dotted_name":
			name := child.Content(w.src)
			w.aliases[name] = from + "." + name
			w.addImportEdge(from, n)
		case "aliased_import":
			nameNode := child.ChildByFieldName("name")
			aliasNode := child.ChildByFieldName("alias")
			if nameNode == nil || aliasNode == nil {
				continue
			}
			w.aliases[aliasNode.Content(w.src)] = from + "." + nameNode.Content(w.src)
			w.addImportEdge(from, n)
		}
	}
}

func (w *pyWalker) addImportEdge(target string, at *sitter.Node) {
	w.edges = append(w.edges, structural.Edge{
		Source: w.module,
		Target: target,
		Kind:   structural.EdgeImports,
		File:   w.file,
		Line:   line(at),
	})
}

func (w *pyWalker) visitClass(n *sitter.Node) {
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

	if supers := n.ChildByFieldName("superclasses"); supers != nil {
		for i := 0; i < int(supers.NamedChildCount()); i++ {
			base := w.resolveName(supers.NamedChild(i))
			if base == "" {
				continue
			}
			w.edges = append(w.edges, structural.Edge{
				Source: qualified,
				Target: base,
				Kind:   structural.EdgeInherits,
				File:   w.file,
				Line:   line(n),
			})
		}
	}

	oldClass := w.currentClass
	w.currentClass = name
	w.visitChildren(n)
	w.currentClass = oldClass
}

func (w *pyWalker) visitFunction(n *sitter.Node) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := nameNode.Content(w.src)

	kind := structural.KindFunction
	qualified := w.module + "." + name
	if w.currentClass != "" {
		kind = structural.KindMethod
		qualified = w.module + "." + w.currentClass + "." + name
	}

	w.nodes = append(w.nodes, structural.Node{
		Name:          name,
		Kind:          kind,
		File:          w.file,
		Line:          line(n),
		QualifiedName: qualified,
	})

	oldFunction := w.currentFunction
	w.currentFunction = name
	w.visitChildren(n)
	w.currentFunction = oldFunction
}

func (w *pyWalker) visitCall(n *sitter.Node) {
	if w.currentFunction == "" {
		return
	}
	fn := n.ChildByFieldName("function")
	if fn == nil {
		return
	}
	callee := w.resolveName(fn)
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

// scope is the qualified name of the innermost enclosing definition.
func (w *pyWalker) scope() string {
	s := w.module
	if w.currentClass != "" {
		s += "." + w.currentClass
	}
	if w.currentFunction != "" {
		s += "." + w.currentFunction
	}
	return s
}

// resolveName maps an expression to a best-effort dotted name. Identifiers
// go through the alias table; attribute chains substitute the alias of
// their root. Anything else (subscripts, call results) is unresolvable.
func (w *pyWalker) resolveName(n *sitter.Node) string {
	switch n.Type() {
	case "identifier":
		name := n.Content(w.src)
		if full, ok := w.aliases[name]; ok {
			return full
		}
		return name
	case "attribute":
		obj := n.ChildByFieldName("object")
		attr := n.ChildByFieldName("attribute")
		if obj == nil || attr == nil {
			return ""
		}
		base := w.resolveName(obj)
		if base == "" {
			return ""
		}
		return base + "." + attr.Content(w.src)
	}
	return ""
}
