package index

import (
	"context"
	"regexp"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

func newPythonParser() *sitter.Parser {
	p := sitter.NewParser()
	p.SetLanguage(python.GetLanguage())
	return p
}

// fileSymbols parses one file and extracts its definitions in source order.
func fileSymbols(ctx context.Context, parser *sitter.Parser, rel string, source []byte) ([]*Symbol, error) {
	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	w := &fileWalker{path: rel, source: source}
	w.walk(tree.RootNode(), "")
	return w.syms, nil
}

type fileWalker struct {
	path   string
	source []byte
	syms   []*Symbol
}

func (w *fileWalker) walk(node *sitter.Node, class string) {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		switch child.Type() {
		case "function_definition", "class_definition":
			w.define(child, child, class)
		case "decorated_definition":
			if def := child.ChildByFieldName("definition"); def != nil {
				w.define(def, child, class)
			}
		default:
			w.walk(child, class)
		}
	}
}

// define records the symbol for def and recurses into its body. wrapper
// is the decorated_definition node when decorators are present, so the
// recorded source includes them; line numbers point at the def itself.
func (w *fileWalker) define(def, wrapper *sitter.Node, class string) {
	nameNode := def.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := nameNode.Content(w.source)

	kind := KindFunction
	if def.Type() == "class_definition" {
		kind = KindClass
	}

	qualified := name
	if class != "" && kind == KindFunction {
		qualified = class + "." + name
	}

	source := wrapper.Content(w.source)
	stripped := source
	hasDoc := false
	if stmt := docstringStmt(def); stmt != nil {
		hasDoc = true
		stripped = stripDocstring(w.source, wrapper, stmt)
	}

	w.syms = append(w.syms, &Symbol{
		Name:         name,
		Qualified:    qualified,
		Kind:         kind,
		File:         w.path,
		Line:         int(def.StartPoint().Row) + 1,
		EndLine:      int(wrapper.EndPoint().Row) + 1,
		Signature:    signature(def, kind, w.source),
		Source:       source,
		Stripped:     stripped,
		HasDocstring: hasDoc,
		Refs:         collectRefs(def, w.source, name),
	})

	body := def.ChildByFieldName("body")
	if body == nil {
		return
	}
	inner := ""
	if kind == KindClass {
		inner = name
	}
	w.walk(body, inner)
}

// docstringStmt returns the docstring expression statement of def, or
// nil. A docstring is a plain string literal standing as the first
// statement of the body; leading comments do not count as statements.
func docstringStmt(def *sitter.Node) *sitter.Node {
	body := def.ChildByFieldName("body")
	if body == nil {
		return nil
	}
	for i := 0; i < int(body.NamedChildCount()); i++ {
		child := body.NamedChild(i)
		if child.Type() == "comment" {
			continue
		}
		if child.Type() != "expression_statement" || child.NamedChildCount() == 0 {
			return nil
		}
		if child.NamedChild(0).Type() != "string" {
			return nil
		}
		return child
	}
	return nil
}

// stripDocstring removes the docstring statement from the wrapper's
// source text. When the statement sits alone on its lines the whole
// lines go, indentation and trailing newline included; a docstring
// sharing a line with the def header loses only its exact span.
func stripDocstring(source []byte, wrapper, stmt *sitter.Node) string {
	ws, we := wrapper.StartByte(), wrapper.EndByte()
	ss, se := stmt.StartByte(), stmt.EndByte()

	lineStart := ss
	for lineStart > ws && (source[lineStart-1] == ' ' || source[lineStart-1] == '\t') {
		lineStart--
	}
	if lineStart == ws || source[lineStart-1] == '\n' {
		ss = lineStart
		for se < we && (source[se] == ' ' || source[se] == '\t' || source[se] == '\r') {
			se++
		}
		if se < we && source[se] == '\n' {
			se++
		}
	}

	return string(source[ws:ss]) + string(source[se:we])
}

// signature renders a display signature in the source's own terms:
// name, parameter list, arrow return type for functions; name and
// superclass list for classes.
func signature(def *sitter.Node, kind Kind, source []byte) string {
	name := ""
	if n := def.ChildByFieldName("name"); n != nil {
		name = n.Content(source)
	}
	if kind == KindClass {
		if sup := def.ChildByFieldName("superclasses"); sup != nil {
			return name + collapseWhitespace(sup.Content(source))
		}
		return name
	}
	sig := name
	if params := def.ChildByFieldName("parameters"); params != nil {
		sig += collapseWhitespace(params.Content(source))
	}
	if ret := def.ChildByFieldName("return_type"); ret != nil {
		sig += " -> " + collapseWhitespace(ret.Content(source))
	}
	return sig
}

func collapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// collectRefs gathers the names a definition depends on: direct call
// targets (identifier calls and the attribute of method calls) and the
// identifiers inside parameter type annotations. The definition's own
// name is excluded.
func collectRefs(def *sitter.Node, source []byte, selfName string) []string {
	seen := make(map[string]struct{})

	var visit func(n *sitter.Node)
	visit = func(n *sitter.Node) {
		switch n.Type() {
		case "call":
			if fn := n.ChildByFieldName("function"); fn != nil {
				switch fn.Type() {
				case "identifier":
					seen[fn.Content(source)] = struct{}{}
				case "attribute":
					if attr := fn.ChildByFieldName("attribute"); attr != nil {
						seen[attr.Content(source)] = struct{}{}
					}
				}
			}
		case "typed_parameter", "typed_default_parameter":
			if tn := n.ChildByFieldName("type"); tn != nil {
				typeIdents(tn, source, seen)
			}
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			visit(n.NamedChild(i))
		}
	}
	visit(def)

	delete(seen, selfName)
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func typeIdents(n *sitter.Node, source []byte, seen map[string]struct{}) {
	if n.Type() == "identifier" {
		seen[n.Content(source)] = struct{}{}
		return
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		typeIdents(n.NamedChild(i), source, seen)
	}
}
