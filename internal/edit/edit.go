// Package edit writes docstrings into Python source files. Edits are
// line splices around tree-sitter located statements, so every line
// outside the docstring itself is preserved byte for byte.
package edit

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// InsertDocstring returns source with docstring installed on the
// function or class named name (bare or Class.method qualified). An
// existing docstring is replaced; otherwise the docstring becomes the
// first body statement, indented to the body's column. Definitions
// whose body shares a line with the header are rejected. lineHint
// breaks ties between same-named definitions by picking the closest
// one.
func InsertDocstring(source []byte, name string, lineHint int, docstring string) ([]byte, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())
	defer parser.Close()

	tree, err := parser.ParseCtx(context.Background(), nil, source)
	if err != nil {
		return nil, fmt.Errorf("parsing source: %w", err)
	}
	defer tree.Close()

	def := findDefinition(tree.RootNode(), source, name, lineHint)
	if def == nil {
		return nil, fmt.Errorf("symbol %q not found in file", name)
	}

	body := def.ChildByFieldName("body")
	if body == nil || body.NamedChildCount() == 0 {
		return nil, fmt.Errorf("symbol %q has no body to document", name)
	}

	anchor := body.NamedChild(0)
	lines := strings.Split(string(source), "\n")
	row := int(anchor.StartPoint().Row)
	col := int(anchor.StartPoint().Column)
	if strings.TrimSpace(lines[row][:col]) != "" {
		return nil, fmt.Errorf("symbol %q has an inline body; expand it before documenting", name)
	}

	indent := strings.Repeat(" ", col)
	block := docstringBlock(docstring, indent)

	if stmt := docstringStmt(body); stmt != nil {
		return replaceLines(lines, stmt, block)
	}
	return spliceLines(lines, row, row, block), nil
}

// InsertModuleDocstring returns source with docstring installed at the
// top of the module, after any shebang and encoding comment lines. An
// existing module docstring is replaced.
func InsertModuleDocstring(source []byte, docstring string) ([]byte, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())
	defer parser.Close()

	tree, err := parser.ParseCtx(context.Background(), nil, source)
	if err != nil {
		return nil, fmt.Errorf("parsing source: %w", err)
	}
	defer tree.Close()

	lines := strings.Split(string(source), "\n")
	block := docstringBlock(docstring, "")

	if stmt := docstringStmt(tree.RootNode()); stmt != nil {
		return replaceLines(lines, stmt, block)
	}

	insertAt := 0
	if len(lines) > 0 && strings.HasPrefix(lines[0], "#!") {
		insertAt = 1
	}
	if len(lines) > insertAt && encodingCommentRe.MatchString(lines[insertAt]) {
		insertAt++
	}
	return spliceLines(lines, insertAt, insertAt, block), nil
}

// PEP 263: an encoding declaration is a comment on line 1 or 2.
var encodingCommentRe = regexp.MustCompile(`^#.*coding[:=]\s*[-\w.]+`)

type candidate struct {
	def  *sitter.Node
	bare string
	qual string
}

// findDefinition locates the def/class matching name, preferring the
// candidate whose line is closest to lineHint.
func findDefinition(root *sitter.Node, source []byte, name string, lineHint int) *sitter.Node {
	var found []candidate

	var walk func(node *sitter.Node, class string)
	define := func(def *sitter.Node, class string) {
		nameNode := def.ChildByFieldName("name")
		if nameNode == nil {
			return
		}
		bare := nameNode.Content(source)
		qual := bare
		if class != "" && def.Type() == "function_definition" {
			qual = class + "." + bare
		}
		found = append(found, candidate{def: def, bare: bare, qual: qual})
		if body := def.ChildByFieldName("body"); body != nil {
			inner := ""
			if def.Type() == "class_definition" {
				inner = bare
			}
			walk(body, inner)
		}
	}
	walk = func(node *sitter.Node, class string) {
		for i := 0; i < int(node.NamedChildCount()); i++ {
			child := node.NamedChild(i)
			switch child.Type() {
			case "function_definition", "class_definition":
				define(child, class)
			case "decorated_definition":
				if def := child.ChildByFieldName("definition"); def != nil {
					define(def, class)
				}
			default:
				walk(child, class)
			}
		}
	}
	walk(root, "")

	var best *sitter.Node
	bestDist := -1
	for _, c := range found {
		if c.bare != name && c.qual != name {
			continue
		}
		line := int(c.def.StartPoint().Row) + 1
		dist := line - lineHint
		if dist < 0 {
			dist = -dist
		}
		if best == nil || dist < bestDist {
			best = c.def
			bestDist = dist
		}
	}
	return best
}

// docstringStmt returns the docstring expression statement of a block
// or module node, or nil. Leading comments do not count as statements.
func docstringStmt(body *sitter.Node) *sitter.Node {
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

// docstringBlock renders the docstring text as triple-quoted source
// lines at the given indentation. Single-line docstrings stay on one
// line; multi-line ones close on their own line.
func docstringBlock(docstring, indent string) []string {
	text := strings.Trim(docstring, " \t\n\"'")
	docLines := strings.Split(text, "\n")
	if len(docLines) == 1 {
		return []string{indent + `"""` + docLines[0] + `"""`}
	}
	block := make([]string, 0, len(docLines)+1)
	block = append(block, indent+`"""`+docLines[0])
	for _, l := range docLines[1:] {
		l = strings.TrimRight(l, " \t")
		if l == "" {
			block = append(block, "")
			continue
		}
		block = append(block, indent+l)
	}
	block = append(block, indent+`"""`)
	return block
}

// replaceLines swaps the lines spanned by stmt for block. The statement
// must own its lines outright; a docstring sharing a line with other
// code is left alone with an error.
func replaceLines(lines []string, stmt *sitter.Node, block []string) ([]byte, error) {
	startRow := int(stmt.StartPoint().Row)
	endRow := int(stmt.EndPoint().Row)
	startCol := int(stmt.StartPoint().Column)
	endCol := int(stmt.EndPoint().Column)

	if startRow >= len(lines) || endRow >= len(lines) {
		return nil, fmt.Errorf("docstring spans beyond file bounds")
	}
	if strings.TrimSpace(lines[startRow][:startCol]) != "" {
		return nil, fmt.Errorf("existing docstring shares a line with other code")
	}
	if strings.TrimSpace(lines[endRow][endCol:]) != "" {
		return nil, fmt.Errorf("existing docstring shares a line with other code")
	}

	return spliceLines(lines, startRow, endRow+1, block), nil
}

// spliceLines replaces lines[start:end] with block and rejoins.
func spliceLines(lines []string, start, end int, block []string) []byte {
	out := make([]string, 0, len(lines)-(end-start)+len(block))
	out = append(out, lines[:start]...)
	out = append(out, block...)
	out = append(out, lines[end:]...)
	return []byte(strings.Join(out, "\n"))
}
