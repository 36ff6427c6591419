package extract

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
)

// parseTree parses content with grammar and returns the root node of the
// resulting syntax tree. Extraction happens by walking this tree, matching
// the teacher's own use of go-tree-sitter in internal/runtime/languages.go.
func parseTree(ctx context.Context, grammar *sitter.Language, content []byte) (*sitter.Node, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(grammar)
	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	root := tree.RootNode()
	if root == nil {
		return nil, fmt.Errorf("parse: empty tree")
	}
	return root, nil
}

// nodeText returns a node's source text.
func nodeText(n *sitter.Node, content []byte) string {
	return n.Content(content)
}

// span converts a node's 0-based tree-sitter point range to the 1-based
// line/col convention the Graph Store uses (spec §4.1: "Line/column are
// 1-based").
func span(n *sitter.Node) (startLine, startCol, endLine, endCol int) {
	sp := n.StartPoint()
	ep := n.EndPoint()
	return int(sp.Row) + 1, int(sp.Column) + 1, int(ep.Row) + 1, int(ep.Column) + 1
}

// childByFieldNameText returns the text of the named field child, or "".
func childByFieldNameText(n *sitter.Node, field string, content []byte) string {
	c := n.ChildByFieldName(field)
	if c == nil {
		return ""
	}
	return nodeText(c, content)
}

// walk calls visit for n and every descendant, depth-first, pre-order.
// visit returns false to skip descending into a node's children.
func walk(n *sitter.Node, visit func(*sitter.Node) bool) {
	if n == nil {
		return
	}
	if !visit(n) {
		return
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		walk(n.NamedChild(i), visit)
	}
}

// excerpt trims s to at most maxLen runes for a signature_excerpt column,
// collapsing to a single line.
func excerpt(s string, maxLen int) string {
	out := make([]rune, 0, maxLen)
	for _, r := range s {
		if r == '\n' {
			r = ' '
		}
		out = append(out, r)
		if len(out) >= maxLen {
			break
		}
	}
	return string(out)
}
