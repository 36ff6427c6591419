package extract

import (
	"context"

	sitter "github.com/smacker/go-tree-sitter"
	ts "github.com/smacker/go-tree-sitter/typescript/typescript"
)

// tsExtractor is the standard-tier TypeScript/TSX extractor: definitions,
// references, imports, calls, but without Go's full signature detail.
// Grounded on the teacher's languages.go, .tsx shares the plain TypeScript
// grammar rather than a distinct tsx variant.
type tsExtractor struct {
	grammar *sitter.Language
}

func newTypeScriptExtractor() *tsExtractor {
	return &tsExtractor{grammar: ts.GetLanguage()}
}

func (e *tsExtractor) Language() string { return "typescript" }
func (e *tsExtractor) Tier() Tier       { return TierStandard }
func (e *tsExtractor) Capabilities() Capability {
	return CapDefinitions | CapReferences | CapImports | CapCalls
}

func (e *tsExtractor) Extract(path string, content []byte) (*Extraction, error) {
	root, err := parseTree(context.Background(), e.grammar, content)
	if err != nil {
		return &Extraction{ParseOK: false}, nil
	}
	return extractECMAScriptFamily(root, content), nil
}

// extractECMAScriptFamily walks a JS/TS/TSX tree. The three grammars share
// enough node-type vocabulary (function_declaration, class_declaration,
// method_definition, interface_declaration, import_statement, call_expression)
// that one walker serves all of them at standard tier.
func extractECMAScriptFamily(root *sitter.Node, content []byte) *Extraction {
	ext := &Extraction{ParseOK: true}

	var walkDef func(n *sitter.Node, parent *int)
	walkDef = func(n *sitter.Node, parent *int) {
		switch n.Type() {
		case "import_statement":
			if src := n.ChildByFieldName("source"); src != nil {
				raw := trimQuotes(nodeText(src, content))
				ext.Imports = append(ext.Imports, Import{Raw: raw, ResolvedPath: raw})
			}
			return

		case "function_declaration", "class_declaration", "interface_declaration",
			"method_definition", "lexical_declaration", "type_alias_declaration":
			name := childByFieldNameText(n, "name", content)
			if name == "" && n.Type() == "lexical_declaration" {
				// const/let bindings: take the first declarator's identifier.
				if d := firstNamedOfType(n, "variable_declarator"); d != nil {
					name = childByFieldNameText(d, "name", content)
				}
			}
			if name != "" {
				kind := kindForJSNode(n.Type())
				sl, sc, el, ec := span(n)
				idx := len(ext.Definitions)
				ext.Definitions = append(ext.Definitions, Definition{
					Name: name, Kind: kind, QualifiedName: name,
					Visibility:       "public",
					SignatureExcerpt: excerpt(nodeText(n, content), 160),
					StartLine:        sl, StartCol: sc, EndLine: el, EndCol: ec,
					ParentIndex: parent,
				})
				self := idx
				walkCallsAndRefs(n, content, ext, self)
				for i := 0; i < int(n.NamedChildCount()); i++ {
					walkDef(n.NamedChild(i), &self)
				}
				return
			}
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walkDef(n.NamedChild(i), parent)
		}
	}
	walkDef(root, nil)
	return ext
}

func walkCallsAndRefs(def *sitter.Node, content []byte, ext *Extraction, callerIdx int) {
	body := def.ChildByFieldName("body")
	if body == nil {
		return
	}
	walk(body, func(n *sitter.Node) bool {
		if n.Type() != "call_expression" {
			return true
		}
		fn := n.ChildByFieldName("function")
		if fn == nil {
			return true
		}
		name := calleeName(fn, content)
		if name == "" {
			return true
		}
		sl, sc, el, ec := span(fn)
		ext.References = append(ext.References, Reference{
			TargetName: name, Line: sl, Col: sc, EndLine: el, EndCol: ec, IsCall: true,
		})
		ext.Calls = append(ext.Calls, Call{CallerIndex: callerIdx, CalleeName: name, Line: sl})
		return true
	})
}

func kindForJSNode(nodeType string) string {
	switch nodeType {
	case "function_declaration":
		return "function"
	case "class_declaration":
		return "class"
	case "interface_declaration":
		return "interface"
	case "method_definition":
		return "method"
	case "type_alias_declaration":
		return "type_alias"
	case "lexical_declaration":
		return "variable"
	default:
		return "variable"
	}
}

func firstNamedOfType(n *sitter.Node, t string) *sitter.Node {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() == t {
			return c
		}
	}
	return nil
}

func trimQuotes(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'' || s[0] == '`') {
		return s[1 : len(s)-1]
	}
	return s
}
