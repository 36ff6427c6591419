package extract

import (
	"context"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// pyExtractor is the standard-tier Python extractor: function/class
// definitions, import statements, and call expressions.
type pyExtractor struct {
	grammar *sitter.Language
}

func newPythonExtractor() *pyExtractor {
	return &pyExtractor{grammar: python.GetLanguage()}
}

func (e *pyExtractor) Language() string { return "python" }
func (e *pyExtractor) Tier() Tier       { return TierStandard }
func (e *pyExtractor) Capabilities() Capability {
	return CapDefinitions | CapReferences | CapImports | CapCalls
}

func (e *pyExtractor) Extract(path string, content []byte) (*Extraction, error) {
	root, err := parseTree(context.Background(), e.grammar, content)
	if err != nil {
		return &Extraction{ParseOK: false}, nil
	}

	ext := &Extraction{ParseOK: true}

	var walkDef func(n *sitter.Node, parent *int)
	walkDef = func(n *sitter.Node, parent *int) {
		switch n.Type() {
		case "import_statement", "import_from_statement":
			walk(n, func(m *sitter.Node) bool {
				if m.Type() == "dotted_name" || m.Type() == "relative_import" {
					raw := nodeText(m, content)
					ext.Imports = append(ext.Imports, Import{Raw: raw, ResolvedPath: raw})
					return false
				}
				return true
			})
			return

		case "function_definition", "class_definition":
			name := childByFieldNameText(n, "name", content)
			if name == "" {
				return
			}
			kind := "function"
			if n.Type() == "class_definition" {
				kind = "class"
			}
			sl, sc, el, ec := span(n)
			idx := len(ext.Definitions)
			ext.Definitions = append(ext.Definitions, Definition{
				Name: name, Kind: kind, QualifiedName: name,
				Visibility:       pyVisibility(name),
				SignatureExcerpt: excerpt(pySignature(n, content), 160),
				StartLine:        sl, StartCol: sc, EndLine: el, EndCol: ec,
				ParentIndex: parent,
			})
			self := idx
			if body := n.ChildByFieldName("body"); body != nil {
				walk(body, func(m *sitter.Node) bool {
					if m.Type() != "call" {
						return true
					}
					fn := m.ChildByFieldName("function")
					if fn == nil {
						return true
					}
					name := calleeName(fn, content)
					if name == "" && fn.Type() == "attribute" {
						if attr := fn.ChildByFieldName("attribute"); attr != nil {
							name = nodeText(attr, content)
						}
					}
					if name == "" {
						return true
					}
					fsl, fsc, fel, fec := span(fn)
					ext.References = append(ext.References, Reference{
						TargetName: name, Line: fsl, Col: fsc, EndLine: fel, EndCol: fec, IsCall: true,
					})
					ext.Calls = append(ext.Calls, Call{CallerIndex: self, CalleeName: name, Line: fsl})
					return true
				})
			}
			for i := 0; i < int(n.NamedChildCount()); i++ {
				walkDef(n.NamedChild(i), &self)
			}
			return
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walkDef(n.NamedChild(i), parent)
		}
	}
	walkDef(root, nil)
	return ext, nil
}

func pySignature(n *sitter.Node, content []byte) string {
	name := childByFieldNameText(n, "name", content)
	params := ""
	if p := n.ChildByFieldName("parameters"); p != nil {
		params = nodeText(p, content)
	}
	if n.Type() == "class_definition" {
		return "class " + name + params
	}
	return "def " + name + params
}

func pyVisibility(name string) string {
	if len(name) > 0 && name[0] == '_' {
		return "private"
	}
	return "public"
}
