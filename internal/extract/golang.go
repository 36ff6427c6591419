package extract

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
)

// goExtractor is the full-tier Go extractor: definitions, references,
// imports, and calls, grounded on the teacher's own use of
// smacker/go-tree-sitter's golang grammar (internal/runtime/languages.go).
type goExtractor struct {
	grammar *sitter.Language
}

func newGoExtractor() *goExtractor {
	return &goExtractor{grammar: golang.GetLanguage()}
}

func (e *goExtractor) Language() string          { return "go" }
func (e *goExtractor) Tier() Tier                { return TierFull }
func (e *goExtractor) Capabilities() Capability {
	return CapDefinitions | CapReferences | CapImports | CapCalls
}

func (e *goExtractor) Extract(path string, content []byte) (*Extraction, error) {
	root, err := parseTree(context.Background(), e.grammar, content)
	if err != nil {
		return &Extraction{ParseOK: false}, nil
	}

	ext := &Extraction{ParseOK: true}
	var packageName string
	defIndexByName := make(map[string]int)
	var currentDefIndex []int // stack of enclosing definition indices, for call attribution

	walk(root, func(n *sitter.Node) bool {
		switch n.Type() {
		case "package_clause":
			if id := n.NamedChild(0); id != nil {
				packageName = nodeText(id, content)
			}
			return true

		case "import_declaration":
			walk(n, func(ic *sitter.Node) bool {
				if ic.Type() == "import_spec" {
					raw := strings.Trim(childByFieldNameText(ic, "path", content), `"`)
					ext.Imports = append(ext.Imports, Import{Raw: raw, ResolvedPath: raw})
					return false
				}
				return true
			})
			return false

		case "function_declaration":
			name := childByFieldNameText(n, "name", content)
			if name == "" {
				return true
			}
			sl, sc, el, ec := span(n)
			idx := len(ext.Definitions)
			ext.Definitions = append(ext.Definitions, Definition{
				Name:             name,
				Kind:             "function",
				QualifiedName:    packageName + "." + name,
				Visibility:       visibilityFromCase(name),
				SignatureExcerpt: excerpt(functionSignatureText(n, content), 160),
				StartLine:        sl, StartCol: sc, EndLine: el, EndCol: ec,
			})
			defIndexByName[name] = idx
			currentDefIndex = append(currentDefIndex, idx)
			walkBody(n, content, ext, &currentDefIndex, idx)
			currentDefIndex = currentDefIndex[:len(currentDefIndex)-1]
			return false

		case "method_declaration":
			name := childByFieldNameText(n, "name", content)
			if name == "" {
				return true
			}
			recv := receiverTypeName(n, content)
			qualified := packageName + "." + recv + "." + name
			sl, sc, el, ec := span(n)
			idx := len(ext.Definitions)
			ext.Definitions = append(ext.Definitions, Definition{
				Name:             name,
				Kind:             "method",
				QualifiedName:    qualified,
				Visibility:       visibilityFromCase(name),
				SignatureExcerpt: excerpt(functionSignatureText(n, content), 160),
				StartLine:        sl, StartCol: sc, EndLine: el, EndCol: ec,
			})
			defIndexByName[recv+"."+name] = idx
			currentDefIndex = append(currentDefIndex, idx)
			walkBody(n, content, ext, &currentDefIndex, idx)
			currentDefIndex = currentDefIndex[:len(currentDefIndex)-1]
			return false

		case "type_spec":
			name := childByFieldNameText(n, "name", content)
			if name == "" {
				return true
			}
			kind := "type_alias"
			if t := n.ChildByFieldName("type"); t != nil {
				switch t.Type() {
				case "struct_type":
					kind = "struct"
				case "interface_type":
					kind = "interface"
				}
			}
			sl, sc, el, ec := span(n)
			idx := len(ext.Definitions)
			ext.Definitions = append(ext.Definitions, Definition{
				Name:             name,
				Kind:             kind,
				QualifiedName:    packageName + "." + name,
				Visibility:       visibilityFromCase(name),
				SignatureExcerpt: excerpt(nodeText(n, content), 160),
				StartLine:        sl, StartCol: sc, EndLine: el, EndCol: ec,
			})
			defIndexByName[name] = idx
			return false

		case "const_declaration", "var_declaration":
			kind := "variable"
			if n.Type() == "const_declaration" {
				kind = "const"
			}
			walk(n, func(spec *sitter.Node) bool {
				if spec.Type() != "const_spec" && spec.Type() != "var_spec" {
					return true
				}
				for i := 0; i < int(spec.NamedChildCount()); i++ {
					c := spec.NamedChild(i)
					if c.Type() != "identifier" {
						continue
					}
					name := nodeText(c, content)
					sl, sc, el, ec := span(spec)
					idx := len(ext.Definitions)
					ext.Definitions = append(ext.Definitions, Definition{
						Name: name, Kind: kind,
						QualifiedName:    packageName + "." + name,
						Visibility:       visibilityFromCase(name),
						SignatureExcerpt: excerpt(nodeText(spec, content), 160),
						StartLine:        sl, StartCol: sc, EndLine: el, EndCol: ec,
					})
					defIndexByName[name] = idx
				}
				return false
			})
			return false
		}
		return true
	})

	// Second pass: resolve call-edge callers for references found outside
	// any definition body (package-level init expressions) is skipped —
	// calls are only attributed within a definition's body, matching
	// "CallEdge refined from reference records where is_call" (spec §3)
	// scoped to the enclosing entity.
	return ext, nil
}

// walkBody scans a function/method body for references and calls,
// attributing calls to callerIdx.
func walkBody(def *sitter.Node, content []byte, ext *Extraction, _ *[]int, callerIdx int) {
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

// calleeName extracts the bare identifier from a call target: "foo(...)" ->
// "foo", "pkg.Foo(...)" -> "Foo", "recv.Method(...)" -> "Method".
func calleeName(fn *sitter.Node, content []byte) string {
	switch fn.Type() {
	case "identifier":
		return nodeText(fn, content)
	case "selector_expression":
		if field := fn.ChildByFieldName("field"); field != nil {
			return nodeText(field, content)
		}
	}
	return ""
}

func receiverTypeName(method *sitter.Node, content []byte) string {
	recv := method.ChildByFieldName("receiver")
	if recv == nil {
		return ""
	}
	name := ""
	walk(recv, func(n *sitter.Node) bool {
		if n.Type() == "type_identifier" {
			name = nodeText(n, content)
			return false
		}
		return true
	})
	return name
}

func functionSignatureText(n *sitter.Node, content []byte) string {
	name := childByFieldNameText(n, "name", content)
	params := ""
	if p := n.ChildByFieldName("parameters"); p != nil {
		params = nodeText(p, content)
	}
	result := ""
	if r := n.ChildByFieldName("result"); r != nil {
		result = " " + nodeText(r, content)
	}
	return "func " + name + params + result
}

func visibilityFromCase(name string) string {
	if name == "" {
		return "private"
	}
	r := []rune(name)[0]
	if r >= 'A' && r <= 'Z' {
		return "public"
	}
	return "private"
}
