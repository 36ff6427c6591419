package extract

import (
	"context"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/php"
	"github.com/smacker/go-tree-sitter/ruby"
	"github.com/smacker/go-tree-sitter/rust"
)

// structureExtractor is the structure-only tier: definitions only, no
// references/imports/calls. Used for languages where the module carries a
// tree-sitter grammar but no deeper semantic walker, matching the spec's
// requirement that every extractor satisfy CapDefinitions at minimum.
type structureExtractor struct {
	language string
	grammar  *sitter.Language
	defKinds map[string]string
}

func newStructureExtractor(language string, defKinds map[string]string) *structureExtractor {
	return &structureExtractor{
		language: language,
		grammar:  grammarFor(language),
		defKinds: defKinds,
	}
}

func grammarFor(language string) *sitter.Language {
	switch language {
	case "rust":
		return rust.GetLanguage()
	case "c":
		return c.GetLanguage()
	case "cpp":
		return cpp.GetLanguage()
	case "java":
		return java.GetLanguage()
	case "php":
		return php.GetLanguage()
	case "ruby":
		return ruby.GetLanguage()
	}
	return nil
}

func (e *structureExtractor) Language() string          { return e.language }
func (e *structureExtractor) Tier() Tier                 { return TierStructureOnly }
func (e *structureExtractor) Capabilities() Capability  { return CapDefinitions }

func (e *structureExtractor) Extract(path string, content []byte) (*Extraction, error) {
	root, err := parseTree(context.Background(), e.grammar, content)
	if err != nil {
		return &Extraction{ParseOK: false}, nil
	}

	ext := &Extraction{ParseOK: true}
	walk(root, func(n *sitter.Node) bool {
		kind, ok := e.defKinds[n.Type()]
		if !ok {
			return true
		}
		name := childByFieldNameText(n, "name", content)
		if name == "" {
			// Some grammars expose the identifier as a bare named child
			// rather than a "name" field (e.g. Ruby's method/class nodes).
			if c := firstNamedOfType(n, "identifier"); c != nil {
				name = nodeText(c, content)
			} else if c := firstNamedOfType(n, "constant"); c != nil {
				name = nodeText(c, content)
			}
		}
		if name == "" {
			// C/C++ function definitions carry the name at the end of a
			// declarator chain (pointer_declarator -> function_declarator ->
			// identifier) rather than in a "name" field.
			d := n.ChildByFieldName("declarator")
			for d != nil && d.ChildByFieldName("declarator") != nil {
				d = d.ChildByFieldName("declarator")
			}
			if d != nil {
				name = nodeText(d, content)
			}
		}
		if name == "" {
			return true
		}
		sl, sc, el, ec := span(n)
		ext.Definitions = append(ext.Definitions, Definition{
			Name: name, Kind: kind, QualifiedName: name,
			Visibility:       "public",
			SignatureExcerpt: excerpt(nodeText(n, content), 160),
			StartLine:        sl, StartCol: sc, EndLine: el, EndCol: ec,
		})
		return true
	})
	return ext, nil
}

// rustDefNodeKinds, cDefNodeKinds, etc. map each grammar's declaration node
// types to the glossary kind vocabulary. Structure-only extractors stop at
// definitions, so only top-level/nested declaration shapes are listed.
var rustDefNodeKinds = map[string]string{
	"function_item":   "function",
	"struct_item":     "struct",
	"enum_item":       "enum",
	"trait_item":      "trait",
	"impl_item":       "class",
	"mod_item":        "module",
	"const_item":      "const",
	"type_item":       "type_alias",
	"macro_definition": "macro",
}

var cDefNodeKinds = map[string]string{
	"function_definition": "function",
	"struct_specifier":    "struct",
	"enum_specifier":      "enum",
	"type_definition":     "type_alias",
}

var cppDefNodeKinds = map[string]string{
	"function_definition": "function",
	"struct_specifier":    "struct",
	"class_specifier":     "class",
	"enum_specifier":      "enum",
	"namespace_definition": "module",
	"type_definition":      "type_alias",
}

var javaDefNodeKinds = map[string]string{
	"method_declaration":    "method",
	"class_declaration":     "class",
	"interface_declaration": "interface",
	"enum_declaration":      "enum",
	"constructor_declaration": "method",
}

var phpDefNodeKinds = map[string]string{
	"function_definition":    "function",
	"method_declaration":     "method",
	"class_declaration":      "class",
	"interface_declaration":  "interface",
	"trait_declaration":      "trait",
}

var rubyDefNodeKinds = map[string]string{
	"method":        "method",
	"class":         "class",
	"module":        "module",
	"singleton_method": "method",
}
