package extract

import (
	"context"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
)

// jsExtractor is the standard-tier JavaScript extractor. Shares its walker
// with tsExtractor since the ECMAScript-family grammars overlap heavily for
// the node types this module cares about.
type jsExtractor struct {
	grammar *sitter.Language
}

func newJavaScriptExtractor() *jsExtractor {
	return &jsExtractor{grammar: javascript.GetLanguage()}
}

func (e *jsExtractor) Language() string { return "javascript" }
func (e *jsExtractor) Tier() Tier       { return TierStandard }
func (e *jsExtractor) Capabilities() Capability {
	return CapDefinitions | CapReferences | CapImports | CapCalls
}

func (e *jsExtractor) Extract(path string, content []byte) (*Extraction, error) {
	root, err := parseTree(context.Background(), e.grammar, content)
	if err != nil {
		return &Extraction{ParseOK: false}, nil
	}
	return extractECMAScriptFamily(root, content), nil
}
