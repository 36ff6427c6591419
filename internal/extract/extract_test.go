package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistry_DispatchesByExtension(t *testing.T) {
	t.Parallel()
	r := NewRegistry()

	cases := map[string]string{
		".go":   "go",
		".ts":   "typescript",
		".tsx":  "typescript",
		".js":   "javascript",
		".jsx":  "javascript",
		".mjs":  "javascript",
		".py":   "python",
		".rs":   "rust",
		".c":    "c",
		".cpp":  "cpp",
		".java": "java",
		".php":  "php",
		".rb":   "ruby",
	}
	for ext, lang := range cases {
		e, ok := r.For(ext)
		require.True(t, ok, "extension %s should be registered", ext)
		assert.Equal(t, lang, e.Language())
		assert.Equal(t, lang, r.LanguageForExt(ext))
	}
}

func TestNewRegistry_UnknownExtensionNotFound(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	_, ok := r.For(".unknownlang")
	assert.False(t, ok)
	assert.Equal(t, "", r.LanguageForExt(".unknownlang"))
}

func TestCapability_Has(t *testing.T) {
	t.Parallel()
	c := CapDefinitions | CapCalls
	assert.True(t, c.Has(CapDefinitions))
	assert.True(t, c.Has(CapCalls))
	assert.False(t, c.Has(CapImports))
	assert.False(t, c.Has(CapReferences))
}
