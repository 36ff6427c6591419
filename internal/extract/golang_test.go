package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const goFixture = `package sample

import (
	"fmt"
)

type Greeter struct {
	Name string
}

func (g *Greeter) Greet() string {
	return fmt.Sprintf("hi %s", g.Name)
}

func New(name string) *Greeter {
	g := &Greeter{Name: name}
	g.warm()
	return g
}

func (g *Greeter) warm() {}

const Version = "1.0"
`

func TestGoExtractor_Capabilities(t *testing.T) {
	t.Parallel()
	e := newGoExtractor()
	assert.Equal(t, "go", e.Language())
	assert.Equal(t, TierFull, e.Tier())
	assert.True(t, e.Capabilities().Has(CapDefinitions))
	assert.True(t, e.Capabilities().Has(CapReferences))
	assert.True(t, e.Capabilities().Has(CapImports))
	assert.True(t, e.Capabilities().Has(CapCalls))
}

func TestGoExtractor_ExtractsDefinitions(t *testing.T) {
	t.Parallel()
	e := newGoExtractor()
	ext, err := e.Extract("sample.go", []byte(goFixture))
	require.NoError(t, err)
	require.True(t, ext.ParseOK)

	names := make(map[string]string)
	for _, d := range ext.Definitions {
		names[d.Name] = d.Kind
	}
	assert.Equal(t, "struct", names["Greeter"])
	assert.Equal(t, "method", names["Greet"])
	assert.Equal(t, "function", names["New"])
	assert.Equal(t, "method", names["warm"])
	assert.Equal(t, "const", names["Version"])
}

func TestGoExtractor_VisibilityFromCase(t *testing.T) {
	t.Parallel()
	e := newGoExtractor()
	ext, err := e.Extract("sample.go", []byte(goFixture))
	require.NoError(t, err)

	var newVis, warmVis string
	for _, d := range ext.Definitions {
		switch d.Name {
		case "New":
			newVis = d.Visibility
		case "warm":
			warmVis = d.Visibility
		}
	}
	assert.Equal(t, "public", newVis)
	assert.Equal(t, "private", warmVis)
}

func TestGoExtractor_ExtractsImports(t *testing.T) {
	t.Parallel()
	e := newGoExtractor()
	ext, err := e.Extract("sample.go", []byte(goFixture))
	require.NoError(t, err)
	require.Len(t, ext.Imports, 1)
	assert.Equal(t, "fmt", ext.Imports[0].Raw)
}

func TestGoExtractor_AttributesCallsToEnclosingFunction(t *testing.T) {
	t.Parallel()
	e := newGoExtractor()
	ext, err := e.Extract("sample.go", []byte(goFixture))
	require.NoError(t, err)

	var newIdx int
	for i, d := range ext.Definitions {
		if d.Name == "New" {
			newIdx = i
		}
	}

	found := false
	for _, c := range ext.Calls {
		if c.CalleeName == "warm" {
			found = true
			assert.Equal(t, newIdx, c.CallerIndex, "warm() call should be attributed to the New function body it appears in")
		}
	}
	assert.True(t, found, "expected a call edge for g.warm()")
}

func TestGoExtractor_ParseErrorStillReturnsExtraction(t *testing.T) {
	t.Parallel()
	e := newGoExtractor()
	ext, err := e.Extract("broken.go", []byte("this is not { go code at all ]["))
	require.NoError(t, err, "malformed input should not error, only set ParseOK false or extract partial structure")
	assert.NotNil(t, ext)
}
