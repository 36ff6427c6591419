package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rustFixture = `struct Point {
    x: i32,
    y: i32,
}

fn distance(a: &Point, b: &Point) -> f64 {
    0.0
}
`

func TestStructureExtractor_Rust_DefinitionsOnly(t *testing.T) {
	t.Parallel()
	e := newStructureExtractor("rust", rustDefNodeKinds)
	assert.Equal(t, TierStructureOnly, e.Tier())
	assert.Equal(t, CapDefinitions, e.Capabilities())
	assert.False(t, e.Capabilities().Has(CapCalls))

	ext, err := e.Extract("sample.rs", []byte(rustFixture))
	require.NoError(t, err)
	require.True(t, ext.ParseOK)

	names := make(map[string]string)
	for _, d := range ext.Definitions {
		names[d.Name] = d.Kind
	}
	assert.Equal(t, "struct", names["Point"])
	assert.Equal(t, "function", names["distance"])
	assert.Empty(t, ext.References, "structure-only tier never produces references")
	assert.Empty(t, ext.Calls, "structure-only tier never produces calls")
}

const rubyFixture = `class Greeter
  def greet
    "hi"
  end
end
`

func TestStructureExtractor_Ruby_IdentifierAsBareChild(t *testing.T) {
	t.Parallel()
	e := newStructureExtractor("ruby", rubyDefNodeKinds)
	ext, err := e.Extract("sample.rb", []byte(rubyFixture))
	require.NoError(t, err)
	require.True(t, ext.ParseOK)

	names := make(map[string]string)
	for _, d := range ext.Definitions {
		names[d.Name] = d.Kind
	}
	assert.Equal(t, "class", names["Greeter"])
	assert.Equal(t, "method", names["greet"])
}
