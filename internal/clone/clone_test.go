package clone

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprints_ShortFileProducesNone(t *testing.T) {
	t.Parallel()
	fps := Fingerprints([]byte("line one\nline two\n"))
	assert.Nil(t, fps)
}

func TestFingerprints_BlankLinesDontCount(t *testing.T) {
	t.Parallel()
	content := "a\n\nb\n\nc\n\nd\n\ne\n"
	fps := Fingerprints([]byte(content))
	require.Len(t, fps, 1, "five non-blank lines should yield exactly one window")
	assert.Equal(t, 1, fps[0].StartLine)
	assert.Equal(t, 9, fps[0].EndLine)
}

func TestFingerprints_OverlappingWindows(t *testing.T) {
	t.Parallel()
	content := "1\n2\n3\n4\n5\n6\n"
	fps := Fingerprints([]byte(content))
	require.Len(t, fps, 2, "six lines with a window of five gives two overlapping windows")
	assert.Equal(t, 1, fps[0].StartLine)
	assert.Equal(t, 5, fps[0].EndLine)
	assert.Equal(t, 2, fps[1].StartLine)
	assert.Equal(t, 6, fps[1].EndLine)
}

func TestFingerprints_WhitespaceNormalizedBeforeHashing(t *testing.T) {
	t.Parallel()
	a := Fingerprints([]byte("a\nb\nc\nd\ne\n"))
	b := Fingerprints([]byte("a  \n  b\nc\t\nd\ne\n"))
	require.Len(t, a, 1)
	require.Len(t, b, 1)
	assert.Equal(t, a[0].Hash, b[0].Hash, "differing whitespace should normalize to the same fingerprint")
}

func TestFingerprints_DifferentContentDifferentHash(t *testing.T) {
	t.Parallel()
	a := Fingerprints([]byte("return a + 1\nif x {\nfoo()\n}\nreturn b\n"))
	b := Fingerprints([]byte("return a + 1\nif x {\nfoo()\n}\nreturn b + c\n"))
	require.Len(t, a, 1)
	require.Len(t, b, 1)
	assert.NotEqual(t, a[0].Hash, b[0].Hash, "a genuinely different final line should still hash differently")
}

func TestFingerprints_IdentifierRenamingNormalizedBeforeHashing(t *testing.T) {
	t.Parallel()
	a := Fingerprints([]byte("func add(x int, y int) int {\nsum := x + y\nsum = sum + 1\nreturn sum\n}\n"))
	b := Fingerprints([]byte("func sum(p int, q int) int {\ntotal := p + q\ntotal = total + 1\nreturn total\n}\n"))
	require.Len(t, a, 1)
	require.Len(t, b, 1)
	assert.Equal(t, a[0].Hash, b[0].Hash, "renaming identifiers alone should not change the fingerprint")
}

func TestFingerprints_KeywordsNotNormalized(t *testing.T) {
	t.Parallel()
	a := Fingerprints([]byte("func add(x int, y int) int {\nsum := x + y\nsum = sum + 1\nreturn sum\n}\n"))
	b := Fingerprints([]byte("func add(x int, y int) int {\nsum := x + y\nsum = sum + 1\nfor sum > 0 {\n}\n"))
	require.Len(t, a, 1)
	require.Len(t, b, 1)
	assert.NotEqual(t, a[0].Hash, b[0].Hash, "a different keyword (return vs for) is a structural difference, not a renaming")
}
