package lumora

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/lumora/internal/store"
	"github.com/jward/lumora/internal/tool"
)

func TestRunner_IndexRepositoryOp(t *testing.T) {
	t.Parallel()
	e, root := newTestEngine(t)
	writeSource(t, root, "main.go", "package main\n\nfunc main() {}\n")

	r := NewRunner(e)
	stats, err := r.IndexRepositoryOp(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesScanned)
	assert.Equal(t, 1, stats.FilesChanged)
}

func TestRunner_SymbolDefinitionsOp_ReturnsListResult(t *testing.T) {
	t.Parallel()
	e, root := newTestEngine(t)
	writeSource(t, root, "main.go", "package main\n\nfunc DoThing() {}\n")
	_, err := e.IndexDirectory(context.Background(), false)
	require.NoError(t, err)

	r := NewRunner(e)
	res, err := r.SymbolDefinitionsOp("symbol:DoThing", tool.ListOptions{Limit: 10})
	require.NoError(t, err)

	result, ok := res.(ListResult[*store.Entity])
	require.True(t, ok)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "DoThing", result.Items[0].Name)
}

func TestRunner_SelectorDiscoverOp_FindsRegisteredSymbol(t *testing.T) {
	t.Parallel()
	e, root := newTestEngine(t)
	writeSource(t, root, "main.go", "package main\n\nfunc DoThing() {}\n")
	_, err := e.IndexDirectory(context.Background(), false)
	require.NoError(t, err)

	r := NewRunner(e)
	res, err := r.SelectorDiscoverOp("DoThing", true, "", "", tool.ListOptions{Limit: 10})
	require.NoError(t, err)

	result, ok := res.(ListResult[SelectorCandidate])
	require.True(t, ok)
	assert.NotEmpty(t, result.Items)
}

func TestRunner_CloneMatchesOp_RunsWithoutError(t *testing.T) {
	t.Parallel()
	e, root := newTestEngine(t)
	writeSource(t, root, "main.go", "package main\n\nfunc DoThing() {}\n")
	_, err := e.IndexDirectory(context.Background(), false)
	require.NoError(t, err)

	r := NewRunner(e)
	_, err = r.CloneMatchesOp("main.go", "", 0, tool.ListOptions{Limit: 10})
	require.NoError(t, err)
}
