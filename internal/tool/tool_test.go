package tool

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner records every call it receives so tests can assert the Adapter
// forwards arguments and results verbatim.
type fakeRunner struct {
	lastSelector string
	lastOpts     ListOptions
	result       any
	err          error
}

func (f *fakeRunner) SymbolDefinitionsOp(selector string, opts ListOptions) (any, error) {
	f.lastSelector, f.lastOpts = selector, opts
	return f.result, f.err
}
func (f *fakeRunner) SymbolReferencesOp(selector string, callsOnly, dedup, topFiles bool, opts ListOptions) (any, error) {
	f.lastSelector, f.lastOpts = selector, opts
	return f.result, f.err
}
func (f *fakeRunner) SymbolCallersOp(selector string, dedup bool, opts ListOptions) (any, error) {
	f.lastSelector, f.lastOpts = selector, opts
	return f.result, f.err
}
func (f *fakeRunner) DependencyPathOp(selectorA, selectorB string, maxDepth int) (any, error) {
	f.lastSelector = selectorA + "->" + selectorB
	return f.result, f.err
}
func (f *fakeRunner) MinimalSliceOp(file string, line, depth, maxNeighbors int, flags SliceFlags) (any, error) {
	f.lastSelector = file
	return f.result, f.err
}
func (f *fakeRunner) CloneMatchesOp(file, mode string, minSimilarity float64, opts ListOptions) (any, error) {
	f.lastSelector = file
	f.lastOpts = opts
	return f.result, f.err
}
func (f *fakeRunner) SelectorDiscoverOp(query string, fuzzy bool, fileGlob, entityType string, opts ListOptions) (any, error) {
	f.lastSelector = query
	f.lastOpts = opts
	return f.result, f.err
}
func (f *fakeRunner) IndexRepositoryOp(ctx context.Context, full bool) (Stats, error) {
	if full {
		return Stats{FilesScanned: 10}, f.err
	}
	return Stats{FilesScanned: 1}, f.err
}

func TestAdapter_SymbolDefinitions_ForwardsArgsAndResult(t *testing.T) {
	t.Parallel()
	f := &fakeRunner{result: "defs"}
	a := New(f)

	opts := ListOptions{Limit: 5, Order: "line"}
	res, err := a.SymbolDefinitions("symbol:Foo", opts)
	require.NoError(t, err)
	assert.Equal(t, "defs", res)
	assert.Equal(t, "symbol:Foo", f.lastSelector)
	assert.Equal(t, opts, f.lastOpts)
}

func TestAdapter_PropagatesRunnerError(t *testing.T) {
	t.Parallel()
	wantErr := errors.New("boom")
	f := &fakeRunner{err: wantErr}
	a := New(f)

	_, err := a.SymbolCallers("symbol:Foo", true, ListOptions{})
	assert.ErrorIs(t, err, wantErr)
}

func TestAdapter_IndexRepository_TranslatesModeToFullFlag(t *testing.T) {
	t.Parallel()
	f := &fakeRunner{}
	a := New(f)

	stats, err := a.IndexRepository(context.Background(), "full")
	require.NoError(t, err)
	assert.Equal(t, 10, stats.FilesScanned)

	stats, err = a.IndexRepository(context.Background(), "incremental")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesScanned)
}

func TestOperationNames_MatchesToolSurfaceOrder(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []string{
		"index_repository",
		"symbol_definitions",
		"symbol_references",
		"symbol_callers",
		"dependency_path",
		"minimal_slice",
		"clone_matches",
		"selector_discover",
	}, OperationNames)
}
