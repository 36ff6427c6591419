// Package tool is the Tool Surface Adapter: it translates the fixed set of
// operations named in the specification's tool surface table into direct
// calls through a QueryRunner. Methods take positional arguments plus the
// ListOptions/SliceFlags structs, return results as any, and add no
// transport framing of their own. Anything that speaks JSON-RPC or
// stdio to a client (an MCP server, say) sits on top of this package and is
// out of scope here — see cmd/lumora for the one concrete caller.
package tool

import (
	"context"
)

// Engine is the indexing subset of *lumora.Engine, expressed as an interface
// so it can be exercised without importing the root package (which would
// create an import cycle, since the root package's CLI-facing helpers live
// alongside Engine itself). Adapter does not use it; it calls a QueryRunner.
type Engine interface {
	IndexDirectory(ctx context.Context, full bool) (Stats, error)
}

// Stats mirrors lumora.Stats; duplicated here (rather than imported) to keep
// this package import-cycle-free relative to the root package.
type Stats struct {
	FilesScanned, FilesChanged, FilesUnchanged, FilesRemoved, ParseErrors int
}

// Adapter exposes every tool-surface operation as a plain method. The CLI
// and any future MCP transport both call through this type.
type Adapter struct {
	engine QueryRunner
}

// QueryRunner is the set of operations the adapter calls. Implemented by
// *lumora.Runner, which wraps an Engine and a QueryEngine; the CLI builds
// the Adapter over one.
type QueryRunner interface {
	SymbolDefinitionsOp(selector string, opts ListOptions) (any, error)
	SymbolReferencesOp(selector string, callsOnly, dedup, topFiles bool, opts ListOptions) (any, error)
	SymbolCallersOp(selector string, dedup bool, opts ListOptions) (any, error)
	DependencyPathOp(selectorA, selectorB string, maxDepth int) (any, error)
	MinimalSliceOp(file string, line, depth, maxNeighbors int, flags SliceFlags) (any, error)
	CloneMatchesOp(file, mode string, minSimilarity float64, opts ListOptions) (any, error)
	SelectorDiscoverOp(query string, fuzzy bool, fileGlob, entityType string, opts ListOptions) (any, error)
	IndexRepositoryOp(ctx context.Context, full bool) (Stats, error)
}

// ListOptions is the paging/order/filter shape every list-producing
// operation accepts.
type ListOptions struct {
	Limit, Offset    int
	Order            string
	FileGlob         string
	Language         string
	MaxAgeHours      float64
	Verbosity        string
	IncludeFreshness bool
}

// SliceFlags carries minimal_slice's boolean knobs.
type SliceFlags struct {
	Dedup                    bool
	SuppressLowSignalRepeats bool
	LowSignalNameCap         int
	PreferProjectSymbols     bool
}

// New builds an Adapter over a QueryRunner implementation.
func New(runner QueryRunner) *Adapter { return &Adapter{engine: runner} }

func (a *Adapter) IndexRepository(ctx context.Context, mode string) (Stats, error) {
	full := mode == "full"
	return a.engine.IndexRepositoryOp(ctx, full)
}

func (a *Adapter) SymbolDefinitions(selector string, opts ListOptions) (any, error) {
	return a.engine.SymbolDefinitionsOp(selector, opts)
}

func (a *Adapter) SymbolReferences(selector string, callsOnly, dedup, topFiles bool, opts ListOptions) (any, error) {
	return a.engine.SymbolReferencesOp(selector, callsOnly, dedup, topFiles, opts)
}

func (a *Adapter) SymbolCallers(selector string, dedup bool, opts ListOptions) (any, error) {
	return a.engine.SymbolCallersOp(selector, dedup, opts)
}

func (a *Adapter) DependencyPath(selectorA, selectorB string, maxDepth int) (any, error) {
	return a.engine.DependencyPathOp(selectorA, selectorB, maxDepth)
}

func (a *Adapter) MinimalSlice(file string, line, depth, maxNeighbors int, flags SliceFlags) (any, error) {
	return a.engine.MinimalSliceOp(file, line, depth, maxNeighbors, flags)
}

func (a *Adapter) CloneMatches(file, mode string, minSimilarity float64, opts ListOptions) (any, error) {
	return a.engine.CloneMatchesOp(file, mode, minSimilarity, opts)
}

func (a *Adapter) SelectorDiscover(query string, fuzzy bool, fileGlob, entityType string, opts ListOptions) (any, error) {
	return a.engine.SelectorDiscoverOp(query, fuzzy, fileGlob, entityType, opts)
}

// OperationNames lists the tool-surface operations in the order the
// specification's table presents them.
var OperationNames = []string{
	"index_repository",
	"symbol_definitions",
	"symbol_references",
	"symbol_callers",
	"dependency_path",
	"minimal_slice",
	"clone_matches",
	"selector_discover",
}

