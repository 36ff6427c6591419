package lumora

import (
	"context"

	"github.com/jward/lumora/internal/tool"
)

// Runner adapts an Engine/QueryEngine pair to tool.QueryRunner, giving the
// Tool Surface Adapter a concrete implementation without that package ever
// importing the root package (which would cycle back through here).
type Runner struct {
	engine *Engine
	query  *QueryEngine
}

// NewRunner builds a Runner over an already-open Engine, deriving its
// QueryEngine from the same Store and root.
func NewRunner(e *Engine) *Runner {
	return &Runner{engine: e, query: NewQueryEngine(e.Store(), e.root)}
}

func toListInput(opts tool.ListOptions) ListInput {
	return ListInput{
		Limit:            opts.Limit,
		Offset:           opts.Offset,
		Order:            Order(opts.Order),
		FileGlob:         opts.FileGlob,
		Language:         opts.Language,
		MaxAgeHours:      opts.MaxAgeHours,
		Verbosity:        Verbosity(opts.Verbosity),
		IncludeFreshness: opts.IncludeFreshness,
	}
}

func (r *Runner) IndexRepositoryOp(ctx context.Context, full bool) (tool.Stats, error) {
	stats, err := r.engine.IndexDirectory(ctx, full)
	if err != nil {
		return tool.Stats{}, err
	}
	return tool.Stats{
		FilesScanned:   stats.FilesScanned,
		FilesChanged:   stats.FilesChanged,
		FilesUnchanged: stats.FilesUnchanged,
		FilesRemoved:   stats.FilesRemoved,
		ParseErrors:    stats.ParseErrors,
	}, nil
}

func (r *Runner) SymbolDefinitionsOp(selector string, opts tool.ListOptions) (any, error) {
	return r.query.SymbolDefinitions(SymbolDefinitionsInput{Selector: selector, List: toListInput(opts)})
}

func (r *Runner) SymbolReferencesOp(selector string, callsOnly, dedup, topFiles bool, opts tool.ListOptions) (any, error) {
	return r.query.SymbolReferences(SymbolReferencesInput{
		Selector:  selector,
		CallsOnly: callsOnly,
		Dedup:     dedup,
		TopFiles:  topFiles,
		List:      toListInput(opts),
	})
}

func (r *Runner) SymbolCallersOp(selector string, dedup bool, opts tool.ListOptions) (any, error) {
	return r.query.SymbolCallers(SymbolCallersInput{Selector: selector, Dedup: dedup, List: toListInput(opts)})
}

func (r *Runner) DependencyPathOp(selectorA, selectorB string, maxDepth int) (any, error) {
	return r.engine.DependencyPath(DependencyPathInput{SelectorA: selectorA, SelectorB: selectorB, MaxDepth: maxDepth})
}

func (r *Runner) MinimalSliceOp(file string, line, depth, maxNeighbors int, flags tool.SliceFlags) (any, error) {
	return r.engine.MinimalSlice(MinimalSliceInput{
		File:                     file,
		Line:                     line,
		Depth:                    depth,
		MaxNeighbors:             maxNeighbors,
		Dedup:                    flags.Dedup,
		SuppressLowSignalRepeats: flags.SuppressLowSignalRepeats,
		LowSignalNameCap:         flags.LowSignalNameCap,
		PreferProjectSymbols:     flags.PreferProjectSymbols,
	})
}

func (r *Runner) CloneMatchesOp(file, mode string, minSimilarity float64, opts tool.ListOptions) (any, error) {
	return r.engine.CloneMatches(CloneMatchesInput{File: file, Mode: mode, MinSimilarity: minSimilarity, List: toListInput(opts)})
}

func (r *Runner) SelectorDiscoverOp(query string, fuzzy bool, fileGlob, entityType string, opts tool.ListOptions) (any, error) {
	return r.query.SelectorDiscover(SelectorDiscoverInput{
		Query:      query,
		Fuzzy:      fuzzy,
		FileGlob:   fileGlob,
		EntityType: entityType,
		List:       toListInput(opts),
	})
}
