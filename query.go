package lumora

import (
	"sort"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/jward/lumora/internal/store"
)

// Order is the sort order requested for a list query.
type Order string

const (
	OrderScoreDesc Order = "score_desc"
	OrderLineAsc   Order = "line_asc"
	OrderLineDesc  Order = "line_desc"
)

// Verbosity controls how much detail a list query includes per item.
type Verbosity string

const (
	VerbosityCompact Verbosity = "compact"
	VerbosityNormal  Verbosity = "normal"
	VerbosityDebug   Verbosity = "debug"
)

// ListInput is the shared input shape for every query-engine list endpoint.
type ListInput struct {
	Limit            int
	Offset           int
	Order            Order
	FileGlob         string
	Language         string
	MaxAgeHours      float64
	Verbosity        Verbosity
	IncludeFreshness bool
}

func (in ListInput) limitOrDefault() int {
	if in.Limit <= 0 {
		return 50
	}
	return in.Limit
}

// Diagnostics reports unresolved counts and filters applied to a query, so a
// caller can tell an empty result from a filtered-out one.
type Diagnostics struct {
	UnresolvedCount int      `json:"unresolved_count,omitempty"`
	FiltersApplied  []string `json:"filters_applied,omitempty"`
	Reason          string   `json:"reason,omitempty"`
}

// ListResult is the shared output envelope for every list endpoint.
type ListResult[T any] struct {
	Items       []T               `json:"items"`
	Total       int               `json:"total"`
	HasMore     bool              `json:"has_more"`
	NextOffset  int               `json:"next_offset,omitempty"`
	Freshness   map[string]string `json:"freshness,omitempty"`
	Diagnostics *Diagnostics      `json:"diagnostics,omitempty"`
}

// QueryEngine answers read-only queries over a Store. It never mutates
// state; callers that also need to index should use Engine directly.
type QueryEngine struct {
	store *store.Store
	root  string
}

// NewQueryEngine builds a QueryEngine over an already-open Store.
func NewQueryEngine(s *store.Store, root string) *QueryEngine {
	return &QueryEngine{store: s, root: root}
}

func (q *QueryEngine) Store() *store.Store { return q.store }

// matchesFilters applies file_glob, language, and max_age_hours filters to a
// candidate file. A nil file never matches.
func (q *QueryEngine) matchesFilters(f *store.File, in ListInput) bool {
	if f == nil {
		return false
	}
	if in.FileGlob != "" {
		ok, err := doublestar.Match(in.FileGlob, f.Path)
		if err != nil || !ok {
			return false
		}
	}
	if in.Language != "" && f.Language != in.Language {
		return false
	}
	if in.MaxAgeHours > 0 {
		age := time.Since(f.IndexedAt).Hours()
		if age > in.MaxAgeHours {
			return false
		}
	}
	return true
}

// paginate slices a fully-ordered slice into one page and reports whether
// more results follow.
func paginate[T any](items []T, in ListInput) ([]T, bool, int) {
	limit := in.limitOrDefault()
	offset := in.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil, false, 0
	}
	end := offset + limit
	hasMore := end < len(items)
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end], hasMore, end
}

func sortByLine[T any](items []T, line func(T) int, desc bool) {
	sort.SliceStable(items, func(i, j int) bool {
		if desc {
			return line(items[i]) > line(items[j])
		}
		return line(items[i]) < line(items[j])
	})
}

func buildFreshness(q *QueryEngine, fileIDs []int64) map[string]string {
	out := make(map[string]string, len(fileIDs))
	seen := make(map[int64]bool)
	for _, id := range fileIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		f, err := q.store.FileByID(id)
		if err != nil || f == nil {
			continue
		}
		out[f.Path] = f.IndexedAt.UTC().Format(time.RFC3339)
	}
	return out
}
