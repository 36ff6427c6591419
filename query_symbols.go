package lumora

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jward/lumora/internal/store"
)

// SymbolDefinitionsInput is the request for the symbol_definitions operation.
type SymbolDefinitionsInput struct {
	Selector string
	List     ListInput
}

// SymbolDefinitions resolves a selector to the Entities declared under that
// name or qualified name, ranked exact-match first then by qualified-name
// length ascending (shorter, more specific paths first).
func (q *QueryEngine) SymbolDefinitions(in SymbolDefinitionsInput) (ListResult[*store.Entity], error) {
	sel := ParseSelector(in.Selector)
	var ents []*store.Entity
	var err error
	switch sel.Kind {
	case SelectorFile:
		f, ferr := q.store.FileByPath(sel.Path)
		if ferr != nil {
			return ListResult[*store.Entity]{}, ferr
		}
		if f == nil {
			return ListResult[*store.Entity]{Diagnostics: &Diagnostics{Reason: "selector_unresolved"}}, nil
		}
		ents, err = q.store.EntitiesByFile(f.ID)
	default:
		ents, err = q.store.EntitiesByName(sel.Name)
		if err == nil && len(ents) == 0 {
			ents, err = q.entitiesByQualifiedName(sel.Name)
		}
	}
	if err != nil {
		return ListResult[*store.Entity]{}, fmt.Errorf("symbol definitions: %w", err)
	}

	var filtered []*store.Entity
	for _, ent := range ents {
		f, ferr := q.store.FileByID(ent.FileID)
		if ferr != nil {
			return ListResult[*store.Entity]{}, ferr
		}
		if q.matchesFilters(f, in.List) {
			filtered = append(filtered, ent)
		}
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		switch in.List.Order {
		case OrderLineAsc:
			return filtered[i].StartLine < filtered[j].StartLine
		case OrderLineDesc:
			return filtered[i].StartLine > filtered[j].StartLine
		default:
			ei, ej := filtered[i], filtered[j]
			exactI := strings.EqualFold(ei.Name, sel.Name) && ei.Name == sel.Name
			exactJ := strings.EqualFold(ej.Name, sel.Name) && ej.Name == sel.Name
			if exactI != exactJ {
				return exactI
			}
			return len(ei.QualifiedName) < len(ej.QualifiedName)
		}
	})

	page, hasMore, next := paginate(filtered, in.List)
	res := ListResult[*store.Entity]{Items: page, Total: len(filtered), HasMore: hasMore, NextOffset: next}
	if in.List.IncludeFreshness {
		fileIDs := make([]int64, len(page))
		for i, e := range page {
			fileIDs[i] = e.FileID
		}
		res.Freshness = buildFreshness(q, fileIDs)
	}
	return res, nil
}

func (q *QueryEngine) entitiesByQualifiedName(name string) ([]*store.Entity, error) {
	rows, err := q.store.DB().Query("SELECT id, file_id, name, kind, qualified_name, visibility, start_line, start_col, end_line, end_col, signature_excerpt, signature_hash, parent_entity_id FROM entities WHERE qualified_name = ?", name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*store.Entity
	for rows.Next() {
		e := &store.Entity{}
		if err := rows.Scan(&e.ID, &e.FileID, &e.Name, &e.Kind, &e.QualifiedName, &e.Visibility,
			&e.StartLine, &e.StartCol, &e.EndLine, &e.EndCol, &e.SignatureExcerpt, &e.SignatureHash, &e.ParentEntityID); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// SymbolReferencesInput is the request for the symbol_references operation.
type SymbolReferencesInput struct {
	Selector  string
	CallsOnly bool
	Dedup     bool
	TopFiles  bool
	List      ListInput
}

// ReferenceItem pairs a Reference with its owning file path for display.
type ReferenceItem struct {
	Reference *store.Reference
	FilePath  string
}

// FileCount is one row of a top_files summary.
type FileCount struct {
	FilePath string `json:"file_path"`
	Count    int    `json:"count"`
}

// SymbolReferencesResult extends the shared list envelope with a top_files
// summary, present only when requested.
type SymbolReferencesResult struct {
	ListResult[ReferenceItem]
	TopFiles []FileCount `json:"top_files,omitempty"`
}

// SymbolReferences returns References whose target_name equals the
// selector's name, resolved or not; results are not narrowed to the
// references resolved to the selector's own entity. Unresolved matches are
// counted in Diagnostics.
func (q *QueryEngine) SymbolReferences(in SymbolReferencesInput) (SymbolReferencesResult, error) {
	sel := ParseSelector(in.Selector)
	name := sel.Name
	if sel.Kind == SelectorFile {
		return SymbolReferencesResult{}, fmt.Errorf("symbol references: selector must name a symbol, not a file")
	}

	refs, err := q.store.ReferencesByTargetName(name)
	if err != nil {
		return SymbolReferencesResult{}, fmt.Errorf("symbol references: %w", err)
	}

	var items []ReferenceItem
	var unresolved int
	for _, r := range refs {
		if in.CallsOnly && !r.IsCall {
			continue
		}
		if r.TargetEntityID == nil {
			unresolved++
		}
		f, ferr := q.store.FileByID(r.FileID)
		if ferr != nil {
			return SymbolReferencesResult{}, ferr
		}
		if !q.matchesFilters(f, in.List) {
			continue
		}
		items = append(items, ReferenceItem{Reference: r, FilePath: f.Path})
	}

	sortByLine(items, func(it ReferenceItem) int { return it.Reference.Line }, in.List.Order == OrderLineDesc)

	if in.Dedup {
		seen := make(map[string]bool)
		var deduped []ReferenceItem
		for _, it := range items {
			key := fmt.Sprintf("%d:%d", it.Reference.FileID, it.Reference.Line)
			if seen[key] {
				continue
			}
			seen[key] = true
			deduped = append(deduped, it)
		}
		items = deduped
	}

	var topFiles []FileCount
	if in.TopFiles {
		counts := make(map[string]int)
		for _, it := range items {
			counts[it.FilePath]++
		}
		for path, c := range counts {
			topFiles = append(topFiles, FileCount{FilePath: path, Count: c})
		}
		sort.SliceStable(topFiles, func(i, j int) bool {
			if topFiles[i].Count != topFiles[j].Count {
				return topFiles[i].Count > topFiles[j].Count
			}
			return topFiles[i].FilePath < topFiles[j].FilePath
		})
	}

	page, hasMore, next := paginate(items, in.List)
	res := SymbolReferencesResult{
		ListResult: ListResult[ReferenceItem]{Items: page, Total: len(items), HasMore: hasMore, NextOffset: next},
		TopFiles:   topFiles,
	}
	if unresolved > 0 {
		res.Diagnostics = &Diagnostics{UnresolvedCount: unresolved}
	}
	if in.List.IncludeFreshness {
		fileIDs := make([]int64, len(page))
		for i, it := range page {
			fileIDs[i] = it.Reference.FileID
		}
		res.Freshness = buildFreshness(q, fileIDs)
	}
	return res, nil
}

// SymbolCallersInput is the request for the symbol_callers operation.
type SymbolCallersInput struct {
	Selector string
	Dedup    bool
	List     ListInput
}

// CallerItem pairs a CallEdge with the caller entity and file path.
type CallerItem struct {
	Edge     *store.CallEdge
	Caller   *store.Entity
	FilePath string
}

// SymbolCallers returns CallEdges whose callee matches the selector, by
// resolved entity when possible and by name otherwise.
func (q *QueryEngine) SymbolCallers(in SymbolCallersInput) (ListResult[CallerItem], error) {
	sel := ParseSelector(in.Selector)
	if sel.Kind == SelectorFile {
		return ListResult[CallerItem]{}, fmt.Errorf("symbol callers: selector must name a symbol, not a file")
	}

	ents, err := q.entitiesForSelectorQ(sel)
	if err != nil {
		return ListResult[CallerItem]{}, fmt.Errorf("symbol callers: %w", err)
	}

	var edges []*store.CallEdge
	var unresolved int
	if len(ents) > 0 {
		for _, ent := range ents {
			byEntity, eerr := q.store.CallersByCallee(ent.ID)
			if eerr != nil {
				return ListResult[CallerItem]{}, eerr
			}
			edges = append(edges, byEntity...)
		}
	} else {
		byName, nerr := q.store.CallersByCalleeName(sel.Name)
		if nerr != nil {
			return ListResult[CallerItem]{}, nerr
		}
		unresolved = len(byName)
		edges = byName
	}

	var items []CallerItem
	for _, edge := range edges {
		caller, cerr := q.store.EntityByID(edge.CallerEntityID)
		if cerr != nil {
			return ListResult[CallerItem]{}, cerr
		}
		f, ferr := q.store.FileByID(edge.FileID)
		if ferr != nil {
			return ListResult[CallerItem]{}, ferr
		}
		if !q.matchesFilters(f, in.List) {
			continue
		}
		items = append(items, CallerItem{Edge: edge, Caller: caller, FilePath: f.Path})
	}

	sortByLine(items, func(it CallerItem) int { return it.Edge.Line }, in.List.Order == OrderLineDesc)

	if in.Dedup {
		seen := make(map[string]bool)
		var deduped []CallerItem
		for _, it := range items {
			key := fmt.Sprintf("%d:%d", it.Edge.FileID, it.Edge.Line)
			if seen[key] {
				continue
			}
			seen[key] = true
			deduped = append(deduped, it)
		}
		items = deduped
	}

	page, hasMore, next := paginate(items, in.List)
	res := ListResult[CallerItem]{Items: page, Total: len(items), HasMore: hasMore, NextOffset: next}
	if unresolved > 0 {
		res.Diagnostics = &Diagnostics{UnresolvedCount: unresolved}
	}
	return res, nil
}

func (q *QueryEngine) entitiesForSelectorQ(sel Selector) ([]*store.Entity, error) {
	ents, err := q.store.EntitiesByName(sel.Name)
	if err != nil {
		return nil, err
	}
	if sel.Kind == SelectorSymbolName && sel.Language != "" {
		var filtered []*store.Entity
		for _, ent := range ents {
			f, ferr := q.store.FileByID(ent.FileID)
			if ferr != nil {
				return nil, ferr
			}
			if f != nil && f.Language == sel.Language {
				filtered = append(filtered, ent)
			}
		}
		return filtered, nil
	}
	return ents, nil
}
