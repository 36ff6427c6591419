package lumora

import (
	"sort"
	"strings"
)

// SelectorDiscoverInput is the request for the selector_discover operation.
type SelectorDiscoverInput struct {
	Query      string
	Fuzzy      bool
	FileGlob   string
	EntityType string
	List       ListInput
}

// SelectorCandidate is one ranked suggestion returned by selector_discover.
type SelectorCandidate struct {
	Selector    string
	Score       float64
	Explanation string
}

// matchRank classifies how a candidate name matched the query, best first.
type matchRank int

const (
	rankExact matchRank = iota
	rankPrefix
	rankSubstring
	rankSubsequence
	rankNone
)

func rankName(query, name string, fuzzy bool) (matchRank, string) {
	q := strings.ToLower(query)
	n := strings.ToLower(name)
	switch {
	case n == q:
		return rankExact, "exact match"
	case strings.HasPrefix(n, q):
		return rankPrefix, "prefix match"
	case strings.Contains(n, q):
		return rankSubstring, "substring match"
	}
	if fuzzy && isSubsequence(q, n) {
		return rankSubsequence, "fuzzy subsequence match"
	}
	return rankNone, ""
}

func isSubsequence(q, n string) bool {
	if q == "" {
		return true
	}
	qi := 0
	for i := 0; i < len(n) && qi < len(q); i++ {
		if n[i] == q[qi] {
			qi++
		}
	}
	return qi == len(q)
}

// SelectorDiscover ranks candidate selectors against a partial name: exact
// matches first, then prefix, then substring, then (when fuzzy) subsequence
// matches, tie-broken by project-locality and then by ascending definition
// count (names with fewer definitions are less ambiguous to pick).
func (q *QueryEngine) SelectorDiscover(in SelectorDiscoverInput) (ListResult[SelectorCandidate], error) {
	fuzzy := in.Fuzzy

	rows, err := q.store.DB().Query("SELECT id, file_id, name, kind, qualified_name FROM entities")
	if err != nil {
		return ListResult[SelectorCandidate]{}, err
	}
	defer rows.Close()

	type cand struct {
		name     string
		kind     string
		qualName string
		fileID   int64
	}
	var all []cand
	for rows.Next() {
		var c cand
		var id int64
		if err := rows.Scan(&id, &c.fileID, &c.name, &c.kind, &c.qualName); err != nil {
			return ListResult[SelectorCandidate]{}, err
		}
		all = append(all, c)
	}
	if err := rows.Err(); err != nil {
		return ListResult[SelectorCandidate]{}, err
	}

	nameCounts := make(map[string]int)
	for _, c := range all {
		nameCounts[c.name]++
	}

	type ranked struct {
		cand
		rank        matchRank
		explanation string
	}
	var matched []ranked
	seen := make(map[string]bool)
	for _, c := range all {
		if in.EntityType != "" && c.kind != in.EntityType {
			continue
		}
		if seen[c.name+"|"+c.kind] {
			continue
		}
		r, explanation := rankName(in.Query, c.name, fuzzy)
		if r == rankNone {
			continue
		}
		if in.FileGlob != "" {
			f, ferr := q.store.FileByID(c.fileID)
			if ferr != nil {
				return ListResult[SelectorCandidate]{}, ferr
			}
			if !q.matchesFilters(f, ListInput{FileGlob: in.FileGlob}) {
				continue
			}
		}
		seen[c.name+"|"+c.kind] = true
		matched = append(matched, ranked{cand: c, rank: r, explanation: explanation})
	}

	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].rank != matched[j].rank {
			return matched[i].rank < matched[j].rank
		}
		fi, _ := q.store.FileByID(matched[i].fileID)
		fj, _ := q.store.FileByID(matched[j].fileID)
		li := fi != nil && !isVendoredPath(fi.Path)
		lj := fj != nil && !isVendoredPath(fj.Path)
		if li != lj {
			return li
		}
		return nameCounts[matched[i].name] < nameCounts[matched[j].name]
	})

	var items []SelectorCandidate
	for _, m := range matched {
		score := 1.0
		switch m.rank {
		case rankPrefix:
			score = 0.8
		case rankSubstring:
			score = 0.6
		case rankSubsequence:
			score = 0.4
		}
		items = append(items, SelectorCandidate{
			Selector:    "symbol:" + m.name,
			Score:       score,
			Explanation: m.explanation,
		})
	}

	page, hasMore, next := paginate(items, in.List)
	return ListResult[SelectorCandidate]{Items: page, Total: len(items), HasMore: hasMore, NextOffset: next}, nil
}
