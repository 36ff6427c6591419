package lumora

import (
	"sort"
	"strings"

	"github.com/jward/lumora/internal/store"
)

// DependencyPathInput is the request for the dependency_path operation.
type DependencyPathInput struct {
	SelectorA string
	SelectorB string
	MaxDepth  int
}

// PathHop is one edge in a returned dependency path.
type PathHop struct {
	From  *store.File
	To    *store.File
	Kinds []string
}

// DependencyPathResult is the response for the dependency_path operation.
type DependencyPathResult struct {
	Path        []*store.File
	Hops        []PathHop
	Diagnostics *Diagnostics
}

// DependencyPath resolves two selectors to file sets and finds the shortest
// path between them over FileDep edges. The breadth-first search expands
// forward from A's files only; it does not also search backward from B's
// files. Ties are broken by preferring the
// path whose first diverging node has the lexicographically smaller file
// path; this falls out of expanding each BFS frontier in path-sorted order
// and keeping only the first parent recorded for a node.
func (e *Engine) DependencyPath(in DependencyPathInput) (DependencyPathResult, error) {
	maxDepth := in.MaxDepth
	if maxDepth <= 0 {
		maxDepth = 10
	}

	filesA, err := e.ResolveFiles(ParseSelector(in.SelectorA))
	if err != nil {
		return DependencyPathResult{}, err
	}
	filesB, err := e.ResolveFiles(ParseSelector(in.SelectorB))
	if err != nil {
		return DependencyPathResult{}, err
	}
	if len(filesA) == 0 || len(filesB) == 0 {
		return DependencyPathResult{Diagnostics: &Diagnostics{Reason: "selector_unresolved"}}, nil
	}

	deps, err := e.store.AllFileDeps()
	if err != nil {
		return DependencyPathResult{}, err
	}
	adj := make(map[int64][]int64)
	for _, d := range deps {
		adj[d.FromFileID] = append(adj[d.FromFileID], d.ToFileID)
	}

	byID := make(map[int64]*store.File)
	addFile := func(f *store.File) { byID[f.ID] = f }
	for _, f := range filesA {
		addFile(f)
	}
	for _, f := range filesB {
		addFile(f)
	}
	pathOf := func(id int64) string {
		if f, ok := byID[id]; ok {
			return f.Path
		}
		f, _ := e.store.FileByID(id)
		if f != nil {
			byID[id] = f
			return f.Path
		}
		return ""
	}
	sortByPath := func(ids []int64) {
		sort.Slice(ids, func(i, j int) bool { return pathOf(ids[i]) < pathOf(ids[j]) })
	}

	targets := make(map[int64]bool)
	for _, f := range filesB {
		targets[f.ID] = true
	}

	starts := make([]int64, 0, len(filesA))
	for _, f := range filesA {
		starts = append(starts, f.ID)
	}
	sortByPath(starts)

	parent := make(map[int64]int64)
	depth := make(map[int64]int)
	visited := make(map[int64]bool)
	var queue []int64
	for _, id := range starts {
		if !visited[id] {
			visited[id] = true
			depth[id] = 0
			queue = append(queue, id)
		}
	}

	var reached int64 = -1
	for len(queue) > 0 && reached == -1 {
		cur := queue[0]
		queue = queue[1:]
		if targets[cur] {
			reached = cur
			break
		}
		if depth[cur] >= maxDepth {
			continue
		}
		neighbors := append([]int64(nil), adj[cur]...)
		sortByPath(neighbors)
		for _, n := range neighbors {
			if visited[n] {
				continue
			}
			visited[n] = true
			parent[n] = cur
			depth[n] = depth[cur] + 1
			if targets[n] {
				reached = n
				break
			}
			queue = append(queue, n)
		}
	}

	if reached == -1 {
		return DependencyPathResult{Diagnostics: &Diagnostics{Reason: "no_path_within_max_depth"}}, nil
	}

	var chain []int64
	for id := reached; ; {
		chain = append([]int64{id}, chain...)
		p, ok := parent[id]
		if !ok {
			break
		}
		id = p
	}

	var files []*store.File
	var hops []PathHop
	for i, id := range chain {
		f, ferr := e.store.FileByID(id)
		if ferr != nil {
			return DependencyPathResult{}, ferr
		}
		files = append(files, f)
		if i > 0 {
			kinds, kerr := e.store.FileDepsBetween(chain[i-1], id)
			if kerr != nil {
				return DependencyPathResult{}, kerr
			}
			hops = append(hops, PathHop{From: files[i-1], To: f, Kinds: kinds})
		}
	}

	return DependencyPathResult{Path: files, Hops: hops}, nil
}

// MinimalSliceInput is the request for the minimal_slice operation.
type MinimalSliceInput struct {
	File                     string
	Line                     int
	Depth                    int
	MaxNeighbors             int
	Dedup                    bool
	SuppressLowSignalRepeats bool
	LowSignalNameCap         int
	PreferProjectSymbols     bool
}

// SliceNeighbor is one neighbor surfaced by minimal_slice, scored and
// grouped by how it relates to the anchor entity.
type SliceNeighbor struct {
	Entity   *store.Entity
	FilePath string
	Score    int
	Kind     string // "callee" | "caller" | "reference" | "import"
}

// MinimalSliceResult groups neighbors by kind with a truncation summary.
type MinimalSliceResult struct {
	Anchor      *store.Entity
	Callees     []SliceNeighbor
	Callers     []SliceNeighbor
	References  []SliceNeighbor
	Imports     []*store.Import
	Summary     map[string]int
	Diagnostics *Diagnostics
}

// MinimalSlice finds the innermost entity at (file, line) and BFS-expands
// its call, reference, and import neighborhood up to depth hops, scoring
// each neighbor and truncating each group to max_neighbors after sorting:
// project-local, resolved and same-language neighbors score higher, and
// repeats of a ubiquitous name are dropped after a cap.
func (e *Engine) MinimalSlice(in MinimalSliceInput) (MinimalSliceResult, error) {
	depth := in.Depth
	if depth <= 0 {
		depth = 2
	}
	maxNeighbors := in.MaxNeighbors
	if maxNeighbors <= 0 {
		maxNeighbors = 40
	}
	lowSignalCap := in.LowSignalNameCap
	if lowSignalCap <= 0 {
		lowSignalCap = 1
	}

	f, err := e.store.FileByPath(in.File)
	if err != nil {
		return MinimalSliceResult{}, err
	}
	if f == nil {
		return MinimalSliceResult{Diagnostics: &Diagnostics{Reason: "selector_unresolved"}}, nil
	}

	anchor, err := e.store.EntityAt(f.ID, in.Line, 0)
	if err != nil {
		return MinimalSliceResult{}, err
	}

	seenNames := make(map[string]int)
	visitedEntities := make(map[int64]bool)
	var frontier []*store.Entity
	if anchor != nil {
		frontier = []*store.Entity{anchor}
		visitedEntities[anchor.ID] = true
	}

	var callees, callers, refs []SliceNeighbor
	truncatedCallees, truncatedCallers, truncatedRefs := 0, 0, 0

	addNeighbor := func(list *[]SliceNeighbor, truncated *int, ent *store.Entity, kind string) {
		if ent == nil || visitedEntities[ent.ID] {
			return
		}
		seenNames[ent.Name]++
		// The low-signal name cap applies unconditionally: after
		// low_signal_name_cap occurrences of any name, further occurrences
		// are dropped. suppress_low_signal_repeats only adds the -2 score
		// penalty on top of that, it does not gate the cap itself.
		if seenNames[ent.Name] > lowSignalCap {
			*truncated++
			return
		}
		file, _ := e.store.FileByID(ent.FileID)
		score := 2 // +2 resolved
		if file != nil {
			if file.Language == f.Language {
				score++ // +1 same-language as the anchor's file
			}
			if !isVendoredPath(file.Path) {
				score += 3 // +3 project-local, applies regardless of prefer_project_symbols
			}
		}
		if in.SuppressLowSignalRepeats {
			score -= 2 * (seenNames[ent.Name] - 1)
		}
		fp := ""
		if file != nil {
			fp = file.Path
		}
		*list = append(*list, SliceNeighbor{Entity: ent, FilePath: fp, Score: score, Kind: kind})
	}

	for d := 0; d < depth && len(frontier) > 0; d++ {
		var next []*store.Entity
		for _, ent := range frontier {
			outEdges, oerr := e.store.CalleesByCaller(ent.ID)
			if oerr != nil {
				return MinimalSliceResult{}, oerr
			}
			for _, edge := range outEdges {
				if edge.CalleeEntityID == nil {
					continue
				}
				callee, cerr := e.store.EntityByID(*edge.CalleeEntityID)
				if cerr != nil {
					return MinimalSliceResult{}, cerr
				}
				addNeighbor(&callees, &truncatedCallees, callee, "callee")
				if callee != nil && !visitedEntities[callee.ID] {
					visitedEntities[callee.ID] = true
					next = append(next, callee)
				}
			}

			inEdges, ierr := e.store.CallersByCallee(ent.ID)
			if ierr != nil {
				return MinimalSliceResult{}, ierr
			}
			for _, edge := range inEdges {
				caller, cerr := e.store.EntityByID(edge.CallerEntityID)
				if cerr != nil {
					return MinimalSliceResult{}, cerr
				}
				addNeighbor(&callers, &truncatedCallers, caller, "caller")
				if caller != nil && !visitedEntities[caller.ID] {
					visitedEntities[caller.ID] = true
					next = append(next, caller)
				}
			}

			fileRefs, rerr := e.store.ReferencesByFile(ent.FileID)
			if rerr != nil {
				return MinimalSliceResult{}, rerr
			}
			for _, ref := range fileRefs {
				if ref.Line < ent.StartLine || ref.Line > ent.EndLine || ref.TargetEntityID == nil {
					continue
				}
				target, terr := e.store.EntityByID(*ref.TargetEntityID)
				if terr != nil {
					return MinimalSliceResult{}, terr
				}
				addNeighbor(&refs, &truncatedRefs, target, "reference")
				if target != nil && !visitedEntities[target.ID] {
					visitedEntities[target.ID] = true
					next = append(next, target)
				}
			}
		}
		frontier = next
	}

	var imports []*store.Import
	if f != nil {
		imports, err = e.store.ImportsByFile(f.ID)
		if err != nil {
			return MinimalSliceResult{}, err
		}
	}

	sortNeighbors := func(list []SliceNeighbor) []SliceNeighbor {
		sort.SliceStable(list, func(i, j int) bool {
			if in.PreferProjectSymbols {
				iVendored, jVendored := isVendoredPath(list[i].FilePath), isVendoredPath(list[j].FilePath)
				if iVendored != jVendored {
					return !iVendored
				}
			}
			return list[i].Score > list[j].Score
		})
		if len(list) > maxNeighbors {
			list = list[:maxNeighbors]
		}
		return list
	}
	callees = sortNeighbors(callees)
	callers = sortNeighbors(callers)
	refs = sortNeighbors(refs)

	return MinimalSliceResult{
		Anchor:     anchor,
		Callees:    callees,
		Callers:    callers,
		References: refs,
		Imports:    imports,
		Summary: map[string]int{
			"truncated_callees":    truncatedCallees,
			"truncated_callers":    truncatedCallers,
			"truncated_references": truncatedRefs,
		},
	}, nil
}

func isVendoredPath(path string) bool {
	return strings.Contains(path, "vendor/") || strings.Contains(path, "node_modules/")
}
