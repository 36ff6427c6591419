package lumora

import (
	"path/filepath"
	"sort"

	"github.com/jward/lumora/internal/store"
)

// CloneMatchesInput is the request for the clone_matches operation.
type CloneMatchesInput struct {
	File           string
	Mode           string // "matches" | "hotspots"
	MinSimilarity  float64
	List           ListInput
}

// CloneMatch is one near-duplicate pairing between the query file and
// another file.
type CloneMatch struct {
	File       *store.File
	Similarity float64
	Shared     int
}

// CloneHotspot aggregates clone similarity by directory.
type CloneHotspot struct {
	Directory       string
	PairCount       int
	AverageScore    float64
}

// CloneAnalysis reports the threshold math behind a clone_matches response.
type CloneAnalysis struct {
	CandidateFiles        int     `json:"candidate_files"`
	FilteredByThreshold   int     `json:"filtered_by_threshold"`
	SuggestedMinSimilarity float64 `json:"suggested_min_similarity,omitempty"`
}

// CloneMatchesResult is the response for the clone_matches operation.
type CloneMatchesResult struct {
	Matches  []CloneMatch
	Hotspots []CloneHotspot
	Analysis CloneAnalysis
	Total    int
	HasMore  bool
}

const defaultCloneThreshold = 0.35
const minCloneThresholdFloor = 0.1

// CloneMatches finds near-duplicate blocks involving the named file (mode
// "matches") or aggregates similarity by directory (mode "hotspots"). When
// fewer than 3 results clear the threshold, it reports the lower threshold
// that would surface 5 results, floored at 0.1.
func (e *Engine) CloneMatches(in CloneMatchesInput) (CloneMatchesResult, error) {
	f, err := e.store.FileByPath(in.File)
	if err != nil {
		return CloneMatchesResult{}, err
	}
	if f == nil {
		return CloneMatchesResult{Analysis: CloneAnalysis{}}, nil
	}

	fps, err := e.store.CloneFingerprintsByFile(f.ID)
	if err != nil {
		return CloneMatchesResult{}, err
	}
	totalA := len(fps)

	shared, err := e.store.FilesSharingFingerprints(f.ID)
	if err != nil {
		return CloneMatchesResult{}, err
	}

	type scored struct {
		fileID int64
		score  float64
		shared int
	}
	var all []scored
	for otherID, count := range shared {
		other, ferr := e.store.FileByID(otherID)
		if ferr != nil {
			return CloneMatchesResult{}, ferr
		}
		if other == nil {
			continue
		}
		otherFps, oerr := e.store.CloneFingerprintsByFile(otherID)
		if oerr != nil {
			return CloneMatchesResult{}, oerr
		}
		totalB := len(otherFps)
		denom := totalA
		if totalB > denom {
			denom = totalB
		}
		if denom == 0 {
			continue
		}
		all = append(all, scored{fileID: otherID, score: float64(count) / float64(denom), shared: count})
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].score > all[j].score })

	threshold := in.MinSimilarity
	if threshold <= 0 {
		threshold = defaultCloneThreshold
	}

	var passing []scored
	for _, s := range all {
		if s.score >= threshold {
			passing = append(passing, s)
		}
	}

	suggested := 0.0
	if len(passing) < 3 && len(all) >= 1 {
		idx := 4
		if idx >= len(all) {
			idx = len(all) - 1
		}
		suggested = all[idx].score
		if suggested < minCloneThresholdFloor {
			suggested = minCloneThresholdFloor
		}
	}

	if in.Mode == "hotspots" {
		dirTotals := make(map[string]float64)
		dirCounts := make(map[string]int)
		for _, s := range passing {
			other, _ := e.store.FileByID(s.fileID)
			if other == nil {
				continue
			}
			dir := filepath.Dir(other.Path)
			dirTotals[dir] += s.score
			dirCounts[dir]++
		}
		var hotspots []CloneHotspot
		for dir, count := range dirCounts {
			hotspots = append(hotspots, CloneHotspot{
				Directory:    dir,
				PairCount:    count,
				AverageScore: dirTotals[dir] / float64(count),
			})
		}
		sort.SliceStable(hotspots, func(i, j int) bool {
			if hotspots[i].AverageScore != hotspots[j].AverageScore {
				return hotspots[i].AverageScore > hotspots[j].AverageScore
			}
			return hotspots[i].Directory < hotspots[j].Directory
		})
		page, hasMore, _ := paginate(hotspots, in.List)
		return CloneMatchesResult{
			Hotspots: page,
			Analysis: CloneAnalysis{CandidateFiles: len(all), FilteredByThreshold: len(all) - len(passing), SuggestedMinSimilarity: suggested},
			Total:    len(hotspots),
			HasMore:  hasMore,
		}, nil
	}

	var matches []CloneMatch
	for _, s := range passing {
		other, _ := e.store.FileByID(s.fileID)
		if other == nil {
			continue
		}
		matches = append(matches, CloneMatch{File: other, Similarity: s.score, Shared: s.shared})
	}
	page, hasMore, _ := paginate(matches, in.List)
	return CloneMatchesResult{
		Matches:  page,
		Analysis: CloneAnalysis{CandidateFiles: len(all), FilteredByThreshold: len(all) - len(passing), SuggestedMinSimilarity: suggested},
		Total:    len(matches),
		HasMore:  hasMore,
	}, nil
}
