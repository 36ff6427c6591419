package lumora

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/lumora/internal/store"
)

func TestDependencyPath_FindsDirectHop(t *testing.T) {
	t.Parallel()
	e, root := newTestEngine(t)
	writeSource(t, root, "util/util.go", "package util\n\nfunc Shared() {}\n")
	writeSource(t, root, "main.go", `package main

import "util"

func main() {
	util.Shared()
}
`)
	_, err := e.IndexDirectory(context.Background(), false)
	require.NoError(t, err)

	res, err := e.DependencyPath(DependencyPathInput{SelectorA: "file:main.go", SelectorB: "file:util/util.go"})
	require.NoError(t, err)
	require.Len(t, res.Path, 2)
	assert.Equal(t, "main.go", res.Path[0].Path)
	assert.Equal(t, "util/util.go", res.Path[1].Path)
	require.Len(t, res.Hops, 1)
}

func TestDependencyPath_UnresolvedSelectorReportsDiagnostic(t *testing.T) {
	t.Parallel()
	e, root := newTestEngine(t)
	writeSource(t, root, "main.go", "package main\n\nfunc main() {}\n")
	_, err := e.IndexDirectory(context.Background(), false)
	require.NoError(t, err)

	res, err := e.DependencyPath(DependencyPathInput{SelectorA: "file:main.go", SelectorB: "file:nope.go"})
	require.NoError(t, err)
	require.NotNil(t, res.Diagnostics)
	assert.Equal(t, "selector_unresolved", res.Diagnostics.Reason)
}

func TestDependencyPath_NoPathWithinMaxDepth(t *testing.T) {
	t.Parallel()
	e, root := newTestEngine(t)
	writeSource(t, root, "a.go", "package a\n\nfunc A() {}\n")
	writeSource(t, root, "b.go", "package b\n\nfunc B() {}\n")
	_, err := e.IndexDirectory(context.Background(), false)
	require.NoError(t, err)

	res, err := e.DependencyPath(DependencyPathInput{SelectorA: "file:a.go", SelectorB: "file:b.go"})
	require.NoError(t, err)
	require.NotNil(t, res.Diagnostics)
	assert.Equal(t, "no_path_within_max_depth", res.Diagnostics.Reason)
}

func TestMinimalSlice_FindsAnchorAndCallees(t *testing.T) {
	t.Parallel()
	e, root := newTestEngine(t)
	writeSource(t, root, "util/util.go", "package util\n\nfunc Shared() {}\n")
	writeSource(t, root, "main.go", `package main

import "util"

func main() {
	util.Shared()
}
`)
	_, err := e.IndexDirectory(context.Background(), false)
	require.NoError(t, err)

	f, err := e.Store().FileByPath("main.go")
	require.NoError(t, err)
	mainEnt, err := e.Store().EntitiesByName("main")
	require.NoError(t, err)
	require.NotEmpty(t, mainEnt)

	res, err := e.MinimalSlice(MinimalSliceInput{File: "main.go", Line: mainEnt[0].StartLine, Depth: 2})
	require.NoError(t, err)
	require.NotNil(t, res.Anchor)
	assert.Equal(t, "main", res.Anchor.Name)
	assert.Equal(t, f.ID, res.Anchor.FileID)
	require.NotEmpty(t, res.Callees)
	assert.Equal(t, "Shared", res.Callees[0].Entity.Name)
}

func TestMinimalSlice_UnknownFileReturnsUnresolvedDiagnostic(t *testing.T) {
	t.Parallel()
	e, _ := newTestEngine(t)

	res, err := e.MinimalSlice(MinimalSliceInput{File: "nope.go", Line: 1})
	require.NoError(t, err)
	require.NotNil(t, res.Diagnostics)
	assert.Equal(t, "selector_unresolved", res.Diagnostics.Reason)
}

func TestMinimalSlice_NoEnclosingEntityLeavesAnchorNil(t *testing.T) {
	t.Parallel()
	e, root := newTestEngine(t)
	writeSource(t, root, "empty.go", "package empty\n")
	_, err := e.IndexDirectory(context.Background(), false)
	require.NoError(t, err)

	res, err := e.MinimalSlice(MinimalSliceInput{File: "empty.go", Line: 1})
	require.NoError(t, err)
	assert.Nil(t, res.Anchor)
}

// TestMinimalSlice_LowSignalNameCapAppliesByDefault covers spec.md §8
// scenario 6: a function that calls a ubiquitous helper name 200 times
// should surface at most low_signal_name_cap occurrences of that name, even
// when suppress_low_signal_repeats is left false. The cap is not gated on
// that flag; only the -2 score penalty and the vendored-path tail push are.
func TestMinimalSlice_LowSignalNameCapAppliesByDefault(t *testing.T) {
	t.Parallel()
	e, root := newTestEngine(t)
	writeSource(t, root, "main.go", "package main\n\nfunc main() {}\n")
	_, err := e.IndexDirectory(context.Background(), false)
	require.NoError(t, err)

	mainFile, err := e.Store().FileByPath("main.go")
	require.NoError(t, err)
	mainEnt, err := e.Store().EntitiesByName("main")
	require.NoError(t, err)
	require.NotEmpty(t, mainEnt)

	// Simulate 200 distinct "log" helper definitions, each reachable as a
	// callee of main, the way 200 separate local loggers across a large
	// repository would appear as 200 distinct same-named entities.
	const helperCount = 200
	for i := 0; i < helperCount; i++ {
		entID, ierr := e.Store().InsertEntity(&store.Entity{
			FileID: mainFile.ID, Name: "log", Kind: "function", StartLine: 10 + i, StartCol: 1, EndLine: 10 + i,
		})
		require.NoError(t, ierr)
		_, cerr := e.Store().InsertCallEdge(&store.CallEdge{
			CallerEntityID: mainEnt[0].ID, CalleeName: "log", CalleeEntityID: &entID, FileID: mainFile.ID, Line: 3,
		})
		require.NoError(t, cerr)
	}

	res, err := e.MinimalSlice(MinimalSliceInput{File: "main.go", Line: mainEnt[0].StartLine, Depth: 1, LowSignalNameCap: 1})
	require.NoError(t, err)

	logCount := 0
	for _, n := range res.Callees {
		if n.Entity.Name == "log" {
			logCount++
		}
	}
	assert.LessOrEqual(t, logCount, 1, "low_signal_name_cap=1 should cap \"log\" occurrences even with suppress_low_signal_repeats left false")
	assert.Equal(t, helperCount-1, res.Summary["truncated_callees"])
}

// TestMinimalSlice_PreferProjectSymbolsPushesVendoredToTail covers the
// additional effect prefer_project_symbols has beyond the unconditional
// project-local score bonus: entities outside the project root are pushed
// to the tail of the sorted list even when their score would otherwise
// place them ahead of a heavily-suppressed project-local entity.
func TestMinimalSlice_PreferProjectSymbolsPushesVendoredToTail(t *testing.T) {
	t.Parallel()
	e, root := newTestEngine(t)
	writeSource(t, root, "main.go", "package main\n\nfunc main() {}\n")
	_, err := e.IndexDirectory(context.Background(), false)
	require.NoError(t, err)

	mainFile, err := e.Store().FileByPath("main.go")
	require.NoError(t, err)
	mainEnt, err := e.Store().EntitiesByName("main")
	require.NoError(t, err)
	require.NotEmpty(t, mainEnt)

	vendoredFileID, _, err := e.Store().UpsertFile(&store.File{Path: "vendor/pkg/pkg.go", Language: "go", ContentHash: "v", ParseOK: true})
	require.NoError(t, err)
	localFileID, _, err := e.Store().UpsertFile(&store.File{Path: "internal/helper.go", Language: "go", ContentHash: "h", ParseOK: true})
	require.NoError(t, err)

	vendoredEntID, err := e.Store().InsertEntity(&store.Entity{FileID: vendoredFileID, Name: "vendoredHelper", Kind: "function", StartLine: 1, StartCol: 1, EndLine: 1})
	require.NoError(t, err)
	_, err = e.Store().InsertCallEdge(&store.CallEdge{CallerEntityID: mainEnt[0].ID, CalleeName: "vendoredHelper", CalleeEntityID: &vendoredEntID, FileID: mainFile.ID, Line: 3})
	require.NoError(t, err)

	// Three distinct local entities sharing the name "localHelper" so the
	// suppress_low_signal_repeats penalty (-2 per repeat after the first)
	// drags the third occurrence's score below the vendored entity's score.
	for i := 0; i < 3; i++ {
		entID, ierr := e.Store().InsertEntity(&store.Entity{FileID: localFileID, Name: "localHelper", Kind: "function", StartLine: 1 + i, StartCol: 1, EndLine: 1 + i})
		require.NoError(t, ierr)
		_, cerr := e.Store().InsertCallEdge(&store.CallEdge{CallerEntityID: mainEnt[0].ID, CalleeName: "localHelper", CalleeEntityID: &entID, FileID: mainFile.ID, Line: 3})
		require.NoError(t, cerr)
	}

	in := MinimalSliceInput{
		File: "main.go", Line: mainEnt[0].StartLine, Depth: 1,
		SuppressLowSignalRepeats: true, LowSignalNameCap: 5,
	}

	withoutPreference, err := e.MinimalSlice(in)
	require.NoError(t, err)
	require.Len(t, withoutPreference.Callees, 4)
	assert.NotEqual(t, "vendoredHelper", withoutPreference.Callees[len(withoutPreference.Callees)-1].Entity.Name,
		"plain score order should not already put the vendored entity last")

	in.PreferProjectSymbols = true
	withPreference, err := e.MinimalSlice(in)
	require.NoError(t, err)
	require.Len(t, withPreference.Callees, 4)
	assert.Equal(t, "vendoredHelper", withPreference.Callees[len(withPreference.Callees)-1].Entity.Name,
		"prefer_project_symbols should push the vendored entity to the tail regardless of its score")
}

func TestIsVendoredPath(t *testing.T) {
	t.Parallel()
	assert.True(t, isVendoredPath("vendor/foo/bar.go"))
	assert.True(t, isVendoredPath("frontend/node_modules/pkg/index.js"))
	assert.False(t, isVendoredPath("internal/store/store.go"))
}
