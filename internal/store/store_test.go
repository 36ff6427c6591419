package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate())
	t.Cleanup(func() { s.Close() })
	return s
}

func ptr[T any](v T) *T { return &v }

// insertTestFile inserts a file and returns it with ID populated.
func insertTestFile(t *testing.T, s *Store, path, lang string) *File {
	t.Helper()
	f := &File{
		Path:      path,
		Language:  lang,
		ParseOK:   true,
		IndexedAt: time.Now().Truncate(time.Second),
	}
	_, _, err := s.UpsertFile(f)
	require.NoError(t, err)
	require.Positive(t, f.ID)
	return f
}

// insertTestEntity inserts an entity with minimal required fields.
func insertTestEntity(t *testing.T, s *Store, fileID int64, name, kind string, startLine int) *Entity {
	t.Helper()
	e := &Entity{
		FileID:        fileID,
		Name:          name,
		Kind:          kind,
		QualifiedName: name,
		Visibility:    "public",
		StartLine:     startLine, StartCol: 0, EndLine: startLine + 2, EndCol: 0,
		SignatureHash: ComputeSignatureHash(name, kind, "public", name),
	}
	id, err := s.InsertEntity(e)
	require.NoError(t, err)
	require.Positive(t, id)
	return e
}

// =============================================================================
// Schema & Lifecycle
// =============================================================================

func TestMigrate_AllTablesExist(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	expectedTables := []string{
		"files", "entities", "entity_fragments", "scopes", "references_",
		"imports", "call_edges", "file_deps", "clone_fingerprints", "reexports",
	}

	for _, table := range expectedTables {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
		assert.Equal(t, table, name)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	require.NoError(t, s.Migrate())
	require.NoError(t, s.Migrate())
}

func TestMigrate_WALMode(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	var mode string
	err := s.db.QueryRow("PRAGMA journal_mode").Scan(&mode)
	require.NoError(t, err)
	assert.Equal(t, "wal", mode)
}

func TestMigrate_RebuildsOnSchemaVersionMismatch(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	insertTestFile(t, s, "a.go", "go")

	_, err := s.db.Exec(`UPDATE meta SET value = 'stale' WHERE key = 'schema_version'`)
	require.NoError(t, err)
	require.NoError(t, s.Migrate())

	files, err := s.AllFiles()
	require.NoError(t, err)
	assert.Empty(t, files, "rebuild on schema mismatch should drop existing data")

	var stored string
	require.NoError(t, s.db.QueryRow(`SELECT value FROM meta WHERE key = 'schema_version'`).Scan(&stored))
	assert.Equal(t, SchemaVersion, stored)
}

// =============================================================================
// File operations
// =============================================================================

func TestUpsertFile_InsertsNewRow(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := &File{Path: "main.go", Language: "go", ContentHash: "h1", Size: 42, ParseOK: true}
	id, prevHash, err := s.UpsertFile(f)
	require.NoError(t, err)
	assert.Positive(t, id)
	assert.Empty(t, prevHash)
	assert.Equal(t, id, f.ID)
}

func TestUpsertFile_UpdatesExistingRowByPath(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "main.go", "go")
	f.ContentHash = "h1"
	firstID, _, err := s.UpsertFile(f)
	require.NoError(t, err)

	updated := &File{Path: "main.go", Language: "go", ContentHash: "h2", Size: 99, ParseOK: true}
	id, prevHash, err := s.UpsertFile(updated)
	require.NoError(t, err)
	assert.Equal(t, firstID, id, "same path should reuse the existing file id")
	assert.Equal(t, "h1", prevHash)

	fetched, err := s.FileByID(id)
	require.NoError(t, err)
	assert.Equal(t, "h2", fetched.ContentHash)
	assert.Equal(t, int64(99), fetched.Size)
}

func TestFileByPath_MissingReturnsNilNoError(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f, err := s.FileByPath("nope.go")
	require.NoError(t, err)
	assert.Nil(t, f)
}

func TestAllFiles_OrderedByPath(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	insertTestFile(t, s, "z.go", "go")
	insertTestFile(t, s, "a.go", "go")
	insertTestFile(t, s, "m.go", "go")

	files, err := s.AllFiles()
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, []string{"a.go", "m.go", "z.go"}, []string{files[0].Path, files[1].Path, files[2].Path})
}

func TestDeleteFile_RemovesRow(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "gone.go", "go")
	require.NoError(t, s.DeleteFile(f.ID))

	fetched, err := s.FileByID(f.ID)
	require.NoError(t, err)
	assert.Nil(t, fetched)
}

// =============================================================================
// Entity operations
// =============================================================================

func TestInsertEntity_AndEntityByID(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "main.go", "go")
	e := insertTestEntity(t, s, f.ID, "DoThing", "function", 10)

	fetched, err := s.EntityByID(e.ID)
	require.NoError(t, err)
	require.NotNil(t, fetched)
	assert.Equal(t, "DoThing", fetched.Name)
	assert.Equal(t, "function", fetched.Kind)
}

func TestEntitiesByName_MatchesNameOrQualifiedName(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "main.go", "go")
	insertTestEntity(t, s, f.ID, "Helper", "function", 1)

	matches, err := s.EntitiesByName("Helper")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "Helper", matches[0].Name)
}

func TestEntitiesByNameInFiles_RestrictsToFileSet(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f1 := insertTestFile(t, s, "a.go", "go")
	f2 := insertTestFile(t, s, "b.go", "go")
	insertTestEntity(t, s, f1.ID, "Shared", "function", 1)
	insertTestEntity(t, s, f2.ID, "Shared", "function", 1)

	matches, err := s.EntitiesByNameInFiles("Shared", []int64{f1.ID})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, f1.ID, matches[0].FileID)
}

func TestEntitiesByNameInFiles_EmptyFileSetReturnsNil(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	matches, err := s.EntitiesByNameInFiles("Anything", nil)
	require.NoError(t, err)
	assert.Nil(t, matches)
}

func TestEntityAt_ReturnsNarrowestEnclosingEntity(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "main.go", "go")

	outer := &Entity{FileID: f.ID, Name: "Outer", Kind: "type", StartLine: 1, StartCol: 0, EndLine: 20, EndCol: 0}
	_, err := s.InsertEntity(outer)
	require.NoError(t, err)

	inner := &Entity{FileID: f.ID, Name: "Inner", Kind: "method", StartLine: 5, StartCol: 0, EndLine: 8, EndCol: 0}
	_, err = s.InsertEntity(inner)
	require.NoError(t, err)

	found, err := s.EntityAt(f.ID, 6, 2)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "Inner", found.Name, "narrowest enclosing entity should win over the wider one")
}

func TestEntityAt_NoEnclosingEntityReturnsNil(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "main.go", "go")
	insertTestEntity(t, s, f.ID, "Thing", "function", 10)

	found, err := s.EntityAt(f.ID, 1, 0)
	require.NoError(t, err)
	assert.Nil(t, found)
}

// =============================================================================
// Scope operations
// =============================================================================

func TestScopeChain_WalksToRoot(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "main.go", "go")

	root := &Scope{FileID: f.ID, Kind: "file", StartLine: 1, EndLine: 100}
	_, err := s.InsertScope(root)
	require.NoError(t, err)

	child := &Scope{FileID: f.ID, ParentScopeID: ptr(root.ID), Kind: "function", StartLine: 10, EndLine: 20}
	_, err = s.InsertScope(child)
	require.NoError(t, err)

	chain, err := s.ScopeChain(child.ID)
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.Equal(t, child.ID, chain[0].ID, "chain is innermost-first")
	assert.Equal(t, root.ID, chain[1].ID)
}

// =============================================================================
// Reference & call-edge operations
// =============================================================================

func TestReferenceAt_FindsEnclosingReference(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "main.go", "go")
	ref := &Reference{FileID: f.ID, Line: 10, Col: 2, EndLine: 10, EndCol: 8, TargetName: "Foo"}
	_, err := s.InsertReference(ref)
	require.NoError(t, err)

	found, err := s.ReferenceAt(f.ID, 10, 4)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Foo", found[0].TargetName)
}

func TestSetReferenceTarget_ResolvesAndClears(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "main.go", "go")
	target := insertTestEntity(t, s, f.ID, "Foo", "function", 1)
	ref := &Reference{FileID: f.ID, Line: 10, Col: 2, EndLine: 10, EndCol: 8, TargetName: "Foo"}
	_, err := s.InsertReference(ref)
	require.NoError(t, err)

	require.NoError(t, s.SetReferenceTarget(ref.ID, ptr(target.ID)))
	byEntity, err := s.ReferencesByTargetEntity(target.ID)
	require.NoError(t, err)
	require.Len(t, byEntity, 1)

	require.NoError(t, s.SetReferenceTarget(ref.ID, nil))
	byEntity, err = s.ReferencesByTargetEntity(target.ID)
	require.NoError(t, err)
	assert.Empty(t, byEntity)
}

func TestCallersByCallee_AndByCalleeName(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "main.go", "go")
	caller := insertTestEntity(t, s, f.ID, "Caller", "function", 1)
	callee := insertTestEntity(t, s, f.ID, "Callee", "function", 20)

	edge := &CallEdge{CallerEntityID: caller.ID, CalleeName: "Callee", CalleeEntityID: ptr(callee.ID), FileID: f.ID, Line: 5}
	_, err := s.InsertCallEdge(edge)
	require.NoError(t, err)

	byEntity, err := s.CallersByCallee(callee.ID)
	require.NoError(t, err)
	require.Len(t, byEntity, 1)
	assert.Equal(t, caller.ID, byEntity[0].CallerEntityID)

	byName, err := s.CallersByCalleeName("Callee")
	require.NoError(t, err)
	require.Len(t, byName, 1)
}

// =============================================================================
// Clone fingerprints, reexports, file deps
// =============================================================================

func TestFilesSharingFingerprints_CountsMatches(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f1 := insertTestFile(t, s, "a.go", "go")
	f2 := insertTestFile(t, s, "b.go", "go")

	for _, line := range []int{1, 10} {
		_, err := s.InsertCloneFingerprint(&CloneFingerprint{FileID: f1.ID, BlockStartLine: line, BlockEndLine: line + 5, Hash: "hash-" + string(rune('a'+line)), Weight: 5})
		require.NoError(t, err)
		_, err = s.InsertCloneFingerprint(&CloneFingerprint{FileID: f2.ID, BlockStartLine: line, BlockEndLine: line + 5, Hash: "hash-" + string(rune('a'+line)), Weight: 5})
		require.NoError(t, err)
	}

	shared, err := s.FilesSharingFingerprints(f1.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, shared[f2.ID])
}

func TestUpsertFileDep_DedupesOnConflict(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f1 := insertTestFile(t, s, "a.go", "go")
	f2 := insertTestFile(t, s, "b.go", "go")

	require.NoError(t, s.UpsertFileDep(f1.ID, f2.ID, "import"))
	require.NoError(t, s.UpsertFileDep(f1.ID, f2.ID, "import"))

	deps, err := s.AllFileDeps()
	require.NoError(t, err)
	assert.Len(t, deps, 1)
}

func TestReexportsByFileAndName(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "reexport.go", "go")
	imp := &Import{FileID: f.ID, Raw: "./inner", ResolvedPath: "inner.go"}
	_, err := s.InsertImport(imp)
	require.NoError(t, err)

	rx := &Reexport{FileID: f.ID, LocalName: "Foo", SourceImportID: imp.ID, ExportedName: "Foo"}
	_, err = s.InsertReexport(rx)
	require.NoError(t, err)

	found, err := s.ReexportsByFileAndName(f.ID, "Foo")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Foo", found[0].LocalName)
}

// =============================================================================
// ReplaceFileRecords / DeleteFileData
// =============================================================================

func TestReplaceFileRecords_InsertsAndResolvesWithinFile(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "pkg.go", "go")

	recs := &FileRecords{
		Entities: []EntityInput{
			{Name: "Outer", Kind: "function", QualifiedName: "Outer", Visibility: "public", StartLine: 1, EndLine: 10},
			{Name: "helper", Kind: "function", QualifiedName: "helper", Visibility: "private", StartLine: 12, EndLine: 14, ParentLocalIndex: ptr(0)},
		},
		Scopes: []ScopeInput{
			{Kind: "file", StartLine: 1, EndLine: 20},
		},
		References: []ReferenceInput{
			{ScopeLocalIndex: ptr(0), Line: 5, Col: 2, EndLine: 5, EndCol: 8, TargetName: "helper", IsCall: true},
		},
		Imports: []ImportInput{
			{Raw: "fmt", ResolvedPath: ""},
		},
		CallEdges: []CallEdgeInput{
			{CallerLocalIndex: 0, CalleeName: "helper", Line: 5},
		},
		Fingerprints: []FingerprintInput{
			{BlockStartLine: 1, BlockEndLine: 10, Hash: "abc", Weight: 9},
		},
		Fragments: []FragmentInput{
			{EntityLocalIndex: 0, Kind: "doc", Text: "Outer does a thing.", StartLine: 0, StartCol: 0},
		},
	}

	require.NoError(t, s.ReplaceFileRecords(f.ID, recs))

	entities, err := s.EntitiesByFile(f.ID)
	require.NoError(t, err)
	require.Len(t, entities, 2)

	var outer, helper *Entity
	for _, e := range entities {
		switch e.Name {
		case "Outer":
			outer = e
		case "helper":
			helper = e
		}
	}
	require.NotNil(t, outer)
	require.NotNil(t, helper)
	require.NotNil(t, helper.ParentEntityID)
	assert.Equal(t, outer.ID, *helper.ParentEntityID)

	refs, err := s.ReferencesByFile(f.ID)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	require.NotNil(t, refs[0].TargetEntityID)
	assert.Equal(t, helper.ID, *refs[0].TargetEntityID)

	edges, err := s.CalleesByCaller(outer.ID)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	require.NotNil(t, edges[0].CalleeEntityID)
	assert.Equal(t, helper.ID, *edges[0].CalleeEntityID)
}

func TestReplaceFileRecords_AmbiguousNameStaysUnresolved(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "dup.go", "go")

	recs := &FileRecords{
		Entities: []EntityInput{
			{Name: "Run", Kind: "function", StartLine: 1, EndLine: 2},
			{Name: "Run", Kind: "method", StartLine: 4, EndLine: 6},
		},
		References: []ReferenceInput{
			{Line: 10, Col: 0, EndLine: 10, EndCol: 3, TargetName: "Run"},
		},
	}
	require.NoError(t, s.ReplaceFileRecords(f.ID, recs))

	refs, err := s.ReferencesByFile(f.ID)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Nil(t, refs[0].TargetEntityID, "ambiguous target name should stay unresolved")
}

func TestReplaceFileRecords_WipesPreviousRecords(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "mutate.go", "go")

	first := &FileRecords{Entities: []EntityInput{{Name: "First", Kind: "function", StartLine: 1, EndLine: 2}}}
	require.NoError(t, s.ReplaceFileRecords(f.ID, first))

	second := &FileRecords{Entities: []EntityInput{{Name: "Second", Kind: "function", StartLine: 1, EndLine: 2}}}
	require.NoError(t, s.ReplaceFileRecords(f.ID, second))

	entities, err := s.EntitiesByFile(f.ID)
	require.NoError(t, err)
	require.Len(t, entities, 1)
	assert.Equal(t, "Second", entities[0].Name)
}

func TestDeleteFileData_RemovesChildRecordsButKeepsFileRow(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "main.go", "go")
	insertTestEntity(t, s, f.ID, "Thing", "function", 1)

	require.NoError(t, s.DeleteFileData(f.ID))

	entities, err := s.EntitiesByFile(f.ID)
	require.NoError(t, err)
	assert.Empty(t, entities)

	fetched, err := s.FileByID(f.ID)
	require.NoError(t, err)
	assert.NotNil(t, fetched, "DeleteFileData should not remove the file row itself")
}

// =============================================================================
// Blast radius helpers
// =============================================================================

func TestFilesReferencingEntities_CollectsFromReferencesAndCallEdges(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	defFile := insertTestFile(t, s, "def.go", "go")
	refFile := insertTestFile(t, s, "ref.go", "go")
	callFile := insertTestFile(t, s, "call.go", "go")

	target := insertTestEntity(t, s, defFile.ID, "Shared", "function", 1)

	ref := &Reference{FileID: refFile.ID, Line: 1, Col: 0, EndLine: 1, EndCol: 6, TargetName: "Shared", TargetEntityID: ptr(target.ID)}
	_, err := s.InsertReference(ref)
	require.NoError(t, err)

	callerEntity := insertTestEntity(t, s, callFile.ID, "Caller", "function", 1)
	edge := &CallEdge{CallerEntityID: callerEntity.ID, CalleeName: "Shared", CalleeEntityID: ptr(target.ID), FileID: callFile.ID, Line: 2}
	_, err = s.InsertCallEdge(edge)
	require.NoError(t, err)

	affected, err := s.FilesReferencingEntities([]int64{target.ID})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{refFile.ID, callFile.ID}, affected)
}

func TestClearResolutionForEntities_ClearsTargetsNotRows(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "main.go", "go")
	target := insertTestEntity(t, s, f.ID, "Shared", "function", 1)

	ref := &Reference{FileID: f.ID, Line: 1, Col: 0, EndLine: 1, EndCol: 6, TargetName: "Shared", TargetEntityID: ptr(target.ID)}
	_, err := s.InsertReference(ref)
	require.NoError(t, err)

	require.NoError(t, s.ClearResolutionForEntities([]int64{target.ID}))

	refs, err := s.ReferencesByFile(f.ID)
	require.NoError(t, err)
	require.Len(t, refs, 1, "clearing resolution should not delete the reference row")
	assert.Nil(t, refs[0].TargetEntityID)
}

func TestClearResolutionForFiles_ClearsDepsAndTargets(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f1 := insertTestFile(t, s, "a.go", "go")
	f2 := insertTestFile(t, s, "b.go", "go")

	require.NoError(t, s.UpsertFileDep(f1.ID, f2.ID, "import"))

	target := insertTestEntity(t, s, f2.ID, "Shared", "function", 1)
	ref := &Reference{FileID: f1.ID, Line: 1, Col: 0, EndLine: 1, EndCol: 6, TargetName: "Shared", TargetEntityID: ptr(target.ID)}
	_, err := s.InsertReference(ref)
	require.NoError(t, err)

	require.NoError(t, s.ClearResolutionForFiles([]int64{f1.ID}))

	deps, err := s.AllFileDeps()
	require.NoError(t, err)
	assert.Empty(t, deps)

	refs, err := s.ReferencesByFile(f1.ID)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Nil(t, refs[0].TargetEntityID)
}

// =============================================================================
// Signature hash
// =============================================================================

func TestComputeSignatureHash_StableAcrossCalls(t *testing.T) {
	t.Parallel()
	h1 := ComputeSignatureHash("Foo", "function", "public", "pkg.Foo")
	h2 := ComputeSignatureHash("Foo", "function", "public", "pkg.Foo")
	assert.Equal(t, h1, h2)
}

func TestComputeSignatureHash_DiffersOnKind(t *testing.T) {
	t.Parallel()
	h1 := ComputeSignatureHash("Foo", "function", "public", "pkg.Foo")
	h2 := ComputeSignatureHash("Foo", "method", "public", "pkg.Foo")
	assert.NotEqual(t, h1, h2)
}
