// Package lumora is the entry point for the local semantic code graph
// engine: it wires the Language Extractor Registry, the Content Hasher &
// File Scanner, the Graph Store, and the Indexer/resolution pipeline into
// one Engine, mirroring the teacher's own top-level package (engine.go).
package lumora

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jward/lumora/internal/clone"
	"github.com/jward/lumora/internal/extract"
	"github.com/jward/lumora/internal/scan"
	"github.com/jward/lumora/internal/store"
	"github.com/jward/lumora/internal/watcher"
)

// Engine orchestrates the whole pipeline: scan, extract, commit, resolve.
type Engine struct {
	store    *store.Store
	registry *extract.Registry
	root     string
	stateDir string

	// blastRadius accumulates file IDs that need re-resolution. nil means
	// "resolve everything" (a full reindex).
	blastRadius map[int64]bool

	// keepOnError, when set, preserves a file's prior graph records across
	// an extractor failure instead of wiping them. Default is to wipe, so
	// stale data never masks a broken file (spec default).
	keepOnError bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithStateDir overrides the directory the Scanner skips as the engine's own
// state (defaults to dbPath's parent directory).
func WithStateDir(dir string) Option {
	return func(e *Engine) { e.stateDir = dir }
}

// WithKeepOnError opts out of the default wipe-on-parse-error behavior,
// preserving a file's previously committed graph records when its extractor
// fails instead of replacing them with an empty set.
func WithKeepOnError(keep bool) Option {
	return func(e *Engine) { e.keepOnError = keep }
}

// New creates an Engine rooted at root, backed by a Graph Store at dbPath.
func New(dbPath, root string, opts ...Option) (*Engine, error) {
	s, err := store.NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("lumora: open store: %w", err)
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("lumora: migrate: %w", err)
	}

	e := &Engine{
		store:    s,
		registry: extract.NewRegistry(),
		root:     root,
		stateDir: filepath.Dir(dbPath),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Close releases the Engine's database resources.
func (e *Engine) Close() error { return e.store.Close() }

// Store returns the underlying Store for query access.
func (e *Engine) Store() *store.Store { return e.store }

// Stats summarizes one IndexDirectory run.
type Stats struct {
	FilesScanned   int
	FilesChanged   int
	FilesUnchanged int
	FilesRemoved   int
	ParseErrors    int
}

// IndexDirectory scans the repository, extracts and commits every changed
// file, removes data for files that disappeared, and resolves cross-file
// references within the accumulated blast radius. full forces every file to
// be treated as changed.
func (e *Engine) IndexDirectory(ctx context.Context, full bool) (Stats, error) {
	var stats Stats

	sc := scan.NewScanner(e.root, e.registry, e.stateDir, 0)
	found, err := sc.Scan(ctx)
	if err != nil {
		return stats, fmt.Errorf("scan: %w", err)
	}

	existing, err := e.store.AllFiles()
	if err != nil {
		return stats, fmt.Errorf("list existing files: %w", err)
	}
	existingByPath := make(map[string]*store.File, len(existing))
	for _, f := range existing {
		existingByPath[f.Path] = f
	}

	e.blastRadius = make(map[int64]bool)
	foundPaths := make(map[string]bool, len(found))

	var jobs []indexJob
	for _, f := range found {
		foundPaths[f.Path] = true
		stats.FilesScanned++
		old := existingByPath[f.Path]
		if old != nil && old.ContentHash == f.ContentHash && !full {
			stats.FilesUnchanged++
			continue
		}
		stats.FilesChanged++
		jobs = append(jobs, indexJob{file: f, old: old})
	}

	results, parseErrors := e.extractParallel(ctx, jobs)
	stats.ParseErrors += parseErrors

	for _, res := range results {
		if res == nil {
			continue
		}
		if err := e.commitFile(res); err != nil {
			stats.ParseErrors++
			continue
		}
		for fid := range res.blast {
			e.blastRadius[fid] = true
		}
	}

	for path, old := range existingByPath {
		if foundPaths[path] {
			continue
		}
		stats.FilesRemoved++
		importers, _ := e.store.FilesReferencingEntities(entityIDsOf(e, old.ID))
		for _, fid := range importers {
			e.blastRadius[fid] = true
		}
		if err := e.store.DeleteFileData(old.ID); err != nil {
			return stats, fmt.Errorf("delete file data %s: %w", path, err)
		}
		if err := e.store.DeleteFile(old.ID); err != nil {
			return stats, fmt.Errorf("delete file %s: %w", path, err)
		}
	}

	if full {
		e.blastRadius = nil
	}
	if err := e.resolve(ctx); err != nil {
		return stats, fmt.Errorf("resolve: %w", err)
	}
	return stats, nil
}

// Watch runs the Watcher Daemon: optionally performs one full index before
// entering the event loop (full-first mode), then re-runs an incremental
// index every time the watcher flushes a debounced batch of filesystem
// changes. It blocks until ctx is cancelled. Batches are used only as a
// trigger — the incremental indexer re-diffs the whole tree by content hash
// rather than touching just the batch's paths, so a batch that reports
// FullRescan needs no special handling here.
func (e *Engine) Watch(ctx context.Context, fullFirst bool, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if fullFirst {
		if _, err := e.IndexDirectory(ctx, true); err != nil {
			return fmt.Errorf("watch: initial full index: %w", err)
		}
	}

	sc := scan.NewScanner(e.root, e.registry, e.stateDir, 0)
	w, err := watcher.New(e.root, sc.ShouldIgnoreDir, logger)
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()

	for {
		select {
		case <-ctx.Done():
			<-errCh
			return nil
		case err := <-errCh:
			return err
		case batch, ok := <-w.Batches():
			if !ok {
				return <-errCh
			}
			logger.Info("watch: indexing batch", "changed", len(batch.Changed), "removed", len(batch.Removed), "full_rescan", batch.FullRescan)
			if _, err := e.IndexDirectory(ctx, false); err != nil {
				logger.Error("watch: incremental index failed", "error", err)
			}
		}
	}
}

func entityIDsOf(e *Engine, fileID int64) []int64 {
	ents, err := e.store.EntitiesByFile(fileID)
	if err != nil {
		return nil
	}
	ids := make([]int64, len(ents))
	for i, en := range ents {
		ids[i] = en.ID
	}
	return ids
}

// extractedFile is one worker's output, ready for the single committer.
type extractedFile struct {
	path      string
	lang      string
	hash      string
	size      int64
	mtimeNs   int64
	parseOK   bool
	recs      *store.FileRecords
	fileIDOld int64
	hadOld    bool
	blast     map[int64]bool
}

// indexJob pairs a scanned file with its previous store row, if any.
type indexJob struct {
	file scan.File
	old  *store.File
}

// extractParallel runs extraction (CPU-bound, goroutine-safe per parser
// instance) across a worker pool, grounded on the teacher's
// IndexFilesParallel three-phase pipeline: parse concurrently, commit
// serially. Returns one *extractedFile per job (nil entries are skipped) and
// a count of files that failed to read or parse.
func (e *Engine) extractParallel(ctx context.Context, jobs []indexJob) ([]*extractedFile, int) {
	if len(jobs) == 0 {
		return nil, 0
	}

	numWorkers := runtime.NumCPU()
	if numWorkers > len(jobs) {
		numWorkers = len(jobs)
	}
	if numWorkers < 1 {
		numWorkers = 1
	}

	type indexed struct {
		idx int
		out *extractedFile
		err error
	}

	jobCh := make(chan int, len(jobs))
	for i := range jobs {
		jobCh <- i
	}
	close(jobCh)

	resCh := make(chan indexed, len(jobs))
	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobCh {
				if ctx.Err() != nil {
					resCh <- indexed{idx: i, err: ctx.Err()}
					continue
				}
				out, err := e.extractOne(jobs[i].file, jobs[i].old)
				resCh <- indexed{idx: i, out: out, err: err}
			}
		}()
	}
	go func() {
		wg.Wait()
		close(resCh)
	}()

	out := make([]*extractedFile, len(jobs))
	parseErrors := 0
	for r := range resCh {
		if r.err != nil {
			parseErrors++
			continue
		}
		out[r.idx] = r.out
		if r.out != nil && !r.out.parseOK {
			parseErrors++
		}
	}
	return out, parseErrors
}

// extractOne reads and extracts a single file without touching the store
// (safe to run concurrently across workers).
func (e *Engine) extractOne(f scan.File, old *store.File) (*extractedFile, error) {
	content, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Path, err)
	}
	sum := sha256.Sum256(content)
	hash := fmt.Sprintf("%x", sum)

	relPath := f.Path
	if rel, rerr := filepath.Rel(e.root, f.Path); rerr == nil {
		relPath = filepath.ToSlash(rel)
	}

	out := &extractedFile{
		path:    relPath,
		lang:    f.Language,
		hash:    hash,
		size:    int64(len(content)),
		mtimeNs: f.ModTimeNs,
		parseOK: true,
	}
	if old != nil {
		out.hadOld = true
		out.fileIDOld = old.ID
	}

	var ext *extract.Extraction
	if f.Language != "" && f.Language != "none" {
		if extr, ok := e.registry.For(strings.ToLower(filepath.Ext(f.Path))); ok {
			ext, err = extr.Extract(f.Path, content)
			if err != nil || ext == nil {
				ext = &extract.Extraction{ParseOK: false}
			}
		} else {
			ext = &extract.Extraction{ParseOK: true}
		}
	} else {
		ext = &extract.Extraction{ParseOK: true}
	}
	out.parseOK = ext.ParseOK

	recs := toFileRecords(ext)
	if f.Language != "" && f.Language != "none" {
		for _, fp := range clone.Fingerprints(content) {
			recs.Fingerprints = append(recs.Fingerprints, store.FingerprintInput{
				BlockStartLine: fp.StartLine, BlockEndLine: fp.EndLine, Hash: fp.Hash, Weight: fp.Weight,
			})
		}
	}
	out.recs = recs
	return out, nil
}

// toFileRecords converts an extractor's output into store-ready staged
// records, carrying file-local indices through unchanged.
func toFileRecords(ext *extract.Extraction) *store.FileRecords {
	recs := &store.FileRecords{
		Entities:   make([]store.EntityInput, len(ext.Definitions)),
		References: make([]store.ReferenceInput, len(ext.References)),
		Imports:    make([]store.ImportInput, len(ext.Imports)),
		CallEdges:  make([]store.CallEdgeInput, len(ext.Calls)),
	}
	for i, d := range ext.Definitions {
		recs.Entities[i] = store.EntityInput{
			Name: d.Name, Kind: d.Kind, QualifiedName: d.QualifiedName, Visibility: d.Visibility,
			StartLine: d.StartLine, StartCol: d.StartCol, EndLine: d.EndLine, EndCol: d.EndCol,
			SignatureExcerpt: d.SignatureExcerpt, ParentLocalIndex: d.ParentIndex,
		}
	}
	for i, r := range ext.References {
		recs.References[i] = store.ReferenceInput{
			Line: r.Line, Col: r.Col, EndLine: r.EndLine, EndCol: r.EndCol,
			TargetName: r.TargetName, IsCall: r.IsCall,
		}
	}
	for i, imp := range ext.Imports {
		recs.Imports[i] = store.ImportInput{Raw: imp.Raw, ResolvedPath: imp.ResolvedPath}
	}
	for i, c := range ext.Calls {
		recs.CallEdges[i] = store.CallEdgeInput{CallerLocalIndex: c.CallerIndex, CalleeName: c.CalleeName, Line: c.Line}
	}
	return recs
}

// commitFile is the single-committer phase: capture old entities, commit
// new records in one transaction, compute the blast radius.
func (e *Engine) commitFile(res *extractedFile) error {
	var oldEnts []*store.Entity
	if res.hadOld {
		var err error
		oldEnts, err = e.store.EntitiesByFile(res.fileIDOld)
		if err != nil {
			return fmt.Errorf("capture old entities: %w", err)
		}
	}

	fileID, _, err := e.store.UpsertFile(&store.File{
		Path: res.path, Language: res.lang, ContentHash: res.hash,
		Size: res.size, MTimeNs: res.mtimeNs, IndexedAt: time.Now(), ParseOK: res.parseOK,
	})
	if err != nil {
		return fmt.Errorf("upsert file: %w", err)
	}

	if !res.parseOK && e.keepOnError {
		// --keep-on-error: preserve the previous graph for this file rather
		// than wiping it; only the file row's parse_ok flips.
		res.blast = map[int64]bool{fileID: true}
		return nil
	}

	if !res.parseOK {
		// Default: wipe this file's records on extractor failure so stale
		// data never masks a broken file.
		res.recs = &store.FileRecords{}
	}

	// Store transaction failures (e.g. a busy database) are retried, up to
	// three attempts in total, sleeping 50ms then 100ms between attempts.
	for attempt := 1; ; attempt++ {
		err = e.store.ReplaceFileRecords(fileID, res.recs)
		if err == nil || attempt == 3 {
			break
		}
		time.Sleep((50 * time.Millisecond) << (attempt - 1))
	}
	if err != nil {
		return fmt.Errorf("replace file records: %w", err)
	}

	newEnts, err := e.store.EntitiesByFile(fileID)
	if err != nil {
		return fmt.Errorf("capture new entities: %w", err)
	}
	res.blast = e.computeBlastRadius(fileID, oldEnts, newEnts)
	return nil
}

type entityKey struct{ name, kind string }

// computeBlastRadius compares old vs new entities by (name, kind) and
// signature hash, returning the set of file IDs that need re-resolution:
// the file itself, plus every file holding a reference or call edge that
// targeted a changed or removed entity.
func (e *Engine) computeBlastRadius(fileID int64, oldEnts, newEnts []*store.Entity) map[int64]bool {
	result := map[int64]bool{fileID: true}

	oldByKey := make(map[entityKey]*store.Entity, len(oldEnts))
	for _, en := range oldEnts {
		oldByKey[entityKey{en.Name, en.Kind}] = en
	}
	newByKey := make(map[entityKey]*store.Entity, len(newEnts))
	for _, en := range newEnts {
		newByKey[entityKey{en.Name, en.Kind}] = en
	}

	var affected []int64
	for k, old := range oldByKey {
		if nw, ok := newByKey[k]; ok {
			if old.SignatureHash != nw.SignatureHash {
				affected = append(affected, old.ID)
			}
		} else {
			affected = append(affected, old.ID)
		}
	}
	if len(affected) > 0 {
		if fids, err := e.store.FilesReferencingEntities(affected); err == nil {
			for _, fid := range fids {
				result[fid] = true
			}
		}
	}
	return result
}

// resolve runs the cross-file resolution pass: recompute file_deps for
// every target file's imports, then resolve references/call edges whose
// target name matches exactly one entity reachable via that file's import
// graph (direct imports only — see DESIGN.md for the re-export scoping
// decision). nil blastRadius means "resolve every file".
func (e *Engine) resolve(ctx context.Context) error {
	defer func() { e.blastRadius = nil }()
	if e.blastRadius != nil && len(e.blastRadius) == 0 {
		return nil
	}

	all, err := e.store.AllFiles()
	if err != nil {
		return err
	}
	byPath := make(map[string]*store.File, len(all))
	for _, f := range all {
		byPath[f.Path] = f
	}

	var targets []*store.File
	if e.blastRadius == nil {
		targets = all
	} else {
		for _, f := range all {
			if e.blastRadius[f.ID] {
				targets = append(targets, f)
			}
		}
	}
	sort.Slice(targets, func(i, j int) bool { return targets[i].Path < targets[j].Path })

	for _, f := range targets {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.resolveFile(f, byPath); err != nil {
			return fmt.Errorf("resolve %s: %w", f.Path, err)
		}
	}
	return nil
}

func (e *Engine) resolveFile(f *store.File, byPath map[string]*store.File) error {
	if err := e.store.ClearResolutionForFiles([]int64{f.ID}); err != nil {
		return fmt.Errorf("clear resolution: %w", err)
	}

	imports, err := e.store.ImportsByFile(f.ID)
	if err != nil {
		return fmt.Errorf("imports by file: %w", err)
	}
	var importedFileIDs []int64
	for _, imp := range imports {
		target := resolveImportTarget(imp.Raw, f.Path, byPath)
		if target == nil {
			continue
		}
		if err := e.store.SetImportResolvedPath(imp.ID, target.Path); err != nil {
			return fmt.Errorf("set import resolved path: %w", err)
		}
		if err := e.store.UpsertFileDep(f.ID, target.ID, "import"); err != nil {
			return fmt.Errorf("upsert file dep: %w", err)
		}
		importedFileIDs = append(importedFileIDs, target.ID)
	}

	// Name resolution looks in this file first: a name defined here resolves
	// only if it is defined exactly once. A name not defined here at all is
	// looked up across the files this file directly imports. References/calls
	// matching zero or several entities stay unresolved (name-only).
	lookup := func(name string) ([]*store.Entity, error) {
		local, err := e.store.EntitiesByNameInFiles(name, []int64{f.ID})
		if err != nil || len(local) > 0 {
			return local, err
		}
		return e.store.EntitiesByNameInFiles(name, importedFileIDs)
	}

	refs, err := e.store.ReferencesByFile(f.ID)
	if err != nil {
		return fmt.Errorf("references by file: %w", err)
	}
	for _, r := range refs {
		if r.TargetName == "" {
			continue
		}
		ents, err := lookup(r.TargetName)
		if err != nil {
			return fmt.Errorf("entities by name: %w", err)
		}
		if len(ents) != 1 {
			continue
		}
		if err := e.store.SetReferenceTarget(r.ID, &ents[0].ID); err != nil {
			return fmt.Errorf("set reference target: %w", err)
		}
		if ents[0].FileID != f.ID {
			if err := e.store.UpsertFileDep(f.ID, ents[0].FileID, "call"); err != nil {
				return fmt.Errorf("upsert file dep: %w", err)
			}
		}
	}

	entities, err := e.store.EntitiesByFile(f.ID)
	if err != nil {
		return fmt.Errorf("entities by file: %w", err)
	}
	for _, en := range entities {
		calls, err := e.store.CalleesByCaller(en.ID)
		if err != nil {
			return fmt.Errorf("callees by caller: %w", err)
		}
		for _, c := range calls {
			ents, err := lookup(c.CalleeName)
			if err != nil {
				return fmt.Errorf("entities by name: %w", err)
			}
			if len(ents) != 1 {
				continue
			}
			if err := e.store.SetCallEdgeTarget(c.ID, &ents[0].ID); err != nil {
				return fmt.Errorf("set call edge target: %w", err)
			}
			if ents[0].FileID != f.ID {
				if err := e.store.UpsertFileDep(f.ID, ents[0].FileID, "call"); err != nil {
					return fmt.Errorf("upsert file dep: %w", err)
				}
			}
		}
	}
	return nil
}

// resolveImportTarget maps a raw import specifier to an indexed file.
// Relative specifiers ("./foo", "../bar") resolve against fromPath's
// directory, probing common source extensions and index files. Bare
// specifiers (Go import paths, Java/Python dotted packages) resolve by
// suffix match against indexed paths' directory components, picking the
// lexicographically first match for determinism — the same heuristic the
// teacher's query-time Dependents() suffix LIKE match uses, applied once at
// index time instead of on every query.
func resolveImportTarget(raw, fromPath string, byPath map[string]*store.File) *store.File {
	raw = strings.Trim(raw, `"'`)
	if raw == "" {
		return nil
	}

	if strings.HasPrefix(raw, ".") {
		base := filepath.Join(filepath.Dir(fromPath), raw)
		candidates := []string{
			base, base + ".go", base + ".ts", base + ".tsx", base + ".js", base + ".jsx", base + ".py",
			filepath.Join(base, "index.ts"), filepath.Join(base, "index.js"), filepath.Join(base, "__init__.py"),
		}
		for _, c := range candidates {
			if f, ok := byPath[c]; ok {
				return f
			}
		}
		return nil
	}

	suffix := "/" + strings.ReplaceAll(raw, ".", "/")
	var matches []string
	for path := range byPath {
		dir := filepath.ToSlash(filepath.Dir(path))
		if strings.HasSuffix(dir, suffix) || dir == strings.TrimPrefix(suffix, "/") {
			matches = append(matches, path)
		}
	}
	if len(matches) == 0 {
		return nil
	}
	sort.Strings(matches)
	return byPath[matches[0]]
}
