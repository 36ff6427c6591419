package store

import "fmt"

// --- CallEdge operations ---

const callEdgeCols = `id, caller_entity_id, callee_name, callee_entity_id, file_id, line`

func (s *Store) scanCallEdge(scanner interface{ Scan(...any) error }) (*CallEdge, error) {
	c := &CallEdge{}
	err := scanner.Scan(&c.ID, &c.CallerEntityID, &c.CalleeName, &c.CalleeEntityID, &c.FileID, &c.Line)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Store) InsertCallEdge(c *CallEdge) (int64, error) {
	res, err := s.db.Exec(
		"INSERT INTO call_edges (caller_entity_id, callee_name, callee_entity_id, file_id, line) VALUES (?, ?, ?, ?, ?)",
		c.CallerEntityID, c.CalleeName, c.CalleeEntityID, c.FileID, c.Line,
	)
	if err != nil {
		return 0, fmt.Errorf("insert call edge: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	c.ID = id
	return id, nil
}

func (s *Store) queryCallEdges(query string, args ...any) ([]*CallEdge, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var edges []*CallEdge
	for rows.Next() {
		c, err := s.scanCallEdge(rows)
		if err != nil {
			return nil, fmt.Errorf("scan call edge: %w", err)
		}
		edges = append(edges, c)
	}
	return edges, rows.Err()
}

// CallersByCallee returns call edges where callee_entity_id matches.
func (s *Store) CallersByCallee(calleeEntityID int64) ([]*CallEdge, error) {
	return s.queryCallEdges("SELECT "+callEdgeCols+" FROM call_edges WHERE callee_entity_id = ? ORDER BY file_id, line", calleeEntityID)
}

// CallersByCalleeName returns call edges matching a callee name when the
// callee entity is unresolved.
func (s *Store) CallersByCalleeName(name string) ([]*CallEdge, error) {
	return s.queryCallEdges("SELECT "+callEdgeCols+" FROM call_edges WHERE callee_name = ? ORDER BY file_id, line", name)
}

func (s *Store) CalleesByCaller(callerEntityID int64) ([]*CallEdge, error) {
	return s.queryCallEdges("SELECT "+callEdgeCols+" FROM call_edges WHERE caller_entity_id = ? ORDER BY file_id, line", callerEntityID)
}

// AllCallEdges returns every call edge in the store, used to build the
// in-memory graph the dependency-path and minimal-slice queries traverse.
func (s *Store) AllCallEdges() ([]*CallEdge, error) {
	return s.queryCallEdges("SELECT " + callEdgeCols + " FROM call_edges")
}

// SetCallEdgeTarget resolves a call edge to a callee entity (or clears it
// back to name-only when calleeEntityID is nil).
func (s *Store) SetCallEdgeTarget(callEdgeID int64, calleeEntityID *int64) error {
	_, err := s.db.Exec("UPDATE call_edges SET callee_entity_id = ? WHERE id = ?", calleeEntityID, callEdgeID)
	if err != nil {
		return fmt.Errorf("set call edge target: %w", err)
	}
	return nil
}

// --- FileDep operations ---

// UpsertFileDep inserts a from/to/kind edge if it doesn't already exist.
func (s *Store) UpsertFileDep(fromFileID, toFileID int64, kind string) error {
	_, err := s.db.Exec(
		`INSERT INTO file_deps (from_file_id, to_file_id, kind) VALUES (?, ?, ?)
		 ON CONFLICT(from_file_id, to_file_id, kind) DO NOTHING`,
		fromFileID, toFileID, kind,
	)
	if err != nil {
		return fmt.Errorf("upsert file dep: %w", err)
	}
	return nil
}

// AllFileDeps returns every file-to-file edge, used to build the dependency
// graph for dependency_path queries.
func (s *Store) AllFileDeps() ([]*FileDep, error) {
	rows, err := s.db.Query("SELECT id, from_file_id, to_file_id, kind FROM file_deps")
	if err != nil {
		return nil, fmt.Errorf("all file deps: %w", err)
	}
	defer rows.Close()
	var deps []*FileDep
	for rows.Next() {
		d := &FileDep{}
		if err := rows.Scan(&d.ID, &d.FromFileID, &d.ToFileID, &d.Kind); err != nil {
			return nil, fmt.Errorf("scan file dep: %w", err)
		}
		deps = append(deps, d)
	}
	return deps, rows.Err()
}

// FileDepsBetween returns the edge kinds justifying an edge from one file to
// another (there may be both an "import" and a "call" edge for the same pair).
func (s *Store) FileDepsBetween(fromFileID, toFileID int64) ([]string, error) {
	rows, err := s.db.Query("SELECT kind FROM file_deps WHERE from_file_id = ? AND to_file_id = ?", fromFileID, toFileID)
	if err != nil {
		return nil, fmt.Errorf("file deps between: %w", err)
	}
	defer rows.Close()
	var kinds []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan kind: %w", err)
		}
		kinds = append(kinds, k)
	}
	return kinds, rows.Err()
}

// --- CloneFingerprint operations ---

func (s *Store) InsertCloneFingerprint(fp *CloneFingerprint) (int64, error) {
	res, err := s.db.Exec(
		"INSERT INTO clone_fingerprints (file_id, block_start_line, block_end_line, hash, weight) VALUES (?, ?, ?, ?, ?)",
		fp.FileID, fp.BlockStartLine, fp.BlockEndLine, fp.Hash, fp.Weight,
	)
	if err != nil {
		return 0, fmt.Errorf("insert clone fingerprint: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	fp.ID = id
	return id, nil
}

func (s *Store) CloneFingerprintsByFile(fileID int64) ([]*CloneFingerprint, error) {
	rows, err := s.db.Query(
		"SELECT id, file_id, block_start_line, block_end_line, hash, weight FROM clone_fingerprints WHERE file_id = ?", fileID,
	)
	if err != nil {
		return nil, fmt.Errorf("clone fingerprints by file: %w", err)
	}
	defer rows.Close()
	var fps []*CloneFingerprint
	for rows.Next() {
		fp := &CloneFingerprint{}
		if err := rows.Scan(&fp.ID, &fp.FileID, &fp.BlockStartLine, &fp.BlockEndLine, &fp.Hash, &fp.Weight); err != nil {
			return nil, fmt.Errorf("scan clone fingerprint: %w", err)
		}
		fps = append(fps, fp)
	}
	return fps, rows.Err()
}

// FilesSharingFingerprints returns, for every file other than fileID, the
// count of fingerprint hashes shared with fileID.
func (s *Store) FilesSharingFingerprints(fileID int64) (map[int64]int, error) {
	rows, err := s.db.Query(
		`SELECT b.file_id, COUNT(*) FROM clone_fingerprints a
		 JOIN clone_fingerprints b ON b.hash = a.hash AND b.file_id != a.file_id
		 WHERE a.file_id = ?
		 GROUP BY b.file_id`, fileID,
	)
	if err != nil {
		return nil, fmt.Errorf("files sharing fingerprints: %w", err)
	}
	defer rows.Close()
	shared := make(map[int64]int)
	for rows.Next() {
		var other int64
		var count int
		if err := rows.Scan(&other, &count); err != nil {
			return nil, fmt.Errorf("scan shared count: %w", err)
		}
		shared[other] = count
	}
	return shared, rows.Err()
}

// --- Reexport operations ---

func (s *Store) InsertReexport(rx *Reexport) (int64, error) {
	res, err := s.db.Exec(
		"INSERT INTO reexports (file_id, local_name, source_import_id, exported_name) VALUES (?, ?, ?, ?)",
		rx.FileID, rx.LocalName, rx.SourceImportID, rx.ExportedName,
	)
	if err != nil {
		return 0, fmt.Errorf("insert reexport: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	rx.ID = id
	return id, nil
}

// ReexportsByFileAndName finds reexports in fileID that export exportedName.
func (s *Store) ReexportsByFileAndName(fileID int64, exportedName string) ([]*Reexport, error) {
	rows, err := s.db.Query(
		"SELECT id, file_id, local_name, source_import_id, exported_name FROM reexports WHERE file_id = ? AND exported_name = ?",
		fileID, exportedName,
	)
	if err != nil {
		return nil, fmt.Errorf("reexports by file and name: %w", err)
	}
	defer rows.Close()
	var out []*Reexport
	for rows.Next() {
		rx := &Reexport{}
		if err := rows.Scan(&rx.ID, &rx.FileID, &rx.LocalName, &rx.SourceImportID, &rx.ExportedName); err != nil {
			return nil, fmt.Errorf("scan reexport: %w", err)
		}
		out = append(out, rx)
	}
	return out, rows.Err()
}
