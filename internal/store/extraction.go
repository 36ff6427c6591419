package store

import (
	"database/sql"
	"fmt"
)

// --- File operations ---

// FileCols is the column list for file queries.
const FileCols = `id, path, language, content_hash, size, mtime_ns, indexed_at, parse_ok`

func (s *Store) scanFile(scanner interface{ Scan(...any) error }) (*File, error) {
	f := &File{}
	err := scanner.Scan(&f.ID, &f.Path, &f.Language, &f.ContentHash, &f.Size, &f.MTimeNs, &f.IndexedAt, &f.ParseOK)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// UpsertFile inserts a new file row or updates an existing one by path,
// returning (file_id, previous_content_hash). previous_content_hash is ""
// for a newly created row.
func (s *Store) UpsertFile(f *File) (int64, string, error) {
	existing, err := s.FileByPath(f.Path)
	if err != nil {
		return 0, "", err
	}
	if existing == nil {
		res, err := s.db.Exec(
			`INSERT INTO files (path, language, content_hash, size, mtime_ns, indexed_at, parse_ok)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			f.Path, f.Language, f.ContentHash, f.Size, f.MTimeNs, f.IndexedAt, f.ParseOK,
		)
		if err != nil {
			return 0, "", fmt.Errorf("insert file: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return 0, "", fmt.Errorf("last insert id: %w", err)
		}
		f.ID = id
		return id, "", nil
	}

	_, err = s.db.Exec(
		`UPDATE files SET language = ?, content_hash = ?, size = ?, mtime_ns = ?, indexed_at = ?, parse_ok = ?
		 WHERE id = ?`,
		f.Language, f.ContentHash, f.Size, f.MTimeNs, f.IndexedAt, f.ParseOK, existing.ID,
	)
	if err != nil {
		return 0, "", fmt.Errorf("update file: %w", err)
	}
	f.ID = existing.ID
	return existing.ID, existing.ContentHash, nil
}

func (s *Store) FileByPath(path string) (*File, error) {
	row := s.db.QueryRow("SELECT "+FileCols+" FROM files WHERE path = ?", path)
	f, err := s.scanFile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file by path: %w", err)
	}
	return f, nil
}

func (s *Store) FileByID(id int64) (*File, error) {
	row := s.db.QueryRow("SELECT "+FileCols+" FROM files WHERE id = ?", id)
	f, err := s.scanFile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file by id: %w", err)
	}
	return f, nil
}

// AllFiles returns every file row, ordered by path for deterministic output.
func (s *Store) AllFiles() ([]*File, error) {
	rows, err := s.db.Query("SELECT " + FileCols + " FROM files ORDER BY path")
	if err != nil {
		return nil, fmt.Errorf("all files: %w", err)
	}
	defer rows.Close()
	var files []*File
	for rows.Next() {
		f, err := s.scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// DeleteFile removes the file row itself. Call DeleteFileData first to
// remove its dependent records.
func (s *Store) DeleteFile(fileID int64) error {
	_, err := s.db.Exec("DELETE FROM files WHERE id = ?", fileID)
	if err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}

// --- Entity operations ---

// EntityCols is the column list for entity queries.
const EntityCols = `id, file_id, name, kind, qualified_name, visibility,
	start_line, start_col, end_line, end_col, signature_excerpt, signature_hash, parent_entity_id`

func (s *Store) scanEntity(scanner interface{ Scan(...any) error }) (*Entity, error) {
	e := &Entity{}
	err := scanner.Scan(
		&e.ID, &e.FileID, &e.Name, &e.Kind, &e.QualifiedName, &e.Visibility,
		&e.StartLine, &e.StartCol, &e.EndLine, &e.EndCol,
		&e.SignatureExcerpt, &e.SignatureHash, &e.ParentEntityID,
	)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (s *Store) InsertEntity(e *Entity) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO entities (file_id, name, kind, qualified_name, visibility,
			start_line, start_col, end_line, end_col, signature_excerpt, signature_hash, parent_entity_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.FileID, e.Name, e.Kind, e.QualifiedName, e.Visibility,
		e.StartLine, e.StartCol, e.EndLine, e.EndCol, e.SignatureExcerpt, e.SignatureHash, e.ParentEntityID,
	)
	if err != nil {
		return 0, fmt.Errorf("insert entity: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	e.ID = id
	return id, nil
}

func (s *Store) queryEntities(query string, args ...any) ([]*Entity, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entities []*Entity
	for rows.Next() {
		e, err := s.scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		entities = append(entities, e)
	}
	return entities, rows.Err()
}

// EntitiesByName returns every entity whose name or qualified_name matches
// exactly, across the whole repository.
func (s *Store) EntitiesByName(name string) ([]*Entity, error) {
	return s.queryEntities(
		"SELECT "+EntityCols+" FROM entities WHERE name = ? OR qualified_name = ? ORDER BY file_id, start_line",
		name, name,
	)
}

// EntitiesByNameInFiles returns entities with exactly this name in the given
// file IDs (unlike EntitiesByName, qualified_name is not matched), used for
// within-file and cross-file (import-reachable) resolution.
func (s *Store) EntitiesByNameInFiles(name string, fileIDs []int64) ([]*Entity, error) {
	if len(fileIDs) == 0 {
		return nil, nil
	}
	placeholders := placeholderList(len(fileIDs))
	args := append([]any{name}, int64sToArgs(fileIDs)...)
	return s.queryEntities(
		"SELECT "+EntityCols+" FROM entities WHERE name = ? AND file_id IN ("+placeholders+")",
		args...,
	)
}

func (s *Store) EntitiesByFile(fileID int64) ([]*Entity, error) {
	return s.queryEntities("SELECT "+EntityCols+" FROM entities WHERE file_id = ? ORDER BY start_line, start_col", fileID)
}

func (s *Store) EntityByID(id int64) (*Entity, error) {
	row := s.db.QueryRow("SELECT "+EntityCols+" FROM entities WHERE id = ?", id)
	e, err := s.scanEntity(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("entity by id: %w", err)
	}
	return e, nil
}

// EntityAt returns the narrowest entity in fileID whose span contains
// (line, col), or nil if none does.
func (s *Store) EntityAt(fileID int64, line, col int) (*Entity, error) {
	row := s.db.QueryRow(
		`SELECT `+EntityCols+` FROM entities
		 WHERE file_id = ?
		   AND (start_line < ? OR (start_line = ? AND start_col <= ?))
		   AND (end_line > ? OR (end_line = ? AND end_col >= ?))
		 ORDER BY (end_line - start_line) ASC, (end_col - start_col) ASC
		 LIMIT 1`,
		fileID, line, line, col, line, line, col,
	)
	e, err := s.scanEntity(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("entity at: %w", err)
	}
	return e, nil
}

// --- Entity fragment operations ---

func (s *Store) InsertEntityFragment(fr *EntityFragment) (int64, error) {
	res, err := s.db.Exec(
		"INSERT INTO entity_fragments (entity_id, kind, text, start_line, start_col) VALUES (?, ?, ?, ?, ?)",
		fr.EntityID, fr.Kind, fr.Text, fr.StartLine, fr.StartCol,
	)
	if err != nil {
		return 0, fmt.Errorf("insert entity fragment: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	fr.ID = id
	return id, nil
}

// --- Scope operations ---

func (s *Store) InsertScope(sc *Scope) (int64, error) {
	res, err := s.db.Exec(
		"INSERT INTO scopes (file_id, parent_scope_id, kind, start_line, end_line) VALUES (?, ?, ?, ?, ?)",
		sc.FileID, sc.ParentScopeID, sc.Kind, sc.StartLine, sc.EndLine,
	)
	if err != nil {
		return 0, fmt.Errorf("insert scope: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	sc.ID = id
	return id, nil
}

// ScopeChain walks the parent_scope_id chain from scopeID to the root,
// returning scopes ordered innermost-first.
func (s *Store) ScopeChain(scopeID int64) ([]*Scope, error) {
	var chain []*Scope
	cur := &scopeID
	for cur != nil {
		sc := &Scope{}
		var parent sql.NullInt64
		err := s.db.QueryRow(
			"SELECT id, file_id, parent_scope_id, kind, start_line, end_line FROM scopes WHERE id = ?", *cur,
		).Scan(&sc.ID, &sc.FileID, &parent, &sc.Kind, &sc.StartLine, &sc.EndLine)
		if err == sql.ErrNoRows {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("scope chain: %w", err)
		}
		chain = append(chain, sc)
		if parent.Valid {
			id := parent.Int64
			cur = &id
		} else {
			cur = nil
		}
	}
	return chain, nil
}

// --- Reference operations ---

const referenceCols = `id, file_id, scope_id, line, col, end_line, end_col, target_name, target_entity_id, is_call`

func (s *Store) scanReference(scanner interface{ Scan(...any) error }) (*Reference, error) {
	r := &Reference{}
	err := scanner.Scan(&r.ID, &r.FileID, &r.ScopeID, &r.Line, &r.Col, &r.EndLine, &r.EndCol, &r.TargetName, &r.TargetEntityID, &r.IsCall)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Store) InsertReference(r *Reference) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO references_ (file_id, scope_id, line, col, end_line, end_col, target_name, target_entity_id, is_call)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.FileID, r.ScopeID, r.Line, r.Col, r.EndLine, r.EndCol, r.TargetName, r.TargetEntityID, r.IsCall,
	)
	if err != nil {
		return 0, fmt.Errorf("insert reference: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	r.ID = id
	return id, nil
}

// SetReferenceTarget resolves a reference to a target entity (or clears it
// back to name-only when targetEntityID is nil).
func (s *Store) SetReferenceTarget(referenceID int64, targetEntityID *int64) error {
	_, err := s.db.Exec("UPDATE references_ SET target_entity_id = ? WHERE id = ?", targetEntityID, referenceID)
	if err != nil {
		return fmt.Errorf("set reference target: %w", err)
	}
	return nil
}

func (s *Store) queryReferences(query string, args ...any) ([]*Reference, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var refs []*Reference
	for rows.Next() {
		r, err := s.scanReference(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reference: %w", err)
		}
		refs = append(refs, r)
	}
	return refs, rows.Err()
}

func (s *Store) ReferencesByFile(fileID int64) ([]*Reference, error) {
	return s.queryReferences("SELECT "+referenceCols+" FROM references_ WHERE file_id = ? ORDER BY line, col", fileID)
}

// ReferencesByTargetName returns every reference whose target_name matches,
// regardless of resolution state.
func (s *Store) ReferencesByTargetName(name string) ([]*Reference, error) {
	return s.queryReferences("SELECT "+referenceCols+" FROM references_ WHERE target_name = ? ORDER BY file_id, line, col", name)
}

// ReferencesByTargetEntity returns every reference resolved to entityID.
func (s *Store) ReferencesByTargetEntity(entityID int64) ([]*Reference, error) {
	return s.queryReferences("SELECT "+referenceCols+" FROM references_ WHERE target_entity_id = ? ORDER BY file_id, line, col", entityID)
}

func (s *Store) ReferenceAt(fileID int64, line, col int) ([]*Reference, error) {
	return s.queryReferences(
		`SELECT `+referenceCols+` FROM references_
		 WHERE file_id = ? AND line <= ? AND end_line >= ?
		   AND (line < ? OR (line = ? AND col <= ?))
		   AND (end_line > ? OR (end_line = ? AND end_col >= ?))`,
		fileID, line, line, line, line, col, line, line, col,
	)
}

// --- Import operations ---

func (s *Store) InsertImport(imp *Import) (int64, error) {
	res, err := s.db.Exec(
		"INSERT INTO imports (file_id, raw, resolved_path) VALUES (?, ?, ?)",
		imp.FileID, imp.Raw, imp.ResolvedPath,
	)
	if err != nil {
		return 0, fmt.Errorf("insert import: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	imp.ID = id
	return id, nil
}

func (s *Store) queryImports(query string, args ...any) ([]*Import, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var imports []*Import
	for rows.Next() {
		imp := &Import{}
		if err := rows.Scan(&imp.ID, &imp.FileID, &imp.Raw, &imp.ResolvedPath); err != nil {
			return nil, fmt.Errorf("scan import: %w", err)
		}
		imports = append(imports, imp)
	}
	return imports, rows.Err()
}

func (s *Store) ImportsByFile(fileID int64) ([]*Import, error) {
	return s.queryImports("SELECT id, file_id, raw, resolved_path FROM imports WHERE file_id = ?", fileID)
}

// ImportsByResolvedPath finds every import whose resolved_path equals path,
// used to find files that import a given source file.
func (s *Store) ImportsByResolvedPath(path string) ([]*Import, error) {
	return s.queryImports("SELECT id, file_id, raw, resolved_path FROM imports WHERE resolved_path = ?", path)
}

// SetImportResolvedPath stamps an import with the file path it resolves to,
// once the Indexer has matched its raw specifier against the repository.
func (s *Store) SetImportResolvedPath(importID int64, resolvedPath string) error {
	_, err := s.db.Exec("UPDATE imports SET resolved_path = ? WHERE id = ?", resolvedPath, importID)
	if err != nil {
		return fmt.Errorf("set import resolved path: %w", err)
	}
	return nil
}
