package store

import (
	"database/sql"
	"fmt"
)

// EntityInput stages an Entity for ReplaceFileRecords. ParentLocalIndex, when
// set, is an index into the same FileRecords.Entities slice (for nested
// entities like a method inside a class) and is resolved to a real entity ID
// during the commit transaction.
type EntityInput struct {
	Name             string
	Kind             string
	QualifiedName    string
	Visibility       string
	StartLine        int
	StartCol         int
	EndLine          int
	EndCol           int
	SignatureExcerpt string
	ParentLocalIndex *int
}

// ScopeInput stages a Scope; ParentLocalIndex indexes FileRecords.Scopes.
type ScopeInput struct {
	ParentLocalIndex *int
	Kind             string
	StartLine        int
	EndLine          int
}

// ReferenceInput stages a Reference; ScopeLocalIndex indexes
// FileRecords.Scopes. TargetEntityID is left for within-file resolution
// during commit: if exactly one entity in this file has TargetName, it
// resolves to that entity, otherwise it stays name-only.
type ReferenceInput struct {
	ScopeLocalIndex *int
	Line            int
	Col             int
	EndLine         int
	EndCol          int
	TargetName      string
	IsCall          bool
}

// ImportInput stages an Import.
type ImportInput struct {
	Raw          string
	ResolvedPath string
}

// CallEdgeInput stages a CallEdge; CallerLocalIndex indexes
// FileRecords.Entities. The stored callee_entity_id is resolved the same
// way as a ReferenceInput's target entity.
type CallEdgeInput struct {
	CallerLocalIndex int
	CalleeName       string
	Line             int
}

// FingerprintInput stages a CloneFingerprint.
type FingerprintInput struct {
	BlockStartLine int
	BlockEndLine   int
	Hash           string
	Weight         int
}

// FragmentInput stages an EntityFragment; EntityLocalIndex indexes
// FileRecords.Entities.
type FragmentInput struct {
	EntityLocalIndex int
	Kind             string
	Text             string
	StartLine        int
	StartCol         int
}

// FileRecords is everything extracted from one file, staged with
// file-local indices instead of database IDs so a single extractor call can
// run independently of the store.
type FileRecords struct {
	Entities     []EntityInput
	Scopes       []ScopeInput
	References   []ReferenceInput
	Imports      []ImportInput
	CallEdges    []CallEdgeInput
	Fingerprints []FingerprintInput
	Fragments    []FragmentInput
}

// ReplaceFileRecords atomically wipes every existing child record for
// fileID and inserts recs in its place: one transaction per file, matching
// the Graph Store's single-writer discipline. Within-file reference and
// call-edge targets are resolved against the newly inserted entities by
// unique name before the transaction commits.
func (s *Store) ReplaceFileRecords(fileID int64, recs *FileRecords) (err error) {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if err = wipeFileRecordsTx(tx, fileID); err != nil {
		return fmt.Errorf("wipe file records: %w", err)
	}

	entityIDs := make([]int64, len(recs.Entities))
	byName := make(map[string][]int64)
	for i, e := range recs.Entities {
		var parentID any
		if e.ParentLocalIndex != nil {
			parentID = entityIDs[*e.ParentLocalIndex]
		}
		res, err := tx.Exec(
			`INSERT INTO entities (file_id, name, kind, qualified_name, visibility,
				start_line, start_col, end_line, end_col, signature_excerpt, signature_hash, parent_entity_id)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			fileID, e.Name, e.Kind, e.QualifiedName, e.Visibility,
			e.StartLine, e.StartCol, e.EndLine, e.EndCol, e.SignatureExcerpt,
			ComputeSignatureHash(e.Name, e.Kind, e.Visibility, e.QualifiedName), parentID,
		)
		if err != nil {
			return fmt.Errorf("insert entity %q: %w", e.Name, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
		entityIDs[i] = id
		byName[e.Name] = append(byName[e.Name], id)
	}

	resolveByName := func(name string) any {
		ids := byName[name]
		if len(ids) == 1 {
			return ids[0]
		}
		return nil
	}

	scopeIDs := make([]int64, len(recs.Scopes))
	for i, sc := range recs.Scopes {
		var parentID any
		if sc.ParentLocalIndex != nil {
			parentID = scopeIDs[*sc.ParentLocalIndex]
		}
		res, err := tx.Exec(
			"INSERT INTO scopes (file_id, parent_scope_id, kind, start_line, end_line) VALUES (?, ?, ?, ?, ?)",
			fileID, parentID, sc.Kind, sc.StartLine, sc.EndLine,
		)
		if err != nil {
			return fmt.Errorf("insert scope: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
		scopeIDs[i] = id
	}

	for _, r := range recs.References {
		var scopeID any
		if r.ScopeLocalIndex != nil {
			scopeID = scopeIDs[*r.ScopeLocalIndex]
		}
		targetID := resolveByName(r.TargetName)
		if _, err := tx.Exec(
			`INSERT INTO references_ (file_id, scope_id, line, col, end_line, end_col, target_name, target_entity_id, is_call)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			fileID, scopeID, r.Line, r.Col, r.EndLine, r.EndCol, r.TargetName, targetID, r.IsCall,
		); err != nil {
			return fmt.Errorf("insert reference: %w", err)
		}
	}

	for _, imp := range recs.Imports {
		if _, err := tx.Exec(
			"INSERT INTO imports (file_id, raw, resolved_path) VALUES (?, ?, ?)",
			fileID, imp.Raw, imp.ResolvedPath,
		); err != nil {
			return fmt.Errorf("insert import: %w", err)
		}
	}

	for _, c := range recs.CallEdges {
		calleeID := resolveByName(c.CalleeName)
		if _, err := tx.Exec(
			"INSERT INTO call_edges (caller_entity_id, callee_name, callee_entity_id, file_id, line) VALUES (?, ?, ?, ?, ?)",
			entityIDs[c.CallerLocalIndex], c.CalleeName, calleeID, fileID, c.Line,
		); err != nil {
			return fmt.Errorf("insert call edge: %w", err)
		}
	}

	for _, fp := range recs.Fingerprints {
		if _, err := tx.Exec(
			"INSERT INTO clone_fingerprints (file_id, block_start_line, block_end_line, hash, weight) VALUES (?, ?, ?, ?, ?)",
			fileID, fp.BlockStartLine, fp.BlockEndLine, fp.Hash, fp.Weight,
		); err != nil {
			return fmt.Errorf("insert clone fingerprint: %w", err)
		}
	}

	for _, fr := range recs.Fragments {
		if _, err := tx.Exec(
			"INSERT INTO entity_fragments (entity_id, kind, text, start_line, start_col) VALUES (?, ?, ?, ?, ?)",
			entityIDs[fr.EntityLocalIndex], fr.Kind, fr.Text, fr.StartLine, fr.StartCol,
		); err != nil {
			return fmt.Errorf("insert entity fragment: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// wipeFileRecordsTx removes every child record for fileID within an
// already-open transaction. Mirrors Store.DeleteFileData but runs inside a
// caller-supplied tx instead of opening its own.
func wipeFileRecordsTx(tx *sql.Tx, fileID int64) error {
	entityIDs, err := txInt64Column(tx, "SELECT id FROM entities WHERE file_id = ?", fileID)
	if err != nil {
		return fmt.Errorf("query entities: %w", err)
	}

	if len(entityIDs) > 0 {
		placeholders := placeholderList(len(entityIDs))
		args := int64sToArgs(entityIDs)
		for _, q := range []string{
			"DELETE FROM call_edges WHERE caller_entity_id IN (" + placeholders + ") OR callee_entity_id IN (" + placeholders + ")",
			"DELETE FROM references_ WHERE target_entity_id IN (" + placeholders + ")",
			"DELETE FROM entity_fragments WHERE entity_id IN (" + placeholders + ")",
		} {
			expanded := args
			if n := countSubstring(q, "("+placeholders+")"); n > 1 {
				expanded = repeatArgs(args, n)
			}
			if _, err := tx.Exec(q, expanded...); err != nil {
				return fmt.Errorf("delete entity-scoped data: %w", err)
			}
		}
	}

	for _, q := range []string{
		"DELETE FROM call_edges WHERE file_id = ?",
		"DELETE FROM file_deps WHERE from_file_id = ? OR to_file_id = ?",
		"DELETE FROM clone_fingerprints WHERE file_id = ?",
		"DELETE FROM reexports WHERE file_id = ?",
		"DELETE FROM references_ WHERE file_id = ?",
		"DELETE FROM scopes WHERE file_id = ?",
		"DELETE FROM imports WHERE file_id = ?",
		"DELETE FROM entities WHERE file_id = ?",
	} {
		args := []any{fileID}
		if countSubstring(q, "?") > 1 {
			args = append(args, fileID)
		}
		if _, err := tx.Exec(q, args...); err != nil {
			return fmt.Errorf("delete file-scoped data (%s): %w", q, err)
		}
	}
	return nil
}
