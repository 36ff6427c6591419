package store

import "fmt"

// FilesReferencingEntities returns file IDs that hold a reference or call
// edge targeting any of the given entities. Used by the indexer's
// blast-radius computation to find files that need re-resolution after an
// entity changes shape or disappears.
func (s *Store) FilesReferencingEntities(entityIDs []int64) ([]int64, error) {
	if len(entityIDs) == 0 {
		return nil, nil
	}
	placeholders := placeholderList(len(entityIDs))
	args := int64sToArgs(entityIDs)

	seen := make(map[int64]bool)
	var out []int64
	collect := func(query string) error {
		rows, err := s.db.Query(query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				return err
			}
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
		return rows.Err()
	}

	if err := collect("SELECT DISTINCT file_id FROM references_ WHERE target_entity_id IN (" + placeholders + ")"); err != nil {
		return nil, fmt.Errorf("files referencing entities: %w", err)
	}
	if err := collect("SELECT DISTINCT file_id FROM call_edges WHERE callee_entity_id IN (" + placeholders + ")"); err != nil {
		return nil, fmt.Errorf("files referencing entities (calls): %w", err)
	}
	return out, nil
}

// FilesImportingPath returns file IDs whose imports resolve to path, used to
// extend the blast radius to importers of a changed file.
func (s *Store) FilesImportingPath(path string) ([]int64, error) {
	rows, err := s.db.Query("SELECT DISTINCT file_id FROM imports WHERE resolved_path = ?", path)
	if err != nil {
		return nil, fmt.Errorf("files importing path: %w", err)
	}
	defer rows.Close()
	var fileIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan file id: %w", err)
		}
		fileIDs = append(fileIDs, id)
	}
	return fileIDs, rows.Err()
}

// ClearResolutionForEntities wipes reference targets and call edges that
// point at the given (now-removed or changed) entities, so a later pass can
// recompute them against the current store state.
func (s *Store) ClearResolutionForEntities(entityIDs []int64) error {
	if len(entityIDs) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	placeholders := placeholderList(len(entityIDs))
	args := int64sToArgs(entityIDs)

	if _, err := tx.Exec("UPDATE references_ SET target_entity_id = NULL WHERE target_entity_id IN ("+placeholders+")", args...); err != nil {
		return fmt.Errorf("clear reference targets: %w", err)
	}
	if _, err := tx.Exec("UPDATE call_edges SET callee_entity_id = NULL WHERE callee_entity_id IN ("+placeholders+")", args...); err != nil {
		return fmt.Errorf("clear call edge targets: %w", err)
	}
	return tx.Commit()
}

// ClearResolutionForFiles wipes reference targets and call edges that
// originate from the given files, ahead of re-resolving them.
func (s *Store) ClearResolutionForFiles(fileIDs []int64) error {
	if len(fileIDs) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	placeholders := placeholderList(len(fileIDs))
	args := int64sToArgs(fileIDs)

	if _, err := tx.Exec("UPDATE references_ SET target_entity_id = NULL WHERE file_id IN ("+placeholders+")", args...); err != nil {
		return fmt.Errorf("clear references for files: %w", err)
	}
	if _, err := tx.Exec("UPDATE call_edges SET callee_entity_id = NULL WHERE file_id IN ("+placeholders+")", args...); err != nil {
		return fmt.Errorf("clear call edges for files: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM file_deps WHERE from_file_id IN ("+placeholders+")", args...); err != nil {
		return fmt.Errorf("clear file deps for files: %w", err)
	}
	return tx.Commit()
}
