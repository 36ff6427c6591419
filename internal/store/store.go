// Package store is the SQLite-backed Graph Store: durable entities, edges,
// file records, and clone fingerprints, with transactional upserts and
// indexed lookups.
package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the embedded relational data access layer for the code graph.
// Single writer, many readers: callers serialize commits through one
// transaction per file, while queries run directly against db.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database at dbPath with WAL mode, foreign keys,
// and a busy timeout suited to a single-writer/many-reader workload.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for callers that need raw queries or
// transactions (such as the QueryEngine's direct SELECTs).
func (s *Store) DB() *sql.DB {
	return s.db
}

// SchemaVersion is bumped whenever the DDL changes shape. On mismatch the
// database is rebuilt from scratch rather than migrated (see DESIGN NOTES
// "Schema evolution").
const SchemaVersion = "1"

// Migrate creates all tables and indexes if they don't already exist, and
// rebuilds the database from scratch if the stored schema version doesn't
// match SchemaVersion.
func (s *Store) Migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT)`); err != nil {
		return fmt.Errorf("migrate: create meta: %w", err)
	}

	var stored string
	err := s.db.QueryRow(`SELECT value FROM meta WHERE key = 'schema_version'`).Scan(&stored)
	if err == nil && stored != SchemaVersion {
		if err := s.rebuild(); err != nil {
			return fmt.Errorf("migrate: rebuild on schema mismatch: %w", err)
		}
	}

	if _, err := s.db.Exec(schemaDDL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if _, err := s.db.Exec(
		`INSERT INTO meta (key, value) VALUES ('schema_version', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, SchemaVersion,
	); err != nil {
		return fmt.Errorf("migrate: store schema version: %w", err)
	}
	return nil
}

// rebuild drops every known table. Called only on a schema-version mismatch;
// the index is fully regenerable, so this is treated as "rebuild", not
// "migrate".
func (s *Store) rebuild() error {
	tables := []string{
		"clone_fingerprints", "file_deps", "reexports", "call_edges",
		"reference_resolutions", "references_", "imports", "scopes",
		"entity_fragments", "entities", "files",
	}
	for _, t := range tables {
		if _, err := s.db.Exec("DROP TABLE IF EXISTS " + t); err != nil {
			return fmt.Errorf("drop %s: %w", t, err)
		}
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS files (
  id              INTEGER PRIMARY KEY,
  path            TEXT NOT NULL UNIQUE,
  language        TEXT NOT NULL,
  content_hash    TEXT,
  size            INTEGER NOT NULL DEFAULT 0,
  mtime_ns        INTEGER NOT NULL DEFAULT 0,
  indexed_at      TIMESTAMP,
  parse_ok        BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS entities (
  id                INTEGER PRIMARY KEY,
  file_id           INTEGER NOT NULL REFERENCES files(id),
  name              TEXT NOT NULL,
  kind              TEXT NOT NULL,
  qualified_name    TEXT,
  visibility        TEXT,
  start_line        INTEGER NOT NULL,
  start_col         INTEGER NOT NULL,
  end_line          INTEGER NOT NULL,
  end_col           INTEGER NOT NULL,
  signature_excerpt TEXT,
  signature_hash    TEXT,
  parent_entity_id  INTEGER REFERENCES entities(id),
  UNIQUE(file_id, name, kind, start_line, start_col)
);

CREATE TABLE IF NOT EXISTS entity_fragments (
  id          INTEGER PRIMARY KEY,
  entity_id   INTEGER NOT NULL REFERENCES entities(id),
  kind        TEXT NOT NULL,
  text        TEXT,
  start_line  INTEGER,
  start_col   INTEGER
);

CREATE TABLE IF NOT EXISTS scopes (
  id              INTEGER PRIMARY KEY,
  file_id         INTEGER NOT NULL REFERENCES files(id),
  parent_scope_id INTEGER REFERENCES scopes(id),
  kind            TEXT NOT NULL,
  start_line      INTEGER NOT NULL,
  end_line        INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS references_ (
  id               INTEGER PRIMARY KEY,
  file_id          INTEGER NOT NULL REFERENCES files(id),
  scope_id         INTEGER REFERENCES scopes(id),
  line             INTEGER NOT NULL,
  col              INTEGER NOT NULL,
  end_line         INTEGER NOT NULL,
  end_col          INTEGER NOT NULL,
  target_name      TEXT NOT NULL,
  target_entity_id INTEGER REFERENCES entities(id),
  is_call          BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS imports (
  id             INTEGER PRIMARY KEY,
  file_id        INTEGER NOT NULL REFERENCES files(id),
  raw            TEXT NOT NULL,
  resolved_path  TEXT
);

CREATE TABLE IF NOT EXISTS call_edges (
  id               INTEGER PRIMARY KEY,
  caller_entity_id INTEGER NOT NULL REFERENCES entities(id),
  callee_name      TEXT NOT NULL,
  callee_entity_id INTEGER REFERENCES entities(id),
  file_id          INTEGER NOT NULL REFERENCES files(id),
  line             INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS file_deps (
  id            INTEGER PRIMARY KEY,
  from_file_id  INTEGER NOT NULL REFERENCES files(id),
  to_file_id    INTEGER NOT NULL REFERENCES files(id),
  kind          TEXT NOT NULL,
  UNIQUE(from_file_id, to_file_id, kind)
);

CREATE TABLE IF NOT EXISTS clone_fingerprints (
  id                INTEGER PRIMARY KEY,
  file_id           INTEGER NOT NULL REFERENCES files(id),
  block_start_line  INTEGER NOT NULL,
  block_end_line    INTEGER NOT NULL,
  hash              TEXT NOT NULL,
  weight            INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS reexports (
  id                INTEGER PRIMARY KEY,
  file_id           INTEGER NOT NULL REFERENCES files(id),
  local_name        TEXT NOT NULL,
  source_import_id  INTEGER NOT NULL REFERENCES imports(id),
  exported_name     TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_entities_name ON entities(name);
CREATE INDEX IF NOT EXISTS idx_entities_qualified_name ON entities(qualified_name);
CREATE INDEX IF NOT EXISTS idx_entities_file ON entities(file_id);
CREATE INDEX IF NOT EXISTS idx_entities_parent ON entities(parent_entity_id);
CREATE INDEX IF NOT EXISTS idx_scopes_file ON scopes(file_id);
CREATE INDEX IF NOT EXISTS idx_scopes_parent ON scopes(parent_scope_id);
CREATE INDEX IF NOT EXISTS idx_references_file ON references_(file_id);
CREATE INDEX IF NOT EXISTS idx_references_target_name ON references_(target_name);
CREATE INDEX IF NOT EXISTS idx_references_target_entity ON references_(target_entity_id);
CREATE INDEX IF NOT EXISTS idx_imports_file ON imports(file_id);
CREATE INDEX IF NOT EXISTS idx_imports_raw ON imports(raw);
CREATE INDEX IF NOT EXISTS idx_call_edges_callee_name ON call_edges(callee_name);
CREATE INDEX IF NOT EXISTS idx_call_edges_callee_entity ON call_edges(callee_entity_id);
CREATE INDEX IF NOT EXISTS idx_call_edges_caller_entity ON call_edges(caller_entity_id);
CREATE INDEX IF NOT EXISTS idx_file_deps_from ON file_deps(from_file_id);
CREATE INDEX IF NOT EXISTS idx_file_deps_to ON file_deps(to_file_id);
CREATE INDEX IF NOT EXISTS idx_clone_fingerprints_hash ON clone_fingerprints(hash);
CREATE INDEX IF NOT EXISTS idx_clone_fingerprints_file ON clone_fingerprints(file_id);
CREATE INDEX IF NOT EXISTS idx_reexports_file ON reexports(file_id);
`

// DeleteFileData transactionally removes every record that lives and dies
// with fileID: entities, references, imports, call edges, file deps,
// fingerprints, reexports, scopes, entity fragments. Deletes in
// reverse-dependency order so foreign keys never dangle mid-transaction.
func (s *Store) DeleteFileData(fileID int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := wipeFileRecordsTx(tx, fileID); err != nil {
		return err
	}

	return tx.Commit()
}

func txInt64Column(tx *sql.Tx, query string, args ...any) ([]int64, error) {
	rows, err := tx.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
