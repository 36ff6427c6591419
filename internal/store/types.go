package store

import "time"

// File is a single source file observed under the repository root.
type File struct {
	ID          int64
	Path        string
	Language    string
	ContentHash string
	Size        int64
	MTimeNs     int64
	IndexedAt   time.Time
	ParseOK     bool
}

// Entity is a named definition in source: a function, type, module, etc.
type Entity struct {
	ID               int64
	FileID           int64
	Name             string
	Kind             string
	QualifiedName    string
	Visibility       string
	StartLine        int
	StartCol         int
	EndLine          int
	EndCol           int
	SignatureExcerpt string
	SignatureHash    string
	ParentEntityID   *int64
}

// EntityFragment is an optional sub-span of an Entity (doc comment, parameter
// list text). The indexer emits none; signature excerpts are taken from the
// source text at extraction time.
type EntityFragment struct {
	ID        int64
	EntityID  int64
	Kind      string
	Text      string
	StartLine int
	StartCol  int
}

// Scope is a lexical scope record. The indexer emits none; within-file
// resolution goes by name, not by scope.
type Scope struct {
	ID            int64
	FileID        int64
	ParentScopeID *int64
	Kind          string
	StartLine     int
	EndLine       int
}

// Reference is an identifier use site; may or may not resolve to an Entity.
type Reference struct {
	ID             int64
	FileID         int64
	ScopeID        *int64
	Line           int
	Col            int
	EndLine        int
	EndCol         int
	TargetName     string
	TargetEntityID *int64
	IsCall         bool
}

// Import is a module-level dependency edge source.
type Import struct {
	ID           int64
	FileID       int64
	Raw          string
	ResolvedPath string
}

// CallEdge is a resolved or name-only call from one entity to another.
type CallEdge struct {
	ID             int64
	CallerEntityID int64
	CalleeName     string
	CalleeEntityID *int64
	FileID         int64
	Line           int
}

// FileDep is a derived file-to-file edge (import or resolved call).
type FileDep struct {
	ID         int64
	FromFileID int64
	ToFileID   int64
	Kind       string // "import" | "call"
}

// CloneFingerprint is a normalized content hash of a syntactic block.
type CloneFingerprint struct {
	ID             int64
	FileID         int64
	BlockStartLine int
	BlockEndLine   int
	Hash           string
	Weight         int
}

// Reexport records a module re-export edge: file re-exports originalEntity
// under exportedName, sourced through sourceImportID.
type Reexport struct {
	ID             int64
	FileID         int64
	LocalName      string
	SourceImportID int64
	ExportedName   string
}
