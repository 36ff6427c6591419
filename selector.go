package lumora

import (
	"strings"

	"github.com/jward/lumora/internal/store"
)

// Selector is a parsed reference to a file or symbol, per the grammar:
//
//	selector := "file:" <repo-relative-path>
//	          | "symbol:" <name>
//	          | "symbol_name:" <lang> ":" <name>
//	          | <name>                  # shorthand for symbol:
//	          | <repo-relative-path>    # shorthand for file:
type Selector struct {
	Kind     SelectorKind
	Path     string
	Name     string
	Language string
}

type SelectorKind int

const (
	SelectorSymbol SelectorKind = iota
	SelectorFile
	SelectorSymbolName
)

// ParseSelector parses raw selector text. Shorthand forms are disambiguated
// by the presence of a path separator or a recognized source extension.
func ParseSelector(raw string) Selector {
	switch {
	case strings.HasPrefix(raw, "file:"):
		return Selector{Kind: SelectorFile, Path: strings.TrimPrefix(raw, "file:")}
	case strings.HasPrefix(raw, "symbol_name:"):
		rest := strings.TrimPrefix(raw, "symbol_name:")
		parts := strings.SplitN(rest, ":", 2)
		if len(parts) == 2 {
			return Selector{Kind: SelectorSymbolName, Language: parts[0], Name: parts[1]}
		}
		return Selector{Kind: SelectorSymbol, Name: rest}
	case strings.HasPrefix(raw, "symbol:"):
		return Selector{Kind: SelectorSymbol, Name: strings.TrimPrefix(raw, "symbol:")}
	case looksLikePath(raw):
		return Selector{Kind: SelectorFile, Path: raw}
	default:
		return Selector{Kind: SelectorSymbol, Name: raw}
	}
}

func looksLikePath(raw string) bool {
	if strings.ContainsRune(raw, '/') {
		return true
	}
	ext := strings.ToLower(extOf(raw))
	switch ext {
	case ".go", ".ts", ".tsx", ".js", ".jsx", ".py", ".rs", ".c", ".h", ".cpp",
		".hpp", ".cc", ".java", ".php", ".rb":
		return true
	}
	return false
}

func extOf(path string) string {
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		return path[i:]
	}
	return ""
}

// ResolveFiles resolves a selector to the set of Files it denotes: a file
// selector resolves directly by path; a symbol selector resolves to the
// files containing a matching definition.
func (e *Engine) ResolveFiles(sel Selector) ([]*store.File, error) {
	switch sel.Kind {
	case SelectorFile:
		f, err := e.store.FileByPath(sel.Path)
		if err != nil {
			return nil, err
		}
		if f == nil {
			return nil, nil
		}
		return []*store.File{f}, nil
	default:
		ents, err := e.entitiesForSelector(sel)
		if err != nil {
			return nil, err
		}
		seen := make(map[int64]bool)
		var files []*store.File
		for _, ent := range ents {
			if seen[ent.FileID] {
				continue
			}
			seen[ent.FileID] = true
			f, err := e.store.FileByID(ent.FileID)
			if err != nil {
				return nil, err
			}
			if f != nil {
				files = append(files, f)
			}
		}
		return files, nil
	}
}

// entitiesForSelector resolves a symbol/symbol_name selector to its matching
// Entity rows, by exact name (qualified_name is matched as a fallback).
func (e *Engine) entitiesForSelector(sel Selector) ([]*store.Entity, error) {
	ents, err := e.store.EntitiesByName(sel.Name)
	if err != nil {
		return nil, err
	}
	if sel.Kind == SelectorSymbolName && sel.Language != "" {
		var filtered []*store.Entity
		for _, ent := range ents {
			f, err := e.store.FileByID(ent.FileID)
			if err != nil {
				return nil, err
			}
			if f != nil && f.Language == sel.Language {
				filtered = append(filtered, ent)
			}
		}
		return filtered, nil
	}
	return ents, nil
}
