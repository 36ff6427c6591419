package scan

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// ignorePattern is a single parsed .gitignore line, adapted from
// standardbeagle-lci's gitignore matcher: fast paths for exact/prefix/suffix
// patterns, falling back to a compiled regex for anything with character
// classes or multiple wildcards.
type ignorePattern struct {
	negate    bool
	directory bool
	absolute  bool

	kind     patternKind
	literal  string
	prefix   string
	suffix   string
	compiled *regexp.Regexp
}

type patternKind int

const (
	kindExact patternKind = iota
	kindPrefix
	kindSuffix
	kindRegex
)

// ignoreMatcher is the scanner's non-git fallback. It reads only the
// .gitignore at the root; .gitignore files in subdirectories are not
// consulted. Patterns apply in file order, so a later pattern overrides an
// earlier one.
type ignoreMatcher struct {
	patterns []ignorePattern
}

func loadIgnoreMatcher(root string) (*ignoreMatcher, error) {
	m := &ignoreMatcher{}
	if err := m.loadFile(filepath.Join(root, ".gitignore")); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *ignoreMatcher) loadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		m.patterns = append(m.patterns, parseIgnorePattern(line))
	}
	return sc.Err()
}

func parseIgnorePattern(line string) ignorePattern {
	var p ignorePattern
	if strings.HasPrefix(line, "!") {
		p.negate = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		p.directory = true
		line = strings.TrimSuffix(line, "/")
	}
	if strings.HasPrefix(line, "/") {
		p.absolute = true
		line = line[1:]
	}

	switch {
	case !strings.ContainsAny(line, "*?["):
		p.kind, p.literal = kindExact, line
	case strings.Count(line, "*") == 1 && !strings.ContainsAny(line, "?[") && strings.HasPrefix(line, "*"):
		p.kind, p.suffix = kindSuffix, line[1:]
	case strings.Count(line, "*") == 1 && !strings.ContainsAny(line, "?[") && strings.HasSuffix(line, "*"):
		p.kind, p.prefix = kindPrefix, line[:len(line)-1]
	default:
		p.kind = kindRegex
		p.compiled = regexp.MustCompile(globToRegex(line))
	}
	return p
}

func globToRegex(pattern string) string {
	re := regexp.QuoteMeta(pattern)
	re = strings.ReplaceAll(re, `\*`, `.*`)
	re = strings.ReplaceAll(re, `\?`, `.`)
	re = strings.ReplaceAll(re, `\[`, `[`)
	re = strings.ReplaceAll(re, `\]`, `]`)
	return "^" + re + "$"
}

// ShouldIgnore reports whether relPath (forward-slash, relative to root)
// should be skipped. isDir must reflect the filesystem entry's actual type.
func (m *ignoreMatcher) ShouldIgnore(relPath string, isDir bool) bool {
	relPath = filepath.ToSlash(relPath)
	ignored := false
	for _, p := range m.patterns {
		if matchesIgnorePattern(p, relPath, isDir) {
			ignored = !p.negate
		}
	}
	return ignored
}

func matchesIgnorePattern(p ignorePattern, path string, isDir bool) bool {
	if p.directory && !isDir {
		// A directory pattern still applies to files nested beneath a
		// matching directory component.
		parts := strings.Split(path, "/")
		for i := range parts {
			if matchLiteral(p, strings.Join(parts[:i+1], "/")) {
				return true
			}
		}
		return false
	}

	if p.absolute {
		return matchLiteral(p, path)
	}

	if matchLiteral(p, path) {
		return true
	}
	parts := strings.Split(path, "/")
	for i := 1; i < len(parts); i++ {
		if matchLiteral(p, strings.Join(parts[i:], "/")) {
			return true
		}
	}
	return false
}

func matchLiteral(p ignorePattern, s string) bool {
	switch p.kind {
	case kindExact:
		return p.literal == s
	case kindPrefix:
		return strings.HasPrefix(s, p.prefix)
	case kindSuffix:
		return strings.HasSuffix(s, p.suffix)
	case kindRegex:
		return p.compiled.MatchString(s)
	}
	return false
}
