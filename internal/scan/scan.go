// Package scan implements the Content Hasher & File Scanner: it walks a
// repository honoring ignore rules and emits (path, content_hash, size,
// mtime, language) tuples for every file found, without touching the Graph
// Store — diffing against prior state is the Indexer's job.
package scan

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/jward/lumora/internal/extract"
)

// DefaultBinaryCap is the size, in bytes, above which a file is treated as
// opaque: hashed and recorded, but never handed to an extractor.
const DefaultBinaryCap = 2 * 1024 * 1024

// vcsSkipDirs are directories the walker fallback never descends into,
// matching the teacher's skipDirs. The state directory is skipped
// separately, by isStatePath.
var vcsSkipDirs = map[string]bool{
	"node_modules": true,
	"vendor":       true,
	"__pycache__":  true,
	".git":         true,
}

// File is one scanned filesystem entry.
type File struct {
	Path        string // absolute path
	Language    string // "none" when unsupported/oversized
	ContentHash string // hex sha256 of the raw bytes
	Size        int64
	ModTimeNs   int64
}

// Scanner discovers files under a root directory and hashes their content.
type Scanner struct {
	root      string
	registry  *extract.Registry
	binaryCap int64
	stateDir  string
}

// NewScanner builds a Scanner rooted at root. stateDir, if non-empty, is
// always skipped (it holds the Graph Store's own database file).
func NewScanner(root string, registry *extract.Registry, stateDir string, binaryCap int64) *Scanner {
	if binaryCap <= 0 {
		binaryCap = DefaultBinaryCap
	}
	return &Scanner{root: root, registry: registry, binaryCap: binaryCap, stateDir: stateDir}
}

// Scan lists every candidate file under the root (via git ls-files when the
// root is a git work tree, otherwise a filesystem walk honoring .gitignore)
// and hashes each one.
func (s *Scanner) Scan(ctx context.Context) ([]File, error) {
	paths, err := s.listPaths(ctx)
	if err != nil {
		return nil, err
	}

	files := make([]File, 0, len(paths))
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f, ok, err := s.statAndHash(p)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", p, err)
		}
		if ok {
			files = append(files, f)
		}
	}
	return files, nil
}

func (s *Scanner) listPaths(ctx context.Context) ([]string, error) {
	if paths, err := s.gitListFiles(ctx); err == nil {
		return paths, nil
	}
	return s.walkListFiles()
}

// gitListFiles shells out to git ls-files, mirroring the teacher's
// gitListFiles: tracked and untracked-but-not-ignored paths, respecting
// .gitignore, .git/info/exclude, and the global excludes file.
func (s *Scanner) gitListFiles(ctx context.Context) ([]string, error) {
	cmd := exec.CommandContext(ctx, "git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = s.root
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("git ls-files: %w", err)
	}

	var paths []string
	for _, line := range strings.Split(stdout.String(), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		abs := filepath.Join(s.root, line)
		if s.isStatePath(abs) {
			continue
		}
		paths = append(paths, abs)
	}
	return paths, nil
}

// walkListFiles falls back to a plain filesystem walk for non-git roots,
// applying an adapted .gitignore matcher instead of relying on git itself.
func (s *Scanner) walkListFiles() ([]string, error) {
	matcher, err := loadIgnoreMatcher(s.root)
	if err != nil {
		return nil, fmt.Errorf("load .gitignore: %w", err)
	}

	var paths []string
	err = filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == s.root {
			return nil
		}
		rel, relErr := filepath.Rel(s.root, path)
		if relErr != nil {
			return relErr
		}
		if s.isStatePath(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if vcsSkipDirs[d.Name()] || strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			if matcher.ShouldIgnore(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if matcher.ShouldIgnore(rel, false) {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk directory: %w", err)
	}
	return paths, nil
}

// ShouldIgnoreDir reports whether a directory should be excluded from a
// recursive watch: VCS/build directories, dotfiles, the state directory, and
// (for non-git roots) anything matching .gitignore. Used by the watcher to
// mirror the scanner's own walk rules when registering fsnotify watches.
func (s *Scanner) ShouldIgnoreDir(path string) bool {
	if s.isStatePath(path) {
		return true
	}
	name := filepath.Base(path)
	if vcsSkipDirs[name] || strings.HasPrefix(name, ".") {
		return true
	}
	matcher, err := loadIgnoreMatcher(s.root)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(s.root, path)
	if err != nil {
		return false
	}
	return matcher.ShouldIgnore(rel, true)
}

func (s *Scanner) isStatePath(path string) bool {
	if s.stateDir == "" {
		return false
	}
	rel, err := filepath.Rel(s.stateDir, path)
	return err == nil && !strings.HasPrefix(rel, "..")
}

func (s *Scanner) statAndHash(path string) (File, bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return File{}, false, nil
		}
		return File{}, false, err
	}
	if info.IsDir() {
		return File{}, false, nil
	}

	lang := ""
	if s.registry != nil {
		lang = s.registry.LanguageForExt(strings.ToLower(filepath.Ext(path)))
	}
	if info.Size() > s.binaryCap {
		lang = "none"
	} else if lang == "" {
		lang = "none"
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return File{}, false, err
	}
	sum := sha256.Sum256(content)

	return File{
		Path:        path,
		Language:    lang,
		ContentHash: hex.EncodeToString(sum[:]),
		Size:        info.Size(),
		ModTimeNs:   info.ModTime().UnixNano(),
	}, true, nil
}
