// Package watcher implements the filesystem watch loop: it recursively
// subscribes to the repository tree via fsnotify, debounces bursts of
// events, and hands the indexer a batch of changed paths plus a full-rescan
// flag when the notification channel overflows.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the trailing debounce window applied before a batch of
// filesystem events is flushed to the indexer.
const DefaultDebounce = 250 * time.Millisecond

// Batch is one flushed set of changes: paths to (re)index, paths removed,
// and whether the notification channel overflowed and a full rescan should
// be performed instead of trusting the accumulated path set.
type Batch struct {
	Changed       []string
	Removed       []string
	FullRescan    bool
}

// ShouldIgnoreDir decides whether a directory should not be watched (VCS
// metadata, the state directory, etc). The caller supplies this so the
// watcher stays agnostic to the scanner's ignore-file logic.
type ShouldIgnoreDir func(path string) bool

// Watcher subscribes to a repository root and emits debounced Batches.
type Watcher struct {
	root       string
	ignoreDir  ShouldIgnoreDir
	debounce   time.Duration
	fsw        *fsnotify.Watcher
	logger     *slog.Logger

	mu        sync.Mutex
	changed   map[string]bool
	removed   map[string]bool
	overflow  bool
	timer     *time.Timer
	batches   chan Batch
}

// New creates a Watcher rooted at root. ignoreDir may be nil, in which case
// every directory is watched.
func New(root string, ignoreDir ShouldIgnoreDir, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watcher: new fsnotify watcher: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if ignoreDir == nil {
		ignoreDir = func(string) bool { return false }
	}
	return &Watcher{
		root:      root,
		ignoreDir: ignoreDir,
		debounce:  DefaultDebounce,
		fsw:       fsw,
		logger:    logger,
		changed:   make(map[string]bool),
		removed:   make(map[string]bool),
		batches:   make(chan Batch, 8),
	}, nil
}

// Batches returns the channel Batches are delivered on. Closed when Run
// returns.
func (w *Watcher) Batches() <-chan Batch { return w.batches }

// Run subscribes directories recursively and processes events until ctx is
// cancelled. It never returns an error from event handling; only setup
// failures are returned.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.addTreeWatches(w.root); err != nil {
		return fmt.Errorf("watcher: add watches: %w", err)
	}
	defer w.fsw.Close()
	defer close(w.batches)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			if err == fsnotify.ErrEventOverflow {
				w.logger.Warn("watcher: event queue overflow, forcing full rescan")
				w.markOverflow()
				continue
			}
			w.logger.Warn("watcher: fsnotify error", "error", err)
		}
	}
}

func (w *Watcher) addTreeWatches(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.ignoreDir(path) {
			return filepath.SkipDir
		}
		if addErr := w.fsw.Add(path); addErr != nil {
			w.logger.Warn("watcher: failed to add watch", "path", path, "error", addErr)
		}
		return nil
	})
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	path := event.Name

	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if !w.ignoreDir(path) {
				if err := w.addTreeWatches(path); err != nil {
					w.logger.Warn("watcher: failed to watch new directory", "path", path, "error", err)
				}
			}
			return
		}
	}

	w.mu.Lock()
	switch {
	case event.Op&fsnotify.Remove != 0 || event.Op&fsnotify.Rename != 0:
		delete(w.changed, path)
		w.removed[path] = true
	default:
		delete(w.removed, path)
		w.changed[path] = true
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flush)
	w.mu.Unlock()
}

func (w *Watcher) markOverflow() {
	w.mu.Lock()
	w.overflow = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flush)
	w.mu.Unlock()
}

func (w *Watcher) flush() {
	w.mu.Lock()
	batch := Batch{FullRescan: w.overflow}
	for p := range w.changed {
		batch.Changed = append(batch.Changed, p)
	}
	for p := range w.removed {
		batch.Removed = append(batch.Removed, p)
	}
	w.changed = make(map[string]bool)
	w.removed = make(map[string]bool)
	w.overflow = false
	w.mu.Unlock()

	if len(batch.Changed) == 0 && len(batch.Removed) == 0 && !batch.FullRescan {
		return
	}
	select {
	case w.batches <- batch:
	default:
		// Queue full: drop the oldest queued batch and enqueue this one
		// marked for a full rescan, since the dropped paths are lost.
		w.logger.Warn("watcher: batch channel full, dropping oldest batch and marking full rescan")
		select {
		case <-w.batches:
		default:
		}
		batch.FullRescan = true
		select {
		case w.batches <- batch:
		default:
		}
	}
}
