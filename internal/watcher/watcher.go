// Package watcher keeps the text cache and rendered pages in sync with
// files on disk. It watches the corpus roots with fsnotify, debounces
// write bursts, and invokes invalidation callbacks per changed file.
// Sidecar cache directories are never watched.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/pryzmatpl/pdfscan/internal/cache"
)

const defaultDebounce = 400 * time.Millisecond

// Watcher watches corpus roots and reports document changes and removals.
type Watcher struct {
	roots      []string
	extensions []string
	recursive  bool
	onChange   func(path string)
	onRemove   func(path string)
	debounce   time.Duration
	skipDirs   map[string]struct{}
	logger     *zap.Logger

	mu       sync.Mutex
	fsw      *fsnotify.Watcher
	timers   map[string]*time.Timer
	started  bool
	done     chan struct{}
	stopOnce sync.Once
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// WithDebounce overrides the write-coalescing window.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithSkipDirs adds directory names (not paths) that are never watched,
// in addition to the sidecar cache directory.
func WithSkipDirs(names ...string) Option {
	return func(w *Watcher) {
		for _, n := range names {
			w.skipDirs[n] = struct{}{}
		}
	}
}

// New creates a watcher over roots. onChange is invoked after a matching
// file settles following a create or write; onRemove when it disappears.
// extensions filter which files are reported (empty matches all).
func New(roots, extensions []string, recursive bool, onChange, onRemove func(path string), opts ...Option) *Watcher {
	w := &Watcher{
		roots:     roots,
		recursive: recursive,
		onChange:  onChange,
		onRemove:  onRemove,
		debounce:  defaultDebounce,
		skipDirs:  map[string]struct{}{cache.DefaultDirName: {}},
		timers:    make(map[string]*time.Timer),
		done:      make(chan struct{}),
	}
	for _, ext := range extensions {
		w.extensions = append(w.extensions, normalizeExt(ext))
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins watching. It returns an error if any root cannot be
// watched, and runs until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return fmt.Errorf("creating watcher: %w", err)
	}
	w.fsw = fsw
	for _, root := range w.roots {
		if err := w.watchTree(root); err != nil {
			_ = fsw.Close()
			w.fsw = nil
			w.mu.Unlock()
			return fmt.Errorf("watching %s: %w", root, err)
		}
	}
	w.started = true
	if w.logger != nil {
		w.logger.Debug("watcher started",
			zap.Strings("roots", w.roots),
			zap.Strings("extensions", w.extensions),
			zap.Bool("recursive", w.recursive))
	}
	w.mu.Unlock()
	go w.run(ctx)
	return nil
}

// Stop stops the watcher and cancels pending debounced callbacks.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started || w.fsw == nil {
		w.mu.Unlock()
		return
	}
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
	_ = w.fsw.Close()
	w.fsw = nil
	w.started = false
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
}

func (w *Watcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			if err != nil && w.logger != nil {
				w.logger.Warn("watcher error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	path := ev.Name
	if w.skipped(path) {
		return
	}
	if w.logger != nil {
		w.logger.Debug("watcher event", zap.String("op", ev.Op.String()), zap.String("path", path))
	}
	if ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename) {
		w.cancelTimer(path)
		if w.matchExtension(path) && w.onRemove != nil {
			w.onRemove(path)
		}
		return
	}
	if ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Write) {
		info, err := os.Stat(path)
		if err == nil && info.IsDir() {
			w.handleNewDirectory(path)
			return
		}
		if w.matchExtension(path) {
			w.scheduleChange(path)
		}
	}
}

// handleNewDirectory watches a directory that appeared after Start and
// reports any matching files already inside it. A directory moved into a
// root arrives as a single Create event, so its contents are scanned here.
func (w *Watcher) handleNewDirectory(dir string) {
	w.mu.Lock()
	recursive := w.recursive
	fsw := w.fsw
	w.mu.Unlock()
	if fsw == nil || !recursive {
		return
	}
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if _, skip := w.skipDirs[d.Name()]; skip {
				return fs.SkipDir
			}
			if werr := fsw.Add(path); werr != nil && w.logger != nil {
				w.logger.Warn("watcher add failed", zap.String("path", path), zap.Error(werr))
			}
			return nil
		}
		if w.matchExtension(path) {
			w.scheduleChange(path)
		}
		return nil
	})
}

// watchTree registers root (and its subdirectories when recursive) with
// the fsnotify watcher. Caller holds w.mu.
func (w *Watcher) watchTree(root string) error {
	root = filepath.Clean(root)
	info, err := os.Stat(root)
	if err != nil {
		return err
	}
	if !info.IsDir() || !w.recursive {
		return w.fsw.Add(root)
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if _, skip := w.skipDirs[d.Name()]; skip && path != root {
			return fs.SkipDir
		}
		return w.fsw.Add(path)
	})
}

func (w *Watcher) scheduleChange(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[path]; ok {
		t.Stop()
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()
		if w.logger != nil {
			w.logger.Debug("watcher change settled", zap.String("path", path))
		}
		if w.onChange != nil {
			w.onChange(path)
		}
	})
}

func (w *Watcher) cancelTimer(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[path]; ok {
		t.Stop()
		delete(w.timers, path)
	}
}

// skipped reports whether any element of path names a skipped directory.
func (w *Watcher) skipped(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(filepath.Clean(path)), "/") {
		if _, ok := w.skipDirs[part]; ok {
			return true
		}
	}
	return false
}

func (w *Watcher) matchExtension(path string) bool {
	if len(w.extensions) == 0 {
		return true
	}
	ext := normalizeExt(filepath.Ext(path))
	for _, e := range w.extensions {
		if e == ext {
			return true
		}
	}
	return false
}

func normalizeExt(ext string) string {
	return strings.TrimPrefix(strings.ToLower(ext), ".")
}
