// Package indexer enumerates document files under corpus roots and populates
// the text cache with a bounded worker pool, reporting progress as it goes.
package indexer

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pryzmatpl/pdfscan/internal/cache"
)

// Progress is one indexing progress event. Total is fixed at enumeration
// time and never changes mid-run.
type Progress struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

// Run is a single indexing run: a progress stream plus completion.
type Run struct {
	total    int
	progress chan Progress
	done     chan struct{}
	err      error
}

// Progress returns the stream of progress events. The channel is closed when
// the run completes; the final event carries Completed == Total.
func (r *Run) Progress() <-chan Progress { return r.progress }

// Total returns the number of files enumerated for this run.
func (r *Run) Total() int { return r.total }

// Wait blocks until the run completes or ctx is cancelled.
func (r *Run) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return r.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Indexer populates a tiered text cache from the documents under one or more roots.
type Indexer struct {
	cache      *cache.TieredTextCache
	extensions []string
	chunkSize  int
	maxWorkers int
	skipDirs   []string
	logger     *zap.Logger
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithLogger sets a logger for debug output (file extracted, file skipped, etc.).
func WithLogger(l *zap.Logger) Option {
	return func(idx *Indexer) { idx.logger = l }
}

// WithSkipDirs sets directory names excluded from enumeration (the cache
// sidecar directory is always excluded).
func WithSkipDirs(names ...string) Option {
	return func(idx *Indexer) { idx.skipDirs = append(idx.skipDirs, names...) }
}

// New creates an indexer over the given cache. extensions filters enumerated
// files (case-insensitive, with leading dot); chunkSize is the number of
// files per worker task; maxWorkers bounds concurrent workers.
func New(c *cache.TieredTextCache, extensions []string, chunkSize, maxWorkers int, opts ...Option) *Indexer {
	if chunkSize <= 0 {
		chunkSize = 20
	}
	if maxWorkers <= 0 {
		maxWorkers = 8
	}
	idx := &Indexer{
		cache:      c,
		extensions: extensions,
		chunkSize:  chunkSize,
		maxWorkers: maxWorkers,
		skipDirs:   []string{cache.DefaultDirName},
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// Index enumerates every matching file under roots, then extracts each one
// into the cache with a bounded worker pool. Enumeration is synchronous so
// the returned Run reports a fixed total immediately. Individual extraction
// failures are logged and recorded as empty text; they never stop the run.
func (idx *Indexer) Index(ctx context.Context, roots []string) (*Run, error) {
	files, err := idx.Enumerate(roots)
	if err != nil {
		return nil, err
	}

	run := &Run{
		total: len(files),
		// Buffered for every event so workers never block on a slow consumer.
		progress: make(chan Progress, len(files)+1),
		done:     make(chan struct{}),
	}
	run.progress <- Progress{Completed: 0, Total: run.total}

	if len(files) == 0 {
		close(run.progress)
		close(run.done)
		return run, nil
	}

	var completed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.maxWorkers)

	go func() {
		defer close(run.done)
		defer close(run.progress)
		for start := 0; start < len(files); start += idx.chunkSize {
			end := start + idx.chunkSize
			if end > len(files) {
				end = len(files)
			}
			chunk := files[start:end]
			g.Go(func() error {
				for _, path := range chunk {
					if err := gctx.Err(); err != nil {
						return err
					}
					if _, err := idx.cache.GetOrExtract(path, nil); err != nil {
						if idx.logger != nil {
							idx.logger.Warn("indexing file failed",
								zap.String("path", path), zap.Error(err))
						}
					} else if idx.logger != nil {
						idx.logger.Debug("file indexed", zap.String("path", path))
					}
					run.progress <- Progress{
						Completed: int(completed.Add(1)),
						Total:     run.total,
					}
				}
				return nil
			})
		}
		run.err = g.Wait()
	}()

	return run, nil
}

// Enumerate walks roots and returns the sorted, deduplicated list of matching
// document files. Roots may be files or directories; an unreadable root is an
// error, unreadable entries below it are skipped.
func (idx *Indexer) Enumerate(roots []string) ([]string, error) {
	var files []string
	for _, root := range roots {
		absRoot, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("absolute path: %w", err)
		}
		info, err := os.Stat(absRoot)
		if err != nil {
			return nil, fmt.Errorf("stat root: %w", err)
		}
		if !info.IsDir() {
			if idx.extensionAllowed(absRoot) {
				files = append(files, absRoot)
			}
			continue
		}
		walkErr := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if idx.logger != nil {
					idx.logger.Warn("skipping unreadable entry", zap.String("path", path), zap.Error(err))
				}
				return nil
			}
			if d.IsDir() {
				if idx.shouldSkipDir(d.Name()) {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() || !idx.extensionAllowed(path) {
				return nil
			}
			files = append(files, path)
			return nil
		})
		if walkErr != nil {
			return nil, fmt.Errorf("walk %s: %w", absRoot, walkErr)
		}
	}
	sort.Strings(files)
	return dedup(files), nil
}

func (idx *Indexer) shouldSkipDir(name string) bool {
	for _, skip := range idx.skipDirs {
		if name == skip {
			return true
		}
	}
	return false
}

func (idx *Indexer) extensionAllowed(path string) bool {
	if len(idx.extensions) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, allowed := range idx.extensions {
		if strings.ToLower(allowed) == ext {
			return true
		}
	}
	return false
}

func dedup(sorted []string) []string {
	out := sorted[:0]
	for i, s := range sorted {
		if i == 0 || s != sorted[i-1] {
			out = append(out, s)
		}
	}
	return out
}
