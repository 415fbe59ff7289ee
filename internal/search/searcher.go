// Package search finds corpus documents containing a phrase, using the
// tiered text cache so repeated searches of an unchanged corpus avoid
// re-extraction.
package search

import (
	"context"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pryzmatpl/pdfscan/internal/cache"
	"github.com/pryzmatpl/pdfscan/internal/indexer"
	"github.com/pryzmatpl/pdfscan/pkg/utils"
)

// Searcher scans documents under corpus roots for a phrase.
type Searcher struct {
	cache   *cache.TieredTextCache
	indexer *indexer.Indexer
	logger  *zap.Logger
}

// Option configures a Searcher.
type Option func(*Searcher)

// WithLogger sets a logger for per-file failures.
func WithLogger(l *zap.Logger) Option {
	return func(s *Searcher) { s.logger = l }
}

// New creates a searcher. idx is used for file enumeration so search and
// indexing agree on which files belong to the corpus.
func New(c *cache.TieredTextCache, idx *indexer.Indexer, opts ...Option) *Searcher {
	s := &Searcher{cache: c, indexer: idx}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search returns the sorted paths of documents under roots whose text
// contains phrase. An empty phrase matches every document. One unreadable or
// malformed file is logged and skipped; it never fails the search.
func (s *Searcher) Search(ctx context.Context, phrase string, roots []string) ([]string, error) {
	var (
		mu      sync.Mutex
		matches []string
	)
	// One worker per root, mirroring how a user partitions a corpus.
	g, gctx := errgroup.WithContext(ctx)
	for _, root := range roots {
		g.Go(func() error {
			files, err := s.indexer.Enumerate([]string{root})
			if err != nil {
				return err
			}
			for _, path := range files {
				if err := gctx.Err(); err != nil {
					return err
				}
				if phrase == "" {
					mu.Lock()
					matches = append(matches, path)
					mu.Unlock()
					continue
				}
				text, err := s.cache.GetOrExtract(path, nil)
				if err != nil {
					if s.logger != nil {
						s.logger.Warn("search skipping file", zap.String("path", path), zap.Error(err))
					}
					continue
				}
				if strings.Contains(text, phrase) {
					if s.logger != nil {
						i := strings.Index(text, phrase)
						s.logger.Debug("phrase match",
							zap.String("path", path),
							zap.String("context", utils.Truncate(text[i:], 80)))
					}
					mu.Lock()
					matches = append(matches, path)
					mu.Unlock()
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}
