// Package server exposes the pdfscan engine over HTTP: indexing jobs,
// cached text retrieval, page rendering, correlation analysis, and search.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/pryzmatpl/pdfscan/internal/cache"
	"github.com/pryzmatpl/pdfscan/internal/config"
	"github.com/pryzmatpl/pdfscan/internal/indexer"
	"github.com/pryzmatpl/pdfscan/internal/render"
	"github.com/pryzmatpl/pdfscan/internal/search"
)

// Server is the HTTP front end. It owns no engine state beyond the index
// job registry; everything else is delegated to the injected components.
type Server struct {
	cfg      *config.Config
	cache    *cache.TieredTextCache
	indexer  *indexer.Indexer
	renderer *render.Renderer
	searcher *search.Searcher
	jobs     *jobRegistry
	logger   *zap.Logger
	server   *http.Server
}

// New creates a server with the given dependencies.
func New(
	cfg *config.Config,
	c *cache.TieredTextCache,
	idx *indexer.Indexer,
	r *render.Renderer,
	s *search.Searcher,
	logger *zap.Logger,
) *Server {
	return &Server{
		cfg:      cfg,
		cache:    c,
		indexer:  idx,
		renderer: r,
		searcher: s,
		jobs:     newJobRegistry(),
		logger:   logger,
	}
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/index", s.handleIndexStart)
	r.Get("/api/v1/index/{id}", s.handleIndexStatus)
	r.Get("/api/v1/documents/text", s.handleDocumentText)
	r.Get("/api/v1/render", s.handleRender)
	r.Post("/api/v1/analyze", s.handleAnalyze)
	r.Post("/api/v1/search", s.handleSearch)
	r.Get("/health", s.handleHealth)

	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.routes(),
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
