package server

import (
	"context"
	"encoding/json"
	"errors"
	"image/png"
	"net/http"
	"os"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/pryzmatpl/pdfscan/internal/analyze"
	"github.com/pryzmatpl/pdfscan/internal/extract"
)

type indexRequest struct {
	Roots []string `json:"roots"`
}

func (s *Server) handleIndexStart(w http.ResponseWriter, r *http.Request) {
	var req indexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	roots := req.Roots
	if len(roots) == 0 {
		roots = s.cfg.Corpus.Roots
	}
	if len(roots) == 0 {
		s.respondError(w, http.StatusBadRequest, "no roots configured or provided")
		return
	}
	// The run outlives the request; polling happens via the job id.
	run, err := s.indexer.Index(context.Background(), roots)
	if err != nil {
		s.logger.Error("index start failed", zap.Error(err))
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	id := s.jobs.track(run)
	s.logger.Debug("index job started", zap.String("id", id), zap.Int("total", run.Total()))
	s.respondJSON(w, http.StatusAccepted, map[string]any{"id": id, "total": run.Total()})
}

func (s *Server) handleIndexStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	j, ok := s.jobs.get(id)
	if !ok {
		s.respondError(w, http.StatusNotFound, "unknown index job")
		return
	}
	s.respondJSON(w, http.StatusOK, j.snapshot())
}

func (s *Server) handleDocumentText(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	text, err := s.cache.GetOrExtract(path, nil)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.respondError(w, http.StatusNotFound, "document not found")
			return
		}
		s.logger.Error("text retrieval failed", zap.String("path", path), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"path":  path,
		"text":  text,
		"pages": extract.EstimatePageCount(text),
	})
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	page := 0
	if raw := r.URL.Query().Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.respondError(w, http.StatusBadRequest, "page must be a non-negative integer")
			return
		}
		page = n
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			s.respondError(w, http.StatusNotFound, "document not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	p, err := s.renderer.Render(r.Context(), path, page)
	if err != nil {
		s.logger.Error("render failed", zap.String("path", path), zap.Int("page", page), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if p.Placeholder {
		w.Header().Set("X-Pdfscan-Placeholder", "true")
	}
	if err := png.Encode(w, p.Image); err != nil {
		s.logger.Warn("png encode failed", zap.String("path", path), zap.Error(err))
	}
}

type analyzeRequest struct {
	Keywords  []string `json:"keywords"`
	Roots     []string `json:"roots,omitempty"`
	Threshold *float64 `json:"threshold,omitempty"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	roots := req.Roots
	if len(roots) == 0 {
		roots = s.cfg.Corpus.Roots
	}
	threshold := s.cfg.Analyze.Threshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}
	files, err := s.indexer.Enumerate(roots)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	docs := make([]analyze.DocumentCounts, 0, len(files))
	for _, path := range files {
		text, err := s.cache.GetOrExtract(path, nil)
		if err != nil {
			s.logger.Warn("analyze: skipping unreadable document", zap.String("path", path), zap.Error(err))
			continue
		}
		docs = append(docs, analyze.DocumentCounts{
			Filename: path,
			Counts:   analyze.CountKeywords(text, req.Keywords),
		})
	}
	result, err := analyze.Analyze(docs, req.Keywords, threshold)
	if err != nil {
		if errors.Is(err, analyze.ErrNoKeywords) {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("analysis failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

type searchRequest struct {
	Phrase string   `json:"phrase"`
	Roots  []string `json:"roots,omitempty"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	roots := req.Roots
	if len(roots) == 0 {
		roots = s.cfg.Corpus.Roots
	}
	s.logger.Debug("search request", zap.String("phrase", req.Phrase))
	matches, err := s.searcher.Search(r.Context(), req.Phrase, roots)
	if err != nil {
		s.logger.Error("search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"phrase":  req.Phrase,
		"matches": matches,
		"count":   len(matches),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
