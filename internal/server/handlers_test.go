package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/pryzmatpl/pdfscan/internal/cache"
	"github.com/pryzmatpl/pdfscan/internal/config"
	"github.com/pryzmatpl/pdfscan/internal/extract"
	"github.com/pryzmatpl/pdfscan/internal/indexer"
	"github.com/pryzmatpl/pdfscan/internal/pdftest"
	"github.com/pryzmatpl/pdfscan/internal/render"
	"github.com/pryzmatpl/pdfscan/internal/search"
)

func newTestServer(t *testing.T, root string) *httptest.Server {
	t.Helper()
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Corpus.Roots = []string{root}

	c, err := cache.New([]string{root}, extract.NewExtractor(), cfg.Corpus.MemCacheSize)
	if err != nil {
		t.Fatalf("cache.New: %v", err)
	}
	idx := indexer.New(c, cfg.Corpus.Extensions, cfg.Index.ChunkSize, cfg.Index.MaxWorkers)
	// No backends: every render resolves to the placeholder, which keeps
	// the endpoint deterministic without external rasterizers.
	rend, err := render.NewRenderer(nil, cfg.Render.DPI, cfg.Render.PageCacheSize)
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	searcher := search.New(c, idx)
	srv := New(cfg, c, idx, rend, searcher, zap.NewNop())
	ts := httptest.NewServer(srv.routes())
	t.Cleanup(ts.Close)
	return ts
}

func writePDF(t *testing.T, dir, name, text string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, pdftest.MinimalPDF(text), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, t.TempDir())
	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	var body map[string]string
	decodeJSON(t, resp, &body)
	if resp.StatusCode != http.StatusOK || body["status"] != "ok" {
		t.Errorf("status %d, body %v", resp.StatusCode, body)
	}
}

func TestIndexJobLifecycle(t *testing.T) {
	root := t.TempDir()
	writePDF(t, root, "a.pdf", "alpha")
	writePDF(t, root, "b.pdf", "beta")
	ts := newTestServer(t, root)

	resp := postJSON(t, ts.URL+"/api/v1/index", map[string]any{"roots": []string{root}})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}
	var started struct {
		ID    string `json:"id"`
		Total int    `json:"total"`
	}
	decodeJSON(t, resp, &started)
	if started.ID == "" || started.Total != 2 {
		t.Fatalf("unexpected start response: %+v", started)
	}

	deadline := time.Now().Add(10 * time.Second)
	for {
		resp, err := http.Get(ts.URL + "/api/v1/index/" + started.ID)
		if err != nil {
			t.Fatalf("GET status: %v", err)
		}
		var status jobStatus
		decodeJSON(t, resp, &status)
		if status.Done {
			if status.Error != "" {
				t.Fatalf("job failed: %s", status.Error)
			}
			if status.Completed != 2 || status.Total != 2 {
				t.Errorf("final progress %d/%d, want 2/2", status.Completed, status.Total)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("index job did not finish in time")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestIndexUnknownJob(t *testing.T) {
	ts := newTestServer(t, t.TempDir())
	resp, err := http.Get(ts.URL + "/api/v1/index/no-such-job")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestIndexMissingRoot(t *testing.T) {
	ts := newTestServer(t, t.TempDir())
	missing := filepath.Join(t.TempDir(), "absent")
	resp := postJSON(t, ts.URL+"/api/v1/index", map[string]any{"roots": []string{missing}})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestDocumentText(t *testing.T) {
	root := t.TempDir()
	path := writePDF(t, root, "doc.pdf", "needle in a haystack")
	ts := newTestServer(t, root)

	resp, err := http.Get(ts.URL + "/api/v1/documents/text?path=" + path)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	var body struct {
		Path  string `json:"path"`
		Text  string `json:"text"`
		Pages int    `json:"pages"`
	}
	decodeJSON(t, resp, &body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !bytes.Contains([]byte(body.Text), []byte("needle")) {
		t.Errorf("text %q missing phrase", body.Text)
	}
	if body.Pages < 1 {
		t.Errorf("pages = %d, want >= 1", body.Pages)
	}
}

func TestDocumentTextErrors(t *testing.T) {
	ts := newTestServer(t, t.TempDir())

	resp, err := http.Get(ts.URL + "/api/v1/documents/text")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("no path: status = %d, want 400", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/api/v1/documents/text?path=/no/such/file.pdf")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing file: status = %d, want 404", resp.StatusCode)
	}
}

func TestRenderPlaceholderPNG(t *testing.T) {
	root := t.TempDir()
	path := writePDF(t, root, "doc.pdf", "page one")
	ts := newTestServer(t, root)

	resp, err := http.Get(fmt.Sprintf("%s/api/v1/render?path=%s&page=0", ts.URL, path))
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q", ct)
	}
	if resp.Header.Get("X-Pdfscan-Placeholder") != "true" {
		t.Error("expected placeholder header with no backends configured")
	}
	img, err := png.Decode(resp.Body)
	if err != nil {
		t.Fatalf("png.Decode: %v", err)
	}
	b := img.Bounds()
	if b.Dx() != 612 || b.Dy() != 792 {
		t.Errorf("dimensions %dx%d, want 612x792", b.Dx(), b.Dy())
	}
}

func TestRenderErrors(t *testing.T) {
	root := t.TempDir()
	path := writePDF(t, root, "doc.pdf", "x")
	ts := newTestServer(t, root)

	resp, err := http.Get(ts.URL + "/api/v1/render?path=" + path + "&page=-1")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("negative page: status = %d, want 400", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/api/v1/render?path=/no/such/file.pdf")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing file: status = %d, want 404", resp.StatusCode)
	}
}

func TestAnalyzeEndpoint(t *testing.T) {
	root := t.TempDir()
	writePDF(t, root, "d1.pdf", "apple banana")
	writePDF(t, root, "d2.pdf", "apple apple banana banana")
	ts := newTestServer(t, root)

	resp := postJSON(t, ts.URL+"/api/v1/analyze", map[string]any{
		"keywords": []string{"apple", "banana"},
		"roots":    []string{root},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var result struct {
		Keywords       []string    `json:"keywords"`
		Matrix         [][]float64 `json:"matrix"`
		TotalDocuments int         `json:"total_documents"`
		Ranked         []struct {
			Filename string  `json:"filename"`
			Score    float64 `json:"score"`
		} `json:"ranked"`
	}
	decodeJSON(t, resp, &result)
	if result.TotalDocuments != 2 {
		t.Errorf("total_documents = %d, want 2", result.TotalDocuments)
	}
	// (min(1,1) + min(2,2)) / 2 documents = 1.5
	if got := result.Matrix[0][1]; got != 1.5 {
		t.Errorf("correlation = %v, want 1.5", got)
	}
	if len(result.Ranked) == 0 || filepath.Base(result.Ranked[0].Filename) != "d2.pdf" {
		t.Errorf("ranked = %+v, want d2.pdf first", result.Ranked)
	}
}

func TestAnalyzeNoKeywords(t *testing.T) {
	ts := newTestServer(t, t.TempDir())
	resp := postJSON(t, ts.URL+"/api/v1/analyze", map[string]any{"keywords": []string{}})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestSearchEndpoint(t *testing.T) {
	root := t.TempDir()
	hit := writePDF(t, root, "hit.pdf", "the secret phrase lives here")
	writePDF(t, root, "miss.pdf", "unrelated content")
	ts := newTestServer(t, root)

	resp := postJSON(t, ts.URL+"/api/v1/search", map[string]any{"phrase": "secret phrase"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body struct {
		Phrase  string   `json:"phrase"`
		Matches []string `json:"matches"`
		Count   int      `json:"count"`
	}
	decodeJSON(t, resp, &body)
	if body.Count != 1 || len(body.Matches) != 1 || body.Matches[0] != hit {
		t.Errorf("unexpected search response: %+v", body)
	}
}
