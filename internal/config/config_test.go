package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
debug: true
server:
  host: 0.0.0.0
  port: 9090
corpus:
  roots:
    - ./docs
  extensions: [".pdf"]
index:
  chunk_size: 10
render:
  dpi: 200
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Debug {
		t.Error("debug should be true")
	}
	if cfg.Server.Host != "0.0.0.0" || cfg.Server.Port != 9090 {
		t.Errorf("server config: %+v", cfg.Server)
	}
	if cfg.Index.ChunkSize != 10 {
		t.Errorf("chunk_size: %d", cfg.Index.ChunkSize)
	}
	if cfg.Render.DPI != 200 {
		t.Errorf("dpi: %d", cfg.Render.DPI)
	}
	// ./docs expands relative to the config dir
	want := filepath.Join(dir, "docs")
	if len(cfg.Corpus.Roots) != 1 || cfg.Corpus.Roots[0] != want {
		t.Errorf("roots: %v, want [%s]", cfg.Corpus.Roots, want)
	}
}

func TestLoad_missingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing config")
	}
}

func TestLoad_invalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("corpus: [not: closed"), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestApplyDefaults(t *testing.T) {
	var cfg Config
	ApplyDefaults(&cfg)
	if cfg.Server.Host != "localhost" || cfg.Server.Port != 8080 {
		t.Errorf("server defaults: %+v", cfg.Server)
	}
	if cfg.Corpus.CacheDirName != ".pdfscan" {
		t.Errorf("cache dir default: %q", cfg.Corpus.CacheDirName)
	}
	if len(cfg.Corpus.Extensions) != 1 || cfg.Corpus.Extensions[0] != ".pdf" {
		t.Errorf("extensions default: %v", cfg.Corpus.Extensions)
	}
	if cfg.Index.ChunkSize != 20 || cfg.Index.MaxWorkers != 8 {
		t.Errorf("index defaults: %+v", cfg.Index)
	}
	if cfg.Render.DPI != 150 || cfg.Render.Scale != 1.0 || cfg.Render.PageCacheSize != 64 {
		t.Errorf("render defaults: %+v", cfg.Render)
	}
	if len(cfg.Render.Rasterizers) != 2 {
		t.Errorf("rasterizer defaults: %v", cfg.Render.Rasterizers)
	}
	if cfg.Analyze.Threshold != 0.1 || cfg.Analyze.TopN != 20 {
		t.Errorf("analyze defaults: %+v", cfg.Analyze)
	}
}

func TestApplyDefaults_keepsExplicit(t *testing.T) {
	cfg := Config{}
	cfg.Index.ChunkSize = 5
	ApplyDefaults(&cfg)
	if cfg.Index.ChunkSize != 5 {
		t.Errorf("explicit chunk size overwritten: %d", cfg.Index.ChunkSize)
	}
}

func TestWatchConfig_recursiveDefault(t *testing.T) {
	w := WatchConfig{}
	if !w.RecursiveOrDefault() {
		t.Error("recursive should default to true")
	}
	f := false
	w.Recursive = &f
	if w.RecursiveOrDefault() {
		t.Error("explicit false should stick")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	cfg := &Config{Debug: true}
	ApplyDefaults(cfg)
	cfg.Corpus.Roots = []string{"/data/corpus"}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !got.Debug || len(got.Corpus.Roots) != 1 || got.Corpus.Roots[0] != "/data/corpus" {
		t.Errorf("round trip: %+v", got)
	}
}
