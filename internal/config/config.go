// Package config provides configuration loading and structs for the PDFScan engine.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug   bool          `yaml:"debug"`
	Server  ServerConfig  `yaml:"server"`
	Corpus  CorpusConfig  `yaml:"corpus"`
	Index   IndexConfig   `yaml:"index"`
	Render  RenderConfig  `yaml:"render"`
	Analyze AnalyzeConfig `yaml:"analyze"`
	Watch   WatchConfig   `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// CorpusConfig holds document corpus settings.
type CorpusConfig struct {
	Roots        []string `yaml:"roots"`
	Extensions   []string `yaml:"extensions"`
	CacheDirName string   `yaml:"cache_dir_name"`
	MemCacheSize int      `yaml:"mem_cache_size"`
}

// IndexConfig holds directory indexing settings.
type IndexConfig struct {
	ChunkSize  int `yaml:"chunk_size"`
	MaxWorkers int `yaml:"max_workers"`
}

// RenderConfig holds page rendering settings.
type RenderConfig struct {
	DPI           int      `yaml:"dpi"`
	Scale         float64  `yaml:"scale"`
	PageCacheSize int      `yaml:"page_cache_size"`
	DisableNative bool     `yaml:"disable_native"`
	Rasterizers   []string `yaml:"rasterizers"`
}

// AnalyzeConfig holds correlation analysis settings.
type AnalyzeConfig struct {
	Threshold float64 `yaml:"threshold"`
	TopN      int     `yaml:"top_n"`
}

// WatchConfig holds directory watch settings.
type WatchConfig struct {
	Enabled   bool  `yaml:"enabled"`
	Recursive *bool `yaml:"recursive"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	for i := range cfg.Corpus.Roots {
		cfg.Corpus.Roots[i] = expandPath(cfg.Corpus.Roots[i], configDir)
	}

	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
