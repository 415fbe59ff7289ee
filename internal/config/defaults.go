package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Corpus.Extensions == nil {
		cfg.Corpus.Extensions = []string{".pdf"}
	}
	if cfg.Corpus.CacheDirName == "" {
		cfg.Corpus.CacheDirName = ".pdfscan"
	}
	if cfg.Corpus.MemCacheSize == 0 {
		cfg.Corpus.MemCacheSize = 1024
	}
	if cfg.Index.ChunkSize == 0 {
		cfg.Index.ChunkSize = 20
	}
	if cfg.Index.MaxWorkers == 0 {
		cfg.Index.MaxWorkers = 8
	}
	if cfg.Render.DPI == 0 {
		cfg.Render.DPI = 150
	}
	if cfg.Render.Scale == 0 {
		cfg.Render.Scale = 1.0
	}
	if cfg.Render.PageCacheSize == 0 {
		cfg.Render.PageCacheSize = 64
	}
	if cfg.Render.Rasterizers == nil {
		cfg.Render.Rasterizers = []string{"pdftoppm", "mutool"}
	}
	if cfg.Analyze.Threshold == 0 {
		cfg.Analyze.Threshold = 0.1
	}
	if cfg.Analyze.TopN == 0 {
		cfg.Analyze.TopN = 20
	}
	// Recursive defaults to true when unset (nil).
	if cfg.Watch.Enabled && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
}
