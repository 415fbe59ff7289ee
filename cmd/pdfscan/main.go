// Package main is the pdfscan CLI entry point.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/pryzmatpl/pdfscan/internal/analyze"
	"github.com/pryzmatpl/pdfscan/internal/cache"
	"github.com/pryzmatpl/pdfscan/internal/config"
	"github.com/pryzmatpl/pdfscan/internal/extract"
	"github.com/pryzmatpl/pdfscan/internal/indexer"
	"github.com/pryzmatpl/pdfscan/internal/render"
	"github.com/pryzmatpl/pdfscan/internal/search"
	"github.com/pryzmatpl/pdfscan/internal/server"
	"github.com/pryzmatpl/pdfscan/internal/watcher"
	"github.com/pryzmatpl/pdfscan/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/pdfscan/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists
// it is used instead.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		// Missing config file is not fatal for CLI use; run on defaults.
		if os.IsNotExist(err) {
			cfg = &config.Config{}
			config.ApplyDefaults(cfg)
			return cfg, "", nil
		}
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "extract":
		runExtract()
	case "search":
		runSearch()
	case "analyze":
		runAnalyze()
	case "index":
		runIndex()
	case "server":
		runServer()
	case "version", "--version", "-v":
		fmt.Printf("pdfscan version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// components bundles the engine around one set of corpus roots.
type components struct {
	Cache    *cache.TieredTextCache
	Indexer  *indexer.Indexer
	Renderer *render.Renderer
	Searcher *search.Searcher
}

func buildComponents(cfg *config.Config, roots []string, logger *zap.Logger) (*components, error) {
	cacheOpts := []cache.Option{cache.WithDirName(cfg.Corpus.CacheDirName)}
	idxOpts := []indexer.Option{indexer.WithSkipDirs(cfg.Corpus.CacheDirName)}
	rendOpts := []render.RendererOption{render.WithScale(cfg.Render.Scale)}
	searchOpts := []search.Option{}
	if logger != nil {
		cacheOpts = append(cacheOpts, cache.WithLogger(logger))
		idxOpts = append(idxOpts, indexer.WithLogger(logger))
		rendOpts = append(rendOpts, render.WithLogger(logger))
		searchOpts = append(searchOpts, search.WithLogger(logger))
	}
	c, err := cache.New(roots, extract.NewExtractor(), cfg.Corpus.MemCacheSize, cacheOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating text cache: %w", err)
	}
	idx := indexer.New(c, cfg.Corpus.Extensions, cfg.Index.ChunkSize, cfg.Index.MaxWorkers, idxOpts...)
	backends := render.DefaultBackends(cfg.Render.DPI, cfg.Render.DisableNative, cfg.Render.Rasterizers, logger)
	rend, err := render.NewRenderer(backends, cfg.Render.DPI, cfg.Render.PageCacheSize, rendOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating renderer: %w", err)
	}
	return &components{
		Cache:    c,
		Indexer:  idx,
		Renderer: rend,
		Searcher: search.New(c, idx, searchOpts...),
	}, nil
}

// followProgress prints progress events until the run's stream closes.
func followProgress(run *indexer.Run) {
	for p := range run.Progress() {
		fmt.Printf("\rProcessed %d/%d", p.Completed, p.Total)
	}
	fmt.Println()
}

func runExtract() {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: pdfscan extract [flags] <output_file> <input_path>...\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(os.Args[2:])
	if fs.NArg() < 2 {
		fs.Usage()
		os.Exit(1)
	}
	outputFile := fs.Arg(0)
	inputs := fs.Args()[1:]

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fatalf("Failed to load config: %v", err)
	}
	comps, err := buildComponents(cfg, inputs, nil)
	if err != nil {
		fatalf("Failed to initialize: %v", err)
	}
	files, err := comps.Indexer.Enumerate(inputs)
	if err != nil {
		fatalf("Failed to enumerate documents: %v", err)
	}
	if len(files) == 0 {
		fatalf("No PDF files found in the provided paths")
	}

	// Warm the cache in parallel first, then assemble in path order.
	run, err := comps.Indexer.Index(context.Background(), inputs)
	if err != nil {
		fatalf("Indexing failed: %v", err)
	}
	followProgress(run)
	if err := run.Wait(context.Background()); err != nil {
		fatalf("Indexing failed: %v", err)
	}

	blocks := make([]string, 0, len(files))
	for _, path := range files {
		name := filepath.Base(path)
		text, err := comps.Cache.GetOrExtract(path, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error processing %s: %v\n", name, err)
			blocks = append(blocks, "")
			continue
		}
		blocks = append(blocks, fmt.Sprintf("[Start of document: %s]\n%s\n[End of document: %s]\n", name, text, name))
	}
	if err := os.WriteFile(outputFile, []byte(strings.Join(blocks, "\n")), 0644); err != nil {
		fatalf("Failed to write output: %v", err)
	}
	fmt.Printf("Successfully extracted text from %d PDFs to '%s'\n", len(files), outputFile)
}

// buildPhrase joins all positional args with spaces so multi-word phrases
// work the same with or without shell quoting.
func buildPhrase(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// searchArgsReorder moves flags (and their values) that appear after the
// phrase to the front so flag.Parse() sees them; the flag package stops at
// the first non-flag argument.
func searchArgsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// splitList parses a comma-separated flag value into trimmed elements.
func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func runSearch() {
	searchArgs := searchArgsReorder(os.Args[2:])
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	dirs := fs.String("dirs", "", "comma-separated directories to search (default: configured roots, else home)")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: pdfscan search [flags] <phrase>\n\n")
		fmt.Fprintf(fs.Output(), "Phrase is all remaining arguments joined by spaces.\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(searchArgs)
	phrase := buildPhrase(fs.Args())
	if phrase == "" {
		fs.Usage()
		os.Exit(1)
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fatalf("Failed to load config: %v", err)
	}
	roots := splitList(*dirs)
	if len(roots) == 0 {
		roots = cfg.Corpus.Roots
	}
	if len(roots) == 0 {
		home, err := os.UserHomeDir()
		if err != nil {
			fatalf("No search directories given and no home directory: %v", err)
		}
		roots = []string{home}
	}
	comps, err := buildComponents(cfg, roots, nil)
	if err != nil {
		fatalf("Failed to initialize: %v", err)
	}
	matches, err := comps.Searcher.Search(context.Background(), phrase, roots)
	if err != nil {
		fatalf("Search failed: %v", err)
	}
	fmt.Printf("\nFound %d matching PDF files:\n", len(matches))
	for _, m := range matches {
		fmt.Println(m)
	}
}

func runAnalyze() {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	keywords := fs.String("keywords", "", "comma-separated keywords to analyze (required)")
	outputFile := fs.String("output", "pdf_analysis_report.txt", "output report file path")
	threshold := fs.Float64("threshold", -1, "correlation threshold (default from config)")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: pdfscan analyze [flags] <input_path>...\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(os.Args[2:])
	kws := splitList(*keywords)
	if len(kws) == 0 || fs.NArg() < 1 {
		fs.Usage()
		os.Exit(1)
	}
	inputs := fs.Args()

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fatalf("Failed to load config: %v", err)
	}
	th := cfg.Analyze.Threshold
	if *threshold >= 0 {
		th = *threshold
	}
	comps, err := buildComponents(cfg, inputs, nil)
	if err != nil {
		fatalf("Failed to initialize: %v", err)
	}
	files, err := comps.Indexer.Enumerate(inputs)
	if err != nil {
		fatalf("Failed to enumerate documents: %v", err)
	}

	run, err := comps.Indexer.Index(context.Background(), inputs)
	if err != nil {
		fatalf("Indexing failed: %v", err)
	}
	followProgress(run)
	if err := run.Wait(context.Background()); err != nil {
		fatalf("Indexing failed: %v", err)
	}

	docs := make([]analyze.DocumentCounts, 0, len(files))
	for _, path := range files {
		text, err := comps.Cache.GetOrExtract(path, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error processing %s: %v\n", filepath.Base(path), err)
			continue
		}
		docs = append(docs, analyze.DocumentCounts{
			Filename: filepath.Base(path),
			Counts:   analyze.CountKeywords(text, kws),
		})
	}
	result, err := analyze.Analyze(docs, kws, th)
	if err != nil {
		fatalf("Analysis failed: %v", err)
	}
	out, err := os.Create(*outputFile)
	if err != nil {
		fatalf("Failed to create report: %v", err)
	}
	defer out.Close()
	if err := analyze.WriteReport(out, result, cfg.Analyze.TopN); err != nil {
		fatalf("Failed to write report: %v", err)
	}
	fmt.Printf("Successfully generated statistical analysis report in '%s'\n", *outputFile)
}

func runIndex() {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: pdfscan index [flags] [root...]\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(os.Args[2:])

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fatalf("Failed to load config: %v", err)
	}
	roots := fs.Args()
	if len(roots) == 0 {
		roots = cfg.Corpus.Roots
	}
	if len(roots) == 0 {
		fatalf("No roots given and none configured")
	}
	var logger *zap.Logger
	if cfg.Debug || *debug {
		logger, err = utils.NewLogger(true)
		if err != nil {
			fatalf("Failed to create logger: %v", err)
		}
		defer logger.Sync()
	}
	comps, err := buildComponents(cfg, roots, logger)
	if err != nil {
		fatalf("Failed to initialize: %v", err)
	}
	run, err := comps.Indexer.Index(context.Background(), roots)
	if err != nil {
		fatalf("Indexing failed: %v", err)
	}
	followProgress(run)
	if err := run.Wait(context.Background()); err != nil {
		fatalf("Indexing failed: %v", err)
	}
	fmt.Printf("Indexed %d documents\n", run.Total())
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fatalf("Failed to load config: %v", err)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)
	if len(cfg.Corpus.Roots) == 0 {
		logger.Fatal("no corpus roots configured")
	}

	comps, err := buildComponents(cfg, cfg.Corpus.Roots, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if cfg.Watch.Enabled {
		watchOpts := []watcher.Option{watcher.WithSkipDirs(cfg.Corpus.CacheDirName)}
		if debugMode {
			watchOpts = append(watchOpts, watcher.WithLogger(logger))
		}
		w := watcher.New(
			cfg.Corpus.Roots,
			cfg.Corpus.Extensions,
			cfg.Watch.RecursiveOrDefault(),
			func(path string) {
				comps.Cache.Invalidate(path)
				comps.Renderer.Evict(path)
				if _, err := comps.Cache.GetOrExtract(path, nil); err != nil {
					logger.Warn("re-extract after change failed", zap.String("path", path), zap.Error(err))
				}
			},
			func(path string) {
				comps.Cache.Invalidate(path)
				comps.Renderer.Evict(path)
			},
			watchOpts...,
		)
		if err := w.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer w.Stop()
	}

	srv := server.New(cfg, comps.Cache, comps.Indexer, comps.Renderer, comps.Searcher, logger)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func printUsage() {
	fmt.Println(`pdfscan - PDF text extraction, search, and correlation analysis

Usage:
  pdfscan extract [flags] <output_file> <input_path>...   Extract text from PDFs into one file
  pdfscan search [flags] <phrase>                         Find PDFs containing a phrase
  pdfscan analyze [flags] <input_path>...                 Keyword correlation report
  pdfscan index [flags] [root...]                         Build the extraction cache
  pdfscan server [flags]                                  Start the HTTP server
  pdfscan version                                         Show version
  pdfscan help                                            Show this help

Extract Flags:
  --config string     Config file path (default: /usr/local/etc/pdfscan/config.yaml)

Search Flags:
  --config string     Config file path
  --dirs string       Comma-separated directories to search (default: configured roots, else home)

Analyze Flags:
  --config string     Config file path
  --keywords string   Comma-separated keywords to analyze (required)
  --output string     Output report file path (default: pdf_analysis_report.txt)
  --threshold float   Correlation threshold 0.0 to 1.0 (default from config: 0.1)

Index Flags:
  --config string     Config file path
  --debug             Enable debug logging

Server Flags:
  --config string     Config file path
  --debug             Enable debug logging

Examples:
  pdfscan extract corpus.txt ~/Documents/papers
  pdfscan search "neural networks"
  pdfscan search --dirs ~/papers,~/reports quarterly results
  pdfscan analyze --keywords apple,banana --threshold 0.2 ~/papers
  pdfscan index ~/Documents
  pdfscan server --debug`)
}
