// Package cache provides a tiered (memory + on-disk sidecar) cache of
// extracted document text keyed by source file identity.
package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/pryzmatpl/pdfscan/internal/docid"
	"github.com/pryzmatpl/pdfscan/internal/extract"
)

// headerPrefix marks the fingerprint line at the start of each sidecar file.
const headerPrefix = "#pdfscan v1 "

// DefaultDirName is the hidden sidecar directory created alongside each corpus root.
const DefaultDirName = ".pdfscan"

// TextExtractor extracts plain text from raw document bytes.
type TextExtractor interface {
	ExtractBytes(content []byte) (string, error)
}

// entry is a memory-tier value: text plus the source fingerprint it was
// extracted from, so a changed file is never served stale.
type entry struct {
	text  string
	size  int64
	mtime int64
}

// TieredTextCache caches extracted text in memory for the session and on disk
// across runs. The disk tier lives in a hidden sidecar directory alongside the
// corpus root the file belongs to; entries are validated against the source
// file's size and mtime on every read.
type TieredTextCache struct {
	roots     []string
	dirName   string
	extractor TextExtractor
	mem       *lru.Cache[string, entry]
	group     singleflight.Group
	logger    *zap.Logger
}

// Option configures a TieredTextCache.
type Option func(*TieredTextCache)

// WithLogger sets a logger for cache events (disk write failures, extraction faults).
func WithLogger(l *zap.Logger) Option {
	return func(c *TieredTextCache) { c.logger = l }
}

// WithDirName overrides the sidecar directory name.
func WithDirName(name string) Option {
	return func(c *TieredTextCache) { c.dirName = name }
}

// New creates a tiered cache for the given corpus roots. extractor converts
// document bytes to text; memSize bounds the in-memory tier.
func New(roots []string, extractor TextExtractor, memSize int, opts ...Option) (*TieredTextCache, error) {
	if memSize <= 0 {
		memSize = 1024
	}
	mem, err := lru.New[string, entry](memSize)
	if err != nil {
		return nil, fmt.Errorf("create memory tier: %w", err)
	}
	abs := make([]string, 0, len(roots))
	for _, r := range roots {
		if a, absErr := filepath.Abs(r); absErr == nil {
			abs = append(abs, a)
		}
	}
	c := &TieredTextCache{
		roots:     abs,
		dirName:   DefaultDirName,
		extractor: extractor,
		mem:       mem,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// GetOrExtract returns the cached text for path if the fingerprint matches the
// current source file, extracting and caching otherwise. loader supplies the
// raw bytes; when nil the file is read from disk. A malformed document
// degrades to empty text and is not an error. A stat or load failure on the
// source file is surfaced to the caller.
func (c *TieredTextCache) GetOrExtract(path string, loader func() ([]byte, error)) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return "", fmt.Errorf("stat source: %w", err)
	}
	size, mtime := info.Size(), info.ModTime().UnixNano()
	id := docid.ForPath(absPath)

	if e, ok := c.mem.Get(id); ok && e.size == size && e.mtime == mtime {
		return e.text, nil
	}

	// Concurrent callers for the same document share one extraction.
	v, err, _ := c.group.Do(id, func() (interface{}, error) {
		if text, ok := c.readDisk(absPath, size, mtime); ok {
			c.mem.Add(id, entry{text: text, size: size, mtime: mtime})
			return text, nil
		}
		content, loadErr := c.load(absPath, loader)
		if loadErr != nil {
			return nil, loadErr
		}
		text, extractErr := c.extractor.ExtractBytes(content)
		if extractErr != nil {
			if !errors.Is(extractErr, extract.ErrMalformedDocument) {
				return nil, extractErr
			}
			// One bad file must not abort a corpus run; cache the empty result.
			if c.logger != nil {
				c.logger.Warn("extraction degraded to empty text",
					zap.String("path", absPath), zap.Error(extractErr))
			}
			text = ""
		}
		c.writeDisk(absPath, size, mtime, text)
		c.mem.Add(id, entry{text: text, size: size, mtime: mtime})
		return text, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Invalidate drops both cache tiers for one document.
func (c *TieredTextCache) Invalidate(path string) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return
	}
	c.mem.Remove(docid.ForPath(absPath))
	if err := os.Remove(c.sidecarPath(absPath)); err != nil && !errors.Is(err, os.ErrNotExist) {
		if c.logger != nil {
			c.logger.Warn("remove sidecar entry", zap.String("path", absPath), zap.Error(err))
		}
	}
}

func (c *TieredTextCache) load(absPath string, loader func() ([]byte, error)) ([]byte, error) {
	if loader != nil {
		return loader()
	}
	content, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("read source: %w", err)
	}
	return content, nil
}

// sidecarPath returns the on-disk entry path for a source file: a hidden
// directory alongside the corpus root the file belongs to, one text file per
// document named by the source's base name. Collisions are acceptable; the
// cache is a performance optimization, not a source of truth.
func (c *TieredTextCache) sidecarPath(absPath string) string {
	base := filepath.Dir(absPath)
	for _, root := range c.roots {
		if absPath == root || strings.HasPrefix(absPath, root+string(filepath.Separator)) {
			base = root
			break
		}
	}
	stem := strings.TrimSuffix(filepath.Base(absPath), filepath.Ext(absPath))
	return filepath.Join(base, c.dirName, stem+".txt")
}

// readDisk returns the cached text if the sidecar entry exists and its
// fingerprint matches the source. Any read or parse failure is a miss.
func (c *TieredTextCache) readDisk(absPath string, size, mtime int64) (string, bool) {
	data, err := os.ReadFile(c.sidecarPath(absPath))
	if err != nil {
		return "", false
	}
	content := string(data)
	if !strings.HasPrefix(content, headerPrefix) {
		return "", false
	}
	nl := strings.IndexByte(content, '\n')
	if nl < 0 {
		return "", false
	}
	gotSize, gotMtime, ok := parseHeader(content[len(headerPrefix):nl])
	if !ok || gotSize != size || gotMtime != mtime {
		return "", false
	}
	return content[nl+1:], true
}

// writeDisk persists the text with its fingerprint. A failure is non-fatal:
// the extraction result is still returned to the caller, only persistence is skipped.
func (c *TieredTextCache) writeDisk(absPath string, size, mtime int64, text string) {
	sidecar := c.sidecarPath(absPath)
	if err := os.MkdirAll(filepath.Dir(sidecar), 0755); err != nil {
		if c.logger != nil {
			c.logger.Warn("create sidecar dir", zap.String("path", sidecar), zap.Error(err))
		}
		return
	}
	body := headerPrefix + formatHeader(size, mtime) + "\n" + text
	if err := os.WriteFile(sidecar, []byte(body), 0644); err != nil {
		if c.logger != nil {
			c.logger.Warn("write sidecar entry", zap.String("path", sidecar), zap.Error(err))
		}
	}
}

func formatHeader(size, mtime int64) string {
	return "size=" + strconv.FormatInt(size, 10) + " mtime=" + strconv.FormatInt(mtime, 10)
}

func parseHeader(s string) (size, mtime int64, ok bool) {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return 0, 0, false
	}
	sizeStr, ok1 := strings.CutPrefix(fields[0], "size=")
	mtimeStr, ok2 := strings.CutPrefix(fields[1], "mtime=")
	if !ok1 || !ok2 {
		return 0, 0, false
	}
	size, err1 := strconv.ParseInt(sizeStr, 10, 64)
	mtime, err2 := strconv.ParseInt(mtimeStr, 10, 64)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return size, mtime, true
}
