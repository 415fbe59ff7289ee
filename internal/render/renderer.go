package render

import (
	"context"
	"image"
	"strings"

	"github.com/disintegration/imaging"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/pryzmatpl/pdfscan/internal/docid"
)

// Page is an immutable rendered page: the bitmap plus the page's natural size
// in points. Replace, don't mutate.
type Page struct {
	Image       image.Image
	Width       int
	Height      int
	PointsW     float64
	PointsH     float64
	Placeholder bool
}

// Renderer renders document pages through a prioritized backend chain,
// deduplicates concurrent requests per page, and caches results. When every
// backend fails (or none exists) it yields the placeholder bitmap so the
// viewer always has something to display.
type Renderer struct {
	backends []Backend
	dpi      int
	scale    float64
	pages    *lru.Cache[string, *Page]
	group    singleflight.Group
	logger   *zap.Logger
}

// RendererOption configures a Renderer.
type RendererOption func(*Renderer)

// WithLogger sets a logger for backend failures and render events.
func WithLogger(l *zap.Logger) RendererOption {
	return func(r *Renderer) { r.logger = l }
}

// WithScale sets the output scale factor applied to rendered bitmaps.
func WithScale(scale float64) RendererOption {
	return func(r *Renderer) { r.scale = scale }
}

// NewRenderer creates a renderer over the given backend chain, tried in
// order. backends may be empty; every render then yields the placeholder.
// cacheSize bounds the in-memory page cache.
func NewRenderer(backends []Backend, dpi, cacheSize int, opts ...RendererOption) (*Renderer, error) {
	if cacheSize <= 0 {
		cacheSize = 64
	}
	pages, err := lru.New[string, *Page](cacheSize)
	if err != nil {
		return nil, err
	}
	if dpi <= 0 {
		dpi = 150
	}
	r := &Renderer{
		backends: backends,
		dpi:      dpi,
		scale:    1.0,
		pages:    pages,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// DefaultBackends builds the standard chain: the in-process native backend
// when it can be loaded, then each named external rasterizer that resolves.
// Unavailable backends are logged and omitted.
func DefaultBackends(dpi int, disableNative bool, rasterizers []string, logger *zap.Logger) []Backend {
	var backends []Backend
	if !disableNative {
		if fb, err := NewFitzBackend(dpi); err == nil {
			backends = append(backends, fb)
		} else if logger != nil {
			logger.Warn("native render backend unavailable", zap.Error(err))
		}
	}
	for _, name := range rasterizers {
		cb, err := NewCommandBackend(name, dpi)
		if err != nil {
			if logger != nil {
				logger.Warn("rasterizer unavailable", zap.String("binary", name), zap.Error(err))
			}
			continue
		}
		backends = append(backends, cb)
	}
	return backends
}

// Render returns the bitmap for the zero-based page of the document at path.
// Idempotent from the caller's point of view: concurrent calls for the same
// page share one backend invocation and observe the same result, and repeated
// calls are served from the page cache.
func (r *Renderer) Render(ctx context.Context, path string, page int) (*Page, error) {
	key := docid.ForPage(path, page)
	if p, ok := r.pages.Get(key); ok {
		return p, nil
	}

	// The in-flight entry is keyed by (document, page); at most one backend
	// invocation runs per key system-wide. The entry is forgotten when the
	// call returns, success or failure, so future requests can retry.
	v, err, _ := r.group.Do(key, func() (interface{}, error) {
		// Re-check under the flight: a caller that missed the cache may
		// arrive after an earlier flight already populated it.
		if p, ok := r.pages.Get(key); ok {
			return p, nil
		}
		p := r.renderOnce(ctx, path, page)
		r.pages.Add(key, p)
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Page), nil
}

// renderOnce walks the backend chain and falls back to the placeholder.
func (r *Renderer) renderOnce(ctx context.Context, path string, page int) *Page {
	for _, b := range r.backends {
		img, err := b.RenderPage(ctx, path, page)
		if err != nil {
			if r.logger != nil {
				r.logger.Warn("render backend failed",
					zap.String("backend", b.Name()),
					zap.String("path", path),
					zap.Int("page", page),
					zap.Error(err))
			}
			continue
		}
		return r.newPage(img)
	}
	if r.logger != nil {
		r.logger.Warn("all render backends failed, using placeholder",
			zap.String("path", path), zap.Int("page", page))
	}
	// The placeholder has fixed dimensions regardless of scale or DPI.
	return &Page{
		Image:       Placeholder(),
		Width:       placeholderWidth,
		Height:      placeholderHeight,
		PointsW:     placeholderWidth,
		PointsH:     placeholderHeight,
		Placeholder: true,
	}
}

func (r *Renderer) newPage(img image.Image) *Page {
	if r.scale != 1.0 && r.scale > 0 {
		w := int(float64(img.Bounds().Dx()) * r.scale)
		img = imaging.Resize(img, w, 0, imaging.Lanczos)
	}
	bounds := img.Bounds()
	return &Page{
		Image:   img,
		Width:   bounds.Dx(),
		Height:  bounds.Dy(),
		PointsW: float64(bounds.Dx()) * 72.0 / float64(r.dpi),
		PointsH: float64(bounds.Dy()) * 72.0 / float64(r.dpi),
	}
}

// Evict drops every cached page of the document at path. Used when the
// document is closed or replaced.
func (r *Renderer) Evict(path string) {
	prefix := docid.ForPath(path) + ":"
	for _, key := range r.pages.Keys() {
		if strings.HasPrefix(key, prefix) {
			r.pages.Remove(key)
		}
	}
}
