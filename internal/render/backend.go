// Package render produces page bitmaps through a prioritized chain of
// rendering backends with an always-available placeholder fallback.
package render

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/gen2brain/go-fitz"
)

// ErrBackendUnavailable indicates no rendering backend could produce output
// for a page. Callers of Renderer.Render never see it; it is recovered into
// the placeholder bitmap.
var ErrBackendUnavailable = errors.New("rendering backend unavailable")

// Backend renders a single page of a document to a bitmap.
type Backend interface {
	// Name identifies the backend in logs.
	Name() string
	// RenderPage renders the zero-based page of the document at path.
	RenderPage(ctx context.Context, path string, page int) (image.Image, error)
}

// FitzBackend renders pages in-process through MuPDF.
type FitzBackend struct {
	dpi int
}

// NewFitzBackend probes the native library and returns a backend, or an error
// when the library cannot be loaded. A load fault is recovered, never fatal.
func NewFitzBackend(dpi int) (b *FitzBackend, err error) {
	defer func() {
		if r := recover(); r != nil {
			b = nil
			err = fmt.Errorf("%w: native library load fault: %v", ErrBackendUnavailable, r)
		}
	}()
	// Probing with an empty document exercises library loading without
	// needing a real file on disk.
	doc, probeErr := fitz.NewFromMemory([]byte("%PDF-1.4\n%%EOF\n"))
	if doc != nil {
		doc.Close()
	}
	if probeErr != nil && errors.Is(probeErr, fitz.ErrOpenMemory) {
		// The library loaded but rejected the probe bytes; that is fine.
		probeErr = nil
	}
	if probeErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, probeErr)
	}
	return &FitzBackend{dpi: dpi}, nil
}

// Name implements Backend.
func (b *FitzBackend) Name() string { return "fitz" }

// RenderPage implements Backend. A native fault is recovered and reported as
// a backend failure so the chain can fall through.
func (b *FitzBackend) RenderPage(ctx context.Context, path string, page int) (img image.Image, err error) {
	defer func() {
		if r := recover(); r != nil {
			img = nil
			err = fmt.Errorf("native render fault on page %d: %v", page, r)
		}
	}()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	defer doc.Close()
	if page < 0 || page >= doc.NumPage() {
		return nil, fmt.Errorf("page %d out of range (document has %d)", page, doc.NumPage())
	}
	img, err = doc.ImageDPI(page, float64(b.dpi))
	if err != nil {
		return nil, fmt.Errorf("render page %d: %w", page, err)
	}
	return img, nil
}
