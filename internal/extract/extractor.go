// Package extract provides fault-isolated text extraction from PDF documents.
package extract

import (
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"
)

// ErrMalformedDocument indicates the document could not be parsed, including
// parser panics on malformed font tables or recursive structures.
var ErrMalformedDocument = errors.New("malformed document")

// charsPerPage is the heuristic used to estimate a page count when no
// structural page count is available. Best-effort display only.
const charsPerPage = 3000

// Extractor extracts plain text from PDF document bytes. A parse fault in the
// underlying reader never escapes: it is recovered and reported as
// ErrMalformedDocument so one bad file cannot abort a corpus-wide run.
type Extractor struct {
	logger *zap.Logger // optional; when set, logs recovered faults
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithLogger sets a logger for recovered-fault warnings.
func WithLogger(l *zap.Logger) ExtractorOption {
	return func(e *Extractor) { e.logger = l }
}

// NewExtractor returns a new Extractor.
func NewExtractor(opts ...ExtractorOption) *Extractor {
	e := &Extractor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract reads the file at path and returns its text content.
// A read failure is surfaced to the caller; a parse failure degrades to
// empty text with ErrMalformedDocument.
func (e *Extractor) Extract(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return e.ExtractBytes(content)
}

// ExtractBytes extracts text from raw PDF bytes. Pure function of its input.
// On any parse error or recovered panic it returns ("", ErrMalformedDocument)
// wrapped with detail; it never panics.
func (e *Extractor) ExtractBytes(content []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e.logger != nil {
				e.logger.Warn("extraction panicked (malformed document?)", zap.Any("panic", r))
			}
			text = ""
			err = fmt.Errorf("%w: parser fault: %v", ErrMalformedDocument, r)
		}
	}()
	text, err = extractPDF(content)
	if err != nil {
		if e.logger != nil {
			e.logger.Warn("extraction failed", zap.Error(err))
		}
		return "", fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	return text, nil
}

// EstimatePageCount estimates the number of pages from extracted text length.
// Used only when the document structure yields no page count.
func EstimatePageCount(text string) int {
	if len(text) == 0 {
		return 1
	}
	return (len(text) + charsPerPage - 1) / charsPerPage
}
