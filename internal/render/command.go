package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
)

// outputMode selects where a rasterizer process writes its image.
type outputMode int

const (
	// outputFile reads the image from a file the process writes under a
	// temporary prefix.
	outputFile outputMode = iota
	// outputStdout decodes the image from the process's standard output.
	outputStdout
)

// CommandBackend renders pages by invoking an external rasterizer process.
// A missing binary, non-zero exit, or unparseable output is a backend
// failure, never fatal.
type CommandBackend struct {
	binary string
	dpi    int
	mode   outputMode
}

// NewCommandBackend resolves the named rasterizer binary and returns a
// backend for it. Known binaries: pdftoppm (temp-file output) and mutool
// (stdout output). An unknown or unresolvable binary is an error.
func NewCommandBackend(binary string, dpi int) (*CommandBackend, error) {
	var mode outputMode
	switch filepath.Base(binary) {
	case "pdftoppm":
		mode = outputFile
	case "mutool":
		mode = outputStdout
	default:
		return nil, fmt.Errorf("%w: unknown rasterizer %q", ErrBackendUnavailable, binary)
	}
	resolved, err := exec.LookPath(binary)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return &CommandBackend{binary: resolved, dpi: dpi, mode: mode}, nil
}

// Name implements Backend.
func (b *CommandBackend) Name() string { return filepath.Base(b.binary) }

// RenderPage implements Backend. page is zero-based; rasterizers take
// one-based page numbers.
func (b *CommandBackend) RenderPage(ctx context.Context, path string, page int) (image.Image, error) {
	switch b.mode {
	case outputStdout:
		return b.renderStdout(ctx, path, page+1)
	default:
		return b.renderTempFile(ctx, path, page+1)
	}
}

func (b *CommandBackend) renderStdout(ctx context.Context, path string, page int) (image.Image, error) {
	cmd := exec.CommandContext(ctx, b.binary,
		"draw", "-F", "png", "-o", "-", "-r", strconv.Itoa(b.dpi),
		path, strconv.Itoa(page))
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %w: %s", b.Name(), err, stderr.String())
	}
	img, err := png.Decode(&out)
	if err != nil {
		return nil, fmt.Errorf("%s: decode output: %w", b.Name(), err)
	}
	return img, nil
}

func (b *CommandBackend) renderTempFile(ctx context.Context, path string, page int) (image.Image, error) {
	tmpDir, err := os.MkdirTemp("", "pdfscan-render-")
	if err != nil {
		return nil, fmt.Errorf("%s: temp dir: %w", b.Name(), err)
	}
	defer os.RemoveAll(tmpDir)

	prefix := filepath.Join(tmpDir, "page")
	p := strconv.Itoa(page)
	cmd := exec.CommandContext(ctx, b.binary,
		"-png", "-r", strconv.Itoa(b.dpi), "-f", p, "-l", p,
		path, prefix)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %w: %s", b.Name(), err, stderr.String())
	}

	// The process pads the page number in the output name depending on the
	// document's page count, so glob rather than guess.
	matches, err := filepath.Glob(prefix + "*.png")
	if err != nil || len(matches) == 0 {
		return nil, fmt.Errorf("%s: no output image produced", b.Name())
	}
	f, err := os.Open(matches[0])
	if err != nil {
		return nil, fmt.Errorf("%s: open output: %w", b.Name(), err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: decode output: %w", b.Name(), err)
	}
	return img, nil
}
