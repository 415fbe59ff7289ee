package render

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// Placeholder dimensions: US Letter at 72 DPI.
const (
	placeholderWidth  = 612
	placeholderHeight = 792
)

var (
	borderGray = color.NRGBA{R: 200, G: 200, B: 200, A: 255}
	statusTint = color.NRGBA{R: 200, G: 100, B: 100, A: 255}
)

// Placeholder returns the deterministic fallback bitmap shown when no
// backend can render a page: white fill, one-pixel gray border, and a
// centered tinted square. Identical dimensions and content on every call.
func Placeholder() image.Image {
	img := imaging.New(placeholderWidth, placeholderHeight, color.White)

	for x := 0; x < placeholderWidth; x++ {
		img.SetNRGBA(x, 0, borderGray)
		img.SetNRGBA(x, placeholderHeight-1, borderGray)
	}
	for y := 0; y < placeholderHeight; y++ {
		img.SetNRGBA(0, y, borderGray)
		img.SetNRGBA(placeholderWidth-1, y, borderGray)
	}

	rectSize := placeholderWidth / 10
	startX := placeholderWidth/2 - rectSize/2
	startY := placeholderHeight/2 - rectSize/2
	for x := startX; x < startX+rectSize; x++ {
		for y := startY; y < startY+rectSize; y++ {
			img.SetNRGBA(x, y, statusTint)
		}
	}
	return img
}
