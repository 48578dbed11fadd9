package sdruntime

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
)

// Placeholder image constants. When a generation fails or times out the
// pipeline stores this image instead of failing the simulation, flagged in
// the record metadata so clients can tell it apart from a real result.
const (
	PlaceholderDimension = 512
	placeholderGray      = 200
)

// PlaceholderImage returns a uniform light gray 512x512 image.
func PlaceholderImage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, PlaceholderDimension, PlaceholderDimension))
	c := color.RGBA{placeholderGray, placeholderGray, placeholderGray, 255}
	for y := 0; y < PlaceholderDimension; y++ {
		for x := 0; x < PlaceholderDimension; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

// PlaceholderPNG returns the placeholder image encoded as PNG.
func PlaceholderPNG() []byte {
	var buf bytes.Buffer
	// Encoding a valid in-memory image cannot fail.
	_ = png.Encode(&buf, PlaceholderImage())
	return buf.Bytes()
}
