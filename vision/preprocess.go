// Package vision prepares uploaded portrait images for the generation
// pipeline: decoding, RGB conversion, bounded downscaling, and edge map
// extraction for ControlNet conditioning.
package vision

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
)

// Image preprocessing errors
var (
	ErrInvalidImage      = errors.New("vision: invalid image data")
	ErrInvalidDimensions = errors.New("vision: invalid dimensions")
	ErrEmptyImage        = errors.New("vision: empty image data")
)

// DefaultMaxDimension bounds the longest side of a preprocessed image.
// Diffusion models also require dimensions divisible by 8, which Normalize
// enforces by cropping.
const DefaultMaxDimension = 1024

// DecodeImage decodes image data from common formats (PNG, JPEG, GIF).
// This is a pure function with no side effects.
func DecodeImage(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	bounds := img.Bounds()
	if bounds.Dx() < 1 || bounds.Dy() < 1 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, bounds.Dx(), bounds.Dy())
	}

	return img, nil
}

// ConvertToRGB converts any image to RGBA format, dropping exotic color
// models. Returns the input unchanged when it is already RGBA.
func ConvertToRGB(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}

	bounds := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	return rgba
}

// ScaleToFit downscales the image so its longest side is at most maxDim,
// preserving aspect ratio with high-quality CatmullRom resampling. Images
// already within the bound are returned unchanged; upscaling never happens.
func ScaleToFit(img *image.RGBA, maxDim int) *image.RGBA {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	longest := width
	if height > longest {
		longest = height
	}
	if longest <= maxDim {
		return img
	}

	scale := float64(maxDim) / float64(longest)
	newWidth := int(float64(width) * scale)
	newHeight := int(float64(height) * scale)
	if newWidth < 1 {
		newWidth = 1
	}
	if newHeight < 1 {
		newHeight = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

// CropToMultipleOf8 crops the right and bottom edges so both dimensions are
// divisible by 8. Returns ErrInvalidDimensions when either dimension is
// smaller than 8 pixels.
func CropToMultipleOf8(img *image.RGBA) (*image.RGBA, error) {
	bounds := img.Bounds()
	width := bounds.Dx() - bounds.Dx()%8
	height := bounds.Dy() - bounds.Dy()%8

	if width < 8 || height < 8 {
		return nil, fmt.Errorf("%w: %dx%d after cropping", ErrInvalidDimensions, width, height)
	}

	if width == bounds.Dx() && height == bounds.Dy() {
		return img, nil
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Src)
	return dst, nil
}

// Normalize runs the full preprocessing pipeline on raw upload bytes:
// decode, convert to RGB, downscale to fit maxDim, crop to 8-multiples.
// The result is ready for control image extraction and generation.
func Normalize(data []byte, maxDim int) (*image.RGBA, error) {
	if maxDim <= 0 {
		maxDim = DefaultMaxDimension
	}

	img, err := DecodeImage(data)
	if err != nil {
		return nil, err
	}

	rgb := ConvertToRGB(img)
	scaled := ScaleToFit(rgb, maxDim)
	return CropToMultipleOf8(scaled)
}
