package vision

import (
	"image"
	"image/color"
)

// EdgeDetector extracts a single-channel control image from a preprocessed
// portrait. Implementations are injected into the generation pipeline, so
// the conditioning strategy can be swapped without touching callers.
type EdgeDetector interface {
	// Detect returns an edge map with the same dimensions as the input.
	Detect(img *image.RGBA) (*image.Gray, error)

	// Name identifies the detector in simulation metadata.
	Name() string
}

// SobelDetector computes a binary edge map from gradient magnitude.
// It approximates the Canny conditioning the diffusion ControlNet was
// trained on, without an external CV dependency.
type SobelDetector struct {
	// Threshold is the gradient magnitude above which a pixel counts as an
	// edge. Zero means DefaultSobelThreshold.
	Threshold int
}

// DefaultSobelThreshold matches the upper hysteresis bound commonly used
// for Canny portrait conditioning.
const DefaultSobelThreshold = 200

var _ EdgeDetector = (*SobelDetector)(nil)

// Name implements EdgeDetector.
func (d *SobelDetector) Name() string { return "sobel" }

// Detect implements EdgeDetector.
func (d *SobelDetector) Detect(img *image.RGBA) (*image.Gray, error) {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width < 1 || height < 1 {
		return nil, ErrInvalidDimensions
	}

	threshold := d.Threshold
	if threshold <= 0 {
		threshold = DefaultSobelThreshold
	}

	gray := toGray(img)
	out := image.NewGray(image.Rect(0, 0, width, height))

	// Border pixels stay black; the kernel needs a full 3x3 neighborhood.
	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			gx := -int(gray.GrayAt(x-1, y-1).Y) + int(gray.GrayAt(x+1, y-1).Y) +
				-2*int(gray.GrayAt(x-1, y).Y) + 2*int(gray.GrayAt(x+1, y).Y) +
				-int(gray.GrayAt(x-1, y+1).Y) + int(gray.GrayAt(x+1, y+1).Y)

			gy := -int(gray.GrayAt(x-1, y-1).Y) - 2*int(gray.GrayAt(x, y-1).Y) - int(gray.GrayAt(x+1, y-1).Y) +
				int(gray.GrayAt(x-1, y+1).Y) + 2*int(gray.GrayAt(x, y+1).Y) + int(gray.GrayAt(x+1, y+1).Y)

			if gx < 0 {
				gx = -gx
			}
			if gy < 0 {
				gy = -gy
			}

			if gx+gy >= threshold {
				out.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}

	return out, nil
}

// FlatDetector produces a uniform mid-gray control image. It is the
// substitute used when no real edge extraction is available, for example
// with the synthetic backend, and keeps the pipeline shape identical.
type FlatDetector struct{}

// FlatGrayValue is the uniform intensity emitted by FlatDetector.
const FlatGrayValue = 128

var _ EdgeDetector = (*FlatDetector)(nil)

// Name implements EdgeDetector.
func (d *FlatDetector) Name() string { return "flat" }

// Detect implements EdgeDetector.
func (d *FlatDetector) Detect(img *image.RGBA) (*image.Gray, error) {
	bounds := img.Bounds()
	if bounds.Dx() < 1 || bounds.Dy() < 1 {
		return nil, ErrInvalidDimensions
	}

	out := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for i := range out.Pix {
		out.Pix[i] = FlatGrayValue
	}
	return out, nil
}

// toGray converts an RGBA image to 8-bit grayscale using the standard
// luminance weights.
func toGray(img *image.RGBA) *image.Gray {
	bounds := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := img.RGBAAt(x, y)
			lum := (299*int(c.R) + 587*int(c.G) + 114*int(c.B)) / 1000
			out.SetGray(x-bounds.Min.X, y-bounds.Min.Y, color.Gray{Y: uint8(lum)})
		}
	}
	return out
}
