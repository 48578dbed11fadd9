package sdruntime

import (
	"bytes"
	"context"
	"encoding/binary"
	"hash/fnv"
	"image"
	"image/png"
	"time"
)

// SyntheticBackend produces deterministic images without any model. It is
// used for development and tests, and as the substitute the Manager falls
// back to when a real backend cannot be loaded.
//
// Output is a pure function of the request: the init image (or a flat base
// when absent) tinted by channel offsets derived from the prompt and seed.
// The same request therefore always yields the same bytes.
type SyntheticBackend struct {
	closed bool
}

// NewSyntheticBackend creates a SyntheticBackend. It never fails, which is
// what makes it a safe lifecycle fallback.
func NewSyntheticBackend() *SyntheticBackend {
	return &SyntheticBackend{}
}

var _ Backend = (*SyntheticBackend)(nil)

// ModelInfo implements Backend.
func (b *SyntheticBackend) ModelInfo() ModelInfo {
	return ModelInfo{
		Backend:   "synthetic",
		ModelName: "synthetic-deterministic",
	}
}

// Close implements Backend.
func (b *SyntheticBackend) Close() error {
	b.closed = true
	return nil
}

// Infer implements Backend.
func (b *SyntheticBackend) Infer(ctx context.Context, req InferRequest) (*InferResult, error) {
	if b.closed {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	req = ApplyDefaults(req)
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	start := time.Now()

	base := req.InitImage
	if base == nil {
		base = flatBase(req.Width, req.Height)
	}

	rOff, gOff, bOff := tintOffsets(req.Prompt, req.Seed)
	out := image.NewRGBA(image.Rect(0, 0, req.Width, req.Height))

	bounds := base.Bounds()
	for y := 0; y < req.Height; y++ {
		for x := 0; x < req.Width; x++ {
			sx := bounds.Min.X + x%bounds.Dx()
			sy := bounds.Min.Y + y%bounds.Dy()
			c := base.RGBAAt(sx, sy)
			c.R = clampByte(int(c.R) + rOff)
			c.G = clampByte(int(c.G) + gOff)
			c.B = clampByte(int(c.B) + bOff)
			c.A = 255
			out.SetRGBA(x, y, c)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, err
	}

	return &InferResult{
		ImageData: buf.Bytes(),
		Seed:      req.Seed,
		Width:     req.Width,
		Height:    req.Height,
		Duration:  time.Since(start),
		Backend:   "synthetic",
	}, nil
}

// tintOffsets derives small per-channel offsets from the prompt and seed.
// Range is [-24, 24] per channel so the portrait stays recognizable.
func tintOffsets(prompt string, seed int64) (r, g, b int) {
	h := fnv.New64a()
	h.Write([]byte(prompt))
	var seedBytes [8]byte
	binary.LittleEndian.PutUint64(seedBytes[:], uint64(seed))
	h.Write(seedBytes[:])
	sum := h.Sum64()

	r = int(sum&0x3F)%49 - 24
	g = int((sum>>8)&0x3F)%49 - 24
	b = int((sum>>16)&0x3F)%49 - 24
	return r, g, b
}

func flatBase(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = 180
		img.Pix[i+1] = 160
		img.Pix[i+2] = 150
		img.Pix[i+3] = 255
	}
	return img
}

func clampByte(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
