// Package sdruntime provides the image generation capability for
// aesthetic simulations: a Backend interface with remote, cloud, and
// synthetic implementations, and a Manager handling model lifecycle.
package sdruntime

import (
	"context"
	"image"
	"time"
)

// Backend generates an enhanced portrait from a prompt and control inputs.
//
// Implementations:
//   - APIBackend: remote Stable Diffusion + ControlNet HTTP endpoint
//   - OpenAIBackend: OpenAI image API (prompt only, no control image)
//   - SyntheticBackend: deterministic local producer, no model needed
type Backend interface {
	// Infer runs one generation. The request must pass ValidateRequest.
	// Implementations honor ctx cancellation and deadline.
	Infer(ctx context.Context, req InferRequest) (*InferResult, error)

	// ModelInfo describes the backend for simulation metadata.
	ModelInfo() ModelInfo

	// Close releases backend resources. Safe to call multiple times.
	Close() error
}

// InferRequest carries everything one generation needs. Dimensions refer
// to the desired output; they must be divisible by 8.
type InferRequest struct {
	Prompt         string
	NegativePrompt string

	// InitImage is the preprocessed patient portrait. May be nil for
	// backends that generate from the prompt alone.
	InitImage *image.RGBA

	// ControlImage is the edge map conditioning the generation. Backends
	// without control support ignore it.
	ControlImage *image.Gray

	Width  int
	Height int

	Steps             int
	GuidanceScale     float64
	ConditioningScale float64

	// Seed below zero means a random seed; the resolved value is reported
	// in the result.
	Seed int64
}

// InferResult is the outcome of a successful generation.
type InferResult struct {
	// ImageData is the generated image encoded as PNG.
	ImageData []byte

	Seed     int64
	Width    int
	Height   int
	Duration time.Duration

	// Backend names the implementation that produced the image.
	Backend string
}

// ModelInfo describes a backend's model for record metadata.
type ModelInfo struct {
	Backend         string `json:"backend"`
	ModelName       string `json:"model_name"`
	ControlNetModel string `json:"controlnet_model,omitempty"`
}

// BackendFactory constructs a Backend. The Manager uses factories so the
// expensive load happens inside Initialize rather than at wiring time.
type BackendFactory func(ctx context.Context) (Backend, error)
