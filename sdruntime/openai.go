package sdruntime

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIBackend generates images through the OpenAI image API. It has no
// control image support, so output follows the prompt alone; it serves as
// the cloud alternative when no ControlNet endpoint is available.
type OpenAIBackend struct {
	client *openai.Client
	model  string
	closed bool
}

var _ Backend = (*OpenAIBackend)(nil)

// NewOpenAIBackend creates an OpenAIBackend.
func NewOpenAIBackend(apiKey, model string) (*OpenAIBackend, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: OpenAI API key is empty", ErrLoadFailed)
	}
	if model == "" {
		model = openai.CreateImageModelDallE3
	}
	return &OpenAIBackend{
		client: openai.NewClient(apiKey),
		model:  model,
	}, nil
}

// ModelInfo implements Backend.
func (b *OpenAIBackend) ModelInfo() ModelInfo {
	return ModelInfo{
		Backend:   "openai",
		ModelName: b.model,
	}
}

// Close implements Backend.
func (b *OpenAIBackend) Close() error {
	b.closed = true
	return nil
}

// Infer implements Backend.
func (b *OpenAIBackend) Infer(ctx context.Context, req InferRequest) (*InferResult, error) {
	if b.closed {
		return nil, ErrClosed
	}

	req = ApplyDefaults(req)
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	start := time.Now()

	resp, err := b.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         req.Prompt,
		Model:          b.model,
		N:              1,
		Size:           nearestImageSize(req.Width, req.Height),
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrGenerationFailed)
	}

	imageData, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding image: %v", ErrGenerationFailed, err)
	}

	return &InferResult{
		ImageData: imageData,
		Seed:      req.Seed, // the API does not accept a seed; recorded for traceability
		Width:     req.Width,
		Height:    req.Height,
		Duration:  time.Since(start),
		Backend:   "openai",
	}, nil
}

// nearestImageSize maps requested dimensions to a supported API size.
func nearestImageSize(width, height int) string {
	switch {
	case width > height:
		return openai.CreateImageSize1792x1024
	case height > width:
		return openai.CreateImageSize1024x1792
	case width <= 256:
		return openai.CreateImageSize256x256
	case width <= 512:
		return openai.CreateImageSize512x512
	default:
		return openai.CreateImageSize1024x1024
	}
}
