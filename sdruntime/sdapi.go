package sdruntime

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"strings"
	"time"
)

// APIBackendConfig configures the remote ControlNet endpoint client.
type APIBackendConfig struct {
	// BaseURL is the root of the generation service, e.g. http://gpu-host:7860.
	BaseURL string

	// HTTPClient performs the requests. Required so TLS settings are
	// controlled by the caller.
	HTTPClient *http.Client

	// ModelName and ControlNetModel are reported in metadata and passed to
	// the endpoint so it can select the right pipeline.
	ModelName       string
	ControlNetModel string
}

// APIBackend generates images through a remote Stable Diffusion +
// ControlNet HTTP endpoint. This is the primary production backend.
type APIBackend struct {
	cfg    APIBackendConfig
	closed bool
}

var _ Backend = (*APIBackend)(nil)

// NewAPIBackend creates an APIBackend and probes the endpoint's health.
// A probe failure is returned so the lifecycle manager can substitute a
// fallback backend instead of going ready with a dead endpoint.
func NewAPIBackend(ctx context.Context, cfg APIBackendConfig) (*APIBackend, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: endpoint URL is empty", ErrLoadFailed)
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	b := &APIBackend{cfg: cfg}
	if err := b.probe(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadFailed, err)
	}
	return b, nil
}

// probe checks the endpoint health route.
func (b *APIBackend) probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.cfg.BaseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := b.cfg.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned %d", resp.StatusCode)
	}
	return nil
}

// ModelInfo implements Backend.
func (b *APIBackend) ModelInfo() ModelInfo {
	return ModelInfo{
		Backend:         "sdapi",
		ModelName:       b.cfg.ModelName,
		ControlNetModel: b.cfg.ControlNetModel,
	}
}

// Close implements Backend.
func (b *APIBackend) Close() error {
	b.closed = true
	return nil
}

// generateRequest is the wire format sent to the endpoint.
type generateRequest struct {
	Prompt            string  `json:"prompt"`
	NegativePrompt    string  `json:"negative_prompt,omitempty"`
	InitImage         string  `json:"init_image,omitempty"`    // base64 PNG
	ControlImage      string  `json:"control_image,omitempty"` // base64 PNG
	Width             int     `json:"width"`
	Height            int     `json:"height"`
	Steps             int     `json:"num_inference_steps"`
	GuidanceScale     float64 `json:"guidance_scale"`
	ConditioningScale float64 `json:"controlnet_conditioning_scale"`
	Seed              int64   `json:"seed"`
	Model             string  `json:"model,omitempty"`
	ControlNetModel   string  `json:"controlnet_model,omitempty"`
}

// generateResponse is the wire format returned by the endpoint.
type generateResponse struct {
	Image string `json:"image"` // base64 PNG
	Seed  int64  `json:"seed"`
	Error string `json:"error,omitempty"`
}

// Infer implements Backend.
func (b *APIBackend) Infer(ctx context.Context, req InferRequest) (*InferResult, error) {
	if b.closed {
		return nil, ErrClosed
	}

	req = ApplyDefaults(req)
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	start := time.Now()

	payload := generateRequest{
		Prompt:            req.Prompt,
		NegativePrompt:    req.NegativePrompt,
		Width:             req.Width,
		Height:            req.Height,
		Steps:             req.Steps,
		GuidanceScale:     req.GuidanceScale,
		ConditioningScale: req.ConditioningScale,
		Seed:              req.Seed,
		Model:             b.cfg.ModelName,
		ControlNetModel:   b.cfg.ControlNetModel,
	}

	if req.InitImage != nil {
		encoded, err := encodePNGBase64(req.InitImage)
		if err != nil {
			return nil, fmt.Errorf("%w: encoding init image: %v", ErrGenerationFailed, err)
		}
		payload.InitImage = encoded
	}
	if req.ControlImage != nil {
		encoded, err := encodePNGBase64(req.ControlImage)
		if err != nil {
			return nil, fmt.Errorf("%w: encoding control image: %v", ErrGenerationFailed, err)
		}
		payload.ControlImage = encoded
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.cfg.BaseURL+"/generate", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := b.cfg.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrGenerationFailed, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: endpoint returned %d: %s",
			ErrGenerationFailed, resp.StatusCode, truncate(string(respBody), 200))
	}

	var result generateResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrGenerationFailed, err)
	}
	if result.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrGenerationFailed, result.Error)
	}

	imageData, err := base64.StdEncoding.DecodeString(result.Image)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding image: %v", ErrGenerationFailed, err)
	}
	if len(imageData) == 0 {
		return nil, fmt.Errorf("%w: endpoint returned empty image", ErrGenerationFailed)
	}

	seed := result.Seed
	if seed == 0 {
		seed = req.Seed
	}

	return &InferResult{
		ImageData: imageData,
		Seed:      seed,
		Width:     req.Width,
		Height:    req.Height,
		Duration:  time.Since(start),
		Backend:   "sdapi",
	}, nil
}

// encodePNGBase64 encodes any image as base64 PNG.
func encodePNGBase64(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
