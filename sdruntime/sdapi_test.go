package sdruntime

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

// newTestEndpoint serves a minimal generation endpoint: a /health route and
// a /generate route that echoes a tiny PNG.
func newTestEndpoint(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/generate", handler)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestAPIBackendGenerate(t *testing.T) {
	imageBytes := PlaceholderPNG()

	var captured generateRequest
	srv := newTestEndpoint(t, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		json.NewEncoder(w).Encode(generateResponse{
			Image: base64.StdEncoding.EncodeToString(imageBytes),
			Seed:  captured.Seed,
		})
	})

	b, err := NewAPIBackend(context.Background(), APIBackendConfig{
		BaseURL:         srv.URL,
		HTTPClient:      srv.Client(),
		ModelName:       "runwayml/stable-diffusion-v1-5",
		ControlNetModel: "lllyasviel/sd-controlnet-canny",
	})
	if err != nil {
		t.Fatalf("NewAPIBackend: %v", err)
	}

	result, err := b.Infer(context.Background(), InferRequest{
		Prompt:         "subtle lip enhancement",
		NegativePrompt: "blurry",
		Width:          512,
		Height:         512,
		Seed:           42,
	})
	if err != nil {
		t.Fatalf("Infer: %v", err)
	}

	if result.Seed != 42 {
		t.Errorf("seed = %d, want 42", result.Seed)
	}
	if result.Backend != "sdapi" {
		t.Errorf("backend = %q", result.Backend)
	}
	if len(result.ImageData) != len(imageBytes) {
		t.Errorf("image data length = %d, want %d", len(result.ImageData), len(imageBytes))
	}

	if captured.Prompt != "subtle lip enhancement" {
		t.Errorf("endpoint received prompt %q", captured.Prompt)
	}
	if captured.Steps != DefaultSteps {
		t.Errorf("endpoint received steps %d, want default %d", captured.Steps, DefaultSteps)
	}
	if captured.Model != "runwayml/stable-diffusion-v1-5" {
		t.Errorf("endpoint received model %q", captured.Model)
	}
}

func TestNewAPIBackendProbeFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewAPIBackend(context.Background(), APIBackendConfig{
		BaseURL:    srv.URL,
		HTTPClient: srv.Client(),
	})
	if !errors.Is(err, ErrLoadFailed) {
		t.Errorf("got %v, want ErrLoadFailed", err)
	}
}

func TestNewAPIBackendEmptyURL(t *testing.T) {
	_, err := NewAPIBackend(context.Background(), APIBackendConfig{})
	if !errors.Is(err, ErrLoadFailed) {
		t.Errorf("got %v, want ErrLoadFailed", err)
	}
}

func TestAPIBackendEndpointError(t *testing.T) {
	srv := newTestEndpoint(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(generateResponse{Error: "CUDA out of memory"})
	})

	b, err := NewAPIBackend(context.Background(), APIBackendConfig{
		BaseURL:    srv.URL,
		HTTPClient: srv.Client(),
	})
	if err != nil {
		t.Fatal(err)
	}

	_, err = b.Infer(context.Background(), InferRequest{
		Prompt: "x", Width: 64, Height: 64, Seed: 1,
	})
	if !errors.Is(err, ErrGenerationFailed) {
		t.Errorf("got %v, want ErrGenerationFailed", err)
	}
}

func TestAPIBackendHTTPError(t *testing.T) {
	srv := newTestEndpoint(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	b, err := NewAPIBackend(context.Background(), APIBackendConfig{
		BaseURL:    srv.URL,
		HTTPClient: srv.Client(),
	})
	if err != nil {
		t.Fatal(err)
	}

	_, err = b.Infer(context.Background(), InferRequest{
		Prompt: "x", Width: 64, Height: 64, Seed: 1,
	})
	if !errors.Is(err, ErrGenerationFailed) {
		t.Errorf("got %v, want ErrGenerationFailed", err)
	}
}

func TestAPIBackendClosed(t *testing.T) {
	srv := newTestEndpoint(t, func(w http.ResponseWriter, r *http.Request) {})

	b, err := NewAPIBackend(context.Background(), APIBackendConfig{
		BaseURL:    srv.URL,
		HTTPClient: srv.Client(),
	})
	if err != nil {
		t.Fatal(err)
	}
	b.Close()

	if _, err := b.Infer(context.Background(), InferRequest{Prompt: "x"}); !errors.Is(err, ErrClosed) {
		t.Errorf("got %v, want ErrClosed", err)
	}
}

func TestPlaceholderImage(t *testing.T) {
	img := PlaceholderImage()
	if img.Bounds().Dx() != PlaceholderDimension || img.Bounds().Dy() != PlaceholderDimension {
		t.Errorf("bounds = %v", img.Bounds())
	}
	c := img.RGBAAt(256, 256)
	if c.R != placeholderGray || c.G != placeholderGray || c.B != placeholderGray {
		t.Errorf("pixel = %v, want uniform gray %d", c, placeholderGray)
	}

	if len(PlaceholderPNG()) == 0 {
		t.Error("PlaceholderPNG returned no data")
	}
}
