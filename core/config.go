package core

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"
)

// Backend selection values for the GEN_BACKEND environment variable.
// Selection happens once, at construction time; there is no import-time
// or per-request switching between backends.
const (
	BackendAuto      = "auto"      // pick sdapi, then openai, then synthetic
	BackendSDAPI     = "sdapi"     // remote Stable Diffusion + ControlNet HTTP endpoint
	BackendOpenAI    = "openai"    // OpenAI image API (no control image support)
	BackendSynthetic = "synthetic" // deterministic local producer, no model needed
)

// Config holds all configuration values for the simulation backend.
type Config struct {
	// Server configuration
	Host                 string
	Port                 int
	WebUIPassword        string
	AllowSelfSignedCerts bool

	// Paths
	UploadDir   string
	DBPath      string
	LogFile     string
	CatalogPath string // optional YAML with catalog display overrides

	// Generation backend selection
	GenBackend       string // one of the Backend* constants
	SDAPIURL         string // ControlNet txt2img endpoint (sdapi backend)
	OpenAIAPIKey     string
	OpenAIImageModel string

	// Model identifiers reported in simulation metadata
	ModelName       string
	ControlNetModel string

	// Generation parameters
	InferenceSteps    int
	GuidanceScale     float64
	ConditioningScale float64
	Seed              int64 // fixed by default so identical requests reproduce
	MaxImageSize      int   // largest allowed dimension after preprocessing

	// Execution
	GenerationTimeout time.Duration // hard budget; expiry forces the fallback image
	Workers           int           // generation worker pool size
	QueueCapacity     int

	// Upload limits
	MaxUploadSize int64
}

// Helper function to get environment variable with default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Helper function to parse integer environment variable with default value
func parseIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// Helper function to parse int64 environment variable with default value
func parseInt64Env(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// Helper function to parse float64 environment variable with default value
func parseFloat64Env(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// LoadConfig loads configuration from environment variables with defaults
// chosen for a zero-config development deployment. Only WEBUI_PWD is
// required; without an SD endpoint or OpenAI key the synthetic backend
// serves generations.
func LoadConfig() (*Config, error) {
	genBackend := getEnvOrDefault("GEN_BACKEND", BackendAuto)
	switch genBackend {
	case BackendAuto, BackendSDAPI, BackendOpenAI, BackendSynthetic:
	default:
		return nil, fmt.Errorf("GEN_BACKEND must be one of auto, sdapi, openai, synthetic; got %q", genBackend)
	}

	inferenceSteps := parseIntEnv("INFERENCE_STEPS", 20)
	if inferenceSteps < 1 || inferenceSteps > 100 {
		return nil, fmt.Errorf("INFERENCE_STEPS must be between 1 and 100, got %d", inferenceSteps)
	}

	guidanceScale := parseFloat64Env("GUIDANCE_SCALE", 7.5)
	if guidanceScale < 1.0 || guidanceScale > 30.0 {
		return nil, fmt.Errorf("GUIDANCE_SCALE must be between 1.0 and 30.0, got %.2f", guidanceScale)
	}

	conditioningScale := parseFloat64Env("CONDITIONING_SCALE", 0.8)
	if conditioningScale < 0.0 || conditioningScale > 2.0 {
		return nil, fmt.Errorf("CONDITIONING_SCALE must be between 0.0 and 2.0, got %.2f", conditioningScale)
	}

	maxImageSize := parseIntEnv("MAX_IMAGE_SIZE", 1024)
	if maxImageSize%8 != 0 {
		return nil, fmt.Errorf("MAX_IMAGE_SIZE must be divisible by 8, got %d", maxImageSize)
	}
	if maxImageSize < 128 || maxImageSize > 2048 {
		return nil, fmt.Errorf("MAX_IMAGE_SIZE must be between 128 and 2048, got %d", maxImageSize)
	}

	generationTimeout := time.Duration(parseIntEnv("GENERATION_TIMEOUT", 120)) * time.Second
	if generationTimeout < 10*time.Second {
		return nil, fmt.Errorf("GENERATION_TIMEOUT must be at least 10 seconds")
	}

	// Single worker serialises access to a single accelerator; raise only
	// when the backend can actually run generations in parallel.
	workers := parseIntEnv("GENERATION_WORKERS", 1)
	if workers < 1 || workers > 8 {
		return nil, fmt.Errorf("GENERATION_WORKERS must be between 1 and 8, got %d", workers)
	}

	webuiPassword := os.Getenv("WEBUI_PWD")
	if webuiPassword == "" {
		return nil, ErrMissingConfig("WEBUI_PWD")
	}

	return &Config{
		Host:                 getEnvOrDefault("HOST", "localhost"),
		Port:                 parseIntEnv("PORT", 8080),
		WebUIPassword:        webuiPassword,
		AllowSelfSignedCerts: getEnvOrDefault("ALLOW_SELF_SIGNED_CERTS", "false") == "true",

		UploadDir:   getEnvOrDefault("UPLOAD_DIR", "./uploads"),
		DBPath:      getEnvOrDefault("DB_PATH", "./data/aesthetisim.db"),
		LogFile:     getEnvOrDefault("LOG_FILE", "aesthetisim.log"),
		CatalogPath: os.Getenv("CATALOG_PATH"),

		GenBackend:       genBackend,
		SDAPIURL:         os.Getenv("SD_API_URL"),
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIImageModel: getEnvOrDefault("IMAGE_GEN_MODEL", "dall-e-3"),

		ModelName:       getEnvOrDefault("MODEL_NAME", "runwayml/stable-diffusion-v1-5"),
		ControlNetModel: getEnvOrDefault("CONTROLNET_MODEL", "lllyasviel/sd-controlnet-canny"),

		InferenceSteps:    inferenceSteps,
		GuidanceScale:     guidanceScale,
		ConditioningScale: conditioningScale,
		Seed:              parseInt64Env("GENERATION_SEED", 42),
		MaxImageSize:      maxImageSize,

		GenerationTimeout: generationTimeout,
		Workers:           workers,
		QueueCapacity:     parseIntEnv("QUEUE_CAPACITY", 64),

		MaxUploadSize: parseInt64Env("MAX_UPLOAD_SIZE", 52428800), // 50MB
	}, nil
}

// GetHTTPClient returns an HTTP client configured with TLS settings based
// on AllowSelfSignedCerts. All outbound requests to generation endpoints
// should go through this so TLS configuration is respected.
func GetHTTPClient(cfg *Config, timeout time.Duration) *http.Client {
	client := &http.Client{
		Timeout: timeout,
	}

	if cfg.AllowSelfSignedCerts {
		client.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	return client
}
