package core

import (
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("WEBUI_PWD", "test-password")
}

func TestLoadConfigDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.Seed != 42 {
		t.Errorf("Seed = %d, want 42", cfg.Seed)
	}
	if cfg.InferenceSteps != 20 {
		t.Errorf("InferenceSteps = %d, want 20", cfg.InferenceSteps)
	}
	if cfg.GuidanceScale != 7.5 {
		t.Errorf("GuidanceScale = %v, want 7.5", cfg.GuidanceScale)
	}
	if cfg.ConditioningScale != 0.8 {
		t.Errorf("ConditioningScale = %v, want 0.8", cfg.ConditioningScale)
	}
	if cfg.MaxImageSize != 1024 {
		t.Errorf("MaxImageSize = %d, want 1024", cfg.MaxImageSize)
	}
	if cfg.GenerationTimeout != 120*time.Second {
		t.Errorf("GenerationTimeout = %v, want 120s", cfg.GenerationTimeout)
	}
	if cfg.Workers != 1 {
		t.Errorf("Workers = %d, want 1", cfg.Workers)
	}
	if cfg.GenBackend != BackendAuto {
		t.Errorf("GenBackend = %q, want auto", cfg.GenBackend)
	}
	if cfg.ModelName != "runwayml/stable-diffusion-v1-5" {
		t.Errorf("ModelName = %q", cfg.ModelName)
	}
	if cfg.ControlNetModel != "lllyasviel/sd-controlnet-canny" {
		t.Errorf("ControlNetModel = %q", cfg.ControlNetModel)
	}
	if cfg.MaxUploadSize != 52428800 {
		t.Errorf("MaxUploadSize = %d, want 50MB", cfg.MaxUploadSize)
	}
}

func TestLoadConfigRequiresPassword(t *testing.T) {
	t.Setenv("WEBUI_PWD", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error when WEBUI_PWD is unset")
	}
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad backend", "GEN_BACKEND", "local"},
		{"steps too high", "INFERENCE_STEPS", "500"},
		{"steps zero", "INFERENCE_STEPS", "0"},
		{"guidance too low", "GUIDANCE_SCALE", "0.5"},
		{"conditioning negative", "CONDITIONING_SCALE", "-1"},
		{"image size not multiple of 8", "MAX_IMAGE_SIZE", "1001"},
		{"image size too small", "MAX_IMAGE_SIZE", "64"},
		{"timeout too short", "GENERATION_TIMEOUT", "5"},
		{"too many workers", "GENERATION_WORKERS", "32"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tt.key, tt.value)

			if _, err := LoadConfig(); err == nil {
				t.Errorf("LoadConfig accepted %s=%s", tt.key, tt.value)
			}
		})
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("GEN_BACKEND", "synthetic")
	t.Setenv("GENERATION_SEED", "7")
	t.Setenv("GENERATION_WORKERS", "4")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.GenBackend != BackendSynthetic {
		t.Errorf("GenBackend = %q, want synthetic", cfg.GenBackend)
	}
	if cfg.Seed != 7 {
		t.Errorf("Seed = %d, want 7", cfg.Seed)
	}
	if cfg.Workers != 4 {
		t.Errorf("Workers = %d, want 4", cfg.Workers)
	}
}

func TestGetHTTPClient(t *testing.T) {
	cfg := &Config{AllowSelfSignedCerts: false}
	client := GetHTTPClient(cfg, 30*time.Second)
	if client.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", client.Timeout)
	}
	if client.Transport != nil {
		t.Error("Transport should be nil when self-signed certs are not allowed")
	}

	cfg.AllowSelfSignedCerts = true
	client = GetHTTPClient(cfg, time.Second)
	if client.Transport == nil {
		t.Error("Transport should be configured for self-signed certs")
	}
}

func TestConfigErrorFormat(t *testing.T) {
	err := ErrMissingConfig("WEBUI_PWD")
	if err.Code != ErrCodeMissingConfig {
		t.Errorf("Code = %q", err.Code)
	}
	msg := err.Error()
	if msg == "" || msg == err.Message {
		t.Errorf("Error() should append the action: %q", msg)
	}
}
