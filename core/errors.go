package core

import (
	"fmt"
)

// ConfigError represents a configuration-related error with actionable instructions.
type ConfigError struct {
	Code    string // Error code for programmatic handling
	Message string // Human-readable error message
	Action  string // Actionable instruction for resolution
}

func (e *ConfigError) Error() string {
	if e.Action != "" {
		return fmt.Sprintf("%s. %s", e.Message, e.Action)
	}
	return e.Message
}

// Error codes for configuration errors
const (
	ErrCodeEnvFileMissing  = "ENV_FILE_MISSING"
	ErrCodeMissingConfig   = "MISSING_CONFIG"
	ErrCodeMissingAuth     = "MISSING_AUTH"
	ErrCodeInvalidBackend  = "INVALID_BACKEND"
	ErrCodeInvalidGenParam = "INVALID_GENERATION_PARAM"
)

// ErrEnvFileMissing returns an error for missing .env file
func ErrEnvFileMissing(path string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeEnvFileMissing,
		Message: fmt.Sprintf("Configuration file not found: %s", path),
		Action:  "Copy example.env to .env and configure the required values",
	}
}

// ErrMissingConfig returns an error for a missing required environment variable
func ErrMissingConfig(name string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeMissingConfig,
		Message: fmt.Sprintf("Required environment variable %s is not set", name),
		Action:  fmt.Sprintf("Set %s in your .env file", name),
	}
}

// ErrMissingAuth returns an error for missing backend credentials
func ErrMissingAuth(backend string) *ConfigError {
	var action string
	switch backend {
	case BackendOpenAI:
		action = "Set OPENAI_API_KEY in your .env file, or switch GEN_BACKEND to synthetic"
	case BackendSDAPI:
		action = "Set SD_API_URL to your Stable Diffusion endpoint, or switch GEN_BACKEND to synthetic"
	default:
		action = "Configure credentials for the selected generation backend"
	}
	return &ConfigError{
		Code:    ErrCodeMissingAuth,
		Message: fmt.Sprintf("Generation backend %q is not configured", backend),
		Action:  action,
	}
}

// ErrInvalidBackend returns an error for an unknown GEN_BACKEND value
func ErrInvalidBackend(value string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInvalidBackend,
		Message: fmt.Sprintf("Unknown generation backend %q", value),
		Action:  "Set GEN_BACKEND to one of: auto, sdapi, openai, synthetic",
	}
}
