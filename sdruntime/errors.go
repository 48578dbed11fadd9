package sdruntime

import "errors"

// Sentinel errors returned by backends and the lifecycle manager.
var (
	// ErrInvalidParams indicates a request failed validation.
	ErrInvalidParams = errors.New("sdruntime: invalid generation parameters")

	// ErrNotReady indicates the manager has not reached the ready state.
	ErrNotReady = errors.New("sdruntime: backend not ready")

	// ErrClosed indicates the manager or backend has been cleaned up.
	ErrClosed = errors.New("sdruntime: backend closed")

	// ErrGenerationFailed indicates the backend could not produce an image.
	ErrGenerationFailed = errors.New("sdruntime: generation failed")

	// ErrLoadFailed indicates the primary backend could not be loaded.
	// When the manager substitutes a fallback backend it still reaches
	// ready; this error is only returned when the fallback fails too.
	ErrLoadFailed = errors.New("sdruntime: model load failed")
)
