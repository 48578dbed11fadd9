// Package simulation implements the aesthetic simulation state machine:
// records move pending -> processing -> completed | failed, with exactly
// one generation attempt and one terminal write per record.
package simulation

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"aesthetisim/core"
)

// Status is the lifecycle state of a simulation record.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether s is an end state. Terminal records are never
// updated again.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Parameter keys recorded in a simulation's metadata.
const (
	ParamSeed            = "seed"
	ParamSteps           = "steps"
	ParamGuidanceScale   = "guidance_scale"
	ParamConditioning    = "conditioning_scale"
	ParamBackend         = "backend"
	ParamModel           = "model"
	ParamControlNetModel = "controlnet_model"
	ParamEdgeDetector    = "edge_detector"
	ParamIntensity       = "intensity"
	ParamFallback        = "fallback"
	ParamError           = "error"
	ParamDurationMS      = "duration_ms"
)

// Record is one simulation: the request, its lifecycle state, and the
// artifact references. Parameters holds generation metadata as a flat
// string map so it survives a JSON round trip unchanged.
type Record struct {
	ID           string            `json:"id"`
	PatientID    string            `json:"patient_id"`
	Intervention core.Intervention `json:"intervention_type"`
	Dose         float64           `json:"dose"`
	Status       Status            `json:"status"`

	OriginalImagePath  string `json:"original_image_path,omitempty"`
	GeneratedImagePath string `json:"generated_image_path,omitempty"`

	Parameters   map[string]string `json:"parameters"`
	ErrorMessage string            `json:"error_message,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewRecord creates a pending record with a fresh id. The dose must have
// passed catalog validation before this is called.
func NewRecord(patientID string, intervention core.Intervention, dose float64) *Record {
	now := time.Now().UTC()
	return &Record{
		ID:           uuid.NewString(),
		PatientID:    patientID,
		Intervention: intervention,
		Dose:         dose,
		Status:       StatusPending,
		Parameters:   map[string]string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// IsFallback reports whether the generated artifact is the placeholder
// image rather than a real generation.
func (r *Record) IsFallback() bool {
	return r.Parameters[ParamFallback] == "true"
}

// EncodeParameters serializes a parameter map for storage. Nil and empty
// maps both encode as "{}" so the round trip is lossless.
func EncodeParameters(params map[string]string) (string, error) {
	if params == nil {
		params = map[string]string{}
	}
	data, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("simulation: encoding parameters: %w", err)
	}
	return string(data), nil
}

// DecodeParameters deserializes a stored parameter string. Empty input
// decodes to an empty, non-nil map.
func DecodeParameters(data string) (map[string]string, error) {
	if data == "" {
		return map[string]string{}, nil
	}
	params := map[string]string{}
	if err := json.Unmarshal([]byte(data), &params); err != nil {
		return nil, fmt.Errorf("simulation: decoding parameters: %w", err)
	}
	if params == nil {
		params = map[string]string{}
	}
	return params, nil
}
