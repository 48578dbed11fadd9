// Package webui serves the clinician-facing dashboard: REST endpoints for
// simulations, a WebSocket feed for live status updates, and the embedded
// static assets behind session authentication.
package webui

import (
	"time"

	"aesthetisim/metrics"
	"aesthetisim/simulation"
)

// WebSocket message types pushed to dashboard clients.
const (
	// MessageTypeSimulationUpdate signals a simulation status change.
	MessageTypeSimulationUpdate = "simulation_update"

	// MessageTypeMetricsUpdate carries a fresh metrics snapshot.
	MessageTypeMetricsUpdate = "metrics_update"

	// MessageTypeBackendStatus signals a generation backend state change.
	MessageTypeBackendStatus = "backend_status"

	// MessageTypeInitial carries the state snapshot sent on connection.
	MessageTypeInitial = "initial"

	// MessageTypeError carries a server-side error notice.
	MessageTypeError = "error"
)

// WSMessage is the envelope for every WebSocket message. Data is decoded
// by the client based on Type.
type WSMessage struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// NewWSMessage wraps a payload in an envelope stamped with the current
// time.
func NewWSMessage(msgType string, data interface{}) WSMessage {
	return WSMessage{
		Type:      msgType,
		Timestamp: time.Now(),
		Data:      data,
	}
}

// SimulationUpdateData describes one simulation's current state for the
// live feed and the recent-activity list.
type SimulationUpdateData struct {
	SimulationID string    `json:"simulation_id"`
	PatientID    string    `json:"patient_id"`
	Intervention string    `json:"intervention_type"`
	Dose         float64   `json:"dose"`
	Status       string    `json:"status"`
	Fallback     bool      `json:"fallback,omitempty"`
	DurationMS   string    `json:"duration_ms,omitempty"`
	Error        string    `json:"error,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// SimulationUpdateFromRecord flattens a record into feed form.
func SimulationUpdateFromRecord(rec *simulation.Record) SimulationUpdateData {
	return SimulationUpdateData{
		SimulationID: rec.ID,
		PatientID:    rec.PatientID,
		Intervention: string(rec.Intervention),
		Dose:         rec.Dose,
		Status:       string(rec.Status),
		Fallback:     rec.IsFallback(),
		DurationMS:   rec.Parameters[simulation.ParamDurationMS],
		Error:        rec.ErrorMessage,
		UpdatedAt:    rec.UpdatedAt,
	}
}

// BackendStatusData describes the generation backend for the dashboard
// header.
type BackendStatusData struct {
	Backend      string    `json:"backend"`
	Model        string    `json:"model"`
	State        string    `json:"state"`
	UsedFallback bool      `json:"used_fallback"`
	CheckedAt    time.Time `json:"checked_at"`
}

// InitialData is the snapshot sent to a client right after it connects.
type InitialData struct {
	RecentActivity []SimulationUpdateData `json:"recent_activity"`
	Metrics        metrics.Snapshot       `json:"metrics"`
	Backend        BackendStatusData      `json:"backend"`
}

// ErrorData carries a server-side error notice to clients.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewSimulationUpdateMessage builds a simulation_update envelope.
func NewSimulationUpdateMessage(data SimulationUpdateData) WSMessage {
	return NewWSMessage(MessageTypeSimulationUpdate, data)
}

// NewMetricsUpdateMessage builds a metrics_update envelope.
func NewMetricsUpdateMessage(snap metrics.Snapshot) WSMessage {
	return NewWSMessage(MessageTypeMetricsUpdate, snap)
}

// NewBackendStatusMessage builds a backend_status envelope.
func NewBackendStatusMessage(data BackendStatusData) WSMessage {
	return NewWSMessage(MessageTypeBackendStatus, data)
}

// NewInitialMessage builds the initial snapshot envelope.
func NewInitialMessage(data InitialData) WSMessage {
	return NewWSMessage(MessageTypeInitial, data)
}

// NewErrorMessage builds an error envelope.
func NewErrorMessage(code, message string) WSMessage {
	return NewWSMessage(MessageTypeError, ErrorData{Code: code, Message: message})
}
