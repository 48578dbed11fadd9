package simulation

import (
	"context"
	"errors"
	"time"

	"aesthetisim/sdruntime"
)

// Errors returned by Store implementations and the coordinator.
var (
	// ErrNotFound indicates no record exists for the given id.
	ErrNotFound = errors.New("simulation: record not found")

	// ErrQueueFull indicates the generation queue rejected a new job.
	ErrQueueFull = errors.New("simulation: generation queue full")

	// ErrShuttingDown indicates the coordinator no longer accepts work.
	ErrShuttingDown = errors.New("simulation: shutting down")
)

// ListFilter narrows List results. Zero values mean no constraint.
type ListFilter struct {
	PatientID string
	Status    Status
	Limit     int
	Offset    int
}

// Stats aggregates per-patient simulation history for the stats endpoint.
type Stats struct {
	Total                  int            `json:"total"`
	ByStatus               map[Status]int `json:"by_status"`
	ByIntervention         map[string]int `json:"by_intervention"`
	MostCommonIntervention string         `json:"most_common_intervention,omitempty"`
	AverageGenerationMS    float64        `json:"average_generation_ms"`
}

// Store persists simulation records. Implementations must make
// FinishSimulation atomic: the row only changes when its current status
// still matches the expected one, which is what guarantees at most one
// terminal write per record.
type Store interface {
	Insert(ctx context.Context, rec *Record) error
	Get(ctx context.Context, id string) (*Record, error)
	List(ctx context.Context, filter ListFilter) ([]*Record, error)

	// TransitionStatus moves a record from one non-terminal status to
	// another. Returns false when the record was not in the expected
	// status (or does not exist).
	TransitionStatus(ctx context.Context, id string, from, to Status) (bool, error)

	// FinishSimulation writes the terminal state in a single atomic
	// update guarded by a non-terminal current status. Returns false
	// when the guard did not match, meaning another writer got there
	// first.
	FinishSimulation(ctx context.Context, id string, to Status, generatedPath, paramsJSON, errMsg string) (bool, error)

	// Delete removes a record, returning it so callers can clean up
	// artifacts. Returns ErrNotFound when no record exists.
	Delete(ctx context.Context, id string) (*Record, error)

	// Stats aggregates history, optionally scoped to one patient.
	Stats(ctx context.Context, patientID string) (*Stats, error)
}

// ImageStore persists image artifacts and returns opaque references that
// are stored on the record. Originals are written once and never
// overwritten.
type ImageStore interface {
	SaveOriginal(data []byte) (ref string, err error)
	SaveGenerated(data []byte) (ref string, err error)
	Load(ref string) ([]byte, error)
	Remove(ref string) error
}

// Generator is the generation capability the executor consumes. The
// sdruntime Manager satisfies it.
type Generator interface {
	Infer(ctx context.Context, req sdruntime.InferRequest) (*sdruntime.InferResult, error)
	ModelInfo() sdruntime.ModelInfo
}

// Event is one lifecycle transition, written to the audit trail.
type Event struct {
	SimulationID string
	PatientID    string
	EventType    string // created, processing, completed, failed, deleted
	Detail       string
	CreatedAt    time.Time
}

// EventSink receives lifecycle events. Implementations should not block;
// the db package provides an async implementation.
type EventSink interface {
	RecordEvent(event Event)
}

// Notifier pushes status changes to connected dashboard clients. Purely
// advisory: the persisted record remains the source of truth.
type Notifier interface {
	NotifyStatus(rec *Record)
}
