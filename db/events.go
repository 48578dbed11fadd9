package db

import (
	"fmt"
	"time"

	"aesthetisim/simulation"
)

// EventRecorder writes simulation lifecycle events to the audit trail. It
// implements simulation.EventSink. Events flow through an AsyncWriter so
// the pipeline never waits on the audit table; a full buffer falls back to
// a synchronous insert rather than losing the event.
type EventRecorder struct {
	db     *Database
	writer *AsyncWriter
}

// NewEventRecorder creates a recorder over an open database and starts its
// background writer. Call Close during shutdown to drain buffered events.
func NewEventRecorder(database *Database) *EventRecorder {
	r := &EventRecorder{db: database}
	r.writer = NewAsyncWriter(r.handleWrite)
	r.writer.Start()
	return r
}

// RecordEvent queues an event for insertion. Non-blocking.
func (r *EventRecorder) RecordEvent(event simulation.Event) {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	if r.writer.Write(event) {
		return
	}
	// Buffer full: take the hit and write inline.
	_ = r.insert(event)
}

// Close drains buffered events and stops the writer.
func (r *EventRecorder) Close() {
	r.writer.StopWithTimeout(DefaultDrainTimeout)
}

func (r *EventRecorder) handleWrite(op WriteOperation) error {
	event, ok := op.Data.(simulation.Event)
	if !ok {
		return fmt.Errorf("unexpected write payload %T", op.Data)
	}
	return r.insert(event)
}

func (r *EventRecorder) insert(event simulation.Event) error {
	query := `
		INSERT INTO simulation_events (simulation_id, patient_id, event_type, detail, created_at)
		VALUES (?, ?, ?, ?, ?)`

	_, err := r.db.Exec(query,
		event.SimulationID,
		event.PatientID,
		event.EventType,
		event.Detail,
		event.CreatedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("failed to insert simulation event: %w", err)
	}
	return nil
}

// RecentEvents returns the latest events for a simulation, newest first.
func (r *EventRecorder) RecentEvents(simulationID string, limit int) ([]simulation.Event, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.Query(`
		SELECT simulation_id, patient_id, event_type, detail, created_at
		FROM simulation_events
		WHERE simulation_id = ?
		ORDER BY id DESC
		LIMIT ?`, simulationID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query simulation events: %w", err)
	}
	defer rows.Close()

	var events []simulation.Event
	for rows.Next() {
		var (
			event     simulation.Event
			createdAt string
		)
		if err := rows.Scan(&event.SimulationID, &event.PatientID, &event.EventType, &event.Detail, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan simulation event: %w", err)
		}
		if event.CreatedAt, err = parseStoredTime(createdAt); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate simulation events: %w", err)
	}
	return events, nil
}
