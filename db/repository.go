package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"aesthetisim/core"
	"aesthetisim/simulation"
)

// timeFormat is how timestamps are stored. The fractional seconds are
// fixed-width so the strings sort lexicographically, which the created_at
// index relies on; RFC3339Nano trims trailing zeros and loses that
// ordering within a second.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// SimulationRepository persists simulation records. It implements
// simulation.Store; the status-guarded updates below are what give the
// coordinator its at-most-once terminal write.
type SimulationRepository struct {
	db *Database
}

// NewSimulationRepository creates a repository over an open database.
func NewSimulationRepository(database *Database) *SimulationRepository {
	return &SimulationRepository{db: database}
}

const simulationColumns = `id, patient_id, intervention_type, dose, status,
	original_image_path, generated_image_path, parameters, error_message,
	created_at, updated_at, completed_at`

// Insert stores a new record. The record id must be unique.
func (r *SimulationRepository) Insert(ctx context.Context, rec *simulation.Record) error {
	paramsJSON, err := simulation.EncodeParameters(rec.Parameters)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO simulations (` + simulationColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var completedAt interface{}
	if rec.CompletedAt != nil {
		completedAt = rec.CompletedAt.UTC().Format(timeFormat)
	}

	_, err = r.db.DB().ExecContext(ctx, query,
		rec.ID,
		rec.PatientID,
		string(rec.Intervention),
		rec.Dose,
		string(rec.Status),
		rec.OriginalImagePath,
		rec.GeneratedImagePath,
		paramsJSON,
		rec.ErrorMessage,
		rec.CreatedAt.UTC().Format(timeFormat),
		rec.UpdatedAt.UTC().Format(timeFormat),
		completedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert simulation: %w", err)
	}
	return nil
}

// Get returns the record with the given id, or simulation.ErrNotFound.
func (r *SimulationRepository) Get(ctx context.Context, id string) (*simulation.Record, error) {
	query := `SELECT ` + simulationColumns + ` FROM simulations WHERE id = ?`
	row := r.db.DB().QueryRowContext(ctx, query, id)

	rec, err := scanSimulation(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, simulation.ErrNotFound
		}
		return nil, fmt.Errorf("failed to query simulation: %w", err)
	}
	return rec, nil
}

// List returns records matching the filter, newest first.
func (r *SimulationRepository) List(ctx context.Context, filter simulation.ListFilter) ([]*simulation.Record, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filter.PatientID != "" {
		conds = append(conds, "patient_id = ?")
		args = append(args, filter.PatientID)
	}
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(filter.Status))
	}

	query := `SELECT ` + simulationColumns + ` FROM simulations`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := r.db.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list simulations: %w", err)
	}
	defer rows.Close()

	var records []*simulation.Record
	for rows.Next() {
		rec, err := scanSimulation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan simulation: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate simulations: %w", err)
	}
	return records, nil
}

// TransitionStatus moves a record between non-terminal states. The update
// only lands when the current status still matches, so a stale caller gets
// false instead of clobbering someone else's transition.
func (r *SimulationRepository) TransitionStatus(ctx context.Context, id string, from, to simulation.Status) (bool, error) {
	query := `
		UPDATE simulations
		SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?`

	result, err := r.db.DB().ExecContext(ctx, query,
		string(to),
		time.Now().UTC().Format(timeFormat),
		id,
		string(from),
	)
	if err != nil {
		return false, fmt.Errorf("failed to transition simulation status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected == 1, nil
}

// FinishSimulation writes the terminal state in one guarded update. The
// WHERE clause requires a non-terminal status, so only the first terminal
// writer succeeds; every later attempt affects zero rows and returns
// false. Accepting pending as well as processing lets the coordinator
// fail a record whose start transition errored out.
func (r *SimulationRepository) FinishSimulation(ctx context.Context, id string, to simulation.Status, generatedPath, paramsJSON, errMsg string) (bool, error) {
	if !to.Terminal() {
		return false, fmt.Errorf("status %q is not terminal", to)
	}
	if paramsJSON == "" {
		paramsJSON = "{}"
	}

	now := time.Now().UTC().Format(timeFormat)
	query := `
		UPDATE simulations
		SET status = ?, generated_image_path = ?, parameters = ?,
		    error_message = ?, updated_at = ?, completed_at = ?
		WHERE id = ? AND status IN (?, ?)`

	result, err := r.db.DB().ExecContext(ctx, query,
		string(to),
		generatedPath,
		paramsJSON,
		errMsg,
		now,
		now,
		id,
		string(simulation.StatusPending),
		string(simulation.StatusProcessing),
	)
	if err != nil {
		return false, fmt.Errorf("failed to finish simulation: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected == 1, nil
}

// Delete removes a record and returns it so the caller can clean up image
// artifacts. Returns simulation.ErrNotFound when no record exists.
func (r *SimulationRepository) Delete(ctx context.Context, id string) (*simulation.Record, error) {
	rec, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	result, err := r.db.DB().ExecContext(ctx, `DELETE FROM simulations WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to delete simulation: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		// Deleted by a concurrent caller between the read and the delete.
		return nil, simulation.ErrNotFound
	}
	return rec, nil
}

// Stats aggregates simulation history, optionally scoped to one patient.
// The average generation time only counts real generations; fallback
// placeholders are excluded.
func (r *SimulationRepository) Stats(ctx context.Context, patientID string) (*simulation.Stats, error) {
	stats := &simulation.Stats{
		ByStatus:       map[simulation.Status]int{},
		ByIntervention: map[string]int{},
	}

	var (
		where string
		args  []interface{}
	)
	if patientID != "" {
		where = " WHERE patient_id = ?"
		args = append(args, patientID)
	}

	rows, err := r.db.DB().QueryContext(ctx,
		`SELECT status, COUNT(*) FROM simulations`+where+` GROUP BY status`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate statuses: %w", err)
	}
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		stats.ByStatus[simulation.Status(status)] = count
		stats.Total += count
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to iterate status counts: %w", err)
	}
	rows.Close()

	rows, err = r.db.DB().QueryContext(ctx,
		`SELECT intervention_type, COUNT(*) FROM simulations`+where+` GROUP BY intervention_type`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate interventions: %w", err)
	}
	best := 0
	for rows.Next() {
		var (
			intervention string
			count        int
		)
		if err := rows.Scan(&intervention, &count); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan intervention count: %w", err)
		}
		stats.ByIntervention[intervention] = count
		if count > best {
			best = count
			stats.MostCommonIntervention = intervention
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to iterate intervention counts: %w", err)
	}
	rows.Close()

	avgQuery := `
		SELECT COALESCE(AVG(CAST(json_extract(parameters, '$.duration_ms') AS REAL)), 0)
		FROM simulations` + where
	if where == "" {
		avgQuery += " WHERE"
	} else {
		avgQuery += " AND"
	}
	avgQuery += ` status = 'completed'
		AND json_extract(parameters, '$.fallback') = 'false'`

	if err := r.db.DB().QueryRowContext(ctx, avgQuery, args...).Scan(&stats.AverageGenerationMS); err != nil {
		return nil, fmt.Errorf("failed to compute average generation time: %w", err)
	}

	return stats, nil
}

// scanner abstracts *sql.Row and *sql.Rows for scanSimulation.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSimulation(s scanner) (*simulation.Record, error) {
	var (
		rec          simulation.Record
		intervention string
		status       string
		paramsJSON   string
		createdAt    string
		updatedAt    string
		completedAt  sql.NullString
	)

	err := s.Scan(
		&rec.ID,
		&rec.PatientID,
		&intervention,
		&rec.Dose,
		&status,
		&rec.OriginalImagePath,
		&rec.GeneratedImagePath,
		&paramsJSON,
		&rec.ErrorMessage,
		&createdAt,
		&updatedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Intervention = core.Intervention(intervention)
	rec.Status = simulation.Status(status)

	rec.Parameters, err = simulation.DecodeParameters(paramsJSON)
	if err != nil {
		return nil, err
	}

	if rec.CreatedAt, err = parseStoredTime(createdAt); err != nil {
		return nil, err
	}
	if rec.UpdatedAt, err = parseStoredTime(updatedAt); err != nil {
		return nil, err
	}
	if completedAt.Valid && completedAt.String != "" {
		t, err := parseStoredTime(completedAt.String)
		if err != nil {
			return nil, err
		}
		rec.CompletedAt = &t
	}

	return &rec, nil
}

func parseStoredTime(value string) (time.Time, error) {
	// RFC3339Nano accepts any fraction width, so rows written before the
	// fixed-width format still parse.
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse stored timestamp %q: %w", value, err)
	}
	return t, nil
}
