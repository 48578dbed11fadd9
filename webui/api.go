package webui

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"aesthetisim/core"
	"aesthetisim/logging"
	"aesthetisim/metrics"
	"aesthetisim/simulation"
)

// DefaultMaxUploadSize caps a portrait upload at 50MB.
const DefaultMaxUploadSize = 50 << 20

// DefaultListLimit bounds an unpaginated list request.
const DefaultListLimit = 50

// EventSource provides the audit trail for one simulation.
// db.EventRecorder satisfies it.
type EventSource interface {
	RecentEvents(simulationID string, limit int) ([]simulation.Event, error)
}

// SimulationAPI exposes the simulation lifecycle over REST:
//
//	POST   /api/simulations             create and start a simulation
//	GET    /api/simulations             list, filtered by patient/status
//	GET    /api/simulations/{id}        fetch one record
//	DELETE /api/simulations/{id}        remove record and artifacts
//	GET    /api/simulations/{id}/image  serve an artifact (kind=original|generated)
//	GET    /api/simulations/{id}/events audit trail
//	GET    /api/stats                   aggregate history
//	GET    /api/interventions           treatment catalog with dose bounds
//	GET    /api/metrics                 process counters and timings
type SimulationAPI struct {
	coordinator   *simulation.Coordinator
	events        EventSource
	metrics       *metrics.Store
	logger        *logging.Logger
	maxUploadSize int64
}

// APIConfig configures the SimulationAPI.
type APIConfig struct {
	Events        EventSource
	Metrics       *metrics.Store
	Logger        *logging.Logger
	MaxUploadSize int64
}

// NewSimulationAPI creates the API over a coordinator.
func NewSimulationAPI(coordinator *simulation.Coordinator, cfg APIConfig) *SimulationAPI {
	if cfg.MaxUploadSize <= 0 {
		cfg.MaxUploadSize = DefaultMaxUploadSize
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewStore()
	}
	return &SimulationAPI{
		coordinator:   coordinator,
		events:        cfg.Events,
		metrics:       cfg.Metrics,
		logger:        cfg.Logger,
		maxUploadSize: cfg.MaxUploadSize,
	}
}

// RegisterRoutes mounts every API route on mux.
func (a *SimulationAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/simulations", a.handleCreate)
	mux.HandleFunc("GET /api/simulations", a.handleList)
	mux.HandleFunc("GET /api/simulations/{id}", a.handleGet)
	mux.HandleFunc("DELETE /api/simulations/{id}", a.handleDelete)
	mux.HandleFunc("GET /api/simulations/{id}/image", a.handleImage)
	mux.HandleFunc("GET /api/simulations/{id}/events", a.handleEvents)
	mux.HandleFunc("GET /api/stats", a.handleStats)
	mux.HandleFunc("GET /api/interventions", a.handleInterventions)
	mux.HandleFunc("GET /api/metrics", a.handleMetrics)
}

// handleCreate accepts a multipart form with patient_id,
// intervention_type, dose, and an image file, then starts a simulation.
// The response record is already in the processing state.
func (a *SimulationAPI) handleCreate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, a.maxUploadSize)
	if err := r.ParseMultipartForm(a.maxUploadSize); err != nil {
		a.writeError(w, http.StatusBadRequest, "invalid_form", "could not parse multipart form: "+err.Error())
		return
	}

	patientID := r.FormValue("patient_id")
	interventionType := core.Intervention(r.FormValue("intervention_type"))

	dose, err := strconv.ParseFloat(r.FormValue("dose"), 64)
	if err != nil {
		a.writeError(w, http.StatusBadRequest, "invalid_dose", "dose must be a number")
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		a.writeError(w, http.StatusBadRequest, "missing_image", "an image file is required")
		return
	}
	defer file.Close()

	imageData, err := io.ReadAll(file)
	if err != nil {
		a.writeError(w, http.StatusBadRequest, "unreadable_image", "could not read uploaded image")
		return
	}

	rec, err := a.coordinator.Create(r.Context(), patientID, interventionType, dose, imageData)
	if err != nil {
		a.writeCreateError(w, err)
		return
	}

	a.logInfo("simulation created",
		zap.String("simulation_id", rec.ID),
		zap.String("intervention", string(rec.Intervention)),
	)
	a.writeJSON(w, http.StatusCreated, rec)
}

func (a *SimulationAPI) writeCreateError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrUnsupportedIntervention):
		a.writeError(w, http.StatusBadRequest, "unsupported_intervention", err.Error())
	case errors.Is(err, core.ErrDoseOutOfRange):
		a.writeError(w, http.StatusBadRequest, "dose_out_of_range", err.Error())
	case errors.Is(err, simulation.ErrQueueFull):
		a.writeError(w, http.StatusServiceUnavailable, "queue_full", "generation queue is full, retry later")
	case errors.Is(err, simulation.ErrShuttingDown):
		a.writeError(w, http.StatusServiceUnavailable, "shutting_down", "server is shutting down")
	default:
		a.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	}
}

func (a *SimulationAPI) handleList(w http.ResponseWriter, r *http.Request) {
	filter := simulation.ListFilter{
		PatientID: r.URL.Query().Get("patient_id"),
		Limit:     DefaultListLimit,
	}

	if status := r.URL.Query().Get("status"); status != "" {
		s := simulation.Status(status)
		if !s.Valid() {
			a.writeError(w, http.StatusBadRequest, "invalid_status", "unknown status "+status)
			return
		}
		filter.Status = s
	}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 1 {
			a.writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		filter.Limit = n
	}
	if offset := r.URL.Query().Get("offset"); offset != "" {
		n, err := strconv.Atoi(offset)
		if err != nil || n < 0 {
			a.writeError(w, http.StatusBadRequest, "invalid_offset", "offset must be a non-negative integer")
			return
		}
		filter.Offset = n
	}

	records, err := a.coordinator.List(r.Context(), filter)
	if err != nil {
		a.writeError(w, http.StatusInternalServerError, "list_failed", err.Error())
		return
	}

	a.writeJSON(w, http.StatusOK, map[string]interface{}{
		"simulations": records,
		"count":       len(records),
	})
}

func (a *SimulationAPI) handleGet(w http.ResponseWriter, r *http.Request) {
	rec, err := a.coordinator.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeLookupError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, rec)
}

func (a *SimulationAPI) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := a.coordinator.Delete(r.Context(), id); err != nil {
		a.writeLookupError(w, err)
		return
	}

	a.logInfo("simulation deleted", zap.String("simulation_id", id))
	w.WriteHeader(http.StatusNoContent)
}

// handleImage streams a stored artifact. kind selects the original
// upload or the generated result; the default is generated.
func (a *SimulationAPI) handleImage(w http.ResponseWriter, r *http.Request) {
	rec, err := a.coordinator.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeLookupError(w, err)
		return
	}

	ref := rec.GeneratedImagePath
	if r.URL.Query().Get("kind") == "original" {
		ref = rec.OriginalImagePath
	}
	if ref == "" {
		a.writeError(w, http.StatusNotFound, "image_not_ready", "image is not available yet")
		return
	}

	data, err := a.coordinator.LoadImage(ref)
	if err != nil {
		a.writeError(w, http.StatusNotFound, "image_missing", "stored image could not be read")
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (a *SimulationAPI) handleEvents(w http.ResponseWriter, r *http.Request) {
	if a.events == nil {
		a.writeError(w, http.StatusNotFound, "events_disabled", "event history is not enabled")
		return
	}

	id := r.PathValue("id")
	if _, err := a.coordinator.Get(r.Context(), id); err != nil {
		a.writeLookupError(w, err)
		return
	}

	events, err := a.events.RecentEvents(id, 100)
	if err != nil {
		a.writeError(w, http.StatusInternalServerError, "events_failed", err.Error())
		return
	}

	a.writeJSON(w, http.StatusOK, map[string]interface{}{
		"simulation_id": id,
		"events":        events,
	})
}

func (a *SimulationAPI) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.coordinator.Stats(r.Context(), r.URL.Query().Get("patient_id"))
	if err != nil {
		a.writeError(w, http.StatusInternalServerError, "stats_failed", err.Error())
		return
	}
	a.writeJSON(w, http.StatusOK, stats)
}

func (a *SimulationAPI) handleInterventions(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, http.StatusOK, core.Catalog())
}

func (a *SimulationAPI) handleMetrics(w http.ResponseWriter, r *http.Request) {
	snap := a.metrics.Snapshot()
	a.writeJSON(w, http.StatusOK, map[string]interface{}{
		"counters":           snap.Counters,
		"generation":         snap.Generation,
		"generation_average": FormatDuration(snap.Generation.Average),
		"last_updated":       snap.LastUpdated,
	})
}

func (a *SimulationAPI) writeLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, simulation.ErrNotFound) {
		a.writeError(w, http.StatusNotFound, "not_found", "simulation not found")
		return
	}
	a.writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
}

func (a *SimulationAPI) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logWarnErr("encoding response", err)
	}
}

func (a *SimulationAPI) writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error":   code,
		"message": message,
	})
}

func (a *SimulationAPI) logInfo(msg string, fields ...zap.Field) {
	if a.logger != nil {
		a.logger.Info(msg, fields...)
	}
}

func (a *SimulationAPI) logWarnErr(msg string, err error) {
	if a.logger != nil {
		a.logger.Warn(msg, zap.Error(err))
	}
}
