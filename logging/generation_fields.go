package logging

import (
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// GenerationMetrics captures the outcome of one image generation for
// structured logging. It marshals as a nested object so downstream log
// processing can aggregate per-backend timings.
type GenerationMetrics struct {
	Backend   string
	ModelName string
	Steps     int
	Seed      int64
	Duration  time.Duration
	Fallback  bool
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (m GenerationMetrics) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("backend", m.Backend)
	enc.AddString("model", m.ModelName)
	enc.AddInt("steps", m.Steps)
	enc.AddInt64("seed", m.Seed)
	enc.AddDuration("duration", m.Duration)
	enc.AddBool("fallback", m.Fallback)
	return nil
}

// GenerationFields wraps GenerationMetrics as a single zap field.
//
// Example:
//
//	logger.Info("generation complete", logging.GenerationFields(metrics))
func GenerationFields(metrics GenerationMetrics) zap.Field {
	return zap.Object("generation", metrics)
}

// SimulationFields returns the standard fields attached to every log entry
// about a simulation. The patient identifier is passed through the logger's
// redaction, so it never reaches an encoder in clear text.
func SimulationFields(simulationID, intervention string, dose float64) []zap.Field {
	return []zap.Field{
		zap.String("simulation_id", simulationID),
		zap.String("intervention", intervention),
		zap.Float64("dose", dose),
	}
}

// TimingFields returns start/end/duration fields for a timed operation.
func TimingFields(startTime, endTime time.Time) []zap.Field {
	return []zap.Field{
		zap.Time("start_time", startTime),
		zap.Time("end_time", endTime),
		zap.Duration("duration", endTime.Sub(startTime)),
	}
}
