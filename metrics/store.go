// Package metrics keeps in-memory operational counters and generation
// timing aggregates, surfaced on the dashboard API. Counters are
// monotonically increasing for the process lifetime; nothing is persisted.
package metrics

import (
	"sync"
	"time"
)

// Counter names used by the simulation pipeline.
const (
	CounterSimulationsCreated   = "simulations_created"
	CounterSimulationsCompleted = "simulations_completed"
	CounterSimulationsFailed    = "simulations_failed"
	CounterFallbacksServed      = "fallbacks_served"
	CounterRecordsNotFound      = "records_not_found"
	CounterQueueRejections      = "queue_rejections"
)

// Store accumulates counters and generation timings. Safe for concurrent
// use.
type Store struct {
	mu       sync.RWMutex
	counters map[string]int64

	genCount    int64
	genTotal    time.Duration
	genMin      time.Duration
	genMax      time.Duration
	lastUpdated time.Time
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		counters: make(map[string]int64),
	}
}

// Inc increments a counter by one.
func (s *Store) Inc(name string) {
	s.Add(name, 1)
}

// Add increments a counter by delta.
func (s *Store) Add(name string, delta int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[name] += delta
	s.lastUpdated = time.Now()
}

// Get returns the current value of a counter.
func (s *Store) Get(name string) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counters[name]
}

// ObserveGenerationTime records the duration of one generation.
func (s *Store) ObserveGenerationTime(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.genCount++
	s.genTotal += d
	if s.genMin == 0 || d < s.genMin {
		s.genMin = d
	}
	if d > s.genMax {
		s.genMax = d
	}
	s.lastUpdated = time.Now()
}

// GenerationTimings summarizes observed generation durations.
type GenerationTimings struct {
	Count   int64         `json:"count"`
	Average time.Duration `json:"average"`
	Min     time.Duration `json:"min"`
	Max     time.Duration `json:"max"`
}

// Timings returns the generation timing summary.
func (s *Store) Timings() GenerationTimings {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t := GenerationTimings{
		Count: s.genCount,
		Min:   s.genMin,
		Max:   s.genMax,
	}
	if s.genCount > 0 {
		t.Average = s.genTotal / time.Duration(s.genCount)
	}
	return t
}

// Snapshot is a point-in-time copy of all metrics for the dashboard.
type Snapshot struct {
	Counters    map[string]int64  `json:"counters"`
	Generation  GenerationTimings `json:"generation"`
	LastUpdated time.Time         `json:"last_updated"`
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counters := make(map[string]int64, len(s.counters))
	for k, v := range s.counters {
		counters[k] = v
	}

	snap := Snapshot{
		Counters: counters,
		Generation: GenerationTimings{
			Count: s.genCount,
			Min:   s.genMin,
			Max:   s.genMax,
		},
		LastUpdated: s.lastUpdated,
	}
	if s.genCount > 0 {
		snap.Generation.Average = s.genTotal / time.Duration(s.genCount)
	}
	return snap
}
