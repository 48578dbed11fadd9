package simulation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"aesthetisim/core"
	"aesthetisim/logging"
	"aesthetisim/metrics"
	"aesthetisim/sdruntime"
	"aesthetisim/vision"
)

// Config holds the coordinator's tunables. Zero values fall back to the
// defaults below.
type Config struct {
	// Workers is the generation worker pool size.
	Workers int

	// QueueCapacity bounds the pending job queue. A full queue fails the
	// simulation immediately rather than blocking the request.
	QueueCapacity int

	// GenerationTimeout is the hard per-generation budget. When it
	// expires the simulation completes with the placeholder image.
	GenerationTimeout time.Duration

	// Generation parameters applied to every request.
	Seed              int64
	Steps             int
	GuidanceScale     float64
	ConditioningScale float64
	MaxImageSize      int
}

const (
	defaultWorkers       = 1
	defaultQueueCapacity = 64
	defaultTimeout       = 120 * time.Second
)

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = defaultWorkers
	}
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = defaultQueueCapacity
	}
	if c.GenerationTimeout <= 0 {
		c.GenerationTimeout = defaultTimeout
	}
	if c.MaxImageSize <= 0 {
		c.MaxImageSize = vision.DefaultMaxDimension
	}
	// Zero means unset; negative is an explicit random-seed request and
	// passes through to ResolveSeed.
	if c.Seed == 0 {
		c.Seed = sdruntime.DefaultSeed
	}
	return c
}

// Deps are the coordinator's injected collaborators. Store, Images, and
// Generator are required; the rest are optional and nil-safe.
type Deps struct {
	Store     Store
	Images    ImageStore
	Generator Generator
	Edges     vision.EdgeDetector
	Logger    *logging.Logger
	Metrics   *metrics.Store
	Events    EventSink
	Notifier  Notifier
}

// Coordinator drives the simulation lifecycle end to end: it validates and
// persists new requests, feeds them through the bounded worker pool, and
// writes exactly one terminal state per record.
type Coordinator struct {
	store    Store
	images   ImageStore
	gen      Generator
	edges    vision.EdgeDetector
	logger   *logging.Logger
	metrics  *metrics.Store
	events   EventSink
	notifier Notifier
	cfg      Config

	queue   chan string
	wg      sync.WaitGroup
	baseCtx context.Context
	cancel  context.CancelFunc

	mu      sync.Mutex
	started bool
	closed  bool
}

// NewCoordinator wires a Coordinator. Call Initialize to start workers.
func NewCoordinator(deps Deps, cfg Config) (*Coordinator, error) {
	if deps.Store == nil || deps.Images == nil || deps.Generator == nil {
		return nil, errors.New("simulation: store, image store, and generator are required")
	}

	cfg = cfg.withDefaults()
	if deps.Edges == nil {
		deps.Edges = &vision.SobelDetector{}
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewStore()
	}

	baseCtx, cancel := context.WithCancel(context.Background())

	return &Coordinator{
		store:    deps.Store,
		images:   deps.Images,
		gen:      deps.Generator,
		edges:    deps.Edges,
		logger:   deps.Logger,
		metrics:  deps.Metrics,
		events:   deps.Events,
		notifier: deps.Notifier,
		cfg:      cfg,
		queue:    make(chan string, cfg.QueueCapacity),
		baseCtx:  baseCtx,
		cancel:   cancel,
	}, nil
}

// Initialize starts the worker pool. Idempotent.
func (c *Coordinator) Initialize() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started || c.closed {
		return
	}
	c.started = true

	for i := 0; i < c.cfg.Workers; i++ {
		c.wg.Add(1)
		go c.worker(i)
	}
}

// Cleanup stops accepting work, drains queued jobs, and waits for workers.
// If ctx expires first, in-flight generations are cancelled and their
// simulations complete with the fallback image. Idempotent.
func (c *Coordinator) Cleanup(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.queue)
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		c.cancel()
		<-done
		return ctx.Err()
	}
}

// Create validates a new simulation request, persists it, and enqueues the
// generation. On success the returned record is already in the processing
// state. Validation failures return before anything is persisted.
func (c *Coordinator) Create(ctx context.Context, patientID string, intervention core.Intervention, dose float64, imageData []byte) (*Record, error) {
	if patientID == "" {
		return nil, fmt.Errorf("simulation: patient id is required")
	}
	if err := core.ValidateDose(intervention, dose); err != nil {
		return nil, err
	}

	// Reject undecodable uploads before any state is created.
	if _, err := vision.Normalize(imageData, c.cfg.MaxImageSize); err != nil {
		return nil, err
	}

	origRef, err := c.images.SaveOriginal(imageData)
	if err != nil {
		return nil, fmt.Errorf("simulation: saving original image: %w", err)
	}

	rec := NewRecord(patientID, intervention, dose)
	rec.OriginalImagePath = origRef

	if err := c.store.Insert(ctx, rec); err != nil {
		c.images.Remove(origRef)
		return nil, fmt.Errorf("simulation: persisting record: %w", err)
	}

	c.metrics.Inc(metrics.CounterSimulationsCreated)
	c.emitEvent(rec, "created", "")

	ok, err := c.store.TransitionStatus(ctx, rec.ID, StatusPending, StatusProcessing)
	if err != nil || !ok {
		c.finish(rec.ID, StatusFailed, "", map[string]string{}, "could not start processing")
		if err == nil {
			err = fmt.Errorf("simulation: record %s not in pending state", rec.ID)
		}
		return nil, err
	}
	rec.Status = StatusProcessing
	rec.UpdatedAt = time.Now().UTC()
	c.emitEvent(rec, "processing", "")
	c.notify(rec)

	if err := c.enqueue(rec.ID); err != nil {
		c.metrics.Inc(metrics.CounterQueueRejections)
		c.finish(rec.ID, StatusFailed, "", map[string]string{}, "generation queue full")
		return nil, err
	}

	return rec, nil
}

// enqueue adds a record id to the queue exactly once. Non-blocking: a full
// queue returns ErrQueueFull instead of stalling the caller.
func (c *Coordinator) enqueue(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrShuttingDown
	}

	select {
	case c.queue <- id:
		return nil
	default:
		return ErrQueueFull
	}
}

// Get returns a record by id.
func (c *Coordinator) Get(ctx context.Context, id string) (*Record, error) {
	return c.store.Get(ctx, id)
}

// List returns records matching the filter.
func (c *Coordinator) List(ctx context.Context, filter ListFilter) ([]*Record, error) {
	return c.store.List(ctx, filter)
}

// Stats aggregates simulation history, optionally scoped to a patient.
func (c *Coordinator) Stats(ctx context.Context, patientID string) (*Stats, error) {
	return c.store.Stats(ctx, patientID)
}

// Delete removes a record and both of its artifacts.
func (c *Coordinator) Delete(ctx context.Context, id string) error {
	rec, err := c.store.Delete(ctx, id)
	if err != nil {
		return err
	}

	if rec.OriginalImagePath != "" {
		if err := c.images.Remove(rec.OriginalImagePath); err != nil {
			c.logWarn("removing original artifact", rec.ID, err)
		}
	}
	if rec.GeneratedImagePath != "" {
		if err := c.images.Remove(rec.GeneratedImagePath); err != nil {
			c.logWarn("removing generated artifact", rec.ID, err)
		}
	}

	c.emitEvent(rec, "deleted", "")
	return nil
}

// LoadImage returns the bytes for an artifact reference.
func (c *Coordinator) LoadImage(ref string) ([]byte, error) {
	return c.images.Load(ref)
}

func (c *Coordinator) emitEvent(rec *Record, eventType, detail string) {
	if c.events == nil {
		return
	}
	c.events.RecordEvent(Event{
		SimulationID: rec.ID,
		PatientID:    rec.PatientID,
		EventType:    eventType,
		Detail:       detail,
		CreatedAt:    time.Now().UTC(),
	})
}

func (c *Coordinator) notify(rec *Record) {
	if c.notifier != nil {
		c.notifier.NotifyStatus(rec)
	}
}

func (c *Coordinator) logWarn(msg, id string, err error) {
	if c.logger != nil {
		c.logger.Warn(msg, zap.String("simulation_id", id), zap.Error(err))
	}
}
