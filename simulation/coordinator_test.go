package simulation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"aesthetisim/core"
	"aesthetisim/metrics"
	"aesthetisim/sdruntime"
)

// memStore is an in-memory Store with the same guard semantics the
// database repository implements.
type memStore struct {
	mu      sync.Mutex
	records map[string]*Record
	inserts int
	failOn  string
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]*Record)}
}

func (s *memStore) Insert(_ context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failOn == "insert" {
		return errors.New("insert refused")
	}
	cp := *rec
	s.records[rec.ID] = &cp
	s.inserts++
	return nil
}

func (s *memStore) Get(_ context.Context, id string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *memStore) List(_ context.Context, filter ListFilter) ([]*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Record
	for _, rec := range s.records {
		if filter.PatientID != "" && rec.PatientID != filter.PatientID {
			continue
		}
		if filter.Status != "" && rec.Status != filter.Status {
			continue
		}
		cp := *rec
		out = append(out, &cp)
	}
	return out, nil
}

func (s *memStore) TransitionStatus(_ context.Context, id string, from, to Status) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok || rec.Status != from {
		return false, nil
	}
	rec.Status = to
	rec.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (s *memStore) FinishSimulation(_ context.Context, id string, to Status, generatedPath, paramsJSON, errMsg string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok || rec.Status.Terminal() {
		return false, nil
	}
	params, err := DecodeParameters(paramsJSON)
	if err != nil {
		return false, err
	}
	now := time.Now().UTC()
	rec.Status = to
	rec.GeneratedImagePath = generatedPath
	rec.Parameters = params
	rec.ErrorMessage = errMsg
	rec.UpdatedAt = now
	rec.CompletedAt = &now
	return true, nil
}

func (s *memStore) Delete(_ context.Context, id string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	delete(s.records, id)
	return rec, nil
}

func (s *memStore) Stats(_ context.Context, patientID string) (*Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := &Stats{
		ByStatus:       map[Status]int{},
		ByIntervention: map[string]int{},
	}
	for _, rec := range s.records {
		if patientID != "" && rec.PatientID != patientID {
			continue
		}
		stats.Total++
		stats.ByStatus[rec.Status]++
		stats.ByIntervention[string(rec.Intervention)]++
	}
	return stats, nil
}

// memImages is an in-memory ImageStore with injectable failures.
type memImages struct {
	mu                sync.Mutex
	blobs             map[string][]byte
	next              int
	failSaveGenerated bool
	failLoad          bool
}

func newMemImages() *memImages {
	return &memImages{blobs: make(map[string][]byte)}
}

func (m *memImages) save(prefix string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	ref := fmt.Sprintf("%s_%d.jpg", prefix, m.next)
	cp := make([]byte, len(data))
	copy(cp, data)
	m.blobs[ref] = cp
	return ref, nil
}

func (m *memImages) SaveOriginal(data []byte) (string, error) {
	return m.save("original", data)
}

func (m *memImages) SaveGenerated(data []byte) (string, error) {
	if m.failSaveGenerated {
		return "", errors.New("disk full")
	}
	return m.save("generated", data)
}

func (m *memImages) Load(ref string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failLoad {
		return nil, errors.New("read error")
	}
	data, ok := m.blobs[ref]
	if !ok {
		return nil, errors.New("no such artifact")
	}
	return data, nil
}

func (m *memImages) Remove(ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, ref)
	return nil
}

func (m *memImages) has(ref string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.blobs[ref]
	return ok
}

// fakeGen satisfies Generator with a pluggable Infer.
type fakeGen struct {
	infer func(ctx context.Context, req sdruntime.InferRequest) (*sdruntime.InferResult, error)
}

func (g *fakeGen) Infer(ctx context.Context, req sdruntime.InferRequest) (*sdruntime.InferResult, error) {
	if g.infer != nil {
		return g.infer(ctx, req)
	}
	return &sdruntime.InferResult{
		ImageData: []byte("generated-bytes"),
		Seed:      req.Seed,
		Width:     req.Width,
		Height:    req.Height,
		Backend:   "synthetic",
	}, nil
}

func (g *fakeGen) ModelInfo() sdruntime.ModelInfo {
	return sdruntime.ModelInfo{Backend: "synthetic", ModelName: "test-model"}
}

type captureSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *captureSink) RecordEvent(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *captureSink) types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.events))
	for i, e := range s.events {
		out[i] = e.EventType
	}
	return out
}

func testPhoto(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 4), uint8(y * 4), 120, 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding test image: %v", err)
	}
	return buf.Bytes()
}

func waitForTerminal(t *testing.T, store *memStore, id string) *Record {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		rec, err := store.Get(context.Background(), id)
		if err == nil && rec.Status.Terminal() {
			return rec
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("record %s never reached a terminal state", id)
	return nil
}

type testEnv struct {
	coord  *Coordinator
	store  *memStore
	images *memImages
	gen    *fakeGen
	meter  *metrics.Store
	events *captureSink
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()
	env := &testEnv{
		store:  newMemStore(),
		images: newMemImages(),
		gen:    &fakeGen{},
		meter:  metrics.NewStore(),
		events: &captureSink{},
	}
	coord, err := NewCoordinator(Deps{
		Store:     env.store,
		Images:    env.images,
		Generator: env.gen,
		Metrics:   env.meter,
		Events:    env.events,
	}, cfg)
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}
	env.coord = coord
	return env
}

func (e *testEnv) shutdown(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.coord.Cleanup(ctx); err != nil {
		t.Errorf("Cleanup: %v", err)
	}
}

func TestCreateCompletesSimulation(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.coord.Initialize()
	defer env.shutdown(t)

	rec, err := env.coord.Create(context.Background(), "patient-1", core.InterventionLips, 2.5, testPhoto(t))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rec.Status != StatusProcessing {
		t.Errorf("status after create = %s, want processing", rec.Status)
	}
	if rec.OriginalImagePath == "" {
		t.Error("original image path not set")
	}

	final := waitForTerminal(t, env.store, rec.ID)
	if final.Status != StatusCompleted {
		t.Fatalf("status = %s, want completed (error: %s)", final.Status, final.ErrorMessage)
	}
	if final.GeneratedImagePath == "" {
		t.Error("generated image path not set")
	}
	if final.IsFallback() {
		t.Error("successful generation flagged as fallback")
	}
	if final.CompletedAt == nil {
		t.Error("completed record has no completion time")
	}
	if got := final.Parameters[ParamSeed]; got != "42" {
		t.Errorf("seed parameter = %q, want 42", got)
	}
	if got := final.Parameters[ParamBackend]; got != "synthetic" {
		t.Errorf("backend parameter = %q, want synthetic", got)
	}
	if !env.images.has(final.GeneratedImagePath) {
		t.Error("generated artifact missing from image store")
	}

	if got := env.meter.Get(metrics.CounterSimulationsCompleted); got != 1 {
		t.Errorf("completed counter = %d, want 1", got)
	}
	if got := env.meter.Timings().Count; got != 1 {
		t.Errorf("generation timing count = %d, want 1", got)
	}
}

func TestGenerationErrorServesFallback(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.gen.infer = func(context.Context, sdruntime.InferRequest) (*sdruntime.InferResult, error) {
		return nil, errors.New("cuda out of memory")
	}
	env.coord.Initialize()
	defer env.shutdown(t)

	rec, err := env.coord.Create(context.Background(), "patient-1", core.InterventionCheeks, 3, testPhoto(t))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	final := waitForTerminal(t, env.store, rec.ID)
	if final.Status != StatusCompleted {
		t.Fatalf("status = %s, want completed", final.Status)
	}
	if !final.IsFallback() {
		t.Error("fallback flag not set")
	}
	if final.Parameters[ParamError] == "" {
		t.Error("error parameter not recorded")
	}
	if final.GeneratedImagePath == "" {
		t.Error("placeholder artifact not stored")
	}
	if got := env.meter.Get(metrics.CounterFallbacksServed); got != 1 {
		t.Errorf("fallback counter = %d, want 1", got)
	}
	if got := env.meter.Timings().Count; got != 0 {
		t.Errorf("timing count = %d, want 0 for fallback", got)
	}
}

func TestGenerationTimeoutServesFallback(t *testing.T) {
	env := newTestEnv(t, Config{GenerationTimeout: 30 * time.Millisecond})
	env.gen.infer = func(ctx context.Context, _ sdruntime.InferRequest) (*sdruntime.InferResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	env.coord.Initialize()
	defer env.shutdown(t)

	rec, err := env.coord.Create(context.Background(), "patient-1", core.InterventionChin, 2, testPhoto(t))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	final := waitForTerminal(t, env.store, rec.ID)
	if final.Status != StatusCompleted {
		t.Fatalf("status = %s, want completed", final.Status)
	}
	if !final.IsFallback() {
		t.Error("timed-out generation not flagged as fallback")
	}
}

func TestStorageFailureFailsSimulation(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.coord.Initialize()
	defer env.shutdown(t)

	// Originals save fine; the generated artifact write fails.
	env.images.failSaveGenerated = true

	rec, err := env.coord.Create(context.Background(), "patient-1", core.InterventionForehead, 25, testPhoto(t))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	final := waitForTerminal(t, env.store, rec.ID)
	if final.Status != StatusFailed {
		t.Fatalf("status = %s, want failed", final.Status)
	}
	if final.ErrorMessage == "" {
		t.Error("failed record has no error message")
	}
	if got := env.meter.Get(metrics.CounterSimulationsFailed); got != 1 {
		t.Errorf("failed counter = %d, want 1", got)
	}
}

func TestVanishedRecordIsCounted(t *testing.T) {
	env := newTestEnv(t, Config{})
	defer env.shutdown(t)

	// Workers are not running yet, so the job sits in the queue while the
	// record is deleted out from under it.
	rec, err := env.coord.Create(context.Background(), "patient-1", core.InterventionCrowFeet, 12, testPhoto(t))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := env.store.Delete(context.Background(), rec.ID); err != nil {
		t.Fatalf("deleting record: %v", err)
	}

	env.coord.Initialize()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if env.meter.Get(metrics.CounterRecordsNotFound) == 1 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("records_not_found counter never incremented")
}

func TestTerminalWriteHappensOnce(t *testing.T) {
	env := newTestEnv(t, Config{})
	defer env.shutdown(t)

	rec := NewRecord("patient-1", core.InterventionLips, 2)
	if err := env.store.Insert(context.Background(), rec); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if ok, _ := env.store.TransitionStatus(context.Background(), rec.ID, StatusPending, StatusProcessing); !ok {
		t.Fatal("transition to processing failed")
	}

	env.coord.finish(rec.ID, StatusCompleted, "generated_1.jpg", map[string]string{ParamFallback: "false"}, "")
	env.coord.finish(rec.ID, StatusFailed, "", nil, "late failure")

	final, err := env.store.Get(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if final.Status != StatusCompleted {
		t.Errorf("status = %s, the second terminal write must not win", final.Status)
	}
	if final.GeneratedImagePath != "generated_1.jpg" {
		t.Errorf("generated path = %q, overwritten by late write", final.GeneratedImagePath)
	}
	if got := env.meter.Get(metrics.CounterSimulationsFailed); got != 0 {
		t.Errorf("failed counter = %d, want 0", got)
	}
	if got := env.meter.Get(metrics.CounterSimulationsCompleted); got != 1 {
		t.Errorf("completed counter = %d, want 1", got)
	}
}

func TestQueueFullFailsSimulation(t *testing.T) {
	env := newTestEnv(t, Config{QueueCapacity: 1})
	defer env.shutdown(t)

	// No workers running, so the single queue slot fills immediately.
	if _, err := env.coord.Create(context.Background(), "patient-1", core.InterventionLips, 2, testPhoto(t)); err != nil {
		t.Fatalf("first Create: %v", err)
	}

	rec2Photo := testPhoto(t)
	_, err := env.coord.Create(context.Background(), "patient-2", core.InterventionLips, 2, rec2Photo)
	if !errors.Is(err, ErrQueueFull) {
		t.Fatalf("second Create error = %v, want ErrQueueFull", err)
	}
	if got := env.meter.Get(metrics.CounterQueueRejections); got != 1 {
		t.Errorf("queue rejection counter = %d, want 1", got)
	}

	recs, err := env.coord.List(context.Background(), ListFilter{PatientID: "patient-2"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("got %d records for patient-2, want 1", len(recs))
	}
	if recs[0].Status != StatusFailed {
		t.Errorf("rejected simulation status = %s, want failed", recs[0].Status)
	}
}

func TestCreateValidation(t *testing.T) {
	env := newTestEnv(t, Config{})
	defer env.shutdown(t)

	photo := testPhoto(t)
	tests := []struct {
		name         string
		patientID    string
		intervention core.Intervention
		dose         float64
		image        []byte
	}{
		{"empty patient id", "", core.InterventionLips, 2, photo},
		{"unsupported intervention", "p", core.Intervention("nose"), 2, photo},
		{"dose below range", "p", core.InterventionLips, 0.1, photo},
		{"dose above range", "p", core.InterventionLips, 9, photo},
		{"undecodable image", "p", core.InterventionLips, 2, []byte("not an image")},
		{"empty image", "p", core.InterventionLips, 2, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := env.coord.Create(context.Background(), tt.patientID, tt.intervention, tt.dose, tt.image); err == nil {
				t.Error("expected a validation error")
			}
		})
	}

	if env.store.inserts != 0 {
		t.Errorf("%d records persisted for invalid requests, want 0", env.store.inserts)
	}
	if len(env.images.blobs) != 0 {
		t.Errorf("%d artifacts persisted for invalid requests, want 0", len(env.images.blobs))
	}
}

func TestDeleteRemovesArtifacts(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.coord.Initialize()
	defer env.shutdown(t)

	rec, err := env.coord.Create(context.Background(), "patient-1", core.InterventionLips, 2, testPhoto(t))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	final := waitForTerminal(t, env.store, rec.ID)

	if err := env.coord.Delete(context.Background(), rec.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := env.coord.Get(context.Background(), rec.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete = %v, want ErrNotFound", err)
	}
	if env.images.has(final.OriginalImagePath) {
		t.Error("original artifact survived delete")
	}
	if env.images.has(final.GeneratedImagePath) {
		t.Error("generated artifact survived delete")
	}

	if err := env.coord.Delete(context.Background(), rec.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete = %v, want ErrNotFound", err)
	}
}

func TestLifecycleEvents(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.coord.Initialize()
	defer env.shutdown(t)

	rec, err := env.coord.Create(context.Background(), "patient-1", core.InterventionLips, 2, testPhoto(t))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	waitForTerminal(t, env.store, rec.ID)

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		types := env.events.types()
		if len(types) >= 3 {
			want := []string{"created", "processing", "completed"}
			for i, w := range want {
				if types[i] != w {
					t.Fatalf("event[%d] = %s, want %s (all: %v)", i, types[i], w, types)
				}
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("lifecycle events incomplete: %v", env.events.types())
}

func TestCleanupRejectsNewWork(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.coord.Initialize()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := env.coord.Cleanup(ctx); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	// Second Cleanup is a no-op.
	if err := env.coord.Cleanup(ctx); err != nil {
		t.Fatalf("second Cleanup: %v", err)
	}

	_, err := env.coord.Create(context.Background(), "patient-1", core.InterventionLips, 2, testPhoto(t))
	if !errors.Is(err, ErrShuttingDown) {
		t.Errorf("Create after Cleanup = %v, want ErrShuttingDown", err)
	}
}

func TestCleanupDrainsQueuedWork(t *testing.T) {
	env := newTestEnv(t, Config{})
	defer env.shutdown(t)

	// Enqueue with no workers running, then start them during shutdown.
	rec, err := env.coord.Create(context.Background(), "patient-1", core.InterventionLips, 2, testPhoto(t))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	env.coord.Initialize()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := env.coord.Cleanup(ctx); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}

	final, err := env.store.Get(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !final.Status.Terminal() {
		t.Errorf("queued record not drained before shutdown, status = %s", final.Status)
	}
}

func TestConfigSeedDefaults(t *testing.T) {
	if got := (Config{}).withDefaults().Seed; got != sdruntime.DefaultSeed {
		t.Errorf("unset seed defaulted to %d, want %d", got, sdruntime.DefaultSeed)
	}
	// Negative requests a random seed at generation time and must survive
	// defaulting; explicit values pass through.
	if got := (Config{Seed: -1}).withDefaults().Seed; got != -1 {
		t.Errorf("negative seed = %d, want -1", got)
	}
	if got := (Config{Seed: 7}).withDefaults().Seed; got != 7 {
		t.Errorf("explicit seed = %d, want 7", got)
	}
}
