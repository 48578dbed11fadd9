package simulation

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strconv"
	"time"

	"go.uber.org/zap"

	"aesthetisim/logging"
	"aesthetisim/metrics"
	"aesthetisim/promptgen"
	"aesthetisim/sdruntime"
	"aesthetisim/vision"
)

// worker consumes queued record ids until the queue closes.
func (c *Coordinator) worker(n int) {
	defer c.wg.Done()
	for id := range c.queue {
		c.process(id)
	}
	if c.logger != nil {
		c.logger.Debug("generation worker stopped", zap.Int("worker", n))
	}
}

// process runs one generation attempt for a record. Failure policy is
// uniform: any generation error, including the hard timeout, completes the
// simulation with the placeholder image and a fallback flag; the failed
// status is reserved for orchestration errors like a vanished record or a
// storage write that cannot land.
func (c *Coordinator) process(id string) {
	ctx, cancel := context.WithTimeout(c.baseCtx, c.cfg.GenerationTimeout)
	defer cancel()

	rec, err := c.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// The record vanished between enqueue and pickup, most likely
			// deleted by the client. Counted so operators can see it.
			c.metrics.Inc(metrics.CounterRecordsNotFound)
			c.logWarn("record vanished before generation", id, err)
			return
		}
		c.logWarn("loading record", id, err)
		return
	}

	data, err := c.images.Load(rec.OriginalImagePath)
	if err != nil {
		c.finish(id, StatusFailed, "", nil, fmt.Sprintf("original image unavailable: %v", err))
		return
	}

	req, params, err := c.buildRequest(rec, data)
	if err != nil {
		c.finish(id, StatusFailed, "", nil, err.Error())
		return
	}

	start := time.Now()
	result, genErr := c.gen.Infer(ctx, req)
	elapsed := time.Since(start)
	params[ParamDurationMS] = strconv.FormatInt(elapsed.Milliseconds(), 10)

	var imageData []byte
	if genErr != nil {
		params[ParamFallback] = "true"
		params[ParamError] = genErr.Error()
		imageData = sdruntime.PlaceholderPNG()
		c.logWarn("generation failed, serving placeholder", id, genErr)
	} else {
		params[ParamFallback] = "false"
		params[ParamSeed] = strconv.FormatInt(result.Seed, 10)
		params[ParamBackend] = result.Backend
		imageData = result.ImageData
	}

	genRef, err := c.images.SaveGenerated(imageData)
	if err != nil {
		c.finish(id, StatusFailed, "", params, fmt.Sprintf("storing generated image: %v", err))
		return
	}

	c.finish(id, StatusCompleted, genRef, params, "")

	if genErr != nil {
		c.metrics.Inc(metrics.CounterFallbacksServed)
	} else {
		c.metrics.ObserveGenerationTime(elapsed)
	}

	if c.logger != nil {
		c.logger.Info("simulation finished",
			zap.String("simulation_id", id),
			logging.GenerationFields(logging.GenerationMetrics{
				Backend:   params[ParamBackend],
				ModelName: params[ParamModel],
				Steps:     req.Steps,
				Seed:      req.Seed,
				Duration:  elapsed,
				Fallback:  genErr != nil,
			}))
	}
}

// buildRequest assembles the inference request and the base parameter
// metadata for a record.
func (c *Coordinator) buildRequest(rec *Record, data []byte) (sdruntime.InferRequest, map[string]string, error) {
	img, err := c.normalized(data)
	if err != nil {
		return sdruntime.InferRequest{}, nil, fmt.Errorf("stored image invalid: %w", err)
	}

	prompt, negative, err := promptgen.BuildPair(rec.Intervention, rec.Dose)
	if err != nil {
		return sdruntime.InferRequest{}, nil, err
	}
	intensity, _ := promptgen.IntensityFor(rec.Intervention, rec.Dose)

	req := sdruntime.InferRequest{
		Prompt:            prompt,
		NegativePrompt:    negative,
		InitImage:         img,
		Width:             img.Bounds().Dx(),
		Height:            img.Bounds().Dy(),
		Steps:             c.cfg.Steps,
		GuidanceScale:     c.cfg.GuidanceScale,
		ConditioningScale: c.cfg.ConditioningScale,
		Seed:              c.cfg.Seed,
	}
	req = sdruntime.ApplyDefaults(req)

	info := c.gen.ModelInfo()
	params := map[string]string{
		ParamSeed:          strconv.FormatInt(req.Seed, 10),
		ParamSteps:         strconv.Itoa(req.Steps),
		ParamGuidanceScale: strconv.FormatFloat(req.GuidanceScale, 'f', -1, 64),
		ParamConditioning:  strconv.FormatFloat(req.ConditioningScale, 'f', -1, 64),
		ParamBackend:       info.Backend,
		ParamModel:         info.ModelName,
		ParamIntensity:     string(intensity),
		ParamEdgeDetector:  c.edges.Name(),
	}
	if info.ControlNetModel != "" {
		params[ParamControlNetModel] = info.ControlNetModel
	}

	// A failed edge extraction degrades to an unconditioned generation
	// rather than failing the simulation.
	if edge, err := c.edges.Detect(img); err == nil {
		req.ControlImage = edge
	} else {
		c.logWarn("edge detection failed", rec.ID, err)
	}

	return req, params, nil
}

// finish writes the terminal state. The store guards the update on the
// processing status, so if a competing writer already finished the record
// this becomes a logged no-op.
func (c *Coordinator) finish(id string, to Status, generatedRef string, params map[string]string, errMsg string) {
	paramsJSON, err := EncodeParameters(params)
	if err != nil {
		paramsJSON = "{}"
	}

	// Terminal writes use a fresh context so a timed-out generation can
	// still record its outcome.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ok, err := c.store.FinishSimulation(ctx, id, to, generatedRef, paramsJSON, errMsg)
	if err != nil {
		c.logWarn("writing terminal state", id, err)
		return
	}
	if !ok {
		c.logWarn("terminal state already written", id, nil)
		return
	}

	switch to {
	case StatusCompleted:
		c.metrics.Inc(metrics.CounterSimulationsCompleted)
	case StatusFailed:
		c.metrics.Inc(metrics.CounterSimulationsFailed)
	}

	rec, err := c.store.Get(ctx, id)
	if err != nil {
		return
	}
	c.emitEvent(rec, string(to), errMsg)
	c.notify(rec)
}

// normalized re-runs preprocessing on stored bytes.
func (c *Coordinator) normalized(data []byte) (*image.RGBA, error) {
	return vision.Normalize(data, c.cfg.MaxImageSize)
}
