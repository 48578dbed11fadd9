package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"aesthetisim/core"
	"aesthetisim/core/validation"
	"aesthetisim/db"
	"aesthetisim/logging"
	"aesthetisim/metrics"
	"aesthetisim/sdruntime"
	"aesthetisim/shutdown"
	"aesthetisim/simulation"
	"aesthetisim/storage"
	"aesthetisim/vision"
	"aesthetisim/webui"
	"aesthetisim/webui/auth"
)

func main() {
	// Service install/uninstall/start/stop subcommands (Windows only).
	if HandleServiceCommand(os.Args[1:]) {
		return
	}

	// When launched by the Windows service manager, run() is driven by the
	// service lifecycle instead of the terminal.
	if ranAsService, err := RunAsService(); ranAsService {
		if err != nil {
			fmt.Fprintf(os.Stderr, "service error: %v\n", err)
			os.Exit(core.ExitCodeError)
		}
		return
	}

	os.Exit(run(context.Background()))
}

// run wires the full application and blocks until shutdown. The returned
// value is the process exit code.
func run(baseCtx context.Context) int {
	if err := godotenv.Load(); err != nil {
		// Logger isn't up yet.
		fmt.Printf("No .env file loaded: %v\n", err)
	}

	isDevelopment := os.Getenv("DEV_MODE") == "true"

	cfg, err := core.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return core.ExitCodeError
	}

	logger, err := logging.NewLogger(isDevelopment, cfg.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		return core.ExitCodeError
	}
	defer func() {
		_ = logger.Sync()
	}()

	result := validation.NewSuite(cfg).Validate()
	if !result.Success {
		for _, step := range result.Steps {
			if step.Status == validation.StepFailed {
				logger.Error("startup check failed",
					zap.String("check", step.Name),
					zap.String("message", step.Message),
					zap.Error(step.Error),
				)
			}
		}
		return core.ExitCodeError
	}
	logger.Info("startup checks passed",
		zap.Int("passed", result.PassedSteps),
		zap.Int("warnings", result.Warnings),
		zap.Duration("duration", result.Duration),
	)

	logger.Info("configuration loaded",
		zap.String("listen", fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)),
		zap.String("backend", cfg.GenBackend),
		zap.String("db_path", cfg.DBPath),
		zap.String("upload_dir", cfg.UploadDir),
		zap.Int("workers", cfg.Workers),
		zap.Int("queue_capacity", cfg.QueueCapacity),
		zap.Duration("generation_timeout", cfg.GenerationTimeout),
		zap.Bool("dev_mode", isDevelopment),
	)

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		logger.Error("failed to create database directory", zap.Error(err))
		return core.ExitCodeError
	}

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", zap.Error(err))
		return core.ExitCodeError
	}

	repo := db.NewSimulationRepository(database)
	events := db.NewEventRecorder(database)

	images, err := storage.NewFileStore(cfg.UploadDir)
	if err != nil {
		logger.Error("failed to prepare artifact store", zap.Error(err))
		return core.ExitCodeError
	}

	metricsStore := metrics.NewStore()

	generator := sdruntime.NewManager(
		primaryBackendFactory(cfg, logger),
		syntheticBackendFactory(),
		logger.Named("generation"),
	)

	broadcaster := webui.NewBroadcaster(logger.Named("ws"))
	feed := webui.NewActivityFeed(webui.DefaultActivityCapacity)
	notifier := &webui.StatusFanout{Feed: feed, Broadcaster: broadcaster}

	coordinator, err := simulation.NewCoordinator(
		simulation.Deps{
			Store:     repo,
			Images:    images,
			Generator: generator,
			Edges:     &vision.SobelDetector{},
			Logger:    logger.Named("simulation"),
			Metrics:   metricsStore,
			Events:    events,
			Notifier:  notifier,
		},
		simulation.Config{
			Workers:           cfg.Workers,
			QueueCapacity:     cfg.QueueCapacity,
			GenerationTimeout: cfg.GenerationTimeout,
			Seed:              cfg.Seed,
			Steps:             cfg.InferenceSteps,
			GuidanceScale:     cfg.GuidanceScale,
			ConditioningScale: cfg.ConditioningScale,
			MaxImageSize:      cfg.MaxImageSize,
		},
	)
	if err != nil {
		logger.Error("failed to build simulation coordinator", zap.Error(err))
		return core.ExitCodeError
	}

	authProvider, err := auth.NewAuthMiddleware(cfg.WebUIPassword, logger.Named("auth"))
	if err != nil {
		logger.Error("failed to initialize authentication", zap.Error(err))
		return core.ExitCodeError
	}

	api := webui.NewSimulationAPI(coordinator, webui.APIConfig{
		Events:        events,
		Metrics:       metricsStore,
		Logger:        logger.Named("api"),
		MaxUploadSize: cfg.MaxUploadSize,
	})

	monitor := webui.NewBackendMonitor(generator, webui.BackendMonitorConfig{
		Logger:   logger.Named("monitor"),
		OnChange: broadcaster.BroadcastBackendStatus,
	})

	var requestLog webui.RequestLogger = &webui.ZapRequestLogger{Logger: logger.Named("http")}
	if isDevelopment {
		requestLog = &webui.ConsoleRequestLogger{}
	}

	server, err := webui.NewServer(
		webui.ServerConfig{Host: cfg.Host, Port: cfg.Port},
		webui.ServerDeps{
			API:         api,
			Auth:        authProvider,
			Broadcaster: broadcaster,
			Monitor:     monitor,
			Metrics:     metricsStore,
			Feed:        feed,
			Logger:      logger.Named("http"),
			RequestLog:  requestLog,
		},
	)
	if err != nil {
		logger.Error("failed to build HTTP server", zap.Error(err))
		return core.ExitCodeError
	}

	sd := shutdown.NewManager(logger.Named("shutdown"))
	sd.Register("http_server", 10, func(ctx context.Context) error {
		return server.Shutdown(ctx)
	})
	sd.Register("simulation_coordinator", 20, coordinator.Cleanup)
	sd.Register("generation_backend", 30, func(context.Context) error {
		return generator.Cleanup()
	})
	sd.Register("event_recorder", 40, func(context.Context) error {
		events.Close()
		return nil
	})
	sd.Register("temp_artifacts", 45, shutdown.CleanupTempArtifacts(logger, cfg.UploadDir))
	sd.Register("database", 50, func(context.Context) error {
		return database.Close()
	})
	sd.Start()

	ctx := sd.Context()

	coordinator.Initialize()
	go broadcaster.Start(ctx)
	go monitor.Start(ctx)
	authProvider.SessionStore().StartCleanupTicker(ctx, 10*time.Minute)
	authProvider.RateLimiter().StartCleanupTicker(ctx, 10*time.Minute)

	// Warm the generation backend in the background so the first request
	// doesn't eat the full model load. Failures here are not fatal: the
	// manager substitutes the synthetic backend, and Infer retries lazily.
	go func() {
		if err := generator.Initialize(ctx); err != nil {
			logger.Warn("generation backend warmup failed", zap.Error(err))
			return
		}
		info := generator.ModelInfo()
		logger.Info("generation backend ready",
			zap.String("backend", info.Backend),
			zap.String("model", info.ModelName),
			zap.Bool("fallback", generator.UsedFallback()),
		)
	}()

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("dashboard listening", zap.String("addr", server.Addr()))
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	exitCode := core.ExitCodeSuccess
	select {
	case <-baseCtx.Done():
	case <-ctx.Done():
	case err := <-serverErr:
		logger.Error("HTTP server failed", zap.Error(err))
		exitCode = core.ExitCodeError
	}

	if err := sd.Shutdown(); err != nil {
		logger.Error("shutdown finished with errors", zap.Error(err))
		if exitCode == core.ExitCodeSuccess {
			exitCode = core.ExitCodeError
		}
	}

	logger.Info("goodbye", zap.String("exit", core.ExitCodeName(exitCode)))
	return exitCode
}

// primaryBackendFactory resolves the configured generation backend. With
// BackendAuto the choice falls through sdapi, then openai, then synthetic
// based on which credentials are present.
func primaryBackendFactory(cfg *core.Config, logger *logging.Logger) sdruntime.BackendFactory {
	backend := cfg.GenBackend
	if backend == core.BackendAuto {
		switch {
		case cfg.SDAPIURL != "":
			backend = core.BackendSDAPI
		case cfg.OpenAIAPIKey != "":
			backend = core.BackendOpenAI
		default:
			backend = core.BackendSynthetic
		}
		logger.Info("auto-selected generation backend", zap.String("backend", backend))
	}

	switch backend {
	case core.BackendSDAPI:
		return func(ctx context.Context) (sdruntime.Backend, error) {
			return sdruntime.NewAPIBackend(ctx, sdruntime.APIBackendConfig{
				BaseURL:         cfg.SDAPIURL,
				HTTPClient:      core.GetHTTPClient(cfg, cfg.GenerationTimeout),
				ModelName:       cfg.ModelName,
				ControlNetModel: cfg.ControlNetModel,
			})
		}
	case core.BackendOpenAI:
		return func(context.Context) (sdruntime.Backend, error) {
			return sdruntime.NewOpenAIBackend(cfg.OpenAIAPIKey, cfg.OpenAIImageModel)
		}
	default:
		return func(context.Context) (sdruntime.Backend, error) {
			return sdruntime.NewSyntheticBackend(), nil
		}
	}
}

func syntheticBackendFactory() sdruntime.BackendFactory {
	return func(context.Context) (sdruntime.Backend, error) {
		return sdruntime.NewSyntheticBackend(), nil
	}
}
