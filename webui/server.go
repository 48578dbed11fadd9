package webui

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"aesthetisim/logging"
	"aesthetisim/metrics"
)

// AuthProvider gates the dashboard behind session authentication. The
// auth package implements it; the indirection keeps webui and auth from
// importing each other.
type AuthProvider interface {
	Middleware(next http.Handler) http.Handler
	LoginHandler() http.HandlerFunc
	LogoutHandler() http.HandlerFunc
}

// ServerConfig configures the dashboard HTTP server.
type ServerConfig struct {
	Host string
	Port int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	StaticConfig StaticAssetConfig

	// LogSkipPaths are request paths excluded from access logging.
	LogSkipPaths []string
}

// DefaultServerConfig returns the production defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:            "localhost",
		Port:            8080,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 30 * time.Second,
		StaticConfig:    DefaultStaticAssetConfig(),
		LogSkipPaths:    []string{"/health", "/ws"},
	}
}

// ServerDeps are the collaborators the server routes requests to.
type ServerDeps struct {
	API         *SimulationAPI
	Auth        AuthProvider
	Broadcaster *Broadcaster
	Monitor     *BackendMonitor
	Metrics     *metrics.Store
	Feed        *ActivityFeed
	Logger      *logging.Logger
	RequestLog  RequestLogger
}

// Server is the dashboard HTTP server. It mounts the static assets, the
// login flow, the simulation REST API, and the WebSocket feed, all
// behind the auth provider except /login and /health.
type Server struct {
	httpServer  *http.Server
	mux         *http.ServeMux
	cfg         ServerConfig
	logger      *logging.Logger
	broadcaster *Broadcaster
	monitor     *BackendMonitor
	metrics     *metrics.Store
	feed        *ActivityFeed
}

// NewServer wires a Server. API and Auth are required.
func NewServer(cfg ServerConfig, deps ServerDeps) (*Server, error) {
	if deps.API == nil {
		return nil, fmt.Errorf("webui: simulation API is required")
	}
	if deps.Auth == nil {
		return nil, fmt.Errorf("webui: auth provider is required")
	}

	def := DefaultServerConfig()
	if cfg.Host == "" {
		cfg.Host = def.Host
	}
	if cfg.Port == 0 {
		cfg.Port = def.Port
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = def.ReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = def.IdleTimeout
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}
	if cfg.LogSkipPaths == nil {
		cfg.LogSkipPaths = def.LogSkipPaths
	}

	s := &Server{
		mux:         http.NewServeMux(),
		cfg:         cfg,
		logger:      deps.Logger,
		broadcaster: deps.Broadcaster,
		monitor:     deps.Monitor,
		metrics:     deps.Metrics,
		feed:        deps.Feed,
	}

	if s.broadcaster != nil {
		s.broadcaster.SetInitialStateFunc(s.initialState)
	}

	s.setupRoutes(deps)

	requestLog := deps.RequestLog
	if requestLog == nil && deps.Logger != nil {
		requestLog = &ZapRequestLogger{Logger: deps.Logger}
	}
	accessLog := NewLoggingMiddleware(requestLog, cfg.LogSkipPaths...)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      accessLog.Handler(s.mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s, nil
}

func (s *Server) setupRoutes(deps ServerDeps) {
	static := NewStaticAssetHandler(s.cfg.StaticConfig)

	// Public routes.
	s.mux.HandleFunc("/login", deps.Auth.LoginHandler())
	s.mux.HandleFunc("/logout", deps.Auth.LogoutHandler())
	s.mux.HandleFunc("GET /health", s.handleHealth)

	// Everything else requires a session.
	protected := http.NewServeMux()
	protected.HandleFunc("GET /{$}", static.ServeDashboard())
	static.RegisterRoutes(protected)
	deps.API.RegisterRoutes(protected)
	if s.broadcaster != nil {
		protected.HandleFunc("GET /ws", s.broadcaster.HandleConnection)
	}

	s.mux.Handle("/", deps.Auth.Middleware(protected))
}

// handleHealth is the unauthenticated liveness endpoint. It reports the
// generation backend state when a monitor is wired.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	payload := map[string]interface{}{
		"status": "ok",
		"time":   time.Now().UTC(),
	}
	if s.monitor != nil {
		payload["backend"] = s.monitor.Status()
	}
	if s.broadcaster != nil {
		payload["ws_clients"] = s.broadcaster.ClientCount()
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	json.NewEncoder(w).Encode(payload)
}

// initialState builds the snapshot sent to each new WebSocket client.
func (s *Server) initialState() InitialData {
	data := InitialData{}
	if s.feed != nil {
		data.RecentActivity = s.feed.Recent(DefaultActivityCapacity)
	}
	if s.metrics != nil {
		data.Metrics = s.metrics.Snapshot()
	}
	if s.monitor != nil {
		data.Backend = s.monitor.Status()
	}
	return data
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Handler returns the full middleware-wrapped handler, used by tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start listens and serves until the server is shut down. Blocks; run it
// in a goroutine and call Shutdown to stop.
func (s *Server) Start() error {
	if s.logger != nil {
		s.logger.Info("dashboard server listening", zap.String("addr", s.httpServer.Addr))
	}
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("webui: server error: %w", err)
	}
	return nil
}

// StartTLS is Start with TLS enabled.
func (s *Server) StartTLS(certFile, keyFile string) error {
	if s.logger != nil {
		s.logger.Info("dashboard server listening (tls)", zap.String("addr", s.httpServer.Addr))
	}
	if err := s.httpServer.ListenAndServeTLS(certFile, keyFile); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("webui: server error: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests within the configured timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()

	if s.broadcaster != nil {
		s.broadcaster.Close()
	}
	return s.httpServer.Shutdown(shutdownCtx)
}
