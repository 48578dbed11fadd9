package webui

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/fatih/color"
	"go.uber.org/zap"

	"aesthetisim/logging"
)

// RequestLogger receives one entry per completed HTTP request.
type RequestLogger interface {
	LogRequest(entry RequestLogEntry)
}

// RequestLogEntry describes a completed HTTP request.
type RequestLogEntry struct {
	Timestamp     time.Time
	Method        string
	Path          string
	StatusCode    int
	Duration      time.Duration
	RemoteAddr    string
	UserAgent     string
	ContentLength int64
}

// LoggingMiddleware logs every HTTP request with method, path, status,
// and duration. Paths in skipPaths (health checks, websocket upgrades)
// are passed through silently.
type LoggingMiddleware struct {
	logger    RequestLogger
	skipPaths map[string]bool
}

// NewLoggingMiddleware creates the middleware.
func NewLoggingMiddleware(logger RequestLogger, skipPaths ...string) *LoggingMiddleware {
	skip := make(map[string]bool, len(skipPaths))
	for _, path := range skipPaths {
		skip[path] = true
	}
	if logger == nil {
		logger = &NoopRequestLogger{}
	}
	return &LoggingMiddleware{logger: logger, skipPaths: skip}
}

// Handler wraps next with request logging.
func (m *LoggingMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.skipPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		wrapped := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		m.logger.LogRequest(RequestLogEntry{
			Timestamp:     start,
			Method:        r.Method,
			Path:          r.URL.Path,
			StatusCode:    wrapped.statusCode,
			Duration:      time.Since(start),
			RemoteAddr:    clientIP(r),
			UserAgent:     r.UserAgent(),
			ContentLength: wrapped.bytesWritten,
		})
	})
}

// HandlerFunc wraps a handler function with request logging.
func (m *LoggingMiddleware) HandlerFunc(next http.HandlerFunc) http.Handler {
	return m.Handler(next)
}

// responseWriterWrapper captures the status code and bytes written.
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
	wroteHeader  bool
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	if !w.wroteHeader {
		w.statusCode = statusCode
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *responseWriterWrapper) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytesWritten += int64(n)
	return n, err
}

func (w *responseWriterWrapper) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Hijack is needed so the websocket upgrade works through the wrapper.
func (w *responseWriterWrapper) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hj, ok := w.ResponseWriter.(http.Hijacker); ok {
		return hj.Hijack()
	}
	return nil, nil, fmt.Errorf("underlying ResponseWriter does not support hijacking")
}

// clientIP extracts the client IP, honoring proxy headers.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for i := 0; i < len(xff); i++ {
			if xff[i] == ',' {
				return xff[:i]
			}
		}
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	addr := r.RemoteAddr
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			return addr[:i]
		}
	}
	return addr
}

// ZapRequestLogger writes request entries through the structured logger.
type ZapRequestLogger struct {
	Logger *logging.Logger
}

// LogRequest implements RequestLogger.
func (z *ZapRequestLogger) LogRequest(entry RequestLogEntry) {
	z.Logger.Info("http request",
		zap.String("method", entry.Method),
		zap.String("path", entry.Path),
		zap.Int("status", entry.StatusCode),
		zap.Duration("duration", entry.Duration),
		zap.String("remote", entry.RemoteAddr),
		zap.Int64("bytes", entry.ContentLength),
	)
}

// ConsoleRequestLogger prints colored one-line entries for interactive
// development runs.
type ConsoleRequestLogger struct{}

var (
	statusOK       = color.New(color.FgGreen).SprintfFunc()
	statusRedirect = color.New(color.FgCyan).SprintfFunc()
	statusClient   = color.New(color.FgYellow).SprintfFunc()
	statusServer   = color.New(color.FgRed).SprintfFunc()
	faintText      = color.New(color.Faint).SprintfFunc()
)

// LogRequest implements RequestLogger.
func (c *ConsoleRequestLogger) LogRequest(entry RequestLogEntry) {
	status := statusOK("%d", entry.StatusCode)
	switch {
	case entry.StatusCode >= 500:
		status = statusServer("%d", entry.StatusCode)
	case entry.StatusCode >= 400:
		status = statusClient("%d", entry.StatusCode)
	case entry.StatusCode >= 300:
		status = statusRedirect("%d", entry.StatusCode)
	}

	fmt.Printf("%s %s %s %s %s %s\n",
		faintText("%s", entry.Timestamp.Format("15:04:05")),
		entry.Method,
		entry.Path,
		status,
		entry.Duration.Round(time.Millisecond),
		entry.RemoteAddr,
	)
}

// NoopRequestLogger discards entries. Useful in tests.
type NoopRequestLogger struct{}

// LogRequest implements RequestLogger.
func (n *NoopRequestLogger) LogRequest(RequestLogEntry) {}
