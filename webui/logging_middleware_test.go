package webui

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

type captureRequestLogger struct {
	mu      sync.Mutex
	entries []RequestLogEntry
}

func (c *captureRequestLogger) LogRequest(entry RequestLogEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, entry)
}

func (c *captureRequestLogger) all() []RequestLogEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]RequestLogEntry(nil), c.entries...)
}

func TestLoggingMiddlewareCapturesStatusAndSize(t *testing.T) {
	capture := &captureRequestLogger{}
	mw := NewLoggingMiddleware(capture)

	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short and stout"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/simulations", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	entries := capture.all()
	if len(entries) != 1 {
		t.Fatalf("logged %d entries, want 1", len(entries))
	}
	entry := entries[0]
	if entry.StatusCode != http.StatusTeapot {
		t.Errorf("status = %d, want 418", entry.StatusCode)
	}
	if entry.Method != http.MethodGet || entry.Path != "/api/simulations" {
		t.Errorf("entry = %s %s", entry.Method, entry.Path)
	}
	if entry.ContentLength != int64(len("short and stout")) {
		t.Errorf("content length = %d", entry.ContentLength)
	}
}

func TestLoggingMiddlewareDefaultsTo200(t *testing.T) {
	capture := &captureRequestLogger{}
	mw := NewLoggingMiddleware(capture)

	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("implicit ok"))
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if got := capture.all()[0].StatusCode; got != http.StatusOK {
		t.Errorf("status = %d, want 200", got)
	}
}

func TestLoggingMiddlewareSkipPaths(t *testing.T) {
	capture := &captureRequestLogger{}
	mw := NewLoggingMiddleware(capture, "/health")

	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/other", nil))

	entries := capture.all()
	if len(entries) != 1 || entries[0].Path != "/other" {
		t.Errorf("entries = %+v, want only /other", entries)
	}
}

func TestClientIPHeaders(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(*http.Request)
		want   string
	}{
		{
			"x-forwarded-for single",
			func(r *http.Request) { r.Header.Set("X-Forwarded-For", "198.51.100.1") },
			"198.51.100.1",
		},
		{
			"x-forwarded-for chain",
			func(r *http.Request) { r.Header.Set("X-Forwarded-For", "198.51.100.1, 10.0.0.1") },
			"198.51.100.1",
		},
		{
			"x-real-ip",
			func(r *http.Request) { r.Header.Set("X-Real-IP", "198.51.100.2") },
			"198.51.100.2",
		},
		{
			"remote addr",
			func(r *http.Request) { r.RemoteAddr = "198.51.100.3:4567" },
			"198.51.100.3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			tt.setup(req)
			if got := clientIP(req); got != tt.want {
				t.Errorf("clientIP = %q, want %q", got, tt.want)
			}
		})
	}
}
