package auth

import (
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"aesthetisim/core"
	"aesthetisim/logging"
	"aesthetisim/webui"
)

// Rate limiting defaults for the login endpoint.
const (
	DefaultMaxAttempts   = 5
	DefaultWindowMinutes = 15
	DefaultBlockMinutes  = 30
)

// AuthMiddleware composes the pieces of dashboard authentication: the
// bcrypt hash of the configured password, the in-memory session store,
// and the per-IP rate limiter.
type AuthMiddleware struct {
	passwordHash string
	sessions     *webui.SessionStore
	rateLimiter  *webui.RateLimiter
	cookieConfig CookieConfig
	logger       *logging.Logger
}

// Config tunes the middleware. Zero values fall back to defaults.
type Config struct {
	SessionTTL    time.Duration
	MaxAttempts   int
	WindowMinutes int
	BlockMinutes  int
	Cookie        CookieConfig
}

// DefaultConfig returns production defaults: 24h sessions, 5 attempts
// per 15 minutes, 30 minute blocks.
func DefaultConfig() Config {
	return Config{
		SessionTTL:    core.DefaultSessionDuration,
		MaxAttempts:   DefaultMaxAttempts,
		WindowMinutes: DefaultWindowMinutes,
		BlockMinutes:  DefaultBlockMinutes,
		Cookie:        DefaultCookieConfig(),
	}
}

// NewAuthMiddleware hashes the plaintext password from configuration and
// builds the middleware with default settings.
func NewAuthMiddleware(password string, logger *logging.Logger) (*AuthMiddleware, error) {
	return NewAuthMiddlewareWithConfig(password, logger, DefaultConfig())
}

// NewAuthMiddlewareWithConfig builds the middleware with custom
// settings. The password is hashed immediately; the plaintext is not
// retained.
func NewAuthMiddlewareWithConfig(password string, logger *logging.Logger, cfg Config) (*AuthMiddleware, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = core.DefaultSessionDuration
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.WindowMinutes <= 0 {
		cfg.WindowMinutes = DefaultWindowMinutes
	}
	if cfg.BlockMinutes <= 0 {
		cfg.BlockMinutes = DefaultBlockMinutes
	}
	if cfg.Cookie.Name == "" {
		cfg.Cookie = DefaultCookieConfig()
	}

	return &AuthMiddleware{
		passwordHash: hash,
		sessions:     webui.NewSessionStore(cfg.SessionTTL),
		rateLimiter:  webui.NewRateLimiter(cfg.MaxAttempts, cfg.WindowMinutes, cfg.BlockMinutes),
		cookieConfig: cfg.Cookie,
		logger:       logger,
	}, nil
}

// Middleware wraps a handler so only requests with a valid session pass.
// Browser requests without one are redirected to /login; API and
// WebSocket requests get a 401.
func (m *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID, err := ParseSessionCookieDefault(r)
		if err == nil {
			if _, err := m.sessions.Get(sessionID); err == nil {
				next.ServeHTTP(w, r)
				return
			}
		}

		m.logger.Debug("unauthenticated request",
			zap.String("path", r.URL.Path),
			zap.String("ip", clientIP(r)),
		)

		if wantsJSON(r) {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		http.Redirect(w, r, "/login", http.StatusFound)
	})
}

// wantsJSON reports whether the request is from the API or WebSocket
// client rather than a navigating browser.
func wantsJSON(r *http.Request) bool {
	if len(r.URL.Path) >= 5 && r.URL.Path[:5] == "/api/" {
		return true
	}
	return r.URL.Path == "/ws"
}

// CheckRateLimit enforces the login rate limit for an IP. When blocked
// it writes the 429 response itself and returns false.
func (m *AuthMiddleware) CheckRateLimit(w http.ResponseWriter, ip string) bool {
	allowed, remaining := m.rateLimiter.Allow(ip)
	if allowed {
		return true
	}

	m.logger.Warn("login rate limit hit",
		zap.String("ip", ip),
		zap.Duration("retry_after", remaining),
	)

	w.Header().Set("Retry-After", retryAfterSeconds(remaining))
	http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
	return false
}

// RecordFailedAttempt counts one failed login for an IP.
func (m *AuthMiddleware) RecordFailedAttempt(ip string) {
	m.rateLimiter.RecordAttempt(ip)
}

// ResetRateLimit clears the attempt record after a successful login.
func (m *AuthMiddleware) ResetRateLimit(ip string) {
	m.rateLimiter.Reset(ip)
}

// VerifyPassword checks a login attempt against the configured hash.
func (m *AuthMiddleware) VerifyPassword(password string) error {
	return VerifyPassword(password, m.passwordHash)
}

// CreateSession creates a session and the cookie that carries it.
func (m *AuthMiddleware) CreateSession() (core.Session, *http.Cookie, error) {
	session, err := m.sessions.Create()
	if err != nil {
		m.logger.Error("failed to create session", zap.Error(err))
		return core.Session{}, nil, err
	}

	cookie, err := NewSessionCookie(session.ID, m.cookieConfig)
	if err != nil {
		return core.Session{}, nil, err
	}

	m.logger.Info("session created",
		zap.String("session_id", truncateSessionID(session.ID)),
		zap.Time("expires_at", session.ExpiresAt),
	)
	return session, cookie, nil
}

// DestroySession removes a session and returns the clearing cookie.
func (m *AuthMiddleware) DestroySession(sessionID string) *http.Cookie {
	m.sessions.Delete(sessionID)
	return ClearSessionCookieDefault()
}

// GetSession returns the session for an ID if it is valid.
func (m *AuthMiddleware) GetSession(sessionID string) (core.Session, error) {
	return m.sessions.Get(sessionID)
}

// SessionStore exposes the store for cleanup ticker wiring.
func (m *AuthMiddleware) SessionStore() *webui.SessionStore {
	return m.sessions
}

// RateLimiter exposes the limiter for cleanup ticker wiring.
func (m *AuthMiddleware) RateLimiter() *webui.RateLimiter {
	return m.rateLimiter
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

func retryAfterSeconds(d time.Duration) string {
	seconds := int(d.Seconds())
	if seconds < 1 {
		seconds = 1
	}
	return strconv.Itoa(seconds)
}

// truncateSessionID keeps log lines from leaking whole session IDs.
func truncateSessionID(sessionID string) string {
	if len(sessionID) <= 8 {
		return sessionID + "..."
	}
	return sessionID[:8] + "..."
}
