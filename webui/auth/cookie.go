package auth

import (
	"errors"
	"net/http"
)

const (
	// SessionCookieName is the cookie carrying the session ID.
	SessionCookieName = "session_id"

	// DefaultCookieMaxAge matches the default session lifetime.
	DefaultCookieMaxAge = 24 * 60 * 60 // seconds

	// DefaultCookiePath scopes the cookie to the whole dashboard.
	DefaultCookiePath = "/"
)

// ErrNoCookie is returned when the session cookie is absent.
var ErrNoCookie = errors.New("session cookie not found")

// ErrEmptySessionID is returned when building a cookie with no ID.
var ErrEmptySessionID = errors.New("session ID cannot be empty")

// CookieConfig holds session cookie attributes. The zero value is not
// usable; start from DefaultCookieConfig.
type CookieConfig struct {
	Name     string
	MaxAge   int
	Secure   bool
	HTTPOnly bool
	SameSite http.SameSite
	Path     string
}

// DefaultCookieConfig returns secure defaults. Secure is false so local
// HTTP deployments work; enable it behind TLS.
func DefaultCookieConfig() CookieConfig {
	return CookieConfig{
		Name:     SessionCookieName,
		MaxAge:   DefaultCookieMaxAge,
		Secure:   false,
		HTTPOnly: true,
		SameSite: http.SameSiteLaxMode,
		Path:     DefaultCookiePath,
	}
}

// NewSessionCookie builds the Set-Cookie value for a session ID.
func NewSessionCookie(sessionID string, cfg CookieConfig) (*http.Cookie, error) {
	if sessionID == "" {
		return nil, ErrEmptySessionID
	}
	if cfg.Name == "" {
		cfg.Name = SessionCookieName
	}
	if cfg.Path == "" {
		cfg.Path = DefaultCookiePath
	}

	return &http.Cookie{
		Name:     cfg.Name,
		Value:    sessionID,
		MaxAge:   cfg.MaxAge,
		Secure:   cfg.Secure,
		HttpOnly: cfg.HTTPOnly,
		SameSite: cfg.SameSite,
		Path:     cfg.Path,
	}, nil
}

// ParseSessionCookie extracts the session ID from a request.
func ParseSessionCookie(r *http.Request, name string) (string, error) {
	if name == "" {
		name = SessionCookieName
	}

	cookie, err := r.Cookie(name)
	if err != nil {
		return "", ErrNoCookie
	}
	if cookie.Value == "" {
		return "", ErrNoCookie
	}
	return cookie.Value, nil
}

// ParseSessionCookieDefault extracts the session ID using the default
// cookie name.
func ParseSessionCookieDefault(r *http.Request) (string, error) {
	return ParseSessionCookie(r, SessionCookieName)
}

// ClearSessionCookie builds a cookie that deletes the client's session
// cookie.
func ClearSessionCookie(name string) *http.Cookie {
	if name == "" {
		name = SessionCookieName
	}
	return &http.Cookie{
		Name:     name,
		Value:    "",
		MaxAge:   -1,
		HttpOnly: true,
		Path:     DefaultCookiePath,
	}
}

// ClearSessionCookieDefault clears the default-named session cookie.
func ClearSessionCookieDefault() *http.Cookie {
	return ClearSessionCookie(SessionCookieName)
}
