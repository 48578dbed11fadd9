package auth

import (
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"aesthetisim/webui"
)

const (
	// FailedLoginDelay slows brute force attempts and evens out timing
	// between the empty-password and wrong-password paths.
	FailedLoginDelay = 1 * time.Second

	// SuccessRedirect is where a fresh session lands.
	SuccessRedirect = "/"

	// LoginPath is the login page route.
	LoginPath = "/login"
)

// LoginHandler serves the login page on GET and authenticates on POST.
// Failed attempts are rate limited per IP and delayed.
func (m *AuthMiddleware) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			m.handleLoginGET(w, r)
		case http.MethodPost:
			m.handleLoginPOST(w, r)
		default:
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		}
	}
}

func (m *AuthMiddleware) handleLoginGET(w http.ResponseWriter, r *http.Request) {
	// An already-authenticated user goes straight to the dashboard.
	if sessionID, err := ParseSessionCookieDefault(r); err == nil {
		if _, err := m.GetSession(sessionID); err == nil {
			http.Redirect(w, r, SuccessRedirect, http.StatusFound)
			return
		}
	}

	webui.HandleLoginPage(w, r)
}

func (m *AuthMiddleware) handleLoginPOST(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)

	if !m.CheckRateLimit(w, ip) {
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	password := r.FormValue("password")
	if password == "" {
		time.Sleep(FailedLoginDelay)
		redirectWithError(w, r, "Password is required")
		return
	}

	if err := m.VerifyPassword(password); err != nil {
		m.RecordFailedAttempt(ip)
		m.logger.Info("login failed", zap.String("ip", ip))

		time.Sleep(FailedLoginDelay)
		redirectWithError(w, r, "Invalid password")
		return
	}

	_, cookie, err := m.CreateSession()
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	m.ResetRateLimit(ip)
	http.SetCookie(w, cookie)

	m.logger.Info("login successful", zap.String("ip", ip))

	// 303 so a refresh does not resubmit the form.
	http.Redirect(w, r, SuccessRedirect, http.StatusSeeOther)
}

func redirectWithError(w http.ResponseWriter, r *http.Request, msg string) {
	http.Redirect(w, r, LoginPath+"?error="+url.QueryEscape(msg), http.StatusSeeOther)
}
