package auth

import (
	"net/http"

	"go.uber.org/zap"
)

// LogoutHandler destroys the session, clears the cookie, and redirects
// to the login page. Idempotent: logging out twice is not an error.
func (m *AuthMiddleware) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodPost {
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}

		if sessionID, err := ParseSessionCookieDefault(r); err == nil {
			m.DestroySession(sessionID)
			m.logger.Info("logout",
				zap.String("session_id", truncateSessionID(sessionID)),
				zap.String("ip", clientIP(r)),
			)
		}

		http.SetCookie(w, ClearSessionCookieDefault())

		redirectCode := http.StatusFound
		if r.Method == http.MethodPost {
			redirectCode = http.StatusSeeOther
		}
		http.Redirect(w, r, LoginPath, redirectCode)
	}
}
