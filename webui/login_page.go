package webui

import (
	"html/template"
	"io"
	"net/http"
)

// loginPageHTML is the login form with its CSS inlined so the page works
// before any static asset is reachable.
const loginPageHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>AesthetiSim - Sign In</title>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }

        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            min-height: 100vh;
            display: flex;
            align-items: center;
            justify-content: center;
            background: linear-gradient(160deg, #f6f8fb 0%, #e8eef7 60%, #dce7f5 100%);
            color: #1f2a3d;
        }

        .login-container {
            background: #ffffff;
            border: 1px solid #dde5ef;
            border-radius: 14px;
            padding: 44px;
            width: 100%;
            max-width: 400px;
            box-shadow: 0 18px 40px -18px rgba(31, 42, 61, 0.25);
        }

        .login-header { text-align: center; margin-bottom: 30px; }

        .login-header h1 {
            font-size: 26px;
            font-weight: 600;
            margin-bottom: 8px;
            color: #2563eb;
        }

        .login-header p { font-size: 14px; color: #64748b; }

        .login-form { display: flex; flex-direction: column; gap: 22px; }

        .form-group { display: flex; flex-direction: column; gap: 8px; }

        .form-group label { font-size: 14px; font-weight: 500; color: #334155; }

        .form-group input {
            padding: 13px 15px;
            font-size: 16px;
            border: 1px solid #cbd5e1;
            border-radius: 8px;
            background: #f8fafc;
            color: #1f2a3d;
            outline: none;
            transition: border-color 0.2s ease;
        }

        .form-group input:focus { border-color: #2563eb; background: #ffffff; }

        .submit-btn {
            padding: 13px 24px;
            font-size: 16px;
            font-weight: 600;
            color: #ffffff;
            background: #2563eb;
            border: none;
            border-radius: 8px;
            cursor: pointer;
            transition: background 0.2s ease;
        }

        .submit-btn:hover { background: #1d4ed8; }

        .error-message {
            padding: 12px 16px;
            font-size: 14px;
            color: #b91c1c;
            background: #fef2f2;
            border: 1px solid #fecaca;
            border-radius: 8px;
            text-align: center;
            display: {{if .Error}}block{{else}}none{{end}};
        }

        .footer { text-align: center; margin-top: 24px; font-size: 12px; color: #94a3b8; }

        @media (max-width: 480px) {
            .login-container { margin: 16px; padding: 32px 24px; }
        }
    </style>
</head>
<body>
    <div class="login-container">
        <div class="login-header">
            <h1>AesthetiSim</h1>
            <p>Aesthetic treatment simulation dashboard</p>
        </div>

        <form class="login-form" method="POST" action="/login">
            <div class="error-message">{{.Error}}</div>

            <div class="form-group">
                <label for="password">Password</label>
                <input
                    type="password"
                    id="password"
                    name="password"
                    placeholder="Enter the dashboard password"
                    required
                    autofocus
                >
            </div>

            <button type="submit" class="submit-btn">Sign In</button>
        </form>

        <div class="footer">
            <p>Access restricted to authorized clinic staff</p>
        </div>
    </div>
</body>
</html>`

// LoginPageData is the template input for the login page.
type LoginPageData struct {
	// Error is shown above the form when non-empty.
	Error string
}

var loginTemplate = template.Must(template.New("login").Parse(loginPageHTML))

// RenderLoginPage writes the rendered login page to w.
func RenderLoginPage(w io.Writer, data LoginPageData) error {
	return loginTemplate.Execute(w, data)
}

// HandleLoginPage serves the login page, surfacing the error query
// parameter set by a failed attempt.
func HandleLoginPage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")

	data := LoginPageData{Error: r.URL.Query().Get("error")}
	if err := RenderLoginPage(w, data); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}
