package auth

import (
	"log"
	"net/http"
)

// Require redirects to /login unless the request has a session.
// With login disabled it calls next directly.
func (m *Manager) Require(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if m.enabled && !m.HasSession(r) {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next(w, r)
	}
}

// LoginPage serves page, or sends the user to the dashboard when no login is needed.
func (m *Manager) LoginPage(page []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !m.enabled || m.HasSession(r) {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(page)
	}
}

// HandleLogin checks the posted password and sets the session cookie (POST /auth/login).
func (m *Manager) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	host := ClientIP(r)
	if m.IsLockedOut(host) {
		log.Printf("[AUDIT] LOGIN_BLOCKED | IP=%s | reason=lockout", host)
		http.Redirect(w, r, "/login?locked=1", http.StatusSeeOther)
		return
	}

	if !m.ValidatePassword(r.FormValue("password")) {
		m.RecordFailedLogin(host)
		log.Printf("[AUDIT] LOGIN_FAILED | IP=%s", host)
		http.Redirect(w, r, "/login?error=1", http.StatusSeeOther)
		return
	}

	token, err := m.CreateSession()
	if err != nil {
		log.Printf("[AUTH] ❌ %v", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	m.ClearFailedLogins(host)

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.opts.SessionTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	log.Printf("[AUDIT] LOGIN_SUCCESS | IP=%s", host)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleLogout ends the session and expires the cookie (/auth/logout).
func (m *Manager) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		m.EndSession(cookie.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
