// Package auth protects the dashboard with a bcrypt password, session cookies
// and per-host login throttling.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const (
	SessionCookieName  = "pd_session"
	DefaultSessionTTL  = 15 * time.Minute
	DefaultMaxAttempts = 5
	DefaultLockout     = 5 * time.Minute
	sweepInterval      = 5 * time.Minute
)

// Options configures a Manager. Zero durations and counts take the defaults.
type Options struct {
	// PasswordHashB64 is a base64-encoded bcrypt hash; empty disables login.
	PasswordHashB64 string
	SessionTTL      time.Duration
	MaxAttempts     int
	Lockout         time.Duration
}

type attempts struct {
	failures    int
	lockedUntil time.Time
}

// Manager handles sessions, password checks and login throttling.
type Manager struct {
	enabled bool
	hash    []byte
	opts    Options
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]time.Time // token -> expiry
	failures map[string]attempts  // host -> failed logins
}

// NewManager creates a manager with default limits and a sweep goroutine bound to ctx.
func NewManager(ctx context.Context, passwordHashB64 string) *Manager {
	return New(ctx, Options{PasswordHashB64: passwordHashB64})
}

// New creates a manager from opts with a sweep goroutine bound to ctx.
func New(ctx context.Context, opts Options) *Manager {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = DefaultSessionTTL
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.Lockout <= 0 {
		opts.Lockout = DefaultLockout
	}

	m := &Manager{
		enabled:  opts.PasswordHashB64 != "",
		opts:     opts,
		now:      time.Now,
		sessions: make(map[string]time.Time),
		failures: make(map[string]attempts),
	}

	if m.enabled {
		hash, err := base64.StdEncoding.DecodeString(opts.PasswordHashB64)
		if err != nil {
			// Leaves hash empty, so every password is rejected.
			log.Printf("[AUTH] ❌ Password hash is not valid base64: %v", err)
		}
		m.hash = hash
	}

	go m.sweepLoop(ctx)
	log.Printf("[AUTH] 🔐 Dashboard login enabled=%v", m.enabled)
	return m
}

// Enabled reports whether a password hash was configured.
func (m *Manager) Enabled() bool { return m.enabled }

// ValidatePassword compares password with the configured hash.
// With login disabled every password is accepted.
func (m *Manager) ValidatePassword(password string) bool {
	if !m.enabled {
		return true
	}
	if len(m.hash) == 0 {
		return false
	}
	return bcrypt.CompareHashAndPassword(m.hash, []byte(password)) == nil
}

// CreateSession stores a random 32-byte token valid for the session TTL.
func (m *Manager) CreateSession() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating session token: %w", err)
	}
	token := hex.EncodeToString(b)

	m.mu.Lock()
	m.sessions[token] = m.now().Add(m.opts.SessionTTL)
	m.mu.Unlock()
	return token, nil
}

// ValidateSession reports whether token is known and unexpired.
func (m *Manager) ValidateSession(token string) bool {
	if token == "" {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	expiry, ok := m.sessions[token]
	if !ok {
		return false
	}
	if m.now().After(expiry) {
		delete(m.sessions, token)
		return false
	}
	return true
}

// EndSession forgets token.
func (m *Manager) EndSession(token string) {
	m.mu.Lock()
	delete(m.sessions, token)
	m.mu.Unlock()
}

// IsLockedOut reports whether host is inside its lockout window.
func (m *Manager) IsLockedOut(host string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.failures[host]
	return ok && a.failures >= m.opts.MaxAttempts && m.now().Before(a.lockedUntil)
}

// RecordFailedLogin counts a failure and starts the lockout at the limit.
func (m *Manager) RecordFailedLogin(host string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a := m.failures[host]
	a.failures++
	if a.failures >= m.opts.MaxAttempts {
		a.lockedUntil = m.now().Add(m.opts.Lockout)
		log.Printf("[AUDIT] LOCKOUT | IP=%s | attempts=%d | for=%v", host, a.failures, m.opts.Lockout)
	}
	m.failures[host] = a
}

// ClearFailedLogins resets the counter for host.
func (m *Manager) ClearFailedLogins(host string) {
	m.mu.Lock()
	delete(m.failures, host)
	m.mu.Unlock()
}

// HasSession reports whether r carries a valid session cookie.
func (m *Manager) HasSession(r *http.Request) bool {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return false
	}
	return m.ValidateSession(cookie.Value)
}

// ClientIP returns the request's remote host without the ephemeral port,
// so lockouts follow the machine rather than the TCP connection.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (m *Manager) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

// sweep drops expired sessions and finished lockouts.
func (m *Manager) sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for token, expiry := range m.sessions {
		if now.After(expiry) {
			delete(m.sessions, token)
		}
	}
	for host, a := range m.failures {
		if a.failures >= m.opts.MaxAttempts && now.After(a.lockedUntil) {
			delete(m.failures, host)
		}
	}
}
