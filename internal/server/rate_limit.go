package server

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// idleLimiterTTL is how long an unused per-client limiter is kept.
const idleLimiterTTL = 10 * time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// JobRateLimiter restricts how frequently a single client
// can submit print jobs via WebSocket.
type JobRateLimiter struct {
	mu        sync.Mutex
	clients   map[string]*clientLimiter
	maxPerMin int
	lastSweep time.Time
}

// NewJobRateLimiter creates a limiter allowing maxPerMinute jobs per client,
// with bursts up to the same amount.
func NewJobRateLimiter(maxPerMinute int) *JobRateLimiter {
	if maxPerMinute < 1 {
		maxPerMinute = 1
	}
	return &JobRateLimiter{
		clients:   make(map[string]*clientLimiter),
		maxPerMin: maxPerMinute,
		lastSweep: time.Now(),
	}
}

// Allow returns true if the client has not exceeded the rate limit.
func (rl *JobRateLimiter) Allow(clientAddr string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	rl.sweep(now)

	cl, ok := rl.clients[clientAddr]
	if !ok {
		cl = &clientLimiter{
			limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(rl.maxPerMin)), rl.maxPerMin),
		}
		rl.clients[clientAddr] = cl
	}
	cl.lastSeen = now
	return cl.limiter.AllowN(now, 1)
}

// Tracked returns the number of clients with a live limiter.
func (rl *JobRateLimiter) Tracked() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

// sweep drops limiters of clients idle longer than idleLimiterTTL. Caller holds mu.
func (rl *JobRateLimiter) sweep(now time.Time) {
	if now.Sub(rl.lastSweep) < idleLimiterTTL {
		return
	}
	for addr, cl := range rl.clients {
		if now.Sub(cl.lastSeen) > idleLimiterTTL {
			delete(rl.clients, addr)
		}
	}
	rl.lastSweep = now
}
