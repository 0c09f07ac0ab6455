package main

import (
	"sync"
	"time"
)

// RateLimiter is a token bucket: it allows bursts up to maxTokens, then
// refills at refillRate tokens per second. It is the shared primitive
// behind both the per-session command limiter and the per-IP connection
// limiter below.
type RateLimiter struct {
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
	mu         sync.Mutex
}

// NewRateLimiter builds a bucket that allows rate tokens per second, with
// bursts up to rate. A non-positive rate disables the limit entirely.
func NewRateLimiter(rate int) *RateLimiter {
	if rate <= 0 {
		return &RateLimiter{
			tokens:     1,
			maxTokens:  1,
			refillRate: 0,
			lastRefill: time.Now(),
		}
	}

	return &RateLimiter{
		tokens:     float64(rate),
		maxTokens:  float64(rate),
		refillRate: float64(rate),
		lastRefill: time.Now(),
	}
}

// Allow reports whether one more token is available, consuming it if so.
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if rl.refillRate == 0 {
		return true
	}

	now := time.Now()
	elapsed := now.Sub(rl.lastRefill).Seconds()

	rl.tokens += elapsed * rl.refillRate
	if rl.tokens > rl.maxTokens {
		rl.tokens = rl.maxTokens
	}
	rl.lastRefill = now

	if rl.tokens >= 1.0 {
		rl.tokens -= 1.0
		return true
	}

	return false
}

// sessionCommandLimiters holds one bucket per command class a session can
// send: audio-chain commands (mode/AGC/squelch/mute, spec.md §6) and
// waterfall commands (window/FFT tuning), admitted independently so a
// burst on one class never starves the other.
type sessionCommandLimiters struct {
	audio     *RateLimiter
	waterfall *RateLimiter
}

// CommandRateLimiter admits inbound WebSocket commands per session, per
// command class, per spec.md §6's admission-control requirement. It is
// the cmdLimiter shared by the audio and waterfall command loops in
// websocket.go.
type CommandRateLimiter struct {
	sessions map[string]*sessionCommandLimiters
	rate     int // commands per second per class
	mu       sync.RWMutex
}

// NewCommandRateLimiter builds a limiter admitting rate commands per
// second per class; a non-positive rate disables command rate limiting.
func NewCommandRateLimiter(rate int) *CommandRateLimiter {
	return &CommandRateLimiter{
		sessions: make(map[string]*sessionCommandLimiters),
		rate:     rate,
	}
}

func (c *CommandRateLimiter) bucketsFor(sessionID string) *sessionCommandLimiters {
	c.mu.Lock()
	defer c.mu.Unlock()
	buckets, exists := c.sessions[sessionID]
	if !exists {
		buckets = &sessionCommandLimiters{
			audio:     NewRateLimiter(c.rate),
			waterfall: NewRateLimiter(c.rate),
		}
		c.sessions[sessionID] = buckets
	}
	return buckets
}

// AllowAudio admits one audio-chain command for the given session ID.
func (c *CommandRateLimiter) AllowAudio(sessionID string) bool {
	if c.rate <= 0 {
		return true
	}
	return c.bucketsFor(sessionID).audio.Allow()
}

// AllowWaterfall admits one waterfall-tuning command for the given
// session ID.
func (c *CommandRateLimiter) AllowWaterfall(sessionID string) bool {
	if c.rate <= 0 {
		return true
	}
	return c.bucketsFor(sessionID).waterfall.Allow()
}

// RemoveSession drops a session's buckets, called on session teardown so
// a reconnecting client with the same ID doesn't inherit stale state.
func (c *CommandRateLimiter) RemoveSession(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, sessionID)
}

// TrackedSessions returns the number of sessions currently holding
// buckets, for admin/metrics reporting.
func (c *CommandRateLimiter) TrackedSessions() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sessions)
}

// IPConnectionRateLimiter admits new WebSocket upgrade requests per
// source IP, so a single client can't exhaust session capacity by
// reconnect-flooding.
type IPConnectionRateLimiter struct {
	limiters map[string]*RateLimiter
	rate     int // upgrades per second per IP
	mu       sync.RWMutex
}

// NewIPConnectionRateLimiter builds a limiter admitting rate upgrades
// per second per IP; a non-positive rate disables it.
func NewIPConnectionRateLimiter(rate int) *IPConnectionRateLimiter {
	return &IPConnectionRateLimiter{
		limiters: make(map[string]*RateLimiter),
		rate:     rate,
	}
}

// AllowConnection admits one upgrade request from the given IP.
func (icrl *IPConnectionRateLimiter) AllowConnection(ip string) bool {
	if icrl.rate <= 0 {
		return true
	}

	icrl.mu.Lock()
	limiter, exists := icrl.limiters[ip]
	if !exists {
		limiter = NewRateLimiter(icrl.rate)
		icrl.limiters[ip] = limiter
	}
	icrl.mu.Unlock()

	return limiter.Allow()
}

// Cleanup evicts IPs that haven't attempted a connection in 5 minutes, so
// the map doesn't grow unbounded across the server's lifetime.
func (icrl *IPConnectionRateLimiter) Cleanup() {
	icrl.mu.Lock()
	defer icrl.mu.Unlock()

	now := time.Now()
	for ip, limiter := range icrl.limiters {
		limiter.mu.Lock()
		stale := now.Sub(limiter.lastRefill) > 5*time.Minute
		limiter.mu.Unlock()
		if stale {
			delete(icrl.limiters, ip)
		}
	}
}

// TrackedIPs returns the number of IPs currently holding buckets, for
// admin/metrics reporting.
func (icrl *IPConnectionRateLimiter) TrackedIPs() int {
	icrl.mu.RLock()
	defer icrl.mu.RUnlock()
	return len(icrl.limiters)
}
