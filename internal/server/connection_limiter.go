package server

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// GlobalConnectionLimiter limits total concurrent connections per instance.
// Uses atomic operations for lock-free counting.
type GlobalConnectionLimiter struct {
	current atomic.Int64
	max     int64
}

// NewGlobalConnectionLimiter creates a limiter with the specified maximum connections.
func NewGlobalConnectionLimiter(max int64) *GlobalConnectionLimiter {
	return &GlobalConnectionLimiter{max: max}
}

// Acquire attempts to acquire a connection slot.
// Returns true if successful, false if at capacity.
func (l *GlobalConnectionLimiter) Acquire() bool {
	for {
		current := l.current.Load()
		if current >= l.max {
			return false
		}
		if l.current.CompareAndSwap(current, current+1) {
			return true
		}
	}
}

// Release releases a connection slot.
func (l *GlobalConnectionLimiter) Release() {
	l.current.Add(-1)
}

// Current returns the current number of connections.
func (l *GlobalConnectionLimiter) Current() int64 {
	return l.current.Load()
}

// ConnectionRateLimiter limits the rate of new connections per IP.
// Uses token bucket algorithm via golang.org/x/time/rate.
type ConnectionRateLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*rateLimiterEntry
	rate      rate.Limit
	burst     int
	cleanupAt time.Time
}

type rateLimiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewConnectionRateLimiter creates a rate limiter with the specified
// connections per second and burst.
func NewConnectionRateLimiter(connectionsPerSecond float64, burst int) *ConnectionRateLimiter {
	return &ConnectionRateLimiter{
		limiters:  make(map[string]*rateLimiterEntry),
		rate:      rate.Limit(connectionsPerSecond),
		burst:     burst,
		cleanupAt: time.Now().Add(5 * time.Minute),
	}
}

// Allow checks if a new connection from the given IP should be allowed.
func (l *ConnectionRateLimiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if time.Now().After(l.cleanupAt) {
		l.cleanup()
		l.cleanupAt = time.Now().Add(5 * time.Minute)
	}

	entry, exists := l.limiters[ip]
	if !exists {
		entry = &rateLimiterEntry{
			limiter:  rate.NewLimiter(l.rate, l.burst),
			lastSeen: time.Now(),
		}
		l.limiters[ip] = entry
	}

	entry.lastSeen = time.Now()
	return entry.limiter.Allow()
}

// cleanup removes limiters that haven't been used in 10 minutes.
// Must be called with mu held.
func (l *ConnectionRateLimiter) cleanup() {
	cutoff := time.Now().Add(-10 * time.Minute)
	for ip, entry := range l.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(l.limiters, ip)
		}
	}
}

// LimitReason describes why a connection was rejected.
type LimitReason string

const (
	LimitReasonGlobal LimitReason = "global_limit"
	LimitReasonRate   LimitReason = "rate_limit"
)

// ConnectionLimits combines the global cap and the per-IP rate limiter.
type ConnectionLimits struct {
	global *GlobalConnectionLimiter
	rate   *ConnectionRateLimiter
}

// NewConnectionLimits creates a combined connection limiter.
func NewConnectionLimits(globalMax int64, connectionsPerSecond float64, burst int) *ConnectionLimits {
	return &ConnectionLimits{
		global: NewGlobalConnectionLimiter(globalMax),
		rate:   NewConnectionRateLimiter(connectionsPerSecond, burst),
	}
}

// Acquire attempts to acquire both limits for the given IP.
// Returns false and the reason if either limit is exceeded. A rejection
// leaves the other limit untouched: a global-cap reject burns no rate token,
// and a rate reject returns the global slot.
func (l *ConnectionLimits) Acquire(ip string) (bool, LimitReason) {
	if !l.global.Acquire() {
		return false, LimitReasonGlobal
	}
	if !l.rate.Allow(ip) {
		l.global.Release()
		return false, LimitReasonRate
	}
	return true, ""
}

// Release releases the global slot for a finished connection.
func (l *ConnectionLimits) Release() {
	l.global.Release()
}
