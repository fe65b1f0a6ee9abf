package ratelimit

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Default limits
const (
	DefaultMaxRequests = 100
	DefaultWindow      = 60 * time.Second
)

// Limiter is a per-client sliding window rate limiter
type Limiter struct {
	mu          sync.Mutex
	maxRequests int
	window      time.Duration
	requests    map[string][]time.Time
	logger      *zap.Logger
	now         func() time.Time
}

// NewLimiter creates a limiter accepting maxRequests per client within window
func NewLimiter(maxRequests int, window time.Duration, logger *zap.Logger) *Limiter {
	if maxRequests <= 0 {
		maxRequests = DefaultMaxRequests
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Limiter{
		maxRequests: maxRequests,
		window:      window,
		requests:    make(map[string][]time.Time),
		logger:      logger,
		now:         time.Now,
	}
}

// SetClock replaces the time source, for tests
func (l *Limiter) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

// MaxRequests returns the per-window request limit
func (l *Limiter) MaxRequests() int {
	return l.maxRequests
}

// Window returns the window length
func (l *Limiter) Window() time.Duration {
	return l.window
}

// Allow records a request for client and reports whether it is within the limit.
// Rejected requests are not recorded.
func (l *Limiter) Allow(client string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	window := l.prune(client, now)
	if len(window) >= l.maxRequests {
		l.logger.Warn("Rate limit exceeded", zap.String("client", client))
		return false
	}

	l.requests[client] = append(window, now)
	return true
}

// Remaining returns how many more requests client may make in the current window
func (l *Limiter) Remaining(client string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	window := l.prune(client, l.now())
	return max(0, l.maxRequests-len(window))
}

// ResetAt returns when the oldest recorded request of client leaves the window
func (l *Limiter) ResetAt(client string) time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	window := l.prune(client, now)
	if len(window) == 0 {
		return now
	}
	return window[0].Add(l.window)
}

// prune drops timestamps that are no longer strictly within the window.
// Must be called with l.mu held.
func (l *Limiter) prune(client string, now time.Time) []time.Time {
	window := l.requests[client]
	keep := 0
	for keep < len(window) && now.Sub(window[keep]) >= l.window {
		keep++
	}
	window = window[keep:]
	if len(window) == 0 {
		delete(l.requests, client)
		return nil
	}
	l.requests[client] = window
	return window
}

// Clients prunes every window and returns the number of clients still tracked
func (l *Limiter) Clients() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for client := range l.requests {
		l.prune(client, now)
	}
	return len(l.requests)
}
