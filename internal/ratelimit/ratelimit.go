// Package ratelimit implements fixed-window request counting for keyed
// provider APIs. Limits are advisory: an exhausted window fails the call
// locally, it does not queue or back off.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter tracks one counting window per key. Safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	windows map[string]*window

	now func() time.Time
}

type window struct {
	requests int
	resetAt  time.Time
}

// New creates an empty limiter.
func New() *Limiter {
	return &Limiter{
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

// WithClock replaces the time source, for tests.
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.now = now
	return l
}

// Allow records one request against key and reports whether it fits in
// the current window of size d with at most max requests. The first
// request after a window elapses starts a fresh window.
func (l *Limiter) Allow(key string, max int, d time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || now.After(w.resetAt) {
		l.windows[key] = &window{requests: 1, resetAt: now.Add(d)}
		return true
	}

	if w.requests < max {
		w.requests++
		return true
	}
	return false
}
