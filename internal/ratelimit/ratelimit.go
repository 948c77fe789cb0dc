// Package ratelimit is a fixed-window in-memory limiter, enough to keep a
// single user from hammering attempt creation. State is per-process; a
// restart forgives everyone, which is acceptable for this surface.
package ratelimit

import (
	"sync"
	"time"
)

type window struct {
	start time.Time
	count int
}

type Limiter struct {
	mu      sync.Mutex
	limit   int
	period  time.Duration
	windows map[string]*window
	now     func() time.Time
}

func New(limit int, period time.Duration) *Limiter {
	return &Limiter{
		limit:   limit,
		period:  period,
		windows: map[string]*window{},
		now:     time.Now,
	}
}

// NewAt pins the clock, for tests.
func NewAt(limit int, period time.Duration, now func() time.Time) *Limiter {
	l := New(limit, period)
	l.now = now
	return l
}

// Allow records a hit for key and reports whether it is within the limit for
// the current window.
func (l *Limiter) Allow(key string) bool {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || now.Sub(w.start) >= l.period {
		l.windows[key] = &window{start: now, count: 1}
		l.sweep(now)
		return l.limit >= 1
	}
	w.count++
	return w.count <= l.limit
}

// sweep drops expired windows so the map does not grow unbounded. Called with
// the lock held.
func (l *Limiter) sweep(now time.Time) {
	if len(l.windows) < 1024 {
		return
	}
	for k, w := range l.windows {
		if now.Sub(w.start) >= l.period {
			delete(l.windows, k)
		}
	}
}
