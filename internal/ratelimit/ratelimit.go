// Package ratelimit provides per-client fixed-window admission control.
//
// Each client gets an independent window of N requests per period. The
// window resets fully at its boundary, and denied requests learn how
// long until the reset. This matches the admission contract exposed to
// API clients via the Retry-After header.
package ratelimit

import (
	"sync"
	"time"
)

// timeNow is a variable for testing purposes (allows mocking time).
var timeNow = time.Now

// Decision is the outcome of an admission check.
type Decision struct {
	// Allowed reports whether the request may proceed.
	Allowed bool

	// Remaining is how many requests the client has left in the
	// current window after this decision.
	Remaining int

	// RetryAfter is how long until the window resets. Only meaningful
	// when Allowed is false.
	RetryAfter time.Duration
}

// window tracks one client's usage in the current period.
type window struct {
	start time.Time
	count int
}

// Limiter admits up to limit requests per client per window.
type Limiter struct {
	mu      sync.Mutex
	clients map[string]*window
	limit   int
	period  time.Duration

	lastSweep time.Time
}

// New creates a Limiter allowing limit requests per period for each
// distinct client ID.
func New(limit int, period time.Duration) *Limiter {
	return &Limiter{
		clients:   make(map[string]*window),
		limit:     limit,
		period:    period,
		lastSweep: timeNow(),
	}
}

// Admit checks and consumes one request slot for the client. The check
// and the increment happen atomically, so concurrent callers can never
// admit more than limit requests per window.
func (l *Limiter) Admit(clientID string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := timeNow()
	l.sweepLocked(now)

	w, ok := l.clients[clientID]
	if !ok || now.Sub(w.start) >= l.period {
		w = &window{start: now}
		l.clients[clientID] = w
	}

	if w.count >= l.limit {
		return Decision{
			Allowed:    false,
			Remaining:  0,
			RetryAfter: w.start.Add(l.period).Sub(now),
		}
	}

	w.count++
	return Decision{
		Allowed:   true,
		Remaining: l.limit - w.count,
	}
}

// sweepLocked drops windows that ended at least one full period ago so
// one-off clients do not accumulate forever. Runs at most once per
// period. Caller must hold the lock.
func (l *Limiter) sweepLocked(now time.Time) {
	if now.Sub(l.lastSweep) < l.period {
		return
	}
	l.lastSweep = now

	for id, w := range l.clients {
		if now.Sub(w.start) >= 2*l.period {
			delete(l.clients, id)
		}
	}
}

// Len returns the number of tracked clients.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}
