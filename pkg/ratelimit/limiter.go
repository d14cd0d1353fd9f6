// Package ratelimit throttles messages per key with a fixed window.
package ratelimit

import (
	"net"
	"net/http"
	"sync"
	"time"
)

// Limiter is a fixed-window counter keyed by user id (or client IP for the
// HTTP middleware). The first message after a window has elapsed opens a new
// window; rejected messages never reopen it.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	max     int           // messages per window
	per     time.Duration // window size
	pruned  time.Time     // last pass over expired buckets

	now func() time.Time
}

type bucket struct {
	ts     time.Time // window start
	tokens int       // remaining tokens
}

// New creates a limiter allowing max messages per window.
func New(max int, per time.Duration) *Limiter {
	return &Limiter{
		buckets: map[string]*bucket{},
		max:     max,
		per:     per,
		now:     time.Now,
	}
}

// WithClock replaces the time source; used by tests.
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.now = now
	return l
}

// Allow consumes one message for key and reports whether it is within the
// cap. Buckets whose window has elapsed are dropped at most once per window.
func (l *Limiter) Allow(key string) bool {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.pruned) > l.per {
		l.pruneLocked(now)
	}

	b := l.buckets[key]
	if b == nil || now.Sub(b.ts) > l.per {
		b = &bucket{ts: now, tokens: l.max}
		l.buckets[key] = b
	}

	if b.tokens <= 0 {
		return false
	}

	b.tokens--
	return true
}

func (l *Limiter) pruneLocked(now time.Time) {
	for key, b := range l.buckets {
		if now.Sub(b.ts) > l.per {
			delete(l.buckets, key)
		}
	}
	l.pruned = now
}

// Forget drops the counters for key.
func (l *Limiter) Forget(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.buckets, key)
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.buckets)
}

// Middleware enforces the limit per client IP before calling next.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}

		if !l.Allow(ip) {
			http.Error(w, "rate limit", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}
