// Package ratelimit enforces per-key request budgets with token buckets from
// golang.org/x/time/rate.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// entry tracks the bucket for a single key.
type entry struct {
	limiter  *rate.Limiter
	limit    int
	lastSeen time.Time
}

// Limiter holds one token bucket per key. A key with limit N gets N requests
// per window, refilled continuously, with a burst of N.
type Limiter struct {
	mu      sync.Mutex
	entries map[string]*entry
	window  time.Duration
	now     func() time.Time
	done    chan struct{}
	once    sync.Once
}

// New creates a rate limiter with the given refill window.
func New(window time.Duration) *Limiter {
	if window <= 0 {
		window = time.Minute
	}
	l := &Limiter{
		entries: make(map[string]*entry),
		window:  window,
		now:     time.Now,
		done:    make(chan struct{}),
	}
	go l.cleanup()
	return l
}

// Allow reports whether key may make another request and consumes one token
// when it may. A changed limit for the key replaces its bucket.
func (l *Limiter) Allow(key string, limit int) bool {
	if limit <= 0 {
		return true
	}
	l.mu.Lock()
	now := l.now()
	e, ok := l.entries[key]
	if !ok || e.limit != limit {
		e = &entry{
			limiter: rate.NewLimiter(rate.Every(l.window/time.Duration(limit)), limit),
			limit:   limit,
		}
		l.entries[key] = e
	}
	e.lastSeen = now
	l.mu.Unlock()
	return e.limiter.AllowN(now, 1)
}

// Reset clears the rate-limit state for a specific key.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, key)
}

// Close stops the background cleanup.
func (l *Limiter) Close() {
	l.once.Do(func() { close(l.done) })
}

// cleanup periodically removes keys idle for two windows.
func (l *Limiter) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			l.evictIdle()
		}
	}
}

func (l *Limiter) evictIdle() {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-2 * l.window)
	for key, e := range l.entries {
		if e.lastSeen.Before(cutoff) {
			delete(l.entries, key)
		}
	}
}
