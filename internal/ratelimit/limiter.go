// Package ratelimit provides per-key token bucket rate limiting for the
// programmatic API. Keys are API key ids, so each credential gets its own
// budget regardless of source address.
package ratelimit

import (
	"sync"
	"time"
)

const idleEvictAfter = 10 * time.Minute

// Limiter hands out one token bucket per key.
type Limiter struct {
	rate  float64
	burst float64

	mu      sync.Mutex
	buckets map[string]*entry
}

type entry struct {
	bucket   *TokenBucket
	lastSeen time.Time
}

// NewLimiter creates a limiter enforcing rate requests per second with the
// given burst per key. Non-positive values fall back to 10 rps / burst 20.
func NewLimiter(rate float64, burst int) *Limiter {
	if rate <= 0 {
		rate = 10
	}
	if burst <= 0 {
		burst = 20
	}
	return &Limiter{
		rate:    rate,
		burst:   float64(burst),
		buckets: make(map[string]*entry),
	}
}

// Allow reports whether a request under the key may proceed. When denied,
// retryAfter says how long until the next token.
func (l *Limiter) Allow(key string) (ok bool, retryAfter time.Duration) {
	now := time.Now()

	l.mu.Lock()
	e, found := l.buckets[key]
	if !found {
		e = &entry{bucket: NewTokenBucket(l.burst, l.rate)}
		l.buckets[key] = e
	}
	e.lastSeen = now
	if len(l.buckets) > 1 && !found {
		l.evictIdleLocked(now)
	}
	l.mu.Unlock()

	if e.bucket.Allow() {
		return true, 0
	}
	return false, e.bucket.WaitTime()
}

// evictIdleLocked drops buckets not seen for a while so the map does not
// grow with every key ever used. Must be called with the lock held.
func (l *Limiter) evictIdleLocked(now time.Time) {
	for key, e := range l.buckets {
		if now.Sub(e.lastSeen) > idleEvictAfter {
			delete(l.buckets, key)
		}
	}
}
