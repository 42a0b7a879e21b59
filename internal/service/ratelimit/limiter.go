package ratelimit

import (
	"sync"
	"time"
)

type bucket struct {
	tokens float64
	last   time.Time
}

// Limiter is a keyed token bucket. Every key starts full with capacity
// tokens and refills at refillPerSec.
type Limiter struct {
	mu       sync.Mutex
	capacity float64
	refill   float64
	idleTTL  time.Duration
	lastGC   time.Time
	now      func() time.Time
	m        map[string]*bucket
}

// New creates a limiter. Buckets idle longer than the time needed to refill
// completely are dropped on later calls.
func New(capacity, refillPerSec float64) *Limiter {
	if capacity < 1 {
		capacity = 1
	}
	ttl := time.Minute
	if refillPerSec > 0 {
		ttl += time.Duration(capacity / refillPerSec * float64(time.Second))
	}
	return &Limiter{
		capacity: capacity,
		refill:   refillPerSec,
		idleTTL:  ttl,
		now:      time.Now,
		m:        make(map[string]*bucket),
	}
}

// Allow consumes one token for key and reports whether one was available.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.gcLocked(now)

	b, ok := l.m[key]
	if !ok {
		b = &bucket{tokens: l.capacity, last: now}
		l.m[key] = b
	}
	if elapsed := now.Sub(b.last).Seconds(); elapsed > 0 {
		b.tokens += elapsed * l.refill
		if b.tokens > l.capacity {
			b.tokens = l.capacity
		}
		b.last = now
	}
	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// Len reports the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}

func (l *Limiter) gcLocked(now time.Time) {
	if now.Sub(l.lastGC) < l.idleTTL {
		return
	}
	for k, b := range l.m {
		if now.Sub(b.last) >= l.idleTTL {
			delete(l.m, k)
		}
	}
	l.lastGC = now
}
