package rate

import (
	"sync"
	"time"
)

type Decision struct {
	Allowed   bool
	Remaining int
	// RetryAfter is set only when the hit was refused.
	RetryAfter time.Duration
}

type counter struct {
	hits    int
	resetAt time.Time
}

type Limiter struct {
	mu        sync.Mutex
	counters  map[string]counter
	nextSweep time.Time
	now       func() time.Time
}

func NewLimiter() *Limiter {
	return &Limiter{counters: map[string]counter{}, now: time.Now}
}

func (l *Limiter) Allow(key string, limit int, per time.Duration) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now().UTC()
	l.sweep(now)

	c, ok := l.counters[key]
	if !ok || !now.Before(c.resetAt) {
		c = counter{resetAt: now.Add(per)}
	}
	if c.hits >= limit {
		return Decision{RetryAfter: c.resetAt.Sub(now)}
	}
	c.hits++
	l.counters[key] = c
	return Decision{Allowed: true, Remaining: limit - c.hits}
}

func (l *Limiter) sweep(now time.Time) {
	if now.Before(l.nextSweep) {
		return
	}
	for k, c := range l.counters {
		if !now.Before(c.resetAt) {
			delete(l.counters, k)
		}
	}
	l.nextSweep = now.Add(time.Minute)
}

func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.counters)
}
