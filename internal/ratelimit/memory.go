package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

type window struct {
	start time.Time
	count int
}

// MemoryLimiter keeps counters in process memory. Instances of the service do
// not share its state.
type MemoryLimiter struct {
	mu     sync.Mutex
	store  *cache.Cache
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewMemoryLimiter returns a limiter allowing limit requests per window.
func NewMemoryLimiter(limit int, per time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		store:  cache.New(per, 2*per),
		limit:  limit,
		window: per,
		now:    time.Now,
	}
}

// WithClock replaces the time source.
func (l *MemoryLimiter) WithClock(now func() time.Time) *MemoryLimiter {
	l.now = now
	return l
}

// Allow implements Limiter.
func (l *MemoryLimiter) Allow(_ context.Context, key string) (Decision, error) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	var w *window
	if v, ok := l.store.Get(key); ok {
		w = v.(*window)
	}
	if w == nil || !now.Before(w.start.Add(l.window)) {
		w = &window{start: now}
		l.store.Set(key, w, l.window)
	}
	w.count++

	return decide(w.count, l.limit, w.start.Add(l.window).Sub(now)), nil
}
