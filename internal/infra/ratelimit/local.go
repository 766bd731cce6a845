package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type entry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// Local is an in-process token bucket per key, used when no Redis is
// configured. Buckets idle for longer than the refill period of a full
// burst are pruned.
type Local struct {
	mu      sync.Mutex
	buckets map[string]*entry
	every   rate.Limit
	burst   int
	idle    time.Duration
	now     func() time.Time
}

// NewLocal allows limit events per window for each key, with bursts up to limit.
func NewLocal(limit int, window time.Duration) *Local {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &Local{
		buckets: make(map[string]*entry),
		every:   rate.Every(window / time.Duration(limit)),
		burst:   limit,
		idle:    window,
		now:     time.Now,
	}
}

func (l *Local) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, ok := l.buckets[key]
	if !ok {
		l.prune(now)
		e = &entry{lim: rate.NewLimiter(l.every, l.burst)}
		l.buckets[key] = e
	}
	e.lastSeen = now
	return e.lim.AllowN(now, 1), nil
}

func (l *Local) prune(now time.Time) {
	for k, e := range l.buckets {
		if now.Sub(e.lastSeen) > l.idle {
			delete(l.buckets, k)
		}
	}
}

func (l *Local) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
