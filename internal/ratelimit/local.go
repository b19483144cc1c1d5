package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const localIdleTTL = 10 * time.Minute

type localEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// LocalBuckets keeps one x/time/rate limiter per key in memory. Limits are
// per process, which is acceptable when redis is not deployed.
type LocalBuckets struct {
	mu      sync.Mutex
	buckets map[string]*localEntry
	now     func() time.Time
	sweepAt time.Time
}

func NewLocalBuckets() *LocalBuckets {
	return &LocalBuckets{
		buckets: make(map[string]*localEntry),
		now:     time.Now,
	}
}

func (l *LocalBuckets) Allow(_ context.Context, key string, r float64, burst int) (Result, error) {
	now := l.now()

	l.mu.Lock()
	l.sweep(now)
	entry, ok := l.buckets[key]
	if !ok {
		entry = &localEntry{limiter: rate.NewLimiter(rate.Limit(r), burst)}
		l.buckets[key] = entry
	}
	entry.lastSeen = now
	limiter := entry.limiter
	l.mu.Unlock()

	allowed := limiter.AllowN(now, 1)
	tokens := limiter.TokensAt(now)
	result := Result{
		Allowed:   allowed,
		Limit:     burst,
		Remaining: int(tokens),
	}
	if !allowed {
		result.RetryAfter = retryAfter(tokens, r)
	}
	return result, nil
}

// sweep drops idle buckets at most once per idle period. Caller holds mu.
func (l *LocalBuckets) sweep(now time.Time) {
	if now.Before(l.sweepAt) {
		return
	}
	for key, entry := range l.buckets {
		if now.Sub(entry.lastSeen) > localIdleTTL {
			delete(l.buckets, key)
		}
	}
	l.sweepAt = now.Add(localIdleTTL)
}
