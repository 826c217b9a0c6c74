package rate

import (
	"sync"

	"golang.org/x/time/rate"
)

// Limiter limits operations by key, such as a vault owner.
type Limiter interface {
	Allow(key string) (bool, error)
}

type keyedLimiter struct {
	limit rate.Limit
	burst int

	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

// NewLocalRateLimiter returns an in memory Limiter that admits perSecond
// operations per key, with bursts of the same size. Zero disables limiting.
func NewLocalRateLimiter(perSecond uint64) Limiter {
	if perSecond == 0 {
		return &NoLimiter{}
	}

	return &keyedLimiter{
		limit:   rate.Limit(perSecond),
		burst:   int(perSecond),
		buckets: make(map[string]*rate.Limiter),
	}
}

func (l *keyedLimiter) Allow(key string) (bool, error) {
	return l.bucket(key).Allow(), nil
}

func (l *keyedLimiter) bucket(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	bucket, ok := l.buckets[key]
	if !ok {
		bucket = rate.NewLimiter(l.limit, l.burst)
		l.buckets[key] = bucket
	}
	return bucket
}

// NoLimiter admits every operation.
type NoLimiter struct{}

func (*NoLimiter) Allow(string) (bool, error) {
	return true, nil
}
