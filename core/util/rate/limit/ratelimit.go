// Package limit keeps a token bucket per key, used to bound how often a
// single account may hit an endpoint.
package limit

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/time/rate"
)

// DefaultMaxKeys is the number of buckets kept when none is configured.
const DefaultMaxKeys = 10000

// Limiter holds one token bucket per key. Every bucket refills one token
// per interval up to burst. Only the most recently used maxKeys buckets are
// kept; an evicted key starts again with a full bucket.
type Limiter struct {
	mtx     sync.Mutex
	limiter *lru.Cache
	rate    rate.Limit
	burst   int
}

// New returns a Limiter that refills one token every r with a bucket size of
// burst, keeping at most maxKeys buckets. Non-positive maxKeys selects
// DefaultMaxKeys.
func New(r time.Duration, burst, maxKeys int) (*Limiter, error) {
	if maxKeys <= 0 {
		maxKeys = DefaultMaxKeys
	}
	cache, err := lru.New(maxKeys)
	if err != nil {
		return nil, err
	}
	return &Limiter{
		limiter: cache,
		rate:    rate.Every(r),
		burst:   burst,
	}, nil
}

// Allow reports whether count tokens are available for key and takes them
// when they are.
func (l *Limiter) Allow(key string, count int) bool {
	return l.getLimiter(key).AllowN(time.Now(), count)
}

// Clear drops the bucket for key.
func (l *Limiter) Clear(key string) {
	l.limiter.Remove(key)
}

// Len returns the number of buckets kept.
func (l *Limiter) Len() int {
	return l.limiter.Len()
}

func (l *Limiter) getLimiter(key string) *rate.Limiter {
	l.mtx.Lock()
	defer l.mtx.Unlock()

	if v, ok := l.limiter.Get(key); ok {
		return v.(*rate.Limiter)
	}
	limiter := rate.NewLimiter(l.rate, l.burst)
	l.limiter.Add(key, limiter)
	return limiter
}
