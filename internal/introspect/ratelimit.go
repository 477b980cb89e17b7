package introspect

import (
	"net/http"
	"sync"
	"time"
)

// RateLimit bounds the request rate for one route.
type RateLimit struct {
	// PerSecond is the sustained rate, in tokens added per second.
	PerSecond float64

	// Burst is the bucket capacity.
	Burst int
}

// DefaultRateLimits covers the introspection routes. Health and status
// polls are cheap; event listings and metric scrapes walk the ring and
// the registry.
var DefaultRateLimits = map[string]RateLimit{
	"/healthz": {PerSecond: 100, Burst: 200},
	"/status":  {PerSecond: 50, Burst: 100},
	"/plan":    {PerSecond: 20, Burst: 40},
	"/events":  {PerSecond: 20, Burst: 40},
	"/metrics": {PerSecond: 10, Burst: 20},
}

// bucket is a token bucket refilled on demand.
type bucket struct {
	mu         sync.Mutex
	tokens     float64
	max        float64
	perSecond  float64
	lastRefill time.Time
}

func newBucket(limit RateLimit, now time.Time) *bucket {
	return &bucket{
		tokens:     float64(limit.Burst),
		max:        float64(limit.Burst),
		perSecond:  limit.PerSecond,
		lastRefill: now,
	}
}

func (b *bucket) allow(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.tokens += now.Sub(b.lastRefill).Seconds() * b.perSecond
	if b.tokens > b.max {
		b.tokens = b.max
	}
	b.lastRefill = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Limiter rate-limits requests per route. Routes without a configured
// limit are not limited.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limits  map[string]RateLimit
	now     func() time.Time
}

// NewLimiter creates a limiter. A nil limits map selects
// DefaultRateLimits.
func NewLimiter(limits map[string]RateLimit) *Limiter {
	if limits == nil {
		limits = DefaultRateLimits
	}
	return &Limiter{
		buckets: make(map[string]*bucket),
		limits:  limits,
		now:     time.Now,
	}
}

// Allow consumes a token for the route and reports whether the request
// may proceed.
func (l *Limiter) Allow(route string) bool {
	limit, limited := l.limits[route]
	if !limited {
		return true
	}

	now := l.now()

	l.mu.Lock()
	b, ok := l.buckets[route]
	if !ok {
		b = newBucket(limit, now)
		l.buckets[route] = b
	}
	l.mu.Unlock()

	return b.allow(now)
}

func (l *Limiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(r.URL.Path) {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
