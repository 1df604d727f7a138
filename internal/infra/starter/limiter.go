package starter

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultMaxKeys bounds how many iface/instance buckets are tracked.
// Instance names come from clients, so the key space is unbounded.
const DefaultMaxKeys = 4096

// LimiterRegistry hands out one rate.Limiter per key.
//
// A bucket that has refilled completely behaves exactly like a new one,
// so it can be dropped. When the registry is full it drops those first;
// if none can go, new keys share a single overflow limiter.
type LimiterRegistry struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	overflow *rate.Limiter
	limit    rate.Limit
	burst    int
	maxKeys  int
}

// NewLimiterRegistry creates a registry whose limiters allow perSecond
// events per second with the given burst. perSecond <= 0 means no limit.
func NewLimiterRegistry(perSecond float64, burst int) *LimiterRegistry {
	if burst < 1 {
		burst = 1
	}
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	return &LimiterRegistry{
		limiters: make(map[string]*rate.Limiter),
		overflow: rate.NewLimiter(limit, burst),
		limit:    limit,
		burst:    burst,
		maxKeys:  DefaultMaxKeys,
	}
}

// GetOrCreate returns the limiter for key.
func (r *LimiterRegistry) GetOrCreate(key string) *rate.Limiter {
	if r.limit == rate.Inf {
		return r.overflow
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if limiter, ok := r.limiters[key]; ok {
		return limiter
	}
	if len(r.limiters) >= r.maxKeys {
		r.evictRefilled(time.Now())
		if len(r.limiters) >= r.maxKeys {
			return r.overflow
		}
	}
	limiter := rate.NewLimiter(r.limit, r.burst)
	r.limiters[key] = limiter
	return limiter
}

// evictRefilled drops buckets that are full again. r.mu must be held.
func (r *LimiterRegistry) evictRefilled(now time.Time) {
	full := float64(r.burst)
	for key, limiter := range r.limiters {
		if limiter.TokensAt(now) >= full {
			delete(r.limiters, key)
		}
	}
}

// Allow reports whether an event for key may happen now.
func (r *LimiterRegistry) Allow(key string) bool {
	return r.GetOrCreate(key).Allow()
}

// Delete removes the limiter for key.
func (r *LimiterRegistry) Delete(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.limiters, key)
}

// Len returns the number of tracked keys.
func (r *LimiterRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.limiters)
}
