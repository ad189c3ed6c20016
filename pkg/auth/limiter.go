package auth

import (
	"sync"

	"golang.org/x/time/rate"
)

const (
	defaultRPS   = 5
	defaultBurst = 10
)

// limiterPool hands out one token bucket per caller key (API key or
// remote IP). Buckets live for the life of the process; the key space is
// bounded by the configured keys plus whitelisted clients.
type limiterPool struct {
	rps   rate.Limit
	burst int

	mu      sync.RWMutex
	buckets map[string]*rate.Limiter
}

func newLimiterPool(rps float64, burst int) *limiterPool {
	if rps <= 0 {
		rps = defaultRPS
	}
	if burst <= 0 {
		burst = defaultBurst
	}
	return &limiterPool{
		rps:     rate.Limit(rps),
		burst:   burst,
		buckets: make(map[string]*rate.Limiter),
	}
}

// Allow reports whether the keyed caller may proceed under its per-second
// rate budget.
func (p *limiterPool) Allow(key string) bool {
	p.mu.RLock()
	b, ok := p.buckets[key]
	p.mu.RUnlock()
	if ok {
		return b.Allow()
	}

	p.mu.Lock()
	if b, ok = p.buckets[key]; !ok {
		b = rate.NewLimiter(p.rps, p.burst)
		p.buckets[key] = b
	}
	p.mu.Unlock()
	return b.Allow()
}
