package security

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiter provides per-provider rate limiting for outbound token-endpoint
// calls using a token bucket per provider id. Unlike an inbound limiter keyed
// by client IP, the key cardinality here is the handful of configured
// providers, so no eviction is needed.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

// NewRateLimiter creates a rate limiter allowing requestsPerSecond sustained
// calls per provider with the given burst.
func NewRateLimiter(requestsPerSecond float64, burst int) *RateLimiter {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 5
	}
	if burst <= 0 {
		burst = 10
	}
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(requestsPerSecond),
		burst:    burst,
	}
}

func (rl *RateLimiter) limiter(providerID string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	l, ok := rl.limiters[providerID]
	if !ok {
		l = rate.NewLimiter(rl.rate, rl.burst)
		rl.limiters[providerID] = l
	}
	return l
}

// Wait blocks until the provider's bucket permits a call or the context is
// done. The context's deadline bounds the wait.
func (rl *RateLimiter) Wait(ctx context.Context, providerID string) error {
	if err := rl.limiter(providerID).Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait for provider %s: %w", providerID, err)
	}
	return nil
}

// Allow reports whether a call for the provider is permitted right now
// without blocking.
func (rl *RateLimiter) Allow(providerID string) bool {
	return rl.limiter(providerID).Allow()
}
