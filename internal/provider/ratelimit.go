package provider

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"
)

// Default rate limits per provider (requests per second). MusicBrainz and the
// Cover Art Archive ban anonymous clients that exceed one request per second.
var defaultRateLimits = map[ProviderName]rate.Limit{
	NameMusicBrainz:     1,
	NameCoverArtArchive: 1,
	NameWikipedia:       5,
	NameDiscogs:         1,
}

// RateLimiterMap holds one rate.Limiter per provider host, created once at
// startup and shared by every request. Waiting reserves a slot and sleeps on
// a timer; no lock is held while waiting and hosts never delay each other.
type RateLimiterMap struct {
	mu       sync.RWMutex
	limiters map[ProviderName]*rate.Limiter
}

// NewRateLimiterMap creates all provider rate limiters.
func NewRateLimiterMap() *RateLimiterMap {
	m := &RateLimiterMap{
		limiters: make(map[ProviderName]*rate.Limiter, len(defaultRateLimits)),
	}
	for name, limit := range defaultRateLimits {
		m.limiters[name] = rate.NewLimiter(limit, 1)
	}
	return m
}

// SetLimit replaces the limit for a provider. A non-positive rps removes
// pacing for that provider entirely (used by tests against local servers).
func (m *RateLimiterMap) SetLimit(name ProviderName, rps float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rps <= 0 {
		delete(m.limiters, name)
		return
	}
	m.limiters[name] = rate.NewLimiter(rate.Limit(rps), 1)
}

// Wait blocks until the rate limiter for the given provider allows a request,
// or the context is canceled. A wait that would outlast the context deadline
// fails immediately with an error wrapping context.DeadlineExceeded.
func (m *RateLimiterMap) Wait(ctx context.Context, name ProviderName) error {
	m.mu.RLock()
	limiter, ok := m.limiters[name]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	if err := limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%s rate limit: %w", name, context.DeadlineExceeded)
	}
	return nil
}
