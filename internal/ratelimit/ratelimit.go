// Package ratelimit enforces a minimum spacing between request starts per venue.
package ratelimit

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultInterval is the spacing applied to venues without an override.
const DefaultInterval = 200 * time.Millisecond

// Limiter spaces outbound requests per venue. The spacing bounds request start
// times, not round-trip time: the token is consumed when Acquire returns.
type Limiter struct {
	mu        sync.Mutex
	fallback  time.Duration
	intervals map[string]time.Duration
	limiters  map[string]*rate.Limiter
}

// New builds a limiter with the given default spacing and per-venue overrides.
func New(fallback time.Duration, overrides map[string]time.Duration) *Limiter {
	if fallback <= 0 {
		fallback = DefaultInterval
	}
	intervals := make(map[string]time.Duration, len(overrides))
	for venue, interval := range overrides {
		if interval > 0 {
			intervals[strings.ToLower(strings.TrimSpace(venue))] = interval
		}
	}
	return &Limiter{
		fallback:  fallback,
		intervals: intervals,
		limiters:  make(map[string]*rate.Limiter),
	}
}

// Acquire blocks until the venue's minimum interval has elapsed since the last
// permitted call, or until ctx is cancelled.
func (l *Limiter) Acquire(ctx context.Context, venue string) error {
	return l.limiterFor(venue).Wait(ctx)
}

func (l *Limiter) limiterFor(venue string) *rate.Limiter {
	key := strings.ToLower(strings.TrimSpace(venue))
	l.mu.Lock()
	defer l.mu.Unlock()
	if lim, ok := l.limiters[key]; ok {
		return lim
	}
	interval := l.fallback
	if override, ok := l.intervals[key]; ok {
		interval = override
	}
	lim := rate.NewLimiter(rate.Every(interval), 1)
	l.limiters[key] = lim
	return lim
}
