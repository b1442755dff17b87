// Package ratelimit paces the crawl loop's outbound fetches with a global
// limiter plus per-host limiters.
package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter implements rate limiting for crawl fetches.
type Limiter struct {
	mu        sync.Mutex
	global    *rate.Limiter
	perHost   map[string]*rate.Limiter
	hostRate  rate.Limit
	hostBurst int
}

// NewLimiter creates a limiter. requestsPerSecond and burst bound the whole
// crawl; hostRPS and hostBurst bound each host individually (zero hostRPS
// disables the per-host limit).
func NewLimiter(requestsPerSecond float64, burst int, hostRPS float64, hostBurst int) *Limiter {
	l := &Limiter{
		global:    rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
		perHost:   make(map[string]*rate.Limiter),
		hostRate:  rate.Limit(hostRPS),
		hostBurst: hostBurst,
	}
	if l.hostBurst <= 0 {
		l.hostBurst = 1
	}
	return l
}

// Wait blocks until a request is allowed or the context is cancelled.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.global.Wait(ctx)
}

// WaitHost blocks until a request to a specific host is allowed.
func (l *Limiter) WaitHost(ctx context.Context, host string) error {
	if err := l.global.Wait(ctx); err != nil {
		return err
	}

	if l.hostRate <= 0 {
		return nil
	}

	l.mu.Lock()
	hl, ok := l.perHost[host]
	if !ok {
		hl = rate.NewLimiter(l.hostRate, l.hostBurst)
		l.perHost[host] = hl
	}
	l.mu.Unlock()

	return hl.Wait(ctx)
}

// Allow reports whether a request may proceed right now.
func (l *Limiter) Allow() bool {
	return l.global.Allow()
}
