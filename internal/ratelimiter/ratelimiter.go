// Package ratelimiter throttles sync requests with token buckets.
package ratelimiter

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter is a token bucket shared by every request it guards.
//
// A zero requestsPerSecond disables limiting. Safe for concurrent use.
type RateLimiter struct {
	limiter *rate.Limiter
}

// New creates a RateLimiter allowing requestsPerSecond sustained and burst
// requests at once.
//
// Example:
//
//	// 50 req/s sustained, bursts of 100
//	limiter := New(50, 100)
func New(requestsPerSecond, burst uint) *RateLimiter {
	if requestsPerSecond == 0 {
		return &RateLimiter{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	if burst == 0 {
		burst = 1
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), int(burst)),
	}
}

// Allow reports whether a request may proceed now, consuming a token if so.
func (r *RateLimiter) Allow() bool {
	return r.limiter.Allow()
}

// Wait blocks until a token is available or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// PerClient keeps one bucket per client key (typically the remote host) on
// top of an optional global bucket. Buckets idle for longer than the
// eviction window are dropped on the next sweep.
type PerClient struct {
	global *RateLimiter

	rps   uint
	burst uint
	idle  time.Duration

	mu      sync.Mutex
	clients map[string]*clientBucket
	sweep   time.Time
}

type clientBucket struct {
	limiter  *RateLimiter
	lastSeen time.Time
}

// NewPerClient returns a limiter enforcing rps/burst per client and the
// given global limiter across all clients. global may be nil.
func NewPerClient(global *RateLimiter, rps, burst uint, idle time.Duration) *PerClient {
	if idle <= 0 {
		idle = 10 * time.Minute
	}
	return &PerClient{
		global:  global,
		rps:     rps,
		burst:   burst,
		idle:    idle,
		clients: make(map[string]*clientBucket),
	}
}

func (p *PerClient) bucket(key string, now time.Time) *RateLimiter {
	p.mu.Lock()
	defer p.mu.Unlock()

	if now.Sub(p.sweep) > p.idle {
		for k, b := range p.clients {
			if now.Sub(b.lastSeen) > p.idle {
				delete(p.clients, k)
			}
		}
		p.sweep = now
	}

	b, ok := p.clients[key]
	if !ok {
		b = &clientBucket{limiter: New(p.rps, p.burst)}
		p.clients[key] = b
	}
	b.lastSeen = now
	return b.limiter
}

// Wait blocks until both the client's bucket and the global bucket grant a
// token, or ctx is done.
func (p *PerClient) Wait(ctx context.Context, key string) error {
	if err := p.bucket(key, time.Now()).Wait(ctx); err != nil {
		return err
	}
	if p.global != nil {
		return p.global.Wait(ctx)
	}
	return nil
}

// Allow is the non-blocking form of Wait.
func (p *PerClient) Allow(key string) bool {
	if !p.bucket(key, time.Now()).Allow() {
		return false
	}
	return p.global == nil || p.global.Allow()
}

// Clients returns the number of tracked client buckets.
func (p *PerClient) Clients() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.clients)
}
