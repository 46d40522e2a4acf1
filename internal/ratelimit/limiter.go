// Package ratelimit provides per-tenant token-bucket admission control.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Config holds rate limiter configuration.
type Config struct {
	// RequestsPerMinute is the bucket capacity and refill rate per tenant (default 60).
	RequestsPerMinute float64

	// Disabled turns the limiter into a pass-through: Acquire returns
	// immediately for every tenant.
	Disabled bool
}

// DefaultConfig returns the default limiter configuration.
func DefaultConfig() Config {
	return Config{RequestsPerMinute: 60}
}

// bucket is the per-tenant token bucket. Tokens are fractional: refill is
// proportional to elapsed wall-clock time, so no drift accumulates.
// Invariant: 0 <= tokens <= capacity at every observation point.
type bucket struct {
	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
	lastUsed   time.Time
}

// Limiter admits one request per token, per tenant. Buckets are created
// lazily on first use, starting full, so a tenant's very first call never
// waits. Acquire only delays; it never returns an error except for
// context cancellation.
type Limiter struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	rpm      float64
	disabled bool

	now func() time.Time
}

// New creates a new per-tenant rate limiter.
func New(cfg Config) *Limiter {
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = DefaultConfig().RequestsPerMinute
	}
	return &Limiter{
		buckets:  make(map[string]*bucket),
		rpm:      cfg.RequestsPerMinute,
		disabled: cfg.Disabled,
		now:      time.Now,
	}
}

// Acquire blocks until one unit of capacity is available for the tenant,
// or until ctx is done. Waiters on the same tenant are unblocked roughly in
// the order they blocked, but no strict ordering is guaranteed.
func (l *Limiter) Acquire(ctx context.Context, tenantID string) error {
	if l.disabled {
		return nil
	}
	b := l.bucket(tenantID)

	for {
		b.mu.Lock()
		now := l.now()
		l.refill(b, now)
		b.lastUsed = now

		if b.tokens >= 1 {
			b.tokens--
			b.mu.Unlock()
			return nil
		}

		// Time to accumulate exactly one token at rpm tokens per minute.
		wait := time.Duration((1 - b.tokens) / l.rpm * float64(time.Minute))
		b.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			// Re-check under the lock: a concurrent waiter may have taken
			// the token that accumulated while we slept.
		}
	}
}

// SweepIdle removes buckets untouched for longer than idleFor and returns
// the number removed. A swept tenant's next call recreates its bucket full,
// which is what a long-idle tenant would observe anyway.
func (l *Limiter) SweepIdle(idleFor time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-idleFor)
	removed := 0
	for tenant, b := range l.buckets {
		b.mu.Lock()
		idle := b.lastUsed.Before(cutoff)
		b.mu.Unlock()
		if idle {
			delete(l.buckets, tenant)
			removed++
		}
	}
	return removed
}

// RunSweepLoop periodically evicts idle buckets until stop is closed.
func (l *Limiter) RunSweepLoop(stop <-chan struct{}, interval, idleFor time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.SweepIdle(idleFor)
		case <-stop:
			return
		}
	}
}

// Tenants returns the number of live buckets (for monitoring).
func (l *Limiter) Tenants() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// bucket returns the tenant's bucket, creating it full on first use.
func (l *Limiter) bucket(tenantID string) *bucket {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[tenantID]
	if !ok {
		now := l.now()
		b = &bucket{tokens: l.rpm, lastRefill: now, lastUsed: now}
		l.buckets[tenantID] = b
	}
	return b
}

// refill adds tokens proportional to elapsed time, clamped at capacity.
// Must be called with b.mu held.
func (l *Limiter) refill(b *bucket, now time.Time) {
	elapsed := now.Sub(b.lastRefill)
	if elapsed <= 0 {
		return
	}
	b.tokens += elapsed.Minutes() * l.rpm
	if b.tokens > l.rpm {
		b.tokens = l.rpm
	}
	b.lastRefill = now
}
