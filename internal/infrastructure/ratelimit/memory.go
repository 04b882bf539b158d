package ratelimit

import (
	"sync"
	"time"

	"github.com/testpulse-io/testpulse/internal/application/ports"
)

// Policy is a fixed-window allowance for one action.
type Policy struct {
	Limit  int
	Window time.Duration
}

type bucket struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter is an in-memory fixed-window limiter keyed by
// (action, identifier). Suitable for single-instance deployment; for
// multi-instance, swap in a shared-store implementation of ports.RateLimiter.
type MemoryLimiter struct {
	mu       sync.Mutex
	policies map[string]Policy
	buckets  map[string]*bucket
	now      func() time.Time
}

// NewMemoryLimiter returns a limiter with the given per-action policies.
// Actions without a policy are never limited.
func NewMemoryLimiter(policies map[string]Policy) *MemoryLimiter {
	return &MemoryLimiter{
		policies: policies,
		buckets:  make(map[string]*bucket),
		now:      time.Now,
	}
}

// Allow consumes one attempt for (action, identifier) and reports whether it
// fits the window. A bucket whose reset time has passed is replaced, not
// incremented.
func (l *MemoryLimiter) Allow(action, identifier string) bool {
	policy, ok := l.policies[action]
	if !ok || policy.Limit <= 0 {
		return true
	}
	k := action + ":" + identifier
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	b := l.buckets[k]
	if b == nil || !now.Before(b.resetAt) {
		b = &bucket{resetAt: now.Add(policy.Window)}
		l.buckets[k] = b
	}
	b.count++
	return b.count <= policy.Limit
}

var _ ports.RateLimiter = (*MemoryLimiter)(nil)
