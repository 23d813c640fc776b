// Package ratelimit provides fixed-window rate limiting across admission
// scopes (global, tenant, user, creator tier, endpoint). Counters live either
// in a process-private store or in a shared Redis store; when the shared
// store is unreachable the limiter fails open to the local store for that
// single check rather than rejecting traffic.
package ratelimit

import (
	"context"
	"time"
)

// CounterStore is the atomic counting primitive behind the limiter.
// Implementations must be safe for concurrent use.
type CounterStore interface {
	// Increment adds cost to the counter for key in its current fixed
	// window and returns the updated count together with the window start.
	// A new window begins when the previous one is at least window old.
	Increment(ctx context.Context, key string, window time.Duration, cost int64) (count int64, windowStart time.Time, err error)

	// Close stops background goroutines and releases resources.
	Close() error
}

// Result carries the outcome of one scope check.
type Result struct {
	Allowed    bool
	Remaining  int64         // Requests left in the window after this call
	Limit      int64         // Configured max requests for the window
	ResetAt    time.Time     // When the current window ends
	RetryAfter time.Duration // Zero when allowed; time until reset otherwise
}

// Params describes one fixed counting window.
type Params struct {
	Window      time.Duration
	MaxRequests int64
}

// Limiter evaluates fixed-window limits against a CounterStore.
//
// The counting policy is increment-then-compare: every call consumes budget
// first, so the request that tips the count past MaxRequests is itself
// rejected and request N = MaxRequests is the last one allowed.
type Limiter struct {
	store CounterStore
	now   func() time.Time
}

// NewLimiter creates a limiter over the given store.
func NewLimiter(store CounterStore) *Limiter {
	return &Limiter{store: store, now: time.Now}
}

// Check consumes cost units from the scope's current window and reports
// whether the request is within budget. Cost below 1 counts as 1.
func (l *Limiter) Check(ctx context.Context, key ScopeKey, p Params, cost int64) (Result, error) {
	if cost < 1 {
		cost = 1
	}

	count, windowStart, err := l.store.Increment(ctx, string(key), p.Window, cost)
	if err != nil {
		return Result{}, err
	}

	resetAt := windowStart.Add(p.Window)
	remaining := p.MaxRequests - count
	if remaining < 0 {
		remaining = 0
	}

	res := Result{
		Allowed:   count <= p.MaxRequests,
		Remaining: remaining,
		Limit:     p.MaxRequests,
		ResetAt:   resetAt,
	}
	if !res.Allowed {
		retry := resetAt.Sub(l.now())
		if retry < 0 {
			retry = 0
		}
		res.RetryAfter = retry
	}
	return res, nil
}
