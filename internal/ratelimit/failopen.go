package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// FailOpenStore wraps a shared primary store with a local fallback. When the
// primary errors or times out, the check is answered by the fallback for
// that single call: rate limiting accuracy is sacrificed for availability,
// and the degradation is observable only through logs and metrics, never as
// a user-facing error.
type FailOpenStore struct {
	primary  CounterStore
	fallback *LocalStore

	// logLimit throttles degraded-mode warnings; a store outage would
	// otherwise emit one log line per request.
	logLimit *rate.Limiter
	onDegrade func()
}

// NewFailOpenStore wraps primary with fallback. onDegrade, if non-nil, is
// invoked once per degraded check (metrics hook).
func NewFailOpenStore(primary CounterStore, fallback *LocalStore, onDegrade func()) *FailOpenStore {
	return &FailOpenStore{
		primary:   primary,
		fallback:  fallback,
		logLimit:  rate.NewLimiter(rate.Every(10*time.Second), 1),
		onDegrade: onDegrade,
	}
}

// Increment implements CounterStore. Errors from the primary are fully
// absorbed here; the caller always receives a usable count.
func (s *FailOpenStore) Increment(ctx context.Context, key string, win time.Duration, cost int64) (int64, time.Time, error) {
	count, windowStart, err := s.primary.Increment(ctx, key, win, cost)
	if err == nil {
		return count, windowStart, nil
	}

	if s.onDegrade != nil {
		s.onDegrade()
	}
	if s.logLimit.Allow() {
		slog.Warn("rate limit store unavailable, falling back to local counters",
			"error", err,
		)
	}

	return s.fallback.Increment(ctx, key, win, cost)
}

// Close closes both stores.
func (s *FailOpenStore) Close() error {
	err := s.primary.Close()
	if ferr := s.fallback.Close(); err == nil {
		err = ferr
	}
	return err
}
