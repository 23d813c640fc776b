package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T) (*Limiter, *LocalStore) {
	t.Helper()
	store := NewLocalStore(0)
	t.Cleanup(func() { store.Close() })
	return NewLimiter(store), store
}

func TestLimiter_AllowsUpToMaxThenRejects(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	params := Params{Window: time.Minute, MaxRequests: 5}

	for i := 0; i < 5; i++ {
		res, err := limiter.Check(context.Background(), "tenant\x1ft1", params, 1)
		require.NoError(t, err)
		assert.True(t, res.Allowed, "request %d should be allowed", i+1)
	}

	res, err := limiter.Check(context.Background(), "tenant\x1ft1", params, 1)
	require.NoError(t, err)
	assert.False(t, res.Allowed, "request past the limit should be rejected")
	assert.Equal(t, int64(0), res.Remaining)
	assert.True(t, res.RetryAfter > 0)
}

func TestLimiter_RemainingCountsDown(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	params := Params{Window: time.Minute, MaxRequests: 5}

	want := []int64{4, 3, 2, 1, 0}
	for i, expected := range want {
		res, err := limiter.Check(context.Background(), "k", params, 1)
		require.NoError(t, err)
		assert.Equal(t, expected, res.Remaining, "remaining after call %d", i+1)
		assert.Equal(t, time.Duration(0), res.RetryAfter)
	}
}

func TestLimiter_WindowRollover(t *testing.T) {
	limiter, store := newTestLimiter(t)

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	limiter.now = store.now

	params := Params{Window: time.Minute, MaxRequests: 2}
	limiter.Check(context.Background(), "k", params, 1)
	limiter.Check(context.Background(), "k", params, 1)

	res, err := limiter.Check(context.Background(), "k", params, 1)
	require.NoError(t, err)
	require.False(t, res.Allowed)

	now = now.Add(params.Window)
	res, err = limiter.Check(context.Background(), "k", params, 1)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, int64(1), res.Remaining, "first call of a new window leaves max-1")
}

func TestLimiter_RetryAfterIsRemainingWindow(t *testing.T) {
	limiter, store := newTestLimiter(t)

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	limiter.now = store.now

	params := Params{Window: time.Minute, MaxRequests: 1}
	limiter.Check(context.Background(), "k", params, 1)

	now = now.Add(20 * time.Second)
	res, err := limiter.Check(context.Background(), "k", params, 1)
	require.NoError(t, err)
	require.False(t, res.Allowed)
	assert.Equal(t, 40*time.Second, res.RetryAfter)
	assert.Equal(t, now.Add(40*time.Second), res.ResetAt)
}

func TestLimiter_CostWeightConsumesBudgetFaster(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	params := Params{Window: time.Minute, MaxRequests: 10}

	res, err := limiter.Check(context.Background(), "k", params, 5)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, int64(5), res.Remaining)

	res, err = limiter.Check(context.Background(), "k", params, 5)
	require.NoError(t, err)
	assert.True(t, res.Allowed, "exactly exhausting the budget is still allowed")
	assert.Equal(t, int64(0), res.Remaining)

	res, err = limiter.Check(context.Background(), "k", params, 1)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
}

func TestLimiter_CheckAll_FirstFailingScopeWins(t *testing.T) {
	limiter, _ := newTestLimiter(t)

	endpoint := ScopedCheck{
		Scope: ScopeEndpoint,
		Key:   EndpointKey("t1", "u1", "POST", "/api/v1/stories/generate"),
		Params: Params{Window: time.Minute, MaxRequests: 1},
		Cost:  1,
	}
	tenant := ScopedCheck{
		Scope: ScopeTenant,
		Key:   TenantKey("t1"),
		Params: Params{Window: time.Minute, MaxRequests: 100},
		Cost:  1,
	}

	res, failed, err := limiter.CheckAll(context.Background(), []ScopedCheck{endpoint, tenant})
	require.NoError(t, err)
	require.True(t, res.Allowed)
	assert.Empty(t, failed)
	assert.Equal(t, int64(0), res.Remaining, "tightest scope's remaining is reported")

	res, failed, err = limiter.CheckAll(context.Background(), []ScopedCheck{endpoint, tenant})
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, ScopeEndpoint, failed)
	assert.Equal(t, int64(1), res.Limit)
}

func TestLimiter_CheckAll_NoScopesAllows(t *testing.T) {
	limiter, _ := newTestLimiter(t)

	res, failed, err := limiter.CheckAll(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Empty(t, failed)
}

func TestScopeKeys_DistinctScopesNeverCollide(t *testing.T) {
	keys := []ScopeKey{
		GlobalKey(),
		TenantKey("t1"),
		UserKey("t1", "u1"),
		TierKey("t1", "pro"),
		EndpointKey("t1", "u1", "GET", "/stories/:id"),
		// Identifier that tries to smuggle another scope's shape.
		TenantKey("t1\x1fu1"),
	}

	seen := map[ScopeKey]bool{}
	for _, k := range keys {
		assert.False(t, seen[k], "duplicate scope key %q", k)
		seen[k] = true
	}

	// Identical logical requests normalize to the same key.
	assert.Equal(t,
		EndpointKey("t1", "u1", "GET", "/stories/:id"),
		EndpointKey("t1", "u1", "GET", "/stories/:id"),
	)
	assert.NotEqual(t, UserKey("t1", "u1"), UserKey("t1", "u2"))
}
