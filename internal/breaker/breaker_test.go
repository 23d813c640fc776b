package breaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatekeeper/internal/models"
)

func newTestBreaker(cfg models.Breaker) (*Breaker, *time.Time) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	b := newBreaker("database", cfg, nil)
	b.now = func() time.Time { return now }
	return b, &now
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	b, _ := newTestBreaker(models.Breaker{
		FailureThreshold: 3,
		ResetTimeout:     30 * time.Second,
		HalfOpenRequests: 2,
	})

	b.OnFailure()
	b.OnFailure()
	assert.Equal(t, StateClosed, b.State())
	assert.True(t, b.Allow())

	b.OnFailure()
	assert.Equal(t, StateOpen, b.State())
	assert.False(t, b.Allow())
}

func TestBreaker_SuccessResetsFailureStreak(t *testing.T) {
	b, _ := newTestBreaker(models.Breaker{
		FailureThreshold: 3,
		ResetTimeout:     30 * time.Second,
		HalfOpenRequests: 1,
	})

	b.OnFailure()
	b.OnFailure()
	b.OnSuccess()
	b.OnFailure()
	b.OnFailure()
	assert.Equal(t, StateClosed, b.State(), "non-consecutive failures never open the circuit")
}

func TestBreaker_RejectsDuringCooldownThenProbes(t *testing.T) {
	b, now := newTestBreaker(models.Breaker{
		FailureThreshold: 3,
		ResetTimeout:     30 * time.Second,
		HalfOpenRequests: 2,
	})

	for i := 0; i < 3; i++ {
		b.OnFailure()
	}
	require.Equal(t, StateOpen, b.State())

	*now = now.Add(10 * time.Second)
	assert.False(t, b.Allow(), "still inside the cooldown")

	*now = now.Add(21 * time.Second)
	assert.True(t, b.Allow(), "first probe after the cooldown is admitted")
	assert.Equal(t, StateHalfOpen, b.State())
}

func TestBreaker_HalfOpenAdmitsLimitedProbes(t *testing.T) {
	b, now := newTestBreaker(models.Breaker{
		FailureThreshold: 1,
		ResetTimeout:     time.Second,
		HalfOpenRequests: 2,
	})

	b.OnFailure()
	*now = now.Add(2 * time.Second)

	assert.True(t, b.Allow())
	assert.True(t, b.Allow())
	assert.False(t, b.Allow(), "probe budget exhausted")
}

func TestBreaker_AllProbesSucceedingCloses(t *testing.T) {
	b, now := newTestBreaker(models.Breaker{
		FailureThreshold: 1,
		ResetTimeout:     time.Second,
		HalfOpenRequests: 2,
	})

	b.OnFailure()
	*now = now.Add(2 * time.Second)

	require.True(t, b.Allow())
	require.True(t, b.Allow())
	b.OnSuccess()
	assert.Equal(t, StateHalfOpen, b.State(), "one success is not enough")
	b.OnSuccess()
	assert.Equal(t, StateClosed, b.State())
	assert.True(t, b.Allow())
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	b, now := newTestBreaker(models.Breaker{
		FailureThreshold: 3,
		ResetTimeout:     30 * time.Second,
		HalfOpenRequests: 2,
	})

	for i := 0; i < 3; i++ {
		b.OnFailure()
	}
	*now = now.Add(31 * time.Second)
	require.True(t, b.Allow())

	b.OnFailure()
	assert.Equal(t, StateOpen, b.State())
	assert.False(t, b.Allow(), "cooldown restarts from the half-open failure")

	*now = now.Add(31 * time.Second)
	assert.True(t, b.Allow(), "a fresh cooldown admits a new probe")
}

func TestBreaker_RetryAfterTracksRemainingCooldown(t *testing.T) {
	b, now := newTestBreaker(models.Breaker{
		FailureThreshold: 1,
		ResetTimeout:     30 * time.Second,
		HalfOpenRequests: 1,
	})

	assert.Equal(t, 30*time.Second, b.RetryAfter(), "closed breaker reports the full reset timeout")

	b.OnFailure()
	require.Equal(t, StateOpen, b.State())
	assert.Equal(t, 30*time.Second, b.RetryAfter())

	*now = now.Add(10 * time.Second)
	assert.Equal(t, 20*time.Second, b.RetryAfter())
}

func TestBreaker_TransitionHookFires(t *testing.T) {
	type move struct{ from, to State }
	var moves []move

	b := newBreaker("ai-provider", models.Breaker{
		FailureThreshold: 1,
		ResetTimeout:     time.Second,
		HalfOpenRequests: 1,
	}, func(name string, from, to State) {
		assert.Equal(t, "ai-provider", name)
		moves = append(moves, move{from, to})
	})
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }

	b.OnFailure()
	now = now.Add(2 * time.Second)
	b.Allow()
	b.OnSuccess()

	assert.Equal(t, []move{
		{StateClosed, StateOpen},
		{StateOpen, StateHalfOpen},
		{StateHalfOpen, StateClosed},
	}, moves)
}

func TestRegistry_DoWrapsCalls(t *testing.T) {
	r := NewRegistry(map[string]models.Breaker{
		"database": {FailureThreshold: 2, ResetTimeout: time.Minute, HalfOpenRequests: 1},
	}, nil)

	boom := errors.New("boom")
	require.ErrorIs(t, r.Do("database", func() error { return boom }), boom)
	require.ErrorIs(t, r.Do("database", func() error { return boom }), boom)

	err := r.Do("database", func() error {
		t.Fatal("open circuit must not invoke the call")
		return nil
	})
	assert.ErrorIs(t, err, ErrOpen)
}

func TestRegistry_UnconfiguredNameRunsDirectly(t *testing.T) {
	r := NewRegistry(nil, nil)

	called := false
	require.NoError(t, r.Do("cache", func() error {
		called = true
		return nil
	}))
	assert.True(t, called)
	assert.Nil(t, r.Get("cache"))
}

func TestRegistry_SnapshotsSortedByName(t *testing.T) {
	r := NewRegistry(map[string]models.Breaker{
		"database":    {FailureThreshold: 3, ResetTimeout: time.Minute, HalfOpenRequests: 1},
		"ai-provider": {FailureThreshold: 5, ResetTimeout: time.Minute, HalfOpenRequests: 2},
	}, nil)

	r.Get("database").OnFailure()

	snaps := r.Snapshots()
	require.Len(t, snaps, 2)
	assert.Equal(t, "ai-provider", snaps[0].Name)
	assert.Equal(t, "database", snaps[1].Name)
	assert.Equal(t, StateClosed, snaps[1].State)
	assert.Equal(t, 1, snaps[1].ConsecutiveFails)
}
