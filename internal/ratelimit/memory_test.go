package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore_IncrementCountsWithinWindow(t *testing.T) {
	store := NewLocalStore(0)
	defer store.Close()

	for i := int64(1); i <= 5; i++ {
		count, _, err := store.Increment(context.Background(), "k", time.Minute, 1)
		require.NoError(t, err)
		assert.Equal(t, i, count)
	}
}

func TestLocalStore_NewWindowResetsCount(t *testing.T) {
	store := NewLocalStore(0)
	defer store.Close()

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	for i := 0; i < 9; i++ {
		store.Increment(context.Background(), "k", time.Minute, 1)
	}

	// Advance past the window boundary: a fresh window starts at count = cost
	// regardless of the prior window's count.
	now = now.Add(61 * time.Second)
	count, windowStart, err := store.Increment(context.Background(), "k", time.Minute, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, now, windowStart)
}

func TestLocalStore_CostWeight(t *testing.T) {
	store := NewLocalStore(0)
	defer store.Close()

	count, _, err := store.Increment(context.Background(), "k", time.Minute, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), count)
}

func TestLocalStore_IndependentKeys(t *testing.T) {
	store := NewLocalStore(0)
	defer store.Close()

	store.Increment(context.Background(), "a", time.Minute, 1)
	store.Increment(context.Background(), "a", time.Minute, 1)
	count, _, err := store.Increment(context.Background(), "b", time.Minute, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestLocalStore_EvictStale(t *testing.T) {
	store := NewLocalStore(0)
	defer store.Close()

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	store.Increment(context.Background(), "short", 100*time.Millisecond, 1)
	store.Increment(context.Background(), "long", time.Hour, 1)
	require.Equal(t, 2, store.Len())

	// Past two lifetimes of the short window, within two of the long one.
	now = now.Add(time.Second)
	store.evictStale()
	assert.Equal(t, 1, store.Len())

	now = now.Add(3 * time.Hour)
	store.evictStale()
	assert.Equal(t, 0, store.Len())
}

func TestLocalStore_ConcurrentIncrements(t *testing.T) {
	store := NewLocalStore(0)
	defer store.Close()

	const workers = 50
	const perWorker = 20

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			key := fmt.Sprintf("client-%d", id%5)
			for j := 0; j < perWorker; j++ {
				store.Increment(context.Background(), key, time.Minute, 1)
			}
		}(i)
	}
	wg.Wait()

	// 5 distinct keys, all increments accounted for.
	total := int64(0)
	for i := 0; i < 5; i++ {
		count, _, err := store.Increment(context.Background(), fmt.Sprintf("client-%d", i), time.Minute, 1)
		require.NoError(t, err)
		total += count - 1
	}
	assert.Equal(t, int64(workers*perWorker), total)
}

func TestLocalStore_CloseIsIdempotent(t *testing.T) {
	store := NewLocalStore(50 * time.Millisecond)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())
}
