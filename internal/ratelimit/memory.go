package ratelimit

import (
	"context"
	"hash/fnv"
	"sync"
	"time"
)

const shardCount = 64

// window is one fixed counting window for a scope key.
type window struct {
	start    time.Time
	length   time.Duration
	count    int64
	lastSeen time.Time
}

type shard struct {
	mu      sync.Mutex
	windows map[string]*window
}

// LocalStore is an in-process CounterStore. Keys are spread over a fixed set
// of shards so unrelated scope keys never contend on the same mutex, and the
// periodic sweep only ever holds one shard's lock at a time.
//
// A LocalStore is only consistent within a single process; deployments that
// need a globally consistent count use the Redis store and keep a LocalStore
// as the fail-open fallback.
type LocalStore struct {
	shards          [shardCount]shard
	cleanupInterval time.Duration
	now             func() time.Time

	done      chan struct{}
	closeOnce sync.Once
}

// NewLocalStore creates a local counter store and starts its background
// sweeper. Pass a zero cleanupInterval to disable sweeping (tests).
func NewLocalStore(cleanupInterval time.Duration) *LocalStore {
	s := &LocalStore{
		cleanupInterval: cleanupInterval,
		now:             time.Now,
		done:            make(chan struct{}),
	}
	for i := range s.shards {
		s.shards[i].windows = make(map[string]*window)
	}
	if cleanupInterval > 0 {
		go s.sweep()
	}
	return s
}

// Increment implements CounterStore. A window whose age reaches the window
// length is replaced, not extended, so the first call of a new window always
// observes count == cost.
func (s *LocalStore) Increment(_ context.Context, key string, win time.Duration, cost int64) (int64, time.Time, error) {
	if win <= 0 {
		win = time.Second
	}
	now := s.now()

	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	w := sh.windows[key]
	if w == nil || now.Sub(w.start) >= win {
		w = &window{start: now, length: win}
		sh.windows[key] = w
	}
	w.count += cost
	w.lastSeen = now
	return w.count, w.start, nil
}

// Close stops the background sweeper. Safe to call more than once.
func (s *LocalStore) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}

func (s *LocalStore) shardFor(key string) *shard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return &s.shards[h.Sum32()%shardCount]
}

func (s *LocalStore) sweep() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.evictStale()
		}
	}
}

// evictStale removes windows idle for more than two window lifetimes. Each
// shard is locked independently so concurrent increments on other shards
// proceed untouched.
func (s *LocalStore) evictStale() {
	now := s.now()
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		for key, w := range sh.windows {
			if now.Sub(w.lastSeen) > 2*w.length {
				delete(sh.windows, key)
			}
		}
		sh.mu.Unlock()
	}
}

// Len reports the number of live windows. Used by tests and the sweeper's
// own instrumentation.
func (s *LocalStore) Len() int {
	n := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		n += len(sh.windows)
		sh.mu.Unlock()
	}
	return n
}
