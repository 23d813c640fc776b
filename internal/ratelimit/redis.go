package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// incrScript atomically increments a window counter and sets its expiry when
// the key is new. Expiry is the only garbage collection the shared store
// gets, so it must be applied in the same round trip as the first increment.
var incrScript = redis.NewScript(`
local count = redis.call("INCRBY", KEYS[1], ARGV[1])
if count == tonumber(ARGV[1]) then
	redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return count
`)

// RedisStore is a CounterStore backed by a shared Redis instance, giving a
// consistent count across every process sharing the store. Windows are
// identified by their start time embedded in the key; expiry after two
// window lifetimes reclaims finished windows.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	timeout   time.Duration
	now       func() time.Time
}

// RedisOptions configures the store.
type RedisOptions struct {
	Addr      string
	Password  string
	DB        int
	PoolSize  int
	KeyPrefix string

	// Timeout bounds every round trip. The limiter never blocks the request
	// path on a slow store; on expiry the caller degrades to its local
	// fallback.
	Timeout time.Duration
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(opts RedisOptions) (*RedisStore, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 250 * time.Millisecond
	}
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = "gatekeeper:rl"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
		PoolSize: opts.PoolSize,
	})

	pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &RedisStore{
		client:    client,
		keyPrefix: opts.KeyPrefix,
		timeout:   opts.Timeout,
		now:       time.Now,
	}, nil
}

// Increment implements CounterStore. The fixed window is derived by
// truncating the current time to the window length, so every process
// sharing the store agrees on window boundaries.
func (s *RedisStore) Increment(ctx context.Context, key string, win time.Duration, cost int64) (int64, time.Time, error) {
	if win <= 0 {
		win = time.Second
	}
	windowStart := s.now().Truncate(win)
	redisKey := fmt.Sprintf("%s:%s:%d", s.keyPrefix, key, windowStart.UnixMilli())

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	ttl := strconv.FormatInt((2 * win).Milliseconds(), 10)
	count, err := incrScript.Run(ctx, s.client, []string{redisKey}, cost, ttl).Int64()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis increment: %w", err)
	}
	return count, windowStart, nil
}

// Close releases the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
