package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// incrementScript bumps the counter and starts the window on the first hit.
// A key that somehow lost its TTL is given a fresh one so it cannot block
// forever.
var incrementScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
	ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

// RedisCounter shares fixed-window counters between server instances.
type RedisCounter struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisCounter(client redis.UniversalClient, prefix string) *RedisCounter {
	if prefix == "" {
		prefix = "whitebox:rl:"
	}
	return &RedisCounter{client: client, prefix: prefix}
}

func (r *RedisCounter) Increment(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	values, err := incrementScript.Run(ctx, r.client, []string{r.prefix + key}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return 0, 0, fmt.Errorf("redis increment: %w", err)
	}
	if len(values) != 2 {
		return 0, 0, fmt.Errorf("redis increment: unexpected reply %v", values)
	}
	return values[0], time.Duration(values[1]) * time.Millisecond, nil
}
