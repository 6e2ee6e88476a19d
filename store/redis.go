package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCounter implements Counter using Redis as the backend.
// It is suitable for distributed systems where multiple application instances
// need to share a common rate-limiting state. It uses a Lua script to ensure
// the increment, the expiry, and the TTL read happen atomically.
type RedisCounter struct {
	client          redis.UniversalClient
	incrementScript *redis.Script
}

// NewRedisCounter creates a new RedisCounter.
// The Lua script is pre-compiled once for maximum performance.
func NewRedisCounter(client redis.UniversalClient) *RedisCounter {
	const incrementLua = `
		local current = redis.call("INCR", KEYS[1])
		if tonumber(current) == 1 then
			redis.call("PEXPIRE", KEYS[1], ARGV[1])
		end
		local ttl = redis.call("PTTL", KEYS[1])
		if ttl < 0 then
			redis.call("PEXPIRE", KEYS[1], ARGV[1])
			ttl = tonumber(ARGV[1])
		end
		return {current, ttl}
	`

	return &RedisCounter{
		client:          client,
		incrementScript: redis.NewScript(incrementLua),
	}
}

// Increment executes the pre-compiled Lua script and parses its
// {count, pttl} response.
func (c *RedisCounter) Increment(ctx context.Context, key string, window time.Duration) (int64, time.Time, error) {
	res, err := c.incrementScript.Run(ctx, c.client, []string{key}, window.Milliseconds()).Result()
	if err != nil {
		return 0, time.Time{}, err
	}

	arr, ok := res.([]interface{})
	if !ok || len(arr) != 2 {
		return 0, time.Time{}, fmt.Errorf("unexpected script response: %v", res)
	}
	count, ok := arr[0].(int64)
	if !ok {
		return 0, time.Time{}, fmt.Errorf("unexpected count in script response: %v", arr[0])
	}
	ttlMs, ok := arr[1].(int64)
	if !ok {
		return 0, time.Time{}, fmt.Errorf("unexpected ttl in script response: %v", arr[1])
	}

	return count, time.Now().Add(time.Duration(ttlMs) * time.Millisecond), nil
}
