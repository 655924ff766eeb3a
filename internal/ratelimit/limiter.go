// Package ratelimit implements fixed-window counters in Redis.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// incrScript counts one event and arms the window expiry in the same atomic
// step. A key found without a TTL gets one, so a counter can never outlive
// its window.
var incrScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 or redis.call("PTTL", KEYS[1]) < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// Limiter allows at most limit events per key in each window.
type Limiter struct {
	client redis.UniversalClient
	limit  int
	window time.Duration
	prefix string
}

// New creates a Limiter whose keys are namespaced by prefix.
func New(client redis.UniversalClient, prefix string, limit int, window time.Duration) *Limiter {
	return &Limiter{client: client, limit: limit, window: window, prefix: prefix}
}

// Allow counts one event for key and reports whether it is within the limit.
// The window starts with the first event.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := fmt.Sprintf("ratelimit:%s:%s", l.prefix, key)

	count, err := incrScript.Run(ctx, l.client, []string{redisKey}, l.window.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("incr %s: %w", redisKey, err)
	}

	return count <= int64(l.limit), nil
}
