package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	keyPrefix           = "lock:"
	defaultPollInterval = 25 * time.Millisecond
	releaseTimeout      = time.Second
)

// releaseScript deletes the lock only if it still carries our token, so an
// expired lease taken over by another holder is left alone.
var releaseScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	end
	return 0
`)

// RedisLocker is a lease lock shared by every replica using the same Redis.
// A lease expires after ttl even if its holder dies.
type RedisLocker struct {
	client       redis.UniversalClient
	ttl          time.Duration
	pollInterval time.Duration
}

// NewRedisLocker creates a RedisLocker with leases of ttl.
func NewRedisLocker(client redis.UniversalClient, ttl time.Duration) *RedisLocker {
	return &RedisLocker{client: client, ttl: ttl, pollInterval: defaultPollInterval}
}

// Lock polls SET NX until the lease is acquired or ctx is done.
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := keyPrefix + key
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}

		timer := time.NewTimer(l.pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true

		releaseCtx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, l.client, []string{redisKey}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Str("lock_key", redisKey).Msg("failed to release lock, lease will expire")
		}
	}, nil
}
