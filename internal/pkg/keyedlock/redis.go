package keyedlock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"livechat/internal/pkg/logx"
)

const (
	// DefaultTTL bounds how long a crashed holder can block a key.
	DefaultTTL = 5 * time.Second

	// DefaultWait is the longest Lock waits for a key held elsewhere.
	DefaultWait = 5 * time.Second

	retryInterval  = 10 * time.Millisecond
	releaseTimeout = 2 * time.Second
)

// releaseScript deletes the lock only while it still carries the caller's token,
// so an expired holder never releases a lock taken over by another instance.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a Locker shared by every instance using the same Redis and prefix.
// Each lock is a SET NX PX key holding a random token. Waiters on the same instance
// queue on a Local lock first, so only one of them polls Redis.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	wait   time.Duration
	local  *Local
	logger zerolog.Logger
}

var _ Locker = (*Redis)(nil)

// NewRedis returns a Redis locker whose keys live under prefix.
func NewRedis(client *redis.Client, prefix string) *Redis {
	return &Redis{
		client: client,
		prefix: prefix,
		ttl:    DefaultTTL,
		wait:   DefaultWait,
		local:  NewLocal(),
		logger: logx.Component("KeyedLock"),
	}
}

func (r *Redis) redisKey(key string) string {
	return r.prefix + "lock:" + key
}

func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	ctx, cancel := context.WithTimeout(ctx, r.wait)
	defer cancel()

	unlockLocal, err := r.local.Lock(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("keyedlock: wait for %s: %w", key, err)
	}

	redisKey := r.redisKey(key)
	token := uuid.NewString()

	for {
		acquired, err := r.client.SetNX(ctx, redisKey, token, r.ttl).Result()
		if err != nil {
			unlockLocal()
			return nil, fmt.Errorf("keyedlock: acquire %s: %w", key, err)
		}
		if acquired {
			break
		}

		timer := time.NewTimer(retryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			unlockLocal()
			return nil, fmt.Errorf("keyedlock: wait for %s: %w", key, ctx.Err())
		case <-timer.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			defer unlockLocal()

			releaseCtx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
			defer cancel()

			if err := releaseScript.Run(releaseCtx, r.client, []string{redisKey}, token).Err(); err != nil {
				r.logger.Warn().Err(err).Str("key", key).Msg("Failed to release lock; it expires on its own.")
			}
		})
	}, nil
}
