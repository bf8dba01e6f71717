package redis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/hotvault/hotvault-backend/pkg/logger"
	"github.com/redis/go-redis/v9"
)

const (
	lockKeyPrefix     = "hotvault:lock:"
	defaultRetryDelay = 25 * time.Millisecond
	releaseTimeout    = 2 * time.Second
)

var ErrLockTimeout = errors.New("timed out waiting for lock")

// releaseScript deletes the key only if it still holds our token, so an
// expired lock re-acquired by someone else is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker is a SET NX based mutual exclusion lock shared across processes.
type Locker struct {
	client     *redis.Client
	ttl        time.Duration
	retryDelay time.Duration
}

func NewLocker(client *redis.Client, ttl time.Duration) *Locker {
	return &Locker{
		client:     client,
		ttl:        ttl,
		retryDelay: defaultRetryDelay,
	}
}

func lockKey(key string) string {
	return lockKeyPrefix + key
}

// Lock blocks until key is acquired, ctx is done, or one TTL has elapsed.
// The returned func releases the lock and is safe to call once.
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	k := lockKey(key)
	token := uuid.NewString()
	deadline := time.Now().Add(l.ttl)

	for {
		ok, err := l.client.SetNX(ctx, k, token, l.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return func() { l.release(k, token) }, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrLockTimeout
		}

		timer := time.NewTimer(l.retryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (l *Locker) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()

	if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
		logger.Warn("Failed to release redis lock", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}
}
