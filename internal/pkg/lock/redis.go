// internal/pkg/lock/redis.go
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	xerrors "mileage-service/internal/pkg/errors"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only if it still holds our token, so an
// expired lock taken over by another instance is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker shares vehicle chain locks between service instances.
type RedisLocker struct {
	client redis.UniversalClient
	ttl    time.Duration
	retry  time.Duration
	prefix string
}

func NewRedisLocker(client redis.UniversalClient, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisLocker{
		client: client,
		ttl:    ttl,
		retry:  25 * time.Millisecond,
		prefix: "lock:",
	}
}

func (l *RedisLocker) Acquire(ctx context.Context, keys ...string) (func(), error) {
	keys = normalize(keys)
	token := ulid.Make().String()
	held := make([]string, 0, len(keys))

	releaseAll := func() {
		// Release must succeed even if the caller's ctx is already done
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		for i := len(held) - 1; i >= 0; i-- {
			releaseScript.Run(rctx, l.client, []string{held[i]}, token)
		}
	}

	for _, key := range keys {
		full := l.prefix + key
		if err := l.lock(ctx, full, token); err != nil {
			releaseAll()
			return nil, err
		}
		held = append(held, full)
	}

	var once sync.Once
	return func() { once.Do(releaseAll) }, nil
}

func (l *RedisLocker) lock(ctx context.Context, key, token string) error {
	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}
		if ok {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", xerrors.ErrLockTimeout, ctx.Err())
		case <-ticker.C:
		}
	}
}
