package lease

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"ldn/pkg/metrics"
)

// Lease is a cross-instance mutual exclusion on a named key. A live holder
// keeps its lease until it releases it; a holder that dies loses it after
// ttl.
type Lease interface {
	// Acquire returns ok=false without error when another holder owns key.
	// release must be called once the guarded work is done.
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, ok bool, err error)
}

// releaseScript deletes the key only if it still holds our token, so a
// holder whose lease expired cannot free somebody else's.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// renewScript extends the key only while it still holds our token.
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

type RedisLease struct {
	client *redis.Client
}

func NewRedisLease(client *redis.Client) *RedisLease {
	return &RedisLease{client: client}
}

func (l *RedisLease) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error) {
	token := uuid.New().String()

	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		metrics.IncLeaseAcquisition(key, "error")
		return nil, false, fmt.Errorf("redis SetNX failed: %w", err)
	}
	if !ok {
		metrics.IncLeaseAcquisition(key, "held")
		return nil, false, nil
	}
	metrics.IncLeaseAcquisition(key, "acquired")

	keepCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	go func() {
		defer close(done)
		l.keepAlive(keepCtx, key, token, ttl)
	}()

	var once sync.Once
	release := func(ctx context.Context) error {
		var err error
		once.Do(func() {
			stop()
			<-done
			if rerr := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); rerr != nil {
				err = fmt.Errorf("failed to release lease %s: %w", key, rerr)
			}
		})
		return err
	}
	return release, true, nil
}

// keepAlive extends the lease every third of its ttl until ctx is done or
// the key no longer holds token.
func (l *RedisLease) keepAlive(ctx context.Context, key, token string, ttl time.Duration) {
	ticker := time.NewTicker(ttl / 3)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		renewed, err := renewScript.Run(ctx, l.client, []string{key}, token, ttl.Milliseconds()).Int()
		switch {
		case ctx.Err() != nil:
			return
		case err != nil:
			metrics.IncLeaseAcquisition(key, "renew_error")
		case renewed == 0:
			metrics.IncLeaseAcquisition(key, "lost")
			return
		}
	}
}
