package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Default lease settings for the Redis lock.
const (
	DefaultLeaseTTL     = 30 * time.Second
	DefaultPollInterval = 50 * time.Millisecond
)

// ErrLeaseLost is returned on release when the lease expired or was taken
// over while held, so the guarded section may have overlapped another holder.
var ErrLeaseLost = errors.New("lock lease lost")

// renewScript extends the lease only if this holder still owns it.
var renewScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0
`)

// releaseScript deletes the key only if this holder still owns it.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Redis is a Locker shared by every process pointed at the same Redis key.
type Redis struct {
	client       *redis.Client
	key          string
	ttl          time.Duration
	pollInterval time.Duration
}

// NewRedisClient parses redisURL and verifies connectivity.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL(%q): %w", redisURL, err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return client, nil
}

// NewRedis returns a lock on key. Zero ttl uses DefaultLeaseTTL.
func NewRedis(client *redis.Client, key string, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultLeaseTTL
	}
	return &Redis{
		client:       client,
		key:          key,
		ttl:          ttl,
		pollInterval: DefaultPollInterval,
	}
}

// Acquire implements Locker. The lease is renewed every third of its TTL
// until released, so a long merge keeps the lock.
func (r *Redis) Acquire(ctx context.Context) (Release, error) {
	token := uuid.NewString()
	for {
		ok, err := r.client.SetNX(ctx, r.key, token, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock %s: %w", r.key, err)
		}
		if ok {
			return r.hold(token), nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.pollInterval):
		}
	}
}

// hold starts renewing token's lease and returns its Release.
func (r *Redis) hold(token string) Release {
	stop := make(chan struct{})
	done := make(chan struct{})
	var lost atomic.Bool

	go func() {
		defer close(done)
		ticker := time.NewTicker(r.ttl / 3)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				rctx, cancel := context.WithTimeout(context.Background(), r.ttl/3)
				n, err := renewScript.Run(rctx, r.client, []string{r.key}, token, r.ttl.Milliseconds()).Int()
				cancel()
				if err == nil && n == 0 {
					lost.Store(true)
					return
				}
			}
		}
	}()

	var once sync.Once
	return func(ctx context.Context) error {
		var err error
		once.Do(func() {
			close(stop)
			<-done
			if rerr := releaseScript.Run(ctx, r.client, []string{r.key}, token).Err(); rerr != nil {
				err = fmt.Errorf("failed to release lock %s: %w", r.key, rerr)
				return
			}
			if lost.Load() {
				err = fmt.Errorf("lock %s: %w", r.key, ErrLeaseLost)
			}
		})
		return err
	}
}
