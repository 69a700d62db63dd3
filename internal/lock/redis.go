package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only while it still holds our token, so a
// lease that expired and was taken over is never released by the old owner.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisOptions tunes the lease behaviour.
type RedisOptions struct {
	Prefix       string
	TTL          time.Duration
	PollInterval time.Duration
	Logger       *slog.Logger
}

// Redis is a lease-based distributed lock shared by every service instance
// pointed at the same Redis.
type Redis struct {
	client       redis.UniversalClient
	prefix       string
	ttl          time.Duration
	pollInterval time.Duration
	logger       *slog.Logger
}

var _ Locker = (*Redis)(nil)

// NewRedis constructs a Redis locker.
func NewRedis(client redis.UniversalClient, opts RedisOptions) *Redis {
	if opts.Prefix == "" {
		opts.Prefix = "roombooking:lock:"
	}
	if opts.TTL <= 0 {
		opts.TTL = 10 * time.Second
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 25 * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return &Redis{
		client:       client,
		prefix:       opts.Prefix,
		ttl:          opts.TTL,
		pollInterval: opts.PollInterval,
		logger:       opts.Logger,
	}
}

func (r *Redis) key(name string) string {
	return r.prefix + name
}

// Acquire polls SET NX until the lease is granted or ctx is done.
func (r *Redis) Acquire(ctx context.Context, name string) (func(), error) {
	key := r.key(name)
	token := uuid.NewString()

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("lock: acquire %s: %w", key, err)
		}
		if ok {
			return r.releaser(key, token), nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %v", ErrNotAcquired, key, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (r *Redis) releaser(key, token string) func() {
	var once sync.Once
	return func() {
		once.Do(func() { r.release(key, token) })
	}
}

func (r *Redis) release(key, token string) {
	// Release with a fresh context; the caller's may already be cancelled.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	deleted, err := releaseScript.Run(ctx, r.client, []string{key}, token).Int()
	if err != nil {
		r.logger.Warn("lock release failed", "key", key, "error", err)
		return
	}
	if deleted == 0 {
		r.logger.Warn("lock lease expired before release", "key", key, "ttl", r.ttl)
	}
}
