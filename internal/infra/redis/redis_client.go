package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"mindfulbot/internal/config"
)

// Nil is returned by Load when the key does not exist.
const Nil = redis.Nil

// RedisClient is the narrow command set the conversation store, the
// limiter and the conversation lock need.
type RedisClient interface {
	Ping(ctx context.Context) error
	Load(ctx context.Context, key string) ([]byte, error)
	// Store writes value and (re)starts its TTL.
	Store(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Remove reports whether the key existed.
	Remove(ctx context.Context, key string) (bool, error)
	// Hit increments a window counter, starting the window on the first hit.
	Hit(ctx context.Context, key string, window time.Duration) (int64, error)
	// Acquire sets key to token only when key is absent.
	Acquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	// Release deletes key only while it still holds token.
	Release(ctx context.Context, key, token string) (bool, error)
	Close() error
}

var _ RedisClient = (*redClient)(nil)

type redClient struct {
	cli *redis.Client
}

// NewClient dials Redis and fails fast when the server is unreachable.
func NewClient(ctx context.Context, cfg *config.RedisConfig) (*redClient, error) {
	c := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.Addr, err)
	}
	return &redClient{cli: c}, nil
}

func (c *redClient) Ping(ctx context.Context) error { return c.cli.Ping(ctx).Err() }

func (c *redClient) Load(ctx context.Context, key string) ([]byte, error) {
	return c.cli.Get(ctx, key).Bytes()
}

func (c *redClient) Store(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.cli.Set(ctx, key, value, ttl).Err()
}

func (c *redClient) Remove(ctx context.Context, key string) (bool, error) {
	n, err := c.cli.Del(ctx, key).Result()
	return n > 0, err
}

func (c *redClient) Hit(ctx context.Context, key string, window time.Duration) (int64, error) {
	n, err := c.cli.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if n == 1 {
		if err := c.cli.Expire(ctx, key, window).Err(); err != nil {
			return 0, err
		}
	}
	return n, nil
}

func (c *redClient) Acquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	return c.cli.SetNX(ctx, key, token, ttl).Result()
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`)

func (c *redClient) Release(ctx context.Context, key, token string) (bool, error) {
	n, err := releaseScript.Run(ctx, c.cli, []string{key}, token).Int64()
	return n > 0, err
}

func (c *redClient) Close() error { return c.cli.Close() }
