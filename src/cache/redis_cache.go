package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"www.github.com/Wanderer0074348/MokabuLens/src/config"
)

const connectTimeout = 5 * time.Second

// RedisCache owns the shared Redis connection. The OAuth state store and the
// health check both run on it.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(cfg *config.RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return &RedisCache{
		client: client,
	}, nil
}

// Ping reports whether Redis is reachable.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// GetClient returns the underlying Redis client for direct access
func (c *RedisCache) GetClient() *redis.Client {
	return c.client
}
