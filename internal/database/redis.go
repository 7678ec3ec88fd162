package database

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/keyxmakerx/briefly/internal/config"
)

// NewRedis creates a Redis client from the given config. It parses the URL
// and pings with the same backoff as MariaDB before returning.
func NewRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ping := func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
	if err := pingWithRetry(ctx, "redis", ping); err != nil {
		client.Close()
		return nil, err
	}

	return client, nil
}
