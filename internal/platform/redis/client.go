// Package redis opens the shared Redis connection used to fan push events
// out across instances.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"hatchseed/internal/platform/config"
)

// Client is the process-wide connection. The embedded client is what the
// event relay subscribes and publishes on.
type Client struct {
	*redis.Client
}

// Connect dials Redis and verifies it answers. An empty URL means the
// process runs single-instance and Connect returns nil without error.
func Connect(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout
	// Commands honour the caller's context deadline.
	opts.ContextTimeoutEnabled = true

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Client{Client: client}, nil
}

// Health is the readiness probe for the relay connection.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}
