// Package redis wraps the dedupe cache in front of webhook processing.
// It is an accelerator only: losing it costs duplicate work, never
// correctness, because the ledger write path is idempotent on its own.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"autorenta-settlement/internal/config"
	"autorenta-settlement/internal/logger"
)

type Client struct {
	rdb       *redis.Client
	keyPrefix string
}

func New(cfg *config.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Connected to Redis", "addr", cfg.Addr)

	return &Client{
		rdb:       rdb,
		keyPrefix: "settlement:",
	}, nil
}

func (c *Client) prefixKey(key string) string {
	return c.keyPrefix + key
}

func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.rdb.Close()
}
