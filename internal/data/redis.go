package data

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/roguepikachu/nibb/internal/config"
)

// NewRedisClient creates a Redis client for NIBB_REDIS_ADDR and pings it.
func NewRedisClient(ctx context.Context, conf config.Config) (*redis.Client, error) {
	addr := conf.RedisAddr
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   conf.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", addr, err)
	}
	return client, nil
}
