package database

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"ms-ticket-lifecycle/internal/config"
	"ms-ticket-lifecycle/internal/logger"
)

// ConnectRedis opens the client backing the check-in cache and checks the
// connection with a ping.
func ConnectRedis(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: 10,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Addr, err)
	}

	log.Info("REDIS", fmt.Sprintf("Successfully connected to Redis at %s", cfg.Addr))
	return client, nil
}
