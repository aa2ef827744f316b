package db

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dengue-gen/denguegen-backend/internal/logger"
)

// NewRedisClient connects and pings. The client is shared by the kv store and
// the websocket pub/sub.
func NewRedisClient(log *logger.Logger, address, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		log.Error("Redis ping failed", "address", address, "error", err)
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	log.Info("Successfully Connected to Redis :)", "address", address)
	return rdb, nil
}
