package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/reelqueue/platform/pkg/common/config"
	"github.com/reelqueue/platform/pkg/common/logger"
)

const redisDialTimeout = 5 * time.Second

var (
	redisClient *redis.Client
	redisErr    error
	redisOnce   sync.Once
)

func redisOptions(cfg *config.Config) *redis.Options {
	return &redis.Options{
		Addr:         fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  redisDialTimeout,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// GetRedis returns the shared client. Row claims cannot work without it, so an
// unreachable server is returned as an error instead of being deferred to first use.
func GetRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	redisOnce.Do(func() {
		client := redis.NewClient(redisOptions(cfg))

		pingCtx, cancel := context.WithTimeout(ctx, redisDialTimeout)
		defer cancel()

		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			redisErr = fmt.Errorf("connect to redis at %s: %w", client.Options().Addr, err)
			logger.Log.WithError(err).Error("Failed to connect to Redis")
			return
		}
		redisClient = client
		logger.Log.WithField("addr", client.Options().Addr).Info("Connected to Redis")
	})

	return redisClient, redisErr
}

func CloseRedis() error {
	if redisClient != nil {
		return redisClient.Close()
	}
	return nil
}
