package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bobmcallan/digest/internal/common"
	"github.com/bobmcallan/digest/internal/interfaces"
)

// Redis is a shared cache for several digest processes on one host
type Redis struct {
	rdb    *redis.Client
	prefix string
	logger *common.Logger
}

// NewRedis connects to Redis and verifies the connection
func NewRedis(cfg common.CacheConfig, logger *common.Logger) (*Redis, error) {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.RedisAddr, err)
	}

	logger.Info().Str("addr", cfg.RedisAddr).Int("db", cfg.RedisDB).Msg("Redis cache connected")
	return &Redis{rdb: rdb, prefix: cfg.KeyPrefix, logger: logger}, nil
}

// Get decodes the cached value into dest
func (r *Redis) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := r.rdb.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("failed to decode cached %s: %w", key, err)
	}
	return true, nil
}

// Set stores value for ttl
func (r *Redis) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return r.rdb.Set(ctx, r.prefix+key, data, ttl).Err()
}

// Close closes the Redis connection
func (r *Redis) Close() error {
	return r.rdb.Close()
}

var _ interfaces.Cache = (*Redis)(nil)
