package database

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"
	"github.com/tieubaoca/tables-retriever/config"
	"github.com/tieubaoca/tables-retriever/types"
)

// NewRedisClient connects to cfg.Addr and pings it.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// QueryCache stores answered queries in Redis, keyed by source and query.
type QueryCache struct {
	redis     *goredis.Client
	ttl       time.Duration
	keyPrefix string
}

func NewQueryCache(redis *goredis.Client, ttl time.Duration, keyPrefix string) *QueryCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if keyPrefix == "" {
		keyPrefix = "tables:query:"
	}
	return &QueryCache{
		redis:     redis,
		ttl:       ttl,
		keyPrefix: keyPrefix,
	}
}

func (c *QueryCache) key(source, query string) string {
	hash := sha256.Sum256([]byte(source + "\x00" + query))
	return c.keyPrefix + hex.EncodeToString(hash[:])
}

// Get returns nil, nil on a miss.
func (c *QueryCache) Get(ctx context.Context, source, query string) (*types.QueryResponse, error) {
	key := c.key(source, query)
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			logger.Debugw("cache miss", "key", key)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get from cache: %w", err)
	}

	var res types.QueryResponse
	if err := json.Unmarshal(data, &res); err != nil {
		logger.Warnw("dropping corrupt cache entry", "error", err.Error(), "key", key)
		_ = c.redis.Del(ctx, key).Err()
		return nil, nil
	}
	logger.Debugw("cache hit", "key", key)
	return &res, nil
}

func (c *QueryCache) Set(ctx context.Context, source, query string, res *types.QueryResponse) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}
	if err := c.redis.Set(ctx, c.key(source, query), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}
	return nil
}

// Clear deletes every key under the prefix and returns how many went.
func (c *QueryCache) Clear(ctx context.Context) (int, error) {
	iter := c.redis.Scan(ctx, 0, c.keyPrefix+"*", 0).Iterator()
	deleted := 0
	for iter.Next(ctx) {
		if err := c.redis.Del(ctx, iter.Val()).Err(); err != nil {
			logger.Warnw("failed to delete cache key", "error", err.Error(), "key", iter.Val())
			continue
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		return deleted, err
	}
	return deleted, nil
}
