package rediscache

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nichesite/directory/pkg/cache"
)

// Config holds configuration for the Redis cache.
type Config struct {
	Addr     string
	Password string
	DB       int

	// Prefix namespaces every key so Clear only touches this cache.
	Prefix string

	// DefaultTTL applies when Set is called with a non-positive TTL.
	DefaultTTL time.Duration
}

// Cache implements cache.Cache on top of Redis.
type Cache struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration

	hits      atomic.Uint64
	misses    atomic.Uint64
	keysAdded atomic.Uint64
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, config *Config) (*Cache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", config.Addr, err)
	}

	return NewWithClient(rdb, config), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(rdb *redis.Client, config *Config) *Cache {
	return &Cache{
		rdb:    rdb,
		prefix: config.Prefix,
		ttl:    config.DefaultTTL,
	}
}

// Get retrieves a value from cache. Redis errors count as misses.
func (c *Cache) Get(ctx context.Context, key string) (string, bool) {
	value, err := c.rdb.Get(ctx, c.prefix+key).Result()
	if err != nil {
		c.misses.Add(1)
		return "", false
	}
	c.hits.Add(1)
	return value, true
}

// Set stores a value in cache with the specified TTL.
func (c *Cache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.ttl
	}
	if err := c.rdb.Set(ctx, c.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cache key %s: %w", key, err)
	}
	c.keysAdded.Add(1)
	return nil
}

// Delete removes a value from cache.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.rdb.Del(ctx, c.prefix+key).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to delete cache key %s: %w", key, err)
	}
	return nil
}

// Clear removes every key under the prefix.
func (c *Cache) Clear(ctx context.Context) error {
	iter := c.rdb.Scan(ctx, 0, c.prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan cache keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (c *Cache) Close() error {
	return c.rdb.Close()
}

// Metrics returns cache statistics. Evictions are managed by Redis and not counted.
func (c *Cache) Metrics() *cache.Metrics {
	return &cache.Metrics{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		KeysAdded: c.keysAdded.Load(),
	}
}

var _ cache.Cache = (*Cache)(nil)
