// Package cache provides a redis read-through cache for web lookups.
package cache

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ebahrami/underthreat/config"
)

// Cache stores raw response bodies keyed by lookup URL. It is best-effort:
// a redis failure means a miss, never an error for the caller.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *log.Logger
}

// New connects to redis and verifies the connection.
func New(ctx context.Context, cfg config.CacheConfig) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cache{
		client: client,
		ttl:    ttl,
		logger: log.New(os.Stdout, "[CACHE] ", log.LstdFlags),
	}, nil
}

// Get returns the cached body for key, or (nil, false) on a miss.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.logger.Printf("get %s: %v", key, err)
		return nil, false
	}
	return data, true
}

// Set stores the body for key with the configured TTL.
func (c *Cache) Set(ctx context.Context, key string, body []byte) {
	if c == nil {
		return
	}
	if err := c.client.Set(ctx, key, body, c.ttl).Err(); err != nil {
		c.logger.Printf("set %s: %v", key, err)
	}
}

// Close releases the redis client.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
