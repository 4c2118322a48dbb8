package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// Cache is a thin JSON cache over redis, used for per-vehicle baseline
// tables. A Cache with a nil client is valid and behaves as a permanent miss,
// so the engine works unchanged when redis is not deployed.
type Cache struct {
	client *redis.Client
}

// Connect dials redis using the REDIS_ADDR environment variable. An empty
// address disables caching.
func Connect() (*Cache, error) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return &Cache{}, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	log.WithField("addr", addr).Info("Connected to redis")
	return &Cache{client: client}, nil
}

// Available reports whether a redis client is wired.
func (c *Cache) Available() bool {
	return c.client != nil
}

// Get unmarshals the cached value into dest. The second return reports a hit.
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if c.client == nil {
		return false, nil
	}
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(val), dest); err != nil {
		return false, err
	}
	return true, nil
}

// Set stores the value as JSON with the given TTL.
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if c.client == nil {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, ttl).Err()
}

// Delete removes a key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if c.client == nil {
		return nil
	}
	return c.client.Del(ctx, key).Err()
}
