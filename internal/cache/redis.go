package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultRedisPrefix namespaces gateway response keys in Redis.
	DefaultRedisPrefix = "aigate:responses:"

	// DefaultRedisTTL matches the in-memory default entry lifetime.
	DefaultRedisTTL = 5 * time.Minute
)

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	// URL is the Redis connection URL (e.g., "redis://localhost:6379" or "redis://:password@host:6379/0")
	URL string

	// Prefix namespaces the gateway's keys (defaults to "aigate:responses:")
	Prefix string

	// TTL is the time-to-live per cached response (defaults to 5 minutes)
	TTL time.Duration
}

// Redis implements Store backed by Redis, for deployments where multiple
// gateway instances should share one response cache. TTL expiry is native;
// capacity pressure is left to Redis maxmemory eviction rather than the
// per-process LRU bound.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedis creates a new Redis-backed cache store and verifies the connection.
func NewRedis(cfg RedisConfig) (*Redis, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	r := NewRedisWithClient(client, cfg)
	slog.Info("redis response cache connected", "prefix", r.prefix, "ttl", r.ttl)
	return r, nil
}

// NewRedisWithClient creates a Redis store around an existing client.
func NewRedisWithClient(client *redis.Client, cfg RedisConfig) *Redis {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = DefaultRedisTTL
	}
	return &Redis{client: client, prefix: prefix, ttl: ttl}
}

// Get retrieves a cached value from Redis.
func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := r.client.Get(ctx, r.prefix+key).Result()
	if err != nil {
		if err == redis.Nil {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get cached response: %w", err)
	}
	return val, true, nil
}

// Set stores a value in Redis with the configured TTL.
func (r *Redis) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, r.prefix+key, value, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache response: %w", err)
	}
	return nil
}

// Has reports whether a live entry exists.
func (r *Redis) Has(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, r.prefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check cached response: %w", err)
	}
	return n > 0, nil
}

// Delete removes an entry.
func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		return fmt.Errorf("failed to delete cached response: %w", err)
	}
	return nil
}

// Clear removes all entries under the gateway's prefix.
func (r *Redis) Clear(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("failed to clear cache: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan cache keys: %w", err)
	}
	return nil
}

// Len returns the number of live entries under the gateway's prefix.
func (r *Redis) Len(ctx context.Context) (int, error) {
	var n int
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		n++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("failed to scan cache keys: %w", err)
	}
	return n, nil
}

// Close closes the Redis connection.
func (r *Redis) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}
