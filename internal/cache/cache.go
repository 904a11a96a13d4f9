// Package cache fronts Redis for the sync advisory lock and the cached
// full data payload.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	syncLockKey = "atelier:sync:lock"
	fullDataKey = "atelier:cache:fulldata"
)

type Cache struct {
	client  *redis.Client
	lockTTL time.Duration
	dataTTL time.Duration
}

// New connects to Redis and verifies the connection before returning.
func New(redisURL string, lockTTL, dataTTL time.Duration) (*Cache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewWithClient(client, lockTTL, dataTTL), nil
}

// NewWithClient wraps an existing Redis client.
func NewWithClient(client *redis.Client, lockTTL, dataTTL time.Duration) *Cache {
	return &Cache{client: client, lockTTL: lockTTL, dataTTL: dataTTL}
}

// AcquireSyncLock takes the advisory sync lock. It returns false when
// another sync holds it. The TTL guards against a crashed holder.
func (c *Cache) AcquireSyncLock(ctx context.Context) (bool, error) {
	ok, err := c.client.SetNX(ctx, syncLockKey, time.Now().UTC().Format(time.RFC3339), c.lockTTL).Result()
	if err != nil {
		return false, fmt.Errorf("acquire sync lock: %w", err)
	}
	return ok, nil
}

func (c *Cache) ReleaseSyncLock(ctx context.Context) error {
	if err := c.client.Del(ctx, syncLockKey).Err(); err != nil {
		return fmt.Errorf("release sync lock: %w", err)
	}
	return nil
}

// GetFullData returns the cached payload, or false on a miss. Redis
// errors count as misses so a cache outage never breaks reads.
func (c *Cache) GetFullData(ctx context.Context) ([]byte, bool) {
	payload, err := c.client.Get(ctx, fullDataKey).Bytes()
	if err != nil {
		return nil, false
	}
	return payload, true
}

func (c *Cache) SetFullData(ctx context.Context, payload []byte) error {
	if err := c.client.Set(ctx, fullDataKey, payload, c.dataTTL).Err(); err != nil {
		return fmt.Errorf("cache full data: %w", err)
	}
	return nil
}

// InvalidateFullData drops the cached payload after any write.
func (c *Cache) InvalidateFullData(ctx context.Context) error {
	if err := c.client.Del(ctx, fullDataKey).Err(); err != nil {
		return fmt.Errorf("invalidate full data: %w", err)
	}
	return nil
}

func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Cache) Close() error {
	return c.client.Close()
}
