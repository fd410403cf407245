package store

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const snapshotTTL = 2 * time.Hour

// RedisSnapshotCache keeps the last-seen snapshot of each room in Redis.
type RedisSnapshotCache struct {
	client *redis.Client
}

func NewRedisSnapshotCache(client *redis.Client) *RedisSnapshotCache {
	return &RedisSnapshotCache{client: client}
}

func snapshotKey(code string) string {
	return "room:" + strings.ToUpper(code) + ":snapshot"
}

func (c *RedisSnapshotCache) Swap(ctx context.Context, code string, data []byte) ([]byte, error) {
	prev, err := c.client.SetArgs(ctx, snapshotKey(code), data, redis.SetArgs{
		Get: true,
		TTL: snapshotTTL,
	}).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("swap snapshot for %s: %w", code, err)
	}
	return []byte(prev), nil
}

// MemorySnapshotCache is a process-local SnapshotCache.
type MemorySnapshotCache struct {
	mu    sync.Mutex
	items map[string][]byte
}

func NewMemorySnapshotCache() *MemorySnapshotCache {
	return &MemorySnapshotCache{items: make(map[string][]byte)}
}

func (c *MemorySnapshotCache) Swap(ctx context.Context, code string, data []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := snapshotKey(code)
	prev := c.items[key]
	c.items[key] = append([]byte(nil), data...)
	return prev, nil
}
