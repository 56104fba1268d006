package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL keeps a fetched dataset around for a day
const DefaultTTL = 24 * time.Hour

// DatasetCache stores raw dataset payloads in Redis so restarts don't refetch
// remote sources
type DatasetCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewDatasetCache creates a new dataset cache
func NewDatasetCache(client *redis.Client, prefix string, ttl time.Duration) *DatasetCache {
	if prefix == "" {
		prefix = "carviz"
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &DatasetCache{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

// Key returns the Redis key for a source name
func (c *DatasetCache) Key(source string) string {
	sum := sha1.Sum([]byte(source))
	return fmt.Sprintf("%s:dataset:%s:raw", c.prefix, hex.EncodeToString(sum[:8]))
}

// Get returns the cached payload for source, if present
func (c *DatasetCache) Get(ctx context.Context, source string) ([]byte, bool, error) {
	data, err := c.client.Get(ctx, c.Key(source)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("reading dataset cache: %w", err)
	}
	return data, true, nil
}

// Put stores the payload for source with the configured TTL
func (c *DatasetCache) Put(ctx context.Context, source string, data []byte) error {
	if err := c.client.Set(ctx, c.Key(source), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("writing dataset cache: %w", err)
	}
	return nil
}

// Invalidate drops the cached payload for source
func (c *DatasetCache) Invalidate(ctx context.Context, source string) error {
	return c.client.Del(ctx, c.Key(source)).Err()
}

// TTL returns the expiry applied to new entries
func (c *DatasetCache) TTL() time.Duration {
	return c.ttl
}
