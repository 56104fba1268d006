//go:build integration
// +build integration

package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// Requires a running Redis; REDIS_URL defaults to localhost
func TestDatasetCache_RoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_URL")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}

	c := NewDatasetCache(client, "carviz-test", time.Minute)
	defer c.Invalidate(ctx, "src")

	if _, ok, err := c.Get(ctx, "src"); err != nil || ok {
		t.Fatalf("expected clean miss, got ok=%v err=%v", ok, err)
	}
	if err := c.Put(ctx, "src", []byte(`[]`)); err != nil {
		t.Fatalf("put: %v", err)
	}
	data, ok, err := c.Get(ctx, "src")
	if err != nil || !ok || string(data) != "[]" {
		t.Fatalf("expected hit, got %q ok=%v err=%v", data, ok, err)
	}
	ttl := client.TTL(ctx, c.Key("src")).Val()
	if ttl <= 0 || ttl > time.Minute {
		t.Errorf("unexpected TTL %v", ttl)
	}
}
