package datastore

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/XavierBriggs/fortuna/services/carviz/pkg/models"
	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is read when a redis:// source names no key
const DefaultRedisKey = "carviz:dataset"

// RedisSource reads a JSON array of records stored under one key
type RedisSource struct {
	client *redis.Client
	key    string
	owned  bool
}

// NewRedisSource reads key through an existing client
func NewRedisSource(client *redis.Client, key string) *RedisSource {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisSource{client: client, key: key}
}

// NewRedisSourceFromURL parses redis://[:password@]host:port/db?key=name
func NewRedisSourceFromURL(rawURL string) (*RedisSource, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis source: %w", err)
	}
	key := u.Query().Get("key")
	q := u.Query()
	q.Del("key")
	u.RawQuery = q.Encode()

	opts, err := redis.ParseURL(u.String())
	if err != nil {
		return nil, fmt.Errorf("invalid redis source: %w", err)
	}

	s := NewRedisSource(redis.NewClient(opts), key)
	s.owned = true
	return s, nil
}

func (s *RedisSource) Name() string {
	return "redis:" + s.key
}

// Key returns the Redis key holding the dataset
func (s *RedisSource) Key() string {
	return s.key
}

func (s *RedisSource) Records(ctx context.Context) ([]models.CarRecord, error) {
	if s.owned {
		defer s.client.Close()
	}

	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, unreachable(fmt.Errorf("key %q not found", s.key))
		}
		return nil, unreachable(err)
	}
	return Decode(data, FormatJSON)
}
