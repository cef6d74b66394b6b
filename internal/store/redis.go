// internal/store/redis.go
//
// Redis-backed Store. Records are stored as JSON strings with an optional TTL so
// abandoned sessions expire on their own.

package store

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore wraps a client. Keys are prefixed with prefix; ttl 0 keeps
// records forever.
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) Store {
	return &redisStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *redisStore) Save(ctx context.Context, key string, rec *Record) error {
	b, err := encode(rec)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.prefix+key, b, s.ttl).Err()
}

func (s *redisStore) Load(ctx context.Context, key string) (*Record, error) {
	b, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decode(b)
}

func (s *redisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.prefix+key).Err()
}
