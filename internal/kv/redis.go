package kv

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dengue-gen/denguegen-backend/internal/metrics"
)

const scanBatch = 200

// RedisStore stores each key as a plain redis string without expiry.
type RedisStore struct {
	client redis.UniversalClient
	// root is prepended to every key so the store can share a redis db.
	root string
}

func NewRedisStore(client redis.UniversalClient, root string) *RedisStore {
	return &RedisStore{client: client, root: root}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	defer observe("redis", "get", time.Now())
	val, err := s.client.Get(ctx, s.root+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	defer observe("redis", "set", time.Now())
	return s.client.Set(ctx, s.root+key, value, 0).Err()
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	defer observe("redis", "delete", time.Now())
	return s.client.Del(ctx, s.root+key).Err()
}

func (s *RedisStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	defer observe("redis", "keys", time.Now())
	var keys []string
	iter := s.client.Scan(ctx, 0, escapeGlob(s.root+prefix)+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), s.root))
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// escapeGlob quotes the characters redis MATCH treats as patterns.
func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func observe(backend, op string, start time.Time) {
	metrics.KvLatency.WithLabelValues(backend, op).Observe(time.Since(start).Seconds())
}
