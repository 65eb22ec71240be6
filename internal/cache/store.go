package cache

import (
	"context"
	"errors"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
)

// Store is a byte-oriented key/value cache with per-key TTL.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// NewStore returns a Redis-backed store when rdb is set and an in-process LRU
// otherwise.
func NewStore(rdb *redis.Client) Store {
	if rdb != nil {
		return &RedisStore{rdb: rdb}
	}
	return NewLocalStore(1000)
}

// RedisStore keeps entries in Redis.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore wraps an existing client.
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.rdb.Set(ctx, key, value, ttl).Err()
}

func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.rdb.Del(ctx, keys...).Err()
}

type localEntry struct {
	data      []byte
	expiresAt time.Time
}

// LocalStore is a bounded in-process cache used when Redis is not configured.
// Entries are only visible to the current process.
type LocalStore struct {
	lru *lru.Cache[string, localEntry]
	now func() time.Time
}

// NewLocalStore creates a LocalStore holding at most size entries.
func NewLocalStore(size int) *LocalStore {
	l, err := lru.New[string, localEntry](size)
	if err != nil {
		// Only fails for a non-positive size.
		l, _ = lru.New[string, localEntry](1)
	}
	return &LocalStore{lru: l, now: time.Now}
}

func (s *LocalStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	entry, ok := s.lru.Get(key)
	if !ok {
		return nil, false, nil
	}
	if s.now().After(entry.expiresAt) {
		s.lru.Remove(key)
		return nil, false, nil
	}
	return entry.data, true, nil
}

func (s *LocalStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.lru.Add(key, localEntry{data: value, expiresAt: s.now().Add(ttl)})
	return nil
}

func (s *LocalStore) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		s.lru.Remove(key)
	}
	return nil
}
