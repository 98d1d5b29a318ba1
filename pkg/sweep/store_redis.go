package sweep

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store using Redis.
// It is designed to work with github.com/redis/go-redis/v9.
//
// All records live in one hash, "<prefix>records", keyed by candidate.
// Load and Save hold a RedisLock on "<prefix>lock" so every process
// sharing the prefix is excluded, not just this one.
type RedisStore struct {
	client *redis.Client
	prefix string // Optional key prefix (e.g., "digitsweep:")
	lock   Locker
}

// NewRedisStore creates a new Redis-backed store.
// The prefix parameter allows namespacing keys to avoid conflicts.
// If prefix is empty, "digitsweep:" is used by default.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "digitsweep:"
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
		lock:   NewRedisLock(client, prefix+"lock", 0),
	}
}

// NewRedisStoreFromURL creates a Redis store from a connection URL.
// Example: "redis://localhost:6379/0" or "redis://:password@localhost:6379/1"
func NewRedisStoreFromURL(url string, prefix string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	return NewRedisStore(client, prefix), nil
}

func (s *RedisStore) Identity() string {
	return "redis:" + s.hashKey()
}

func (s *RedisStore) hashKey() string {
	return s.prefix + "records"
}

func (s *RedisStore) Load(ctx context.Context) (Records, error) {
	records := make(Records)
	err := withLock(ctx, s.lock, s.Identity(), func() error {
		fields, err := s.client.HGetAll(ctx, s.hashKey()).Result()
		if err != nil {
			return &StoreError{Op: "load", Resource: s.Identity(), Cause: err}
		}
		for candidate, raw := range fields {
			rec, err := decodeRecordProto(candidate, []byte(raw))
			if err != nil {
				return &CorruptStoreError{Resource: s.Identity(), Key: candidate, Cause: err}
			}
			records[candidate] = rec
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (s *RedisStore) Save(ctx context.Context, records Records) error {
	if len(records) == 0 {
		return nil
	}
	return withLock(ctx, s.lock, s.Identity(), func() error {
		values := make(map[string]any, len(records))
		for key, rec := range records {
			data, err := encodeRecordProto(rec)
			if err != nil {
				return &StoreError{Op: "save", Resource: s.Identity(), Cause: err}
			}
			values[key] = data
		}
		if err := s.client.HSet(ctx, s.hashKey(), values).Err(); err != nil {
			return &StoreError{Op: "save", Resource: s.Identity(), Cause: err}
		}
		return nil
	})
}

func (s *RedisStore) Merge(ctx context.Context, record ResultRecord) error {
	data, err := encodeRecordProto(record)
	if err != nil {
		return &StoreError{Op: "merge", Resource: s.Identity(), Cause: err}
	}
	return withLock(ctx, s.lock, s.Identity(), func() error {
		if err := s.client.HSet(ctx, s.hashKey(), record.Candidate, data).Err(); err != nil {
			return &StoreError{Op: "merge", Resource: s.Identity(), Cause: err}
		}
		return nil
	})
}

// Ping checks if the Redis connection is alive.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
