package drivers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/creastat/chatcontext/session"
)

const (
	// Redis key prefix for sessions
	sessionKeyPrefix = "session:"
	// Default TTL for session keys (24 hours)
	defaultTTL = 24 * time.Hour
)

// RedisStore implements session.Store using Redis with optimistic locking.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisStore creates a new Redis-based session store.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisStore{
		client: client,
		ttl:    ttl,
		prefix: sessionKeyPrefix,
	}
}

// Create implements session.Store.
// The key is written with SETNX so an existing conversation is never
// overwritten.
func (s *RedisStore) Create(ctx context.Context, data *session.SessionData) error {
	now := time.Now()
	data.CreatedAt = now
	data.UpdatedAt = now
	data.Version = 1

	val, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	ok, err := s.client.SetNX(ctx, s.key(data.ID), val, s.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return session.ErrAlreadyExists
	}
	return nil
}

// Get implements session.Store.
// Refreshes TTL on every read.
func (s *RedisStore) Get(ctx context.Context, id string) (*session.SessionData, error) {
	key := s.key(id)
	val, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var data session.SessionData
	if err := json.Unmarshal(val, &data); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", id, err)
	}

	// TTL refresh is best effort; the read already succeeded.
	_ = s.client.Expire(ctx, key, s.ttl).Err()

	return &data, nil
}

// Update implements session.Store using WATCH/MULTI/EXEC.
func (s *RedisStore) Update(ctx context.Context, data *session.SessionData) error {
	key := s.key(data.ID)

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		val, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return session.ErrNotFound
		}
		if err != nil {
			return err
		}

		var stored session.SessionData
		if err := json.Unmarshal(val, &stored); err != nil {
			return fmt.Errorf("failed to decode session %s: %w", data.ID, err)
		}
		if stored.Version != data.Version {
			return session.ErrVersionConflict
		}

		next := data.Clone()
		next.Version++
		next.UpdatedAt = time.Now()

		newVal, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("failed to encode session: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, newVal, s.ttl)
			return nil
		})
		if err != nil {
			return err
		}

		data.Version = next.Version
		data.UpdatedAt = next.UpdatedAt
		return nil
	}, key)

	// A concurrent write between WATCH and EXEC aborts the transaction.
	if errors.Is(err, redis.TxFailedErr) {
		return session.ErrVersionConflict
	}
	return err
}

// Delete implements session.Store.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, s.key(id)).Err()
}

// Close implements session.Store.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// key constructs the Redis key for a session ID.
func (s *RedisStore) key(id string) string {
	return s.prefix + id
}

var _ session.Store = (*RedisStore)(nil)
