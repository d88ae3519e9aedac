// Package idempotency guards non-idempotent requests with client-supplied
// keys. A key is claimed before the request runs and released again when
// the request fails, so only successful requests block their retries.
package idempotency

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "inventory:idempotency:"

// Store claims keys for a bounded time.
type Store interface {
	// Claim returns true if key was not held and is now held for ttl.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Release frees key so the request may be retried.
	Release(ctx context.Context, key string) error
}

// RedisStore keeps claims in Redis so every instance sees them.
type RedisStore struct {
	client    redis.Cmdable
	keyPrefix string
}

// NewRedisStore creates a store on an existing client
func NewRedisStore(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client, keyPrefix: defaultKeyPrefix}
}

// Claim uses SET NX with a TTL, so claim and expiry are one atomic step.
func (s *RedisStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.keyPrefix+key, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim idempotency key: %w", err)
	}
	return ok, nil
}

// Release deletes the key
func (s *RedisStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to release idempotency key: %w", err)
	}
	return nil
}

// Health returns the health status of Redis
func (s *RedisStore) Health(ctx context.Context) map[string]string {
	status := map[string]string{"status": "up"}

	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	if err := s.client.Ping(ctx).Err(); err != nil {
		status["status"] = "down"
		status["error"] = err.Error()
	}
	return status
}

// MemoryStore keeps claims in process memory. Expired keys are dropped
// lazily on the next claim of the same key.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Claim implements Store
func (s *MemoryStore) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if expiresAt, held := s.entries[key]; held && s.now().Before(expiresAt) {
		return false, nil
	}
	s.entries[key] = s.now().Add(ttl)
	return true, nil
}

// Release implements Store
func (s *MemoryStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}
