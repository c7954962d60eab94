package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/thetaxjournal/accountsvedartha/internal/shared"
)

// ErrIdempotencyConflict indicates a duplicate key.
var ErrIdempotencyConflict = errors.New("idempotent request already processed")

// IdempotencyStore remembers processed request keys per module until they expire.
type IdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewIdempotencyStore constructs the store. Keys live for ttl, 24h when ttl is not positive.
func NewIdempotencyStore(client *redis.Client, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &IdempotencyStore{client: client, ttl: ttl}
}

// Claim records key for module. Replaying a key fails with ErrIdempotencyConflict,
// which also matches shared.ErrConcurrency.
func (s *IdempotencyStore) Claim(ctx context.Context, key, module string) error {
	if err := checkKey(s, key, module); err != nil {
		return err
	}
	ok, err := s.client.SetNX(ctx, idempotencyKey(key, module), time.Now().UTC().Format(time.RFC3339), s.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s: %w: %w", module, ErrIdempotencyConflict, shared.ErrConcurrency)
	}
	return nil
}

// Release removes a key, typically used to roll back failed processing.
func (s *IdempotencyStore) Release(ctx context.Context, key, module string) error {
	if err := checkKey(s, key, module); err != nil {
		return err
	}
	return s.client.Del(ctx, idempotencyKey(key, module)).Err()
}

func checkKey(s *IdempotencyStore, key, module string) error {
	if s == nil || s.client == nil {
		return errors.New("idempotency store not initialised")
	}
	if key == "" {
		return errors.New("idempotency key required")
	}
	if module == "" {
		return errors.New("idempotency module required")
	}
	return nil
}

func idempotencyKey(key, module string) string {
	return "vedartha:idem:" + module + ":" + key
}
