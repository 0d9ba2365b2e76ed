// Package idempotency replays completed responses for requests that carry an
// Idempotency-Key header.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix  = "idem:"
	pendingTag = "pending"
	// lockTTL bounds how long a crashed request can hold a key.
	lockTTL = 2 * time.Minute
)

var (
	// ErrInProgress is returned when the key is held by an unfinished request.
	ErrInProgress = errors.New("request with this idempotency key is in progress")
	// ErrNotFound is returned when no record exists for the key.
	ErrNotFound = errors.New("idempotency record not found")
)

// Record is a stored response.
type Record struct {
	Fingerprint string `json:"fingerprint"`
	Status      int    `json:"status"`
	ContentType string `json:"contentType"`
	Body        []byte `json:"body"`
}

// Store keeps idempotency records in Redis.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Store{rdb: rdb, ttl: ttl}
}

// Acquire reserves key for a new request. acquired is false when the key is
// already taken; the caller should then Load it.
func (s *Store) Acquire(ctx context.Context, key string) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, keyPrefix+key, pendingTag, lockTTL).Result()
	if err != nil {
		return false, fmt.Errorf("idempotency acquire: %w", err)
	}
	return ok, nil
}

// Load returns the completed record for key, ErrInProgress while the first
// request runs, or ErrNotFound.
func (s *Store) Load(ctx context.Context, key string) (Record, error) {
	raw, err := s.rdb.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("idempotency load: %w", err)
	}
	if string(raw) == pendingTag {
		return Record{}, ErrInProgress
	}

	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Record{}, fmt.Errorf("idempotency decode: %w", err)
	}
	return rec, nil
}

// Complete stores the response for replay.
func (s *Store) Complete(ctx context.Context, key string, rec Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, keyPrefix+key, payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("idempotency complete: %w", err)
	}
	return nil
}

// Release frees a key without storing a response so the client can retry.
func (s *Store) Release(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, keyPrefix+key).Err()
}
