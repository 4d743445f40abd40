package cache

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/blake2b"

	"procura/internal/core/apperror"
)

// IdempotencyStatus is the lifecycle of a cached request.
type IdempotencyStatus string

const (
	IdempotencyInProgress IdempotencyStatus = "in_progress"
	IdempotencyCompleted  IdempotencyStatus = "completed"
)

const (
	idempotencyPrefix = "idem:"
	// DefaultInFlightTTL bounds how long a crashed request can hold its key.
	DefaultInFlightTTL = 60 * time.Second
)

// IdempotencyEntry is the value stored under an idempotency key.
type IdempotencyEntry struct {
	Status      IdempotencyStatus `json:"status"`
	Fingerprint string            `json:"fingerprint"`
	StatusCode  int               `json:"status_code,omitempty"`
	ContentType string            `json:"content_type,omitempty"`
	Body        []byte            `json:"body,omitempty"`
	StoredAt    time.Time         `json:"stored_at"`
}

// IdempotencyReplay is a cached response to send back verbatim.
type IdempotencyReplay struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// IdempotencyStore caches mutating responses by client-supplied key.
type IdempotencyStore struct {
	client      redis.UniversalClient
	ttl         time.Duration
	inFlightTTL time.Duration
}

// NewIdempotencyStore creates a store keeping completed responses for ttl.
func NewIdempotencyStore(client redis.UniversalClient, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &IdempotencyStore{
		client:      client,
		ttl:         ttl,
		inFlightTTL: DefaultInFlightTTL,
	}
}

// Fingerprint identifies a request: the same key must always carry the same
// method, path, caller and body.
func Fingerprint(method, path, actor string, body []byte) string {
	h, _ := blake2b.New256(nil)
	for _, part := range []string{method, path, actor} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

func redisKey(actor, key string) string {
	return idempotencyPrefix + actor + ":" + key
}

// Acquire claims key for a new request.
// Returns:
//   - (nil, nil) if the caller should execute the request
//   - (replay, nil) if an identical request already completed
//   - (nil, IDEMPOTENCY_CONFLICT) if the key is in flight or was used for a different request
func (s *IdempotencyStore) Acquire(ctx context.Context, actor, key, fingerprint string) (*IdempotencyReplay, error) {
	provisional, err := json.Marshal(IdempotencyEntry{
		Status:      IdempotencyInProgress,
		Fingerprint: fingerprint,
		StoredAt:    time.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal idempotency entry: %w", err)
	}

	rk := redisKey(actor, key)
	ok, err := s.client.SetNX(ctx, rk, provisional, s.inFlightTTL).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire idempotency key: %w", err)
	}
	if ok {
		return nil, nil
	}

	raw, err := s.client.Get(ctx, rk).Bytes()
	if errors.Is(err, redis.Nil) {
		// Expired between SETNX and GET; the earlier request gave up.
		return nil, apperror.NewIdempotencyConflict(key)
	}
	if err != nil {
		return nil, fmt.Errorf("read idempotency key: %w", err)
	}

	var entry IdempotencyEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("decode idempotency entry: %w", err)
	}

	if entry.Fingerprint != fingerprint {
		return nil, apperror.NewIdempotencyMismatch(key)
	}
	if entry.Status != IdempotencyCompleted {
		return nil, apperror.NewIdempotencyConflict(key)
	}

	return &IdempotencyReplay{
		StatusCode:  entry.StatusCode,
		ContentType: entry.ContentType,
		Body:        entry.Body,
	}, nil
}

// Complete stores the final response for replay.
func (s *IdempotencyStore) Complete(ctx context.Context, actor, key, fingerprint string, resp IdempotencyReplay) error {
	raw, err := json.Marshal(IdempotencyEntry{
		Status:      IdempotencyCompleted,
		Fingerprint: fingerprint,
		StatusCode:  resp.StatusCode,
		ContentType: resp.ContentType,
		Body:        resp.Body,
		StoredAt:    time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal idempotency entry: %w", err)
	}
	if err := s.client.Set(ctx, redisKey(actor, key), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("complete idempotency key: %w", err)
	}
	return nil
}

// Release forgets an in-flight key so the client may retry.
// Used when the request failed for reasons the client cannot have caused.
func (s *IdempotencyStore) Release(ctx context.Context, actor, key string) error {
	if err := s.client.Del(ctx, redisKey(actor, key)).Err(); err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}
