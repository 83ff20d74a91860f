package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultIdempotencyTTL = 24 * time.Hour

// IdempotencyStore remembers which task a create request produced so a
// retried request with the same Idempotency-Key returns it instead of
// inserting a duplicate.
// Key format: idempotency:task:<user_id>:<key>
type IdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewIdempotencyStore wraps client. Keys expire after ttl (24h when zero).
func NewIdempotencyStore(client *redis.Client, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	return &IdempotencyStore{client: client, ttl: ttl}
}

// Lookup returns the task id recorded for key, if any.
func (s *IdempotencyStore) Lookup(ctx context.Context, userID int64, key string) (int64, bool, error) {
	v, err := s.client.Get(ctx, idempotencyKey(userID, key)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("idempotency lookup: %w", err)
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("idempotency value %q: %w", v, err)
	}
	return id, true, nil
}

// Claim binds key to taskID with SETNX and returns the task id that owns the
// key afterwards: taskID when this call won, the earlier task otherwise.
func (s *IdempotencyStore) Claim(ctx context.Context, userID int64, key string, taskID int64) (int64, error) {
	k := idempotencyKey(userID, key)
	for range 2 {
		won, err := s.client.SetNX(ctx, k, taskID, s.ttl).Result()
		if err != nil {
			return 0, fmt.Errorf("idempotency claim: %w", err)
		}
		if won {
			return taskID, nil
		}
		owner, found, err := s.Lookup(ctx, userID, key)
		if err != nil {
			return 0, err
		}
		if found {
			return owner, nil
		}
		// The key expired between SETNX and GET; try once more.
	}
	return 0, fmt.Errorf("idempotency claim: key %q keeps expiring", k)
}

// Forget releases key, e.g. after the insert it was claimed for rolled back.
func (s *IdempotencyStore) Forget(ctx context.Context, userID int64, key string) error {
	if err := s.client.Del(ctx, idempotencyKey(userID, key)).Err(); err != nil {
		return fmt.Errorf("idempotency forget: %w", err)
	}
	return nil
}

// Ping reports whether Redis is reachable.
func (s *IdempotencyStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Keys are scoped per user so two callers can reuse the same header value.
func idempotencyKey(userID int64, key string) string {
	return fmt.Sprintf("idempotency:task:%d:%s", userID, key)
}
