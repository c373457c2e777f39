package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store handles the gateway's Redis operations: rate counters, the
// token revocation list, and the enriched-profile cache. Every method
// is a single atomic command or pipeline; no state is held between
// calls.
type Store struct {
	client *redis.Client
}

// NewStore creates a new Redis store
func NewStore(client *redis.Client) *Store {
	return &Store{
		client: client,
	}
}

// IncrWithTTL increments the fixed-window counter for (category,
// identity) and returns the post-increment count and the remaining
// window. A fresh counter gets an expiry of window; an existing one
// keeps its expiry, so the window is anchored at the first request.
func (s *Store) IncrWithTTL(ctx context.Context, category, identity string, window time.Duration) (int64, time.Duration, error) {
	key := RateLimitKey(category, identity)

	pipe := s.client.Pipeline()
	incrCmd := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, window)
	ttlCmd := pipe.TTL(ctx, key)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, fmt.Errorf("failed to increment rate counter: %w", err)
	}

	ttl := ttlCmd.Val()
	if ttl < 0 {
		// Key had no expiry despite ExpireNX; treat as a full window.
		ttl = window
	}
	return incrCmd.Val(), ttl, nil
}

// IsBlacklisted reports whether a token ID is on the revocation list.
// The list is written by the user service on logout/revocation; the
// gateway only reads it.
func (s *Store) IsBlacklisted(ctx context.Context, tokenID string) (bool, error) {
	err := s.client.Get(ctx, BlacklistKey(tokenID)).Err()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check token blacklist: %w", err)
	}
	return true, nil
}

// GetCachedProfile retrieves a cached enriched profile by user ID.
// A cache miss returns (nil, nil).
func (s *Store) GetCachedProfile(ctx context.Context, userID string) ([]byte, error) {
	data, err := s.client.Get(ctx, ProfileKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get cached profile: %w", err)
	}
	return data, nil
}

// CacheProfile stores an enriched profile with a short TTL to bound
// staleness.
func (s *Store) CacheProfile(ctx context.Context, userID string, data []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, ProfileKey(userID), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache profile: %w", err)
	}
	return nil
}

// InvalidateProfile removes a cached profile.
func (s *Store) InvalidateProfile(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, ProfileKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate profile: %w", err)
	}
	return nil
}
