package dedup

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "dedup:event:"

// RedisStore backs the replay window with a shared Redis instance.
// SET NX gives the at-most-one-winner guarantee; Redis handles expiry.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore builds a Redis-backed store.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// Seen implements Store.
func (s *RedisStore) Seen(ctx context.Context, eventID string) (bool, error) {
	inserted, err := s.client.SetNX(ctx, redisKeyPrefix+eventID, "1", s.ttl).Result()
	if err != nil {
		return false, err
	}
	return !inserted, nil
}
