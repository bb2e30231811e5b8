package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// addIfAllowedScript prunes, counts, checks, and records in one Lua call.
// Running server-side closes the check-then-act race between concurrent
// clients: at most limit members can ever be admitted per window.
//
// KEYS[1] window zset
// ARGV[1] now in microseconds
// ARGV[2] window in microseconds
// ARGV[3] limit
// ARGV[4] unique member for this request
// ARGV[5] key ttl in milliseconds
var addIfAllowedScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', KEYS[1], 0, now - window)
local count = redis.call('ZCARD', KEYS[1])
if count >= limit then
	return {0, count}
end
redis.call('ZADD', KEYS[1], now, ARGV[4])
redis.call('PEXPIRE', KEYS[1], ARGV[5])
return {1, count + 1}
`)

// RedisStore is a sliding window store backed by a Redis sorted set per
// key. Safe to share across processes.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore creates a Redis-backed store. Keys are namespaced under
// "ratelimit:".
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client, prefix: "ratelimit:"}
}

func (s *RedisStore) AddIfAllowed(ctx context.Context, key string, now time.Time, window time.Duration, limit int) (bool, int64, error) {
	member := strconv.FormatInt(now.UnixMicro(), 10) + ":" + uuid.NewString()
	ttl := window.Milliseconds() + 1000

	res, err := addIfAllowedScript.Run(ctx, s.client, []string{s.prefix + key},
		now.UnixMicro(), window.Microseconds(), limit, member, ttl).Int64Slice()
	if err != nil {
		return false, 0, fmt.Errorf("rate limit script: %w", err)
	}
	if len(res) != 2 {
		return false, 0, fmt.Errorf("rate limit script: unexpected reply %v", res)
	}
	return res[0] == 1, res[1], nil
}

func (s *RedisStore) CountInWindow(ctx context.Context, key string, now time.Time, window time.Duration) (int64, error) {
	cutoff := strconv.FormatInt(now.Add(-window).UnixMicro(), 10)
	count, err := s.client.ZCount(ctx, s.prefix+key, "("+cutoff, "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("rate limit count: %w", err)
	}
	return count, nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("rate limit delete: %w", err)
	}
	return nil
}
