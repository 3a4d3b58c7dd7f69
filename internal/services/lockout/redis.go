// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package lockout

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix = "auth:lockout:"
	// failureTTL bounds how long unlocked failure counts are remembered.
	failureTTL = 24 * time.Hour
)

// recordFailureLua increments the failure count of KEYS[1] in one step.
// An expired lock starts a fresh count; a running lock keeps its end time.
const recordFailureLua = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local threshold = tonumber(ARGV[2])
local lock_until = tonumber(ARGV[3])
local lock_ttl = tonumber(ARGV[4])
local failure_ttl = tonumber(ARGV[5])

local locked = tonumber(redis.call("HMGET", key, "locked_until")[1])
if locked ~= nil and locked <= now then
  redis.call("DEL", key)
  locked = nil
end

local count = redis.call("HINCRBY", key, "failed_count", 1)
if locked == nil and count >= threshold then
  locked = lock_until
  redis.call("HSET", key, "locked_until", locked)
  redis.call("EXPIRE", key, lock_ttl)
elseif locked == nil then
  redis.call("EXPIRE", key, failure_ttl)
end

return {count, locked or 0}
`

// RedisStore keeps lockout state in Redis hashes.
type RedisStore struct {
	client        *redis.Client
	recordFailure *redis.Script
}

// NewRedisStore creates a lockout store backed by Redis.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client:        client,
		recordFailure: redis.NewScript(recordFailureLua),
	}
}

// Connect parses a redis:// URL and verifies the server is reachable.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (State, error) {
	data, err := s.client.HGetAll(ctx, keyPrefix+key).Result()
	if err != nil {
		return State{}, err
	}
	return parseState(data), nil
}

func (s *RedisStore) RecordFailure(ctx context.Context, key string, now time.Time, threshold int, window time.Duration) (State, error) {
	lockedUntil := now.Add(window).UTC()
	res, err := s.recordFailure.Run(ctx, s.client, []string{keyPrefix + key},
		now.Unix(),
		threshold,
		lockedUntil.Unix(),
		int64((window+failureTTL)/time.Second),
		int64(failureTTL/time.Second),
	).Int64Slice()
	if err != nil {
		return State{}, fmt.Errorf("record failure eval: %w", err)
	}
	if len(res) < 2 {
		return State{}, fmt.Errorf("record failure: unexpected result %v", res)
	}

	state := State{FailedCount: int(res[0])}
	if res[1] > 0 {
		t := time.Unix(res[1], 0).UTC()
		state.LockedUntil = &t
	}
	return state, nil
}

func (s *RedisStore) Clear(ctx context.Context, key string) error {
	return s.client.Del(ctx, keyPrefix+key).Err()
}

func parseState(data map[string]string) State {
	var state State
	if raw, ok := data["failed_count"]; ok {
		if n, err := strconv.Atoi(raw); err == nil {
			state.FailedCount = n
		}
	}
	if raw, ok := data["locked_until"]; ok && raw != "" {
		if unix, err := strconv.ParseInt(raw, 10, 64); err == nil && unix > 0 {
			t := time.Unix(unix, 0).UTC()
			state.LockedUntil = &t
		}
	}
	return state
}

var _ Store = (*RedisStore)(nil)
