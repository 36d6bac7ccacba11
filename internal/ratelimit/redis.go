// SPDX-License-Identifier: MIT

package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// admitScript prunes, counts and conditionally records in one round trip.
// Scores are milliseconds since the epoch, which Lua numbers carry exactly.
var admitScript = redis.NewScript(`
local key    = KEYS[1]
local now    = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit  = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
local allowed = 0
if count < limit then
	redis.call('ZADD', key, ARGV[1], ARGV[4])
	count = count + 1
	allowed = 1
end
redis.call('PEXPIRE', key, window)

local oldest = now
local first = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
if first[2] then
	oldest = tonumber(first[2])
end
return {allowed, count, oldest}
`)

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// RedisStore keeps window logs in Redis sorted sets so several daemon
// replicas share one table.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects and pings Redis.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		PoolSize:     10,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return newRedisStore(client, cfg.Prefix), nil
}

func newRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "saytube:ratelimit:"
	}
	return &RedisStore{client: client, prefix: prefix}
}

// Name identifies the store in metrics.
func (s *RedisStore) Name() string { return "redis" }

// Admit implements Store.
func (s *RedisStore) Admit(ctx context.Context, key string, now time.Time, window time.Duration, limit int) (StoreResult, error) {
	nowMS := now.UnixMilli()
	member := fmt.Sprintf("%d-%s", nowMS, uuid.NewString())

	vals, err := admitScript.Run(ctx, s.client, []string{s.prefix + key},
		nowMS, window.Milliseconds(), limit, member).Int64Slice()
	if err != nil {
		return StoreResult{}, fmt.Errorf("redis admit: %w", err)
	}
	if len(vals) != 3 {
		return StoreResult{}, fmt.Errorf("redis admit: unexpected reply %v", vals)
	}
	return StoreResult{
		Allowed: vals[0] == 1,
		Count:   int(vals[1]),
		Oldest:  time.UnixMilli(vals[2]),
	}, nil
}

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
