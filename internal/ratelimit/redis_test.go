// SPDX-License-Identifier: MIT

package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := newRedisStore(client, "")
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestRedisStoreSlidingWindow(t *testing.T) {
	s, mr := setupRedisStore(t)
	clock := newFakeClock()
	l := New(s, Settings{Enabled: true, Limit: 3, Window: time.Minute}, WithClock(clock.Now))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.True(t, l.Admit(ctx, "10.0.0.1").Allowed)
		clock.Advance(10 * time.Second)
	}
	d := l.Admit(ctx, "10.0.0.1")
	assert.False(t, d.Allowed)
	assert.Equal(t, 30*time.Second, d.RetryAfter)

	members, err := mr.ZMembers("saytube:ratelimit:10.0.0.1")
	require.NoError(t, err)
	assert.Len(t, members, 3)
	assert.True(t, mr.TTL("saytube:ratelimit:10.0.0.1") > 0)

	clock.Advance(30 * time.Second)
	assert.True(t, l.Admit(ctx, "10.0.0.1").Allowed)
}

func TestNewRedisStorePings(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	s, err := NewRedisStore(context.Background(), RedisConfig{Addr: addr})
	require.NoError(t, err)
	require.NoError(t, s.Ping(context.Background()))
	require.NoError(t, s.Close())

	mr.Close()
	_, err = NewRedisStore(context.Background(), RedisConfig{Addr: addr})
	assert.Error(t, err)
}

func TestRedisStoreFailureFailsOpen(t *testing.T) {
	s, mr := setupRedisStore(t)
	l := New(s, Settings{Enabled: true, Limit: 1, Window: time.Minute})
	mr.Close()
	assert.True(t, l.Admit(context.Background(), "c").Allowed)
	assert.True(t, l.Admit(context.Background(), "c").Allowed)
}
