package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRedis struct {
	data map[string]string
	ttls map[string]time.Duration
	err  error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: make(map[string]string), ttls: make(map[string]time.Duration)}
}

func (f *fakeRedis) Exists(_ context.Context, keys ...string) *redis.IntCmd {
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd {
	if f.err != nil {
		return redis.NewStatusResult("", f.err)
	}
	f.data[key] = value.(string)
	f.ttls[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

func TestRedisGuard(t *testing.T) {
	ctx := context.Background()
	store := newFakeRedis()
	g, err := NewRedisGuard(store, "mercadopago", time.Hour)
	require.NoError(t, err)

	seen, err := g.Seen(ctx, "123")
	require.NoError(t, err)
	assert.False(t, seen)
	assert.Empty(t, store.data, "checking does not mark")

	require.NoError(t, g.Mark(ctx, "123"))
	assert.Equal(t, time.Hour, store.ttls["pixstore:idempotency:mercadopago:123"])

	seen, err = g.Seen(ctx, "123")
	require.NoError(t, err)
	assert.True(t, seen)

	_, err = g.Seen(ctx, "")
	assert.Error(t, err)
	assert.Error(t, g.Mark(ctx, ""))

	store.err = errors.New("connection refused")
	_, err = g.Seen(ctx, "456")
	assert.ErrorContains(t, err, "connection refused")
	assert.ErrorContains(t, g.Mark(ctx, "456"), "connection refused")
}

func TestNewRedisGuardValidation(t *testing.T) {
	_, err := NewRedisGuard(nil, "s", time.Hour)
	assert.Error(t, err)
	_, err = NewRedisGuard(newFakeRedis(), "", time.Hour)
	assert.Error(t, err)
	_, err = NewRedisGuard(newFakeRedis(), "s", -time.Second)
	assert.Error(t, err)
}

func TestMemoryGuardExpiresMarks(t *testing.T) {
	ctx := context.Background()
	g := NewMemoryGuard(time.Minute)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return now }

	seen, err := g.Seen(ctx, "a")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, g.Mark(ctx, "a"))
	seen, _ = g.Seen(ctx, "a")
	assert.True(t, seen)

	now = now.Add(2 * time.Minute)
	seen, _ = g.Seen(ctx, "a")
	assert.False(t, seen, "mark older than ttl is ignored")

	_, err = g.Seen(ctx, "")
	assert.Error(t, err)
}
