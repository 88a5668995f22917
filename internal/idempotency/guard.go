// Package idempotency remembers gateway notifications that already reached a
// final outcome so their redeliveries skip the gateway and the ledger.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "pixstore:idempotency"

// Guard records notification ids whose processing is settled. A mark is not a
// lock: concurrent notifications for an unmarked id all proceed.
type Guard interface {
	// Seen reports whether id has been marked.
	Seen(ctx context.Context, id string) (bool, error)
	// Mark records id as settled.
	Mark(ctx context.Context, id string) error
}

type cmdable interface {
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
	Set(ctx context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd
}

// RedisGuard implements Guard with SET + TTL so marks are shared by every replica.
type RedisGuard struct {
	client cmdable
	scope  string
	ttl    time.Duration
}

// NewRedisGuard constructs a Redis-backed guard. A zero ttl keeps marks forever.
func NewRedisGuard(client cmdable, scope string, ttl time.Duration) (*RedisGuard, error) {
	if client == nil {
		return nil, errors.New("redis client required for idempotency guard")
	}
	if scope == "" {
		return nil, errors.New("scope is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &RedisGuard{client: client, scope: scope, ttl: ttl}, nil
}

// Key returns the namespaced redis key for id.
func (g *RedisGuard) Key(id string) string {
	return fmt.Sprintf("%s:%s:%s", keyPrefix, g.scope, id)
}

func (g *RedisGuard) Seen(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, errors.New("id is required")
	}
	n, err := g.client.Exists(ctx, g.Key(id)).Result()
	if err != nil {
		return false, fmt.Errorf("exists: %w", err)
	}
	return n > 0, nil
}

func (g *RedisGuard) Mark(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("id is required")
	}
	if err := g.client.Set(ctx, g.Key(id), time.Now().UTC().Format(time.RFC3339), g.ttl).Err(); err != nil {
		return fmt.Errorf("set: %w", err)
	}
	return nil
}

// MemoryGuard is a process-local Guard used when no redis address is configured.
type MemoryGuard struct {
	mu   sync.Mutex
	seen map[string]time.Time
	ttl  time.Duration
	now  func() time.Time
}

// NewMemoryGuard creates a MemoryGuard. A zero ttl keeps marks forever.
func NewMemoryGuard(ttl time.Duration) *MemoryGuard {
	return &MemoryGuard{seen: make(map[string]time.Time), ttl: ttl, now: time.Now}
}

func (g *MemoryGuard) Seen(_ context.Context, id string) (bool, error) {
	if id == "" {
		return false, errors.New("id is required")
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	at, ok := g.seen[id]
	if !ok {
		return false, nil
	}
	if g.ttl > 0 && g.now().Sub(at) >= g.ttl {
		delete(g.seen, id)
		return false, nil
	}
	return true, nil
}

func (g *MemoryGuard) Mark(_ context.Context, id string) error {
	if id == "" {
		return errors.New("id is required")
	}
	g.mu.Lock()
	g.seen[id] = g.now()
	g.mu.Unlock()
	return nil
}
