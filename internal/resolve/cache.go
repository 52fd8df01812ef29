package resolve

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/CosmoTheDev/hubwatch/models"
)

// CacheStore is a byte-oriented key/value store with expiry.
// Get reports found=false on a miss.
type CacheStore interface {
	Get(ctx context.Context, key string) (val []byte, found bool, err error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
}

// Cached returns a read-through Resolver over store. Only successful lookups
// are cached. Store failures are logged and the call falls through to r.
func Cached(r Resolver, store CacheStore, ttl time.Duration) Resolver {
	if store == nil {
		return r
	}
	return &cached{next: r, store: store, ttl: ttl}
}

type cached struct {
	next  Resolver
	store CacheStore
	ttl   time.Duration
}

func cacheKey(op Op, url string) string {
	return string(op) + ":" + url
}

func readThrough[T any](ctx context.Context, c *cached, op Op, url string, fn func() (T, error)) (T, error) {
	key := cacheKey(op, url)
	if raw, found, err := c.store.Get(ctx, key); err != nil {
		slog.Debug("resolver cache get failed", "key", key, "error", err)
	} else if found {
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			return v, nil
		}
		slog.Debug("resolver cache entry unreadable", "key", key)
	}

	v, err := fn()
	if err != nil {
		return v, err
	}
	if raw, err := json.Marshal(v); err == nil {
		if err := c.store.Set(ctx, key, raw, c.ttl); err != nil {
			slog.Debug("resolver cache set failed", "key", key, "error", err)
		}
	}
	return v, nil
}

func (c *cached) ResolveProjectVersion(ctx context.Context, url string) (models.ProjectVersionRef, error) {
	return readThrough(ctx, c, OpProjectVersion, url, func() (models.ProjectVersionRef, error) {
		return c.next.ResolveProjectVersion(ctx, url)
	})
}

func (c *cached) ResolveComponentVersion(ctx context.Context, url string) (models.ComponentVersionRef, error) {
	return readThrough(ctx, c, OpComponentVersion, url, func() (models.ComponentVersionRef, error) {
		return c.next.ResolveComponentVersion(ctx, url)
	})
}

func (c *cached) ResolvePolicyRule(ctx context.Context, url string) (models.PolicyRuleRef, error) {
	return readThrough(ctx, c, OpPolicyRule, url, func() (models.PolicyRuleRef, error) {
		return c.next.ResolvePolicyRule(ctx, url)
	})
}

// Policy status is live state; it is never cached.
func (c *cached) ResolvePolicyStatus(ctx context.Context, url string) (models.PolicyStatusRef, error) {
	return c.next.ResolvePolicyStatus(ctx, url)
}

// RedisStore is a CacheStore backed by Redis.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore returns a store that namespaces every key with prefix.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("resolve: redis get: %w", err)
	}
	return data, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.prefix+key, val, ttl).Err(); err != nil {
		return fmt.Errorf("resolve: redis set: %w", err)
	}
	return nil
}
