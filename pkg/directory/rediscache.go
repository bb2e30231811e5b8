package directory

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tenantkit/tenantkit/pkg/tenant"
)

// DefaultCacheTTL bounds how stale a cached tenant record may get.
const DefaultCacheTTL = 5 * time.Minute

// RedisCache is a read-through cache in front of another Store. Lookups
// hit Redis first; writes go to the backing store and invalidate both
// cache keys. Cache failures degrade to backing store reads, never to
// request failures.
type RedisCache struct {
	store  Store
	client redis.UniversalClient
	ttl    time.Duration
	logger *slog.Logger
}

// RedisCacheOption configures the cache.
type RedisCacheOption func(*RedisCache)

// WithCacheTTL overrides the entry lifetime.
func WithCacheTTL(ttl time.Duration) RedisCacheOption {
	return func(c *RedisCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithCacheLogger sets the logger cache failures are reported to.
func WithCacheLogger(logger *slog.Logger) RedisCacheOption {
	return func(c *RedisCache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewRedisCache wraps store with a Redis read-through cache.
func NewRedisCache(store Store, client redis.UniversalClient, opts ...RedisCacheOption) *RedisCache {
	c := &RedisCache{
		store:  store,
		client: client,
		ttl:    DefaultCacheTTL,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *RedisCache) GetByID(ctx context.Context, id string) (*tenant.Tenant, error) {
	if t, ok := c.cached(ctx, idKey(id)); ok {
		return t, nil
	}
	t, err := c.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.cache(ctx, t)
	return t, nil
}

func (c *RedisCache) GetByIdentifier(ctx context.Context, slug string) (*tenant.Tenant, error) {
	if t, ok := c.cached(ctx, slugKey(slug)); ok {
		return t, nil
	}
	t, err := c.store.GetByIdentifier(ctx, slug)
	if err != nil {
		return nil, err
	}
	c.cache(ctx, t)
	return t, nil
}

func (c *RedisCache) Create(ctx context.Context, t *tenant.Tenant) error {
	if err := c.store.Create(ctx, t); err != nil {
		return err
	}
	c.invalidate(ctx, t)
	return nil
}

func (c *RedisCache) Update(ctx context.Context, t *tenant.Tenant) error {
	// Invalidate by the stored record too: an identifier change must also
	// drop the old slug key.
	prev, err := c.store.GetByID(ctx, t.ID)
	if err == nil {
		c.invalidate(ctx, prev)
	}
	if err := c.store.Update(ctx, t); err != nil {
		return err
	}
	c.invalidate(ctx, t)
	return nil
}

func (c *RedisCache) SetStatus(ctx context.Context, id string, status tenant.Status) error {
	if err := c.store.SetStatus(ctx, id, status); err != nil {
		return err
	}
	if t, err := c.store.GetByID(ctx, id); err == nil {
		c.invalidate(ctx, t)
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, id string) error {
	t, err := c.store.GetByID(ctx, id)
	if err != nil && !errors.Is(err, tenant.ErrNotFound) {
		return err
	}
	if err := c.store.Delete(ctx, id); err != nil {
		return err
	}
	if t != nil {
		c.invalidate(ctx, t)
	}
	return nil
}

func (c *RedisCache) List(ctx context.Context) ([]*tenant.Tenant, error) {
	return c.store.List(ctx)
}

func (c *RedisCache) Count(ctx context.Context) (int, error) {
	return c.store.Count(ctx)
}

func (c *RedisCache) cached(ctx context.Context, key string) (*tenant.Tenant, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.WarnContext(ctx, "tenant cache read failed", "key", key, "error", err)
		}
		return nil, false
	}
	var t tenant.Tenant
	if err := json.Unmarshal(data, &t); err != nil {
		c.logger.WarnContext(ctx, "tenant cache entry corrupt", "key", key, "error", err)
		return nil, false
	}
	return &t, true
}

func (c *RedisCache) cache(ctx context.Context, t *tenant.Tenant) {
	data, err := json.Marshal(t)
	if err != nil {
		c.logger.WarnContext(ctx, "tenant cache encode failed", "tenant_id", t.ID, "error", err)
		return
	}
	pipe := c.client.Pipeline()
	pipe.Set(ctx, idKey(t.ID), data, c.ttl)
	pipe.Set(ctx, slugKey(t.Identifier), data, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.WarnContext(ctx, "tenant cache write failed", "tenant_id", t.ID, "error", err)
	}
}

func (c *RedisCache) invalidate(ctx context.Context, t *tenant.Tenant) {
	if err := c.client.Del(ctx, idKey(t.ID), slugKey(t.Identifier)).Err(); err != nil {
		c.logger.WarnContext(ctx, "tenant cache invalidation failed", "tenant_id", t.ID, "error", err)
	}
}

func idKey(id string) string     { return "tenant:id:" + id }
func slugKey(slug string) string { return "tenant:slug:" + slug }

var _ tenant.Directory = (*RedisCache)(nil)
var _ Store = (*RedisCache)(nil)
