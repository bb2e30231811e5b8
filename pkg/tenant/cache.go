package tenant

import (
	"context"
	"sync"
	"time"
)

// Cache is the interface for tenant caching implementations.
type Cache interface {
	// Get retrieves a tenant from cache by key.
	Get(ctx context.Context, key string) (*Tenant, bool)

	// Set stores a tenant in cache with the given TTL.
	Set(ctx context.Context, key string, t *Tenant, ttl time.Duration)

	// Delete removes a tenant from cache.
	Delete(ctx context.Context, key string)

	// Close releases any resources held by the cache.
	Close() error
}

// DefaultCacheSize is the default maximum number of items in the cache.
const DefaultCacheSize = 1000

// inMemoryCache is the default in-memory cache implementation with LRU
// eviction and TTL expiry.
type inMemoryCache struct {
	mu      sync.Mutex
	items   map[string]cacheItem
	lru     []string
	maxSize int
	stop    chan struct{}
	done    chan struct{}
	closed  bool
}

type cacheItem struct {
	tenant    *Tenant
	expiresAt time.Time
}

// NewInMemoryCache creates a new in-memory cache with automatic cleanup.
func NewInMemoryCache() Cache {
	return NewInMemoryCacheWithSize(DefaultCacheSize)
}

// NewInMemoryCacheWithSize creates a new in-memory cache with the given
// size limit.
func NewInMemoryCacheWithSize(maxSize int) Cache {
	if maxSize <= 0 {
		maxSize = DefaultCacheSize
	}

	c := &inMemoryCache{
		items:   make(map[string]cacheItem),
		lru:     make([]string, 0, maxSize),
		maxSize: maxSize,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go c.cleanup()
	return c
}

func (c *inMemoryCache) Get(ctx context.Context, key string) (*Tenant, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, exists := c.items[key]
	if !exists {
		return nil, false
	}
	if time.Now().After(item.expiresAt) {
		delete(c.items, key)
		c.removeLRU(key)
		return nil, false
	}
	c.touchLRU(key)
	return item.tenant, true
}

func (c *inMemoryCache) Set(ctx context.Context, key string, t *Tenant, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.items[key]; !exists && len(c.items) >= c.maxSize {
		if len(c.lru) > 0 {
			evict := c.lru[0]
			delete(c.items, evict)
			c.lru = c.lru[1:]
		}
	}
	c.items[key] = cacheItem{tenant: t, expiresAt: time.Now().Add(ttl)}
	c.touchLRU(key)
}

func (c *inMemoryCache) Delete(ctx context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.items, key)
	c.removeLRU(key)
}

func (c *inMemoryCache) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	defer close(c.done)

	for {
		select {
		case <-ticker.C:
			c.removeExpired()
		case <-c.stop:
			return
		}
	}
}

func (c *inMemoryCache) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, item := range c.items {
		if now.After(item.expiresAt) {
			delete(c.items, key)
			c.removeLRU(key)
		}
	}
}

func (c *inMemoryCache) touchLRU(key string) {
	c.removeLRU(key)
	c.lru = append(c.lru, key)
}

func (c *inMemoryCache) removeLRU(key string) {
	for i, k := range c.lru {
		if k == key {
			c.lru = append(c.lru[:i], c.lru[i+1:]...)
			return
		}
	}
}

func (c *inMemoryCache) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	close(c.stop)
	<-c.done
	return nil
}

// noOpCache disables caching. Useful in tests and for deployments where
// tenant records change frequently.
type noOpCache struct{}

// NewNoOpCache creates a cache that doesn't cache.
func NewNoOpCache() Cache {
	return &noOpCache{}
}

func (noOpCache) Get(ctx context.Context, key string) (*Tenant, bool)             { return nil, false }
func (noOpCache) Set(ctx context.Context, key string, t *Tenant, _ time.Duration) {}
func (noOpCache) Delete(ctx context.Context, key string)                          {}
func (noOpCache) Close() error                                                    { return nil }

// CachedDirectory wraps a Directory with read-through caching. Lookups by
// ID and by identifier share one cache; a hit on either key serves both.
type CachedDirectory struct {
	dir   Directory
	cache Cache
	ttl   time.Duration
}

// NewCachedDirectory wraps dir with the given cache. A zero ttl defaults
// to five minutes.
func NewCachedDirectory(dir Directory, cache Cache, ttl time.Duration) *CachedDirectory {
	if cache == nil {
		cache = NewInMemoryCache()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedDirectory{dir: dir, cache: cache, ttl: ttl}
}

func (d *CachedDirectory) GetByID(ctx context.Context, id string) (*Tenant, error) {
	if t, ok := d.cache.Get(ctx, "id:"+id); ok {
		return t, nil
	}
	t, err := d.dir.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	d.store(ctx, t)
	return t, nil
}

func (d *CachedDirectory) GetByIdentifier(ctx context.Context, identifier string) (*Tenant, error) {
	if t, ok := d.cache.Get(ctx, "slug:"+identifier); ok {
		return t, nil
	}
	t, err := d.dir.GetByIdentifier(ctx, identifier)
	if err != nil {
		return nil, err
	}
	d.store(ctx, t)
	return t, nil
}

// Invalidate drops both cache entries for the tenant. Call it after any
// write that changes the tenant record.
func (d *CachedDirectory) Invalidate(ctx context.Context, t *Tenant) {
	if t == nil {
		return
	}
	d.cache.Delete(ctx, "id:"+t.ID)
	d.cache.Delete(ctx, "slug:"+t.Identifier)
}

// Close releases the underlying cache.
func (d *CachedDirectory) Close() error {
	return d.cache.Close()
}

func (d *CachedDirectory) store(ctx context.Context, t *Tenant) {
	d.cache.Set(ctx, "id:"+t.ID, t, d.ttl)
	d.cache.Set(ctx, "slug:"+t.Identifier, t, d.ttl)
}
