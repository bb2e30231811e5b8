package isolation

import (
	"container/list"
	"context"
	"sync"
)

// DefaultMaxEngines caps how many per-tenant pools the engine cache holds
// before evicting the least recently used one.
const DefaultMaxEngines = 50

// EngineCache is an LRU cache of database pools keyed by tenant. Creation
// is guarded per key: when many requests for the same uncached tenant
// arrive at once, exactly one opens the pool and the rest wait for it.
// An evicted pool is closed before the new pool is inserted, so the cache
// never holds more than maxSize pools.
type EngineCache struct {
	mu       sync.Mutex
	maxSize  int
	entries  map[string]*list.Element
	order    *list.List // front is most recently used
	creating map[string]*creation
	closed   bool
}

type engineEntry struct {
	key  string
	pool Pool
}

type creation struct {
	mu   sync.Mutex
	refs int
}

// NewEngineCache creates a cache holding at most maxSize pools.
func NewEngineCache(maxSize int) *EngineCache {
	if maxSize <= 0 {
		maxSize = DefaultMaxEngines
	}
	return &EngineCache{
		maxSize:  maxSize,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
		creating: make(map[string]*creation),
	}
}

// GetOrCreate returns the cached pool for key, opening one with open when
// absent. Concurrent calls for the same key result in a single open call.
func (c *EngineCache) GetOrCreate(ctx context.Context, key string, open func(ctx context.Context) (Pool, error)) (Pool, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrCacheClosed
	}
	if elem, ok := c.entries[key]; ok {
		c.order.MoveToFront(elem)
		pool := elem.Value.(*engineEntry).pool
		c.mu.Unlock()
		return pool, nil
	}
	cr, ok := c.creating[key]
	if !ok {
		cr = &creation{}
		c.creating[key] = cr
	}
	cr.refs++
	c.mu.Unlock()

	cr.mu.Lock()
	defer func() {
		cr.mu.Unlock()
		c.mu.Lock()
		cr.refs--
		if cr.refs == 0 {
			delete(c.creating, key)
		}
		c.mu.Unlock()
	}()

	// Double-checked: a waiter arriving here after the winner finds the
	// pool already cached.
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrCacheClosed
	}
	if elem, ok := c.entries[key]; ok {
		c.order.MoveToFront(elem)
		pool := elem.Value.(*engineEntry).pool
		c.mu.Unlock()
		return pool, nil
	}
	c.mu.Unlock()

	// The open call runs outside every lock except this key's creation
	// lock, so slow connections don't stall unrelated tenants.
	pool, err := open(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		pool.Close()
		return nil, ErrCacheClosed
	}
	var evicted Pool
	if c.order.Len() >= c.maxSize {
		if back := c.order.Back(); back != nil {
			entry := back.Value.(*engineEntry)
			delete(c.entries, entry.key)
			c.order.Remove(back)
			evicted = entry.pool
		}
	}
	c.mu.Unlock()

	// The evicted pool is disposed before the new entry becomes visible,
	// so the cache never holds the evicted and the new pool at once.
	if evicted != nil {
		evicted.Close()
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		pool.Close()
		return nil, ErrCacheClosed
	}
	c.entries[key] = c.order.PushFront(&engineEntry{key: key, pool: pool})
	c.mu.Unlock()
	return pool, nil
}

// Get returns the cached pool without creating one.
func (c *EngineCache) Get(key string) (Pool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(elem)
	return elem.Value.(*engineEntry).pool, true
}

// Remove closes and drops the pool for key, if cached.
func (c *EngineCache) Remove(key string) {
	c.mu.Lock()
	elem, ok := c.entries[key]
	var pool Pool
	if ok {
		pool = elem.Value.(*engineEntry).pool
		delete(c.entries, key)
		c.order.Remove(elem)
	}
	c.mu.Unlock()

	if pool != nil {
		pool.Close()
	}
}

// Len returns the number of cached pools.
func (c *EngineCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// CloseAll closes every cached pool and marks the cache closed. Further
// GetOrCreate calls fail with ErrCacheClosed. Idempotent.
func (c *EngineCache) CloseAll() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	pools := make([]Pool, 0, c.order.Len())
	for elem := c.order.Front(); elem != nil; elem = elem.Next() {
		pools = append(pools, elem.Value.(*engineEntry).pool)
	}
	c.entries = make(map[string]*list.Element)
	c.order.Init()
	c.mu.Unlock()

	for _, p := range pools {
		p.Close()
	}
}
