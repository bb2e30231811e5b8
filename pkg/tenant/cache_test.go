package tenant_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tenantkit/tenantkit/pkg/tenant"
)

type countingDirectory struct {
	tenants map[string]*tenant.Tenant
	calls   int
}

func (d *countingDirectory) GetByID(ctx context.Context, id string) (*tenant.Tenant, error) {
	d.calls++
	for _, t := range d.tenants {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, tenant.ErrNotFound
}

func (d *countingDirectory) GetByIdentifier(ctx context.Context, identifier string) (*tenant.Tenant, error) {
	d.calls++
	if t, ok := d.tenants[identifier]; ok {
		return t, nil
	}
	return nil, tenant.ErrNotFound
}

func TestInMemoryCache(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("set get delete", func(t *testing.T) {
		t.Parallel()

		c := tenant.NewInMemoryCache()
		defer c.Close()

		tn := &tenant.Tenant{ID: "tenant-1"}
		c.Set(ctx, "k", tn, time.Minute)

		got, ok := c.Get(ctx, "k")
		require.True(t, ok)
		assert.Equal(t, tn, got)

		c.Delete(ctx, "k")
		_, ok = c.Get(ctx, "k")
		assert.False(t, ok)
	})

	t.Run("expired entries are misses", func(t *testing.T) {
		t.Parallel()

		c := tenant.NewInMemoryCache()
		defer c.Close()

		c.Set(ctx, "k", &tenant.Tenant{ID: "tenant-1"}, -time.Second)
		_, ok := c.Get(ctx, "k")
		assert.False(t, ok)
	})

	t.Run("evicts least recently used", func(t *testing.T) {
		t.Parallel()

		c := tenant.NewInMemoryCacheWithSize(2)
		defer c.Close()

		c.Set(ctx, "a", &tenant.Tenant{ID: "a"}, time.Minute)
		c.Set(ctx, "b", &tenant.Tenant{ID: "b"}, time.Minute)

		// Touch a so b becomes the eviction candidate.
		_, ok := c.Get(ctx, "a")
		require.True(t, ok)

		c.Set(ctx, "c", &tenant.Tenant{ID: "c"}, time.Minute)

		_, ok = c.Get(ctx, "b")
		assert.False(t, ok, "b should have been evicted")
		_, ok = c.Get(ctx, "a")
		assert.True(t, ok)
		_, ok = c.Get(ctx, "c")
		assert.True(t, ok)
	})

	t.Run("close is idempotent", func(t *testing.T) {
		t.Parallel()

		c := tenant.NewInMemoryCache()
		require.NoError(t, c.Close())
		require.NoError(t, c.Close())
	})
}

func TestCachedDirectory(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tn := &tenant.Tenant{ID: "tenant-1", Identifier: "acme", Status: tenant.StatusActive}

	t.Run("caches lookups across both keys", func(t *testing.T) {
		t.Parallel()

		dir := &countingDirectory{tenants: map[string]*tenant.Tenant{"acme": tn}}
		cached := tenant.NewCachedDirectory(dir, tenant.NewInMemoryCache(), time.Minute)
		defer cached.Close()

		got, err := cached.GetByIdentifier(ctx, "acme")
		require.NoError(t, err)
		assert.Equal(t, tn, got)

		// Both the slug and id lookups now hit the cache.
		_, err = cached.GetByIdentifier(ctx, "acme")
		require.NoError(t, err)
		_, err = cached.GetByID(ctx, "tenant-1")
		require.NoError(t, err)
		assert.Equal(t, 1, dir.calls)
	})

	t.Run("misses propagate errors uncached", func(t *testing.T) {
		t.Parallel()

		dir := &countingDirectory{tenants: map[string]*tenant.Tenant{}}
		cached := tenant.NewCachedDirectory(dir, tenant.NewInMemoryCache(), time.Minute)
		defer cached.Close()

		_, err := cached.GetByIdentifier(ctx, "ghost")
		require.ErrorIs(t, err, tenant.ErrNotFound)
		_, err = cached.GetByIdentifier(ctx, "ghost")
		require.ErrorIs(t, err, tenant.ErrNotFound)
		assert.Equal(t, 2, dir.calls)
	})

	t.Run("invalidate forces reload", func(t *testing.T) {
		t.Parallel()

		dir := &countingDirectory{tenants: map[string]*tenant.Tenant{"acme": tn}}
		cached := tenant.NewCachedDirectory(dir, tenant.NewInMemoryCache(), time.Minute)
		defer cached.Close()

		_, err := cached.GetByIdentifier(ctx, "acme")
		require.NoError(t, err)

		cached.Invalidate(ctx, tn)

		_, err = cached.GetByIdentifier(ctx, "acme")
		require.NoError(t, err)
		assert.Equal(t, 2, dir.calls)
	})
}
