package isolation_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tenantkit/tenantkit/pkg/isolation"
)

func onePool(p *fakePool) func(context.Context) (isolation.Pool, error) {
	return func(context.Context) (isolation.Pool, error) { return p, nil }
}

func TestEngineCacheGetOrCreate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cache := isolation.NewEngineCache(10)

	a := &fakePool{}
	got, err := cache.GetOrCreate(ctx, "a", onePool(a))
	require.NoError(t, err)
	assert.Same(t, isolation.Pool(a), got)
	assert.Equal(t, 1, cache.Len())

	// Second call returns the cached pool without opening a new one.
	var opened atomic.Int32
	got, err = cache.GetOrCreate(ctx, "a", func(context.Context) (isolation.Pool, error) {
		opened.Add(1)
		return &fakePool{}, nil
	})
	require.NoError(t, err)
	assert.Same(t, isolation.Pool(a), got)
	assert.Zero(t, opened.Load())
}

func TestEngineCacheEvictsLeastRecentlyUsed(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cache := isolation.NewEngineCache(2)

	a, b, c := &fakePool{}, &fakePool{}, &fakePool{}
	_, err := cache.GetOrCreate(ctx, "a", onePool(a))
	require.NoError(t, err)
	_, err = cache.GetOrCreate(ctx, "b", onePool(b))
	require.NoError(t, err)

	// Touch a so b is the oldest.
	_, ok := cache.Get("a")
	require.True(t, ok)

	_, err = cache.GetOrCreate(ctx, "c", onePool(c))
	require.NoError(t, err)

	assert.Equal(t, 2, cache.Len())
	assert.True(t, b.isClosed(), "evicted pool must be closed")
	assert.False(t, a.isClosed())
	_, ok = cache.Get("b")
	assert.False(t, ok)
}

func TestEngineCacheClosesEvictedBeforeInsert(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cache := isolation.NewEngineCache(1)

	a := &fakePool{}
	_, err := cache.GetOrCreate(ctx, "a", onePool(a))
	require.NoError(t, err)

	// At the moment the evicted pool closes, the slot must already be
	// free and the replacement not yet cached.
	lenAtClose := -1
	a.onClose = func() { lenAtClose = cache.Len() }

	_, err = cache.GetOrCreate(ctx, "b", onePool(&fakePool{}))
	require.NoError(t, err)

	assert.Zero(t, lenAtClose, "evicted pool must close before the new entry is inserted")
	assert.Equal(t, 1, cache.Len())
}

func TestEngineCacheSingleFlightCreation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cache := isolation.NewEngineCache(10)

	var opened atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cache.GetOrCreate(ctx, "k", func(context.Context) (isolation.Pool, error) {
				opened.Add(1)
				return &fakePool{}, nil
			})
			if err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), opened.Load(), "only one goroutine may open the pool")
	assert.Equal(t, 1, cache.Len())
}

func TestEngineCacheRemove(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cache := isolation.NewEngineCache(10)

	a := &fakePool{}
	_, err := cache.GetOrCreate(ctx, "a", onePool(a))
	require.NoError(t, err)

	cache.Remove("a")
	assert.True(t, a.isClosed())
	assert.Zero(t, cache.Len())

	// Removing again is fine.
	cache.Remove("a")
}

func TestEngineCacheCloseAll(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cache := isolation.NewEngineCache(10)

	a, b := &fakePool{}, &fakePool{}
	_, err := cache.GetOrCreate(ctx, "a", onePool(a))
	require.NoError(t, err)
	_, err = cache.GetOrCreate(ctx, "b", onePool(b))
	require.NoError(t, err)

	cache.CloseAll()
	cache.CloseAll()

	assert.True(t, a.isClosed())
	assert.True(t, b.isClosed())

	_, err = cache.GetOrCreate(ctx, "c", onePool(&fakePool{}))
	require.ErrorIs(t, err, isolation.ErrCacheClosed)
}
