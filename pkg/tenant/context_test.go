package tenant_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tenantkit/tenantkit/pkg/tenant"
)

func TestContextBinding(t *testing.T) {
	t.Parallel()

	tn := &tenant.Tenant{ID: "tenant-1", Identifier: "acme", Status: tenant.StatusActive}

	ctx := tenant.WithTenant(context.Background(), tn)

	got, ok := tenant.FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, tn, got)

	id, ok := tenant.IDFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "tenant-1", id)
}

func TestCurrentTenant(t *testing.T) {
	t.Parallel()

	_, err := tenant.CurrentTenant(context.Background())
	require.ErrorIs(t, err, tenant.ErrNoTenantInContext)

	tn := &tenant.Tenant{ID: "tenant-1"}
	got, err := tenant.CurrentTenant(tenant.WithTenant(context.Background(), tn))
	require.NoError(t, err)
	assert.Same(t, tn, got)
}

func TestMustFromContextPanics(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() {
		tenant.MustFromContext(context.Background())
	})
}

func TestBindingIsScopedToChildContext(t *testing.T) {
	t.Parallel()

	parent := context.Background()
	_ = tenant.WithTenant(parent, &tenant.Tenant{ID: "tenant-1"})

	_, ok := tenant.FromContext(parent)
	assert.False(t, ok, "parent context must not see the binding")
}

func TestConcurrentBindingsStayIsolated(t *testing.T) {
	t.Parallel()

	const workers = 50

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()

			id := fmt.Sprintf("tenant-%d", i)
			ctx := tenant.WithTenant(context.Background(), &tenant.Tenant{ID: id})

			for i := 0; i < 100; i++ {
				got, ok := tenant.FromContext(ctx)
				if !ok || got.ID != id {
					t.Errorf("binding leaked: want %s, got %+v", id, got)
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestNewID(t *testing.T) {
	t.Parallel()

	a := tenant.NewID()
	b := tenant.NewID()
	assert.NotEqual(t, a, b)
	assert.Contains(t, a, "tenant-")
}
