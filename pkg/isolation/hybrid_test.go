package isolation_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tenantkit/tenantkit/pkg/dialect"
	"github.com/tenantkit/tenantkit/pkg/isolation"
	"github.com/tenantkit/tenantkit/pkg/tenant"
)

func hybridFixture(t *testing.T) (*isolation.HybridProvider, isolation.Provider, isolation.Provider) {
	t.Helper()

	pool := &fakePool{}
	standard, err := isolation.NewSchemaProvider(pool, dialect.Postgres)
	require.NoError(t, err)
	premium, err := isolation.NewDatabaseProvider(pool, masterURL,
		isolation.WithPoolFactory(newTrackingFactory().open))
	require.NoError(t, err)

	h, err := isolation.NewHybridProvider(standard, premium, []string{"tenant-42", "bigcorp"})
	require.NoError(t, err)
	return h, standard, premium
}

func TestNewHybridProviderValidation(t *testing.T) {
	t.Parallel()

	pool := &fakePool{}
	schema, err := isolation.NewSchemaProvider(pool, dialect.Postgres)
	require.NoError(t, err)
	schema2, err := isolation.NewSchemaProvider(pool, dialect.Postgres)
	require.NoError(t, err)

	_, err = isolation.NewHybridProvider(nil, schema, nil)
	require.Error(t, err)

	_, err = isolation.NewHybridProvider(schema, schema2, nil)
	require.Error(t, err, "sub-strategies must differ")

	h, _, _ := hybridFixture(t)
	_, err = isolation.NewHybridProvider(schema, h, nil)
	require.Error(t, err, "hybrid cannot nest")
}

func TestHybridProviderRouting(t *testing.T) {
	t.Parallel()

	h, standard, premium := hybridFixture(t)

	t.Run("standard tenant", func(t *testing.T) {
		t.Parallel()
		assert.Same(t, standard, h.Route(&tenant.Tenant{ID: "tenant-1", Identifier: "acme"}))
	})

	t.Run("premium by id", func(t *testing.T) {
		t.Parallel()
		assert.Same(t, premium, h.Route(&tenant.Tenant{ID: "tenant-42", Identifier: "acme"}))
	})

	t.Run("premium by identifier", func(t *testing.T) {
		t.Parallel()
		assert.Same(t, premium, h.Route(&tenant.Tenant{ID: "tenant-7", Identifier: "bigcorp"}))
	})

	t.Run("record override beats premium set", func(t *testing.T) {
		t.Parallel()
		assert.Same(t, standard, h.Route(&tenant.Tenant{
			ID: "tenant-42", Identifier: "acme", Isolation: tenant.IsolationSchema,
		}))
		assert.Same(t, premium, h.Route(&tenant.Tenant{
			ID: "tenant-1", Identifier: "acme", Isolation: tenant.IsolationDatabase,
		}))
	})

	t.Run("strategy reports hybrid", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, tenant.IsolationHybrid, h.Strategy())
	})
}

func TestHybridProviderDelegates(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h, _, _ := hybridFixture(t)

	sess, err := h.OpenSession(ctx, &tenant.Tenant{ID: "tenant-1", Identifier: "acme"})
	require.NoError(t, err)
	require.NoError(t, sess.Close(ctx))

	q := h.ApplyFilter(&tenant.Tenant{ID: "tenant-1", Identifier: "acme"},
		isolation.NewQuery("SELECT * FROM orders"))
	assert.Equal(t, "SELECT * FROM orders", q.SQL, "schema strategy leaves queries untouched")

	require.NoError(t, h.Close(ctx))
}
