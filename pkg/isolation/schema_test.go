package isolation_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tenantkit/tenantkit/pkg/dialect"
	"github.com/tenantkit/tenantkit/pkg/identifier"
	"github.com/tenantkit/tenantkit/pkg/isolation"
	"github.com/tenantkit/tenantkit/pkg/tenant"
)

func acmeTenant() *tenant.Tenant {
	return &tenant.Tenant{ID: "tenant-1", Identifier: "acme-corp", Status: tenant.StatusActive}
}

func TestSchemaProviderProvision(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	pool := &fakePool{}
	provider, err := isolation.NewSchemaProvider(pool, dialect.Postgres,
		isolation.WithSchemaDescriptor(testDescriptor()))
	require.NoError(t, err)

	require.NoError(t, provider.Provision(ctx, acmeTenant()))

	execs := pool.executed()
	require.Len(t, execs, 3)
	assert.Equal(t, "CREATE SCHEMA IF NOT EXISTS tenant_acme_corp", execs[0].SQL)
	assert.Contains(t, execs[1].SQL, "tenant_acme_corp.customers")
	assert.Contains(t, execs[2].SQL, "tenant_acme_corp.orders")
}

func TestSchemaProviderProvisionRollsBackOnFailure(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	pool := &fakePool{
		execErr: func(sql string) error {
			if strings.Contains(sql, "orders") {
				return errors.New("disk full")
			}
			return nil
		},
	}
	provider, err := isolation.NewSchemaProvider(pool, dialect.Postgres,
		isolation.WithSchemaDescriptor(testDescriptor()))
	require.NoError(t, err)

	err = provider.Provision(ctx, acmeTenant())
	require.ErrorIs(t, err, isolation.ErrProvisionFailed)

	execs := pool.executed()
	last := execs[len(execs)-1]
	assert.Equal(t, "DROP SCHEMA IF EXISTS tenant_acme_corp CASCADE", last.SQL,
		"partial schema must be dropped")
}

func TestSchemaProviderRejectsUnsafeSchemaName(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	provider, err := isolation.NewSchemaProvider(&fakePool{}, dialect.Postgres)
	require.NoError(t, err)

	bad := &tenant.Tenant{ID: "tenant-1", Identifier: "acme", SchemaName: `acme"; DROP SCHEMA public; --`}
	require.ErrorIs(t, provider.Provision(ctx, bad), identifier.ErrUnsafeIdentifier)

	_, err = provider.OpenSession(ctx, bad)
	require.ErrorIs(t, err, identifier.ErrUnsafeIdentifier)
}

func TestSchemaProviderApplyFilter(t *testing.T) {
	t.Parallel()

	t.Run("prefix mode appends the tenant predicate", func(t *testing.T) {
		t.Parallel()

		provider, err := isolation.NewSchemaProvider(&fakePool{}, dialect.MySQL,
			isolation.WithSchemaDescriptor(testDescriptor()))
		require.NoError(t, err)

		q := provider.ApplyFilter(acmeTenant(), isolation.NewQuery("SELECT * FROM t_acme_corp_orders"))
		assert.Equal(t, "SELECT * FROM t_acme_corp_orders WHERE tenant_id = $1", q.SQL)
		assert.Equal(t, []any{"tenant-1"}, q.Args)
	})

	t.Run("prefix mode defaults the column without a descriptor", func(t *testing.T) {
		t.Parallel()

		provider, err := isolation.NewSchemaProvider(&fakePool{}, dialect.SQLite)
		require.NoError(t, err)

		q := provider.ApplyFilter(acmeTenant(),
			isolation.NewQuery("SELECT * FROM t_acme_corp_orders WHERE total > $1", 100))
		assert.Equal(t, "SELECT * FROM t_acme_corp_orders WHERE total > $1 AND tenant_id = $2", q.SQL)
		assert.Equal(t, []any{100, "tenant-1"}, q.Args)
	})

	t.Run("schema mode adds the predicate when the descriptor declares one", func(t *testing.T) {
		t.Parallel()

		provider, err := isolation.NewSchemaProvider(&fakePool{}, dialect.Postgres,
			isolation.WithSchemaDescriptor(testDescriptor()))
		require.NoError(t, err)

		q := provider.ApplyFilter(acmeTenant(), isolation.NewQuery("SELECT * FROM orders"))
		assert.Equal(t, "SELECT * FROM orders WHERE tenant_id = $1", q.SQL)
	})

	t.Run("schema mode leaves queries alone without a tenant column", func(t *testing.T) {
		t.Parallel()

		provider, err := isolation.NewSchemaProvider(&fakePool{}, dialect.Postgres)
		require.NoError(t, err)

		q := provider.ApplyFilter(acmeTenant(), isolation.NewQuery("SELECT * FROM orders"))
		assert.Equal(t, "SELECT * FROM orders", q.SQL)
		assert.Empty(t, q.Args)
	})
}

func TestSchemaProviderDestroy(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	pool := &fakePool{}
	provider, err := isolation.NewSchemaProvider(pool, dialect.Postgres)
	require.NoError(t, err)

	require.NoError(t, provider.Destroy(ctx, acmeTenant()))
	execs := pool.executed()
	require.Len(t, execs, 1)
	assert.Equal(t, "DROP SCHEMA IF EXISTS tenant_acme_corp CASCADE", execs[0].SQL)
}

func TestSchemaProviderVerifyIsolation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("schema exists", func(t *testing.T) {
		t.Parallel()

		pool := &fakePool{rowFunc: func(sql string, args []any) fakeRow {
			return fakeRow{vals: []any{true}}
		}}
		provider, err := isolation.NewSchemaProvider(pool, dialect.Postgres)
		require.NoError(t, err)
		require.NoError(t, provider.VerifyIsolation(ctx, acmeTenant()))
	})

	t.Run("schema missing", func(t *testing.T) {
		t.Parallel()

		pool := &fakePool{rowFunc: func(sql string, args []any) fakeRow {
			return fakeRow{vals: []any{false}}
		}}
		provider, err := isolation.NewSchemaProvider(pool, dialect.Postgres)
		require.NoError(t, err)
		require.ErrorIs(t, provider.VerifyIsolation(ctx, acmeTenant()), isolation.ErrVerificationFailed)
	})
}

func TestSchemaProviderPrefixFallback(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	pool := &fakePool{}
	provider, err := isolation.NewSchemaProvider(pool, dialect.MySQL,
		isolation.WithSchemaDescriptor(testDescriptor()))
	require.NoError(t, err)

	t.Run("sessions carry a table prefix", func(t *testing.T) {
		sess, err := provider.OpenSession(ctx, acmeTenant())
		require.NoError(t, err)
		defer sess.Close(ctx)

		assert.Equal(t, "t_acme_corp_", sess.TablePrefix())
		assert.Empty(t, pool.executed(), "no schema statements on engines without schemas")
	})

	t.Run("provision creates prefixed tables", func(t *testing.T) {
		fresh := &fakePool{}
		provider, err := isolation.NewSchemaProvider(fresh, dialect.MySQL,
			isolation.WithSchemaDescriptor(testDescriptor()))
		require.NoError(t, err)

		require.NoError(t, provider.Provision(ctx, acmeTenant()))
		execs := fresh.executed()
		require.Len(t, execs, 2)
		assert.Contains(t, execs[0].SQL, "t_acme_corp_customers")
	})

	t.Run("provision requires a descriptor", func(t *testing.T) {
		provider, err := isolation.NewSchemaProvider(&fakePool{}, dialect.MySQL)
		require.NoError(t, err)
		require.ErrorIs(t, provider.Provision(ctx, acmeTenant()), isolation.ErrDescriptorRequired)
	})
}
