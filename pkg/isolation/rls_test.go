package isolation_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tenantkit/tenantkit/pkg/dialect"
	"github.com/tenantkit/tenantkit/pkg/isolation"
)

func TestNewRLSProvider(t *testing.T) {
	t.Parallel()

	_, err := isolation.NewRLSProvider(&fakePool{}, dialect.MySQL)
	require.ErrorIs(t, err, isolation.ErrUnsupportedDialect)

	_, err = isolation.NewRLSProvider(&fakePool{}, dialect.MySQL, isolation.WithFilterFallback())
	require.NoError(t, err)

	_, err = isolation.NewRLSProvider(&fakePool{}, dialect.Postgres)
	require.NoError(t, err)
}

func TestRLSProviderOpenSession(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	pool := &fakePool{}
	provider, err := isolation.NewRLSProvider(pool, dialect.Postgres)
	require.NoError(t, err)

	sess, err := provider.OpenSession(ctx, acmeTenant())
	require.NoError(t, err)
	require.NoError(t, sess.Close(ctx))

	execs := pool.executed()
	require.Len(t, execs, 2)
	assert.Contains(t, execs[0].SQL, "set_config('app.current_tenant', $1, false)")
	assert.Equal(t, []any{"tenant-1"}, execs[0].Args, "tenant id rides in a bind parameter")
	assert.Contains(t, execs[1].SQL, "set_config('app.current_tenant', '', false)")
	assert.Equal(t, 1, pool.releasedCount())
}

func TestRLSProviderApplyFilter(t *testing.T) {
	t.Parallel()

	provider, err := isolation.NewRLSProvider(&fakePool{}, dialect.Postgres,
		isolation.WithRLSDescriptor(testDescriptor()))
	require.NoError(t, err)

	q := provider.ApplyFilter(acmeTenant(), isolation.NewQuery("SELECT * FROM orders WHERE total > $1", 100))
	assert.Equal(t, "SELECT * FROM orders WHERE total > $1 AND tenant_id = $2", q.SQL)
	assert.Equal(t, []any{100, "tenant-1"}, q.Args)
}

func TestRLSProviderProvision(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("requires descriptor", func(t *testing.T) {
		t.Parallel()

		provider, err := isolation.NewRLSProvider(&fakePool{}, dialect.Postgres)
		require.NoError(t, err)
		require.ErrorIs(t, provider.Provision(ctx, acmeTenant()), isolation.ErrDescriptorRequired)
	})

	t.Run("creates tables and policies", func(t *testing.T) {
		t.Parallel()

		pool := &fakePool{}
		provider, err := isolation.NewRLSProvider(pool, dialect.Postgres,
			isolation.WithRLSDescriptor(testDescriptor()))
		require.NoError(t, err)

		require.NoError(t, provider.Provision(ctx, acmeTenant()))

		execs := pool.executed()
		require.Len(t, execs, 4)
		assert.Contains(t, execs[2].SQL, "ENABLE ROW LEVEL SECURITY")
		assert.Contains(t, execs[2].SQL, "CREATE POLICY tenant_isolation ON customers")
		assert.Contains(t, execs[2].SQL, "current_setting('app.current_tenant')")
		assert.Contains(t, execs[3].SQL, "CREATE POLICY tenant_isolation ON orders")
	})
}

func TestRLSProviderDestroy(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	pool := &fakePool{}
	provider, err := isolation.NewRLSProvider(pool, dialect.Postgres,
		isolation.WithRLSDescriptor(testDescriptor()))
	require.NoError(t, err)

	require.NoError(t, provider.Destroy(ctx, acmeTenant()))

	execs := pool.executed()
	require.Len(t, execs, 2)
	assert.Equal(t, "DELETE FROM orders WHERE tenant_id = $1", execs[0].SQL)
	assert.Equal(t, []any{"tenant-1"}, execs[0].Args)
	assert.Equal(t, "DELETE FROM customers WHERE tenant_id = $1", execs[1].SQL)
}

func TestRLSProviderDestroyRejectsUnsafeDescriptor(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	pool := &fakePool{}
	provider, err := isolation.NewRLSProvider(pool, dialect.Postgres,
		isolation.WithRLSDescriptor(&isolation.SchemaDescriptor{Tables: []isolation.Table{
			{
				Name:         "orders; DROP TABLE tenants; --",
				Columns:      []isolation.Column{{Name: "id", Type: "uuid"}},
				TenantColumn: "tenant_id",
			},
		}}))
	require.NoError(t, err)

	err = provider.Destroy(ctx, acmeTenant())
	require.ErrorIs(t, err, isolation.ErrDestroyFailed)
	assert.Empty(t, pool.executed(), "no statement may reach the database")
}

func TestRLSProviderVerifyIsolation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("policies present", func(t *testing.T) {
		t.Parallel()

		pool := &fakePool{rowFunc: func(sql string, args []any) fakeRow {
			return fakeRow{vals: []any{1}}
		}}
		provider, err := isolation.NewRLSProvider(pool, dialect.Postgres,
			isolation.WithRLSDescriptor(testDescriptor()))
		require.NoError(t, err)
		require.NoError(t, provider.VerifyIsolation(ctx, acmeTenant()))
	})

	t.Run("policy missing", func(t *testing.T) {
		t.Parallel()

		pool := &fakePool{rowFunc: func(sql string, args []any) fakeRow {
			return fakeRow{vals: []any{0}}
		}}
		provider, err := isolation.NewRLSProvider(pool, dialect.Postgres,
			isolation.WithRLSDescriptor(testDescriptor()))
		require.NoError(t, err)
		require.ErrorIs(t, provider.VerifyIsolation(ctx, acmeTenant()), isolation.ErrVerificationFailed)
	})

	t.Run("fallback mode always fails verification", func(t *testing.T) {
		t.Parallel()

		provider, err := isolation.NewRLSProvider(&fakePool{}, dialect.MySQL,
			isolation.WithFilterFallback(), isolation.WithRLSDescriptor(testDescriptor()))
		require.NoError(t, err)
		require.ErrorIs(t, provider.VerifyIsolation(ctx, acmeTenant()), isolation.ErrVerificationFailed)
	})
}
