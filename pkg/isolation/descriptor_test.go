package isolation_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tenantkit/tenantkit/pkg/identifier"
	"github.com/tenantkit/tenantkit/pkg/isolation"
)

func testDescriptor() *isolation.SchemaDescriptor {
	return &isolation.SchemaDescriptor{
		Tables: []isolation.Table{
			{
				Name: "customers",
				Columns: []isolation.Column{
					{Name: "id", Type: "uuid"},
					{Name: "tenant_id", Type: "text"},
					{Name: "name", Type: "text", Nullable: true},
				},
				PrimaryKey:   []string{"id"},
				TenantColumn: "tenant_id",
			},
			{
				Name: "orders",
				Columns: []isolation.Column{
					{Name: "id", Type: "uuid"},
					{Name: "tenant_id", Type: "text"},
					{Name: "customer_id", Type: "uuid"},
					{Name: "created_at", Type: "timestamptz", Default: "now()"},
				},
				PrimaryKey: []string{"id"},
				ForeignKeys: []isolation.ForeignKey{
					{Columns: []string{"customer_id"}, RefTable: "customers", RefColumns: []string{"id"}},
				},
				TenantColumn: "tenant_id",
			},
		},
	}
}

func TestDescriptorCreateSQL(t *testing.T) {
	t.Parallel()

	stmts, err := testDescriptor().CreateSQL("tenant_acme")
	require.NoError(t, err)
	require.Len(t, stmts, 2)

	assert.Contains(t, stmts[0], "CREATE TABLE IF NOT EXISTS tenant_acme.customers (")
	assert.Contains(t, stmts[0], "id uuid NOT NULL")
	assert.Contains(t, stmts[0], "name text")
	assert.NotContains(t, stmts[0], "name text NOT NULL")
	assert.Contains(t, stmts[0], "PRIMARY KEY (id)")

	assert.Contains(t, stmts[1], "created_at timestamptz NOT NULL DEFAULT now()")
	assert.Contains(t, stmts[1], "REFERENCES tenant_acme.customers (id)")
}

func TestDescriptorCreateSQLUnqualified(t *testing.T) {
	t.Parallel()

	stmts, err := testDescriptor().CreateSQL("")
	require.NoError(t, err)
	assert.Contains(t, stmts[0], "CREATE TABLE IF NOT EXISTS customers (")
}

func TestDescriptorRejectsUnsafeNames(t *testing.T) {
	t.Parallel()

	d := &isolation.SchemaDescriptor{Tables: []isolation.Table{
		{Name: "orders; DROP TABLE users", Columns: []isolation.Column{{Name: "id", Type: "uuid"}}},
	}}
	_, err := d.CreateSQL("")
	require.ErrorIs(t, err, identifier.ErrUnsafeIdentifier)

	d = testDescriptor()
	_, err = d.CreateSQL(`tenant"; --`)
	require.ErrorIs(t, err, identifier.ErrUnsafeIdentifier)

	t.Run("tenant column", func(t *testing.T) {
		t.Parallel()

		d := testDescriptor()
		d.Tables[0].TenantColumn = `tenant_id = '' OR 1=1; --`
		require.ErrorIs(t, d.Validate(), identifier.ErrUnsafeIdentifier)
	})

	t.Run("primary key", func(t *testing.T) {
		t.Parallel()

		d := testDescriptor()
		d.Tables[0].PrimaryKey = []string{`id); DROP TABLE orders; --`}
		require.ErrorIs(t, d.Validate(), identifier.ErrUnsafeIdentifier)
	})

	t.Run("foreign key columns", func(t *testing.T) {
		t.Parallel()

		d := testDescriptor()
		d.Tables[1].ForeignKeys[0].RefColumns = []string{`id) ON DELETE CASCADE; --`}
		require.ErrorIs(t, d.Validate(), identifier.ErrUnsafeIdentifier)
	})
}

func TestDescriptorPrefixed(t *testing.T) {
	t.Parallel()

	prefixed := testDescriptor().Prefixed("t_acme_")
	assert.Equal(t, "t_acme_customers", prefixed.Tables[0].Name)
	assert.Equal(t, "t_acme_orders", prefixed.Tables[1].Name)
	assert.Equal(t, "t_acme_customers", prefixed.Tables[1].ForeignKeys[0].RefTable)

	// Original untouched.
	orig := testDescriptor()
	assert.Equal(t, "customers", orig.Tables[0].Name)

	stmts, err := prefixed.CreateSQL("")
	require.NoError(t, err)
	assert.Contains(t, stmts[1], "REFERENCES t_acme_customers (id)")
}
