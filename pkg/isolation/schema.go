package isolation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tenantkit/tenantkit/pkg/dialect"
	"github.com/tenantkit/tenantkit/pkg/identifier"
	"github.com/tenantkit/tenantkit/pkg/tenant"
)

// SchemaProvider isolates tenants in per-tenant schemas of one shared
// database. On engines without schema support it degrades to per-tenant
// table prefixes inside the shared namespace.
type SchemaProvider struct {
	pool       Pool
	d          dialect.Dialect
	descriptor *SchemaDescriptor
	logger     *slog.Logger
	prefixMode bool
}

// SchemaOption configures the schema provider.
type SchemaOption func(*SchemaProvider)

// WithSchemaDescriptor sets the tables created during provisioning.
func WithSchemaDescriptor(d *SchemaDescriptor) SchemaOption {
	return func(p *SchemaProvider) {
		p.descriptor = d
	}
}

// WithSchemaLogger sets the provider's logger.
func WithSchemaLogger(logger *slog.Logger) SchemaOption {
	return func(p *SchemaProvider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewSchemaProvider creates a schema-per-tenant provider on the given
// pool. When the dialect has no schema support the provider falls back to
// table prefixes and logs the downgrade once.
func NewSchemaProvider(pool Pool, d dialect.Dialect, opts ...SchemaOption) (*SchemaProvider, error) {
	if pool == nil {
		return nil, errors.New("isolation: pool is required")
	}

	p := &SchemaProvider{pool: pool, d: d, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}

	if !d.SupportsSchemas() {
		p.prefixMode = true
		p.logger.Warn("dialect has no schema support, falling back to table prefixes",
			"dialect", d.String())
	}
	return p, nil
}

func (p *SchemaProvider) Strategy() tenant.IsolationStrategy {
	return tenant.IsolationSchema
}

func (p *SchemaProvider) OpenSession(ctx context.Context, t *tenant.Tenant) (*Session, error) {
	if p.prefixMode {
		conn, err := p.pool.Acquire(ctx)
		if err != nil {
			return nil, fmt.Errorf("acquire connection: %w", err)
		}
		s := newSession(conn, t.ID)
		s.tablePrefix = identifier.TablePrefix(t.Identifier)
		return s, nil
	}

	schema := SchemaNameFor(t)
	if err := identifier.AssertSafeSchemaName(schema, "open session"); err != nil {
		return nil, err
	}
	setSQL, err := p.d.SetSchemaSQL(schema)
	if err != nil {
		return nil, err
	}
	resetSQL, err := p.d.ResetSchemaSQL()
	if err != nil {
		return nil, err
	}

	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	if _, err := conn.Exec(ctx, setSQL); err != nil {
		conn.Release()
		return nil, fmt.Errorf("select schema %s: %w", schema, err)
	}
	return newSession(conn, t.ID, resetSQL), nil
}

// ApplyFilter appends the tenant predicate for tables that carry a
// tenant column. In prefix mode all tenants share one namespace and this
// rewrite is the only isolation, so the column defaults to tenant_id
// when no descriptor declares one. In schema mode the schema boundary
// already separates tenants and the predicate is only added when a
// descriptor asks for it.
func (p *SchemaProvider) ApplyFilter(t *tenant.Tenant, q Query) Query {
	var col string
	if p.descriptor != nil {
		col = p.descriptor.TenantColumn()
	}
	if col == "" {
		if !p.prefixMode {
			return q
		}
		col = "tenant_id"
	}
	return q.Where(fmt.Sprintf("%s = $%d", col, q.NextArg()), t.ID)
}

func (p *SchemaProvider) Provision(ctx context.Context, t *tenant.Tenant) error {
	if p.prefixMode {
		return p.provisionPrefixed(ctx, t)
	}

	schema := SchemaNameFor(t)
	if err := identifier.AssertSafeSchemaName(schema, "provision"); err != nil {
		return err
	}

	if _, err := p.pool.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+schema); err != nil {
		return fmt.Errorf("%w: create schema %s: %v", ErrProvisionFailed, schema, err)
	}

	if p.descriptor != nil {
		stmts, err := p.descriptor.CreateSQL(schema)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrProvisionFailed, err)
		}
		for _, stmt := range stmts {
			if _, err := p.pool.Exec(ctx, stmt); err != nil {
				p.rollbackSchema(ctx, schema)
				return fmt.Errorf("%w: create tables in %s: %v", ErrProvisionFailed, schema, err)
			}
		}
	}

	p.logger.InfoContext(ctx, "tenant schema provisioned", "tenant_id", t.ID, "schema", schema)
	return nil
}

func (p *SchemaProvider) provisionPrefixed(ctx context.Context, t *tenant.Tenant) error {
	if p.descriptor == nil {
		return fmt.Errorf("%w: prefix mode provisioning", ErrDescriptorRequired)
	}

	prefix := identifier.TablePrefix(t.Identifier)
	stmts, err := p.descriptor.Prefixed(prefix).CreateSQL("")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProvisionFailed, err)
	}
	for _, stmt := range stmts {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("%w: create prefixed tables: %v", ErrProvisionFailed, err)
		}
	}

	p.logger.InfoContext(ctx, "tenant tables provisioned", "tenant_id", t.ID, "prefix", prefix)
	return nil
}

// rollbackSchema drops a half-provisioned schema so a retry starts clean.
func (p *SchemaProvider) rollbackSchema(ctx context.Context, schema string) {
	if _, err := p.pool.Exec(ctx, "DROP SCHEMA IF EXISTS "+schema+" CASCADE"); err != nil {
		p.logger.ErrorContext(ctx, "rollback of partial schema failed",
			"schema", schema, "error", err)
	}
}

func (p *SchemaProvider) Destroy(ctx context.Context, t *tenant.Tenant) error {
	if p.prefixMode {
		return p.destroyPrefixed(ctx, t)
	}

	schema := SchemaNameFor(t)
	if err := identifier.AssertSafeSchemaName(schema, "destroy"); err != nil {
		return err
	}
	if _, err := p.pool.Exec(ctx, "DROP SCHEMA IF EXISTS "+schema+" CASCADE"); err != nil {
		return fmt.Errorf("%w: drop schema %s: %v", ErrDestroyFailed, schema, err)
	}

	p.logger.InfoContext(ctx, "tenant schema destroyed", "tenant_id", t.ID, "schema", schema)
	return nil
}

func (p *SchemaProvider) destroyPrefixed(ctx context.Context, t *tenant.Tenant) error {
	if p.descriptor == nil {
		return fmt.Errorf("%w: prefix mode destroy", ErrDescriptorRequired)
	}

	prefix := identifier.TablePrefix(t.Identifier)
	prefixed := p.descriptor.Prefixed(prefix)
	if err := prefixed.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrDestroyFailed, err)
	}
	// Reverse declaration order so dependents drop before their targets.
	for i := len(prefixed.Tables) - 1; i >= 0; i-- {
		name := prefixed.Tables[i].Name
		if _, err := p.pool.Exec(ctx, "DROP TABLE IF EXISTS "+name); err != nil {
			return fmt.Errorf("%w: drop table %s: %v", ErrDestroyFailed, name, err)
		}
	}
	return nil
}

func (p *SchemaProvider) VerifyIsolation(ctx context.Context, t *tenant.Tenant) error {
	if p.prefixMode {
		// Nothing engine-side to check: prefixed tables either exist or
		// queries fail loudly.
		return nil
	}

	schema := SchemaNameFor(t)
	var exists bool
	err := p.pool.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM information_schema.schemata WHERE schema_name = $1)", schema,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("verify schema %s: %w", schema, err)
	}
	if !exists {
		return fmt.Errorf("%w: schema %s does not exist", ErrVerificationFailed, schema)
	}
	return nil
}

// Close is a no-op: the shared pool belongs to the caller.
func (p *SchemaProvider) Close(ctx context.Context) error {
	return nil
}
