package isolation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tenantkit/tenantkit/pkg/dialect"
	"github.com/tenantkit/tenantkit/pkg/tenant"
)

// TenantSettingName is the session variable RLS policies read the current
// tenant from.
const TenantSettingName = "app.current_tenant"

// RLSProvider keeps all tenants in shared tables and relies on PostgreSQL
// row-level security policies keyed on a session variable. The variable is
// set with a bound parameter when a session opens and cleared on close.
//
// On engines without RLS the provider refuses to construct unless the
// filter fallback is explicitly enabled, in which case ApplyFilter is the
// only isolation and the engine enforces nothing.
type RLSProvider struct {
	pool       Pool
	d          dialect.Dialect
	descriptor *SchemaDescriptor
	logger     *slog.Logger
	fallback   bool
}

// RLSOption configures the RLS provider.
type RLSOption func(*RLSProvider)

// WithRLSDescriptor sets the tables provisioning creates policies for.
func WithRLSDescriptor(d *SchemaDescriptor) RLSOption {
	return func(p *RLSProvider) {
		p.descriptor = d
	}
}

// WithRLSLogger sets the provider's logger.
func WithRLSLogger(logger *slog.Logger) RLSOption {
	return func(p *RLSProvider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithFilterFallback permits construction on engines without row-level
// security. Isolation then rests entirely on ApplyFilter rewrites in the
// application, which a single missed call defeats. The downgrade is logged
// at construction.
func WithFilterFallback() RLSOption {
	return func(p *RLSProvider) {
		p.fallback = true
	}
}

// NewRLSProvider creates a row-level security provider on the given pool.
func NewRLSProvider(pool Pool, d dialect.Dialect, opts ...RLSOption) (*RLSProvider, error) {
	if pool == nil {
		return nil, errors.New("isolation: pool is required")
	}

	p := &RLSProvider{pool: pool, d: d, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}

	if !d.SupportsRLS() {
		if !p.fallback {
			return nil, fmt.Errorf("%w: row-level security needs postgres, got %s", ErrUnsupportedDialect, d)
		}
		p.logger.Warn("engine lacks row-level security, isolation depends on query filters alone",
			"dialect", d.String())
	}
	return p, nil
}

func (p *RLSProvider) Strategy() tenant.IsolationStrategy {
	return tenant.IsolationRLS
}

func (p *RLSProvider) OpenSession(ctx context.Context, t *tenant.Tenant) (*Session, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	if p.fallback && !p.d.SupportsRLS() {
		return newSession(conn, t.ID), nil
	}

	setSQL, err := p.d.SetTenantSQL()
	if err != nil {
		conn.Release()
		return nil, err
	}
	resetSQL, err := p.d.ResetTenantSQL()
	if err != nil {
		conn.Release()
		return nil, err
	}
	if _, err := conn.Exec(ctx, setSQL, t.ID); err != nil {
		conn.Release()
		return nil, fmt.Errorf("bind tenant to session: %w", err)
	}
	return newSession(conn, t.ID, resetSQL), nil
}

// ApplyFilter appends the tenant predicate for tables that carry a tenant
// column. With RLS active this is belt and braces; in fallback mode it is
// the isolation.
func (p *RLSProvider) ApplyFilter(t *tenant.Tenant, q Query) Query {
	col := p.tenantColumn()
	if col == "" {
		return q
	}
	return q.Where(fmt.Sprintf("%s = $%d", col, q.NextArg()), t.ID)
}

func (p *RLSProvider) Provision(ctx context.Context, t *tenant.Tenant) error {
	if p.descriptor == nil {
		return fmt.Errorf("%w: rls provisioning", ErrDescriptorRequired)
	}

	stmts, err := p.descriptor.CreateSQL("")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProvisionFailed, err)
	}
	for _, stmt := range stmts {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("%w: create tables: %v", ErrProvisionFailed, err)
		}
	}
	if p.fallback && !p.d.SupportsRLS() {
		return nil
	}

	for _, table := range p.descriptor.Tables {
		if table.TenantColumn == "" {
			continue
		}
		policy := fmt.Sprintf(
			"ALTER TABLE %[1]s ENABLE ROW LEVEL SECURITY; "+
				"ALTER TABLE %[1]s FORCE ROW LEVEL SECURITY; "+
				"DROP POLICY IF EXISTS tenant_isolation ON %[1]s; "+
				"CREATE POLICY tenant_isolation ON %[1]s "+
				"USING (%[2]s = current_setting('%[3]s'))",
			table.Name, table.TenantColumn, TenantSettingName)
		if _, err := p.pool.Exec(ctx, policy); err != nil {
			return fmt.Errorf("%w: install policy on %s: %v", ErrProvisionFailed, table.Name, err)
		}
	}

	p.logger.InfoContext(ctx, "row level security provisioned", "tenant_id", t.ID)
	return nil
}

// Destroy deletes the tenant's rows table by table. There is no schema or
// database to drop; shared tables stay in place for the other tenants.
func (p *RLSProvider) Destroy(ctx context.Context, t *tenant.Tenant) error {
	if p.descriptor == nil {
		return fmt.Errorf("%w: rls destroy", ErrDescriptorRequired)
	}
	// Table and column names are interpolated into the DELETE statements
	// below, so they pass the identifier check first.
	if err := p.descriptor.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrDestroyFailed, err)
	}

	// Reverse order so child rows go before the rows they reference.
	for i := len(p.descriptor.Tables) - 1; i >= 0; i-- {
		table := p.descriptor.Tables[i]
		if table.TenantColumn == "" {
			continue
		}
		stmt := fmt.Sprintf("DELETE FROM %s WHERE %s = $1", table.Name, table.TenantColumn)
		if _, err := p.pool.Exec(ctx, stmt, t.ID); err != nil {
			return fmt.Errorf("%w: delete from %s: %v", ErrDestroyFailed, table.Name, err)
		}
	}

	p.logger.InfoContext(ctx, "tenant rows destroyed", "tenant_id", t.ID)
	return nil
}

func (p *RLSProvider) VerifyIsolation(ctx context.Context, t *tenant.Tenant) error {
	if p.fallback && !p.d.SupportsRLS() {
		return fmt.Errorf("%w: engine enforces no isolation in filter fallback mode", ErrVerificationFailed)
	}
	if p.descriptor == nil {
		return fmt.Errorf("%w: rls verification", ErrDescriptorRequired)
	}

	for _, table := range p.descriptor.Tables {
		if table.TenantColumn == "" {
			continue
		}
		var count int
		err := p.pool.QueryRow(ctx,
			"SELECT count(*) FROM pg_policies WHERE tablename = $1 AND policyname = 'tenant_isolation'",
			table.Name,
		).Scan(&count)
		if err != nil {
			return fmt.Errorf("verify policy on %s: %w", table.Name, err)
		}
		if count == 0 {
			return fmt.Errorf("%w: table %s has no tenant_isolation policy", ErrVerificationFailed, table.Name)
		}
	}
	return nil
}

// Close is a no-op: the shared pool belongs to the caller.
func (p *RLSProvider) Close(ctx context.Context) error {
	return nil
}

// tenantColumn returns the tenant column shared by the descriptor's
// tables, or "tenant_id" when no descriptor is configured.
func (p *RLSProvider) tenantColumn() string {
	if p.descriptor == nil {
		return "tenant_id"
	}
	return p.descriptor.TenantColumn()
}
