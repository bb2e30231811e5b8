package isolation

import (
	"context"
	"strings"

	"github.com/tenantkit/tenantkit/pkg/identifier"
	"github.com/tenantkit/tenantkit/pkg/tenant"
)

// Provider implements one data isolation strategy. A provider owns the
// connections it hands out: every Session from OpenSession is already
// scoped to the tenant and undoes that scoping on Close.
type Provider interface {
	// Strategy names the isolation strategy this provider implements.
	Strategy() tenant.IsolationStrategy

	// OpenSession returns a tenant-scoped database session. The caller
	// must Close it.
	OpenSession(ctx context.Context, t *tenant.Tenant) (*Session, error)

	// ApplyFilter rewrites a query for strategies that isolate inside
	// shared tables. Strategies with physical separation return the query
	// unchanged.
	ApplyFilter(t *tenant.Tenant, q Query) Query

	// Provision creates the tenant's storage: schema, database, tables,
	// or policies, depending on the strategy. Partial work is rolled back
	// on failure.
	Provision(ctx context.Context, t *tenant.Tenant) error

	// Destroy removes the tenant's data. Irreversible.
	Destroy(ctx context.Context, t *tenant.Tenant) error

	// VerifyIsolation checks that the tenant's isolation barriers exist,
	// returning ErrVerificationFailed when they don't.
	VerifyIsolation(ctx context.Context, t *tenant.Tenant) error

	// Close releases provider-owned resources such as cached pools. The
	// master pool is owned by the caller and stays open.
	Close(ctx context.Context) error
}

// SchemaNameFor returns the schema a tenant's data lives in: the explicit
// SchemaName from the record when set, otherwise tenant_<sanitized slug>.
// The result always passes the SQL identifier check.
func SchemaNameFor(t *tenant.Tenant) string {
	if t.SchemaName != "" {
		return t.SchemaName
	}
	name := "tenant_" + identifier.Sanitize(t.Identifier)
	if len(name) > 63 {
		name = strings.TrimRight(name[:63], "_")
	}
	return name
}

// DatabaseNameFor returns the database name for a tenant under the
// database-per-tenant strategy.
func DatabaseNameFor(t *tenant.Tenant) string {
	name := "tenant_" + identifier.Sanitize(t.Identifier)
	if len(name) > 63 {
		name = strings.TrimRight(name[:63], "_")
	}
	return name
}
