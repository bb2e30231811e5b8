package dialect

import (
	"fmt"
	"strings"
)

// Dialect identifies a database engine family. Capability lookups on a
// Dialect drive which isolation strategies are available for a deployment.
type Dialect string

const (
	Postgres Dialect = "postgres"
	MySQL    Dialect = "mysql"
	SQLite   Dialect = "sqlite"
	MSSQL    Dialect = "mssql"
	Unknown  Dialect = "unknown"
)

// Detect maps a database URL scheme to a Dialect. Driver-qualified schemes
// like postgresql+asyncpg or mysql2 resolve to their base dialect. URLs
// without a scheme, and schemes no engine family claims, return Unknown.
func Detect(url string) Dialect {
	scheme, _, ok := strings.Cut(url, "://")
	if !ok {
		return Unknown
	}
	scheme = strings.ToLower(scheme)
	// strip driver suffix: postgresql+asyncpg -> postgresql
	if base, _, found := strings.Cut(scheme, "+"); found {
		scheme = base
	}

	switch {
	case scheme == "postgres" || scheme == "postgresql":
		return Postgres
	case scheme == "mysql" || scheme == "mysql2" || scheme == "mariadb":
		return MySQL
	case scheme == "sqlite" || scheme == "sqlite3" || scheme == "file":
		return SQLite
	case scheme == "mssql" || scheme == "sqlserver":
		return MSSQL
	default:
		return Unknown
	}
}

// SupportsSchemas reports whether the dialect has real per-connection
// namespaces that schema-based isolation can use.
func (d Dialect) SupportsSchemas() bool {
	return d == Postgres || d == MSSQL
}

// SupportsRLS reports whether the dialect enforces row-level security
// policies in the engine.
func (d Dialect) SupportsRLS() bool {
	return d == Postgres
}

// RequiresSinglePool reports whether the dialect cannot serve concurrent
// writers from independent connections, so all tenants must share one pool.
func (d Dialect) RequiresSinglePool() bool {
	return d == SQLite
}

// String returns the dialect name.
func (d Dialect) String() string { return string(d) }

// SetSchemaSQL returns the statement that scopes a connection to the given
// schema. The schema name is interpolated because schema-selection
// statements do not accept bind parameters; callers must validate the name
// first.
func (d Dialect) SetSchemaSQL(schema string) (string, error) {
	switch d {
	case Postgres:
		return fmt.Sprintf("SET search_path TO %s", schema), nil
	case MSSQL:
		return fmt.Sprintf("ALTER USER CURRENT_USER WITH DEFAULT_SCHEMA = %s", schema), nil
	default:
		return "", fmt.Errorf("dialect %s does not support schemas", d)
	}
}

// ResetSchemaSQL returns the statement that restores a connection's default
// namespace before it goes back to the pool.
func (d Dialect) ResetSchemaSQL() (string, error) {
	switch d {
	case Postgres:
		return "SET search_path TO public", nil
	case MSSQL:
		return "ALTER USER CURRENT_USER WITH DEFAULT_SCHEMA = dbo", nil
	default:
		return "", fmt.Errorf("dialect %s does not support schemas", d)
	}
}

// SetTenantSQL returns the statement that binds the current tenant id to
// the connection for row-level security policies. The tenant id is passed
// as a bind parameter, never interpolated.
func (d Dialect) SetTenantSQL() (string, error) {
	if d != Postgres {
		return "", fmt.Errorf("dialect %s does not support row-level security", d)
	}
	return "SELECT set_config('app.current_tenant', $1, false)", nil
}

// ResetTenantSQL returns the statement that clears the tenant binding set
// by SetTenantSQL.
func (d Dialect) ResetTenantSQL() (string, error) {
	if d != Postgres {
		return "", fmt.Errorf("dialect %s does not support row-level security", d)
	}
	return "SELECT set_config('app.current_tenant', '', false)", nil
}
