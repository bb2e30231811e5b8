// Package isolation implements the data isolation strategies that keep
// tenants apart inside a shared deployment:
//
//   - SchemaProvider: one schema per tenant in a shared database, with a
//     table prefix fallback for engines without schemas.
//   - DatabaseProvider: one database per tenant, pools held in an LRU
//     engine cache.
//   - RLSProvider: shared tables guarded by PostgreSQL row-level security
//     policies.
//   - HybridProvider: routes premium tenants to one strategy and the rest
//     to another.
//
// Providers hand out Sessions: connections already scoped to a tenant
// that undo their scoping on Close, so pooled connections never carry one
// tenant's state into another tenant's request. When the undo statement
// itself fails, Close destroys the connection instead of releasing it
// and reports ErrDataLeakage so callers can alert on it.
//
// Identifier hygiene is absolute. Schema and database names pass the SQL
// identifier check before any interpolation, and values that can ride in
// bind parameters (the RLS tenant variable, delete predicates) always do.
package isolation
