// Package pg bootstraps the PostgreSQL layer shared by the tenancy
// packages: pooled connections via pgx/v5, goose migrations, health
// checks, and error classification helpers.
//
// Config is populated from environment variables via github.com/caarlos0/env
// and controls pool limits, retry behavior, and migration paths. Connect
// opens a *pgxpool.Pool with retry so services survive a database that is
// still starting up:
//
//	var cfg pg.Config
//	if err := env.Parse(&cfg); err != nil {
//		panic(err)
//	}
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		panic(err)
//	}
//	defer pool.Close()
//
// Migrate runs goose migrations against the shared pool. MigrateSchema
// runs the same migration set inside a single tenant schema by pinning
// search_path on a dedicated connection, which is how schema-per-tenant
// deployments roll out DDL changes tenant by tenant.
//
// Error helpers such as IsDuplicateKeyError and IsInvalidCatalogError
// classify *pgconn.PgError values so callers do not match on SQLSTATE
// strings themselves.
package pg
