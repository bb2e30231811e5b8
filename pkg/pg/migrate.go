package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/tenantkit/tenantkit/pkg/identifier"
)

// logger is the subset of slog used for migration output routing.
type logger interface {
	InfoContext(ctx context.Context, msg string, args ...any)
	ErrorContext(ctx context.Context, msg string, args ...any)
}

// Migrate applies schema migrations against the shared pool using goose.
// The pgx pool is bridged to database/sql because goose only speaks the
// standard library interface.
func Migrate(ctx context.Context, pool *pgxpool.Pool, cfg Config, log logger) error {
	if err := checkMigrationsPath(cfg); err != nil {
		return err
	}

	db := stdlib.OpenDBFromPool(pool)
	defer closeDB(ctx, db, log)

	return runMigrations(ctx, db, cfg, log)
}

// MigrateSchema applies migrations inside a single tenant schema. It opens
// a dedicated database/sql connection whose search_path is pinned to the
// schema through the options connection parameter, so migration DDL that
// does not qualify table names lands in the tenant schema.
func MigrateSchema(ctx context.Context, connString, schema string, cfg Config, log logger) error {
	if err := identifier.AssertSafeSchemaName(schema, "migration target"); err != nil {
		return errors.Join(ErrFailedToApplyMigrations, err)
	}
	if err := checkMigrationsPath(cfg); err != nil {
		return err
	}

	dsn, err := schemaDSN(connString, schema)
	if err != nil {
		return errors.Join(ErrFailedToApplyMigrations, err)
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return errors.Join(ErrFailedToApplyMigrations, err)
	}
	defer closeDB(ctx, db, log)

	return runMigrations(ctx, db, cfg, log)
}

// schemaDSN appends options=-csearch_path=<schema> to the connection URL.
func schemaDSN(connString, schema string) (string, error) {
	u, err := url.Parse(connString)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("options", "-csearch_path="+schema)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func checkMigrationsPath(cfg Config) error {
	if cfg.MigrationsPath == "" {
		return errors.Join(ErrFailedToApplyMigrations, ErrMigrationPathNotProvided)
	}
	if _, err := os.Stat(cfg.MigrationsPath); err != nil {
		if os.IsNotExist(err) {
			return errors.Join(ErrMigrationsDirNotFound, err)
		}
		return errors.Join(ErrFailedToApplyMigrations, err)
	}
	return nil
}

func runMigrations(ctx context.Context, db *sql.DB, cfg Config, log logger) error {
	goose.SetLogger(newSlogAdapter(log))
	goose.SetTableName(cfg.MigrationsTable)

	if err := goose.SetDialect("postgres"); err != nil {
		return errors.Join(ErrFailedToApplyMigrations, err)
	}

	if err := goose.UpContext(ctx, db, cfg.MigrationsPath); err != nil {
		return errors.Join(ErrFailedToApplyMigrations, err)
	}

	return nil
}

func closeDB(ctx context.Context, db *sql.DB, log logger) {
	if err := db.Close(); err != nil {
		log.ErrorContext(ctx, "failed to close database connection", "error", err)
	}
}

// migrateSlogAdapter bridges goose's Printf-style logging to structured
// logging. Fatalf maps to ErrorContext, Printf to InfoContext.
type migrateSlogAdapter struct {
	log logger
}

func newSlogAdapter(log logger) goose.Logger {
	return &migrateSlogAdapter{log: log}
}

func (a *migrateSlogAdapter) Fatalf(format string, v ...any) {
	a.log.ErrorContext(context.Background(), fmt.Sprintf(format, v...))
}

func (a *migrateSlogAdapter) Printf(format string, v ...any) {
	a.log.InfoContext(context.Background(), fmt.Sprintf(format, v...))
}
