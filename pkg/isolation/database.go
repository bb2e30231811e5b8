package isolation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tenantkit/tenantkit/pkg/dialect"
	"github.com/tenantkit/tenantkit/pkg/identifier"
	"github.com/tenantkit/tenantkit/pkg/tenant"
)

// DatabasePlaceholder is the token in a URL template that gets replaced
// with the tenant's database name.
const DatabasePlaceholder = "{database}"

// DatabaseProvider gives every tenant its own database. Per-tenant pools
// are opened lazily and held in an LRU engine cache; the master pool, on
// the management database, runs CREATE/DROP DATABASE.
//
// Only PostgreSQL is supported: other engines either lack online database
// DDL or cannot pool per-database connections usefully.
type DatabaseProvider struct {
	master      Pool
	urlTemplate string
	cache       *EngineCache
	factory     PoolFactory
	descriptor  *SchemaDescriptor
	logger      *slog.Logger
}

// DatabaseOption configures the database provider.
type DatabaseOption func(*DatabaseProvider)

// WithMaxEngines caps the number of cached per-tenant pools.
func WithMaxEngines(n int) DatabaseOption {
	return func(p *DatabaseProvider) {
		p.cache = NewEngineCache(n)
	}
}

// WithPoolFactory overrides how per-tenant pools are opened.
func WithPoolFactory(f PoolFactory) DatabaseOption {
	return func(p *DatabaseProvider) {
		if f != nil {
			p.factory = f
		}
	}
}

// WithDatabaseDescriptor sets the tables created in each new database.
func WithDatabaseDescriptor(d *SchemaDescriptor) DatabaseOption {
	return func(p *DatabaseProvider) {
		p.descriptor = d
	}
}

// WithDatabaseLogger sets the provider's logger.
func WithDatabaseLogger(logger *slog.Logger) DatabaseOption {
	return func(p *DatabaseProvider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewDatabaseProvider creates a database-per-tenant provider. urlTemplate
// must contain the {database} placeholder, or end in a path segment that
// can be swapped for the tenant's database name.
func NewDatabaseProvider(master Pool, urlTemplate string, opts ...DatabaseOption) (*DatabaseProvider, error) {
	if master == nil {
		return nil, errors.New("isolation: master pool is required")
	}
	if d := dialect.Detect(urlTemplate); d != dialect.Postgres {
		return nil, fmt.Errorf("%w: database-per-tenant needs postgres, got %s", ErrUnsupportedDialect, d)
	}

	p := &DatabaseProvider{
		master:      master,
		urlTemplate: urlTemplate,
		cache:       NewEngineCache(DefaultMaxEngines),
		factory:     NewPgxPool,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *DatabaseProvider) Strategy() tenant.IsolationStrategy {
	return tenant.IsolationDatabase
}

func (p *DatabaseProvider) OpenSession(ctx context.Context, t *tenant.Tenant) (*Session, error) {
	pool, err := p.tenantPool(ctx, t)
	if err != nil {
		return nil, err
	}
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire tenant connection: %w", err)
	}
	// The whole database belongs to the tenant; nothing to reset.
	return newSession(conn, t.ID), nil
}

// ApplyFilter is a no-op: each tenant owns its database.
func (p *DatabaseProvider) ApplyFilter(t *tenant.Tenant, q Query) Query {
	return q
}

func (p *DatabaseProvider) Provision(ctx context.Context, t *tenant.Tenant) error {
	name := DatabaseNameFor(t)
	if err := identifier.AssertSafeDatabaseName(name, "provision"); err != nil {
		return err
	}

	exists, err := p.databaseExists(ctx, name)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProvisionFailed, err)
	}
	if !exists {
		// CREATE DATABASE cannot run inside a transaction and takes no
		// bind parameters; the name is validated above.
		if _, err := p.master.Exec(ctx, "CREATE DATABASE "+name); err != nil {
			return fmt.Errorf("%w: create database %s: %v", ErrProvisionFailed, name, err)
		}
	}

	if p.descriptor != nil {
		if err := p.createTables(ctx, t); err != nil {
			return err
		}
	}

	p.logger.InfoContext(ctx, "tenant database provisioned", "tenant_id", t.ID, "database", name)
	return nil
}

func (p *DatabaseProvider) createTables(ctx context.Context, t *tenant.Tenant) error {
	pool, err := p.tenantPool(ctx, t)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProvisionFailed, err)
	}
	stmts, err := p.descriptor.CreateSQL("")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProvisionFailed, err)
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("%w: create tables: %v", ErrProvisionFailed, err)
		}
	}
	return nil
}

func (p *DatabaseProvider) Destroy(ctx context.Context, t *tenant.Tenant) error {
	name := DatabaseNameFor(t)
	if err := identifier.AssertSafeDatabaseName(name, "destroy"); err != nil {
		return err
	}

	// Drop our cached pool first, then evict everyone else still attached
	// so DROP DATABASE doesn't block on lingering sessions.
	p.cache.Remove(t.ID)
	if _, err := p.master.Exec(ctx,
		"SELECT pg_terminate_backend(pid) FROM pg_stat_activity WHERE datname = $1 AND pid <> pg_backend_pid()",
		name); err != nil {
		return fmt.Errorf("%w: terminate sessions on %s: %v", ErrDestroyFailed, name, err)
	}
	if _, err := p.master.Exec(ctx, "DROP DATABASE IF EXISTS "+name); err != nil {
		return fmt.Errorf("%w: drop database %s: %v", ErrDestroyFailed, name, err)
	}

	p.logger.InfoContext(ctx, "tenant database destroyed", "tenant_id", t.ID, "database", name)
	return nil
}

func (p *DatabaseProvider) VerifyIsolation(ctx context.Context, t *tenant.Tenant) error {
	name := DatabaseNameFor(t)
	exists, err := p.databaseExists(ctx, name)
	if err != nil {
		return fmt.Errorf("verify database %s: %w", name, err)
	}
	if !exists {
		return fmt.Errorf("%w: database %s does not exist", ErrVerificationFailed, name)
	}
	return nil
}

// Close shuts down every cached per-tenant pool. The master pool belongs
// to the caller.
func (p *DatabaseProvider) Close(ctx context.Context) error {
	p.cache.CloseAll()
	return nil
}

// CachedEngines reports how many per-tenant pools are currently held.
func (p *DatabaseProvider) CachedEngines() int {
	return p.cache.Len()
}

func (p *DatabaseProvider) tenantPool(ctx context.Context, t *tenant.Tenant) (Pool, error) {
	url, err := p.tenantURL(t)
	if err != nil {
		return nil, err
	}
	return p.cache.GetOrCreate(ctx, t.ID, func(ctx context.Context) (Pool, error) {
		return p.factory(ctx, url)
	})
}

// tenantURL builds the tenant's connection URL: an explicit DatabaseURL on
// the record wins, then the {database} placeholder, then swapping the
// template's trailing path segment.
func (p *DatabaseProvider) tenantURL(t *tenant.Tenant) (string, error) {
	if t.DatabaseURL != "" {
		return t.DatabaseURL, nil
	}

	name := DatabaseNameFor(t)
	if err := identifier.AssertSafeDatabaseName(name, "tenant url"); err != nil {
		return "", err
	}
	if strings.Contains(p.urlTemplate, DatabasePlaceholder) {
		return strings.ReplaceAll(p.urlTemplate, DatabasePlaceholder, name), nil
	}

	base, query, _ := strings.Cut(p.urlTemplate, "?")
	idx := strings.LastIndexByte(base, '/')
	if idx <= strings.Index(base, "://")+2 {
		return "", fmt.Errorf("url template %q has no database segment", p.urlTemplate)
	}
	url := base[:idx+1] + name
	if query != "" {
		url += "?" + query
	}
	return url, nil
}

func (p *DatabaseProvider) databaseExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := p.master.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)", name,
	).Scan(&exists)
	return exists, err
}
