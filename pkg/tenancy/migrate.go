package tenancy

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tenantkit/tenantkit/pkg/isolation"
	"github.com/tenantkit/tenantkit/pkg/pg"
	"github.com/tenantkit/tenantkit/pkg/tenant"
)

// MigrateTenant applies the migration set to a single tenant's namespace.
// Schema tenants get the migrations inside their schema, database tenants
// inside their own database, and RLS tenants share the public schema so a
// single pass covers them.
func (m *Manager) MigrateTenant(ctx context.Context, t *tenant.Tenant, cfg pg.Config) error {
	if m.isClosed() {
		return ErrManagerClosed
	}

	switch m.strategyFor(t) {
	case tenant.IsolationSchema:
		if m.connString == "" {
			return ErrConnStringRequired
		}
		return pg.MigrateSchema(ctx, m.connString, isolation.SchemaNameFor(t), cfg, m.log)

	case tenant.IsolationDatabase:
		url, err := m.tenantDatabaseURL(t)
		if err != nil {
			return err
		}
		return pg.MigrateSchema(ctx, url, "public", cfg, m.log)

	case tenant.IsolationRLS:
		if m.connString == "" {
			return ErrConnStringRequired
		}
		return pg.MigrateSchema(ctx, m.connString, "public", cfg, m.log)

	default:
		return fmt.Errorf("%w: no migration target for strategy", ErrInvalidConfig)
	}
}

// MigrateAll runs MigrateTenant for every active tenant the directory
// lists. Failures are collected so one broken tenant does not block the
// rest of the rollout.
func (m *Manager) MigrateAll(ctx context.Context, cfg pg.Config) error {
	lister, ok := m.dir.(interface {
		List(context.Context) ([]*tenant.Tenant, error)
	})
	if !ok {
		return fmt.Errorf("%w: directory does not support listing tenants", ErrInvalidConfig)
	}

	tenants, err := lister.List(ctx)
	if err != nil {
		return err
	}

	var errs []error
	for _, t := range tenants {
		if !t.IsActive() {
			continue
		}
		if err := m.MigrateTenant(ctx, t, cfg); err != nil {
			m.log.ErrorContext(ctx, "tenant migration failed",
				"tenant_id", t.ID, "error", err)
			errs = append(errs, fmt.Errorf("tenant %s: %w", t.ID, err))
		}
	}
	return errors.Join(errs...)
}

// strategyFor resolves the effective isolation strategy for a tenant,
// following the hybrid provider's routing when one is configured.
func (m *Manager) strategyFor(t *tenant.Tenant) tenant.IsolationStrategy {
	p := m.provider
	if router, ok := p.(interface {
		Route(*tenant.Tenant) isolation.Provider
	}); ok {
		p = router.Route(t)
	}
	return p.Strategy()
}

func (m *Manager) tenantDatabaseURL(t *tenant.Tenant) (string, error) {
	if t.DatabaseURL != "" {
		return t.DatabaseURL, nil
	}
	if m.cfg.DatabaseURLTemplate == "" {
		return "", fmt.Errorf("%w: tenant %s has no database URL and no template is configured", ErrInvalidConfig, t.ID)
	}
	return strings.Replace(m.cfg.DatabaseURLTemplate, isolation.DatabasePlaceholder, isolation.DatabaseNameFor(t), 1), nil
}
