package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/tenantkit/tenantkit/pkg/identifier"
	"github.com/tenantkit/tenantkit/pkg/isolation"
	"github.com/tenantkit/tenantkit/pkg/tenant"
)

// tenantsSchema is the directory's own table. It lives in the shared
// management database alongside whatever isolation strategy the tenants
// themselves use.
const tenantsSchema = `
CREATE TABLE IF NOT EXISTS tenants (
	id           text PRIMARY KEY,
	identifier   text NOT NULL UNIQUE,
	name         text NOT NULL DEFAULT '',
	status       text NOT NULL DEFAULT 'provisioning',
	isolation    text NOT NULL DEFAULT '',
	database_url text NOT NULL DEFAULT '',
	schema_name  text NOT NULL DEFAULT '',
	metadata     jsonb NOT NULL DEFAULT '{}',
	created_at   timestamptz NOT NULL DEFAULT now(),
	updated_at   timestamptz NOT NULL DEFAULT now()
)`

const tenantColumns = "id, identifier, name, status, isolation, database_url, schema_name, metadata, created_at, updated_at"

// Postgres is a Store backed by a tenants table in PostgreSQL.
type Postgres struct {
	db isolation.DB
}

// NewPostgres creates a store on the given pool.
func NewPostgres(db isolation.DB) *Postgres {
	return &Postgres{db: db}
}

// EnsureSchema creates the tenants table if it is missing.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, tenantsSchema); err != nil {
		return fmt.Errorf("create tenants table: %w", err)
	}
	return nil
}

func (p *Postgres) GetByID(ctx context.Context, id string) (*tenant.Tenant, error) {
	return p.getBy(ctx, "id", id)
}

func (p *Postgres) GetByIdentifier(ctx context.Context, slug string) (*tenant.Tenant, error) {
	return p.getBy(ctx, "identifier", slug)
}

func (p *Postgres) getBy(ctx context.Context, column, value string) (*tenant.Tenant, error) {
	row := p.db.QueryRow(ctx,
		"SELECT "+tenantColumns+" FROM tenants WHERE "+column+" = $1", value)
	t, err := scanTenant(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s %s", tenant.ErrNotFound, column, value)
	}
	if err != nil {
		return nil, fmt.Errorf("load tenant by %s: %w", column, err)
	}
	return t, nil
}

func (p *Postgres) Create(ctx context.Context, t *tenant.Tenant) error {
	if !identifier.ValidTenantIdentifier(t.Identifier) {
		return fmt.Errorf("%w: %q", tenant.ErrInvalidIdentifier, t.Identifier)
	}
	if t.ID == "" {
		t.ID = tenant.NewID()
	}
	now := time.Now()
	t.CreatedAt = now
	t.UpdatedAt = now

	_, err := p.db.Exec(ctx, `
		INSERT INTO tenants (`+tenantColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		t.ID, t.Identifier, t.Name, string(t.Status), string(t.Isolation),
		t.DatabaseURL, t.SchemaName, metadataOrEmpty(t.Metadata), t.CreatedAt, t.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, t.Identifier)
	}
	if err != nil {
		return fmt.Errorf("insert tenant: %w", err)
	}
	return nil
}

func (p *Postgres) Update(ctx context.Context, t *tenant.Tenant) error {
	if !identifier.ValidTenantIdentifier(t.Identifier) {
		return fmt.Errorf("%w: %q", tenant.ErrInvalidIdentifier, t.Identifier)
	}
	t.UpdatedAt = time.Now()

	tag, err := p.db.Exec(ctx, `
		UPDATE tenants SET identifier = $2, name = $3, status = $4, isolation = $5,
			database_url = $6, schema_name = $7, metadata = $8, updated_at = $9
		WHERE id = $1`,
		t.ID, t.Identifier, t.Name, string(t.Status), string(t.Isolation),
		t.DatabaseURL, t.SchemaName, metadataOrEmpty(t.Metadata), t.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, t.Identifier)
	}
	if err != nil {
		return fmt.Errorf("update tenant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: id %s", tenant.ErrNotFound, t.ID)
	}
	return nil
}

func (p *Postgres) SetStatus(ctx context.Context, id string, status tenant.Status) error {
	tag, err := p.db.Exec(ctx,
		"UPDATE tenants SET status = $2, updated_at = now() WHERE id = $1", id, string(status))
	if err != nil {
		return fmt.Errorf("set tenant status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: id %s", tenant.ErrNotFound, id)
	}
	return nil
}

func (p *Postgres) Delete(ctx context.Context, id string) error {
	tag, err := p.db.Exec(ctx, "DELETE FROM tenants WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete tenant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: id %s", tenant.ErrNotFound, id)
	}
	return nil
}

func (p *Postgres) List(ctx context.Context) ([]*tenant.Tenant, error) {
	rows, err := p.db.Query(ctx,
		"SELECT "+tenantColumns+" FROM tenants ORDER BY identifier")
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	defer rows.Close()

	var out []*tenant.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tenant: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	return out, nil
}

func (p *Postgres) Count(ctx context.Context) (int, error) {
	var n int
	if err := p.db.QueryRow(ctx, "SELECT count(*) FROM tenants").Scan(&n); err != nil {
		return 0, fmt.Errorf("count tenants: %w", err)
	}
	return n, nil
}

func scanTenant(row pgx.Row) (*tenant.Tenant, error) {
	var t tenant.Tenant
	var status, isolationName string
	err := row.Scan(&t.ID, &t.Identifier, &t.Name, &status, &isolationName,
		&t.DatabaseURL, &t.SchemaName, &t.Metadata, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.Status = tenant.Status(status)
	t.Isolation = tenant.IsolationStrategy(isolationName)
	return &t, nil
}

func metadataOrEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
