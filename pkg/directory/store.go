package directory

import (
	"context"
	"errors"

	"github.com/tenantkit/tenantkit/pkg/tenant"
)

// ErrAlreadyExists is returned when creating a tenant whose ID or
// identifier is already taken.
var ErrAlreadyExists = errors.New("tenant already exists")

// Store is a writable tenant directory. It extends the read-only
// tenant.Directory the resolvers consume with the lifecycle operations a
// control plane needs.
type Store interface {
	tenant.Directory

	// Create registers a new tenant. Fails with ErrAlreadyExists when the
	// ID or identifier is taken, and with tenant.ErrInvalidIdentifier when
	// the identifier is malformed.
	Create(ctx context.Context, t *tenant.Tenant) error

	// Update replaces the stored record. The ID must exist.
	Update(ctx context.Context, t *tenant.Tenant) error

	// SetStatus transitions the tenant's lifecycle state.
	SetStatus(ctx context.Context, id string, status tenant.Status) error

	// Delete removes the record permanently. Data teardown is the
	// isolation provider's job; this only forgets the directory entry.
	Delete(ctx context.Context, id string) error

	// List returns all tenants ordered by identifier.
	List(ctx context.Context) ([]*tenant.Tenant, error)

	// Count returns the number of registered tenants.
	Count(ctx context.Context) (int, error)
}
