package tenant

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Status describes a tenant's lifecycle state. Only active tenants may
// serve traffic.
type Status string

const (
	StatusActive       Status = "active"
	StatusSuspended    Status = "suspended"
	StatusProvisioning Status = "provisioning"
	StatusDeleted      Status = "deleted"
)

// IsolationStrategy names a data isolation approach. A tenant may carry a
// per-tenant override; otherwise the deployment default applies.
type IsolationStrategy string

const (
	IsolationSchema   IsolationStrategy = "schema"
	IsolationDatabase IsolationStrategy = "database"
	IsolationRLS      IsolationStrategy = "rls"
	IsolationHybrid   IsolationStrategy = "hybrid"
)

// Tenant represents a tenant and the routing information needed to reach
// its data. Identifier is the URL-safe slug used in subdomains, paths, and
// headers; ID is the stable internal key.
type Tenant struct {
	ID          string            `json:"id"`
	Identifier  string            `json:"identifier"`
	Name        string            `json:"name"`
	Status      Status            `json:"status"`
	Isolation   IsolationStrategy `json:"isolation,omitempty"`
	DatabaseURL string            `json:"database_url,omitempty"`
	SchemaName  string            `json:"schema_name,omitempty"`
	Metadata    map[string]any    `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// IsActive reports whether the tenant may serve requests.
func (t *Tenant) IsActive() bool {
	return t != nil && t.Status == StatusActive
}

// NewID generates a tenant ID.
func NewID() string {
	return "tenant-" + uuid.NewString()
}

// Directory loads tenant records from a data source.
type Directory interface {
	// GetByID retrieves a tenant by its internal ID.
	// Returns ErrNotFound if no tenant matches.
	GetByID(ctx context.Context, id string) (*Tenant, error)

	// GetByIdentifier retrieves a tenant by its URL-safe slug.
	// Returns ErrNotFound if no tenant matches.
	GetByIdentifier(ctx context.Context, identifier string) (*Tenant, error)
}
