package directory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tenantkit/tenantkit/pkg/identifier"
	"github.com/tenantkit/tenantkit/pkg/tenant"
)

// Memory is an in-process Store. Suitable for tests and single-instance
// setups; records live only as long as the process.
type Memory struct {
	mu     sync.RWMutex
	byID   map[string]*tenant.Tenant
	bySlug map[string]string // identifier -> id
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		byID:   make(map[string]*tenant.Tenant),
		bySlug: make(map[string]string),
	}
}

func (m *Memory) GetByID(ctx context.Context, id string) (*tenant.Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %s", tenant.ErrNotFound, id)
	}
	return copyTenant(t), nil
}

func (m *Memory) GetByIdentifier(ctx context.Context, slug string) (*tenant.Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.bySlug[slug]
	if !ok {
		return nil, fmt.Errorf("%w: identifier %s", tenant.ErrNotFound, slug)
	}
	return copyTenant(m.byID[id]), nil
}

func (m *Memory) Create(ctx context.Context, t *tenant.Tenant) error {
	if !identifier.ValidTenantIdentifier(t.Identifier) {
		return fmt.Errorf("%w: %q", tenant.ErrInvalidIdentifier, t.Identifier)
	}
	if t.ID == "" {
		t.ID = tenant.NewID()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byID[t.ID]; ok {
		return fmt.Errorf("%w: id %s", ErrAlreadyExists, t.ID)
	}
	if _, ok := m.bySlug[t.Identifier]; ok {
		return fmt.Errorf("%w: identifier %s", ErrAlreadyExists, t.Identifier)
	}

	now := time.Now()
	t.CreatedAt = now
	t.UpdatedAt = now
	m.byID[t.ID] = copyTenant(t)
	m.bySlug[t.Identifier] = t.ID
	return nil
}

func (m *Memory) Update(ctx context.Context, t *tenant.Tenant) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev, ok := m.byID[t.ID]
	if !ok {
		return fmt.Errorf("%w: id %s", tenant.ErrNotFound, t.ID)
	}
	if t.Identifier != prev.Identifier {
		if !identifier.ValidTenantIdentifier(t.Identifier) {
			return fmt.Errorf("%w: %q", tenant.ErrInvalidIdentifier, t.Identifier)
		}
		if _, taken := m.bySlug[t.Identifier]; taken {
			return fmt.Errorf("%w: identifier %s", ErrAlreadyExists, t.Identifier)
		}
		delete(m.bySlug, prev.Identifier)
		m.bySlug[t.Identifier] = t.ID
	}

	t.CreatedAt = prev.CreatedAt
	t.UpdatedAt = time.Now()
	m.byID[t.ID] = copyTenant(t)
	return nil
}

func (m *Memory) SetStatus(ctx context.Context, id string, status tenant.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.byID[id]
	if !ok {
		return fmt.Errorf("%w: id %s", tenant.ErrNotFound, id)
	}
	t.Status = status
	t.UpdatedAt = time.Now()
	return nil
}

func (m *Memory) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.byID[id]
	if !ok {
		return fmt.Errorf("%w: id %s", tenant.ErrNotFound, id)
	}
	delete(m.byID, id)
	delete(m.bySlug, t.Identifier)
	return nil
}

func (m *Memory) List(ctx context.Context) ([]*tenant.Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*tenant.Tenant, 0, len(m.byID))
	for _, t := range m.byID {
		out = append(out, copyTenant(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identifier < out[j].Identifier })
	return out, nil
}

func (m *Memory) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byID), nil
}

// copyTenant keeps callers from mutating stored records through shared
// pointers.
func copyTenant(t *tenant.Tenant) *tenant.Tenant {
	cp := *t
	if t.Metadata != nil {
		cp.Metadata = make(map[string]any, len(t.Metadata))
		for k, v := range t.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}
