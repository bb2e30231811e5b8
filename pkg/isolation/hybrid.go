package isolation

import (
	"context"
	"errors"
	"fmt"

	"github.com/tenantkit/tenantkit/pkg/tenant"
)

// HybridProvider routes each tenant to one of two sub-providers: premium
// tenants get the stronger (usually costlier) strategy, everyone else the
// standard one. A per-tenant override on the record beats the premium set.
type HybridProvider struct {
	standard   Provider
	premium    Provider
	premiumSet map[string]struct{}
}

// NewHybridProvider combines two providers. The sub-strategies must differ
// and neither may itself be hybrid. premiumTenants lists tenant IDs or
// identifiers that route to the premium provider.
func NewHybridProvider(standard, premium Provider, premiumTenants []string) (*HybridProvider, error) {
	if standard == nil || premium == nil {
		return nil, errors.New("isolation: hybrid needs both providers")
	}
	if standard.Strategy() == premium.Strategy() {
		return nil, fmt.Errorf("isolation: hybrid providers must differ, both are %s", standard.Strategy())
	}
	if standard.Strategy() == tenant.IsolationHybrid || premium.Strategy() == tenant.IsolationHybrid {
		return nil, errors.New("isolation: hybrid providers cannot nest")
	}

	set := make(map[string]struct{}, len(premiumTenants))
	for _, id := range premiumTenants {
		set[id] = struct{}{}
	}
	return &HybridProvider{standard: standard, premium: premium, premiumSet: set}, nil
}

func (p *HybridProvider) Strategy() tenant.IsolationStrategy {
	return tenant.IsolationHybrid
}

// Route returns the provider serving the given tenant.
func (p *HybridProvider) Route(t *tenant.Tenant) Provider {
	if t.Isolation != "" {
		if t.Isolation == p.premium.Strategy() {
			return p.premium
		}
		if t.Isolation == p.standard.Strategy() {
			return p.standard
		}
	}
	if _, ok := p.premiumSet[t.ID]; ok {
		return p.premium
	}
	if _, ok := p.premiumSet[t.Identifier]; ok {
		return p.premium
	}
	return p.standard
}

func (p *HybridProvider) OpenSession(ctx context.Context, t *tenant.Tenant) (*Session, error) {
	return p.Route(t).OpenSession(ctx, t)
}

func (p *HybridProvider) ApplyFilter(t *tenant.Tenant, q Query) Query {
	return p.Route(t).ApplyFilter(t, q)
}

func (p *HybridProvider) Provision(ctx context.Context, t *tenant.Tenant) error {
	return p.Route(t).Provision(ctx, t)
}

func (p *HybridProvider) Destroy(ctx context.Context, t *tenant.Tenant) error {
	return p.Route(t).Destroy(ctx, t)
}

func (p *HybridProvider) VerifyIsolation(ctx context.Context, t *tenant.Tenant) error {
	return p.Route(t).VerifyIsolation(ctx, t)
}

func (p *HybridProvider) Close(ctx context.Context) error {
	return errors.Join(p.standard.Close(ctx), p.premium.Close(ctx))
}
