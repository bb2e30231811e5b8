package resolver

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/tenantkit/tenantkit/pkg/tenant"
)

// Func is an adapter to allow the use of ordinary functions as resolvers.
type Func func(r *http.Request) (*tenant.Tenant, error)

// Resolve calls the function.
func (f Func) Resolve(r *http.Request) (*tenant.Tenant, error) {
	return f(r)
}

// Composite tries multiple resolvers in order. The first success wins;
// resolution failures fall through to the next resolver, while lookup
// errors (unknown or inactive tenants) stop the chain.
type Composite struct {
	resolvers []tenant.Resolver
}

// NewComposite creates a resolver that tries each given resolver in order.
func NewComposite(resolvers ...tenant.Resolver) *Composite {
	return &Composite{resolvers: resolvers}
}

func (c *Composite) Resolve(r *http.Request) (*tenant.Tenant, error) {
	var lastErr error
	for _, res := range c.resolvers {
		t, err := res.Resolve(r)
		if err == nil {
			return t, nil
		}
		if !isResolutionFailure(err) {
			return nil, err
		}
		lastErr = err
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, failf("composite", "no resolvers configured")
}

func isResolutionFailure(err error) bool {
	return errors.Is(err, tenant.ErrResolutionFailed)
}

// failf builds a resolution failure carrying the strategy name, so logs
// and error handlers can tell which extraction path gave up.
func failf(strategy, format string, args ...any) error {
	return fmt.Errorf("%w: %s (strategy: %s)", tenant.ErrResolutionFailed, fmt.Sprintf(format, args...), strategy)
}

// lookup loads the tenant behind a validated slug, annotating not-found
// errors with the slug.
func lookup(r *http.Request, dir tenant.Directory, slug string) (*tenant.Tenant, error) {
	t, err := dir.GetByIdentifier(r.Context(), slug)
	if err != nil {
		return nil, fmt.Errorf("lookup %q: %w", slug, err)
	}
	return t, nil
}
