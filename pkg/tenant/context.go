package tenant

import (
	"context"
	"log/slog"
)

// contextKey is a private type to prevent collisions with other context keys.
type contextKey struct{}

// WithTenant returns a child context with the tenant bound. The binding is
// scoped to the returned context; the parent is unaffected, so concurrent
// requests never see each other's tenant.
func WithTenant(ctx context.Context, t *Tenant) context.Context {
	return context.WithValue(ctx, contextKey{}, t)
}

// FromContext retrieves the tenant from the context.
// Returns nil, false if no tenant is bound.
func FromContext(ctx context.Context) (*Tenant, bool) {
	t, ok := ctx.Value(contextKey{}).(*Tenant)
	return t, ok && t != nil
}

// CurrentTenant retrieves the tenant from the context, returning
// ErrNoTenantInContext when none is bound. Use this in code paths where a
// missing tenant is an error rather than an optional state.
func CurrentTenant(ctx context.Context) (*Tenant, error) {
	t, ok := FromContext(ctx)
	if !ok {
		return nil, ErrNoTenantInContext
	}
	return t, nil
}

// IDFromContext retrieves just the tenant ID from the context.
// Returns empty string and false if no tenant is bound.
func IDFromContext(ctx context.Context) (string, bool) {
	t, ok := FromContext(ctx)
	if !ok {
		return "", false
	}
	return t.ID, true
}

// MustFromContext retrieves the tenant from the context.
// Panics if no tenant is bound. Use this only in handlers that sit behind
// RequireTenant.
func MustFromContext(ctx context.Context) *Tenant {
	t, ok := FromContext(ctx)
	if !ok {
		panic("tenant: no tenant in context")
	}
	return t
}

// LoggerExtractor returns a logger context extractor that adds the bound
// tenant ID to every log record.
func LoggerExtractor() func(ctx context.Context) (slog.Attr, bool) {
	return func(ctx context.Context) (slog.Attr, bool) {
		if id, ok := IDFromContext(ctx); ok {
			return slog.String("tenant_id", id), true
		}
		return slog.Attr{}, false
	}
}
