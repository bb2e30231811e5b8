package tenant

import "errors"

var (
	// ErrNotFound is returned when a tenant cannot be found.
	ErrNotFound = errors.New("tenant not found")

	// ErrInvalidIdentifier is returned when the identifier format is invalid.
	ErrInvalidIdentifier = errors.New("invalid tenant identifier")

	// ErrResolutionFailed is returned when a resolver cannot extract a
	// tenant identifier from the request.
	ErrResolutionFailed = errors.New("tenant resolution failed")

	// ErrNoTenantInContext is returned when no tenant is bound to the context.
	ErrNoTenantInContext = errors.New("no tenant in context")

	// ErrInactive is returned when the resolved tenant is not active.
	ErrInactive = errors.New("tenant is inactive")

	// ErrRateLimited is returned when the tenant exceeded its request quota.
	ErrRateLimited = errors.New("tenant rate limit exceeded")
)
