package isolation

import "errors"

var (
	// ErrUnsupportedDialect is returned when a provider is constructed for
	// a database engine that cannot carry its strategy.
	ErrUnsupportedDialect = errors.New("isolation: dialect does not support this strategy")

	// ErrProvisionFailed is returned when tenant provisioning could not
	// complete. Partial work is rolled back before it surfaces.
	ErrProvisionFailed = errors.New("isolation: provisioning failed")

	// ErrDestroyFailed is returned when tearing down a tenant's data fails.
	ErrDestroyFailed = errors.New("isolation: destroy failed")

	// ErrDescriptorRequired is returned by operations that need a schema
	// descriptor when none was configured.
	ErrDescriptorRequired = errors.New("isolation: schema descriptor required")

	// ErrVerificationFailed is returned when an isolation check finds the
	// tenant's barriers missing or incomplete.
	ErrVerificationFailed = errors.New("isolation: verification failed")

	// ErrDataLeakage marks a detected mismatch between expected and actual
	// tenant scoping, such as a connection whose scoping could not be
	// reset before returning to the pool. It must never be swallowed:
	// treat it as an alert, not a retry.
	ErrDataLeakage = errors.New("isolation: possible cross-tenant data leakage")

	// ErrSessionClosed is returned when a closed session is used.
	ErrSessionClosed = errors.New("isolation: session is closed")

	// ErrCacheClosed is returned when the engine cache is used after CloseAll.
	ErrCacheClosed = errors.New("isolation: engine cache is closed")
)
