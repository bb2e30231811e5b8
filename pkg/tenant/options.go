package tenant

import (
	"errors"
	"log/slog"
	"net/http"
)

// ErrorHandler handles errors that occur during tenant resolution.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// config holds middleware configuration.
type config struct {
	errorHandler  ErrorHandler
	skipPaths     []string
	requireActive bool
	limiter       RateLimiter
	logger        *slog.Logger
	exposeHeader  bool
}

// Option configures the middleware.
type Option func(*config)

// WithErrorHandler sets a custom error handler.
func WithErrorHandler(handler ErrorHandler) Option {
	return func(c *config) {
		if handler != nil {
			c.errorHandler = handler
		}
	}
}

// WithSkipPaths sets paths that bypass tenant resolution. A pattern ending
// in "*" matches by prefix; anything else matches exactly.
func WithSkipPaths(paths []string) Option {
	return func(c *config) {
		c.skipPaths = paths
	}
}

// WithRequireActive controls whether non-active tenants are rejected.
// Enabled by default.
func WithRequireActive(require bool) Option {
	return func(c *config) {
		c.requireActive = require
	}
}

// WithRateLimiter enables per-tenant rate limiting.
func WithRateLimiter(limiter RateLimiter) Option {
	return func(c *config) {
		c.limiter = limiter
	}
}

// WithLogger sets a custom logger for the middleware.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithTenantHeader echoes the resolved tenant ID in the X-Tenant-ID
// response header. Useful while debugging resolution setups.
func WithTenantHeader() Option {
	return func(c *config) {
		c.exposeHeader = true
	}
}

func defaultErrorHandler(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrResolutionFailed), errors.Is(err, ErrInvalidIdentifier):
		http.Error(w, "Invalid tenant identifier", http.StatusBadRequest)
	case errors.Is(err, ErrNotFound):
		http.Error(w, "Tenant not found", http.StatusNotFound)
	case errors.Is(err, ErrInactive):
		http.Error(w, "Tenant is inactive", http.StatusForbidden)
	case errors.Is(err, ErrRateLimited):
		http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
	default:
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
