package tenant

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Resolver extracts the tenant a request belongs to. Implementations
// return ErrResolutionFailed (wrapped) when the request carries no usable
// identifier and ErrNotFound when the identifier matches no tenant.
type Resolver interface {
	Resolve(r *http.Request) (*Tenant, error)
}

// PathRewriter is implemented by resolvers that consume part of the URL
// path. The middleware applies the rewrite after successful resolution so
// downstream routing sees tenant-free paths.
type PathRewriter interface {
	Rewrite(r *http.Request) *http.Request
}

// RateLimitResult reports the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed    bool
	Limit      int64
	Remaining  int64
	RetryAfter time.Duration
}

// RateLimiter enforces per-tenant request quotas. Check errors are treated
// as fail-open: the request proceeds and the error is logged.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (RateLimitResult, error)
}

// Middleware creates HTTP middleware that resolves the tenant for each
// request, verifies it may serve traffic, applies the rate limit, and binds
// the tenant to the request context.
func Middleware(resolver Resolver, opts ...Option) func(http.Handler) http.Handler {
	cfg := &config{
		errorHandler:  defaultErrorHandler,
		requireActive: true,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions || skipPath(cfg.skipPaths, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			t, err := resolver.Resolve(r)
			if err != nil {
				cfg.errorHandler(w, r, err)
				return
			}

			if cfg.requireActive && !t.IsActive() {
				if cfg.logger != nil {
					cfg.logger.WarnContext(r.Context(), "inactive tenant rejected",
						"tenant_id", t.ID, "status", string(t.Status))
				}
				cfg.errorHandler(w, r, ErrInactive)
				return
			}

			if cfg.limiter != nil {
				res, lerr := cfg.limiter.Allow(r.Context(), t.ID)
				switch {
				case lerr != nil:
					// Fail open: a broken limiter backend must not take
					// the application down with it.
					if cfg.logger != nil {
						cfg.logger.ErrorContext(r.Context(), "rate limit check failed, allowing request",
							"tenant_id", t.ID, "error", lerr)
					}
				case !res.Allowed:
					w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(res.Limit, 10))
					w.Header().Set("X-RateLimit-Remaining", "0")
					w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(res.RetryAfter)))
					cfg.errorHandler(w, r, ErrRateLimited)
					return
				default:
					w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(res.Limit, 10))
					w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
				}
			}

			if rw, ok := resolver.(PathRewriter); ok {
				r = rw.Rewrite(r)
			}
			if cfg.exposeHeader {
				w.Header().Set("X-Tenant-ID", t.ID)
			}

			ctx := WithMeta(WithTenant(r.Context(), t))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireTenant creates middleware that rejects requests without a bound
// tenant. Place it after Middleware on routes that must be tenant-scoped.
func RequireTenant(opts ...Option) func(http.Handler) http.Handler {
	cfg := &config{errorHandler: defaultErrorHandler}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := FromContext(r.Context()); !ok {
				cfg.errorHandler(w, r, ErrNoTenantInContext)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// skipPath matches exact paths, or prefixes when the pattern ends with "*".
func skipPath(patterns []string, path string) bool {
	for _, p := range patterns {
		if prefix, ok := strings.CutSuffix(p, "*"); ok {
			if strings.HasPrefix(path, prefix) {
				return true
			}
			continue
		}
		if path == p {
			return true
		}
	}
	return false
}

func retryAfterSeconds(d time.Duration) int {
	secs := int(d.Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}
