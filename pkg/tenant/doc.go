// Package tenant defines the tenant model and the request-scoped machinery
// around it: context binding, directory lookups with caching, and HTTP
// middleware that resolves, gates, and rate limits tenants.
//
// The package is built around three core concepts:
//
//  1. Resolvers extract the tenant an HTTP request belongs to.
//  2. Directories load tenant records from a data source.
//  3. Middleware orchestrates resolution, status checks, rate limiting,
//     and context propagation.
//
// # Usage
//
//	dir := directory.NewMemory()
//	res := resolver.NewHeader(dir)
//
//	mw := tenant.Middleware(res,
//		tenant.WithSkipPaths([]string{"/health", "/static/*"}),
//		tenant.WithRateLimiter(limiter),
//	)
//	router.Use(mw)
//
//	func handler(w http.ResponseWriter, r *http.Request) {
//		t, err := tenant.CurrentTenant(r.Context())
//		if err != nil {
//			// no tenant bound
//		}
//		_ = t
//	}
//
// # Error Handling
//
// Resolution failures map to stable HTTP statuses in the default error
// handler: malformed identifiers to 400, unknown tenants to 404, inactive
// tenants to 403, exceeded quotas to 429 with a Retry-After header, and
// everything else to 500. A custom ErrorHandler can override the mapping.
//
// Rate limiting fails open: if the limiter backend errors, the request
// proceeds and the failure is logged.
//
// Bound contexts also carry a small mutable metadata cell (SetMeta, GetMeta)
// that downstream handlers can use to attach per-request tenant state.
package tenant
