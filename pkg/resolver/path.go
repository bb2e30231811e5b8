package resolver

import (
	"net/http"
	"strings"

	"github.com/tenantkit/tenantkit/pkg/identifier"
	"github.com/tenantkit/tenantkit/pkg/tenant"
)

// DefaultPathPrefix is the path prefix the path resolver expects tenant
// slugs under when no override is configured.
const DefaultPathPrefix = "/tenants"

// Path resolves the tenant from the first URL path segment after a fixed
// prefix: "acme" from "/tenants/acme/orders". It implements
// tenant.PathRewriter so the consumed segments can be stripped before
// downstream routing.
type Path struct {
	dir    tenant.Directory
	prefix string
}

// PathOption configures the path resolver.
type PathOption func(*Path)

// WithPathPrefix overrides the prefix tenant slugs appear under.
func WithPathPrefix(prefix string) PathOption {
	return func(p *Path) {
		if prefix != "" {
			p.prefix = "/" + strings.Trim(prefix, "/")
		}
	}
}

// NewPath creates a resolver that reads the tenant slug from the URL path.
func NewPath(dir tenant.Directory, opts ...PathOption) *Path {
	p := &Path{dir: dir, prefix: DefaultPathPrefix}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Path) Resolve(r *http.Request) (*tenant.Tenant, error) {
	slug, _, ok := p.split(r.URL.Path)
	if !ok {
		return nil, failf("path", "path %q does not start with %s/{tenant}", r.URL.Path, p.prefix)
	}
	if !identifier.ValidTenantIdentifier(slug) {
		return nil, failf("path", "malformed identifier %q", slug)
	}
	return lookup(r, p.dir, slug)
}

// Rewrite strips the "/prefix/{tenant}" segments so downstream handlers
// see tenant-free paths. Requests that don't match are returned unchanged.
func (p *Path) Rewrite(r *http.Request) *http.Request {
	_, rest, ok := p.split(r.URL.Path)
	if !ok {
		return r
	}
	r2 := r.Clone(r.Context())
	r2.URL.Path = rest
	r2.URL.RawPath = ""
	return r2
}

// split returns the tenant segment and the remaining path. The remainder
// always starts with "/".
func (p *Path) split(path string) (slug, rest string, ok bool) {
	trimmed, found := strings.CutPrefix(path, p.prefix+"/")
	if !found {
		return "", "", false
	}
	slug, rest, _ = strings.Cut(trimmed, "/")
	if slug == "" {
		return "", "", false
	}
	return slug, "/" + rest, true
}
