package resolver

import (
	"errors"
	"net/http"
	"strings"

	"github.com/tenantkit/tenantkit/pkg/identifier"
	"github.com/tenantkit/tenantkit/pkg/tenant"
)

// Subdomain resolves the tenant from the request host, treating the label
// directly under the configured base domain as the tenant identifier:
// "acme" from "acme.saas.example.com" with base domain "saas.example.com".
type Subdomain struct {
	dir          tenant.Directory
	suffix       string // always carries a leading dot
	trustForward bool
}

// SubdomainOption configures the subdomain resolver.
type SubdomainOption func(*Subdomain)

// WithForwardedHost makes the resolver prefer the X-Forwarded-Host header
// over the request host. Enable only behind a proxy that sets it; the
// header is client-controlled otherwise.
func WithForwardedHost() SubdomainOption {
	return func(s *Subdomain) {
		s.trustForward = true
	}
}

// NewSubdomain creates a resolver for the given base domain. The base
// domain may be given with or without a leading dot; an empty one is
// rejected, since no host could ever match it.
func NewSubdomain(dir tenant.Directory, baseDomain string, opts ...SubdomainOption) (*Subdomain, error) {
	suffix := strings.ToLower(strings.TrimSpace(baseDomain))
	suffix = strings.TrimPrefix(suffix, ".")
	if suffix == "" {
		return nil, errors.New("resolver: base domain is required")
	}
	suffix = "." + suffix

	s := &Subdomain{dir: dir, suffix: suffix}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Subdomain) Resolve(r *http.Request) (*tenant.Tenant, error) {
	host := r.Host
	if s.trustForward {
		if fwd := r.Header.Get("X-Forwarded-Host"); fwd != "" {
			host = fwd
		}
	}
	host = strings.ToLower(stripPort(host))

	if !strings.HasSuffix(host, s.suffix) {
		return nil, failf("subdomain", "host %q is not under the base domain", host)
	}

	sub := strings.TrimSuffix(host, s.suffix)
	if sub == "" {
		return nil, failf("subdomain", "request to the apex domain carries no tenant")
	}

	// With nested subdomains the label adjacent to the base domain names
	// the tenant: a.b.base -> b.
	if idx := strings.LastIndexByte(sub, '.'); idx != -1 {
		sub = sub[idx+1:]
	}
	if sub == "www" {
		return nil, failf("subdomain", "www is not a tenant")
	}
	if !identifier.ValidTenantIdentifier(sub) {
		return nil, failf("subdomain", "malformed identifier %q", sub)
	}
	return lookup(r, s.dir, sub)
}

func stripPort(host string) string {
	if idx := strings.LastIndexByte(host, ':'); idx != -1 && !strings.Contains(host[idx:], "]") {
		return host[:idx]
	}
	return host
}
