package resolver

import (
	"net/http"
	"strings"

	"github.com/tenantkit/tenantkit/pkg/identifier"
	"github.com/tenantkit/tenantkit/pkg/tenant"
)

// DefaultHeaderName is the header read by the header resolver when no
// override is configured.
const DefaultHeaderName = "X-Tenant-ID"

// Header resolves the tenant from a request header.
type Header struct {
	dir    tenant.Directory
	header string
}

// HeaderOption configures the header resolver.
type HeaderOption func(*Header)

// WithHeaderName overrides the header the identifier is read from.
func WithHeaderName(name string) HeaderOption {
	return func(h *Header) {
		if name != "" {
			h.header = name
		}
	}
}

// NewHeader creates a resolver that reads the tenant identifier from a
// request header, X-Tenant-ID by default.
func NewHeader(dir tenant.Directory, opts ...HeaderOption) *Header {
	h := &Header{dir: dir, header: DefaultHeaderName}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Header) Resolve(r *http.Request) (*tenant.Tenant, error) {
	value := strings.TrimSpace(r.Header.Get(h.header))
	if value == "" {
		return nil, failf("header", "missing %s header", h.header)
	}
	if !identifier.ValidTenantIdentifier(value) {
		return nil, failf("header", "malformed identifier in %s header", h.header)
	}
	return lookup(r, h.dir, value)
}
