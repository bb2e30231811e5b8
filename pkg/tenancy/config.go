package tenancy

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/tenantkit/tenantkit/pkg/jwt"
	"github.com/tenantkit/tenantkit/pkg/tenant"
)

// Resolution strategies accepted by Config.Resolution.
const (
	ResolutionHeader    = "header"
	ResolutionSubdomain = "subdomain"
	ResolutionPath      = "path"
	ResolutionJWT       = "jwt"
)

// Config holds the deployment-level tenancy settings. Fields are populated
// from environment variables via caarlos0/env; Validate runs eagerly so a
// misconfigured service fails at startup, not on the first request.
type Config struct {
	Resolution     string `env:"TENANCY_RESOLUTION" envDefault:"header"`          // Resolution selects how requests are mapped to tenants: header, subdomain, path, or jwt.
	HeaderName     string `env:"TENANCY_HEADER_NAME" envDefault:"X-Tenant-ID"`    // HeaderName is the request header carrying the tenant identifier (header resolution).
	BaseDomain     string `env:"TENANCY_BASE_DOMAIN"`                             // BaseDomain is the shared domain suffix tenant subdomains hang off (subdomain resolution).
	PathPrefix     string `env:"TENANCY_PATH_PREFIX" envDefault:"/tenants"`       // PathPrefix is the URL prefix in front of the tenant slug (path resolution).
	JWTSecret      string `env:"TENANCY_JWT_SECRET"`                              // JWTSecret is the HMAC signing key for bearer tokens (jwt resolution). Minimum 32 bytes.
	JWTTenantClaim string `env:"TENANCY_JWT_CLAIM" envDefault:"tenant_id"`        // JWTTenantClaim is the claim holding the tenant identifier.

	Isolation           string   `env:"TENANCY_ISOLATION" envDefault:"schema"`           // Isolation selects the data isolation strategy: schema, database, rls, or hybrid.
	DatabaseURLTemplate string   `env:"TENANCY_DATABASE_URL_TEMPLATE"`                   // DatabaseURLTemplate builds per-tenant connection URLs, {database} is replaced with the tenant database name.
	PremiumTenants      []string `env:"TENANCY_PREMIUM_TENANTS" envSeparator:","`        // PremiumTenants lists tenant IDs or identifiers routed to the premium strategy (hybrid isolation).
	StandardIsolation   string   `env:"TENANCY_STANDARD_ISOLATION" envDefault:"schema"`  // StandardIsolation is the strategy for non-premium tenants (hybrid isolation).
	PremiumIsolation    string   `env:"TENANCY_PREMIUM_ISOLATION" envDefault:"database"` // PremiumIsolation is the strategy for premium tenants (hybrid isolation).
	MaxCachedEngines    int      `env:"TENANCY_MAX_CACHED_ENGINES" envDefault:"50"`      // MaxCachedEngines caps the number of per-tenant connection pools kept open.

	RateLimit       int           `env:"TENANCY_RATE_LIMIT" envDefault:"0"`         // RateLimit is the number of requests allowed per tenant per window. 0 disables rate limiting.
	RateLimitWindow time.Duration `env:"TENANCY_RATE_LIMIT_WINDOW" envDefault:"1m"` // RateLimitWindow is the sliding window the limit applies to.

	DirectoryCacheTTL time.Duration `env:"TENANCY_DIRECTORY_CACHE_TTL" envDefault:"0"` // DirectoryCacheTTL caches directory lookups in process for this long. 0 disables the cache.

	RequireActive bool     `env:"TENANCY_REQUIRE_ACTIVE" envDefault:"true"` // RequireActive rejects suspended and provisioning tenants with 403.
	SkipPaths     []string `env:"TENANCY_SKIP_PATHS" envSeparator:","`      // SkipPaths lists paths excluded from tenant resolution. A trailing * matches by prefix.
	ExposeHeader  bool     `env:"TENANCY_EXPOSE_HEADER"`                    // ExposeHeader echoes the resolved tenant ID in the X-Tenant-ID response header.
}

var dotenvOnce sync.Once

// Load populates cfg from the environment, reading a .env file first when
// one exists, and validates the result.
func Load(cfg *Config) error {
	dotenvOnce.Do(func() {
		// The .env file is optional.
		_ = godotenv.Load()
	})
	if err := env.Parse(cfg); err != nil {
		return errors.Join(ErrInvalidConfig, err)
	}
	return cfg.Validate()
}

// Validate checks the configuration for internal consistency.
func (c Config) Validate() error {
	switch c.Resolution {
	case ResolutionHeader:
		if c.HeaderName == "" {
			return fmt.Errorf("%w: header resolution requires a header name", ErrInvalidConfig)
		}
	case ResolutionSubdomain:
		if c.BaseDomain == "" {
			return fmt.Errorf("%w: subdomain resolution requires TENANCY_BASE_DOMAIN", ErrInvalidConfig)
		}
	case ResolutionPath:
		if c.PathPrefix == "" {
			return fmt.Errorf("%w: path resolution requires a path prefix", ErrInvalidConfig)
		}
	case ResolutionJWT:
		if len(c.JWTSecret) < jwt.MinKeyLength {
			return fmt.Errorf("%w: jwt resolution requires a secret of at least %d bytes", ErrInvalidConfig, jwt.MinKeyLength)
		}
	default:
		return fmt.Errorf("%w: unknown resolution strategy %q", ErrInvalidConfig, c.Resolution)
	}

	switch tenant.IsolationStrategy(c.Isolation) {
	case tenant.IsolationSchema, tenant.IsolationRLS:
	case tenant.IsolationDatabase:
		if c.DatabaseURLTemplate == "" {
			return fmt.Errorf("%w: database isolation requires TENANCY_DATABASE_URL_TEMPLATE", ErrInvalidConfig)
		}
	case tenant.IsolationHybrid:
		if err := c.validateHybrid(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: unknown isolation strategy %q", ErrInvalidConfig, c.Isolation)
	}

	if c.RateLimit < 0 {
		return fmt.Errorf("%w: rate limit must not be negative", ErrInvalidConfig)
	}
	if c.RateLimit > 0 && c.RateLimitWindow <= 0 {
		return fmt.Errorf("%w: rate limit window must be positive", ErrInvalidConfig)
	}
	if c.MaxCachedEngines < 0 {
		return fmt.Errorf("%w: max cached engines must not be negative", ErrInvalidConfig)
	}

	return nil
}

func (c Config) validateHybrid() error {
	for _, s := range []string{c.StandardIsolation, c.PremiumIsolation} {
		switch tenant.IsolationStrategy(s) {
		case tenant.IsolationSchema, tenant.IsolationRLS:
		case tenant.IsolationDatabase:
			if c.DatabaseURLTemplate == "" {
				return fmt.Errorf("%w: hybrid sub-strategy database requires TENANCY_DATABASE_URL_TEMPLATE", ErrInvalidConfig)
			}
		case tenant.IsolationHybrid:
			return fmt.Errorf("%w: hybrid sub-strategies must not nest", ErrInvalidConfig)
		default:
			return fmt.Errorf("%w: unknown hybrid sub-strategy %q", ErrInvalidConfig, s)
		}
	}
	if c.StandardIsolation == c.PremiumIsolation {
		return fmt.Errorf("%w: hybrid sub-strategies must differ", ErrInvalidConfig)
	}
	return nil
}
