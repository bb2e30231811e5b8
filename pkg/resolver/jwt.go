package resolver

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/tenantkit/tenantkit/pkg/identifier"
	"github.com/tenantkit/tenantkit/pkg/jwt"
	"github.com/tenantkit/tenantkit/pkg/tenant"
)

// DefaultTenantClaim is the claim the JWT resolver reads the tenant
// identifier from when no override is configured.
const DefaultTenantClaim = "tenant_id"

// JWT resolves the tenant from a signed bearer token. All token failures
// surface as the same content-free resolution error so responses never
// reveal whether a signature, expiry, or claim check failed; the specific
// cause goes to the logger.
type JWT struct {
	dir    tenant.Directory
	svc    *jwt.Service
	claim  string
	logger *slog.Logger
}

// JWTOption configures the JWT resolver.
type JWTOption func(*JWT)

// WithTenantClaim overrides the claim carrying the tenant identifier.
func WithTenantClaim(name string) JWTOption {
	return func(j *JWT) {
		if name != "" {
			j.claim = name
		}
	}
}

// WithJWTLogger sets the logger token failures are reported to.
func WithJWTLogger(logger *slog.Logger) JWTOption {
	return func(j *JWT) {
		j.logger = logger
	}
}

// NewJWT creates a resolver that verifies HS256 bearer tokens with the
// given secret. Secrets shorter than 32 bytes are rejected.
func NewJWT(dir tenant.Directory, secret string, opts ...JWTOption) (*JWT, error) {
	svc, err := jwt.NewFromString(secret)
	if err != nil {
		return nil, err
	}

	j := &JWT{dir: dir, svc: svc, claim: DefaultTenantClaim, logger: slog.Default()}
	for _, opt := range opts {
		opt(j)
	}
	return j, nil
}

func (j *JWT) Resolve(r *http.Request) (*tenant.Tenant, error) {
	token, ok := bearerToken(r)
	if !ok {
		return nil, j.reject(r, "missing bearer token")
	}

	claims := jwt.MapClaims{}
	if err := j.svc.Verify(token, &claims); err != nil {
		return nil, j.reject(r, "token verification failed", "error", err)
	}

	slug := claims.String(j.claim)
	if slug == "" {
		return nil, j.reject(r, "token carries no tenant claim", "claim", j.claim)
	}
	if !identifier.ValidTenantIdentifier(slug) {
		return nil, j.reject(r, "token carries a malformed tenant identifier")
	}
	return lookup(r, j.dir, slug)
}

// reject logs the real cause and returns the uniform client-facing error.
func (j *JWT) reject(r *http.Request, msg string, args ...any) error {
	if j.logger != nil {
		j.logger.DebugContext(r.Context(), "jwt tenant resolution rejected",
			append([]any{slog.String("reason", msg)}, args...)...)
	}
	return failf("jwt", "invalid or missing bearer token")
}

func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(auth, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
