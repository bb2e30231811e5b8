package tenancy

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tenantkit/tenantkit/pkg/audit"
	"github.com/tenantkit/tenantkit/pkg/dialect"
	"github.com/tenantkit/tenantkit/pkg/isolation"
	"github.com/tenantkit/tenantkit/pkg/ratelimit"
	"github.com/tenantkit/tenantkit/pkg/resolver"
	"github.com/tenantkit/tenantkit/pkg/tenant"
)

// Manager wires the tenancy building blocks together: directory, resolver,
// isolation provider, rate limiter, and audit log. It is the single object
// services hold onto; everything else hangs off it.
type Manager struct {
	cfg      Config
	dir      tenant.Directory
	resolver tenant.Resolver
	provider isolation.Provider
	limiter  ratelimit.Limiter
	auditor  audit.Logger
	log      *slog.Logger

	masterPool isolation.Pool
	connString string
	descriptor *isolation.SchemaDescriptor
	redis      redis.UniversalClient
	checks     []func(context.Context) error
	closers    []func() error
	started    time.Time

	mu     sync.Mutex
	closed bool
}

// ManagerOption customizes manager construction.
type ManagerOption func(*Manager)

// WithDirectory sets the tenant directory. Required.
func WithDirectory(dir tenant.Directory) ManagerOption {
	return func(m *Manager) { m.dir = dir }
}

// WithResolver overrides the resolver built from Config.Resolution.
func WithResolver(r tenant.Resolver) ManagerOption {
	return func(m *Manager) { m.resolver = r }
}

// WithProvider overrides the isolation provider built from Config.Isolation.
// Use this when sub-providers need separate master pools.
func WithProvider(p isolation.Provider) ManagerOption {
	return func(m *Manager) { m.provider = p }
}

// WithMasterPool supplies the master database pool and its connection
// string. The provider configured in Config.Isolation is built on top of
// it; the connection string also drives per-tenant migrations.
func WithMasterPool(pool isolation.Pool, connString string) ManagerOption {
	return func(m *Manager) {
		m.masterPool = pool
		m.connString = connString
	}
}

// WithDescriptor sets the schema descriptor used for provisioning.
func WithDescriptor(d *isolation.SchemaDescriptor) ManagerOption {
	return func(m *Manager) { m.descriptor = d }
}

// WithRedis supplies a Redis client. When rate limiting is enabled the
// limiter state moves to Redis so the quota holds across instances.
func WithRedis(client redis.UniversalClient) ManagerOption {
	return func(m *Manager) { m.redis = client }
}

// WithLimiter overrides the rate limiter built from Config.
func WithLimiter(l ratelimit.Limiter) ManagerOption {
	return func(m *Manager) { m.limiter = l }
}

// WithAudit sets the audit logger. Defaults to structured log output.
func WithAudit(a audit.Logger) ManagerOption {
	return func(m *Manager) { m.auditor = a }
}

// WithLogger sets the application logger.
func WithLogger(log *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// WithHealthcheck registers an additional component check run by
// Healthcheck, such as pg.Healthcheck or redis.Healthcheck closures.
func WithHealthcheck(fn func(context.Context) error) ManagerOption {
	return func(m *Manager) {
		if fn != nil {
			m.checks = append(m.checks, fn)
		}
	}
}

// New builds a manager from the validated config and options.
func New(cfg Config, opts ...ManagerOption) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m := &Manager{
		cfg:     cfg,
		log:     slog.Default(),
		started: time.Now(),
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.dir == nil {
		return nil, ErrDirectoryRequired
	}
	if cfg.DirectoryCacheTTL > 0 {
		cached := tenant.NewCachedDirectory(m.dir, tenant.NewInMemoryCache(), cfg.DirectoryCacheTTL)
		m.closers = append(m.closers, cached.Close)
		m.dir = cached
	}

	if m.resolver == nil {
		r, err := m.buildResolver()
		if err != nil {
			return nil, err
		}
		m.resolver = r
	}

	if m.provider == nil {
		if m.masterPool == nil {
			return nil, ErrProviderRequired
		}
		p, err := m.buildProvider()
		if err != nil {
			return nil, err
		}
		m.provider = p
	}

	if m.limiter == nil && cfg.RateLimit > 0 {
		if err := m.buildLimiter(); err != nil {
			return nil, err
		}
	}

	if m.auditor == nil {
		a, err := audit.NewLogger(audit.NewSlogStorage(m.log), audit.WithLogger(m.log))
		if err != nil {
			return nil, err
		}
		m.auditor = a
	}

	return m, nil
}

func (m *Manager) buildResolver() (tenant.Resolver, error) {
	switch m.cfg.Resolution {
	case ResolutionHeader:
		return resolver.NewHeader(m.dir, resolver.WithHeaderName(m.cfg.HeaderName)), nil
	case ResolutionSubdomain:
		return resolver.NewSubdomain(m.dir, m.cfg.BaseDomain)
	case ResolutionPath:
		return resolver.NewPath(m.dir, resolver.WithPathPrefix(m.cfg.PathPrefix)), nil
	case ResolutionJWT:
		return resolver.NewJWT(m.dir, m.cfg.JWTSecret,
			resolver.WithTenantClaim(m.cfg.JWTTenantClaim),
			resolver.WithJWTLogger(m.log))
	default:
		return nil, ErrInvalidConfig
	}
}

func (m *Manager) buildProvider() (isolation.Provider, error) {
	d := dialect.Detect(m.connString)

	if tenant.IsolationStrategy(m.cfg.Isolation) == tenant.IsolationHybrid {
		// Both sub-providers share the master pool. Deployments with
		// separate premium servers build their own providers and pass
		// WithProvider instead.
		standard, err := m.buildStrategy(m.cfg.StandardIsolation, d)
		if err != nil {
			return nil, err
		}
		premium, err := m.buildStrategy(m.cfg.PremiumIsolation, d)
		if err != nil {
			return nil, err
		}
		return isolation.NewHybridProvider(standard, premium, m.cfg.PremiumTenants)
	}

	return m.buildStrategy(m.cfg.Isolation, d)
}

func (m *Manager) buildStrategy(strategy string, d dialect.Dialect) (isolation.Provider, error) {
	switch tenant.IsolationStrategy(strategy) {
	case tenant.IsolationSchema:
		return isolation.NewSchemaProvider(m.masterPool, d,
			isolation.WithSchemaDescriptor(m.descriptor),
			isolation.WithSchemaLogger(m.log))
	case tenant.IsolationRLS:
		return isolation.NewRLSProvider(m.masterPool, d,
			isolation.WithRLSDescriptor(m.descriptor),
			isolation.WithRLSLogger(m.log))
	case tenant.IsolationDatabase:
		opts := []isolation.DatabaseOption{
			isolation.WithDatabaseDescriptor(m.descriptor),
			isolation.WithDatabaseLogger(m.log),
		}
		if m.cfg.MaxCachedEngines > 0 {
			opts = append(opts, isolation.WithMaxEngines(m.cfg.MaxCachedEngines))
		}
		return isolation.NewDatabaseProvider(m.masterPool, m.cfg.DatabaseURLTemplate, opts...)
	default:
		return nil, ErrInvalidConfig
	}
}

func (m *Manager) buildLimiter() error {
	var store ratelimit.Store
	if m.redis != nil {
		store = ratelimit.NewRedisStore(m.redis)
	} else {
		ms := ratelimit.NewMemoryStore()
		m.closers = append(m.closers, ms.Close)
		store = ms
	}

	limiter, err := ratelimit.NewSlidingWindow(store, m.cfg.RateLimit, m.cfg.RateLimitWindow)
	if err != nil {
		return err
	}
	m.limiter = limiter
	return nil
}

// Directory returns the tenant directory the manager was built with.
func (m *Manager) Directory() tenant.Directory { return m.dir }

// Provider returns the isolation provider.
func (m *Manager) Provider() isolation.Provider { return m.provider }

// Middleware returns the HTTP middleware enforcing resolution, active
// status, and rate limits per the manager's configuration.
func (m *Manager) Middleware(extra ...tenant.Option) func(http.Handler) http.Handler {
	opts := []tenant.Option{
		tenant.WithLogger(m.log),
		tenant.WithRequireActive(m.cfg.RequireActive),
	}
	if len(m.cfg.SkipPaths) > 0 {
		opts = append(opts, tenant.WithSkipPaths(m.cfg.SkipPaths))
	}
	if m.cfg.ExposeHeader {
		opts = append(opts, tenant.WithTenantHeader())
	}
	if m.limiter != nil {
		opts = append(opts, tenant.WithRateLimiter(limiterAdapter{m.limiter}))
	}
	opts = append(opts, extra...)
	return tenant.Middleware(m.resolver, opts...)
}

// limiterAdapter bridges the ratelimit package to the middleware contract.
type limiterAdapter struct {
	limiter ratelimit.Limiter
}

func (a limiterAdapter) Allow(ctx context.Context, key string) (tenant.RateLimitResult, error) {
	res, err := a.limiter.Allow(ctx, key)
	if err != nil {
		return tenant.RateLimitResult{}, err
	}
	return tenant.RateLimitResult{
		Allowed:    res.Allowed,
		Limit:      int64(res.Limit),
		Remaining:  int64(res.Remaining),
		RetryAfter: res.RetryAfter(),
	}, nil
}

// CheckRateLimit reports whether the tenant may proceed, for callers
// outside the HTTP path such as job consumers. Backend failures allow the
// request and are logged, matching the middleware's fail-open behavior.
func (m *Manager) CheckRateLimit(ctx context.Context, key string) bool {
	if m.limiter == nil {
		return true
	}
	res, err := m.limiter.Allow(ctx, key)
	if err != nil {
		m.log.ErrorContext(ctx, "rate limit check failed, allowing request",
			"key", key, "error", err)
		return true
	}
	return res.Allowed
}

// TenantScope binds the named tenant to a new context for background work
// running outside a request. The identifier may be a slug or a tenant ID.
func (m *Manager) TenantScope(ctx context.Context, identifier string) (context.Context, error) {
	t, err := m.dir.GetByIdentifier(ctx, identifier)
	if errors.Is(err, tenant.ErrNotFound) {
		t, err = m.dir.GetByID(ctx, identifier)
	}
	if err != nil {
		return nil, err
	}
	if m.cfg.RequireActive && !t.IsActive() {
		return nil, tenant.ErrInactive
	}
	return tenant.WithMeta(tenant.WithTenant(ctx, t)), nil
}

// OpenSession opens an isolation session for the tenant bound to the
// context. The caller must Close the session to return the connection.
func (m *Manager) OpenSession(ctx context.Context) (*isolation.Session, error) {
	if m.isClosed() {
		return nil, ErrManagerClosed
	}
	t, err := tenant.CurrentTenant(ctx)
	if err != nil {
		return nil, err
	}
	return m.provider.OpenSession(ctx, t)
}

// Provision creates the tenant's isolated namespace and records the
// outcome in the audit log.
func (m *Manager) Provision(ctx context.Context, t *tenant.Tenant) error {
	if m.isClosed() {
		return ErrManagerClosed
	}
	if err := m.provider.Provision(ctx, t); err != nil {
		m.auditor.LogError(ctx, "tenant.provision", err, audit.WithResource("tenant", t.ID))
		return err
	}
	m.auditor.Log(ctx, "tenant.provision", audit.WithResource("tenant", t.ID))
	return nil
}

// Destroy removes the tenant's isolated namespace and all its data.
func (m *Manager) Destroy(ctx context.Context, t *tenant.Tenant) error {
	if m.isClosed() {
		return ErrManagerClosed
	}
	if err := m.provider.Destroy(ctx, t); err != nil {
		m.auditor.LogError(ctx, "tenant.destroy", err, audit.WithResource("tenant", t.ID))
		return err
	}
	m.auditor.Log(ctx, "tenant.destroy", audit.WithResource("tenant", t.ID))
	return nil
}

// VerifyIsolation checks the tenant's namespace actually exists and is
// enforced by the backend.
func (m *Manager) VerifyIsolation(ctx context.Context, t *tenant.Tenant) error {
	return m.provider.VerifyIsolation(ctx, t)
}

// Init prepares backing storage, creating the tenants table when the
// directory supports it, and verifies registered component checks.
func (m *Manager) Init(ctx context.Context) error {
	if ensurer, ok := m.dir.(interface{ EnsureSchema(context.Context) error }); ok {
		if err := ensurer.EnsureSchema(ctx); err != nil {
			return err
		}
	}
	return m.Healthcheck(ctx)
}

// Healthcheck runs every registered component check and joins failures.
func (m *Manager) Healthcheck(ctx context.Context) error {
	if m.isClosed() {
		return ErrManagerClosed
	}
	var errs []error
	for _, check := range m.checks {
		if err := check(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Metrics is a point-in-time operational snapshot.
type Metrics struct {
	Tenants       int           `json:"tenants"`
	CachedEngines int           `json:"cached_engines"`
	RateLimit     int           `json:"rate_limit"`
	Uptime        time.Duration `json:"uptime"`
}

// Metrics reports counts from whichever components expose them.
func (m *Manager) Metrics(ctx context.Context) Metrics {
	snap := Metrics{
		RateLimit: m.cfg.RateLimit,
		Uptime:    time.Since(m.started),
	}
	if counter, ok := m.dir.(interface{ Count(context.Context) (int, error) }); ok {
		if n, err := counter.Count(ctx); err == nil {
			snap.Tenants = n
		}
	}
	if cached, ok := m.provider.(interface{ CachedEngines() int }); ok {
		snap.CachedEngines = cached.CachedEngines()
	}
	return snap
}

// Close releases the provider's pooled resources and stops the limiter.
// Safe to call more than once.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	errs := []error{m.provider.Close(ctx)}
	for _, closer := range m.closers {
		errs = append(errs, closer())
	}
	return errors.Join(errs...)
}

func (m *Manager) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
