// Package tenancy composes the tenantkit building blocks into a single
// manager: tenant directory, request resolution, data isolation, rate
// limiting, per-tenant migrations, and audit logging, all driven by one
// environment-backed Config.
//
// A typical service wires it up once at startup:
//
//	var cfg tenancy.Config
//	if err := tenancy.Load(&cfg); err != nil {
//		log.Fatal(err)
//	}
//
//	pool, err := pg.Connect(ctx, pgCfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	mgr, err := tenancy.New(cfg,
//		tenancy.WithDirectory(directory.NewPostgres(pool)),
//		tenancy.WithMasterPool(isolation.WrapPool(pool), pgCfg.ConnectionString),
//		tenancy.WithHealthcheck(pg.Healthcheck(pool)),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer mgr.Close(ctx)
//
//	r := chi.NewRouter()
//	r.Use(mgr.Middleware())
//
// Handlers read the bound tenant from the request context and open
// isolation sessions through the manager:
//
//	t := tenant.MustFromContext(r.Context())
//	sess, err := mgr.OpenSession(r.Context())
//
// Background jobs outside the HTTP path enter a tenant's scope with
// TenantScope, which performs the same directory lookup and active check
// as the middleware.
package tenancy
