// Package redis connects the tenancy packages to Redis: a retrying
// Connect helper plus a health check, on top of go-redis.
//
// The directory read-through cache and the distributed rate limit store
// both take a redis.UniversalClient, so the client returned here feeds
// straight into them:
//
//	var cfg redis.Config
//	if err := env.Parse(&cfg); err != nil {
//		panic(err)
//	}
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		panic(err)
//	}
//	defer client.Close()
//
// Sentinel errors wrap the underlying go-redis errors with errors.Join so
// callers can classify with errors.Is while keeping the original cause.
package redis
