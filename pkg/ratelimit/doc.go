// Package ratelimit implements per-key sliding window rate limiting with
// pluggable storage. The in-memory store serves single-instance
// deployments; the Redis store shares one window across processes by
// running the admission check as a single server-side Lua script, so no
// burst of concurrent requests can exceed the limit.
package ratelimit
