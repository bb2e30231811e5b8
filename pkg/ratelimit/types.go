package ratelimit

import (
	"context"
	"time"
)

// Result contains the result of a rate limit check.
type Result struct {
	// Allowed indicates whether the request is allowed.
	Allowed bool

	// Limit is the maximum number of requests allowed in the window.
	Limit int

	// Remaining is the number of requests remaining in the current window.
	Remaining int

	// ResetAt is the time when the oldest recorded request leaves the window.
	ResetAt time.Time
}

// RetryAfter returns how long to wait before the next request is allowed.
// Returns 0 if the current request was allowed.
func (r *Result) RetryAfter() time.Duration {
	if r.Allowed {
		return 0
	}
	return time.Until(r.ResetAt)
}

// Limiter defines the interface for rate limiting implementations.
type Limiter interface {
	// Allow checks if a single request is allowed for the given key.
	// If allowed, the request is recorded in the window.
	Allow(ctx context.Context, key string) (*Result, error)

	// Status returns the current rate limit status for the given key
	// without recording a request.
	Status(ctx context.Context, key string) (*Result, error)

	// Reset clears the recorded window for the given key.
	Reset(ctx context.Context, key string) error
}

// Store is a sliding window storage backend. Implementations must make
// AddIfAllowed atomic: the prune, count, check, and record happen as one
// operation so concurrent callers can never admit more than limit
// requests per window.
type Store interface {
	// AddIfAllowed drops timestamps older than the window, counts the
	// remainder, and records now only when the count is below limit.
	// Returns whether the request was recorded and the count after the
	// operation.
	AddIfAllowed(ctx context.Context, key string, now time.Time, window time.Duration, limit int) (allowed bool, count int64, err error)

	// CountInWindow returns the number of timestamps within the window.
	CountInWindow(ctx context.Context, key string, now time.Time, window time.Duration) (int64, error)

	// Delete removes the given key from the store.
	Delete(ctx context.Context, key string) error
}
