// Package quotaengine provides the rate limiting half of a quota and
// rate-limit enforcement engine for multi-tenant backends.
//
// It defines two core abstractions:
//   - Limiter: the per-endpoint throttling interface (SlidingWindow is the
//     provided implementation, backed by a store.Adapter)
//   - Result: struct containing the outcome of a rate limit check, useful
//     for HTTP headers and Retry-After hints
//
// Monthly, plan-based quota accounting lives in the quota subpackage; the
// shared counter backends live in the store subpackage. Middleware for
// net/http and Gin is provided under middleware/.
package quotaengine

import (
	"context"
	"time"
)

// Result contains the outcome of a rate limit check.
//
// It provides the necessary data to populate standard rate-limiting HTTP
// headers such as `X-RateLimit-Limit`, `X-RateLimit-Remaining`, and
// `X-RateLimit-Reset`, plus a Retry-After hint for denials.
type Result struct {
	// Allowed indicates whether the request is permitted.
	Allowed bool
	// Limit is the total number of requests allowed in the current window.
	Limit int64
	// Remaining is the number of requests left in the current window.
	Remaining int64
	// ResetAfter is the duration after which the rate limit will be reset.
	ResetAfter time.Duration
	// RetryAfter is how long a denied caller should wait before retrying.
	// It is zero when Allowed is true and at least one second otherwise.
	RetryAfter time.Duration
}

// Limiter defines the interface for rate-limiting algorithms.
//
// Middleware and users interact with Limiter to enforce limits on requests.
//
// Implementations decide their own failure semantics: SlidingWindow never
// returns an error because its store adapter degrades to a process-local
// counter instead of failing.
type Limiter interface {
	// Allow checks if a request is permitted for a given identity.
	//
	// Parameters:
	//   - ctx: context for cancellation and timeouts
	//   - identity: unique identifier for the caller (e.g., user ID, IP address)
	//
	// Returns:
	//   - Result: contains the outcome and headers-related info
	//   - error: any error occurred while checking the limit
	Allow(ctx context.Context, identity string) (Result, error)
}
