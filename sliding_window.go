package quotaengine

import (
	"context"
	"time"

	"github.com/stackmint/quotaengine/store"
)

// SlidingWindow throttles requests per (keyPrefix, identity) pair over a
// rolling time window.
//
// It is a pure policy wrapper around a store.Adapter: the adapter owns the
// counter state and the failover behavior, SlidingWindow owns key
// construction and the Retry-After contract. One SlidingWindow is
// parameterized per call site with its own (limit, window) pair; use a
// Registry to share instances across requests with identical configuration.
type SlidingWindow struct {
	adapter   *store.Adapter
	keyPrefix string
	limit     int64
	window    time.Duration
}

// NewSlidingWindow creates a new limiter for one call site.
//
// keyPrefix namespaces the counters (e.g., "rl:leads"); identity is appended
// per request. limit is the number of requests allowed per window.
func NewSlidingWindow(adapter *store.Adapter, keyPrefix string, limit int64, window time.Duration) *SlidingWindow {
	return &SlidingWindow{
		adapter:   adapter,
		keyPrefix: keyPrefix,
		limit:     limit,
		window:    window,
	}
}

// Allow checks whether a request from the given identity is within the
// window budget.
//
// The returned error is always nil: the adapter resolves store failures to a
// process-local fallback decision instead of propagating them. The error
// return exists to satisfy the Limiter interface.
func (l *SlidingWindow) Allow(ctx context.Context, identity string) (Result, error) {
	acq := l.adapter.TryAcquire(ctx, l.keyPrefix+":"+identity, l.limit, l.window)

	result := Result{
		Allowed:    acq.Allowed,
		Limit:      acq.Limit,
		Remaining:  acq.Remaining,
		ResetAfter: time.Until(acq.ResetAt),
	}
	if result.ResetAfter < 0 {
		result.ResetAfter = 0
	}
	if !result.Allowed {
		result.RetryAfter = retryAfter(result.ResetAfter)
	}
	return result, nil
}

// retryAfter rounds up to whole seconds with a floor of one second, so
// clients never receive a zero or sub-second retry hint.
func retryAfter(resetAfter time.Duration) time.Duration {
	retry := resetAfter.Truncate(time.Second)
	if retry < resetAfter {
		retry += time.Second
	}
	if retry < time.Second {
		retry = time.Second
	}
	return retry
}
