package store

import (
	"context"
	"time"
)

// DefaultTimeout caps how long the adapter waits on the durable store before
// degrading to the fallback.
const DefaultTimeout = 2 * time.Second

// Adapter is the window store used by the rate limiter. It attempts the
// durable, cross-instance-consistent counter first and degrades to the
// in-process fallback when the durable store is unconfigured, erroring, or
// timing out.
//
// TryAcquire never returns an error: a store failure is an operational
// event (logged and counted), not a caller-visible one.
type Adapter struct {
	durable  Counter // nil when no durable store is configured
	fallback Counter
	timeout  time.Duration
	log      Logger
	rec      Recorder
}

// AdapterOption configures an Adapter.
type AdapterOption func(*Adapter)

// WithTimeout sets the per-call deadline for the durable store.
func WithTimeout(d time.Duration) AdapterOption {
	return func(a *Adapter) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithFallback replaces the default in-process fallback counter.
func WithFallback(c Counter) AdapterOption {
	return func(a *Adapter) {
		if c != nil {
			a.fallback = c
		}
	}
}

// WithLogger sets the logger used for degradation events.
func WithLogger(l Logger) AdapterOption {
	return func(a *Adapter) {
		if l != nil {
			a.log = l
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) AdapterOption {
	return func(a *Adapter) {
		if r != nil {
			a.rec = r
		}
	}
}

// NewAdapter creates an adapter over the given durable counter.
//
// durable may be nil when no shared store is configured; construction never
// fails, the adapter simply runs on the fallback counter alone. The default
// fallback is a MemoryCounter sweeping once a minute for the life of the
// process.
func NewAdapter(durable Counter, opts ...AdapterOption) *Adapter {
	a := &Adapter{
		durable: durable,
		timeout: DefaultTimeout,
		log:     noopLogger{},
		rec:     noopRecorder{},
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.fallback == nil {
		a.fallback = NewMemoryCounter(context.Background(), time.Minute)
	}
	return a
}

// TryAcquire increments the counter for key and reports whether the new
// count fits inside limit for the current window.
func (a *Adapter) TryAcquire(ctx context.Context, key string, limit int64, window time.Duration) Acquisition {
	count, resetAt, backend, err := a.increment(ctx, key, window)
	if err != nil {
		// Both paths failed; the fallback is in-process so this only
		// happens on context cancellation. Fail open with a nominal window.
		a.log.Errorf("window store: fallback counter failed for key %q: %v", key, err)
		a.rec.Add("ratelimit_store_errors_total", 1, map[string]string{"backend": backend})
		return Acquisition{Allowed: true, Limit: limit, Remaining: limit, ResetAt: time.Now().Add(window)}
	}

	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	acq := Acquisition{
		Allowed:   count <= limit,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}
	a.rec.Add("ratelimit_requests_total", 1, map[string]string{
		"backend": backend,
		"allowed": boolTag(acq.Allowed),
	})
	return acq
}

func (a *Adapter) increment(ctx context.Context, key string, window time.Duration) (int64, time.Time, string, error) {
	if a.durable != nil {
		dctx, cancel := context.WithTimeout(ctx, a.timeout)
		started := time.Now()
		count, resetAt, err := a.durable.Increment(dctx, key, window)
		cancel()
		a.rec.Observe("ratelimit_store_seconds", time.Since(started).Seconds(), map[string]string{"backend": "durable"})
		if err == nil {
			return count, resetAt, "durable", nil
		}
		a.log.Errorf("window store: durable path failed for key %q, degrading to in-process counter: %v", key, err)
		a.rec.Add("ratelimit_fallback_total", 1, nil)
	}

	count, resetAt, err := a.fallback.Increment(ctx, key, window)
	return count, resetAt, "fallback", err
}

func boolTag(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
