package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

// failingCounter simulates an unreachable durable store.
type failingCounter struct {
	calls int
}

func (f *failingCounter) Increment(ctx context.Context, key string, window time.Duration) (int64, time.Time, error) {
	f.calls++
	return 0, time.Time{}, errors.New("connection refused")
}

// captureRecorder collects metric adds for assertions.
type captureRecorder struct {
	counts map[string]float64
}

func (r *captureRecorder) Add(name string, value float64, tags map[string]string) {
	if r.counts == nil {
		r.counts = make(map[string]float64)
	}
	r.counts[name] += value
}

func (r *captureRecorder) Observe(name string, value float64, tags map[string]string) {}

func TestAdapter_UnconfiguredDurableUsesFallback(t *testing.T) {
	adapter := NewAdapter(nil, WithFallback(NewMemoryCounter(context.Background(), 0)))
	ctx := context.Background()

	acq := adapter.TryAcquire(ctx, "key", 2, time.Minute)
	if !acq.Allowed {
		t.Error("expected first acquisition to be allowed")
	}
	if acq.Remaining != 1 {
		t.Errorf("expected remaining 1, got %d", acq.Remaining)
	}

	adapter.TryAcquire(ctx, "key", 2, time.Minute)
	acq = adapter.TryAcquire(ctx, "key", 2, time.Minute)
	if acq.Allowed {
		t.Error("expected third acquisition to be denied")
	}
	if acq.Remaining != 0 {
		t.Errorf("expected remaining to clamp at 0, got %d", acq.Remaining)
	}
}

func TestAdapter_DegradesOnDurableError(t *testing.T) {
	durable := &failingCounter{}
	rec := &captureRecorder{}
	adapter := NewAdapter(durable,
		WithFallback(NewMemoryCounter(context.Background(), 0)),
		WithRecorder(rec),
	)
	ctx := context.Background()

	acq := adapter.TryAcquire(ctx, "key", 5, time.Minute)
	if !acq.Allowed {
		t.Error("expected the fallback path to allow the request")
	}
	if durable.calls != 1 {
		t.Errorf("expected the durable path to be attempted once, got %d", durable.calls)
	}
	if rec.counts["ratelimit_fallback_total"] != 1 {
		t.Errorf("expected one fallback event, got %v", rec.counts["ratelimit_fallback_total"])
	}

	// The fallback keeps its own counter state across degraded calls.
	for i := 0; i < 4; i++ {
		acq = adapter.TryAcquire(ctx, "key", 5, time.Minute)
	}
	if acq.Allowed {
		t.Error("expected the fallback budget to be exhausted after limit calls")
	}
}

func TestAdapter_DurableResultWins(t *testing.T) {
	mem := NewMemoryCounter(context.Background(), 0)
	adapter := NewAdapter(mem) // healthy "durable" path backed by memory
	ctx := context.Background()

	acq := adapter.TryAcquire(ctx, "key", 1, time.Minute)
	if !acq.Allowed {
		t.Error("expected first acquisition to be allowed")
	}
	acq = adapter.TryAcquire(ctx, "key", 1, time.Minute)
	if acq.Allowed {
		t.Error("expected second acquisition to be denied by the durable path")
	}
	if acq.ResetAt.IsZero() {
		t.Error("expected a window expiry on the acquisition")
	}
}
