package store

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestMemoryCounter_Increment(t *testing.T) {
	m := NewMemoryCounter(context.Background(), 0)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		count, _, err := m.Increment(ctx, "key", time.Minute)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if count != want {
			t.Errorf("expected count %d, got %d", want, count)
		}
	}

	count, _, _ := m.Increment(ctx, "other", time.Minute)
	if count != 1 {
		t.Errorf("expected independent key to start at 1, got %d", count)
	}
}

func TestMemoryCounter_WindowReset(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	m := NewMemoryCounter(context.Background(), 0, withClock(clock))
	ctx := context.Background()

	m.Increment(ctx, "key", time.Minute)
	m.Increment(ctx, "key", time.Minute)

	now = now.Add(61 * time.Second)

	count, resetAt, _ := m.Increment(ctx, "key", time.Minute)
	if count != 1 {
		t.Errorf("expected count to reset to 1 after expiry, got %d", count)
	}
	if want := now.Add(time.Minute); !resetAt.Equal(want) {
		t.Errorf("expected fresh window expiry %v, got %v", want, resetAt)
	}
}

func TestMemoryCounter_Bounded(t *testing.T) {
	m := NewMemoryCounter(context.Background(), 0, WithMaxEntries(10))
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		m.Increment(ctx, fmt.Sprintf("key-%d", i), time.Minute)
	}

	if got := m.Len(); got > 10 {
		t.Errorf("expected at most 10 tracked keys, got %d", got)
	}
}

func TestMemoryCounter_EvictsExpiredFirst(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	m := NewMemoryCounter(context.Background(), 0, WithMaxEntries(2), withClock(clock))
	ctx := context.Background()

	m.Increment(ctx, "expired", 10*time.Millisecond)
	m.Increment(ctx, "live", time.Hour)

	now = now.Add(time.Second)

	m.Increment(ctx, "new", time.Hour)

	count, _, _ := m.Increment(ctx, "live", time.Hour)
	if count != 2 {
		t.Errorf("expected live key to survive eviction with count 2, got %d", count)
	}
}

func TestMemoryCounter_BackgroundSweep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := NewMemoryCounter(ctx, 10*time.Millisecond)
	m.Increment(ctx, "short", 5*time.Millisecond)

	deadline := time.Now().Add(time.Second)
	for m.Len() > 0 {
		if time.Now().After(deadline) {
			t.Fatal("expected sweep to remove the expired entry")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
