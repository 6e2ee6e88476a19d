package quota

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEnforcer(docs DocStore, clock *fakeClock) *Enforcer {
	return NewEnforcer(docs, testTable(), WithEnforcerClock(clock.Now))
}

func TestEnforcer_HardCapSequence(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, time.August, 10, 0, 0, 0, 0, time.UTC)}
	enforcer := newTestEnforcer(NewMemoryDocStore(), clock)
	ctx := context.Background()

	// Plan "basic" allows 2 strategies per month.
	r1, err := enforcer.EnforceAndRecord(ctx, "user-1", "strategy", "basic", "member")
	require.NoError(t, err)
	assert.Equal(t, int64(1), r1.UsedAfter)
	assert.Equal(t, int64(2), r1.Limit)
	assert.Equal(t, "2026-08", r1.Month)

	r2, err := enforcer.EnforceAndRecord(ctx, "user-1", "strategy", "basic", "member")
	require.NoError(t, err)
	assert.Equal(t, int64(2), r2.UsedAfter)

	_, err = enforcer.EnforceAndRecord(ctx, "user-1", "strategy", "basic", "member")
	qe := AsQuotaExceeded(err)
	require.NotNil(t, qe, "third call must be rejected")
	assert.Equal(t, Resource("strategy"), qe.Feature)
	assert.Equal(t, int64(2), qe.Limit)
	assert.Equal(t, int64(2), qe.Used)
	assert.True(t, errors.Is(err, ErrQuotaExceeded))
}

func TestEnforcer_NotEntitledIsDistinct(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, time.August, 10, 0, 0, 0, 0, time.UTC)}
	enforcer := newTestEnforcer(NewMemoryDocStore(), clock)

	_, err := enforcer.EnforceAndRecord(context.Background(), "user-1", "strategy", "free", "member")
	ne := AsNotEntitled(err)
	require.NotNil(t, ne)
	assert.Equal(t, Plan("free"), ne.Plan)
	assert.True(t, errors.Is(err, ErrNotEntitled))
	assert.False(t, errors.Is(err, ErrQuotaExceeded), "zero limit is not-entitled, not limit-reached")
	assert.Nil(t, AsQuotaExceeded(err))
}

func TestEnforcer_RejectedAttemptLeavesNoTrace(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, time.August, 10, 0, 0, 0, 0, time.UTC)}
	docs := NewMemoryDocStore()
	enforcer := newTestEnforcer(docs, clock)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := enforcer.EnforceAndRecord(ctx, "user-1", "strategy", "basic", "member")
		require.NoError(t, err)
	}
	for i := 0; i < 3; i++ {
		_, err := enforcer.EnforceAndRecord(ctx, "user-1", "strategy", "basic", "member")
		require.Error(t, err)
	}

	// A sibling counter in the same document is unaffected.
	r, err := enforcer.EnforceAndRecord(ctx, "user-1", "ai_generation", "basic", "member")
	require.NoError(t, err)
	assert.Equal(t, int64(1), r.UsedAfter)
}

func TestEnforcer_MonthRollover(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, time.August, 28, 0, 0, 0, 0, time.UTC)}
	enforcer := newTestEnforcer(NewMemoryDocStore(), clock)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := enforcer.EnforceAndRecord(ctx, "user-1", "strategy", "basic", "member")
		require.NoError(t, err)
	}
	_, err := enforcer.EnforceAndRecord(ctx, "user-1", "strategy", "basic", "member")
	require.Error(t, err)

	// Rollover is detected lazily inside the next transaction.
	clock.now = time.Date(2026, time.September, 1, 0, 0, 1, 0, time.UTC)

	r, err := enforcer.EnforceAndRecord(ctx, "user-1", "strategy", "basic", "member")
	require.NoError(t, err)
	assert.Equal(t, int64(1), r.UsedAfter)
	assert.Equal(t, "2026-09", r.Month)
}

func TestEnforcer_ConcurrentCallsNeverOvershoot(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, time.August, 10, 0, 0, 0, 0, time.UTC)}
	enforcer := newTestEnforcer(NewMemoryDocStore(), clock)
	ctx := context.Background()

	const attempts = 25
	const limit = 5 // plan "pro" allows 5 strategies

	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := enforcer.EnforceAndRecord(ctx, "user-1", "strategy", "pro", "member")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var successes, rejections int
	for err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrQuotaExceeded):
			rejections++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, limit, successes, "exactly limit concurrent calls may succeed")
	assert.Equal(t, attempts-limit, rejections)
}

func TestEnforcer_AdminBypassesWithoutRecording(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, time.August, 10, 0, 0, 0, 0, time.UTC)}
	docs := NewMemoryDocStore()
	enforcer := newTestEnforcer(docs, clock)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		r, err := enforcer.EnforceAndRecord(ctx, "admin-1", "strategy", "free", RoleAdmin)
		require.NoError(t, err)
		assert.Equal(t, Unlimited, r.Limit)
	}

	// Nothing was written for the admin identity.
	err := docs.Update(ctx, "admin-1", func(doc *UsageDoc) error {
		assert.Empty(t, doc.Counters)
		return errors.New("abort")
	})
	require.Error(t, err)
}

func TestEnforcer_UnlimitedPlanIsTrackedButNeverCapped(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, time.August, 10, 0, 0, 0, 0, time.UTC)}
	enforcer := newTestEnforcer(NewMemoryDocStore(), clock)
	ctx := context.Background()

	for i := 1; i <= 20; i++ {
		r, err := enforcer.EnforceAndRecord(ctx, "user-1", "search", "pro", "member")
		require.NoError(t, err)
		assert.Equal(t, int64(i), r.UsedAfter, "unlimited allowances still count usage")
	}
}
