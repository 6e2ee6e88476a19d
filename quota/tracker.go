package quota

import (
	"context"
	"time"
)

// Tracker enforces soft monthly budgets: check and record are separate
// calls, tolerant of small overshoot under races. Do not use it where a hard
// cap matters; that is what Enforcer is for.
//
// Every failure mode degrades in the user's favor: checks follow their
// OnError policy, and recording failures are logged and swallowed because
// undercounting is preferred over breaking an action that already happened.
type Tracker struct {
	store UsageStore
	table *Table
	log   Logger
	now   func() time.Time
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithTrackerLogger sets the logger.
func WithTrackerLogger(l Logger) TrackerOption {
	return func(t *Tracker) {
		if l != nil {
			t.log = l
		}
	}
}

// WithTrackerClock overrides the time source, for tests.
func WithTrackerClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// NewTracker creates a tracker over the given usage store and limit table.
func NewTracker(store UsageStore, table *Table, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		store: store,
		table: table,
		log:   noopLogger{},
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// GetStats returns the caller's consumption of res for the current month.
//
// A missing record reads as count 0; nothing is materialized on the read
// path. A store error also reads as count 0 (fail open) and is logged.
func (t *Tracker) GetStats(ctx context.Context, identity string, res Resource, plan Plan, role Role) Stats {
	month := MonthKey(t.now())
	limit := t.table.Limit(plan, res, role)

	rec, err := t.store.Get(ctx, identity, res, month)
	if err != nil {
		t.log.Errorf("quota: stats read failed for %s/%s, reporting zero usage: %v", identity, res, err)
		rec = UsageRecord{Identity: identity, Resource: res, Month: month}
	}

	return Stats{
		Count:     rec.Count,
		Limit:     limit,
		Remaining: remaining(limit, rec.Count),
		Month:     month,
	}
}

// CanConsume reports whether the caller has remaining monthly allowance for
// res. It does not consume anything; pair it with RecordConsumption after
// the action succeeds.
//
// onErr decides the outcome when the store is unreachable: OnErrorAllow
// returns an allow decision with the nominal limit, OnErrorDeny a deny.
func (t *Tracker) CanConsume(ctx context.Context, identity string, res Resource, plan Plan, role Role, onErr OnError) Decision {
	limit := t.table.Limit(plan, res, role)
	if limit == Unlimited {
		return Decision{Allowed: true, Limit: Unlimited, Remaining: Unlimited}
	}
	if limit <= 0 {
		return Decision{Allowed: false, Limit: limit, Remaining: 0}
	}

	month := MonthKey(t.now())
	rec, err := t.store.Get(ctx, identity, res, month)
	if err != nil {
		if onErr == OnErrorDeny {
			t.log.Errorf("quota: check failed for %s/%s, failing closed: %v", identity, res, err)
			return Decision{Allowed: false, Limit: limit, Remaining: 0}
		}
		t.log.Errorf("quota: check failed for %s/%s, failing open: %v", identity, res, err)
		return Decision{Allowed: true, Limit: limit, Remaining: limit}
	}

	return Decision{
		Allowed:   rec.Count < limit,
		Limit:     limit,
		Remaining: remaining(limit, rec.Count),
	}
}

// RecordConsumption durably adds amount (minimum 1) to the caller's count
// for the current month.
//
// Administrative usage is never recorded. Store failures are logged and
// swallowed: the user-facing action already happened and must not be rolled
// back for an accounting write.
func (t *Tracker) RecordConsumption(ctx context.Context, identity string, res Resource, plan Plan, role Role, amount int64) {
	if role == RoleAdmin {
		t.log.Debugf("quota: skipping consumption record for administrative caller %s", identity)
		return
	}
	if amount <= 0 {
		amount = 1
	}

	month := MonthKey(t.now())
	count, err := t.store.Increment(ctx, identity, res, month, amount)
	if err != nil {
		t.log.Errorf("quota: failed to record consumption for %s/%s: %v", identity, res, err)
		return
	}
	t.log.Debugf("quota: recorded %d %s for %s (month %s, total %d)", amount, res, identity, month, count)
}

// MonthRecord reads the raw ledger entry for any month, current or past.
// Old month records are retained as an append-only ledger.
func (t *Tracker) MonthRecord(ctx context.Context, identity string, res Resource, month string) (UsageRecord, error) {
	return t.store.Get(ctx, identity, res, month)
}

// Reset clears the ledger entry for (identity, res, month). Administrative
// tooling only.
func (t *Tracker) Reset(ctx context.Context, identity string, res Resource, month string) error {
	return t.store.Reset(ctx, identity, res, month)
}
