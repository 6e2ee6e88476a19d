package quota

import (
	"context"
	"time"
)

// Enforcer applies hard monthly caps: the check and the consumption record
// are one indivisible read-modify-write transaction over the identity's
// usage document, so two concurrent calls cannot both take the last slot.
//
// Use it for features whose usage pool must be structurally impossible to
// exceed; everything else can use the cheaper Tracker.
type Enforcer struct {
	docs  DocStore
	table *Table
	log   Logger
	now   func() time.Time
}

// EnforcerOption configures an Enforcer.
type EnforcerOption func(*Enforcer)

// WithEnforcerLogger sets the logger.
func WithEnforcerLogger(l Logger) EnforcerOption {
	return func(e *Enforcer) {
		if l != nil {
			e.log = l
		}
	}
}

// WithEnforcerClock overrides the time source, for tests.
func WithEnforcerClock(now func() time.Time) EnforcerOption {
	return func(e *Enforcer) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEnforcer creates an enforcer over the given document store and limit
// table.
func NewEnforcer(docs DocStore, table *Table, opts ...EnforcerOption) *Enforcer {
	e := &Enforcer{
		docs:  docs,
		table: table,
		log:   noopLogger{},
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// EnforceAndRecord atomically checks the caller's remaining allowance for
// feature and records one unit of consumption.
//
// Failure modes, in order of evaluation inside the transaction:
//   - month rollover: a stored usage month older than the current one resets
//     every counter in the document, lazily, inside the same transaction
//   - *NotEntitledError: the resolved limit is zero or absent for the plan
//   - *QuotaExceededError: the monthly cap is already reached
//   - ErrStoreUnavailable (wrapped): the store could not complete the
//     transaction; hard-cap failures propagate and are not retried here
//
// The administrative role bypasses the transaction entirely: exempt from the
// check, never recorded.
func (e *Enforcer) EnforceAndRecord(ctx context.Context, identity string, feature Resource, plan Plan, role Role) (Receipt, error) {
	month := MonthKey(e.now())

	if role == RoleAdmin {
		return Receipt{Month: month, Limit: Unlimited}, nil
	}

	var receipt Receipt
	err := e.docs.Update(ctx, identity, func(doc *UsageDoc) error {
		if doc.Counters == nil {
			doc.Counters = make(map[Resource]int64)
		}
		if doc.Month != month {
			doc.Month = month
			doc.Counters = make(map[Resource]int64)
		}

		limit := e.table.Limit(plan, feature, role)
		if limit == Unlimited {
			doc.Counters[feature]++
			receipt = Receipt{Month: month, Limit: Unlimited, UsedAfter: doc.Counters[feature]}
			return nil
		}
		if limit <= 0 {
			return &NotEntitledError{Feature: feature, Plan: plan}
		}

		used := doc.Counters[feature]
		if used >= limit {
			return &QuotaExceededError{Feature: feature, Limit: limit, Used: used}
		}

		doc.Counters[feature] = used + 1
		receipt = Receipt{Month: month, Limit: limit, UsedAfter: used + 1}
		return nil
	})
	if err != nil {
		return Receipt{}, err
	}

	e.log.Debugf("quota: hard-cap consumption for %s/%s (month %s, %d/%d)",
		identity, feature, receipt.Month, receipt.UsedAfter, receipt.Limit)
	return receipt, nil
}
