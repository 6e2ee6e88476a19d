// Package quota implements plan-based monthly consumption accounting.
//
// Two enforcement styles are provided:
//
//   - Tracker: soft budgets. Check (CanConsume) and record
//     (RecordConsumption) are separate calls, so a race between them can
//     overshoot a limit slightly. Checks degrade per an explicit OnError
//     policy and recording failures are logged and swallowed, so a storage
//     hiccup never blocks a paying user.
//
//   - Enforcer: hard caps. Check and record collapse into one atomic
//     read-modify-write transaction over a single per-identity document, so
//     a cap cannot structurally be exceeded under concurrency.
//
// Consumption buckets are calendar months in UTC (see MonthKey): every
// allowance resets on the 1st, not thirty days after first use.
package quota

import "time"

// Plan is a billing plan name, e.g. "free", "basic", "pro".
type Plan string

// Resource identifies a metered resource type, e.g. "ai_generation".
type Resource string

// Role is the caller's role as supplied by identity resolution.
type Role string

// RoleAdmin is exempt from every check and never increments any stored
// counter.
const RoleAdmin Role = "administrative"

// Unlimited is the sentinel limit for allowances that are tracked but never
// enforced.
const Unlimited int64 = -1

// OnError selects how a soft check degrades when the backing store errors.
// The choice is an explicit, per-call-site parameter so it stays visible and
// testable instead of being buried in error handling.
type OnError int

const (
	// OnErrorAllow fails open: a backend error yields an allow decision
	// with the nominal limit. Use for features where blocking a paying
	// customer costs more than a little overconsumption.
	OnErrorAllow OnError = iota
	// OnErrorDeny fails closed: a backend error yields a deny decision.
	OnErrorDeny
)

// Stats is a caller-visible view of one identity's consumption of one
// resource in one month.
type Stats struct {
	Count     int64  `json:"count"`
	Limit     int64  `json:"limit"`
	Remaining int64  `json:"remaining"`
	Month     string `json:"month"`
}

// Decision is the outcome of a soft check.
type Decision struct {
	Allowed   bool  `json:"allowed"`
	Limit     int64 `json:"limit"`
	Remaining int64 `json:"remaining"`
}

// Receipt is returned by the Enforcer after a successful atomic
// check-and-record.
type Receipt struct {
	Month     string `json:"month"`
	Limit     int64  `json:"limit"`
	UsedAfter int64  `json:"used_after"`
}

// UsageRecord is the durable monthly ledger entry for one
// (identity, resource, month) triple. Old months are never deleted; they
// form an append-only ledger, one record per identity per month per
// resource.
type UsageRecord struct {
	Identity    string    `json:"identity"`
	Resource    Resource  `json:"resource"`
	Month       string    `json:"month"`
	Count       int64     `json:"count"`
	LastReset   time.Time `json:"last_reset"`
	LastUpdated time.Time `json:"last_updated"`
}

// Logger matches the engine-wide Debugf/Errorf logging shape.
type Logger interface {
	Debugf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

type noopLogger struct{}

func (noopLogger) Debugf(format string, args ...interface{}) {}
func (noopLogger) Errorf(format string, args ...interface{}) {}

func remaining(limit, count int64) int64 {
	if limit == Unlimited {
		return Unlimited
	}
	r := limit - count
	if r < 0 {
		r = 0
	}
	return r
}
