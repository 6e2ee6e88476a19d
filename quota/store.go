package quota

import "context"

// UsageStore persists monthly usage counters for the soft-budget Tracker.
//
// The engine leans on two properties of the backing store: a missing record
// reads as zero, and Increment is the store's native atomic increment rather
// than an application-level read-modify-write. Concurrent increments may
// race only on the LastUpdated timestamp, never on the count.
type UsageStore interface {
	// Get returns the record for (identity, resource, month), or a
	// zero-count record if none exists yet. It must not create anything.
	Get(ctx context.Context, identity string, res Resource, month string) (UsageRecord, error)

	// Increment upserts the record: create with count=amount when missing,
	// else atomically add amount and refresh LastUpdated. Returns the new
	// count.
	Increment(ctx context.Context, identity string, res Resource, month string, amount int64) (int64, error)

	// Reset deletes the record for (identity, resource, month). Intended
	// for manual administrative resets, not routine operation.
	Reset(ctx context.Context, identity string, res Resource, month string) error
}

// UsageDoc is the single per-identity document the Enforcer transacts on.
// Several related feature counters draw from it, gated by one usage month
// marker.
type UsageDoc struct {
	Month    string
	Counters map[Resource]int64
}

// DocStore executes single-document read-modify-write transactions.
//
// Update reads the identity's document, applies fn to it, and writes the
// result back so that concurrent Updates for the same identity serialize:
// two calls cannot both observe the same pre-state and both commit. An
// error returned by fn aborts the transaction without writing and is
// returned unwrapped to the caller.
type DocStore interface {
	Update(ctx context.Context, identity string, fn func(doc *UsageDoc) error) error
}
