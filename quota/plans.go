package quota

import "sync"

// Limits maps resource types to their monthly allowance for one plan.
// A limit of 0 (or an absent resource) means the plan is not entitled to the
// resource at all; Unlimited means tracked but never enforced.
type Limits map[Resource]int64

// Table is the plan x resource limit configuration.
//
// It is static configuration, not persisted state, and it is hot-swappable:
// Replace installs a new version atomically without redeploying the engine.
// Plan aliases are resolved before lookup, so a promotional plan can share a
// base plan's allowance pool.
type Table struct {
	mu      sync.RWMutex
	version string
	plans   map[Plan]Limits
	aliases map[Plan]Plan
	defPlan Plan
}

// TableOption configures a Table.
type TableOption func(*Table)

// WithAlias maps one plan name onto another's allowance pool.
func WithAlias(from, to Plan) TableOption {
	return func(t *Table) {
		t.aliases[from] = to
	}
}

// WithDefaultPlan sets the plan used when a caller's plan is unknown to the
// table. Without it, unknown plans resolve every resource to 0.
func WithDefaultPlan(p Plan) TableOption {
	return func(t *Table) {
		t.defPlan = p
	}
}

// NewTable builds a limit table from per-plan limits.
func NewTable(plans map[Plan]Limits, opts ...TableOption) *Table {
	t := &Table{
		plans:   plans,
		aliases: make(map[Plan]Plan),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Replace atomically installs a new limit configuration. In-flight lookups
// finish against the old version; subsequent lookups see the new one.
func (t *Table) Replace(version string, plans map[Plan]Limits, aliases map[Plan]Plan) {
	if aliases == nil {
		aliases = make(map[Plan]Plan)
	}
	t.mu.Lock()
	t.version = version
	t.plans = plans
	t.aliases = aliases
	t.mu.Unlock()
}

// Version reports the configuration version installed by the last Replace.
func (t *Table) Version() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.version
}

// Limit resolves the monthly allowance for (plan, resource, role).
//
// The administrative role always resolves to Unlimited regardless of plan.
// Plan aliases are normalized first; plans missing from the table fall back
// to the default plan when one is configured, otherwise to 0 (not entitled).
func (t *Table) Limit(plan Plan, res Resource, role Role) int64 {
	if role == RoleAdmin {
		return Unlimited
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	if target, ok := t.aliases[plan]; ok {
		plan = target
	}
	limits, ok := t.plans[plan]
	if !ok {
		if t.defPlan == "" {
			return 0
		}
		limits, ok = t.plans[t.defPlan]
		if !ok {
			return 0
		}
	}
	return limits[res]
}
