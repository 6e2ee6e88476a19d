package quota

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	// ErrQuotaExceeded is the class of all hard-cap rejections.
	ErrQuotaExceeded = errors.New("quota exceeded")

	// ErrNotEntitled is the class of rejections for resources a plan does
	// not include at all. It is deliberately distinct from ErrQuotaExceeded
	// so callers can render "upgrade to unlock" instead of "limit reached".
	ErrNotEntitled = errors.New("feature not entitled")

	// ErrStoreUnavailable is returned when the quota store cannot complete
	// an operation. Soft checks recover from it locally; hard-cap calls
	// propagate it.
	ErrStoreUnavailable = errors.New("quota store unavailable")
)

// QuotaExceededError is raised by the Enforcer when a feature's monthly cap
// is reached. It carries enough detail for the caller to render a precise
// upgrade prompt.
type QuotaExceededError struct {
	Feature Resource
	Limit   int64
	Used    int64
}

// Error returns the error message.
func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("monthly quota exceeded for %s (%d/%d used)", e.Feature, e.Used, e.Limit)
}

// Unwrap returns the underlying sentinel.
func (e *QuotaExceededError) Unwrap() error {
	return ErrQuotaExceeded
}

// NotEntitledError is raised when the resolved limit for a feature is zero
// or absent: the caller's plan does not include the feature.
type NotEntitledError struct {
	Feature Resource
	Plan    Plan
}

// Error returns the error message.
func (e *NotEntitledError) Error() string {
	return fmt.Sprintf("plan %q does not include %s", e.Plan, e.Feature)
}

// Unwrap returns the underlying sentinel.
func (e *NotEntitledError) Unwrap() error {
	return ErrNotEntitled
}

// AsQuotaExceeded extracts a *QuotaExceededError from err, or returns nil.
func AsQuotaExceeded(err error) *QuotaExceededError {
	var qe *QuotaExceededError
	if errors.As(err, &qe) {
		return qe
	}
	return nil
}

// AsNotEntitled extracts a *NotEntitledError from err, or returns nil.
func AsNotEntitled(err error) *NotEntitledError {
	var ne *NotEntitledError
	if errors.As(err, &ne) {
		return ne
	}
	return nil
}
