// Package store provides counter backends for the rate limiting engine.
//
// Supported backends:
//   - RedisCounter: durable, cross-instance-consistent counters for
//     distributed deployments
//   - MemoryCounter: bounded in-process counters used for single-instance
//     deployments, tests, and as the degraded-mode fallback
//
// The Adapter composes the two: it tries the durable path first and falls
// back to the in-process counter when the durable store is unconfigured or
// erroring, so callers always get a decision and never an error.
package store

import (
	"context"
	"time"
)

// Acquisition is the outcome of one increment-and-check against a window
// counter.
type Acquisition struct {
	// Allowed indicates whether the request fit inside the window budget.
	Allowed bool
	// Limit is the configured budget for the window.
	Limit int64
	// Remaining is how much budget is left. Never negative.
	Remaining int64
	// ResetAt is when the current window expires.
	ResetAt time.Time
}

// Counter is the storage primitive the engine builds on: an atomic
// increment-with-expiry that does not require a prior read.
//
// Implementations must be safe for concurrent use.
type Counter interface {
	// Increment atomically increments the counter for a key and returns the
	// new count together with the expiry of the current window.
	//
	// If the key does not exist, it is created with a count of 1 and an
	// expiration equal to the window.
	Increment(ctx context.Context, key string, window time.Duration) (count int64, resetAt time.Time, err error)
}

// Logger is the logging interface used by this package. It matches the
// engine-wide Debugf/Errorf shape so one backend serves every package.
type Logger interface {
	Debugf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Recorder receives operational metrics from the adapter. The provided
// prometheus bridge lives in adapters/promrecorder.
type Recorder interface {
	// Add increments a counter metric.
	Add(name string, value float64, tags map[string]string)
	// Observe records a sample of a distribution metric (e.g., a latency).
	Observe(name string, value float64, tags map[string]string)
}

type noopLogger struct{}

func (noopLogger) Debugf(format string, args ...interface{}) {}
func (noopLogger) Errorf(format string, args ...interface{}) {}

type noopRecorder struct{}

func (noopRecorder) Add(name string, value float64, tags map[string]string)     {}
func (noopRecorder) Observe(name string, value float64, tags map[string]string) {}
