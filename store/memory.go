package store

import (
	"context"
	"sync"
	"time"
)

// DefaultMaxEntries bounds how many distinct keys a MemoryCounter tracks.
const DefaultMaxEntries = 16384

// windowEntry stores the counter and expiration time for one key.
type windowEntry struct {
	count   int64
	resetAt time.Time
}

// MemoryCounter is an in-process implementation of Counter.
//
// It is explicitly non-distributed: under horizontal scaling each process
// instance enforces its own budget, so the effective limit is
// limit x instanceCount when it is used as the degraded-mode fallback. That
// trade-off (availability over strict correctness) is deliberate.
//
// The map is bounded: when maxEntries is reached, expired entries are swept
// inline and, if none are expired, an arbitrary entry is evicted. An
// optional background sweep removes expired entries between requests.
type MemoryCounter struct {
	mu         sync.Mutex
	entries    map[string]windowEntry
	maxEntries int
	now        func() time.Time
}

// MemoryOption configures a MemoryCounter.
type MemoryOption func(*MemoryCounter)

// WithMaxEntries overrides the entry bound. Values <= 0 keep the default.
func WithMaxEntries(n int) MemoryOption {
	return func(m *MemoryCounter) {
		if n > 0 {
			m.maxEntries = n
		}
	}
}

// withClock overrides the time source, for tests.
func withClock(now func() time.Time) MemoryOption {
	return func(m *MemoryCounter) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMemoryCounter creates a new MemoryCounter.
//
// ctx manages the lifecycle of the background sweep goroutine.
// sweepInterval is how often expired entries are removed; pass 0 to disable
// the background sweep (expired entries are still reclaimed inline).
func NewMemoryCounter(ctx context.Context, sweepInterval time.Duration, opts ...MemoryOption) *MemoryCounter {
	m := &MemoryCounter{
		entries:    make(map[string]windowEntry),
		maxEntries: DefaultMaxEntries,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}

	if sweepInterval > 0 {
		go m.runSweep(ctx, sweepInterval)
	}

	return m
}

// Increment atomically increases the counter for a given key, resetting the
// window when the stored expiry has passed.
func (m *MemoryCounter) Increment(ctx context.Context, key string, window time.Duration) (int64, time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	e, found := m.entries[key]
	if found && now.After(e.resetAt) {
		found = false
	}

	if !found {
		if _, exists := m.entries[key]; !exists && len(m.entries) >= m.maxEntries {
			m.evictLocked(now)
		}
		e = windowEntry{
			count:   1,
			resetAt: now.Add(window),
		}
	} else {
		e.count++
	}

	m.entries[key] = e
	return e.count, e.resetAt, nil
}

// Len reports how many keys are currently tracked.
func (m *MemoryCounter) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// evictLocked frees room for one new key. Expired entries go first; when
// none are expired, one arbitrary entry is dropped, which at worst grants
// that caller a fresh window.
func (m *MemoryCounter) evictLocked(now time.Time) {
	for key, e := range m.entries {
		if now.After(e.resetAt) {
			delete(m.entries, key)
			return
		}
	}
	for key := range m.entries {
		delete(m.entries, key)
		return
	}
}

// runSweep periodically removes expired entries.
func (m *MemoryCounter) runSweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.mu.Lock()
			now := m.now()
			for key, e := range m.entries {
				if now.After(e.resetAt) {
					delete(m.entries, key)
				}
			}
			m.mu.Unlock()
		case <-ctx.Done():
			return
		}
	}
}
