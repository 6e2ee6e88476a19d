package quotaengine

import (
	"sync"
	"time"

	"github.com/stackmint/quotaengine/store"
)

// DefaultRegistrySize bounds how many distinct limiter configurations a
// Registry caches before evicting.
const DefaultRegistrySize = 256

type registryKey struct {
	keyPrefix string
	limit     int64
	window    time.Duration
}

// Registry hands out one shared SlidingWindow per (keyPrefix, limit, window)
// configuration, so call sites do not rebuild limiter state on every request.
//
// The cache is explicit, injected state rather than a package-level global,
// and it is bounded: when full, an arbitrary entry is evicted. Evicting a
// limiter only discards the wrapper, never counter state, which lives in the
// adapter's stores.
type Registry struct {
	adapter *store.Adapter
	maxSize int

	mu       sync.Mutex
	limiters map[registryKey]*SlidingWindow
}

// NewRegistry creates a registry backed by the given adapter. maxSize <= 0
// falls back to DefaultRegistrySize.
func NewRegistry(adapter *store.Adapter, maxSize int) *Registry {
	if maxSize <= 0 {
		maxSize = DefaultRegistrySize
	}
	return &Registry{
		adapter:  adapter,
		maxSize:  maxSize,
		limiters: make(map[registryKey]*SlidingWindow),
	}
}

// For returns the cached limiter for the given call-site configuration,
// creating it on first use. A distinct configuration gets a distinct
// limiter.
func (r *Registry) For(keyPrefix string, limit int64, window time.Duration) *SlidingWindow {
	key := registryKey{keyPrefix: keyPrefix, limit: limit, window: window}

	r.mu.Lock()
	defer r.mu.Unlock()

	if l, ok := r.limiters[key]; ok {
		return l
	}
	if len(r.limiters) >= r.maxSize {
		for k := range r.limiters {
			delete(r.limiters, k)
			break
		}
	}
	l := NewSlidingWindow(r.adapter, keyPrefix, limit, window)
	r.limiters[key] = l
	return l
}

// Len reports how many limiter configurations are currently cached.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.limiters)
}
