package quota

import (
	"context"
	"sync"
	"time"
)

type usageKey struct {
	identity string
	res      Resource
	month    string
}

// MemoryUsageStore is an in-memory implementation of UsageStore. It is
// thread-safe and suitable for tests and single-instance deployments.
type MemoryUsageStore struct {
	mu      sync.RWMutex
	records map[usageKey]UsageRecord
	now     func() time.Time
}

// NewMemoryUsageStore creates a new in-memory usage store.
func NewMemoryUsageStore() *MemoryUsageStore {
	return &MemoryUsageStore{
		records: make(map[usageKey]UsageRecord),
		now:     time.Now,
	}
}

// Get returns the stored record, or a zero-count record when none exists.
func (s *MemoryUsageStore) Get(ctx context.Context, identity string, res Resource, month string) (UsageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if rec, ok := s.records[usageKey{identity, res, month}]; ok {
		return rec, nil
	}
	return UsageRecord{Identity: identity, Resource: res, Month: month}, nil
}

// Increment upserts the record and adds amount to its count.
func (s *MemoryUsageStore) Increment(ctx context.Context, identity string, res Resource, month string, amount int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := usageKey{identity, res, month}
	now := s.now()
	rec, ok := s.records[key]
	if !ok {
		rec = UsageRecord{
			Identity:  identity,
			Resource:  res,
			Month:     month,
			LastReset: now,
		}
	}
	rec.Count += amount
	rec.LastUpdated = now
	s.records[key] = rec
	return rec.Count, nil
}

// Reset deletes the record.
func (s *MemoryUsageStore) Reset(ctx context.Context, identity string, res Resource, month string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, usageKey{identity, res, month})
	return nil
}

// MemoryDocStore is an in-memory implementation of DocStore. One mutex
// serializes all Updates, which trivially satisfies the per-identity
// serialization contract.
type MemoryDocStore struct {
	mu   sync.Mutex
	docs map[string]UsageDoc
}

// NewMemoryDocStore creates a new in-memory document store.
func NewMemoryDocStore() *MemoryDocStore {
	return &MemoryDocStore{docs: make(map[string]UsageDoc)}
}

// Update applies fn to a copy of the identity's document and commits the
// copy only when fn succeeds, so a rejected attempt leaves no trace.
func (s *MemoryDocStore) Update(ctx context.Context, identity string, fn func(doc *UsageDoc) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := s.docs[identity]
	doc := UsageDoc{
		Month:    stored.Month,
		Counters: make(map[Resource]int64, len(stored.Counters)),
	}
	for res, n := range stored.Counters {
		doc.Counters[res] = n
	}

	if err := fn(&doc); err != nil {
		return err
	}
	s.docs[identity] = doc
	return nil
}
