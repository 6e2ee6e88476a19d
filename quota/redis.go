package quota

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultUsagePrefix = "quota:usage:"
	defaultDocPrefix   = "quota:doc:"

	// counterField prefixes per-feature counters inside the usage document
	// hash, keeping them apart from the month marker.
	counterField = "c:"

	defaultTxRetries = 32
)

// RedisUsageStore implements UsageStore on a Redis hash per
// (identity, resource, month). The count lives under its own field and is
// incremented with HINCRBY, Redis's native atomic increment, so concurrent
// recorders never lose updates.
type RedisUsageStore struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// RedisOption configures the Redis-backed stores.
type RedisOption func(*redisOptions)

type redisOptions struct {
	prefix    string
	txRetries int
}

// WithPrefix overrides the key prefix.
func WithPrefix(prefix string) RedisOption {
	return func(o *redisOptions) {
		if prefix != "" {
			o.prefix = prefix
		}
	}
}

// WithTxRetries overrides how many times a conflicted document transaction
// is retried before giving up.
func WithTxRetries(n int) RedisOption {
	return func(o *redisOptions) {
		if n > 0 {
			o.txRetries = n
		}
	}
}

// NewRedisUsageStore creates a usage store over the given client.
func NewRedisUsageStore(client redis.UniversalClient, opts ...RedisOption) *RedisUsageStore {
	o := &redisOptions{prefix: defaultUsagePrefix}
	for _, opt := range opts {
		opt(o)
	}
	return &RedisUsageStore{client: client, prefix: o.prefix, now: time.Now}
}

func (s *RedisUsageStore) key(identity string, res Resource, month string) string {
	return s.prefix + identity + ":" + string(res) + ":" + month
}

// Get reads the record, returning a zero-count record when none exists.
func (s *RedisUsageStore) Get(ctx context.Context, identity string, res Resource, month string) (UsageRecord, error) {
	rec := UsageRecord{Identity: identity, Resource: res, Month: month}

	vals, err := s.client.HGetAll(ctx, s.key(identity, res, month)).Result()
	if err != nil {
		return rec, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if len(vals) == 0 {
		return rec, nil
	}

	rec.Count, _ = strconv.ParseInt(vals["count"], 10, 64)
	rec.LastReset = parseUnix(vals["last_reset"])
	rec.LastUpdated = parseUnix(vals["last_updated"])
	return rec, nil
}

// Increment upserts the record and atomically adds amount to its count.
func (s *RedisUsageStore) Increment(ctx context.Context, identity string, res Resource, month string, amount int64) (int64, error) {
	key := s.key(identity, res, month)
	now := s.now().Unix()

	var incr *redis.IntCmd
	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.HIncrBy(ctx, key, "count", amount)
		pipe.HSetNX(ctx, key, "last_reset", now)
		pipe.HSet(ctx, key, "last_updated", now)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return incr.Val(), nil
}

// Reset deletes the record.
func (s *RedisUsageStore) Reset(ctx context.Context, identity string, res Resource, month string) error {
	if err := s.client.Del(ctx, s.key(identity, res, month)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// RedisDocStore implements DocStore with optimistic transactions: WATCH on
// the identity's document key, read, apply fn, then write inside MULTI/EXEC.
// A concurrent write between WATCH and EXEC fails the transaction, which is
// retried, so Updates for one identity serialize without any lock manager.
type RedisDocStore struct {
	client    redis.UniversalClient
	prefix    string
	txRetries int
}

// NewRedisDocStore creates a document store over the given client.
func NewRedisDocStore(client redis.UniversalClient, opts ...RedisOption) *RedisDocStore {
	o := &redisOptions{prefix: defaultDocPrefix, txRetries: defaultTxRetries}
	for _, opt := range opts {
		opt(o)
	}
	return &RedisDocStore{client: client, prefix: o.prefix, txRetries: o.txRetries}
}

// Update runs fn inside an optimistic transaction on the identity's
// document. Errors returned by fn abort the transaction and come back
// unwrapped; infrastructure failures come back wrapped in
// ErrStoreUnavailable.
func (s *RedisDocStore) Update(ctx context.Context, identity string, fn func(doc *UsageDoc) error) error {
	key := s.prefix + identity

	var fnErr error
	txf := func(tx *redis.Tx) error {
		vals, err := tx.HGetAll(ctx, key).Result()
		if err != nil {
			return err
		}
		doc := docFromHash(vals)

		fnErr = fn(&doc)
		if fnErr != nil {
			return fnErr
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			// Rewrite the whole document so counters reset by a month
			// rollover do not survive as stale fields.
			pipe.Del(ctx, key)
			pipe.HSet(ctx, key, docToHash(doc)...)
			return nil
		})
		return err
	}

	for i := 0; i < s.txRetries; i++ {
		fnErr = nil
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return nil
		}
		if fnErr != nil {
			return fnErr
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return fmt.Errorf("%w: transaction conflict retries exhausted for %q", ErrStoreUnavailable, identity)
}

func docFromHash(vals map[string]string) UsageDoc {
	doc := UsageDoc{
		Month:    vals["month"],
		Counters: make(map[Resource]int64),
	}
	for field, val := range vals {
		if len(field) > len(counterField) && field[:len(counterField)] == counterField {
			n, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				continue
			}
			doc.Counters[Resource(field[len(counterField):])] = n
		}
	}
	return doc
}

func docToHash(doc UsageDoc) []interface{} {
	fields := make([]interface{}, 0, 2+2*len(doc.Counters))
	fields = append(fields, "month", doc.Month)
	for res, n := range doc.Counters {
		fields = append(fields, counterField+string(res), n)
	}
	return fields
}

func parseUnix(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	sec, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
