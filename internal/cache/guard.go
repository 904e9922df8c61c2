// Package cache implements the read-through cache guard protecting the
// relational store: mutex rebuild against cache breakdown, logical
// expiration for hot pre-warmed entries, null-value caching against
// penetration, and TTL jitter against avalanche.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/flashmart/seckill/internal/lock"
	"github.com/flashmart/seckill/internal/metrics"
	"github.com/flashmart/seckill/internal/store"
	"github.com/flashmart/seckill/internal/util/workerpool"
	"go.uber.org/zap"
)

// ErrLockTimeout is returned when a mutex-rebuild read exhausts its retries
// while another loader holds the rebuild lock.
var ErrLockTimeout = errors.New("cache: timed out waiting for rebuild lock")

// nullSentinel marks "known absent" in the cache so repeated lookups of
// missing keys never reach the relational store.
const nullSentinel = ""

// LoadFunc loads the source-of-truth payload on a cache miss. It returns
// store.ErrNotFound when the entity does not exist.
type LoadFunc func(ctx context.Context) ([]byte, error)

// Config holds cache guard tuning
type Config struct {
	TTL           time.Duration // baseline TTL for payload entries
	NullTTL       time.Duration // short TTL for null sentinels
	LockLease     time.Duration // rebuild lock lease
	RetryInterval time.Duration // sleep between mutex-rebuild retries
	MaxRetries    int           // retry budget before ErrLockTimeout
}

// Guard is the read-through cache logic. The KV store owns the entries; the
// guard is their only writer.
type Guard struct {
	kv       store.KeyValueStore
	rebuilds *workerpool.WorkerPool
	metrics  *metrics.Metrics
	logger   *zap.Logger
	cfg      Config
}

// expirableEntry is the encoding of a logical-expiration entry. It never
// carries a store-level TTL; staleness is judged against ExpireAt alone.
type expirableEntry struct {
	Data     json.RawMessage `json:"data"`
	ExpireAt time.Time       `json:"expire_at"`
}

// NewGuard creates a new cache guard
func NewGuard(kv store.KeyValueStore, rebuilds *workerpool.WorkerPool, m *metrics.Metrics, cfg Config, logger *zap.Logger) *Guard {
	return &Guard{
		kv:       kv,
		rebuilds: rebuilds,
		metrics:  m,
		logger:   logger,
		cfg:      cfg,
	}
}

// QueryWithMutex reads key and on a miss rebuilds it under the named rebuild
// lock so at most one loader runs per key. Readers that lose the lock race
// sleep and retry the whole read; the retry budget bounds the wait instead
// of the lease alone, so contention surfaces as ErrLockTimeout rather than
// an unbounded spin.
func (g *Guard) QueryWithMutex(ctx context.Context, cacheType, key, lockName string, load LoadFunc) ([]byte, error) {
	for attempt := 0; attempt <= g.cfg.MaxRetries; attempt++ {
		value, err := g.kv.Get(ctx, key)
		if err == nil {
			g.metrics.RecordCacheHit(cacheType)
			if value == nullSentinel {
				return nil, store.ErrNotFound
			}
			return []byte(value), nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		g.metrics.RecordCacheMiss(cacheType)

		payload, rebuilt, err := g.rebuildWithMutex(ctx, key, lockName, load)
		if rebuilt {
			return payload, err
		}
		if err != nil {
			return nil, err
		}

		// Lock busy: another loader is rebuilding. Sleep and re-read.
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(g.cfg.RetryInterval):
		}
	}
	return nil, ErrLockTimeout
}

// rebuildWithMutex tries to become the single loader for key. The second
// return value reports whether this caller held the lock and produced a
// definitive result; false means the lock was busy and the read should
// retry.
func (g *Guard) rebuildWithMutex(ctx context.Context, key, lockName string, load LoadFunc) ([]byte, bool, error) {
	lk := lock.New(g.kv, lockName, g.logger)
	acquired, err := lk.TryLock(ctx, g.cfg.LockLease)
	if err != nil {
		return nil, false, err
	}
	if !acquired {
		return nil, false, nil
	}
	defer func() {
		if err := lk.Unlock(context.WithoutCancel(ctx)); err != nil {
			g.logger.Warn("Failed to release rebuild lock",
				zap.String("lock", lockName),
				zap.Error(err))
		}
	}()

	// Re-check: another holder may have filled the entry while we raced for
	// the lock.
	value, err := g.kv.Get(ctx, key)
	if err == nil {
		if value == nullSentinel {
			return nil, true, store.ErrNotFound
		}
		return []byte(value), true, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, true, err
	}

	data, err := load(ctx)
	if errors.Is(err, store.ErrNotFound) {
		if err := g.kv.Set(ctx, key, nullSentinel, g.cfg.NullTTL); err != nil {
			return nil, true, err
		}
		g.metrics.RecordCacheRebuild("mutex", "absent")
		return nil, true, store.ErrNotFound
	}
	if err != nil {
		g.metrics.RecordCacheRebuild("mutex", "error")
		return nil, true, err
	}

	if err := g.kv.Set(ctx, key, string(data), g.jitteredTTL()); err != nil {
		return nil, true, err
	}
	g.metrics.RecordCacheRebuild("mutex", "ok")
	return data, true, nil
}

// QueryWithLogicalExpire reads a pre-warmed entry. A fresh entry returns
// immediately; a stale entry is returned as-is while at most one rebuild is
// scheduled on the worker pool, so readers are never blocked by a reload.
// An absent entry means "not found": this policy never loads synchronously.
func (g *Guard) QueryWithLogicalExpire(ctx context.Context, cacheType, key, lockName string, validity time.Duration, load LoadFunc) ([]byte, error) {
	raw, err := g.kv.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		g.metrics.RecordCacheMiss(cacheType)
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var entry expirableEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return nil, fmt.Errorf("malformed cache entry %s: %w", key, err)
	}
	if time.Now().Before(entry.ExpireAt) {
		g.metrics.RecordCacheHit(cacheType)
		return entry.Data, nil
	}

	g.scheduleRebuild(ctx, key, lockName, validity, load)
	return entry.Data, nil
}

// SetWithLogicalExpire writes a logical-expiration entry. The entry never
// physically expires in the store.
func (g *Guard) SetWithLogicalExpire(ctx context.Context, key string, data []byte, validity time.Duration) error {
	entry := expirableEntry{
		Data:     data,
		ExpireAt: time.Now().Add(validity),
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}
	return g.kv.Set(ctx, key, string(raw), 0)
}

// Delete removes a cache entry. Callers update the relational store first
// and delete second, so a reader can never observe a cache value newer than
// a failed write.
func (g *Guard) Delete(ctx context.Context, key string) error {
	return g.kv.Delete(ctx, key)
}

// scheduleRebuild try-acquires the rebuild lock and, if it wins, hands the
// reload to the worker pool. Losing the lock means a rebuild is already in
// flight.
func (g *Guard) scheduleRebuild(ctx context.Context, key, lockName string, validity time.Duration, load LoadFunc) {
	lk := lock.New(g.kv, lockName, g.logger)
	acquired, err := lk.TryLock(ctx, g.cfg.LockLease)
	if err != nil {
		g.logger.Warn("Rebuild lock attempt failed",
			zap.String("key", key),
			zap.Error(err))
		return
	}
	if !acquired {
		return
	}

	task := workerpool.Task{
		ID: key,
		Fn: func(taskCtx context.Context) error {
			defer func() {
				if err := lk.Unlock(taskCtx); err != nil {
					g.logger.Warn("Failed to release rebuild lock",
						zap.String("key", key),
						zap.Error(err))
				}
			}()

			// The entry may have been refreshed between the stale read and
			// this task running.
			if raw, err := g.kv.Get(taskCtx, key); err == nil {
				var entry expirableEntry
				if json.Unmarshal([]byte(raw), &entry) == nil && time.Now().Before(entry.ExpireAt) {
					return nil
				}
			}

			data, err := load(taskCtx)
			if errors.Is(err, store.ErrNotFound) {
				g.metrics.RecordCacheRebuild("logical", "absent")
				return g.kv.Delete(taskCtx, key)
			}
			if err != nil {
				g.metrics.RecordCacheRebuild("logical", "error")
				return fmt.Errorf("rebuild of %s failed: %w", key, err)
			}
			if err := g.SetWithLogicalExpire(taskCtx, key, data, validity); err != nil {
				g.metrics.RecordCacheRebuild("logical", "error")
				return err
			}
			g.metrics.RecordCacheRebuild("logical", "ok")
			return nil
		},
	}
	if !g.rebuilds.TrySubmit(task) {
		// Pool saturated; the next stale read tries again.
		if err := lk.Unlock(ctx); err != nil {
			g.logger.Warn("Failed to release rebuild lock",
				zap.String("key", key),
				zap.Error(err))
		}
	}
}

// jitteredTTL spreads entry expiry so a burst of rebuilds does not produce a
// burst of simultaneous expirations later.
func (g *Guard) jitteredTTL() time.Duration {
	jitter := time.Duration(rand.Int63n(int64(g.cfg.TTL)/10 + 1))
	return g.cfg.TTL + jitter
}
