package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/flashmart/seckill/internal/store"
	"github.com/flashmart/seckill/internal/util/workerpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig() Config {
	return Config{
		TTL:           time.Minute,
		NullTTL:       time.Minute,
		LockLease:     10 * time.Second,
		RetryInterval: time.Millisecond,
		MaxRetries:    200,
	}
}

func newTestGuard(t *testing.T, cfg Config) (*Guard, *store.MemoryKVStore) {
	t.Helper()
	kv := store.NewMemoryKVStore()
	pool := workerpool.New("rebuild-test", 2, 16, zap.NewNop())
	t.Cleanup(func() { pool.Stop(time.Second) })
	return NewGuard(kv, pool, nil, cfg, zap.NewNop()), kv
}

func TestQueryWithMutex_Hit(t *testing.T) {
	guard, kv := newTestGuard(t, testConfig())
	ctx := context.Background()
	require.NoError(t, kv.Set(ctx, "cache:shop:1", `{"id":1}`, time.Minute))

	loaded := false
	payload, err := guard.QueryWithMutex(ctx, "shop", "cache:shop:1", "shop:1", func(ctx context.Context) ([]byte, error) {
		loaded = true
		return nil, nil
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":1}`, string(payload))
	assert.False(t, loaded, "hit must not invoke the loader")
}

func TestQueryWithMutex_MissLoadsOnceAndCaches(t *testing.T) {
	guard, kv := newTestGuard(t, testConfig())
	ctx := context.Background()

	var loads int
	load := func(ctx context.Context) ([]byte, error) {
		loads++
		return []byte(`{"id":1,"name":"cafe"}`), nil
	}

	payload, err := guard.QueryWithMutex(ctx, "shop", "cache:shop:1", "shop:1", load)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":1,"name":"cafe"}`, string(payload))
	assert.Equal(t, 1, loads)

	// Second read is served from the cache.
	payload, err = guard.QueryWithMutex(ctx, "shop", "cache:shop:1", "shop:1", load)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":1,"name":"cafe"}`, string(payload))
	assert.Equal(t, 1, loads)

	value, err := kv.Get(ctx, "cache:shop:1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":1,"name":"cafe"}`, value)
}

func TestQueryWithMutex_NullSentinelSuppressesReload(t *testing.T) {
	guard, _ := newTestGuard(t, testConfig())
	ctx := context.Background()

	var loads int
	load := func(ctx context.Context) ([]byte, error) {
		loads++
		return nil, store.ErrNotFound
	}

	_, err := guard.QueryWithMutex(ctx, "shop", "cache:shop:404", "shop:404", load)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, 1, loads)

	// The cached null answers the next miss without touching the source.
	_, err = guard.QueryWithMutex(ctx, "shop", "cache:shop:404", "shop:404", load)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, 1, loads)
}

func TestQueryWithMutex_SingleLoaderUnderConcurrency(t *testing.T) {
	guard, _ := newTestGuard(t, testConfig())
	ctx := context.Background()

	var loads atomic.Int64
	load := func(ctx context.Context) ([]byte, error) {
		loads.Add(1)
		time.Sleep(20 * time.Millisecond) // widen the race window
		return []byte(`{"id":7}`), nil
	}

	const readers = 50
	var wg sync.WaitGroup
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			payload, err := guard.QueryWithMutex(ctx, "shop", "cache:shop:7", "shop:7", load)
			if err != nil {
				t.Error(err)
				return
			}
			if string(payload) != `{"id":7}` {
				t.Errorf("unexpected payload %q", payload)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), loads.Load(), "exactly one reader rebuilds per miss")
}

func TestQueryWithMutex_LockBusyExhaustsRetries(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRetries = 3
	guard, kv := newTestGuard(t, cfg)
	ctx := context.Background()

	// Another process holds the rebuild lock and never fills the entry.
	ok, err := kv.SetNX(ctx, "lock:shop:1", "other-holder", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = guard.QueryWithMutex(ctx, "shop", "cache:shop:1", "shop:1", func(ctx context.Context) ([]byte, error) {
		t.Fatal("loader must not run while the lock is held elsewhere")
		return nil, nil
	})
	assert.ErrorIs(t, err, ErrLockTimeout)
}

func TestQueryWithLogicalExpire_AbsentIsNotFound(t *testing.T) {
	guard, _ := newTestGuard(t, testConfig())

	_, err := guard.QueryWithLogicalExpire(context.Background(), "shop", "cache:shop:1", "shop:1", time.Minute, func(ctx context.Context) ([]byte, error) {
		t.Fatal("logical policy must not load synchronously")
		return nil, nil
	})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestQueryWithLogicalExpire_FreshEntry(t *testing.T) {
	guard, _ := newTestGuard(t, testConfig())
	ctx := context.Background()

	require.NoError(t, guard.SetWithLogicalExpire(ctx, "cache:shop:1", []byte(`{"id":1}`), time.Minute))

	payload, err := guard.QueryWithLogicalExpire(ctx, "shop", "cache:shop:1", "shop:1", time.Minute, func(ctx context.Context) ([]byte, error) {
		t.Fatal("fresh entry must not trigger a rebuild")
		return nil, nil
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":1}`, string(payload))
}

func TestQueryWithLogicalExpire_StaleServesOldAndRebuildsAsync(t *testing.T) {
	guard, kv := newTestGuard(t, testConfig())
	ctx := context.Background()

	// Seed an already-expired entry.
	require.NoError(t, guard.SetWithLogicalExpire(ctx, "cache:shop:1", []byte(`{"id":1,"name":"old"}`), -time.Second))

	var loads atomic.Int64
	load := func(ctx context.Context) ([]byte, error) {
		loads.Add(1)
		return []byte(`{"id":1,"name":"new"}`), nil
	}

	payload, err := guard.QueryWithLogicalExpire(ctx, "shop", "cache:shop:1", "shop:1", time.Minute, load)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":1,"name":"old"}`, string(payload), "stale read returns the old payload immediately")

	require.Eventually(t, func() bool {
		raw, err := kv.Get(ctx, "cache:shop:1")
		if err != nil {
			return false
		}
		var entry expirableEntry
		if json.Unmarshal([]byte(raw), &entry) != nil {
			return false
		}
		return string(entry.Data) == `{"id":1,"name":"new"}` && time.Now().Before(entry.ExpireAt)
	}, time.Second, 5*time.Millisecond, "background rebuild must refresh the entry")
	assert.Equal(t, int64(1), loads.Load())
}

func TestQueryWithLogicalExpire_StaleSourceGoneDropsEntry(t *testing.T) {
	guard, kv := newTestGuard(t, testConfig())
	ctx := context.Background()

	require.NoError(t, guard.SetWithLogicalExpire(ctx, "cache:shop:1", []byte(`{"id":1}`), -time.Second))

	load := func(ctx context.Context) ([]byte, error) {
		return nil, store.ErrNotFound
	}

	// Stale read still serves the old payload once.
	payload, err := guard.QueryWithLogicalExpire(ctx, "shop", "cache:shop:1", "shop:1", time.Minute, load)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":1}`, string(payload))

	require.Eventually(t, func() bool {
		_, err := kv.Get(ctx, "cache:shop:1")
		return errors.Is(err, store.ErrNotFound)
	}, time.Second, 5*time.Millisecond, "rebuild of a deleted entity must drop the entry")
}

func TestDelete_NextReadReloads(t *testing.T) {
	guard, _ := newTestGuard(t, testConfig())
	ctx := context.Background()

	var loads int
	load := func(ctx context.Context) ([]byte, error) {
		loads++
		return []byte(`{"id":1}`), nil
	}

	_, err := guard.QueryWithMutex(ctx, "shop", "cache:shop:1", "shop:1", load)
	require.NoError(t, err)
	require.NoError(t, guard.Delete(ctx, "cache:shop:1"))

	_, err = guard.QueryWithMutex(ctx, "shop", "cache:shop:1", "shop:1", load)
	require.NoError(t, err)
	assert.Equal(t, 2, loads)
}
