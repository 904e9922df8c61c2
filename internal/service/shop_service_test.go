package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/flashmart/seckill/internal/cache"
	"github.com/flashmart/seckill/internal/model"
	"github.com/flashmart/seckill/internal/store"
	"github.com/flashmart/seckill/internal/util/workerpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeShopStore is an in-memory ShopStore counting reads.
type fakeShopStore struct {
	mu       sync.Mutex
	shops    map[int64]model.Shop
	getCalls int
}

func newFakeShopStore(shops ...model.Shop) *fakeShopStore {
	s := &fakeShopStore{shops: make(map[int64]model.Shop)}
	for _, shop := range shops {
		s.shops[shop.ID] = shop
	}
	return s
}

func (s *fakeShopStore) GetShop(ctx context.Context, id int64) (*model.Shop, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getCalls++
	shop, ok := s.shops[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &shop, nil
}

func (s *fakeShopStore) UpdateShop(ctx context.Context, shop *model.Shop) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.shops[shop.ID]; !ok {
		return store.ErrNotFound
	}
	s.shops[shop.ID] = *shop
	return nil
}

func (s *fakeShopStore) reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getCalls
}

func newTestShopService(t *testing.T, shops store.ShopStore, policy CachePolicy) (*ShopService, *cache.Guard) {
	t.Helper()
	kv := store.NewMemoryKVStore()
	pool := workerpool.New("rebuild-test", 2, 16, zap.NewNop())
	t.Cleanup(func() { pool.Stop(time.Second) })
	guard := cache.NewGuard(kv, pool, nil, cache.Config{
		TTL:           time.Minute,
		NullTTL:       time.Minute,
		LockLease:     10 * time.Second,
		RetryInterval: time.Millisecond,
		MaxRetries:    100,
	}, zap.NewNop())
	return NewShopService(shops, guard, policy, time.Minute, zap.NewNop()), guard
}

func TestShopQueryByID_CachesAfterFirstRead(t *testing.T) {
	shops := newFakeShopStore(model.Shop{ID: 1, Name: "cafe", TypeID: 2})
	svc, _ := newTestShopService(t, shops, PolicyMutex)
	ctx := context.Background()

	shop, err := svc.QueryByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "cafe", shop.Name)
	assert.Equal(t, 1, shops.reads())

	shop, err = svc.QueryByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "cafe", shop.Name)
	assert.Equal(t, 1, shops.reads(), "second read must be served from cache")
}

func TestShopQueryByID_MissingShop(t *testing.T) {
	shops := newFakeShopStore()
	svc, _ := newTestShopService(t, shops, PolicyMutex)
	ctx := context.Background()

	_, err := svc.QueryByID(ctx, 42)
	assert.ErrorIs(t, err, store.ErrNotFound)

	// The cached null absorbs repeated probes for the same missing id.
	_, err = svc.QueryByID(ctx, 42)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, 1, shops.reads())
}

func TestShopUpdate_InvalidatesCache(t *testing.T) {
	shops := newFakeShopStore(model.Shop{ID: 1, Name: "cafe"})
	svc, _ := newTestShopService(t, shops, PolicyMutex)
	ctx := context.Background()

	shop, err := svc.QueryByID(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "cafe", shop.Name)

	shop.Name = "bistro"
	require.NoError(t, svc.Update(ctx, shop))

	// Next read reflects the database write immediately.
	shop, err = svc.QueryByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "bistro", shop.Name)
	assert.Equal(t, 2, shops.reads())
}

func TestShopUpdate_RequiresID(t *testing.T) {
	svc, _ := newTestShopService(t, newFakeShopStore(), PolicyMutex)

	err := svc.Update(context.Background(), &model.Shop{Name: "nameless"})
	assert.ErrorIs(t, err, ErrMissingShopID)
}

func TestShopLogicalPolicy_RequiresPrewarm(t *testing.T) {
	shops := newFakeShopStore(model.Shop{ID: 1, Name: "cafe"})
	svc, _ := newTestShopService(t, shops, PolicyLogical)
	ctx := context.Background()

	// Never loads synchronously: an unseeded entry reads as missing even
	// though the row exists.
	_, err := svc.QueryByID(ctx, 1)
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, svc.Prewarm(ctx, 1, time.Minute))

	shop, err := svc.QueryByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "cafe", shop.Name)
}

func TestShopLogicalPolicy_StaleReadRefreshesInBackground(t *testing.T) {
	shops := newFakeShopStore(model.Shop{ID: 1, Name: "cafe"})
	svc, _ := newTestShopService(t, shops, PolicyLogical)
	ctx := context.Background()

	// Seed an entry that is already logically expired, then change the row.
	require.NoError(t, svc.Prewarm(ctx, 1, -time.Second))
	shops.mu.Lock()
	shops.shops[1] = model.Shop{ID: 1, Name: "bistro"}
	shops.mu.Unlock()

	// The stale read still serves the old name.
	shop, err := svc.QueryByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "cafe", shop.Name)

	require.Eventually(t, func() bool {
		shop, err := svc.QueryByID(ctx, 1)
		return err == nil && shop.Name == "bistro"
	}, 2*time.Second, 10*time.Millisecond)
}
