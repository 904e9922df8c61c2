package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/flashmart/seckill/internal/cache"
	"github.com/flashmart/seckill/internal/model"
	"github.com/flashmart/seckill/internal/store"
	"go.uber.org/zap"
)

// ErrMissingShopID is returned when an update carries no shop id
var ErrMissingShopID = errors.New("shop id is required")

// CachePolicy selects the cache guard's read policy
type CachePolicy string

const (
	PolicyMutex   CachePolicy = "mutex"
	PolicyLogical CachePolicy = "logical"
)

// ShopService serves the cache-protected shop read path and the
// write-through-invalidation update path.
type ShopService struct {
	shops      store.ShopStore
	guard      *cache.Guard
	policy     CachePolicy
	logicalTTL time.Duration
	logger     *zap.Logger
}

// NewShopService creates a new shop service
func NewShopService(shops store.ShopStore, guard *cache.Guard, policy CachePolicy, logicalTTL time.Duration, logger *zap.Logger) *ShopService {
	return &ShopService{
		shops:      shops,
		guard:      guard,
		policy:     policy,
		logicalTTL: logicalTTL,
		logger:     logger,
	}
}

func shopCacheKey(id int64) string {
	return fmt.Sprintf("cache:shop:%d", id)
}

func shopLockName(id int64) string {
	return fmt.Sprintf("shop:%d", id)
}

// QueryByID reads a shop through the configured cache policy
func (s *ShopService) QueryByID(ctx context.Context, id int64) (*model.Shop, error) {
	load := func(ctx context.Context) ([]byte, error) {
		shop, err := s.shops.GetShop(ctx, id)
		if err != nil {
			return nil, err
		}
		return json.Marshal(shop)
	}

	var payload []byte
	var err error
	switch s.policy {
	case PolicyLogical:
		payload, err = s.guard.QueryWithLogicalExpire(ctx, "shop", shopCacheKey(id), shopLockName(id), s.logicalTTL, load)
	default:
		payload, err = s.guard.QueryWithMutex(ctx, "shop", shopCacheKey(id), shopLockName(id), load)
	}
	if err != nil {
		return nil, err
	}

	var shop model.Shop
	if err := json.Unmarshal(payload, &shop); err != nil {
		return nil, fmt.Errorf("failed to decode cached shop %d: %w", id, err)
	}
	return &shop, nil
}

// Update writes the shop to the relational store first and deletes the cache
// entry second; the next read repopulates lazily.
func (s *ShopService) Update(ctx context.Context, shop *model.Shop) error {
	if shop.ID == 0 {
		return ErrMissingShopID
	}

	if err := s.shops.UpdateShop(ctx, shop); err != nil {
		return err
	}
	if err := s.guard.Delete(ctx, shopCacheKey(shop.ID)); err != nil {
		return fmt.Errorf("failed to invalidate shop cache: %w", err)
	}

	s.logger.Debug("Shop updated and cache invalidated",
		zap.Int64("shop_id", shop.ID))
	return nil
}

// Prewarm loads a shop and writes it as a logical-expiration entry. The
// logical policy never loads synchronously, so hot entries must be seeded
// before the traffic arrives.
func (s *ShopService) Prewarm(ctx context.Context, id int64, validity time.Duration) error {
	shop, err := s.shops.GetShop(ctx, id)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(shop)
	if err != nil {
		return fmt.Errorf("failed to encode shop %d: %w", id, err)
	}
	return s.guard.SetWithLogicalExpire(ctx, shopCacheKey(id), payload, validity)
}
