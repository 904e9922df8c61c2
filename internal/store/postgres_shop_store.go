package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/flashmart/seckill/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// PostgresShopStore implements ShopStore for PostgreSQL
type PostgresShopStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresShopStore creates a new PostgreSQL shop store
func NewPostgresShopStore(pool *pgxpool.Pool, logger *zap.Logger) *PostgresShopStore {
	return &PostgresShopStore{
		pool:   pool,
		logger: logger,
	}
}

// GetShop retrieves a shop by id
func (s *PostgresShopStore) GetShop(ctx context.Context, id int64) (*model.Shop, error) {
	query := `
		SELECT id, name, type_id, address, avg_price, sold, created_at, updated_at
		FROM shops
		WHERE id = $1
	`

	var shop model.Shop
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&shop.ID,
		&shop.Name,
		&shop.TypeID,
		&shop.Address,
		&shop.AvgPrice,
		&shop.Sold,
		&shop.CreatedAt,
		&shop.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get shop: %w", err)
	}

	return &shop, nil
}

// UpdateShop updates a shop row
func (s *PostgresShopStore) UpdateShop(ctx context.Context, shop *model.Shop) error {
	query := `
		UPDATE shops
		SET name = $2, type_id = $3, address = $4, avg_price = $5, sold = $6, updated_at = NOW()
		WHERE id = $1
	`

	result, err := s.pool.Exec(ctx, query,
		shop.ID,
		shop.Name,
		shop.TypeID,
		shop.Address,
		shop.AvgPrice,
		shop.Sold,
	)
	if err != nil {
		return fmt.Errorf("failed to update shop: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}
