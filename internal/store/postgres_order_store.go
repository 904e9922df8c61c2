package store

import (
	"context"
	"fmt"

	"github.com/flashmart/seckill/internal/model"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// PostgresOrderStore implements OrderStore for PostgreSQL
type PostgresOrderStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresOrderStore creates a new PostgreSQL order store
func NewPostgresOrderStore(pool *pgxpool.Pool, logger *zap.Logger) *PostgresOrderStore {
	return &PostgresOrderStore{
		pool:   pool,
		logger: logger,
	}
}

// CreateOrder persists one admitted order inside a single transaction:
// re-check (user, voucher) uniqueness, conditionally decrement stock, insert
// the order row. The uniqueness check duplicates the admission gate's check
// as a safety net against script replay; the stock > 0 guard keeps the
// persisted count from ever exceeding inventory even if the gate were
// bypassed. Either no-op path commits without an error: the queue entry must
// still be acknowledged.
func (s *PostgresOrderStore) CreateOrder(ctx context.Context, order *model.VoucherOrder) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var count int64
	err = tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM voucher_orders WHERE user_id = $1 AND voucher_id = $2`,
		order.UserID, order.VoucherID,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("failed to count existing orders: %w", err)
	}
	if count > 0 {
		s.logger.Warn("Order already persisted for user",
			zap.Int64("user_id", order.UserID),
			zap.Int64("voucher_id", order.VoucherID))
		return tx.Commit(ctx)
	}

	result, err := tx.Exec(ctx,
		`UPDATE seckill_vouchers SET stock = stock - 1 WHERE voucher_id = $1 AND stock > 0`,
		order.VoucherID,
	)
	if err != nil {
		return fmt.Errorf("failed to decrement stock: %w", err)
	}
	if result.RowsAffected() == 0 {
		s.logger.Warn("Persisted stock exhausted, dropping order",
			zap.Int64("order_id", order.OrderID),
			zap.Int64("voucher_id", order.VoucherID))
		return tx.Commit(ctx)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO voucher_orders (order_id, user_id, voucher_id, created_at) VALUES ($1, $2, $3, NOW())`,
		order.OrderID, order.UserID, order.VoucherID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit order: %w", err)
	}

	s.logger.Debug("Order persisted",
		zap.Int64("order_id", order.OrderID),
		zap.Int64("user_id", order.UserID),
		zap.Int64("voucher_id", order.VoucherID))
	return nil
}

// CountByUserAndVoucher counts persisted orders for a (user, voucher) pair
func (s *PostgresOrderStore) CountByUserAndVoucher(ctx context.Context, userID, voucherID int64) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM voucher_orders WHERE user_id = $1 AND voucher_id = $2`,
		userID, voucherID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count orders: %w", err)
	}
	return count, nil
}
