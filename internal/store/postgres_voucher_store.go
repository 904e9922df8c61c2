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

// PostgresVoucherStore implements VoucherStore for PostgreSQL
type PostgresVoucherStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresVoucherStore creates a new PostgreSQL voucher store
func NewPostgresVoucherStore(pool *pgxpool.Pool, logger *zap.Logger) *PostgresVoucherStore {
	return &PostgresVoucherStore{
		pool:   pool,
		logger: logger,
	}
}

// GetVoucher retrieves a seckill voucher by id
func (s *PostgresVoucherStore) GetVoucher(ctx context.Context, voucherID int64) (*model.SeckillVoucher, error) {
	query := `
		SELECT voucher_id, stock, begin_time, end_time, created_at
		FROM seckill_vouchers
		WHERE voucher_id = $1
	`

	var voucher model.SeckillVoucher
	err := s.pool.QueryRow(ctx, query, voucherID).Scan(
		&voucher.VoucherID,
		&voucher.Stock,
		&voucher.BeginTime,
		&voucher.EndTime,
		&voucher.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get voucher: %w", err)
	}

	return &voucher, nil
}

// CreateVoucher inserts a new seckill voucher
func (s *PostgresVoucherStore) CreateVoucher(ctx context.Context, voucher *model.SeckillVoucher) error {
	query := `
		INSERT INTO seckill_vouchers (voucher_id, stock, begin_time, end_time, created_at)
		VALUES ($1, $2, $3, $4, NOW())
	`

	_, err := s.pool.Exec(ctx, query,
		voucher.VoucherID,
		voucher.Stock,
		voucher.BeginTime,
		voucher.EndTime,
	)
	if err != nil {
		return fmt.Errorf("failed to create voucher: %w", err)
	}

	return nil
}
