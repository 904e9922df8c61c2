package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/flashmart/seckill/internal/model"
	"github.com/flashmart/seckill/internal/store"
	"go.uber.org/zap"
)

// ErrInvalidVoucher is returned when a voucher definition fails validation
var ErrInvalidVoucher = errors.New("invalid voucher")

// VoucherService publishes seckill vouchers: the row is persisted first,
// then the stock counter and sale window are pre-warmed into the KV store so
// the admission gate has its keys before the window opens.
type VoucherService struct {
	vouchers  store.VoucherStore
	admission store.AdmissionStore
	logger    *zap.Logger
}

// NewVoucherService creates a new voucher service
func NewVoucherService(vouchers store.VoucherStore, admission store.AdmissionStore, logger *zap.Logger) *VoucherService {
	return &VoucherService{
		vouchers:  vouchers,
		admission: admission,
		logger:    logger,
	}
}

// CreateSeckillVoucher persists and pre-warms a new voucher
func (s *VoucherService) CreateSeckillVoucher(ctx context.Context, voucher *model.SeckillVoucher) error {
	if voucher.VoucherID == 0 {
		return fmt.Errorf("%w: voucher id is required", ErrInvalidVoucher)
	}
	if voucher.Stock <= 0 {
		return fmt.Errorf("%w: stock must be positive", ErrInvalidVoucher)
	}
	if !voucher.EndTime.After(voucher.BeginTime) {
		return fmt.Errorf("%w: end time must be after begin time", ErrInvalidVoucher)
	}

	if err := s.vouchers.CreateVoucher(ctx, voucher); err != nil {
		return err
	}
	if err := s.admission.PrewarmVoucher(ctx, voucher); err != nil {
		return fmt.Errorf("voucher persisted but prewarm failed: %w", err)
	}

	s.logger.Info("Seckill voucher published",
		zap.Int64("voucher_id", voucher.VoucherID),
		zap.Int64("stock", voucher.Stock),
		zap.Time("begin_time", voucher.BeginTime),
		zap.Time("end_time", voucher.EndTime))
	return nil
}

// GetVoucher retrieves a voucher definition
func (s *VoucherService) GetVoucher(ctx context.Context, voucherID int64) (*model.SeckillVoucher, error) {
	return s.vouchers.GetVoucher(ctx, voucherID)
}
