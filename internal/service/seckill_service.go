package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/flashmart/seckill/internal/metrics"
	"github.com/flashmart/seckill/internal/store"
	"go.uber.org/zap"
)

// Rejection reasons for admission attempts. These are terminal: business
// contention is never retried on behalf of the caller.
var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrDuplicateOrder    = errors.New("duplicate order")
	ErrOutsideWindow     = errors.New("outside seckill window")
)

// SeckillService runs the synchronous half of the order pipeline: generate
// an order id, run the atomic admission check, and return the id to the
// caller without waiting for durable persistence. The admitted order reaches
// the relational store asynchronously through the order queue.
type SeckillService struct {
	admission store.AdmissionStore
	ids       *IDGenerator
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// NewSeckillService creates a new seckill service
func NewSeckillService(admission store.AdmissionStore, ids *IDGenerator, m *metrics.Metrics, logger *zap.Logger) *SeckillService {
	return &SeckillService{
		admission: admission,
		ids:       ids,
		metrics:   m,
		logger:    logger,
	}
}

// AttemptSeckill attempts to buy one unit of the voucher for the user.
// Returns the generated order id on admission.
func (s *SeckillService) AttemptSeckill(ctx context.Context, voucherID, userID int64) (int64, error) {
	start := time.Now()

	orderID, err := s.ids.NextID(ctx, "order")
	if err != nil {
		return 0, fmt.Errorf("failed to generate order id: %w", err)
	}

	code, err := s.admission.Reserve(ctx, voucherID, userID, orderID)
	if err != nil {
		s.metrics.RecordAdmission("error", time.Since(start).Seconds())
		return 0, fmt.Errorf("admission check failed: %w", err)
	}

	switch code {
	case store.AdmissionOK:
		s.metrics.RecordAdmission("ok", time.Since(start).Seconds())
		s.logger.Debug("Order admitted",
			zap.Int64("order_id", orderID),
			zap.Int64("user_id", userID),
			zap.Int64("voucher_id", voucherID))
		return orderID, nil
	case store.AdmissionSoldOut:
		s.metrics.RecordAdmission("sold_out", time.Since(start).Seconds())
		return 0, ErrInsufficientStock
	case store.AdmissionDuplicate:
		s.metrics.RecordAdmission("duplicate", time.Since(start).Seconds())
		return 0, ErrDuplicateOrder
	case store.AdmissionClosed:
		s.metrics.RecordAdmission("closed", time.Since(start).Seconds())
		return 0, ErrOutsideWindow
	default:
		return 0, fmt.Errorf("unknown admission code %d", code)
	}
}
