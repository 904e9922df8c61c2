package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/flashmart/seckill/internal/model"
)

// MemoryAdmissionStore implements AdmissionStore in memory. The whole
// admission check runs under one mutex, matching the atomicity of the Redis
// script implementation.
type MemoryAdmissionStore struct {
	mu         sync.Mutex
	queue      OrderQueue
	stock      map[int64]int64
	purchasers map[int64]map[int64]bool
	windows    map[int64]admissionWindow

	// now is replaceable in tests
	now func() time.Time
}

type admissionWindow struct {
	begin time.Time
	end   time.Time
}

// NewMemoryAdmissionStore creates an in-memory admission gate appending
// admitted orders to queue.
func NewMemoryAdmissionStore(queue OrderQueue) *MemoryAdmissionStore {
	return &MemoryAdmissionStore{
		queue:      queue,
		stock:      make(map[int64]int64),
		purchasers: make(map[int64]map[int64]bool),
		windows:    make(map[int64]admissionWindow),
		now:        time.Now,
	}
}

// PrewarmVoucher publishes the stock counter and sale window for a voucher
func (s *MemoryAdmissionStore) PrewarmVoucher(ctx context.Context, voucher *model.SeckillVoucher) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stock[voucher.VoucherID] = voucher.Stock
	s.windows[voucher.VoucherID] = admissionWindow{
		begin: voucher.BeginTime,
		end:   voucher.EndTime,
	}
	return nil
}

// Reserve attempts to admit one order
func (s *MemoryAdmissionStore) Reserve(ctx context.Context, voucherID, userID, orderID int64) (AdmissionCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	window, ok := s.windows[voucherID]
	if !ok {
		return AdmissionClosed, nil
	}
	now := s.now()
	if now.Before(window.begin) || now.After(window.end) {
		return AdmissionClosed, nil
	}
	if s.stock[voucherID] <= 0 {
		return AdmissionSoldOut, nil
	}
	if s.purchasers[voucherID][userID] {
		return AdmissionDuplicate, nil
	}

	s.stock[voucherID]--
	if s.purchasers[voucherID] == nil {
		s.purchasers[voucherID] = make(map[int64]bool)
	}
	s.purchasers[voucherID][userID] = true

	order := &model.VoucherOrder{
		OrderID:   orderID,
		UserID:    userID,
		VoucherID: voucherID,
	}
	if _, err := s.queue.Append(ctx, order); err != nil {
		return 0, fmt.Errorf("failed to enqueue admitted order: %w", err)
	}
	return AdmissionOK, nil
}

// Stock reports the remaining reservable stock for a voucher.
func (s *MemoryAdmissionStore) Stock(voucherID int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stock[voucherID]
}
