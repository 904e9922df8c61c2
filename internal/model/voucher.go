package model

import "time"

// SeckillVoucher is a limited-inventory voucher sold inside a fixed time
// window. Stock is decremented only by the admission gate during the window;
// everything else treats it as read-only.
type SeckillVoucher struct {
	VoucherID int64     `json:"voucher_id"`
	Stock     int64     `json:"stock"`
	BeginTime time.Time `json:"begin_time"`
	EndTime   time.Time `json:"end_time"`
	CreatedAt time.Time `json:"created_at"`
}

// VoucherOrder is one accepted purchase. It first exists as an in-flight
// queue entry and is later persisted exactly once per (user, voucher) pair.
type VoucherOrder struct {
	OrderID   int64     `json:"order_id"`
	UserID    int64     `json:"user_id"`
	VoucherID int64     `json:"voucher_id"`
	CreatedAt time.Time `json:"created_at"`
}
