package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/flashmart/seckill/internal/model"
	"github.com/flashmart/seckill/internal/service"
	"github.com/flashmart/seckill/internal/store"
	"go.uber.org/zap"
)

// VoucherService abstracts voucher management for the HTTP layer
type VoucherService interface {
	CreateSeckillVoucher(ctx context.Context, voucher *model.SeckillVoucher) error
	GetVoucher(ctx context.Context, voucherID int64) (*model.SeckillVoucher, error)
}

// SeckillService abstracts order admission for the HTTP layer
type SeckillService interface {
	AttemptSeckill(ctx context.Context, voucherID, userID int64) (int64, error)
}

// VoucherHandler handles voucher and seckill HTTP requests
type VoucherHandler struct {
	vouchers VoucherService
	seckill  SeckillService
	logger   *zap.Logger
}

// NewVoucherHandler creates a new voucher handler
func NewVoucherHandler(vouchers VoucherService, seckill SeckillService, logger *zap.Logger) *VoucherHandler {
	return &VoucherHandler{
		vouchers: vouchers,
		seckill:  seckill,
		logger:   logger,
	}
}

// CreateVoucher handles POST /v1/vouchers
func (h *VoucherHandler) CreateVoucher(w http.ResponseWriter, r *http.Request) {
	var voucher model.SeckillVoucher
	if err := json.NewDecoder(r.Body).Decode(&voucher); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "request body must be valid JSON")
		return
	}

	if err := h.vouchers.CreateSeckillVoucher(r.Context(), &voucher); err != nil {
		if errors.Is(err, service.ErrInvalidVoucher) {
			writeError(w, http.StatusBadRequest, "invalid_voucher", err.Error())
			return
		}
		h.logger.Error("voucher create failed",
			zap.Int64("voucher_id", voucher.VoucherID),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to create voucher")
		return
	}

	writeJSON(w, http.StatusCreated, voucher)
}

// GetVoucher handles GET /v1/vouchers/{id}
func (h *VoucherHandler) GetVoucher(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "voucher id must be a positive integer")
		return
	}

	voucher, err := h.vouchers.GetVoucher(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "voucher not found")
			return
		}
		h.logger.Error("voucher query failed", zap.Int64("voucher_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to query voucher")
		return
	}

	writeJSON(w, http.StatusOK, voucher)
}

// Seckill handles POST /v1/vouchers/{id}/seckill
func (h *VoucherHandler) Seckill(w http.ResponseWriter, r *http.Request) {
	voucherID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "voucher id must be a positive integer")
		return
	}

	var req struct {
		UserID int64 `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "request body must be valid JSON")
		return
	}
	if req.UserID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_user", "user_id must be a positive integer")
		return
	}

	orderID, err := h.seckill.AttemptSeckill(r.Context(), voucherID, req.UserID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInsufficientStock):
			writeError(w, http.StatusConflict, "insufficient_stock", "voucher is sold out")
		case errors.Is(err, service.ErrDuplicateOrder):
			writeError(w, http.StatusConflict, "duplicate_order", "user has already purchased this voucher")
		case errors.Is(err, service.ErrOutsideWindow):
			writeError(w, http.StatusBadRequest, "outside_window", "seckill has not started or has ended")
		default:
			h.logger.Error("seckill failed",
				zap.Int64("voucher_id", voucherID),
				zap.Int64("user_id", req.UserID),
				zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal_error", "failed to process seckill")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"order_id": orderID})
}
