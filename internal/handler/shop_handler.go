package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/flashmart/seckill/internal/cache"
	"github.com/flashmart/seckill/internal/model"
	"github.com/flashmart/seckill/internal/store"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// ShopService abstracts shop operations for the HTTP layer
type ShopService interface {
	QueryByID(ctx context.Context, id int64) (*model.Shop, error)
	Update(ctx context.Context, shop *model.Shop) error
	Prewarm(ctx context.Context, id int64, validity time.Duration) error
}

// ShopHandler handles shop HTTP requests
type ShopHandler struct {
	shops           ShopService
	defaultValidity time.Duration
	logger          *zap.Logger
}

// NewShopHandler creates a new shop handler
func NewShopHandler(shops ShopService, defaultValidity time.Duration, logger *zap.Logger) *ShopHandler {
	return &ShopHandler{
		shops:           shops,
		defaultValidity: defaultValidity,
		logger:          logger,
	}
}

// GetShop handles GET /v1/shops/{id}
func (h *ShopHandler) GetShop(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "shop id must be a positive integer")
		return
	}

	shop, err := h.shops.QueryByID(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "not_found", "shop not found")
		case errors.Is(err, cache.ErrLockTimeout):
			writeError(w, http.StatusServiceUnavailable, "busy", "cache rebuild in progress, retry")
		default:
			h.logger.Error("shop query failed", zap.Int64("shop_id", id), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal_error", "failed to query shop")
		}
		return
	}

	writeJSON(w, http.StatusOK, shop)
}

// UpdateShop handles PUT /v1/shops/{id}
func (h *ShopHandler) UpdateShop(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "shop id must be a positive integer")
		return
	}

	var shop model.Shop
	if err := json.NewDecoder(r.Body).Decode(&shop); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "request body must be valid JSON")
		return
	}
	shop.ID = id

	if err := h.shops.Update(r.Context(), &shop); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "shop not found")
			return
		}
		h.logger.Error("shop update failed", zap.Int64("shop_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to update shop")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "updated", "id": id})
}

// PrewarmShop handles POST /v1/shops/{id}/prewarm
func (h *ShopHandler) PrewarmShop(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "shop id must be a positive integer")
		return
	}

	var req struct {
		ValiditySeconds int64 `json:"validity_seconds"`
	}
	if r.Body != nil && r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_body", "request body must be valid JSON")
			return
		}
	}

	validity := h.defaultValidity
	if req.ValiditySeconds > 0 {
		validity = time.Duration(req.ValiditySeconds) * time.Second
	}

	if err := h.shops.Prewarm(r.Context(), id, validity); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "shop not found")
			return
		}
		h.logger.Error("shop prewarm failed", zap.Int64("shop_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to prewarm shop")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "prewarmed", "id": id})
}

// pathID extracts a positive integer path variable
func pathID(r *http.Request, name string) (int64, error) {
	raw := mux.Vars(r)[name]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid path id")
	}
	return id, nil
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeError writes a JSON error response
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{
		"error_code": code,
		"message":    message,
	})
}
