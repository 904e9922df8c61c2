package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/flashmart/seckill/internal/cache"
	"github.com/flashmart/seckill/internal/model"
	"github.com/flashmart/seckill/internal/store"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubShopService struct {
	shop       *model.Shop
	queryErr   error
	updateErr  error
	prewarmErr error

	gotUpdate   *model.Shop
	gotValidity time.Duration
}

func (s *stubShopService) QueryByID(ctx context.Context, id int64) (*model.Shop, error) {
	return s.shop, s.queryErr
}

func (s *stubShopService) Update(ctx context.Context, shop *model.Shop) error {
	s.gotUpdate = shop
	return s.updateErr
}

func (s *stubShopService) Prewarm(ctx context.Context, id int64, validity time.Duration) error {
	s.gotValidity = validity
	return s.prewarmErr
}

func newShopRouter(shops ShopService) *mux.Router {
	h := NewShopHandler(shops, time.Minute, zap.NewNop())
	r := mux.NewRouter()
	r.HandleFunc("/v1/shops/{id}", h.GetShop).Methods(http.MethodGet)
	r.HandleFunc("/v1/shops/{id}", h.UpdateShop).Methods(http.MethodPut)
	r.HandleFunc("/v1/shops/{id}/prewarm", h.PrewarmShop).Methods(http.MethodPost)
	return r
}

func TestGetShop(t *testing.T) {
	router := newShopRouter(&stubShopService{shop: &model.Shop{ID: 1, Name: "cafe"}})

	req := httptest.NewRequest(http.MethodGet, "/v1/shops/1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"cafe"`)
}

func TestGetShop_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"not found", store.ErrNotFound, http.StatusNotFound},
		{"rebuild contention", cache.ErrLockTimeout, http.StatusServiceUnavailable},
		{"internal", assert.AnError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newShopRouter(&stubShopService{queryErr: tt.err})

			req := httptest.NewRequest(http.MethodGet, "/v1/shops/1", nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestGetShop_InvalidID(t *testing.T) {
	router := newShopRouter(&stubShopService{})

	for _, path := range []string{"/v1/shops/abc", "/v1/shops/-1", "/v1/shops/0"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
	}
}

func TestUpdateShop_UsesPathID(t *testing.T) {
	shops := &stubShopService{}
	router := newShopRouter(shops)

	// The path id wins over any id in the body.
	req := httptest.NewRequest(http.MethodPut, "/v1/shops/1", strings.NewReader(`{"id":99,"name":"bistro"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, shops.gotUpdate)
	assert.Equal(t, int64(1), shops.gotUpdate.ID)
	assert.Equal(t, "bistro", shops.gotUpdate.Name)
}

func TestUpdateShop_NotFound(t *testing.T) {
	router := newShopRouter(&stubShopService{updateErr: store.ErrNotFound})

	req := httptest.NewRequest(http.MethodPut, "/v1/shops/1", strings.NewReader(`{"name":"bistro"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPrewarmShop_DefaultValidity(t *testing.T) {
	shops := &stubShopService{}
	router := newShopRouter(shops)

	req := httptest.NewRequest(http.MethodPost, "/v1/shops/1/prewarm", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, time.Minute, shops.gotValidity)
}

func TestPrewarmShop_ExplicitValidity(t *testing.T) {
	shops := &stubShopService{}
	router := newShopRouter(shops)

	req := httptest.NewRequest(http.MethodPost, "/v1/shops/1/prewarm", strings.NewReader(`{"validity_seconds":30}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 30*time.Second, shops.gotValidity)
}
