// Package server provides the HTTP server for the seckill API.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/flashmart/seckill/internal/config"
	"github.com/flashmart/seckill/internal/handler"
	"github.com/flashmart/seckill/internal/health"
	"github.com/flashmart/seckill/internal/middleware"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Server represents the HTTP server.
type Server struct {
	router      *mux.Router
	httpServer  *http.Server
	shops       *handler.ShopHandler
	vouchers    *handler.VoucherHandler
	healthCheck *health.HealthChecker
	logger      *zap.Logger
	cfg         *config.Config
}

// NewServer creates a new HTTP server.
func NewServer(
	cfg *config.Config,
	shops *handler.ShopHandler,
	vouchers *handler.VoucherHandler,
	healthCheck *health.HealthChecker,
	logger *zap.Logger,
) *Server {
	router := mux.NewRouter()

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return &Server{
		router:      router,
		httpServer:  httpServer,
		shops:       shops,
		vouchers:    vouchers,
		healthCheck: healthCheck,
		logger:      logger,
		cfg:         cfg,
	}
}

// SetupRoutes configures all HTTP routes.
func (s *Server) SetupRoutes() {
	middlewareChain := []func(http.Handler) http.Handler{
		middleware.Recovery(s.logger),
		middleware.RequestID,
		middleware.Logging(s.logger),
	}

	if s.cfg.RateLimiter.Enabled {
		rateLimiter := middleware.NewRateLimiter(
			s.cfg.RateLimiter.RequestsPerSecond,
			s.cfg.RateLimiter.BurstSize,
			s.logger,
		)
		middlewareChain = append(middlewareChain, rateLimiter.Limit)
	}

	chain := middleware.Chain(middlewareChain...)
	s.router.Use(func(next http.Handler) http.Handler {
		return chain(next)
	})

	// Health check endpoints
	s.router.HandleFunc("/health", s.healthCheck.LivenessHandler).Methods(http.MethodGet)
	s.router.HandleFunc("/ready", s.healthCheck.ReadinessHandler).Methods(http.MethodGet)

	// API v1 routes
	v1 := s.router.PathPrefix("/v1").Subrouter()

	// Shop operations
	v1.HandleFunc("/shops/{id}", s.shops.GetShop).Methods(http.MethodGet)
	v1.HandleFunc("/shops/{id}", s.shops.UpdateShop).Methods(http.MethodPut)
	v1.HandleFunc("/shops/{id}/prewarm", s.shops.PrewarmShop).Methods(http.MethodPost)

	// Voucher operations
	v1.HandleFunc("/vouchers", s.vouchers.CreateVoucher).Methods(http.MethodPost)
	v1.HandleFunc("/vouchers/{id}", s.vouchers.GetVoucher).Methods(http.MethodGet)
	v1.HandleFunc("/vouchers/{id}/seckill", s.vouchers.Seckill).Methods(http.MethodPost)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error_code":"not_found","message":"endpoint not found"}`))
	})

	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusMethodNotAllowed)
		w.Write([]byte(`{"error_code":"method_not_allowed","message":"method not allowed"}`))
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server",
		zap.String("host", s.cfg.Server.Host),
		zap.Int("port", s.cfg.Server.Port),
	)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// GetRouter returns the router for testing purposes.
func (s *Server) GetRouter() *mux.Router {
	return s.router
}
