package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/flashmart/seckill/internal/cache"
	"github.com/flashmart/seckill/internal/config"
	"github.com/flashmart/seckill/internal/handler"
	"github.com/flashmart/seckill/internal/health"
	"github.com/flashmart/seckill/internal/metrics"
	"github.com/flashmart/seckill/internal/server"
	"github.com/flashmart/seckill/internal/service"
	"github.com/flashmart/seckill/internal/store"
	"github.com/flashmart/seckill/internal/util/workerpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := buildLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting seckill service",
		zap.Int("port", cfg.Server.Port),
		zap.String("database_host", cfg.Database.Host),
		zap.String("redis_host", cfg.Redis.Host),
		zap.String("cache_policy", cfg.Cache.Policy))

	// Initialize metrics
	m := metrics.NewMetrics()
	logger.Info("Metrics initialized")

	// Initialize order database (PostgreSQL)
	pool, err := store.NewPostgresPool(
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Database,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.MaxConnections,
		cfg.Database.MinConnections,
	)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	shopStore := store.NewPostgresShopStore(pool, logger)
	voucherStore := store.NewPostgresVoucherStore(pool, logger)
	orderStore := store.NewPostgresOrderStore(pool, logger)
	logger.Info("Database stores initialized")

	// Initialize Redis stores
	kv, err := store.NewRedisKVStore(
		cfg.Redis.Host,
		cfg.Redis.Port,
		cfg.Redis.Password,
		cfg.Redis.DB,
		logger,
	)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer kv.Close()

	admissionStore := store.NewRedisAdmissionStore(kv.Client(), cfg.Seckill.Stream, logger)
	orderQueue := store.NewRedisOrderQueue(
		kv.Client(),
		cfg.Seckill.Stream,
		cfg.Seckill.Group,
		cfg.Seckill.Consumer,
		logger,
	)
	logger.Info("Redis stores initialized")

	// Initialize cache guard with its rebuild worker pool
	rebuildPool := workerpool.New("cache-rebuild", cfg.Cache.RebuildWorkers, cfg.Cache.RebuildQueueSize, logger)
	guard := cache.NewGuard(kv, rebuildPool, m, cache.Config{
		TTL:           cfg.Cache.ShopTTL,
		NullTTL:       cfg.Cache.NullTTL,
		LockLease:     cfg.Cache.LockLease,
		RetryInterval: cfg.Cache.RetryInterval,
		MaxRetries:    cfg.Cache.MaxRetries,
	}, logger)

	// Initialize services
	idGenerator := service.NewIDGenerator(kv, logger)

	policy := service.PolicyMutex
	if cfg.Cache.Policy == "logical" {
		policy = service.PolicyLogical
	}
	shopService := service.NewShopService(shopStore, guard, policy, cfg.Cache.LogicalTTL, logger)
	voucherService := service.NewVoucherService(voucherStore, admissionStore, logger)
	seckillService := service.NewSeckillService(admissionStore, idGenerator, m, logger)
	logger.Info("Services initialized")

	// Start the order consumer
	consumer := service.NewOrderConsumer(orderQueue, orderStore, kv, m, service.OrderConsumerConfig{
		LockLease:       cfg.Seckill.OrderLockLease,
		PollBlock:       cfg.Seckill.PollBlock,
		RecoveryBackoff: cfg.Seckill.RecoveryBackoff,
	}, logger)
	if err := consumer.Start(context.Background()); err != nil {
		logger.Fatal("Failed to start order consumer", zap.Error(err))
	}
	logger.Info("Order consumer started",
		zap.String("stream", cfg.Seckill.Stream),
		zap.String("group", cfg.Seckill.Group),
		zap.String("consumer", cfg.Seckill.Consumer))

	// Start metrics server
	if cfg.Metrics.Enabled {
		go func() {
			mux := http.NewServeMux()
			mux.Handle(cfg.Metrics.Path, promhttp.Handler())
			addr := fmt.Sprintf(":%d", cfg.Metrics.Port)
			logger.Info("Starting metrics server", zap.String("address", addr))
			if err := http.ListenAndServe(addr, mux); err != nil {
				logger.Error("Metrics server failed", zap.Error(err))
			}
		}()
	}

	// Initialize HTTP server
	shopHandler := handler.NewShopHandler(shopService, cfg.Cache.LogicalTTL, logger)
	voucherHandler := handler.NewVoucherHandler(voucherService, seckillService, logger)
	healthChecker := health.NewHealthChecker(pool, kv, logger)

	srv := server.NewServer(cfg, shopHandler, voucherHandler, healthChecker, logger)
	srv.SetupRoutes()

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.Start()
	}()

	// Wait for interrupt signal or server error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("Server error", zap.Error(err))
	case sig := <-sigChan:
		logger.Info("Received signal", zap.String("signal", sig.String()))
	}

	// Graceful shutdown
	logger.Info("Shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown failed", zap.Error(err))
	}

	// Stop consumer after the HTTP surface so no new admissions arrive
	// while in-flight deliveries drain.
	consumer.Stop()
	rebuildPool.Stop(cfg.Server.ShutdownTimeout)

	logger.Info("Seckill service stopped")
}

// buildLogger builds a zap logger from logging configuration
func buildLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	zapCfg.Level = level

	return zapCfg.Build()
}
