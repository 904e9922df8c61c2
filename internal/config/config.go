package config

import (
	"errors"
	"time"
)

// Config represents the seckill service configuration
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Seckill     SeckillConfig     `mapstructure:"seckill"`
	RateLimiter RateLimiterConfig `mapstructure:"rate_limiter"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig represents PostgreSQL configuration
type DatabaseConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MinConnections int    `mapstructure:"min_connections"`
}

// RedisConfig represents Redis configuration
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// CacheConfig represents cache guard configuration
type CacheConfig struct {
	Policy           string        `mapstructure:"policy"` // mutex or logical
	ShopTTL          time.Duration `mapstructure:"shop_ttl"`
	NullTTL          time.Duration `mapstructure:"null_ttl"`
	LogicalTTL       time.Duration `mapstructure:"logical_ttl"`
	LockLease        time.Duration `mapstructure:"lock_lease"`
	RetryInterval    time.Duration `mapstructure:"retry_interval"`
	MaxRetries       int           `mapstructure:"max_retries"`
	RebuildWorkers   int           `mapstructure:"rebuild_workers"`
	RebuildQueueSize int           `mapstructure:"rebuild_queue_size"`
}

// SeckillConfig represents the order pipeline configuration
type SeckillConfig struct {
	Stream          string        `mapstructure:"stream"`
	Group           string        `mapstructure:"group"`
	Consumer        string        `mapstructure:"consumer"`
	PollBlock       time.Duration `mapstructure:"poll_block"`
	RecoveryBackoff time.Duration `mapstructure:"recovery_backoff"`
	OrderLockLease  time.Duration `mapstructure:"order_lock_lease"`
}

// RateLimiterConfig represents request rate limiting configuration
type RateLimiterConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	BurstSize         int     `mapstructure:"burst_size"`
}

// MetricsConfig represents Prometheus metrics configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.New("server.port must be between 1 and 65535")
	}
	if c.Database.Host == "" {
		return errors.New("database.host is required")
	}
	if c.Database.Database == "" {
		return errors.New("database.database is required")
	}
	if c.Database.User == "" {
		return errors.New("database.user is required")
	}
	if c.Redis.Host == "" {
		return errors.New("redis.host is required")
	}
	if c.Cache.Policy == "" {
		c.Cache.Policy = "mutex"
	}
	if c.Cache.Policy != "mutex" && c.Cache.Policy != "logical" {
		return errors.New("cache.policy must be one of: mutex, logical")
	}
	if c.Cache.MaxRetries <= 0 {
		return errors.New("cache.max_retries must be positive")
	}
	if c.Seckill.Stream == "" {
		return errors.New("seckill.stream is required")
	}
	if c.Seckill.Group == "" {
		return errors.New("seckill.group is required")
	}
	if c.Seckill.Consumer == "" {
		return errors.New("seckill.consumer is required")
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	return nil
}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8081,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Host:           "localhost",
			Port:           5432,
			Database:       "seckill",
			User:           "seckill",
			Password:       "",
			MaxConnections: 50,
			MinConnections: 10,
		},
		Redis: RedisConfig{
			Host:     "localhost",
			Port:     6379,
			Password: "",
			DB:       0,
		},
		Cache: CacheConfig{
			Policy:           "mutex",
			ShopTTL:          30 * time.Minute,
			NullTTL:          2 * time.Minute,
			LogicalTTL:       20 * time.Second,
			LockLease:        10 * time.Second,
			RetryInterval:    50 * time.Millisecond,
			MaxRetries:       100,
			RebuildWorkers:   10,
			RebuildQueueSize: 100,
		},
		Seckill: SeckillConfig{
			Stream:          "stream.orders",
			Group:           "g1",
			Consumer:        "c1",
			PollBlock:       2 * time.Second,
			RecoveryBackoff: 2 * time.Second,
			OrderLockLease:  10 * time.Second,
		},
		RateLimiter: RateLimiterConfig{
			Enabled:           false,
			RequestsPerSecond: 1000,
			BurstSize:         2000,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}
