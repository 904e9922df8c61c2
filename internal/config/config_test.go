package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())
}

func TestValidate_RejectsBadPort(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Port = 0
	assert.Error(t, cfg.Validate())

	cfg.Server.Port = 70000
	assert.Error(t, cfg.Validate())
}

func TestValidate_RequiresDatabaseSettings(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Database.Host = ""
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Database.Database = ""
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Database.User = ""
	assert.Error(t, cfg.Validate())
}

func TestValidate_CachePolicy(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cache.Policy = "write-through"
	assert.Error(t, cfg.Validate())

	cfg.Cache.Policy = "logical"
	assert.NoError(t, cfg.Validate())

	// Empty policy falls back to mutex.
	cfg.Cache.Policy = ""
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "mutex", cfg.Cache.Policy)
}

func TestValidate_RequiresQueueIdentity(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Seckill.Stream = ""
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Seckill.Group = ""
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Seckill.Consumer = ""
	assert.Error(t, cfg.Validate())
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load("/nonexistent/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Server.Port, cfg.Server.Port)
	assert.Equal(t, "stream.orders", cfg.Seckill.Stream)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("DATABASE_HOST", "db.internal")
	t.Setenv("REDIS_HOST", "redis.internal")
	t.Setenv("SECKILL_CONSUMER", "c9")

	cfg, err := Load("/nonexistent/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "redis.internal", cfg.Redis.Host)
	assert.Equal(t, "c9", cfg.Seckill.Consumer)
}
