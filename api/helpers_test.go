package api

import (
	"testing"

	"github.com/Locquiano101/CnscCodexMain-sub000/internal/config"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeRedisConfig(t *testing.T) {
	t.Run("缺省值", func(t *testing.T) {
		t.Setenv("REDIS_ADDR", "")
		cfg := normalizeRedisConfig(config.RedisConfig{})
		assert.Equal(t, "standalone", cfg.Mode)
		assert.Equal(t, "localhost:6379", cfg.Addr())
		assert.Equal(t, 10, cfg.PoolSize)
		assert.Equal(t, 2, cfg.MinIdleConns)
	})

	t.Run("REDIS_ADDR 补齐地址", func(t *testing.T) {
		t.Setenv("REDIS_ADDR", "cache.internal:6380")
		cfg := normalizeRedisConfig(config.RedisConfig{Mode: " Standalone "})
		assert.Equal(t, "standalone", cfg.Mode)
		assert.Equal(t, "cache.internal:6380", cfg.Addr())
	})

	t.Run("显式配置优先", func(t *testing.T) {
		t.Setenv("REDIS_ADDR", "cache.internal:6380")
		cfg := normalizeRedisConfig(config.RedisConfig{Host: "redis", Port: 7000})
		assert.Equal(t, "redis:7000", cfg.Addr())
	})

	t.Run("哨兵地址来自环境变量", func(t *testing.T) {
		t.Setenv("APP_REDIS_SENTINEL_ADDRS", "s1:26379, ,s2:26379")
		cfg := normalizeRedisConfig(config.RedisConfig{Mode: "sentinel", MasterName: "mymaster"})
		assert.Equal(t, []string{"s1:26379", "s2:26379"}, cfg.SentinelAddrs)
	})
}

func TestSplitHostPort(t *testing.T) {
	host, port := splitHostPort("10.0.0.5:6379")
	assert.Equal(t, "10.0.0.5", host)
	assert.Equal(t, 6379, port)

	host, port = splitHostPort("redis")
	assert.Equal(t, "redis", host)
	assert.Zero(t, port)
}
