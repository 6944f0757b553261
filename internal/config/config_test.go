package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("配置文件缺失时使用默认值", func(t *testing.T) {
		t.Chdir(t.TempDir())

		cfg, err := Load("missing-env", "")
		require.NoError(t, err)

		assert.Equal(t, 8080, cfg.Server.Port)
		assert.True(t, cfg.Gating.Enabled)
		assert.Equal(t, 60*time.Second, cfg.Gating.CacheTTL)
		assert.Equal(t, int64(10<<20), cfg.Upload.MaxFileSize)
		assert.Equal(t, "memory", cfg.RateLimit.Store)
	})

	t.Run("读取 YAML 并被环境变量覆盖", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "test.yaml")
		content := `
gating:
  enabled: true
  cache_ttl: 30s
rate_limit:
  default:
    window: 1m
    max: 5
  rules:
    requirement_create:
      window: 2m
      max: 3
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		t.Setenv("APP_GATING_ENABLED", "false")

		cfg, err := Load("test", path)
		require.NoError(t, err)

		assert.False(t, cfg.Gating.Enabled)
		assert.Equal(t, 30*time.Second, cfg.Gating.CacheTTL)

		rule := cfg.RateLimit.Rule("requirement_create")
		assert.Equal(t, 3, rule.Max)
		assert.Equal(t, 2*time.Minute, rule.Window)

		fallback := cfg.RateLimit.Rule("unknown")
		assert.Equal(t, 5, fallback.Max)
	})

	t.Run("无配置文件时环境变量仍然生效", func(t *testing.T) {
		t.Chdir(t.TempDir())
		t.Setenv("APP_AUTH_JWT_SECRET", "from-env")
		t.Setenv("APP_DATABASE_DRIVER", "postgres")
		t.Setenv("APP_DATABASE_HOST", "db.internal")
		t.Setenv("APP_DATABASE_PASSWORD", "s3cret")
		t.Setenv("APP_REDIS_PASSWORD", "redis-pass")
		t.Setenv("APP_NOTIFICATION_SMTP_HOST", "smtp.example.edu")

		cfg, err := Load("prod", "")
		require.NoError(t, err)

		assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
		assert.Equal(t, "postgres", cfg.Database.Driver)
		assert.Equal(t, "db.internal", cfg.Database.Host)
		assert.Equal(t, "s3cret", cfg.Database.Password)
		assert.Equal(t, "redis-pass", cfg.Redis.Password)
		assert.Equal(t, "smtp.example.edu", cfg.Notification.SMTP.Host)
		assert.Equal(t, 587, cfg.Notification.SMTP.Port)
	})

	t.Run("显式指定的文件不存在时报错", func(t *testing.T) {
		_, err := Load("test", filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}
