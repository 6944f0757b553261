package infra

import (
	"context"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/Locquiano101/CnscCodexMain-sub000/internal/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rosterRow struct {
	ID   uint `gorm:"primaryKey"`
	Name string
}

func TestInitDatabaseSQLite(t *testing.T) {
	cfg := &config.DatabaseConfig{
		Driver:      "sqlite",
		SQLitePath:  filepath.Join(t.TempDir(), "test.db"),
		SlowQueryMS: 200,
	}
	db, err := InitDatabase(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = CloseDatabase() })

	require.NoError(t, AutoMigrate(db, &rosterRow{}))
	require.NoError(t, db.Create(&rosterRow{Name: "roster"}).Error)
	assert.NoError(t, PingDatabase(context.Background(), db))

	t.Run("未知驱动", func(t *testing.T) {
		_, err := InitDatabase(&config.DatabaseConfig{Driver: "mysql"})
		assert.Error(t, err)
	})

	t.Run("未初始化", func(t *testing.T) {
		assert.Error(t, PingDatabase(context.Background(), nil))
	})
}

func TestRedisLifecycle(t *testing.T) {
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)

	_, err = InitRedis(&config.RedisConfig{Mode: "standalone", Host: mr.Host(), Port: port})
	require.NoError(t, err)
	assert.True(t, RedisEnabled())
	assert.NoError(t, HealthCheckRedis())

	require.NoError(t, CloseRedis())
	assert.False(t, RedisEnabled())
	assert.Error(t, HealthCheckRedis())
}

func TestRedisOptions(t *testing.T) {
	t.Run("哨兵缺少 master", func(t *testing.T) {
		_, err := redisOptions(&config.RedisConfig{Mode: "sentinel", SentinelAddrs: []string{"s1:26379"}})
		assert.Error(t, err)
	})

	t.Run("哨兵", func(t *testing.T) {
		opts, err := redisOptions(&config.RedisConfig{
			Mode:          "sentinel",
			MasterName:    "mymaster",
			SentinelAddrs: []string{"s1:26379", "s2:26379"},
		})
		require.NoError(t, err)
		assert.Equal(t, "mymaster", opts.MasterName)
		assert.Len(t, opts.Addrs, 2)
	})

	t.Run("集群地址不足", func(t *testing.T) {
		_, err := redisOptions(&config.RedisConfig{Mode: "cluster", ClusterAddrs: []string{"c1:7000"}})
		assert.Error(t, err)
	})

	t.Run("未知模式", func(t *testing.T) {
		_, err := redisOptions(&config.RedisConfig{Mode: "ring"})
		assert.Error(t, err)
	})
}
