package queue

import (
	"testing"

	"github.com/Locquiano101/CnscCodexMain-sub000/internal/config"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisOpt(t *testing.T) {
	opt, ok := RedisOpt(config.RedisConfig{Host: "redis", Port: 6379, DB: 2}).(asynq.RedisClientOpt)
	require.True(t, ok)
	assert.Equal(t, "redis:6379", opt.Addr)
	assert.Equal(t, 2, opt.DB)

	failover, ok := RedisOpt(config.RedisConfig{
		Mode:          "sentinel",
		MasterName:    "mymaster",
		SentinelAddrs: []string{"s1:26379"},
	}).(asynq.RedisFailoverClientOpt)
	require.True(t, ok)
	assert.Equal(t, "mymaster", failover.MasterName)

	cluster, ok := RedisOpt(config.RedisConfig{Mode: "cluster", ClusterAddrs: []string{"c1:7000", "c2:7000"}}).(asynq.RedisClusterClientOpt)
	require.True(t, ok)
	assert.Len(t, cluster.Addrs, 2)
}
