package api

import (
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/Locquiano101/CnscCodexMain-sub000/internal/config"
	"github.com/Locquiano101/CnscCodexMain-sub000/internal/infra"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const serviceName = "accreditation-requirements"

// HealthResponse 存活探针响应
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// ReadinessResponse 就绪探针响应
type ReadinessResponse struct {
	Status   string `json:"status"`
	Reason   string `json:"reason,omitempty"`
	Database string `json:"database,omitempty"`
	Redis    string `json:"redis,omitempty"`
}

// HealthCheck 存活探针
// @Summary 服务健康检查
// @Tags System
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func HealthCheck() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, HealthResponse{Status: "healthy", Service: serviceName})
	}
}

// ReadinessCheck 数据库不可达时返回 503，Redis 异常只标记降级
// @Summary 服务就绪检查
// @Tags System
// @Produce json
// @Success 200 {object} ReadinessResponse
// @Failure 503 {object} ReadinessResponse
// @Router /ready [get]
func ReadinessCheck(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := infra.PingDatabase(c.Request.Context(), db); err != nil {
			c.JSON(http.StatusServiceUnavailable, ReadinessResponse{Status: "not_ready", Reason: "database unreachable"})
			return
		}

		resp := ReadinessResponse{Status: "ready", Database: "connected"}
		if infra.RedisEnabled() {
			resp.Redis = "connected"
			if err := infra.HealthCheckRedis(); err != nil {
				resp.Redis = "unavailable"
			}
		}
		c.JSON(http.StatusOK, resp)
	}
}

// splitList 拆分逗号分隔的列表并去掉空项
func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func envList(key string) []string {
	return splitList(os.Getenv(key))
}

func orDefault(list, def []string) []string {
	if len(list) == 0 {
		return def
	}
	return list
}

// normalizeRedisConfig 填充缺省值；REDIS_ADDR、APP_REDIS_SENTINEL_ADDRS、APP_REDIS_CLUSTER_ADDRS 只补未配置的字段
func normalizeRedisConfig(cfg config.RedisConfig) config.RedisConfig {
	cfg.Mode = strings.ToLower(strings.TrimSpace(cfg.Mode))
	cfg.Host = strings.TrimSpace(cfg.Host)
	if cfg.Mode == "" {
		cfg.Mode = "standalone"
	}

	if cfg.Host == "" {
		host, port := splitHostPort(os.Getenv("REDIS_ADDR"))
		cfg.Host = host
		if cfg.Port == 0 {
			cfg.Port = port
		}
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6379
	}

	switch cfg.Mode {
	case "sentinel":
		cfg.SentinelAddrs = orDefault(cfg.SentinelAddrs, envList("APP_REDIS_SENTINEL_ADDRS"))
	case "cluster":
		cfg.ClusterAddrs = orDefault(cfg.ClusterAddrs, envList("APP_REDIS_CLUSTER_ADDRS"))
	}

	cfg.PoolSize = positiveOr(cfg.PoolSize, 10)
	cfg.MinIdleConns = positiveOr(cfg.MinIdleConns, 2)
	return cfg
}

func positiveOr(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

// splitHostPort 端口缺失或非法时返回 0
func splitHostPort(addr string) (string, int) {
	addr = strings.TrimSpace(addr)
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return addr, 0
	}
	port, _ := strconv.Atoi(portStr)
	return host, port
}
