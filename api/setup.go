package api

import (
	"context"
	"time"

	_ "github.com/Locquiano101/CnscCodexMain-sub000/api/docs"
	"github.com/Locquiano101/CnscCodexMain-sub000/internal/config"
	"github.com/Locquiano101/CnscCodexMain-sub000/internal/logger"
	"github.com/Locquiano101/CnscCodexMain-sub000/internal/metrics"
	"github.com/Locquiano101/CnscCodexMain-sub000/internal/middleware"
	"github.com/Locquiano101/CnscCodexMain-sub000/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SetupRouter 组装依赖并返回路由、容器和（可选的）通知 Worker
func SetupRouter(db *gorm.DB, cfg *config.Config) (*gin.Engine, *AppContainer, *worker.Server, error) {
	cfg.Redis = normalizeRedisConfig(cfg.Redis)

	container, err := BuildContainer(db, cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	// 启动时预热门控缓存，失败不阻止启动
	warmCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := container.GatingCache.Refresh(warmCtx, true); err != nil {
		logger.Warn("门控缓存预热失败", zap.Error(err))
	}
	cancel()

	router := NewRouter(container, BuildHandlers(container))

	var workerServer *worker.Server
	if cfg.Notification.Queue == "redis" {
		workerServer = worker.NewServer(cfg.Redis, container.Deliverer, cfg.Notification.Workers, logger.Get())
	}

	return router, container, workerServer, nil
}

// NewRouter 挂载全局中间件、系统端点和业务路由
func NewRouter(c *AppContainer, h *Handlers) *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(RequestLogger())
	router.Use(CORS())
	router.Use(metrics.PrometheusMiddleware())

	router.GET("/health", HealthCheck())
	router.GET("/ready", ReadinessCheck(c.DB))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	RegisterRoutes(router, c, h)
	return router
}
