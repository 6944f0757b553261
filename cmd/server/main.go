package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Locquiano101/CnscCodexMain-sub000/api"
	docs "github.com/Locquiano101/CnscCodexMain-sub000/api/docs"
	"github.com/Locquiano101/CnscCodexMain-sub000/internal/config"
	"github.com/Locquiano101/CnscCodexMain-sub000/internal/infra"
	"github.com/Locquiano101/CnscCodexMain-sub000/internal/logger"
	"github.com/Locquiano101/CnscCodexMain-sub000/internal/requirement"
	"github.com/Locquiano101/CnscCodexMain-sub000/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const (
	shutdownTimeout = 10 * time.Second
	seedTimeout     = 30 * time.Second
	envSearchDepth  = 8
)

// @title Accreditation Requirements API
// @version 1.0
// @description 学生组织认证材料：需求目录、门控与审核流转
// @BasePath /
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	if path, ok := findEnvFile(); ok {
		if err := godotenv.Load(path); err != nil {
			fmt.Fprintf(os.Stderr, "加载 %s 失败: %v\n", path, err)
		}
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}

	cfg, err := config.Load(env, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath); err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	docs.SwaggerInfo.Host = fmt.Sprintf("localhost:%d", cfg.Server.Port)
	logger.Info("应用启动中", zap.String("env", env), zap.String("mode", cfg.Server.Mode))

	db, err := infra.InitDatabase(&cfg.Database)
	if err != nil {
		logger.Fatal("初始化数据库失败", zap.Error(err))
	}
	if cfg.Database.AutoMigrate {
		if err := infra.AutoMigrate(db, api.Models()...); err != nil {
			logger.Fatal("数据库迁移失败", zap.Error(err))
		}
	}

	gin.SetMode(cfg.Server.Mode)
	router, container, workerServer, err := api.SetupRouter(db, cfg)
	if err != nil {
		logger.Fatal("初始化服务失败", zap.Error(err))
	}

	if err := seedTemplates(container.Requirements); err != nil {
		logger.Error("模板需求补种失败", zap.Error(err))
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("HTTP 服务器启动", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP 服务器异常退出", zap.Error(err))
		}
	}()
	if workerServer != nil {
		if err := workerServer.Start(); err != nil {
			logger.Fatal("通知 worker 启动失败", zap.Error(err))
		}
	}

	<-ctx.Done()
	shutdown(server, workerServer, container)
}

// seedTemplates 补齐缺失的模板需求，已存在的不覆盖
func seedTemplates(svc *requirement.Service) error {
	templates, err := requirement.DefaultTemplates()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), seedTimeout)
	defer cancel()

	created, err := svc.SeedTemplates(ctx, templates)
	if err != nil {
		return err
	}
	logger.Info("模板需求补种完成", zap.Int("created", created), zap.Int("total", len(templates)))
	return nil
}

// findEnvFile 从工作目录向上查找 .env
func findEnvFile() (string, bool) {
	dir, err := os.Getwd()
	if err != nil {
		return "", false
	}
	for range envSearchDepth {
		path := filepath.Join(dir, ".env")
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false
}

// shutdown 关闭顺序：HTTP、worker、容器内的后台队列、数据库
func shutdown(server *http.Server, workerServer *worker.Server, container *api.AppContainer) {
	logger.Info("正在关闭服务器")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("HTTP 服务器关闭异常", zap.Error(err))
	}

	workerServer.Shutdown()
	container.Close()

	if err := infra.CloseDatabase(); err != nil {
		logger.Error("数据库关闭异常", zap.Error(err))
	}
	logger.Info("服务器已关闭")
}
