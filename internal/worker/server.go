package worker

import (
	"context"
	"time"

	"github.com/Locquiano101/CnscCodexMain-sub000/internal/config"
	"github.com/Locquiano101/CnscCodexMain-sub000/internal/infra/queue"
	"github.com/Locquiano101/CnscCodexMain-sub000/internal/metrics"
	"github.com/Locquiano101/CnscCodexMain-sub000/internal/worker/handlers"
	"github.com/Locquiano101/CnscCodexMain-sub000/internal/worker/tasks"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Server 通知投递 worker，仅在 notification.queue = redis 时创建
type Server struct {
	srv *asynq.Server
	mux *asynq.ServeMux
	log *zap.Logger
}

func NewServer(cfg config.RedisConfig, deliverer handlers.MessageDeliverer, concurrency int, log *zap.Logger) *Server {
	if concurrency <= 0 {
		concurrency = 2
	}

	mux := asynq.NewServeMux()
	mux.Use(observe(log))
	mux.HandleFunc(tasks.TypeDeliverNotification,
		handlers.NewNotificationHandler(deliverer, log).HandleDeliverNotification)

	srv := asynq.NewServer(queue.RedisOpt(cfg), asynq.Config{
		Concurrency:     concurrency,
		Queues:          map[string]int{tasks.QueueNotifications: 1},
		ShutdownTimeout: 10 * time.Second,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			if retried >= maxRetry {
				metrics.NotificationsTotal.WithLabelValues("retries_exhausted").Inc()
			}
			log.Error("任务执行失败",
				zap.String("type", task.Type()),
				zap.Int("retried", retried),
				zap.Error(err),
			)
		}),
	})

	return &Server{srv: srv, mux: mux, log: log}
}

// observe 记录每个任务的耗时
func observe(log *zap.Logger) asynq.MiddlewareFunc {
	return func(next asynq.Handler) asynq.Handler {
		return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
			start := time.Now()
			err := next.ProcessTask(ctx, t)
			log.Debug("任务处理结束",
				zap.String("type", t.Type()),
				zap.Duration("elapsed", time.Since(start)),
				zap.Bool("ok", err == nil),
			)
			return err
		})
	}
}

// Start 非阻塞启动
func (s *Server) Start() error {
	s.log.Info("通知 worker 启动")
	return s.srv.Start(s.mux)
}

// Shutdown 允许在 nil 上调用
func (s *Server) Shutdown() {
	if s == nil {
		return
	}
	s.log.Info("通知 worker 停止")
	s.srv.Shutdown()
}
