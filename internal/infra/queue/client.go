package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/Locquiano101/CnscCodexMain-sub000/internal/config"
	"github.com/Locquiano101/CnscCodexMain-sub000/internal/worker/tasks"

	"github.com/hibiken/asynq"
)

const (
	notificationMaxRetry = 3
	notificationTimeout  = time.Minute
)

// Client 通知入队接口
type Client interface {
	EnqueueNotification(ctx context.Context, payload tasks.NotificationPayload) error
	Close() error
}

// AsynqClient 基于 asynq 的实现
type AsynqClient struct {
	inner *asynq.Client
}

// NewClient 按 Redis 配置创建入队客户端
func NewClient(cfg config.RedisConfig) *AsynqClient {
	return &AsynqClient{inner: asynq.NewClient(RedisOpt(cfg))}
}

// RedisOpt 客户端与 worker 共用同一套连接参数
func RedisOpt(cfg config.RedisConfig) asynq.RedisConnOpt {
	switch cfg.Mode {
	case "sentinel":
		return asynq.RedisFailoverClientOpt{
			MasterName:       cfg.MasterName,
			SentinelAddrs:    cfg.SentinelAddrs,
			SentinelPassword: cfg.SentinelPassword,
			Password:         cfg.Password,
			DB:               cfg.DB,
		}
	case "cluster":
		return asynq.RedisClusterClientOpt{Addrs: cfg.ClusterAddrs, Password: cfg.Password}
	default:
		return asynq.RedisClientOpt{Addr: cfg.Addr(), Password: cfg.Password, DB: cfg.DB}
	}
}

func (c *AsynqClient) EnqueueNotification(ctx context.Context, payload tasks.NotificationPayload) error {
	task, err := tasks.NewDeliverNotificationTask(payload)
	if err != nil {
		return fmt.Errorf("序列化通知载荷失败: %w", err)
	}

	// SMTP 偶发失败，有限重试
	if _, err := c.inner.EnqueueContext(ctx, task,
		asynq.Queue(tasks.QueueNotifications),
		asynq.MaxRetry(notificationMaxRetry),
		asynq.Timeout(notificationTimeout),
	); err != nil {
		return fmt.Errorf("通知入队失败: %w", err)
	}
	return nil
}

func (c *AsynqClient) Close() error {
	return c.inner.Close()
}
