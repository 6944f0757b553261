package notification

import (
	"context"

	"github.com/Locquiano101/CnscCodexMain-sub000/internal/infra/queue"
	"github.com/Locquiano101/CnscCodexMain-sub000/internal/logger"
	"github.com/Locquiano101/CnscCodexMain-sub000/internal/metrics"
	"github.com/Locquiano101/CnscCodexMain-sub000/internal/worker/tasks"

	"go.uber.org/zap"
)

// QueueDispatcher 通过 asynq 投递到 Redis，由 worker 进程发送
type QueueDispatcher struct {
	client queue.Client
}

// NewQueueDispatcher 创建基于任务队列的通知分发器
func NewQueueDispatcher(client queue.Client) *QueueDispatcher {
	return &QueueDispatcher{client: client}
}

// Dispatch 入队失败只记录日志
func (d *QueueDispatcher) Dispatch(ctx context.Context, msg Message) {
	err := d.client.EnqueueNotification(ctx, tasks.NotificationPayload{
		Organization: msg.Organization,
		Subject:      msg.Subject,
		Body:         msg.Body,
		TraceID:      logger.GetTraceID(ctx),
	})
	if err != nil {
		metrics.NotificationsTotal.WithLabelValues("enqueue_failed").Inc()
		logger.WithContext(ctx).Warn("通知入队失败",
			zap.String("organization", msg.Organization),
			zap.Error(err),
		)
	}
}
