package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Locquiano101/CnscCodexMain-sub000/internal/logger"
	"github.com/Locquiano101/CnscCodexMain-sub000/internal/notification"
	"github.com/Locquiano101/CnscCodexMain-sub000/internal/worker/tasks"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// MessageDeliverer 同步投递一条通知
type MessageDeliverer interface {
	Deliver(ctx context.Context, msg notification.Message) error
}

// NotificationHandler 消费 notification:deliver 任务
type NotificationHandler struct {
	deliverer MessageDeliverer
	log       *zap.Logger
}

func NewNotificationHandler(deliverer MessageDeliverer, log *zap.Logger) *NotificationHandler {
	return &NotificationHandler{deliverer: deliverer, log: log}
}

func (h *NotificationHandler) HandleDeliverNotification(ctx context.Context, t *asynq.Task) error {
	var p tasks.NotificationPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("解析通知载荷失败: %v: %w", err, asynq.SkipRetry)
	}

	if p.TraceID != "" {
		ctx = logger.WithTraceID(ctx, p.TraceID)
	}
	log := h.log.With(zap.String("organization", p.Organization), zap.String("trace_id", p.TraceID))

	msg := notification.Message{Organization: p.Organization, Subject: p.Subject, Body: p.Body}
	if err := h.deliverer.Deliver(ctx, msg); err != nil {
		retried, _ := asynq.GetRetryCount(ctx)
		log.Warn("通知投递失败，等待重试", zap.Int("retried", retried), zap.Error(err))
		return err
	}

	log.Debug("通知投递完成")
	return nil
}
