package tasks

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	TypeDeliverNotification = "notification:deliver"

	// QueueNotifications 通知专用队列
	QueueNotifications = "notifications"
)

// NotificationPayload 通知投递任务载荷
type NotificationPayload struct {
	Organization string `json:"organization"`
	Subject      string `json:"subject"`
	Body         string `json:"body"`
	// TraceID 入队请求的 trace_id，worker 日志沿用
	TraceID string `json:"traceId,omitempty"`
}

// NewDeliverNotificationTask 构造投递任务
func NewDeliverNotificationTask(p NotificationPayload) (*asynq.Task, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeDeliverNotification, data), nil
}
