package handlers

import (
	"context"
	"errors"
	"testing"

	"github.com/Locquiano101/CnscCodexMain-sub000/internal/logger"
	"github.com/Locquiano101/CnscCodexMain-sub000/internal/notification"
	"github.com/Locquiano101/CnscCodexMain-sub000/internal/worker/tasks"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeDeliverer struct {
	got     []notification.Message
	traceID string
	retErr  error
}

func (f *fakeDeliverer) Deliver(ctx context.Context, msg notification.Message) error {
	f.got = append(f.got, msg)
	f.traceID = logger.GetTraceID(ctx)
	return f.retErr
}

func newTask(t *testing.T, p tasks.NotificationPayload) *asynq.Task {
	task, err := tasks.NewDeliverNotificationTask(p)
	require.NoError(t, err)
	return task
}

func TestNotificationHandler_Success(t *testing.T) {
	d := &fakeDeliverer{}
	h := NewNotificationHandler(d, zaptest.NewLogger(t))

	err := h.HandleDeliverNotification(context.Background(), newTask(t, tasks.NotificationPayload{
		Organization: "org-1",
		Subject:      "Submission approved",
		Body:         "Roster approved",
		TraceID:      "trace-7",
	}))
	require.NoError(t, err)
	require.Len(t, d.got, 1)
	assert.Equal(t, "org-1", d.got[0].Organization)
	assert.Equal(t, "Submission approved", d.got[0].Subject)
	assert.Equal(t, "trace-7", d.traceID)
}

func TestNotificationHandler_DeliverError(t *testing.T) {
	expected := errors.New("smtp down")
	h := NewNotificationHandler(&fakeDeliverer{retErr: expected}, zaptest.NewLogger(t))

	err := h.HandleDeliverNotification(context.Background(), newTask(t, tasks.NotificationPayload{Organization: "org-1"}))
	assert.ErrorIs(t, err, expected)
}

func TestNotificationHandler_InvalidPayload(t *testing.T) {
	d := &fakeDeliverer{}
	h := NewNotificationHandler(d, zaptest.NewLogger(t))

	err := h.HandleDeliverNotification(context.Background(), asynq.NewTask(tasks.TypeDeliverNotification, []byte("not-json")))
	require.Error(t, err)
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.Empty(t, d.got)
}
