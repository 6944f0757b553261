package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithContext(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	prev := globalLogger
	Set(zap.New(core))
	defer Set(prev)

	ctx := WithTraceID(context.Background(), "trace-1")
	ctx = WithActorID(ctx, "user-9")
	WithContext(ctx).Info("审计写入失败")

	entries := logs.All()
	assert.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "trace-1", fields["trace_id"])
	assert.Equal(t, "user-9", fields["actor_id"])
}

func TestGetWithoutInit(t *testing.T) {
	prev := globalLogger
	globalLogger = nil
	defer Set(prev)

	assert.NotPanics(t, func() {
		Get().Info("未初始化也不会 panic")
	})
}
