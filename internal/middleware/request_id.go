package middleware

import (
	"context"
	"regexp"

	"github.com/Locquiano101/CnscCodexMain-sub000/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type requestIDKey struct{}

// HeaderRequestID 请求 ID 头
const HeaderRequestID = "X-Request-ID"

const ginRequestIDKey = "request_id"

// 上游 ID 只接受短的可打印标识
var validRequestID = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)

// RequestIDMiddleware 沿用或生成请求 ID，并作为日志 trace_id
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if !validRequestID.MatchString(id) {
			id = uuid.NewString()
		}

		ctx := context.WithValue(c.Request.Context(), requestIDKey{}, id)
		c.Request = c.Request.WithContext(logger.WithTraceID(ctx, id))
		c.Set(ginRequestIDKey, id)
		c.Header(HeaderRequestID, id)

		c.Next()
	}
}

// GetRequestID 从请求上下文取 ID
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
