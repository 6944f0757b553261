package gating

import (
	"context"
	"net/http"

	"github.com/Locquiano101/CnscCodexMain-sub000/internal/common"
	"github.com/Locquiano101/CnscCodexMain-sub000/internal/logger"
	"github.com/Locquiano101/CnscCodexMain-sub000/internal/metrics"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Checker 查询需求是否启用
type Checker interface {
	IsEnabled(ctx context.Context, key string) (bool, error)
}

// Enforcer 需求门控中间件工厂
type Enforcer struct {
	checker Checker
	enabled bool
}

// NewEnforcer 创建门控中间件工厂，enabled 为全局开关
func NewEnforcer(checker Checker, enabled bool) *Enforcer {
	return &Enforcer{checker: checker, enabled: enabled}
}

// GlobalEnabled 全局开关状态
func (e *Enforcer) GlobalEnabled() bool {
	return e.enabled
}

// Enforce 固定 key 的门控
func (e *Enforcer) Enforce(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		e.check(c, key)
	}
}

// EnforceParam 从路由参数读取 key
func (e *Enforcer) EnforceParam(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		e.check(c, c.Param(name))
	}
}

func (e *Enforcer) check(c *gin.Context, key string) {
	if !e.enabled {
		c.Next()
		return
	}

	ctx := c.Request.Context()
	ok, err := e.checker.IsEnabled(ctx, key)
	if err != nil {
		// 状态未知时拒绝
		logger.WithContext(ctx).Error("需求门控检查失败",
			zap.String("requirement", key),
			zap.Error(err),
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"code":    common.CodeInternal,
			"message": "Unable to verify requirement status",
		})
		return
	}

	if !ok {
		metrics.GatingRejectionsTotal.WithLabelValues(key).Inc()
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"success":     false,
			"code":        common.CodeRequirementDisabled,
			"message":     "This requirement is currently disabled",
			"requirement": key,
		})
		return
	}

	c.Next()
}
