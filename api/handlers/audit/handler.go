package audit

import (
	"context"

	response "github.com/Locquiano101/CnscCodexMain-sub000/api/handlers/common"
	"github.com/Locquiano101/CnscCodexMain-sub000/internal/audit"

	"github.com/gin-gonic/gin"
)

// Reader 审计日志查询
type Reader interface {
	List(ctx context.Context, q audit.Query) ([]audit.AuditLog, int64, error)
}

// Handler 审计日志处理器
type Handler struct {
	reader Reader
}

// NewHandler 创建审计日志处理器
func NewHandler(reader Reader) *Handler {
	return &Handler{reader: reader}
}

// ListRequest 查询参数
type ListRequest struct {
	Action     string `form:"action"`
	TargetType string `form:"targetType"`
	TargetID   string `form:"targetId"`
	ActorID    string `form:"actorId"`
	Page       int    `form:"page"`
	PageSize   int    `form:"pageSize"`
}

// List 查询审计日志
// @Summary 查询审计日志
// @Tags Audit
// @Security BearerAuth
// @Produce json
// @Param action query string false "事件类型"
// @Param targetType query string false "目标类型"
// @Param targetId query string false "目标 ID"
// @Param actorId query string false "操作者 ID"
// @Param page query int false "页码"
// @Param pageSize query int false "每页数量"
// @Success 200 {object} response.ListResponse
// @Failure 400 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /api/admin/audit-logs [get]
func (h *Handler) List(c *gin.Context) {
	var req ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "Invalid query parameters")
		return
	}

	q := audit.Query{
		Action:     req.Action,
		TargetType: req.TargetType,
		TargetID:   req.TargetID,
		ActorID:    req.ActorID,
	}
	q.Page, q.PageSize = req.Page, req.PageSize

	logs, total, err := h.reader.List(c.Request.Context(), q)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, logs, q.PaginationRequest, total)
}
