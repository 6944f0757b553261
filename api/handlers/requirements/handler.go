package requirements

import (
	"context"
	"net/http"
	"strconv"

	response "github.com/Locquiano101/CnscCodexMain-sub000/api/handlers/common"
	"github.com/Locquiano101/CnscCodexMain-sub000/internal/common"
	"github.com/Locquiano101/CnscCodexMain-sub000/internal/gating"
	"github.com/Locquiano101/CnscCodexMain-sub000/internal/logger"
	"github.com/Locquiano101/CnscCodexMain-sub000/internal/requirement"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Service 需求目录服务
type Service interface {
	CreateCustom(ctx context.Context, in requirement.CreateInput) (*requirement.Requirement, error)
	Update(ctx context.Context, id string, in requirement.UpdateInput) (*requirement.Requirement, error)
	Toggle(ctx context.Context, id string, enabled bool) (*requirement.Requirement, error)
	Delete(ctx context.Context, id string) (*requirement.DeleteResult, error)
	ListVisible(ctx context.Context) ([]requirement.VisibleRequirement, error)
	ListAll(ctx context.Context, filter requirement.Filter) ([]requirement.Requirement, error)
}

// GatingView 门控缓存只读视图
type GatingView interface {
	Refresh(ctx context.Context, force bool) error
	Snapshot() gating.Snapshot
}

// Handler 需求目录处理器
type Handler struct {
	svc           Service
	gating        GatingView
	gatingEnabled bool
}

// NewHandler 创建处理器
func NewHandler(svc Service, view GatingView, gatingEnabled bool) *Handler {
	return &Handler{svc: svc, gating: view, gatingEnabled: gatingEnabled}
}

// UpdateRequest JSON 形式的修改请求
type UpdateRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

// ToggleRequest 启用/禁用请求
type ToggleRequest struct {
	Enabled *bool `json:"enabled"`
}

// GatingStatusResponse 门控状态
type GatingStatusResponse struct {
	GatingEnabled bool     `json:"gatingEnabled"`
	EnabledKeys   []string `json:"enabledKeys"`
	Stale         bool     `json:"stale"`
}

// ListVisible 公开的启用需求列表
// @Summary 启用中的需求
// @Tags Requirements
// @Produce json
// @Success 200 {object} response.APIResponse{data=[]requirement.VisibleRequirement}
// @Failure 500 {object} response.ErrorResponse
// @Router /api/visible-requirements [get]
func (h *Handler) ListVisible(c *gin.Context) {
	items, err := h.svc.ListVisible(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, items)
}

// ListAll 管理端需求列表
// @Summary 管理端需求列表
// @Tags Requirements
// @Security BearerAuth
// @Produce json
// @Param type query string false "template 或 custom"
// @Param includeDisabled query bool false "是否包含禁用项，默认 true"
// @Success 200 {object} response.APIResponse{data=[]requirement.Requirement}
// @Failure 400 {object} response.ErrorResponse
// @Router /api/admin/requirements [get]
func (h *Handler) ListAll(c *gin.Context) {
	filter := requirement.Filter{IncludeDisabled: true}

	if raw := c.Query("type"); raw != "" {
		t, ok := requirement.ParseType(raw)
		if !ok {
			response.Error(c, common.Validation("type must be template or custom"))
			return
		}
		filter.Type = t
	}
	if raw := c.Query("includeDisabled"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			response.Error(c, common.Validation("includeDisabled must be a boolean"))
			return
		}
		filter.IncludeDisabled = v
	}

	items, err := h.svc.ListAll(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, items)
}

// Create 创建自定义需求
// @Summary 创建自定义需求
// @Tags Requirements
// @Security BearerAuth
// @Accept multipart/form-data
// @Produce json
// @Param title formData string true "标题"
// @Param description formData string false "描述"
// @Param file formData file false "模板文件（PDF/PNG/JPEG/WEBP）"
// @Success 201 {object} response.APIResponse{data=requirement.Requirement}
// @Failure 400 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse
// @Failure 413 {object} response.ErrorResponse
// @Failure 415 {object} response.ErrorResponse
// @Router /api/admin/requirements [post]
func (h *Handler) Create(c *gin.Context) {
	upload, closeFile, err := response.FormUpload(c, "file")
	if err != nil {
		response.Error(c, err)
		return
	}
	defer closeFile()

	req, err := h.svc.CreateCustom(c.Request.Context(), requirement.CreateInput{
		Title:       c.PostForm("title"),
		Description: c.PostForm("description"),
		File:        upload,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, req)
}

// Update 修改需求
// @Summary 修改需求（标题、描述、模板文件）
// @Tags Requirements
// @Security BearerAuth
// @Accept multipart/form-data
// @Accept json
// @Produce json
// @Param id path string true "需求 ID"
// @Success 200 {object} response.APIResponse{data=requirement.Requirement}
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse
// @Router /api/admin/requirements/{id} [patch]
func (h *Handler) Update(c *gin.Context) {
	var in requirement.UpdateInput

	if c.ContentType() == "application/json" {
		var body UpdateRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			response.BadRequest(c, "Invalid request body")
			return
		}
		in.Title, in.Description = body.Title, body.Description
	} else {
		if v, ok := c.GetPostForm("title"); ok {
			in.Title = &v
		}
		if v, ok := c.GetPostForm("description"); ok {
			in.Description = &v
		}
		upload, closeFile, err := response.FormUpload(c, "file")
		if err != nil {
			response.Error(c, err)
			return
		}
		defer closeFile()
		in.File = upload
	}

	req, err := h.svc.Update(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, req)
}

// SetEnabled 启用或禁用
// @Summary 启用/禁用需求
// @Tags Requirements
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "需求 ID"
// @Param request body ToggleRequest true "enabled"
// @Success 200 {object} response.APIResponse{data=requirement.Requirement}
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /api/admin/requirements/{id}/enable [patch]
func (h *Handler) SetEnabled(c *gin.Context) {
	var body ToggleRequest
	if err := c.ShouldBindJSON(&body); err != nil || body.Enabled == nil {
		response.BadRequest(c, "enabled must be a boolean")
		return
	}

	req, err := h.svc.Toggle(c.Request.Context(), c.Param("id"), *body.Enabled)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, req)
}

// Delete 删除自定义需求
// @Summary 删除自定义需求
// @Tags Requirements
// @Security BearerAuth
// @Produce json
// @Param id path string true "需求 ID"
// @Success 200 {object} response.APIResponse{data=requirement.DeleteResult}
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /api/admin/requirements/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	result, err := h.svc.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":             true,
		"cleaned":             result.Cleaned,
		"orphanedSubmissions": result.OrphanedSubmissions,
	})
}

// GatingStatus 门控状态
// @Summary 门控状态
// @Tags Requirements
// @Security BearerAuth
// @Produce json
// @Success 200 {object} response.APIResponse{data=GatingStatusResponse}
// @Router /api/admin/requirements/gating-status [get]
func (h *Handler) GatingStatus(c *gin.Context) {
	ctx := c.Request.Context()
	// 刷新失败时返回当前快照，stale 字段体现
	if err := h.gating.Refresh(ctx, false); err != nil {
		logger.WithContext(ctx).Warn("门控缓存刷新失败", zap.Error(err))
	}
	snap := h.gating.Snapshot()
	response.OK(c, GatingStatusResponse{
		GatingEnabled: h.gatingEnabled,
		EnabledKeys:   snap.EnabledKeys,
		Stale:         snap.Stale,
	})
}
