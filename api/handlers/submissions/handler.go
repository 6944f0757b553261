package submissions

import (
	"context"

	response "github.com/Locquiano101/CnscCodexMain-sub000/api/handlers/common"
	"github.com/Locquiano101/CnscCodexMain-sub000/internal/common"
	"github.com/Locquiano101/CnscCodexMain-sub000/internal/submission"

	"github.com/gin-gonic/gin"
)

// Service 提交与审核服务
type Service interface {
	Submit(ctx context.Context, key string, in submission.SubmitInput) (*submission.Submission, error)
	Transition(ctx context.Context, key, submissionID string, in submission.TransitionInput) (*submission.Submission, error)
	Get(ctx context.Context, key, org string) (*submission.Submission, error)
	List(ctx context.Context, key string, q submission.ListQuery) ([]submission.Submission, int64, error)
}

// Handler 提交处理器
type Handler struct {
	svc Service
}

// NewHandler 创建处理器
func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// StatusRequest 状态变更请求
type StatusRequest struct {
	Status string `json:"status" binding:"required"`
	Notes  string `json:"notes"`
}

// ListRequest 审核端列表查询参数
type ListRequest struct {
	Status string `form:"status"`
	common.PaginationRequest
}

// Submit 提交或重新提交
// @Summary 提交需求文件
// @Description 创建或覆盖组织在该需求下的提交，状态重置为 Pending
// @Tags Submissions
// @Security BearerAuth
// @Accept multipart/form-data
// @Produce json
// @Param key path string true "需求 key"
// @Param organizationProfile formData string true "组织"
// @Param file formData file true "文件"
// @Success 201 {object} response.APIResponse{data=submission.Submission}
// @Failure 400 {object} response.ErrorResponse
// @Failure 403 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Failure 413 {object} response.ErrorResponse
// @Failure 415 {object} response.ErrorResponse
// @Router /api/requirements/{key}/submit [post]
func (h *Handler) Submit(c *gin.Context) {
	upload, closeFile, err := response.FormUpload(c, "file")
	if err != nil {
		response.Error(c, err)
		return
	}
	defer closeFile()

	sub, err := h.svc.Submit(c.Request.Context(), c.Param("key"), submission.SubmitInput{
		OrganizationProfile: c.PostForm("organizationProfile"),
		File:                upload,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, sub)
}

// Get 查询组织的提交
// @Summary 查询提交
// @Tags Submissions
// @Security BearerAuth
// @Produce json
// @Param key path string true "需求 key"
// @Param orgId path string true "组织"
// @Success 200 {object} response.APIResponse{data=submission.Submission}
// @Failure 404 {object} response.ErrorResponse
// @Router /api/requirements/{key}/submission/{orgId} [get]
func (h *Handler) Get(c *gin.Context) {
	sub, err := h.svc.Get(c.Request.Context(), c.Param("key"), c.Param("orgId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, sub)
}

// UpdateStatus 审核状态变更
// @Summary 变更提交状态
// @Tags Submissions
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "需求 key"
// @Param submissionId path string true "提交 ID"
// @Param request body StatusRequest true "目标状态与备注"
// @Success 200 {object} response.APIResponse{data=submission.Submission}
// @Failure 400 {object} response.ErrorResponse
// @Failure 403 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /api/admin/requirements/{id}/submissions/{submissionId}/status [patch]
func (h *Handler) UpdateStatus(c *gin.Context) {
	var body StatusRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "status is required")
		return
	}

	sub, err := h.svc.Transition(c.Request.Context(), c.Param("id"), c.Param("submissionId"), submission.TransitionInput{
		Status: body.Status,
		Notes:  body.Notes,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, sub)
}

// List 审核端列出提交
// @Summary 列出需求下的提交
// @Tags Submissions
// @Security BearerAuth
// @Produce json
// @Param id path string true "需求 key"
// @Param status query string false "状态"
// @Param page query int false "页码"
// @Param pageSize query int false "每页数量"
// @Success 200 {object} response.ListResponse
// @Failure 400 {object} response.ErrorResponse
// @Router /api/admin/requirements/{id}/submissions [get]
func (h *Handler) List(c *gin.Context) {
	var req ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "Invalid query parameters")
		return
	}

	q := submission.ListQuery{PaginationRequest: req.PaginationRequest}
	if req.Status != "" {
		status, ok := submission.ParseStatus(req.Status)
		if !ok {
			response.Error(c, common.Validation("Unknown status %q", req.Status))
			return
		}
		q.Status = status
	}

	items, total, err := h.svc.List(c.Request.Context(), c.Param("id"), q)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, items, q.PaginationRequest, total)
}
