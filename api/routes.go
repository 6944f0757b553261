package api

import (
	response "github.com/Locquiano101/CnscCodexMain-sub000/api/handlers/common"
	"github.com/Locquiano101/CnscCodexMain-sub000/internal/auth"

	"github.com/gin-gonic/gin"
)

// 限流动作名
const (
	actionRequirementCreate = "requirement_create"
	actionRequirementUpdate = "requirement_update"
	actionRequirementToggle = "requirement_toggle"
	actionRequirementDelete = "requirement_delete"
	actionSubmissionStatus  = "submission_status"
)

var reviewerRoles = []auth.Role{auth.RoleAdviser, auth.RoleDean, auth.RoleAdmin}

// RegisterRoutes 注册业务路由
func RegisterRoutes(router *gin.Engine, c *AppContainer, h *Handlers) {
	apiGroup := router.Group("/api")

	// 公开：学生端可见的需求列表，带令牌时访问日志可记录操作者
	apiGroup.GET("/visible-requirements", auth.OptionalAuthMiddleware(c.JWTService), h.Requirements.ListVisible)

	authed := apiGroup.Group("")
	authed.Use(auth.AuthMiddleware(c.JWTService))

	registerSubmissionRoutes(authed, c, h)
	registerAdminRoutes(authed.Group("/admin"), c, h)
}

func registerSubmissionRoutes(rg *gin.RouterGroup, c *AppContainer, h *Handlers) {
	requirements := rg.Group("/requirements/:key")
	{
		requirements.POST("/submit",
			auth.RequireRole(auth.RoleStudentLeader, auth.RoleAdmin),
			c.Enforcer.EnforceParam("key"),
			response.LimitUploadBody(c.Config.Upload.MaxFileSize),
			h.Submissions.Submit,
		)
		requirements.GET("/submission/:orgId", h.Submissions.Get)
	}
}

func registerAdminRoutes(admin *gin.RouterGroup, c *AppContainer, h *Handlers) {
	adminOnly := auth.RequireRole(auth.RoleAdmin)
	limit := c.RateLimiter.Limit
	bodyLimit := response.LimitUploadBody(c.Config.Upload.MaxFileSize)

	requirements := admin.Group("/requirements")
	{
		requirements.GET("", adminOnly, h.Requirements.ListAll)
		requirements.POST("", adminOnly, limit(actionRequirementCreate), bodyLimit, h.Requirements.Create)
		requirements.GET("/gating-status", adminOnly, h.Requirements.GatingStatus)
		requirements.PATCH("/:id", adminOnly, limit(actionRequirementUpdate), bodyLimit, h.Requirements.Update)
		requirements.PATCH("/:id/enable", adminOnly, limit(actionRequirementToggle), h.Requirements.SetEnabled)
		requirements.DELETE("/:id", adminOnly, limit(actionRequirementDelete), h.Requirements.Delete)

		// 审核流转，:id 为需求 key
		reviewers := requirements.Group("/:id/submissions", auth.RequireRole(reviewerRoles...))
		reviewers.GET("", h.Submissions.List)
		// 门控在限流之前，被门控拒绝的请求不计入频率
		reviewers.PATCH("/:submissionId/status",
			c.Enforcer.EnforceParam("id"),
			limit(actionSubmissionStatus),
			h.Submissions.UpdateStatus,
		)
	}

	admin.GET("/audit-logs", adminOnly, h.Audit.List)
}
