package common

import (
	"net/http"

	appcommon "github.com/Locquiano101/CnscCodexMain-sub000/internal/common"
	"github.com/Locquiano101/CnscCodexMain-sub000/internal/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// OK 200
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: data})
}

// Created 201
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, APIResponse{Success: true, Data: data})
}

// List 分页列表
func List(c *gin.Context, items interface{}, page appcommon.PaginationRequest, total int64) {
	c.JSON(http.StatusOK, ListResponse{
		Success:    true,
		Items:      items,
		Pagination: appcommon.NewPaginationMeta(page, total),
	})
}

// BadRequest 400，用于请求体解析失败
func BadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Success: false, Code: appcommon.CodeValidation, Message: message})
}

// Error 按错误分类写响应；500 只返回通用消息，细节写日志
func Error(c *gin.Context, err error) {
	status, code, message := appcommon.Classify(err)
	if status >= http.StatusInternalServerError {
		logger.WithContext(c.Request.Context()).Error("请求处理失败",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}
	c.JSON(status, ErrorResponse{Success: false, Code: code, Message: message})
}
