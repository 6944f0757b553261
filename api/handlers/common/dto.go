package common

import appcommon "github.com/Locquiano101/CnscCodexMain-sub000/internal/common"

// APIResponse 成功响应
type APIResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// ListResponse 分页列表响应，items 与 pagination 平铺在顶层
type ListResponse struct {
	Success    bool                     `json:"success"`
	Items      any                      `json:"items"`
	Pagination appcommon.PaginationMeta `json:"pagination"`
}

// ErrorResponse 失败响应，code 为机器可读的错误码
type ErrorResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}
