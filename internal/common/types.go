package common

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// PaginationRequest 列表接口共用的分页参数，页码从 1 开始
type PaginationRequest struct {
	Page     int `json:"page" form:"page" binding:"omitempty,min=1"`
	PageSize int `json:"pageSize" form:"pageSize" binding:"omitempty,min=1"`
}

func (p PaginationRequest) GetPage() int {
	return max(p.Page, 1)
}

// GetPageSize 未指定时取默认值，超过上限时截断
func (p PaginationRequest) GetPageSize() int {
	switch {
	case p.PageSize < 1:
		return defaultPageSize
	case p.PageSize > maxPageSize:
		return maxPageSize
	default:
		return p.PageSize
	}
}

func (p PaginationRequest) GetOffset() int {
	return (p.GetPage() - 1) * p.GetPageSize()
}

// PaginationMeta 列表响应里的分页信息
type PaginationMeta struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"pageSize"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

func NewPaginationMeta(req PaginationRequest, total int64) PaginationMeta {
	size := req.GetPageSize()
	return PaginationMeta{
		Page:       req.GetPage(),
		PageSize:   size,
		Total:      total,
		TotalPages: int((total + int64(size) - 1) / int64(size)),
	}
}
