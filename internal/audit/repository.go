package audit

import (
	"context"
	"fmt"

	"github.com/Locquiano101/CnscCodexMain-sub000/internal/common"

	"gorm.io/gorm"
)

// Query 审计日志查询条件
type Query struct {
	Action     string
	TargetType string
	TargetID   string
	ActorID    string
	common.PaginationRequest
}

// Repository 审计日志存储
type Repository struct {
	db *gorm.DB
}

// NewRepository 创建审计日志存储
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create 写入一条审计日志
func (r *Repository) Create(ctx context.Context, log *AuditLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

// List 按条件分页查询，按时间倒序
func (r *Repository) List(ctx context.Context, q Query) ([]AuditLog, int64, error) {
	base := r.db.WithContext(ctx).Model(&AuditLog{}).Scopes(
		common.WhereIfNotEmpty("action = ?", q.Action),
		common.WhereIfNotEmpty("target_type = ?", q.TargetType),
		common.WhereIfNotEmpty("target_id = ?", q.TargetID),
		common.WhereIfNotEmpty("actor_id = ?", q.ActorID),
	)

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("统计审计日志失败: %w", err)
	}

	var logs []AuditLog
	err := base.Session(&gorm.Session{}).
		Order("created_at DESC").
		Scopes(common.Paginate(q.PaginationRequest)).
		Find(&logs).Error
	if err != nil {
		return nil, 0, fmt.Errorf("查询审计日志失败: %w", err)
	}
	return logs, total, nil
}
