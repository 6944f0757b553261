package submission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Locquiano101/CnscCodexMain-sub000/internal/auth"
	"github.com/Locquiano101/CnscCodexMain-sub000/internal/common"

	"gorm.io/gorm"
)

// Repository 提交记录持久化
type Repository struct {
	db *gorm.DB
}

// NewRepository 创建提交仓储
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create 插入新提交；同一 (需求, 组织) 已存在时返回 Conflict
func (r *Repository) Create(ctx context.Context, s *Submission) error {
	if err := r.db.WithContext(ctx).Create(s).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return common.Conflict("Submission already exists")
		}
		return fmt.Errorf("创建提交失败: %w", err)
	}
	return nil
}

// Save 保存全部字段
func (r *Repository) Save(ctx context.Context, s *Submission) error {
	if err := r.db.WithContext(ctx).Save(s).Error; err != nil {
		return fmt.Errorf("更新提交失败: %w", err)
	}
	return nil
}

// GetByID 按 ID 查询
func (r *Repository) GetByID(ctx context.Context, id string) (*Submission, error) {
	var s Submission
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&s).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.NotFound("Submission not found")
		}
		return nil, fmt.Errorf("查询提交失败: %w", err)
	}
	return &s, nil
}

// GetByPair 按 (需求, 组织) 查询
func (r *Repository) GetByPair(ctx context.Context, key, org string) (*Submission, error) {
	var s Submission
	err := r.db.WithContext(ctx).
		Where("requirement_key = ? AND organization_profile = ?", key, org).
		First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.NotFound("Submission not found")
		}
		return nil, fmt.Errorf("查询提交失败: %w", err)
	}
	return &s, nil
}

// ListByRequirement 分页列出某需求下的提交
func (r *Repository) ListByRequirement(ctx context.Context, key string, status Status, page common.PaginationRequest) ([]Submission, int64, error) {
	var (
		subs  []Submission
		total int64
	)
	query := r.db.WithContext(ctx).Model(&Submission{}).
		Where("requirement_key = ?", key).
		Scopes(common.WhereIfNotEmpty("status = ?", string(status)))

	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("统计提交失败: %w", err)
	}
	if err := query.Scopes(common.Paginate(page)).
		Order("updated_at DESC").
		Find(&subs).Error; err != nil {
		return nil, 0, fmt.Errorf("查询提交列表失败: %w", err)
	}
	return subs, total, nil
}

// OrphanByRequirement 需求删除后标记其提交，返回受影响行数
func (r *Repository) OrphanByRequirement(ctx context.Context, key string) (int64, error) {
	result := r.db.WithContext(ctx).Model(&Submission{}).
		Where("requirement_key = ? AND orphaned = ?", key, false).
		Update("orphaned", true)
	if result.Error != nil {
		return 0, fmt.Errorf("标记孤立提交失败: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// ReviveByRequirement 同 key 需求重新创建后恢复孤立提交，状态退回 Pending 等待重新审核
func (r *Repository) ReviveByRequirement(ctx context.Context, key string) (int64, error) {
	role := auth.RoleAdmin
	if actor, ok := auth.PrincipalFromContext(ctx); ok {
		role = actor.Role
	}
	line := LogLine(time.Now(), role, reviveDescription, "")

	var revived int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var subs []Submission
		if err := tx.Where("requirement_key = ? AND orphaned = ?", key, true).Find(&subs).Error; err != nil {
			return err
		}
		for i := range subs {
			subs[i].Orphaned = false
			subs[i].Status = StatusPending
			subs[i].appendLog(line)
			if err := tx.Save(&subs[i]).Error; err != nil {
				return err
			}
		}
		revived = int64(len(subs))
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("恢复孤立提交失败: %w", err)
	}
	return revived, nil
}
