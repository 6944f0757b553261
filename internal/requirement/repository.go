package requirement

import (
	"context"
	"errors"
	"fmt"

	"github.com/Locquiano101/CnscCodexMain-sub000/internal/common"

	"gorm.io/gorm"
)

// Repository 需求持久化
type Repository struct {
	db *gorm.DB
}

// NewRepository 创建需求仓储
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create 插入新需求，key 冲突返回 Conflict
func (r *Repository) Create(ctx context.Context, req *Requirement) error {
	if err := r.db.WithContext(ctx).Create(req).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return common.Conflict("Another requirement with similar title exists")
		}
		return fmt.Errorf("创建需求失败: %w", err)
	}
	return nil
}

// GetByID 按 ID 查询
func (r *Repository) GetByID(ctx context.Context, id string) (*Requirement, error) {
	var req Requirement
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&req).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.NotFound("Requirement not found")
		}
		return nil, fmt.Errorf("查询需求失败: %w", err)
	}
	return &req, nil
}

// GetByKey 按 key 查询
func (r *Repository) GetByKey(ctx context.Context, key string) (*Requirement, error) {
	var req Requirement
	if err := r.db.WithContext(ctx).Where("key = ?", key).First(&req).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.NotFound("Requirement not found")
		}
		return nil, fmt.Errorf("查询需求失败: %w", err)
	}
	return &req, nil
}

// KeyTaken key 是否已被其他需求占用，excludeID 为空时检查全部
func (r *Repository) KeyTaken(ctx context.Context, key, excludeID string) (bool, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&Requirement{}).Where("key = ?", key)
	if excludeID != "" {
		query = query.Where("id <> ?", excludeID)
	}
	if err := query.Count(&count).Error; err != nil {
		return false, fmt.Errorf("检查需求 key 失败: %w", err)
	}
	return count > 0, nil
}

// Save 保存全部字段
func (r *Repository) Save(ctx context.Context, req *Requirement) error {
	if err := r.db.WithContext(ctx).Save(req).Error; err != nil {
		return fmt.Errorf("更新需求失败: %w", err)
	}
	return nil
}

// SetEnabled 只更新启用状态
func (r *Repository) SetEnabled(ctx context.Context, id string, enabled bool) error {
	result := r.db.WithContext(ctx).Model(&Requirement{}).Where("id = ?", id).Update("enabled", enabled)
	if result.Error != nil {
		return fmt.Errorf("更新需求状态失败: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return common.NotFound("Requirement not found")
	}
	return nil
}

// Delete 硬删除需求行
func (r *Repository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&Requirement{})
	if result.Error != nil {
		return fmt.Errorf("删除需求失败: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return common.NotFound("Requirement not found")
	}
	return nil
}

// List 按类型、标题排序
func (r *Repository) List(ctx context.Context, filter Filter) ([]Requirement, error) {
	var reqs []Requirement
	query := r.db.WithContext(ctx).Model(&Requirement{}).
		Scopes(common.WhereIfNotEmpty("type = ?", string(filter.Type)))
	if !filter.IncludeDisabled {
		query = query.Where("enabled = ?", true)
	}
	if err := query.Order("type ASC").Order("title ASC").Find(&reqs).Error; err != nil {
		return nil, fmt.Errorf("查询需求列表失败: %w", err)
	}
	return reqs, nil
}

// EnabledKeys 返回所有启用需求的 key
func (r *Repository) EnabledKeys(ctx context.Context) ([]string, error) {
	var keys []string
	if err := r.db.WithContext(ctx).Model(&Requirement{}).
		Where("enabled = ?", true).
		Pluck("key", &keys).Error; err != nil {
		return nil, fmt.Errorf("查询启用需求失败: %w", err)
	}
	return keys, nil
}

// CreateIfMissing 仅在 key 不存在时插入，返回是否插入
func (r *Repository) CreateIfMissing(ctx context.Context, req *Requirement) (bool, error) {
	taken, err := r.KeyTaken(ctx, req.Key, "")
	if err != nil {
		return false, err
	}
	if taken {
		return false, nil
	}
	if err := r.Create(ctx, req); err != nil {
		if errors.Is(err, common.ErrConflict) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
