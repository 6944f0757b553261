package requirement

import (
	"github.com/Locquiano101/CnscCodexMain-sub000/internal/common"
	"github.com/Locquiano101/CnscCodexMain-sub000/internal/storage"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Type 需求类型
type Type string

const (
	TypeTemplate Type = "template" // 内置模板，不可删除
	TypeCustom   Type = "custom"   // 管理员创建，可删除
)

// ParseType 解析查询参数中的类型
func ParseType(s string) (Type, bool) {
	switch Type(s) {
	case TypeTemplate, TypeCustom:
		return Type(s), true
	}
	return "", false
}

// Requirement 认证需求
// Key 在创建时由标题生成，之后即使改名也不再变化
type Requirement struct {
	ID          string           `gorm:"type:varchar(36);primaryKey" json:"id"`
	Key         string           `gorm:"type:varchar(150);not null;uniqueIndex" json:"key"`
	Type        Type             `gorm:"type:varchar(20);not null;index" json:"type"`
	Title       string           `gorm:"type:varchar(255);not null" json:"title"`
	Description string           `gorm:"type:text" json:"description"`
	Enabled     bool             `gorm:"not null" json:"enabled"`
	Removable   bool             `gorm:"not null" json:"removable"`
	Document    storage.Document `gorm:"embedded;embeddedPrefix:document_" json:"document"`
	Version     int              `gorm:"not null" json:"version"`
	CreatedBy   string           `gorm:"type:varchar(100)" json:"createdBy"`
	common.TimestampModel
}

// BeforeCreate GORM 钩子：创建前设置 ID
func (r *Requirement) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.Version == 0 {
		r.Version = 1
	}
	return nil
}

// TableName 指定表名
func (Requirement) TableName() string {
	return "requirements"
}

// VisibleRequirement 对外公开的最小字段
type VisibleRequirement struct {
	Key   string `json:"key"`
	Title string `json:"title"`
	Type  Type   `json:"type"`
}

// Filter 管理端列表过滤条件
type Filter struct {
	Type            Type
	IncludeDisabled bool
}
