package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OrganizationMember 组织关联用户，用于确定通知接收人
type OrganizationMember struct {
	ID                  string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	OrganizationProfile string    `gorm:"type:varchar(100);not null;uniqueIndex:idx_org_member" json:"organizationProfile"`
	UserID              string    `gorm:"type:varchar(100);not null;uniqueIndex:idx_org_member" json:"userId"`
	Name                string    `gorm:"type:varchar(255)" json:"name"`
	Email               string    `gorm:"type:varchar(255)" json:"email"`
	CreatedAt           time.Time `json:"createdAt"`
}

// BeforeCreate GORM 钩子：创建前设置 ID
func (m *OrganizationMember) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return nil
}

// TableName 指定表名
func (OrganizationMember) TableName() string {
	return "organization_members"
}

// RecipientResolver 根据组织查找通知接收人
type RecipientResolver interface {
	Recipients(ctx context.Context, organization string) ([]Recipient, error)
}

// MemberDirectory 基于 organization_members 表的接收人查询
type MemberDirectory struct {
	db *gorm.DB
}

// NewMemberDirectory 创建成员目录
func NewMemberDirectory(db *gorm.DB) *MemberDirectory {
	return &MemberDirectory{db: db}
}

// Recipients 返回组织下的全部成员
func (d *MemberDirectory) Recipients(ctx context.Context, organization string) ([]Recipient, error) {
	var members []OrganizationMember
	if err := d.db.WithContext(ctx).
		Where("organization_profile = ?", organization).
		Order("created_at ASC").
		Find(&members).Error; err != nil {
		return nil, fmt.Errorf("查询组织成员失败: %w", err)
	}

	out := make([]Recipient, 0, len(members))
	for _, m := range members {
		out = append(out, Recipient{UserID: m.UserID, Name: m.Name, Email: m.Email})
	}
	return out, nil
}

// AddMember 关联用户到组织（已存在时忽略）
func (d *MemberDirectory) AddMember(ctx context.Context, m *OrganizationMember) error {
	var existing OrganizationMember
	err := d.db.WithContext(ctx).
		Where("organization_profile = ? AND user_id = ?", m.OrganizationProfile, m.UserID).
		Limit(1).Find(&existing).Error
	if err != nil {
		return fmt.Errorf("查询组织成员失败: %w", err)
	}
	if existing.ID != "" {
		return nil
	}
	return d.db.WithContext(ctx).Create(m).Error
}
