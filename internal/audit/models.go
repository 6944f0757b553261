package audit

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AuditLog 审计日志，只追加，代码中不存在更新或删除路径
type AuditLog struct {
	ID                  string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	Action              string         `gorm:"type:varchar(100);not null;index:idx_audit_action" json:"action"`
	Category            string         `gorm:"type:varchar(30);not null" json:"category"`
	ActorID             string         `gorm:"type:varchar(100);index:idx_audit_actor" json:"actorId"`
	ActorName           string         `gorm:"type:varchar(255)" json:"actorName"`
	ActorEmail          string         `gorm:"type:varchar(255)" json:"actorEmail"`
	ActorRole           string         `gorm:"type:varchar(50)" json:"actorRole"`
	TargetType          string         `gorm:"type:varchar(50);index:idx_audit_target" json:"targetType"`
	TargetID            string         `gorm:"type:varchar(100);index:idx_audit_target" json:"targetId"`
	OrganizationProfile string         `gorm:"type:varchar(100);index" json:"organizationProfile,omitempty"`
	Meta                datatypes.JSON `json:"meta"`
	CreatedAt           time.Time      `gorm:"not null;index:idx_audit_created_at" json:"createdAt"`
}

// BeforeCreate GORM 钩子：创建前设置 ID
func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	return nil
}

// TableName 指定表名
func (AuditLog) TableName() string {
	return "audit_logs"
}
