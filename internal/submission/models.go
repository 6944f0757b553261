package submission

import (
	"github.com/Locquiano101/CnscCodexMain-sub000/internal/common"
	"github.com/Locquiano101/CnscCodexMain-sub000/internal/storage"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Submission 组织针对某项需求的当前提交，(requirement_key, organization_profile) 唯一
type Submission struct {
	ID                  string                      `gorm:"type:varchar(36);primaryKey" json:"id"`
	RequirementKey      string                      `gorm:"type:varchar(150);not null;uniqueIndex:idx_submission_pair" json:"requirementKey"`
	OrganizationProfile string                      `gorm:"type:varchar(100);not null;uniqueIndex:idx_submission_pair" json:"organizationProfile"`
	Document            storage.Document            `gorm:"embedded;embeddedPrefix:document_" json:"document"`
	Status              Status                      `gorm:"type:varchar(30);not null;index" json:"status"`
	Logs                datatypes.JSONSlice[string] `json:"logs"`
	UploadedBy          string                      `gorm:"type:varchar(100)" json:"uploadedBy"`
	// Orphaned 所属需求已被删除，记录保留只读
	Orphaned bool `gorm:"not null;index" json:"orphaned"`
	common.TimestampModel
}

// BeforeCreate GORM 钩子：创建前设置 ID
func (s *Submission) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return nil
}

// TableName 指定表名
func (Submission) TableName() string {
	return "submissions"
}

// appendLog 日志只追加
func (s *Submission) appendLog(line string) {
	s.Logs = append(s.Logs, line)
}
