package audit

// EventType 审计事件类型
type EventType string

// 需求管理事件
const (
	EventRequirementCreate EventType = "requirement.create"          // 创建自定义需求
	EventRequirementUpdate EventType = "requirement.update"          // 修改需求
	EventRequirementToggle EventType = "requirement.toggle"          // 启用/禁用
	EventRequirementDelete EventType = "requirement.delete"          // 删除自定义需求
	EventDocumentUpload    EventType = "requirement.document.upload" // 需求附件上传/替换
)

// 审核流程事件
const (
	EventSubmissionSubmit EventType = "submission.submit" // 组织提交或重新提交
	EventSubmissionStatus EventType = "submission.status" // 审核状态变更
)

// 目标类型
const (
	TargetRequirement = "requirement"
	TargetSubmission  = "submission"
)

// EventCategory 事件分类
type EventCategory string

const (
	CategoryRegistry EventCategory = "registry" // 需求目录
	CategoryWorkflow EventCategory = "workflow" // 审核流程
	CategoryOther    EventCategory = "other"
)

// GetEventCategory 获取事件分类
func GetEventCategory(eventType EventType) EventCategory {
	switch eventType {
	case EventRequirementCreate, EventRequirementUpdate, EventRequirementToggle,
		EventRequirementDelete, EventDocumentUpload:
		return CategoryRegistry
	case EventSubmissionSubmit, EventSubmissionStatus:
		return CategoryWorkflow
	default:
		return CategoryOther
	}
}
