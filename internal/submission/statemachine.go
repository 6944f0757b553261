package submission

import (
	"fmt"
	"strings"
	"time"

	"github.com/Locquiano101/CnscCodexMain-sub000/internal/auth"
	"github.com/Locquiano101/CnscCodexMain-sub000/internal/common"
)

// Status 审核状态
type Status string

const (
	StatusPending           Status = "Pending"
	StatusAdviserApproved   Status = "AdviserApproved"
	StatusDeanApproved      Status = "DeanApproved"
	StatusApproved          Status = "Approved"
	StatusRevisionRequested Status = "RevisionRequested"
	StatusRejected          Status = "Rejected"
)

// IsTerminal 终态只能通过重新提交离开
func (s Status) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// ParseStatus 解析状态名
func ParseStatus(raw string) (Status, bool) {
	switch s := Status(strings.TrimSpace(raw)); s {
	case StatusPending, StatusAdviserApproved, StatusDeanApproved,
		StatusApproved, StatusRevisionRequested, StatusRejected:
		return s, true
	}
	return "", false
}

// Action 状态流转动作
type Action string

const (
	ActionSubmit          Action = "submit"
	ActionAdviserApprove  Action = "adviserApprove"
	ActionDeanApprove     Action = "deanApprove"
	ActionFinalApprove    Action = "finalApprove"
	ActionRequestRevision Action = "requestRevision"
	ActionReject          Action = "reject"
)

type rule struct {
	to          Status
	from        []Status // 为空表示任意非终态
	roles       []auth.Role
	needsNotes  bool
	description string
}

var reviewers = []auth.Role{auth.RoleAdviser, auth.RoleDean, auth.RoleAdmin}

var rules = map[Action]rule{
	ActionAdviserApprove: {
		to:          StatusAdviserApproved,
		from:        []Status{StatusPending},
		roles:       []auth.Role{auth.RoleAdviser, auth.RoleAdmin},
		description: "Approved by adviser",
	},
	ActionDeanApprove: {
		to:          StatusDeanApproved,
		from:        []Status{StatusAdviserApproved},
		roles:       []auth.Role{auth.RoleDean, auth.RoleAdmin},
		description: "Approved by dean",
	},
	ActionFinalApprove: {
		to:          StatusApproved,
		from:        []Status{StatusDeanApproved},
		roles:       []auth.Role{auth.RoleAdmin},
		description: "Final approval granted",
	},
	ActionRequestRevision: {
		to:          StatusRevisionRequested,
		from:        []Status{StatusPending, StatusAdviserApproved, StatusDeanApproved},
		roles:       reviewers,
		needsNotes:  true,
		description: "Requested revision",
	},
	ActionReject: {
		to:          StatusRejected,
		roles:       reviewers,
		needsNotes:  true,
		description: "Rejected submission",
	},
}

// 目标状态到动作的映射，Pending 只能通过重新提交到达
var actionByTarget = map[Status]Action{
	StatusAdviserApproved:   ActionAdviserApprove,
	StatusDeanApproved:      ActionDeanApprove,
	StatusApproved:          ActionFinalApprove,
	StatusRevisionRequested: ActionRequestRevision,
	StatusRejected:          ActionReject,
}

const (
	submitDescription = "Submitted document"
	reviveDescription = "Requirement re-created, awaiting review"
)

// ActionForStatus 把 PATCH 请求中的目标状态映射为动作
func ActionForStatus(raw string) (Action, error) {
	target, ok := ParseStatus(raw)
	if !ok {
		return "", common.Validation("Unknown status %q", raw)
	}
	action, ok := actionByTarget[target]
	if !ok {
		return "", common.Validation("Status %s can only be reached by re-submitting the requirement", target)
	}
	return action, nil
}

// Decision 一次合法流转的结果
type Decision struct {
	Action      Action
	From        Status
	To          Status
	Notes       string
	Description string
}

// Decide 纯函数：校验角色、前置状态与备注，返回目标状态。不修改任何记录。
func Decide(current Status, action Action, role auth.Role, notes string) (*Decision, error) {
	r, ok := rules[action]
	if !ok {
		return nil, common.Validation("Unknown action %q", action)
	}

	if !role.In(r.roles...) {
		return nil, common.Forbidden("Role %s cannot perform %s", role.Label(), action)
	}

	if !allowedFrom(r, current) {
		return nil, common.Validation("Cannot move submission from %s to %s", current, r.to)
	}

	notes = strings.TrimSpace(notes)
	if r.needsNotes && notes == "" {
		return nil, common.Validation("Notes are required to move a submission to %s", r.to)
	}

	return &Decision{
		Action:      action,
		From:        current,
		To:          r.to,
		Notes:       notes,
		Description: r.description,
	}, nil
}

func allowedFrom(r rule, current Status) bool {
	if len(r.from) == 0 {
		return !current.IsTerminal()
	}
	for _, s := range r.from {
		if s == current {
			return true
		}
	}
	return false
}

// LogLine 生成一行流转日志："<RFC3339> [<ROLE>] <描述>[: 备注]"
func LogLine(at time.Time, role auth.Role, description, notes string) string {
	line := fmt.Sprintf("%s [%s] %s", at.UTC().Format(time.RFC3339), role.Label(), description)
	if notes != "" {
		line += ": " + notes
	}
	return line
}
