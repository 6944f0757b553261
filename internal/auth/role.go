package auth

import "strings"

// Role 系统内的封闭角色集合
type Role string

const (
	RoleAdmin         Role = "admin"
	RoleAdviser       Role = "adviser"
	RoleDean          Role = "dean"
	RoleStudentLeader Role = "student-leader"
)

// roleAliases 历史数据与前端传入的各种写法统一在这里归一化
var roleAliases = map[string]Role{
	"admin":           RoleAdmin,
	"administrator":   RoleAdmin,
	"sdu":             RoleAdmin,
	"sdu-coordinator": RoleAdmin,
	"sdu-admin":       RoleAdmin,
	"adviser":         RoleAdviser,
	"advisor":         RoleAdviser,
	"dean":            RoleDean,
	"student-leader":  RoleStudentLeader,
	"studentleader":   RoleStudentLeader,
	"student":         RoleStudentLeader,
	"organization":    RoleStudentLeader,
}

// ParseRole 唯一的角色归一化入口：忽略大小写，空格和下划线视为连字符
func ParseRole(raw string) (Role, bool) {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.NewReplacer("_", "-", " ", "-").Replace(key)
	role, ok := roleAliases[key]
	return role, ok
}

// IsReviewer 是否属于审核角色
func (r Role) IsReviewer() bool {
	return r == RoleAdmin || r == RoleAdviser || r == RoleDean
}

// In 判断是否属于给定角色之一
func (r Role) In(roles ...Role) bool {
	for _, candidate := range roles {
		if r == candidate {
			return true
		}
	}
	return false
}

// Label 日志中使用的大写标签
func (r Role) Label() string {
	return strings.ToUpper(string(r))
}
