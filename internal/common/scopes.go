package common

import "gorm.io/gorm"

// Paginate 分页 Scope
// 使用方法：db.Scopes(common.Paginate(req)).Find(&logs)
func Paginate(req PaginationRequest) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Offset(req.GetOffset()).Limit(req.GetPageSize())
	}
}

// WhereIfNotEmpty 值非空时才追加条件
// 使用方法：db.Scopes(common.WhereIfNotEmpty("action = ?", action))
func WhereIfNotEmpty(query string, value string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if value == "" {
			return db
		}
		return db.Where(query, value)
	}
}
