package models

import "time"

// Operator 运维账号（查询审计日志、重放事件）
type Operator struct {
	ID           uint       `gorm:"primarykey" json:"id"`                                // 主键
	Username     string     `gorm:"type:varchar(100);uniqueIndex;not null" json:"username"` // 账号
	PasswordHash string     `gorm:"not null" json:"-"`                                   // 密码哈希
	Role         string     `gorm:"type:varchar(32);not null;index" json:"role"`         // 角色
	IsActive     bool       `gorm:"not null;default:true" json:"is_active"`              // 是否启用
	LastLoginAt  *time.Time `json:"last_login_at"`                                       // 最后登录时间
	CreatedAt    time.Time  `json:"created_at"`                                          // 创建时间
}

// TableName 指定表名
func (Operator) TableName() string {
	return "operators"
}
