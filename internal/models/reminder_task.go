package models

import "time"

// ReminderTask 评价提醒任务，每个配送请求至多一条
type ReminderTask struct {
	ID           uint       `gorm:"primarykey" json:"id"`                                     // 主键
	RequestID    string     `gorm:"type:varchar(36);not null;uniqueIndex" json:"request_id"`  // 配送请求ID
	ScheduledFor time.Time  `gorm:"not null;index" json:"scheduled_for"`                      // 计划发送时间
	Status       string     `gorm:"type:varchar(20);not null;index" json:"status"`            // pending/sent/cancelled
	Attempts     int        `gorm:"not null;default:0" json:"attempts"`                       // 已尝试次数
	ClaimedAt    *time.Time `gorm:"index" json:"claimed_at"`                                  // 被扫描任务领取的时间
	SentAt       *time.Time `json:"sent_at"`                                                  // 发送时间
	LastError    string     `gorm:"type:text" json:"last_error"`                              // 最后一次错误
	CreatedAt    time.Time  `json:"created_at"`                                               // 创建时间
	UpdatedAt    time.Time  `json:"updated_at"`                                               // 更新时间
}

// TableName 指定表名
func (ReminderTask) TableName() string {
	return "reminder_tasks"
}
