package models

import "time"

// WebhookEvent 入站 webhook 审计日志，只追加不更新
type WebhookEvent struct {
	ID                uint      `gorm:"primarykey" json:"id"`                              // 主键
	Provider          string    `gorm:"type:varchar(32);not null;index" json:"provider"`   // 提供方
	EventType         string    `gorm:"type:varchar(100);index" json:"event_type"`         // 事件主题
	Source            string    `gorm:"type:varchar(191);index" json:"source"`             // 店铺标识
	TopicAction       string    `gorm:"type:varchar(20)" json:"topic_action"`              // 路由动作
	DeliveryRequestID *string   `gorm:"type:varchar(36);index" json:"delivery_request_id"` // 关联配送请求
	Payload           string    `gorm:"type:text" json:"payload"`                          // 原始报文
	Headers           JSON      `gorm:"type:json" json:"headers"`                          // 重放所需的请求头
	Status            string    `gorm:"type:varchar(20);not null;index" json:"status"`     // success/failed/error
	ErrorMessage      string    `gorm:"type:text" json:"error_message"`                    // 错误信息
	HTTPStatus        int       `gorm:"not null;default:0" json:"http_status"`             // 返回给提供方的状态码
	RequestID         string    `gorm:"type:varchar(64)" json:"request_id"`                // 请求ID
	ReplayOf          *uint     `gorm:"index" json:"replay_of,omitempty"`                  // 重放来源
	ReceivedAt        time.Time `gorm:"not null;index" json:"received_at"`                 // 接收时间
}

// TableName 指定表名
func (WebhookEvent) TableName() string {
	return "webhook_events"
}
