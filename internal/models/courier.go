package models

import "time"

// Courier 骑手
type Courier struct {
	ID                  uint      `gorm:"primarykey" json:"id"`                            // 主键
	Name                string    `gorm:"type:varchar(120);not null" json:"name"`          // 姓名
	Email               string    `gorm:"type:varchar(255)" json:"email"`                  // 邮箱
	Phone               string    `gorm:"type:varchar(40)" json:"phone"`                   // 电话
	City                string    `gorm:"type:varchar(120);not null;index" json:"city"`    // 服务城市
	IsActive            bool      `gorm:"not null;default:true;index" json:"is_active"`    // 是否在岗
	Rating              float64   `gorm:"not null;default:0;index" json:"rating"`          // 评分
	MaxConcurrentOrders *int      `json:"max_concurrent_orders"`                           // 并发上限（为空不限制）
	CurrentOrders       int       `gorm:"not null;default:0" json:"current_orders"`        // 当前在途订单
	CreatedAt           time.Time `gorm:"index" json:"created_at"`                         // 注册时间
	UpdatedAt           time.Time `json:"updated_at"`                                      // 更新时间
}

// TableName 指定表名
func (Courier) TableName() string {
	return "couriers"
}
