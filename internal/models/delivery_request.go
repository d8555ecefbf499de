package models

import (
	"time"

	"github.com/Performile1/Performile-Version-1-sub001/internal/constants"
)

// DeliveryRequest 规范化后的配送请求（订单）
// (external_order_id, external_source) 为幂等键
type DeliveryRequest struct {
	ID               string     `gorm:"primaryKey;type:varchar(36)" json:"id"`                                                                  // 主键（UUID）
	ExternalOrderID  string     `gorm:"type:varchar(191);not null;uniqueIndex:idx_delivery_requests_identity,priority:1" json:"external_order_id"` // 外部订单ID
	ExternalSource   string     `gorm:"type:varchar(191);not null;uniqueIndex:idx_delivery_requests_identity,priority:2" json:"external_source"`   // 外部来源（提供方:店铺）
	Provider         string     `gorm:"type:varchar(32);not null;index" json:"provider"`                                                       // 提供方
	ShopID           *uint      `gorm:"index" json:"shop_id,omitempty"`                                                                        // 店铺ID
	OrderNumber      string     `gorm:"type:varchar(100)" json:"order_number"`                                                                 // 可读订单号
	CustomerEmail    string     `gorm:"type:varchar(255)" json:"customer_email"`                                                               // 客户邮箱
	CustomerName     string     `gorm:"type:varchar(255)" json:"customer_name"`                                                                // 客户姓名
	PickupAddress    string     `gorm:"type:text" json:"pickup_address"`                                                                       // 取件地址
	DeliveryAddress  string     `gorm:"type:text" json:"delivery_address"`                                                                     // 收货地址
	DeliveryCity     string     `gorm:"type:varchar(120);index" json:"delivery_city"`                                                          // 收货城市
	OrderValue       Money      `gorm:"type:decimal(20,2);not null;default:0" json:"order_value"`                                              // 订单金额
	Currency         string     `gorm:"type:varchar(10)" json:"currency"`                                                                      // 币种
	ProviderStatus   string     `gorm:"type:varchar(100)" json:"provider_status"`                                                              // 提供方原始状态
	Status           string     `gorm:"type:varchar(20);not null;index" json:"status"`                                                         // 规范状态
	CourierID        *uint      `gorm:"index" json:"courier_id,omitempty"`                                                                     // 分配的骑手
	AssignedAt       *time.Time `json:"assigned_at"`                                                                                           // 分配时间
	CompletedAt      *time.Time `gorm:"index" json:"completed_at"`                                                                             // 完成时间
	CancelledAt      *time.Time `json:"cancelled_at"`                                                                                          // 取消时间
	ReviewLinkToken  *string    `gorm:"type:varchar(128);uniqueIndex" json:"-"`                                                                // 评价令牌
	ReviewLinkSent   bool       `gorm:"not null;default:false" json:"review_link_sent"`                                                        // 是否已发送评价邀请
	ReviewLinkSentAt *time.Time `json:"review_link_sent_at"`                                                                                   // 评价邀请发送时间
	CreatedAt        time.Time  `gorm:"index" json:"created_at"`                                                                               // 创建时间
	UpdatedAt        time.Time  `json:"updated_at"`                                                                                            // 更新时间
}

// TableName 指定表名
func (DeliveryRequest) TableName() string {
	return "delivery_requests"
}

// IsTerminal 是否处于终态
func (r *DeliveryRequest) IsTerminal() bool {
	if r == nil {
		return false
	}
	return r.Status == constants.DeliveryStatusCompleted || r.Status == constants.DeliveryStatusCancelled
}
