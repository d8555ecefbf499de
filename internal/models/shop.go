package models

import (
	"strings"
	"time"
)

// Shop 接入的店铺配置
type Shop struct {
	ID            uint      `gorm:"primarykey" json:"id"`                                                        // 主键
	Provider      string    `gorm:"type:varchar(32);not null;uniqueIndex:idx_shops_provider_domain" json:"provider"` // 提供方
	Domain        string    `gorm:"type:varchar(191);not null;uniqueIndex:idx_shops_provider_domain" json:"domain"`   // 店铺标识
	Name          string    `gorm:"type:varchar(191)" json:"name"`                                               // 店铺名称
	WebhookSecret string    `gorm:"type:varchar(255)" json:"-"`                                                  // 店铺级签名密钥
	AutoAssign    bool      `gorm:"not null;default:false" json:"auto_assign"`                                   // 是否自动分配骑手
	PickupAddress string    `gorm:"type:text" json:"pickup_address"`                                             // 取件地址
	IsActive      bool      `gorm:"not null;default:true" json:"is_active"`                                      // 是否启用
	CreatedAt     time.Time `json:"created_at"`                                                                  // 创建时间
}

// TableName 指定表名
func (Shop) TableName() string {
	return "shops"
}

// ExternalSource 返回该店铺对应的幂等键来源
func (s *Shop) ExternalSource() string {
	if s == nil {
		return ""
	}
	return BuildExternalSource(s.Provider, s.Domain)
}

// BuildExternalSource 组装 provider:domain 形式的来源标识
func BuildExternalSource(provider, domain string) string {
	return strings.ToLower(strings.TrimSpace(provider)) + ":" + strings.ToLower(strings.TrimSpace(domain))
}

// SplitExternalSource 拆分来源标识
func SplitExternalSource(source string) (string, string, bool) {
	provider, domain, ok := strings.Cut(strings.TrimSpace(source), ":")
	if !ok || provider == "" || domain == "" {
		return "", "", false
	}
	return provider, domain, true
}
