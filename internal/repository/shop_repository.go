package repository

import (
	"errors"
	"strings"

	"github.com/Performile1/Performile-Version-1-sub001/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ShopRepository 店铺配置数据访问接口
type ShopRepository interface {
	GetByProviderDomain(provider, domain string) (*models.Shop, error)
	GetBySource(externalSource string) (*models.Shop, error)
	Upsert(shop *models.Shop) error
}

// GormShopRepository GORM 实现
type GormShopRepository struct {
	db *gorm.DB
}

// NewShopRepository 创建店铺仓库
func NewShopRepository(db *gorm.DB) *GormShopRepository {
	return &GormShopRepository{db: db}
}

// GetByProviderDomain 根据提供方与店铺标识获取启用中的店铺
func (r *GormShopRepository) GetByProviderDomain(provider, domain string) (*models.Shop, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	domain = strings.ToLower(strings.TrimSpace(domain))
	if provider == "" || domain == "" {
		return nil, nil
	}
	var shop models.Shop
	err := r.db.Where("provider = ? AND domain = ? AND is_active = ?", provider, domain, true).First(&shop).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &shop, nil
}

// GetBySource 根据 provider:domain 来源获取店铺
func (r *GormShopRepository) GetBySource(externalSource string) (*models.Shop, error) {
	provider, domain, ok := models.SplitExternalSource(externalSource)
	if !ok {
		return nil, nil
	}
	return r.GetByProviderDomain(provider, domain)
}

// Upsert 按 (provider, domain) 写入店铺配置
func (r *GormShopRepository) Upsert(shop *models.Shop) error {
	if shop == nil {
		return nil
	}
	shop.Provider = strings.ToLower(strings.TrimSpace(shop.Provider))
	shop.Domain = strings.ToLower(strings.TrimSpace(shop.Domain))
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "provider"}, {Name: "domain"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "webhook_secret", "auto_assign", "pickup_address", "is_active"}),
	}).Create(shop).Error
}
