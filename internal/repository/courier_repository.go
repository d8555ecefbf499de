package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/Performile1/Performile-Version-1-sub001/internal/models"

	"gorm.io/gorm"
)

// CourierRepository 骑手目录数据访问接口
type CourierRepository interface {
	Create(courier *models.Courier) error
	GetByID(id uint) (*models.Courier, error)
	ListCandidates(filter CourierCandidateFilter) ([]models.Courier, error)
	ReserveCapacity(id uint) (int64, error)
	ReleaseCapacity(id uint) (int64, error)
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) *GormCourierRepository
}

// GormCourierRepository GORM 实现
type GormCourierRepository struct {
	db *gorm.DB
}

// NewCourierRepository 创建骑手仓库
func NewCourierRepository(db *gorm.DB) *GormCourierRepository {
	return &GormCourierRepository{db: db}
}

// WithTx 绑定事务
func (r *GormCourierRepository) WithTx(tx *gorm.DB) *GormCourierRepository {
	if tx == nil {
		return r
	}
	return &GormCourierRepository{db: tx}
}

// Transaction 执行事务
func (r *GormCourierRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// Create 创建骑手
func (r *GormCourierRepository) Create(courier *models.Courier) error {
	return r.db.Create(courier).Error
}

// GetByID 根据 ID 获取骑手
func (r *GormCourierRepository) GetByID(id uint) (*models.Courier, error) {
	var courier models.Courier
	if err := r.db.First(&courier, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &courier, nil
}

// ListCandidates 查询可接单骑手：在岗、城市匹配、未超并发上限
// 排序：评分高者优先，同分按注册时间先后
func (r *GormCourierRepository) ListCandidates(filter CourierCandidateFilter) ([]models.Courier, error) {
	city := strings.TrimSpace(filter.City)
	if city == "" {
		return []models.Courier{}, nil
	}
	query := r.db.Model(&models.Courier{}).
		Where("is_active = ?", true).
		Where(lowerEquals("city"), city).
		Where("max_concurrent_orders IS NULL OR current_orders < max_concurrent_orders").
		Order("rating desc").
		Order("created_at asc").
		Order("id asc")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	var couriers []models.Courier
	if err := query.Find(&couriers).Error; err != nil {
		return nil, err
	}
	return couriers, nil
}

// ReserveCapacity 占用一个并发名额，容量已满或骑手停用时不生效
func (r *GormCourierRepository) ReserveCapacity(id uint) (int64, error) {
	result := r.db.Model(&models.Courier{}).
		Where("id = ? AND is_active = ?", id, true).
		Where("max_concurrent_orders IS NULL OR current_orders < max_concurrent_orders").
		Updates(map[string]interface{}{
			"current_orders": gorm.Expr("current_orders + ?", 1),
			"updated_at":     time.Now(),
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// ReleaseCapacity 释放一个并发名额
func (r *GormCourierRepository) ReleaseCapacity(id uint) (int64, error) {
	result := r.db.Model(&models.Courier{}).
		Where("id = ? AND current_orders > 0", id).
		Updates(map[string]interface{}{
			"current_orders": gorm.Expr("current_orders - ?", 1),
			"updated_at":     time.Now(),
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
