package repository

import (
	"errors"
	"time"

	"github.com/Performile1/Performile-Version-1-sub001/internal/models"

	"gorm.io/gorm"
)

// OperatorRepository 运维账号数据访问接口
type OperatorRepository interface {
	Create(operator *models.Operator) error
	GetByID(id uint) (*models.Operator, error)
	GetByUsername(username string) (*models.Operator, error)
	TouchLogin(id uint, at time.Time) error
}

// GormOperatorRepository GORM 实现
type GormOperatorRepository struct {
	db *gorm.DB
}

// NewOperatorRepository 创建运维账号仓库
func NewOperatorRepository(db *gorm.DB) *GormOperatorRepository {
	return &GormOperatorRepository{db: db}
}

// Create 创建运维账号
func (r *GormOperatorRepository) Create(operator *models.Operator) error {
	return r.db.Create(operator).Error
}

// GetByID 根据 ID 获取运维账号
func (r *GormOperatorRepository) GetByID(id uint) (*models.Operator, error) {
	var operator models.Operator
	if err := r.db.First(&operator, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &operator, nil
}

// GetByUsername 根据账号获取运维账号
func (r *GormOperatorRepository) GetByUsername(username string) (*models.Operator, error) {
	var operator models.Operator
	if err := r.db.Where("username = ?", username).First(&operator).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &operator, nil
}

// TouchLogin 更新最后登录时间
func (r *GormOperatorRepository) TouchLogin(id uint, at time.Time) error {
	return r.db.Model(&models.Operator{}).Where("id = ?", id).Update("last_login_at", at).Error
}
