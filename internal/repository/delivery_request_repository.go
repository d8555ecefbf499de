package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/Performile1/Performile-Version-1-sub001/internal/constants"
	"github.com/Performile1/Performile-Version-1-sub001/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DeliveryRequestRepository 配送请求数据访问接口
// 所有状态写入均为带 WHERE 守卫的单条语句，返回受影响行数供调用方判断 CAS 结果
type DeliveryRequestRepository interface {
	GetByID(id string) (*models.DeliveryRequest, error)
	GetByKey(externalOrderID, externalSource string) (*models.DeliveryRequest, error)
	CreateIfAbsent(req *models.DeliveryRequest) (bool, error)
	RefreshFields(externalOrderID, externalSource string, fields DeliveryRefreshFields) (int64, error)
	MarkCompleted(externalOrderID, externalSource string, at time.Time) (int64, error)
	MarkCancelled(externalOrderID, externalSource string, at time.Time) (int64, error)
	AssignCourier(id string, courierID uint, at time.Time) (int64, error)
	ClaimReviewDispatch(id, token string, at time.Time) (int64, error)
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) *GormDeliveryRequestRepository
}

// DeliveryRefreshFields 非身份字段刷新内容，零值字段不覆盖
type DeliveryRefreshFields struct {
	OrderNumber     string
	CustomerEmail   string
	CustomerName    string
	DeliveryAddress string
	DeliveryCity    string
	OrderValue      *models.Money
	Currency        string
	ProviderStatus  string
}

func (f DeliveryRefreshFields) toUpdates(now time.Time) map[string]interface{} {
	updates := map[string]interface{}{
		"updated_at": now,
	}
	setText := func(column, value string) {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			updates[column] = trimmed
		}
	}
	setText("order_number", f.OrderNumber)
	setText("customer_email", f.CustomerEmail)
	setText("customer_name", f.CustomerName)
	setText("delivery_address", f.DeliveryAddress)
	setText("delivery_city", f.DeliveryCity)
	setText("currency", f.Currency)
	setText("provider_status", f.ProviderStatus)
	if f.OrderValue != nil {
		updates["order_value"] = *f.OrderValue
	}
	return updates
}

// GormDeliveryRequestRepository GORM 实现
type GormDeliveryRequestRepository struct {
	db *gorm.DB
}

// NewDeliveryRequestRepository 创建配送请求仓库
func NewDeliveryRequestRepository(db *gorm.DB) *GormDeliveryRequestRepository {
	return &GormDeliveryRequestRepository{db: db}
}

// WithTx 绑定事务
func (r *GormDeliveryRequestRepository) WithTx(tx *gorm.DB) *GormDeliveryRequestRepository {
	if tx == nil {
		return r
	}
	return &GormDeliveryRequestRepository{db: tx}
}

// Transaction 执行事务
func (r *GormDeliveryRequestRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// GetByID 根据 ID 获取配送请求
func (r *GormDeliveryRequestRepository) GetByID(id string) (*models.DeliveryRequest, error) {
	var req models.DeliveryRequest
	if err := r.db.Where("id = ?", id).First(&req).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &req, nil
}

// GetByKey 根据幂等键获取配送请求
func (r *GormDeliveryRequestRepository) GetByKey(externalOrderID, externalSource string) (*models.DeliveryRequest, error) {
	var req models.DeliveryRequest
	err := r.db.Where("external_order_id = ? AND external_source = ?", externalOrderID, externalSource).First(&req).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &req, nil
}

// CreateIfAbsent 幂等插入，幂等键已存在时不做任何修改并返回 false
func (r *GormDeliveryRequestRepository) CreateIfAbsent(req *models.DeliveryRequest) (bool, error) {
	result := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "external_order_id"}, {Name: "external_source"}},
		DoNothing: true,
	}).Create(req)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// RefreshFields 刷新非身份字段，仅在非终态时生效
func (r *GormDeliveryRequestRepository) RefreshFields(externalOrderID, externalSource string, fields DeliveryRefreshFields) (int64, error) {
	result := r.db.Model(&models.DeliveryRequest{}).
		Where("external_order_id = ? AND external_source = ?", externalOrderID, externalSource).
		Where("status NOT IN ?", constants.TerminalDeliveryStatuses).
		Updates(fields.toUpdates(time.Now()))
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// MarkCompleted 非终态 -> completed
func (r *GormDeliveryRequestRepository) MarkCompleted(externalOrderID, externalSource string, at time.Time) (int64, error) {
	result := r.db.Model(&models.DeliveryRequest{}).
		Where("external_order_id = ? AND external_source = ?", externalOrderID, externalSource).
		Where("status NOT IN ?", constants.TerminalDeliveryStatuses).
		Updates(map[string]interface{}{
			"status":       constants.DeliveryStatusCompleted,
			"completed_at": at,
			"updated_at":   at,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// MarkCancelled 非终态 -> cancelled
func (r *GormDeliveryRequestRepository) MarkCancelled(externalOrderID, externalSource string, at time.Time) (int64, error) {
	result := r.db.Model(&models.DeliveryRequest{}).
		Where("external_order_id = ? AND external_source = ?", externalOrderID, externalSource).
		Where("status NOT IN ?", constants.TerminalDeliveryStatuses).
		Updates(map[string]interface{}{
			"status":       constants.DeliveryStatusCancelled,
			"cancelled_at": at,
			"updated_at":   at,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// AssignCourier 分配骑手，仅当尚未分配且仍为 pending 时生效
func (r *GormDeliveryRequestRepository) AssignCourier(id string, courierID uint, at time.Time) (int64, error) {
	result := r.db.Model(&models.DeliveryRequest{}).
		Where("id = ? AND courier_id IS NULL AND status = ?", id, constants.DeliveryStatusPending).
		Updates(map[string]interface{}{
			"courier_id":  courierID,
			"status":      constants.DeliveryStatusAssigned,
			"assigned_at": at,
			"updated_at":  at,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// ClaimReviewDispatch 领取评价邀请发送权，同一请求仅有一次成功
func (r *GormDeliveryRequestRepository) ClaimReviewDispatch(id, token string, at time.Time) (int64, error) {
	result := r.db.Model(&models.DeliveryRequest{}).
		Where("id = ? AND status = ? AND review_link_sent = ?", id, constants.DeliveryStatusCompleted, false).
		Updates(map[string]interface{}{
			"review_link_token":   token,
			"review_link_sent":    true,
			"review_link_sent_at": at,
			"updated_at":          at,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
