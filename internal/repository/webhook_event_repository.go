package repository

import (
	"errors"
	"strings"

	"github.com/Performile1/Performile-Version-1-sub001/internal/models"

	"gorm.io/gorm"
)

// WebhookEventRepository 审计日志数据访问接口（只追加）
type WebhookEventRepository interface {
	Create(event *models.WebhookEvent) error
	GetByID(id uint) (*models.WebhookEvent, error)
	List(filter WebhookEventListFilter) ([]models.WebhookEvent, int64, error)
	CountByStatus(provider string) (map[string]int64, error)
}

// GormWebhookEventRepository GORM 实现
type GormWebhookEventRepository struct {
	db *gorm.DB
}

// NewWebhookEventRepository 创建审计日志仓库
func NewWebhookEventRepository(db *gorm.DB) *GormWebhookEventRepository {
	return &GormWebhookEventRepository{db: db}
}

// Create 追加一条审计记录
func (r *GormWebhookEventRepository) Create(event *models.WebhookEvent) error {
	return r.db.Create(event).Error
}

// GetByID 根据 ID 获取审计记录
func (r *GormWebhookEventRepository) GetByID(id uint) (*models.WebhookEvent, error) {
	var event models.WebhookEvent
	if err := r.db.First(&event, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &event, nil
}

// List 分页查询审计记录
func (r *GormWebhookEventRepository) List(filter WebhookEventListFilter) ([]models.WebhookEvent, int64, error) {
	query := r.db.Model(&models.WebhookEvent{})

	if provider := strings.TrimSpace(filter.Provider); provider != "" {
		query = query.Where("provider = ?", strings.ToLower(provider))
	}
	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("status = ?", strings.ToLower(status))
	}
	if eventType := strings.TrimSpace(filter.EventType); eventType != "" {
		query = query.Where("event_type = ?", eventType)
	}
	if source := strings.TrimSpace(filter.Source); source != "" {
		query = query.Where("source = ?", source)
	}
	if keyword := strings.TrimSpace(filter.Keyword); keyword != "" {
		condition, args := keywordFilter(isPostgres(r.db), keyword, "error_message", "payload")
		query = query.Where(condition, args...)
	}
	if filter.ReceivedFrom != nil {
		query = query.Where("received_at >= ?", *filter.ReceivedFrom)
	}
	if filter.ReceivedTo != nil {
		query = query.Where("received_at <= ?", *filter.ReceivedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)

	var events []models.WebhookEvent
	if err := query.Order("id desc").Find(&events).Error; err != nil {
		return nil, 0, err
	}
	return events, total, nil
}

// CountByStatus 按状态统计审计记录数量，provider 为空时统计全部
func (r *GormWebhookEventRepository) CountByStatus(provider string) (map[string]int64, error) {
	type row struct {
		Status string
		Total  int64
	}
	query := r.db.Model(&models.WebhookEvent{}).Select("status, COUNT(*) AS total").Group("status")
	if trimmed := strings.TrimSpace(provider); trimmed != "" {
		query = query.Where("provider = ?", strings.ToLower(trimmed))
	}
	var rows []row
	if err := query.Scan(&rows).Error; err != nil {
		return nil, err
	}
	result := make(map[string]int64, len(rows))
	for _, item := range rows {
		result[item.Status] = item.Total
	}
	return result, nil
}
