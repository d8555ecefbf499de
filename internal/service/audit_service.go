package service

import (
	"net/http"
	"strings"

	"github.com/Performile1/Performile-Version-1-sub001/internal/models"
	"github.com/Performile1/Performile-Version-1-sub001/internal/repository"
)

// 不写入审计日志的请求头
var auditSkippedHeaders = map[string]struct{}{
	"Authorization": {},
	"Cookie":        {},
	"Set-Cookie":    {},
}

// AuditService webhook 审计日志
type AuditService struct {
	repo repository.WebhookEventRepository
}

// NewAuditService 创建审计服务
func NewAuditService(repo repository.WebhookEventRepository) *AuditService {
	return &AuditService{repo: repo}
}

// Record 追加一条审计记录
func (s *AuditService) Record(event *models.WebhookEvent) error {
	if event == nil {
		return nil
	}
	return s.repo.Create(event)
}

// List 分页查询审计记录
func (s *AuditService) List(filter repository.WebhookEventListFilter) ([]models.WebhookEvent, int64, error) {
	return s.repo.List(filter)
}

// Get 获取单条审计记录
func (s *AuditService) Get(id uint) (*models.WebhookEvent, error) {
	event, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, ErrEventNotFound
	}
	return event, nil
}

// CountByStatus 按状态统计
func (s *AuditService) CountByStatus(provider string) (map[string]int64, error) {
	return s.repo.CountByStatus(provider)
}

// EncodeHeaders 将请求头压缩为审计列，每个键保留首个值
func EncodeHeaders(headers http.Header) models.JSON {
	result := models.JSON{}
	for key, values := range headers {
		canonical := http.CanonicalHeaderKey(key)
		if _, skip := auditSkippedHeaders[canonical]; skip || len(values) == 0 {
			continue
		}
		result[canonical] = values[0]
	}
	return result
}

// DecodeHeaders 从审计列还原请求头
func DecodeHeaders(stored models.JSON) http.Header {
	headers := http.Header{}
	for key := range stored {
		if text := stored.String(key); strings.TrimSpace(text) != "" {
			headers.Set(key, text)
		}
	}
	return headers
}
