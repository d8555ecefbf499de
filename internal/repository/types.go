package repository

import "time"

// WebhookEventListFilter 审计日志查询条件
type WebhookEventListFilter struct {
	Page         int
	PageSize     int
	Provider     string
	Status       string
	EventType    string
	Source       string
	Keyword      string
	ReceivedFrom *time.Time
	ReceivedTo   *time.Time
}

// CourierCandidateFilter 骑手候选查询条件
type CourierCandidateFilter struct {
	City  string
	Limit int
}
