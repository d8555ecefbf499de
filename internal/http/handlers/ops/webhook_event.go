package ops

import (
	"errors"
	"strconv"
	"strings"
	"time"

	handlershared "github.com/Performile1/Performile-Version-1-sub001/internal/http/handlers/shared"
	"github.com/Performile1/Performile-Version-1-sub001/internal/http/response"
	"github.com/Performile1/Performile-Version-1-sub001/internal/repository"
	"github.com/Performile1/Performile-Version-1-sub001/internal/service"

	"github.com/gin-gonic/gin"
)

// WebhookEventListQuery 审计日志查询参数
type WebhookEventListQuery struct {
	Page      int    `form:"page"`
	PageSize  int    `form:"page_size"`
	Provider  string `form:"provider"`
	Status    string `form:"status"`
	EventType string `form:"event_type"`
	Source    string `form:"source"`
	Keyword   string `form:"keyword"`
	From      string `form:"from"`
	To        string `form:"to"`
}

// ListWebhookEvents 查询审计日志
func (h *Handler) ListWebhookEvents(c *gin.Context) {
	var query WebhookEventListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondError(c, response.CodeBadRequest, "invalid query", err)
		return
	}
	page, pageSize := handlershared.NormalizePagination(query.Page, query.PageSize)
	from, err := parseTimeParam(query.From)
	if err != nil {
		respondError(c, response.CodeBadRequest, "invalid from, want RFC3339 or YYYY-MM-DD", nil)
		return
	}
	to, err := parseTimeParam(query.To)
	if err != nil {
		respondError(c, response.CodeBadRequest, "invalid to, want RFC3339 or YYYY-MM-DD", nil)
		return
	}

	events, total, err := h.AuditService.List(repository.WebhookEventListFilter{
		Page:         page,
		PageSize:     pageSize,
		Provider:     query.Provider,
		Status:       query.Status,
		EventType:    query.EventType,
		Source:       query.Source,
		Keyword:      query.Keyword,
		ReceivedFrom: from,
		ReceivedTo:   to,
	})
	if err != nil {
		respondError(c, response.CodeInternal, "list webhook events failed", err)
		return
	}

	response.SuccessWithPage(c, events, response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: handlershared.TotalPages(total, pageSize),
	})
}

// GetWebhookEvent 查询单条审计记录
func (h *Handler) GetWebhookEvent(c *gin.Context) {
	id, ok := parseEventID(c)
	if !ok {
		return
	}
	event, err := h.AuditService.Get(id)
	if err != nil {
		if errors.Is(err, service.ErrEventNotFound) {
			respondError(c, response.CodeNotFound, "webhook event not found", nil)
			return
		}
		respondError(c, response.CodeInternal, "get webhook event failed", err)
		return
	}
	response.Success(c, event)
}

// WebhookEventStats 按状态统计审计记录
func (h *Handler) WebhookEventStats(c *gin.Context) {
	stats, err := h.AuditService.CountByStatus(c.Query("provider"))
	if err != nil {
		respondError(c, response.CodeInternal, "count webhook events failed", err)
		return
	}
	response.Success(c, stats)
}

// ReplayWebhookEvent 重放一条处理出错的审计记录
func (h *Handler) ReplayWebhookEvent(c *gin.Context) {
	id, ok := parseEventID(c)
	if !ok {
		return
	}
	operatorID, ok := getOperatorID(c)
	if !ok {
		return
	}

	outcome, err := h.WebhookService.Replay(c.Request.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEventNotFound):
			respondError(c, response.CodeNotFound, "webhook event not found", nil)
		case errors.Is(err, service.ErrReplayNotAllowed):
			respondError(c, response.CodeConflict, "only events in error status can be replayed", nil)
		default:
			respondError(c, response.CodeInternal, "replay webhook event failed", err)
		}
		return
	}

	requestLog(c).Infow("ops_webhook_event_replayed",
		"operator_id", operatorID,
		"event_id", id,
		"http_status", outcome.HTTPStatus,
	)
	data := gin.H{
		"original_event_id": id,
		"http_status":       outcome.HTTPStatus,
		"action":            string(outcome.Action),
		"event":             outcome.Event,
	}
	if outcome.Err != nil {
		data["error"] = outcome.Err.Error()
	}
	response.Success(c, data)
}

func parseEventID(c *gin.Context) (uint, bool) {
	raw := strings.TrimSpace(c.Param("id"))
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "invalid event id", nil)
		return 0, false
	}
	return uint(id), true
}

func parseTimeParam(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
		return &parsed, nil
	}
	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}
