package ingest

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	handlershared "github.com/Performile1/Performile-Version-1-sub001/internal/http/handlers/shared"
	"github.com/Performile1/Performile-Version-1-sub001/internal/service"
	"github.com/Performile1/Performile-Version-1-sub001/internal/webhook"

	"github.com/gin-gonic/gin"
)

const defaultMaxBodyBytes int64 = 1 << 20

// WebhookAck 返回给提供方的确认体
type WebhookAck struct {
	Received  bool   `json:"received"`
	Action    string `json:"action,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	EventID   uint   `json:"event_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// ReceiveWebhook 接收提供方推送：POST /api/v1/webhooks/:provider
// 响应状态码即提供方的重试信号，4xx 不重试，5xx 重试
func (h *Handler) ReceiveWebhook(c *gin.Context) {
	in := webhook.Inbound{
		Provider:  strings.ToLower(strings.TrimSpace(c.Param("provider"))),
		Topic:     strings.TrimSpace(c.Query("topic")),
		Headers:   c.Request.Header.Clone(),
		RequestID: handlershared.RequestID(c),
	}

	body, err := readLimitedBody(c, h.maxBodyBytes())
	if err != nil {
		in.Body = body
		outcome := h.WebhookService.Reject(c.Request.Context(), in, err)
		respondOutcome(c, outcome)
		return
	}
	in.Body = body

	outcome := h.WebhookService.Process(c.Request.Context(), in)
	respondOutcome(c, outcome)
}

func (h *Handler) maxBodyBytes() int64 {
	if h.Config == nil || h.Config.Webhook.MaxBodyBytes <= 0 {
		return defaultMaxBodyBytes
	}
	return h.Config.Webhook.MaxBodyBytes
}

// readLimitedBody 读取原始报文，超限时返回已读取的部分用于审计
func readLimitedBody(c *gin.Context, limit int64) ([]byte, error) {
	if c.Request.Body == nil {
		return nil, nil
	}
	reader := http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	body, err := io.ReadAll(reader)
	if err == nil {
		return body, nil
	}
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return body, fmt.Errorf("%w: body exceeds %d bytes", webhook.ErrMalformedPayload, limit)
	}
	return body, fmt.Errorf("%w: read body: %v", webhook.ErrMalformedPayload, err)
}

func respondOutcome(c *gin.Context, outcome *service.WebhookOutcome) {
	status := http.StatusInternalServerError
	ack := WebhookAck{RequestID: handlershared.RequestID(c)}
	if outcome != nil {
		status = outcome.HTTPStatus
		ack.Action = string(outcome.Action)
		if outcome.Event != nil {
			ack.EventID = outcome.Event.ID
		}
		// 内部错误不向提供方暴露细节
		if outcome.Err != nil && status < http.StatusInternalServerError && status >= http.StatusBadRequest {
			ack.Error = outcome.Err.Error()
		}
	}
	ack.Received = status < http.StatusBadRequest
	if status >= http.StatusInternalServerError {
		ack.Error = "internal error"
	}
	c.JSON(status, ack)
}
