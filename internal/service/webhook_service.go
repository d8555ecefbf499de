package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Performile1/Performile-Version-1-sub001/internal/config"
	"github.com/Performile1/Performile-Version-1-sub001/internal/constants"
	"github.com/Performile1/Performile-Version-1-sub001/internal/logger"
	"github.com/Performile1/Performile-Version-1-sub001/internal/metrics"
	"github.com/Performile1/Performile-Version-1-sub001/internal/models"
	"github.com/Performile1/Performile-Version-1-sub001/internal/repository"
	"github.com/Performile1/Performile-Version-1-sub001/internal/webhook"
)

// WebhookOutcome 单次入站处理结果
type WebhookOutcome struct {
	HTTPStatus int
	Action     webhook.Action
	Order      *webhook.NormalizedOrder
	Result     *ApplyResult
	Event      *models.WebhookEvent
	Err        error
}

// WebhookService 入站 webhook 处理
// 顺序：验签 -> 路由 -> 规范化 -> 状态机 -> 审计，每次调用恰好写一条审计记录
type WebhookService struct {
	cfg       *config.Config
	registry  *webhook.Registry
	router    *webhook.Router
	verifier  *webhook.Verifier
	shopRepo  repository.ShopRepository
	lifecycle *LifecycleService
	audit     *AuditService
	now       func() time.Time
}

// NewWebhookService 创建 webhook 处理服务
func NewWebhookService(
	cfg *config.Config,
	registry *webhook.Registry,
	router *webhook.Router,
	verifier *webhook.Verifier,
	shopRepo repository.ShopRepository,
	lifecycle *LifecycleService,
	audit *AuditService,
) *WebhookService {
	if registry == nil {
		registry = webhook.NewRegistry()
	}
	if router == nil {
		router = webhook.NewRouter()
	}
	if verifier == nil {
		var webhookCfg config.WebhookConfig
		if cfg != nil {
			webhookCfg = cfg.Webhook
		}
		verifier = webhook.NewVerifier(webhookCfg.StripeTolerance())
	}
	return &WebhookService{
		cfg:       cfg,
		registry:  registry,
		router:    router,
		verifier:  verifier,
		shopRepo:  shopRepo,
		lifecycle: lifecycle,
		audit:     audit,
		now:       time.Now,
	}
}

// StatusForError 将处理错误映射为返回给提供方的状态码
// 4xx 表示提供方不应重试，5xx 触发提供方重试
func StatusForError(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, webhook.ErrSignatureInvalid), errors.Is(err, webhook.ErrSecretMissing):
		return http.StatusUnauthorized
	case errors.Is(err, webhook.ErrUnknownProvider):
		return http.StatusNotFound
	case errors.Is(err, webhook.ErrUnsupportedTopic):
		return http.StatusOK
	case errors.Is(err, webhook.ErrMalformedPayload):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// AuditStatusFor 由状态码得到审计状态
func AuditStatusFor(httpStatus int) string {
	switch {
	case httpStatus >= http.StatusInternalServerError:
		return constants.WebhookEventStatusError
	case httpStatus >= http.StatusBadRequest:
		return constants.WebhookEventStatusFailed
	default:
		return constants.WebhookEventStatusSuccess
	}
}

// Process 处理一次入站 webhook
func (s *WebhookService) Process(ctx context.Context, in webhook.Inbound) *WebhookOutcome {
	started := s.now()
	if in.ReceivedAt.IsZero() {
		in.ReceivedAt = started
	}
	event := s.newEvent(in)
	outcome := s.handle(ctx, in, event, true)
	return s.finish(in, event, outcome, started)
}

// Reject 记录在读取阶段就被拒绝的请求（如报文超限）
func (s *WebhookService) Reject(ctx context.Context, in webhook.Inbound, cause error) *WebhookOutcome {
	started := s.now()
	if in.ReceivedAt.IsZero() {
		in.ReceivedAt = started
	}
	event := s.newEvent(in)
	// 读取阶段被拒绝的报文可能不完整且超限，只保留截断后的片段
	event.Payload = logger.Truncate(event.Payload, s.payloadLimit())
	outcome := &WebhookOutcome{Err: cause}
	if adapter, err := s.registry.Lookup(in.Provider); err == nil {
		event.Source = adapter.SourceHint(in)
	}
	return s.finish(in, event, outcome, started)
}

// Replay 重新处理一条失败的审计记录
// 原始记录来自线上请求，重放不再验签；原记录保持不变，结果写入新的审计记录
func (s *WebhookService) Replay(ctx context.Context, eventID uint) (*WebhookOutcome, error) {
	original, err := s.audit.Get(eventID)
	if err != nil {
		return nil, err
	}
	if original.Status != constants.WebhookEventStatusError {
		return nil, fmt.Errorf("%w: event %d status=%s", ErrReplayNotAllowed, eventID, original.Status)
	}
	started := s.now()
	in := webhook.Inbound{
		Provider:   original.Provider,
		Topic:      original.EventType,
		Headers:    DecodeHeaders(original.Headers),
		Body:       []byte(original.Payload),
		RequestID:  original.RequestID,
		ReceivedAt: started,
	}
	event := s.newEvent(in)
	replayOf := original.ID
	event.ReplayOf = &replayOf
	outcome := s.handle(ctx, in, event, false)
	logger.Infow("webhook_replayed",
		"original_event_id", original.ID,
		"provider", original.Provider,
		"http_status", outcome.HTTPStatus,
	)
	return s.finish(in, event, outcome, started), nil
}

func (s *WebhookService) handle(ctx context.Context, in webhook.Inbound, event *models.WebhookEvent, verify bool) *WebhookOutcome {
	outcome := &WebhookOutcome{}
	adapter, err := s.registry.Lookup(in.Provider)
	if err != nil {
		outcome.Err = err
		return outcome
	}
	event.Source = adapter.SourceHint(in)

	// shop 为验签所用密钥所属的店铺，nil 表示提供方级密钥
	var shop *models.Shop
	if verify {
		var secret string
		secret, shop = s.resolveSecret(adapter, in)
		if err := s.verifier.VerifyRequest(adapter, in, secret); err != nil {
			logger.Warnw("webhook_signature_invalid",
				"provider", adapter.Provider(),
				"source", event.Source,
				"request_id", in.RequestID,
				"error", err,
			)
			outcome.Err = err
			return outcome
		}
	}

	payload, err := webhook.DecodePayload(in.Body)
	if err != nil {
		outcome.Err = err
		return outcome
	}

	topic := adapter.ResolveTopic(in, payload)
	event.EventType = topic
	route, ok := s.router.Route(adapter.Provider(), topic)
	if !ok {
		outcome.Action = webhook.ActionIgnore
		outcome.Err = fmt.Errorf("%w: %s/%s", webhook.ErrUnsupportedTopic, adapter.Provider(), topic)
		logger.Infow("webhook_topic_ignored", "provider", adapter.Provider(), "topic", topic)
		return outcome
	}

	order, err := webhook.Normalize(adapter, in, payload)
	if err != nil {
		outcome.Err = err
		return outcome
	}
	outcome.Order = order
	event.Source = order.ExternalSource
	if verify {
		if err := s.authorizeSource(adapter, order, shop); err != nil {
			logger.Warnw("webhook_source_not_authorized",
				"provider", adapter.Provider(),
				"source", order.ExternalSource,
				"request_id", in.RequestID,
				"error", err,
			)
			outcome.Err = err
			return outcome
		}
	}
	outcome.Action = route.Resolve(order)

	result, err := s.lifecycle.Apply(ctx, order, outcome.Action)
	if err != nil {
		outcome.Err = err
		return outcome
	}
	outcome.Result = result
	if result != nil && result.Request != nil {
		requestID := result.Request.ID
		event.DeliveryRequestID = &requestID
	}
	return outcome
}

// resolveSecret 店铺级密钥优先，其次为提供方级密钥；均缺失时返回空串由验签拒绝
// 使用店铺密钥时同时返回该店铺，后续据此限定可写入的幂等来源
func (s *WebhookService) resolveSecret(adapter webhook.Adapter, in webhook.Inbound) (string, *models.Shop) {
	if hint := adapter.SourceHint(in); hint != "" && s.shopRepo != nil {
		shop, err := s.shopRepo.GetByProviderDomain(adapter.Provider(), hint)
		if err != nil {
			logger.Warnw("webhook_shop_lookup_failed", "provider", adapter.Provider(), "source", hint, "error", err)
		} else if shop != nil && strings.TrimSpace(shop.WebhookSecret) != "" {
			return shop.WebhookSecret, shop
		}
	}
	if s.cfg == nil {
		return "", nil
	}
	return s.cfg.Webhook.ProviderSecret(adapter.Provider()), nil
}

// authorizeSource 幂等来源必须落在验签密钥的范围内
// 店铺密钥只覆盖该店铺；提供方级密钥只覆盖同一提供方下未配置独立密钥的店铺
func (s *WebhookService) authorizeSource(adapter webhook.Adapter, order *webhook.NormalizedOrder, shop *models.Shop) error {
	if shop != nil {
		if want := models.BuildExternalSource(adapter.Provider(), shop.Domain); order.ExternalSource != want {
			return fmt.Errorf("%w: source %s is not covered by the secret of %s", webhook.ErrSignatureInvalid, order.ExternalSource, want)
		}
		return nil
	}
	provider, identity, _ := models.SplitExternalSource(order.ExternalSource)
	if provider != adapter.Provider() {
		return fmt.Errorf("%w: source %s is outside provider %s", webhook.ErrSignatureInvalid, order.ExternalSource, adapter.Provider())
	}
	if s.shopRepo == nil {
		return nil
	}
	owner, err := s.shopRepo.GetByProviderDomain(provider, identity)
	if err != nil {
		return fmt.Errorf("resolve shop for %s: %w", order.ExternalSource, err)
	}
	if owner != nil && strings.TrimSpace(owner.WebhookSecret) != "" {
		return fmt.Errorf("%w: source %s requires its shop secret", webhook.ErrSignatureInvalid, order.ExternalSource)
	}
	return nil
}

func (s *WebhookService) newEvent(in webhook.Inbound) *models.WebhookEvent {
	return &models.WebhookEvent{
		Provider:   strings.ToLower(strings.TrimSpace(in.Provider)),
		Payload:    string(in.Body),
		Headers:    EncodeHeaders(in.Headers),
		RequestID:  in.RequestID,
		ReceivedAt: in.ReceivedAt,
	}
}

func (s *WebhookService) finish(in webhook.Inbound, event *models.WebhookEvent, outcome *WebhookOutcome, started time.Time) *WebhookOutcome {
	outcome.HTTPStatus = StatusForError(outcome.Err)
	event.HTTPStatus = outcome.HTTPStatus
	event.Status = AuditStatusFor(outcome.HTTPStatus)
	event.TopicAction = string(outcome.Action)
	if outcome.Err != nil {
		event.ErrorMessage = outcome.Err.Error()
	}

	if err := s.audit.Record(event); err != nil {
		// 审计写入失败时按服务端错误返回，促使提供方重试
		logger.Errorw("webhook_audit_write_failed",
			"provider", event.Provider,
			"request_id", in.RequestID,
			"error", err,
		)
		if outcome.Err == nil || outcome.HTTPStatus < http.StatusInternalServerError {
			outcome.Err = fmt.Errorf("record webhook audit: %w", err)
			outcome.HTTPStatus = http.StatusInternalServerError
		}
	}
	outcome.Event = event

	metrics.ObserveWebhook(event.Provider, event.Status, started)
	s.logOutcome(in, event, outcome)
	return outcome
}

func (s *WebhookService) logOutcome(in webhook.Inbound, event *models.WebhookEvent, outcome *WebhookOutcome) {
	kv := []interface{}{
		"provider", event.Provider,
		"event_type", event.EventType,
		"source", event.Source,
		"action", event.TopicAction,
		"http_status", outcome.HTTPStatus,
		"request_id", in.RequestID,
	}
	switch event.Status {
	case constants.WebhookEventStatusError:
		kv = append(kv, "error", outcome.Err, "payload", logger.Truncate(event.Payload, s.payloadLimit()))
		logger.Errorw("webhook_processing_error", kv...)
	case constants.WebhookEventStatusFailed:
		kv = append(kv, "error", outcome.Err, "payload", logger.Truncate(event.Payload, s.payloadLimit()))
		logger.Warnw("webhook_rejected", kv...)
	default:
		logger.Infow("webhook_processed", kv...)
	}
}

func (s *WebhookService) payloadLimit() int {
	if s.cfg == nil {
		return 0
	}
	return s.cfg.Webhook.LogPayloadLimit
}
