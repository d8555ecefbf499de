package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Performile1/Performile-Version-1-sub001/internal/config"
	"github.com/Performile1/Performile-Version-1-sub001/internal/constants"
	"github.com/Performile1/Performile-Version-1-sub001/internal/models"
	"github.com/Performile1/Performile-Version-1-sub001/internal/provider"
	"github.com/Performile1/Performile-Version-1-sub001/internal/webhook"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

const (
	routerTestPassword = "s3cret-pass"
	routerOrderBody    = `{"id":555,"name":"#1555","email":"buyer@example.com","total_price":"120.00","currency":"USD","shipping_address":{"address1":"1 Main St","city":"Springfield"}}`
)

type routerTestEnv struct {
	engine    *gin.Engine
	db        *gorm.DB
	cfg       *config.Config
	container *provider.Container
}

type envelope struct {
	StatusCode int             `json:"status_code"`
	Msg        string          `json:"msg"`
	Data       json.RawMessage `json:"data"`
	Pagination struct {
		Total int64 `json:"total"`
	} `json:"pagination"`
}

func newRouterTestConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Server.Mode = "debug"
	cfg.Webhook = config.WebhookConfig{
		MaxBodyBytes:    4096,
		LogPayloadLimit: 128,
		Providers: map[string]config.WebhookProviderConfig{
			constants.ProviderShopify: {Secret: "shopify-secret"},
		},
	}
	cfg.Review = config.ReviewConfig{BaseURL: "https://reviews.example.com/r"}
	cfg.Ops = config.OpsConfig{JWTSecret: "router-test-secret", ExpireHours: 1}
	cfg.Metrics = config.MetricsConfig{Enabled: true, Path: "/metrics"}
	return cfg
}

func setupRouterTest(t *testing.T, mutate func(cfg *config.Config)) *routerTestEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:router_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	cfg := newRouterTestConfig()
	if mutate != nil {
		mutate(cfg)
	}
	container := provider.NewContainerWithDB(cfg, db)
	for _, item := range []struct{ username, role string }{
		{username: "auditor", role: constants.OperatorRoleAuditor},
		{username: "operator", role: constants.OperatorRoleOperator},
	} {
		hash, err := container.AuthService.HashPassword(routerTestPassword)
		if err != nil {
			t.Fatalf("hash password failed: %v", err)
		}
		if err := container.OperatorRepo.Create(&models.Operator{
			Username:     item.username,
			PasswordHash: hash,
			Role:         item.role,
			IsActive:     true,
		}); err != nil {
			t.Fatalf("create operator failed: %v", err)
		}
	}
	return &routerTestEnv{
		engine:    SetupRouter(cfg, container),
		db:        db,
		cfg:       cfg,
		container: container,
	}
}

func (e *routerTestEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func (e *routerTestEnv) login(t *testing.T, username string) string {
	t.Helper()
	body := fmt.Sprintf(`{"username":%q,"password":%q}`, username, routerTestPassword)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ops/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := e.do(req)
	if w.Code != http.StatusOK {
		t.Fatalf("login %s failed: %d %s", username, w.Code, w.Body.String())
	}
	var resp envelope
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal login response failed: %v", err)
	}
	var data struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil || data.Token == "" {
		t.Fatalf("login response missing token: %s", w.Body.String())
	}
	return data.Token
}

func (e *routerTestEnv) authed(method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	return e.do(req)
}

func shopifyRequest(topic, body, secret string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/shopify", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(webhook.HeaderShopifyTopic, topic)
	req.Header.Set(webhook.HeaderShopifyDomain, "test.myshopify.com")
	req.Header.Set(webhook.HeaderShopifyHmac, webhook.Sign(constants.ProviderShopify, secret, []byte(body)))
	return req
}

func countEvents(t *testing.T, db *gorm.DB, status string) int64 {
	t.Helper()
	var total int64
	query := db.Model(&models.WebhookEvent{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.Count(&total).Error; err != nil {
		t.Fatalf("count events failed: %v", err)
	}
	return total
}

func TestWebhookEndpointCreatesDeliveryRequest(t *testing.T) {
	env := setupRouterTest(t, nil)

	w := env.do(shopifyRequest("orders/create", routerOrderBody, "shopify-secret"))
	if w.Code != http.StatusOK {
		t.Fatalf("status want 200 got %d body=%s", w.Code, w.Body.String())
	}
	var ack struct {
		Received bool   `json:"received"`
		Action   string `json:"action"`
		EventID  uint   `json:"event_id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &ack); err != nil {
		t.Fatalf("unmarshal ack failed: %v", err)
	}
	if !ack.Received || ack.Action != "create" || ack.EventID == 0 {
		t.Fatalf("unexpected ack: %+v", ack)
	}
	if w.Header().Get(requestIDHeader) == "" {
		t.Fatalf("response should carry request id")
	}

	var req models.DeliveryRequest
	if err := env.db.Where("external_order_id = ? AND external_source = ?", "555", "shopify:test.myshopify.com").First(&req).Error; err != nil {
		t.Fatalf("delivery request missing: %v", err)
	}
	if req.Status != constants.DeliveryStatusPending || req.OrderValue.String() != "120.00" {
		t.Fatalf("unexpected delivery request: %+v", req)
	}

	var event models.WebhookEvent
	if err := env.db.First(&event, ack.EventID).Error; err != nil {
		t.Fatalf("audit row missing: %v", err)
	}
	if event.RequestID == "" || event.RequestID != w.Header().Get(requestIDHeader) {
		t.Fatalf("audit row should carry request id, got %q", event.RequestID)
	}
}

func TestWebhookEndpointRejectsBadSignature(t *testing.T) {
	env := setupRouterTest(t, nil)

	w := env.do(shopifyRequest("orders/create", routerOrderBody, "wrong-secret"))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status want 401 got %d", w.Code)
	}
	var total int64
	if err := env.db.Model(&models.DeliveryRequest{}).Count(&total).Error; err != nil {
		t.Fatalf("count requests failed: %v", err)
	}
	if total != 0 {
		t.Fatalf("rejected webhook must not persist, got %d rows", total)
	}
	if countEvents(t, env.db, constants.WebhookEventStatusFailed) != 1 {
		t.Fatalf("rejected webhook must still be audited")
	}
}

func TestWebhookEndpointUnknownProviderAndIgnoredTopic(t *testing.T) {
	env := setupRouterTest(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/nope", strings.NewReader(`{}`))
	if w := env.do(req); w.Code != http.StatusNotFound {
		t.Fatalf("unknown provider want 404 got %d", w.Code)
	}

	w := env.do(shopifyRequest("products/update", `{"id":1}`, "shopify-secret"))
	if w.Code != http.StatusOK {
		t.Fatalf("ignored topic want 200 got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"action":"ignored"`) {
		t.Fatalf("ignored topic ack should report action, got %s", w.Body.String())
	}
	if countEvents(t, env.db, "") != 2 {
		t.Fatalf("every call must be audited")
	}
}

func TestWebhookEndpointBodyLimit(t *testing.T) {
	env := setupRouterTest(t, func(cfg *config.Config) {
		cfg.Webhook.MaxBodyBytes = 32
	})

	w := env.do(shopifyRequest("orders/create", routerOrderBody, "shopify-secret"))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("oversized body want 400 got %d", w.Code)
	}
	var event models.WebhookEvent
	if err := env.db.First(&event).Error; err != nil {
		t.Fatalf("oversized body should be audited: %v", err)
	}
	if event.Status != constants.WebhookEventStatusFailed || len(event.Payload) > 32 {
		t.Fatalf("unexpected audit row: status=%s payload_len=%d", event.Status, len(event.Payload))
	}
}

func TestOpsLoginRejectsBadPassword(t *testing.T) {
	env := setupRouterTest(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/ops/login", strings.NewReader(`{"username":"auditor","password":"nope"}`))
	req.Header.Set("Content-Type", "application/json")
	if w := env.do(req); w.Code != http.StatusUnauthorized {
		t.Fatalf("bad password want 401 got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/ops/login", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	if w := env.do(req); w.Code != http.StatusBadRequest {
		t.Fatalf("empty body want 400 got %d", w.Code)
	}
}

func TestOpsWebhookEventsRequireToken(t *testing.T) {
	env := setupRouterTest(t, nil)

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/ops/webhook-events", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("missing token want 401 got %d", w.Code)
	}
	w = env.authed(http.MethodGet, "/api/v1/ops/webhook-events", "not-a-jwt")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("invalid token want 401 got %d", w.Code)
	}
}

func TestOpsListAndGetWebhookEvents(t *testing.T) {
	env := setupRouterTest(t, nil)
	env.do(shopifyRequest("orders/create", routerOrderBody, "shopify-secret"))
	env.do(shopifyRequest("orders/create", routerOrderBody, "wrong-secret"))

	token := env.login(t, "auditor")
	w := env.authed(http.MethodGet, "/api/v1/ops/webhook-events?provider=shopify&status=failed", token)
	if w.Code != http.StatusOK {
		t.Fatalf("list want 200 got %d body=%s", w.Code, w.Body.String())
	}
	var list envelope
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("unmarshal list failed: %v", err)
	}
	if list.Pagination.Total != 1 {
		t.Fatalf("filtered total want 1 got %d", list.Pagination.Total)
	}
	var events []models.WebhookEvent
	if err := json.Unmarshal(list.Data, &events); err != nil || len(events) != 1 {
		t.Fatalf("unexpected list data: %s", string(list.Data))
	}

	w = env.authed(http.MethodGet, fmt.Sprintf("/api/v1/ops/webhook-events/%d", events[0].ID), token)
	if w.Code != http.StatusOK {
		t.Fatalf("get want 200 got %d", w.Code)
	}
	w = env.authed(http.MethodGet, "/api/v1/ops/webhook-events/9999", token)
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing event want 404 got %d", w.Code)
	}
	w = env.authed(http.MethodGet, "/api/v1/ops/webhook-events?from=yesterday", token)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad from want 400 got %d", w.Code)
	}

	w = env.authed(http.MethodGet, "/api/v1/ops/webhook-events/stats", token)
	if w.Code != http.StatusOK {
		t.Fatalf("stats want 200 got %d", w.Code)
	}
	var stats envelope
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("unmarshal stats failed: %v", err)
	}
	var counts map[string]int64
	if err := json.Unmarshal(stats.Data, &counts); err != nil {
		t.Fatalf("unmarshal stats data failed: %v", err)
	}
	if counts[constants.WebhookEventStatusSuccess] != 1 || counts[constants.WebhookEventStatusFailed] != 1 {
		t.Fatalf("unexpected stats: %+v", counts)
	}
}

func TestOpsReplayRequiresOperatorRole(t *testing.T) {
	env := setupRouterTest(t, nil)
	errorEvent := models.WebhookEvent{
		Provider:   constants.ProviderShopify,
		EventType:  "orders/create",
		Payload:    routerOrderBody,
		Headers:    models.JSON{webhook.HeaderShopifyDomain: "test.myshopify.com", webhook.HeaderShopifyTopic: "orders/create"},
		Status:     constants.WebhookEventStatusError,
		HTTPStatus: http.StatusInternalServerError,
		ReceivedAt: time.Now(),
	}
	if err := env.db.Create(&errorEvent).Error; err != nil {
		t.Fatalf("seed error event failed: %v", err)
	}
	replayPath := fmt.Sprintf("/api/v1/ops/webhook-events/%d/replay", errorEvent.ID)

	auditorToken := env.login(t, "auditor")
	if w := env.authed(http.MethodPost, replayPath, auditorToken); w.Code != http.StatusForbidden {
		t.Fatalf("auditor replay want 403 got %d", w.Code)
	}

	operatorToken := env.login(t, "operator")
	w := env.authed(http.MethodPost, replayPath, operatorToken)
	if w.Code != http.StatusOK {
		t.Fatalf("operator replay want 200 got %d body=%s", w.Code, w.Body.String())
	}
	var resp envelope
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal replay failed: %v", err)
	}
	var data struct {
		HTTPStatus int `json:"http_status"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil || data.HTTPStatus != http.StatusOK {
		t.Fatalf("replay should succeed, got %s", string(resp.Data))
	}

	var replayed models.WebhookEvent
	if err := env.db.Where("replay_of = ?", errorEvent.ID).First(&replayed).Error; err != nil {
		t.Fatalf("replay audit row missing: %v", err)
	}
	if replayed.Status != constants.WebhookEventStatusSuccess {
		t.Fatalf("replay row status want success got %s", replayed.Status)
	}

	// 成功记录不可重放
	successPath := fmt.Sprintf("/api/v1/ops/webhook-events/%d/replay", replayed.ID)
	if w := env.authed(http.MethodPost, successPath, operatorToken); w.Code != http.StatusConflict {
		t.Fatalf("replay of success row want 409 got %d", w.Code)
	}
	if w := env.authed(http.MethodPost, "/api/v1/ops/webhook-events/9999/replay", operatorToken); w.Code != http.StatusNotFound {
		t.Fatalf("replay of missing row want 404 got %d", w.Code)
	}
}

func TestOpsReminderSweepRunsInlineWithoutQueue(t *testing.T) {
	env := setupRouterTest(t, nil)
	orphan := models.ReminderTask{
		RequestID:    "missing-request",
		ScheduledFor: time.Now().Add(-time.Minute),
		Status:       constants.ReminderStatusPending,
	}
	if err := env.db.Create(&orphan).Error; err != nil {
		t.Fatalf("seed reminder failed: %v", err)
	}

	auditorToken := env.login(t, "auditor")
	if w := env.authed(http.MethodPost, "/api/v1/ops/reminders/sweep", auditorToken); w.Code != http.StatusForbidden {
		t.Fatalf("auditor sweep want 403 got %d", w.Code)
	}

	operatorToken := env.login(t, "operator")
	w := env.authed(http.MethodPost, "/api/v1/ops/reminders/sweep", operatorToken)
	if w.Code != http.StatusOK {
		t.Fatalf("operator sweep want 200 got %d body=%s", w.Code, w.Body.String())
	}
	var resp envelope
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal sweep failed: %v", err)
	}
	var data struct {
		Mode   string `json:"mode"`
		Result struct {
			Claimed   int `json:"claimed"`
			Cancelled int `json:"cancelled"`
		} `json:"result"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		t.Fatalf("unmarshal sweep data failed: %v", err)
	}
	if data.Mode != "inline" || data.Result.Claimed != 1 || data.Result.Cancelled != 1 {
		t.Fatalf("unexpected sweep result: %s", string(resp.Data))
	}

	var stored models.ReminderTask
	if err := env.db.First(&stored, orphan.ID).Error; err != nil {
		t.Fatalf("load reminder failed: %v", err)
	}
	if stored.Status != constants.ReminderStatusCancelled {
		t.Fatalf("orphan reminder want cancelled got %s", stored.Status)
	}
}

func TestOpsTokenRevokedWhenOperatorDisabled(t *testing.T) {
	env := setupRouterTest(t, nil)
	token := env.login(t, "auditor")
	if w := env.authed(http.MethodGet, "/api/v1/ops/me", token); w.Code != http.StatusOK {
		t.Fatalf("me want 200 got %d", w.Code)
	}
	if err := env.db.Model(&models.Operator{}).Where("username = ?", "auditor").Update("is_active", false).Error; err != nil {
		t.Fatalf("disable operator failed: %v", err)
	}
	if w := env.authed(http.MethodGet, "/api/v1/ops/me", token); w.Code != http.StatusUnauthorized {
		t.Fatalf("disabled operator want 401 got %d", w.Code)
	}
}

func TestOpsPermissionCatalog(t *testing.T) {
	env := setupRouterTest(t, nil)
	items := buildOpsPermissionCatalog(env.engine)
	seen := map[string]string{}
	for _, item := range items {
		seen[item.Permission] = item.Module
	}
	if seen["POST:/ops/webhook-events/:id/replay"] != "webhook-events" {
		t.Fatalf("catalog missing replay permission: %+v", items)
	}
	if seen["POST:/ops/reminders/sweep"] != "reminders" {
		t.Fatalf("catalog missing sweep permission: %+v", items)
	}
	if _, ok := seen["POST:/ops/login"]; ok {
		t.Fatalf("login must not appear in the catalog")
	}
}

func TestHealthAndMetrics(t *testing.T) {
	env := setupRouterTest(t, nil)

	w := env.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"ok"`) {
		t.Fatalf("health want 200 ok got %d %s", w.Code, w.Body.String())
	}

	env.do(shopifyRequest("orders/create", routerOrderBody, "shopify-secret"))
	w = env.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("metrics want 200 got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "webhook_events_total") {
		t.Fatalf("metrics output should include webhook_events_total")
	}
}
