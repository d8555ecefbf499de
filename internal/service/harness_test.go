package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Performile1/Performile-Version-1-sub001/internal/config"
	"github.com/Performile1/Performile-Version-1-sub001/internal/constants"
	"github.com/Performile1/Performile-Version-1-sub001/internal/models"
	"github.com/Performile1/Performile-Version-1-sub001/internal/repository"
	"github.com/Performile1/Performile-Version-1-sub001/internal/webhook"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type courierNotifierStub struct {
	mu      sync.Mutex
	notices []AssignmentNotice
	err     error
}

func (s *courierNotifierStub) NotifyAssignment(_ context.Context, notice AssignmentNotice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notices = append(s.notices, notice)
	return s.err
}

func (s *courierNotifierStub) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.notices)
}

type serviceHarness struct {
	db           *gorm.DB
	cfg          *config.Config
	requestRepo  *repository.GormDeliveryRequestRepository
	courierRepo  *repository.GormCourierRepository
	shopRepo     *repository.GormShopRepository
	reminderRepo *repository.GormReminderTaskRepository
	eventRepo    *repository.GormWebhookEventRepository
	email        *emailDispatcherStub
	notifier     *courierNotifierStub
	assignment   *AssignmentService
	review       *ReviewScheduler
	lifecycle    *LifecycleService
	reminders    *ReminderService
	audit        *AuditService
	webhooks     *WebhookService
}

func newServiceTestConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Webhook = config.WebhookConfig{
		MaxBodyBytes:           1 << 20,
		LogPayloadLimit:        256,
		StripeToleranceSeconds: 300,
		Providers: map[string]config.WebhookProviderConfig{
			constants.ProviderShopify:  {Secret: "shopify-secret"},
			constants.ProviderExternal: {Secret: "external-secret"},
		},
	}
	cfg.Review = config.ReviewConfig{
		BaseURL:            "https://reviews.example.com/r/",
		ReminderDelayHours: 168,
		SweepBatchSize:     10,
		ClaimLeaseSeconds:  300,
		MaxAttempts:        2,
	}
	cfg.Assignment = config.AssignmentConfig{Enabled: true, CandidateLimit: 5}
	return cfg
}

func openServiceTestDB(t *testing.T, name string) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db failed: %v", err)
	}
	// 单连接串行化写入，避免 shared cache 下的表锁错误
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	return db
}

func setupServiceHarness(t *testing.T) *serviceHarness {
	t.Helper()
	db := openServiceTestDB(t, "service")
	return buildServiceHarness(db, repository.NewDeliveryRequestRepository(db))
}

// buildServiceHarness 允许替换配送请求仓库，用于注入冲突或故障
func buildServiceHarness(db *gorm.DB, requestRepo repository.DeliveryRequestRepository) *serviceHarness {
	h := &serviceHarness{
		db:           db,
		cfg:          newServiceTestConfig(),
		requestRepo:  repository.NewDeliveryRequestRepository(db),
		courierRepo:  repository.NewCourierRepository(db),
		shopRepo:     repository.NewShopRepository(db),
		reminderRepo: repository.NewReminderTaskRepository(db),
		eventRepo:    repository.NewWebhookEventRepository(db),
		email:        &emailDispatcherStub{},
		notifier:     &courierNotifierStub{},
	}
	h.assignment = NewAssignmentService(&h.cfg.Assignment, requestRepo, h.courierRepo, h.notifier)
	h.review = NewReviewScheduler(&h.cfg.Review, requestRepo, h.reminderRepo, h.email)
	h.lifecycle = NewLifecycleService(h.cfg, requestRepo, h.courierRepo, h.shopRepo, h.reminderRepo, h.assignment, h.review)
	h.reminders = NewReminderService(&h.cfg.Review, requestRepo, h.reminderRepo, h.review, h.email)
	h.audit = NewAuditService(h.eventRepo)
	h.webhooks = NewWebhookService(h.cfg, nil, nil, nil, h.shopRepo, h.lifecycle, h.audit)
	return h
}

func (h *serviceHarness) createShop(t *testing.T, provider, domain string, autoAssign bool) *models.Shop {
	t.Helper()
	shop := &models.Shop{
		Provider:      provider,
		Domain:        domain,
		Name:          domain,
		AutoAssign:    autoAssign,
		PickupAddress: "9 Depot Rd, Springfield",
		IsActive:      true,
	}
	if err := h.shopRepo.Upsert(shop); err != nil {
		t.Fatalf("upsert shop failed: %v", err)
	}
	stored, err := h.shopRepo.GetByProviderDomain(provider, domain)
	if err != nil || stored == nil {
		t.Fatalf("reload shop failed: %v", err)
	}
	return stored
}

func (h *serviceHarness) createCourier(t *testing.T, name, city string, rating float64, maxOrders *int, createdAt time.Time) *models.Courier {
	t.Helper()
	courier := &models.Courier{
		Name:                name,
		City:                city,
		IsActive:            true,
		Rating:              rating,
		MaxConcurrentOrders: maxOrders,
		CreatedAt:           createdAt,
	}
	if err := h.courierRepo.Create(courier); err != nil {
		t.Fatalf("create courier failed: %v", err)
	}
	return courier
}

func (h *serviceHarness) reloadCourier(t *testing.T, id uint) *models.Courier {
	t.Helper()
	courier, err := h.courierRepo.GetByID(id)
	if err != nil || courier == nil {
		t.Fatalf("reload courier failed: %v", err)
	}
	return courier
}

func (h *serviceHarness) requestByKey(t *testing.T, externalOrderID, externalSource string) *models.DeliveryRequest {
	t.Helper()
	req, err := h.requestRepo.GetByKey(externalOrderID, externalSource)
	if err != nil {
		t.Fatalf("get request failed: %v", err)
	}
	return req
}

func (h *serviceHarness) countRows(t *testing.T, model interface{}) int64 {
	t.Helper()
	var count int64
	if err := h.db.Model(model).Count(&count).Error; err != nil {
		t.Fatalf("count rows failed: %v", err)
	}
	return count
}

func (h *serviceHarness) reminderTasks(t *testing.T, requestID string) []models.ReminderTask {
	t.Helper()
	var tasks []models.ReminderTask
	if err := h.db.Where("request_id = ?", requestID).Find(&tasks).Error; err != nil {
		t.Fatalf("list reminders failed: %v", err)
	}
	return tasks
}

func intPtr(v int) *int {
	return &v
}

func moneyPtr(text string) *models.Money {
	m := models.NewMoneyFromDecimal(decimal.RequireFromString(text))
	return &m
}

func testOrder(externalOrderID, source, city string) *webhook.NormalizedOrder {
	return &webhook.NormalizedOrder{
		Provider:        constants.ProviderExternal,
		ExternalOrderID: externalOrderID,
		ExternalSource:  source,
		OrderNumber:     "#" + externalOrderID,
		CustomerEmail:   "buyer@example.com",
		CustomerName:    "Ann Lee",
		ShippingAddress: "1 Main St, 62704 " + city + ", US",
		DeliveryCity:    city,
		Total:           moneyPtr("120.00"),
		Currency:        "USD",
		ProviderStatus:  "new",
		Status:          constants.DeliveryStatusPending,
	}
}
