package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/Performile1/Performile-Version-1-sub001/internal/constants"
	"github.com/Performile1/Performile-Version-1-sub001/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func openRepositoryTestDB(t *testing.T, name string) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:repo_%s_%d?mode=memory&cache=shared", name, time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	return db
}

func newTestDeliveryRequest(id, externalOrderID string) *models.DeliveryRequest {
	return &models.DeliveryRequest{
		ID:              id,
		ExternalOrderID: externalOrderID,
		ExternalSource:  "shopify:demo.myshopify.com",
		Provider:        constants.ProviderShopify,
		OrderNumber:     "#" + externalOrderID,
		CustomerEmail:   "buyer@example.com",
		DeliveryCity:    "Stockholm",
		OrderValue:      models.NewMoneyFromDecimal(decimal.RequireFromString("10.00")),
		Status:          constants.DeliveryStatusPending,
	}
}

func TestDeliveryRequestCreateIfAbsentIsIdempotent(t *testing.T) {
	repo := NewDeliveryRequestRepository(openRepositoryTestDB(t, "delivery_create"))

	created, err := repo.CreateIfAbsent(newTestDeliveryRequest("req-1", "1001"))
	if err != nil || !created {
		t.Fatalf("first insert should create row, created=%v err=%v", created, err)
	}
	duplicate := newTestDeliveryRequest("req-2", "1001")
	duplicate.CustomerEmail = "other@example.com"
	created, err = repo.CreateIfAbsent(duplicate)
	if err != nil {
		t.Fatalf("duplicate insert failed: %v", err)
	}
	if created {
		t.Fatalf("duplicate key should not create a second row")
	}

	row, err := repo.GetByKey("1001", "shopify:demo.myshopify.com")
	if err != nil || row == nil {
		t.Fatalf("get by key failed: row=%v err=%v", row, err)
	}
	if row.ID != "req-1" || row.CustomerEmail != "buyer@example.com" {
		t.Fatalf("duplicate insert must not modify row: %+v", row)
	}
	if !row.OrderValue.Equal(decimal.RequireFromString("10")) {
		t.Fatalf("unexpected order value: %s", row.OrderValue)
	}

	missing, err := repo.GetByID("missing")
	if err != nil || missing != nil {
		t.Fatalf("missing row should return nil,nil got %v %v", missing, err)
	}
}

func TestDeliveryRequestRefreshFieldsSkipsTerminalRows(t *testing.T) {
	repo := NewDeliveryRequestRepository(openRepositoryTestDB(t, "delivery_refresh"))
	if _, err := repo.CreateIfAbsent(newTestDeliveryRequest("req-1", "2001")); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	total := models.NewMoneyFromDecimal(decimal.RequireFromString("42.50"))
	affected, err := repo.RefreshFields("2001", "shopify:demo.myshopify.com", DeliveryRefreshFields{
		CustomerName:   " Jane Doe ",
		OrderValue:     &total,
		ProviderStatus: "paid",
	})
	if err != nil || affected != 1 {
		t.Fatalf("refresh should update pending row, affected=%d err=%v", affected, err)
	}
	row, _ := repo.GetByID("req-1")
	if row.CustomerName != "Jane Doe" || row.ProviderStatus != "paid" || row.CustomerEmail != "buyer@example.com" {
		t.Fatalf("unexpected refreshed row: %+v", row)
	}
	if !row.OrderValue.Equal(decimal.RequireFromString("42.5")) {
		t.Fatalf("order value not refreshed: %s", row.OrderValue)
	}

	if _, err := repo.MarkCompleted("2001", "shopify:demo.myshopify.com", time.Now()); err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	affected, err = repo.RefreshFields("2001", "shopify:demo.myshopify.com", DeliveryRefreshFields{CustomerName: "Changed"})
	if err != nil {
		t.Fatalf("refresh terminal failed: %v", err)
	}
	if affected != 0 {
		t.Fatalf("terminal row must not be refreshed, affected=%d", affected)
	}
}

func TestDeliveryRequestTerminalTransitionsAreGuarded(t *testing.T) {
	repo := NewDeliveryRequestRepository(openRepositoryTestDB(t, "delivery_terminal"))
	if _, err := repo.CreateIfAbsent(newTestDeliveryRequest("req-1", "3001")); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	now := time.Now()

	affected, err := repo.MarkCompleted("3001", "shopify:demo.myshopify.com", now)
	if err != nil || affected != 1 {
		t.Fatalf("first completion should win, affected=%d err=%v", affected, err)
	}
	affected, _ = repo.MarkCompleted("3001", "shopify:demo.myshopify.com", now)
	if affected != 0 {
		t.Fatalf("second completion should be a no-op, affected=%d", affected)
	}
	affected, _ = repo.MarkCancelled("3001", "shopify:demo.myshopify.com", now)
	if affected != 0 {
		t.Fatalf("completed row must not be cancelled, affected=%d", affected)
	}
	row, _ := repo.GetByID("req-1")
	if row.Status != constants.DeliveryStatusCompleted || row.CompletedAt == nil || row.CancelledAt != nil {
		t.Fatalf("unexpected terminal row: %+v", row)
	}
}

func TestDeliveryRequestAssignCourierCAS(t *testing.T) {
	repo := NewDeliveryRequestRepository(openRepositoryTestDB(t, "delivery_assign"))
	if _, err := repo.CreateIfAbsent(newTestDeliveryRequest("req-1", "4001")); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	now := time.Now()

	affected, err := repo.AssignCourier("req-1", 1, now)
	if err != nil || affected != 1 {
		t.Fatalf("first assignment should win, affected=%d err=%v", affected, err)
	}
	affected, _ = repo.AssignCourier("req-1", 2, now)
	if affected != 0 {
		t.Fatalf("second assignment must lose, affected=%d", affected)
	}
	row, _ := repo.GetByID("req-1")
	if row.Status != constants.DeliveryStatusAssigned || row.CourierID == nil || *row.CourierID != 1 {
		t.Fatalf("unexpected assigned row: %+v", row)
	}

	// 已分配的订单仍可取消
	affected, _ = repo.MarkCancelled("4001", "shopify:demo.myshopify.com", now)
	if affected != 1 {
		t.Fatalf("assigned row should be cancellable, affected=%d", affected)
	}
}

func TestDeliveryRequestClaimReviewDispatchOnce(t *testing.T) {
	repo := NewDeliveryRequestRepository(openRepositoryTestDB(t, "delivery_review"))
	if _, err := repo.CreateIfAbsent(newTestDeliveryRequest("req-1", "5001")); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	now := time.Now()

	affected, _ := repo.ClaimReviewDispatch("req-1", "token-early", now)
	if affected != 0 {
		t.Fatalf("pending row must not be claimed, affected=%d", affected)
	}
	if _, err := repo.MarkCompleted("5001", "shopify:demo.myshopify.com", now); err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	affected, err := repo.ClaimReviewDispatch("req-1", "token-a", now)
	if err != nil || affected != 1 {
		t.Fatalf("first claim should win, affected=%d err=%v", affected, err)
	}
	affected, _ = repo.ClaimReviewDispatch("req-1", "token-b", now)
	if affected != 0 {
		t.Fatalf("second claim must lose, affected=%d", affected)
	}
	row, _ := repo.GetByID("req-1")
	if !row.ReviewLinkSent || row.ReviewLinkToken == nil || *row.ReviewLinkToken != "token-a" {
		t.Fatalf("unexpected review state: sent=%v token=%v", row.ReviewLinkSent, row.ReviewLinkToken)
	}
}

func TestDeliveryRequestTransactionRollsBack(t *testing.T) {
	repo := NewDeliveryRequestRepository(openRepositoryTestDB(t, "delivery_tx"))
	if _, err := repo.CreateIfAbsent(newTestDeliveryRequest("req-1", "6001")); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	rollback := fmt.Errorf("rollback")
	err := repo.Transaction(func(tx *gorm.DB) error {
		if _, err := repo.WithTx(tx).AssignCourier("req-1", 9, time.Now()); err != nil {
			return err
		}
		return rollback
	})
	if err != rollback {
		t.Fatalf("expected rollback error, got %v", err)
	}
	row, _ := repo.GetByID("req-1")
	if row.CourierID != nil || row.Status != constants.DeliveryStatusPending {
		t.Fatalf("assignment should be rolled back: %+v", row)
	}
}
