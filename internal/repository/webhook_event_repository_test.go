package repository

import (
	"testing"
	"time"

	"github.com/Performile1/Performile-Version-1-sub001/internal/constants"
	"github.com/Performile1/Performile-Version-1-sub001/internal/models"
)

func seedWebhookEvents(t *testing.T, repo *GormWebhookEventRepository, base time.Time) {
	t.Helper()
	events := []models.WebhookEvent{
		{Provider: constants.ProviderShopify, EventType: "orders/create", Source: "shopify:a.myshopify.com", Status: constants.WebhookEventStatusSuccess, HTTPStatus: 200, Payload: `{"id":1}`, ReceivedAt: base},
		{Provider: constants.ProviderShopify, EventType: "orders/create", Source: "shopify:b.myshopify.com", Status: constants.WebhookEventStatusFailed, HTTPStatus: 401, ErrorMessage: "signature invalid", Payload: `{"id":2}`, ReceivedAt: base.Add(time.Hour)},
		{Provider: constants.ProviderStripe, EventType: "charge.refunded", Source: "stripe:acct", Status: constants.WebhookEventStatusError, HTTPStatus: 500, ErrorMessage: "database locked", Payload: `{"id":"evt_3"}`, ReceivedAt: base.Add(2 * time.Hour)},
	}
	for i := range events {
		if err := repo.Create(&events[i]); err != nil {
			t.Fatalf("create event failed: %v", err)
		}
	}
}

func TestWebhookEventListFilters(t *testing.T) {
	repo := NewWebhookEventRepository(openRepositoryTestDB(t, "webhook_list"))
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	seedWebhookEvents(t, repo, base)

	all, total, err := repo.List(WebhookEventListFilter{Page: 1, PageSize: 2})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if total != 3 || len(all) != 2 {
		t.Fatalf("pagination unexpected total=%d len=%d", total, len(all))
	}
	if all[0].Provider != constants.ProviderStripe {
		t.Fatalf("list should be newest first, got %s", all[0].Provider)
	}

	cases := []struct {
		name   string
		filter WebhookEventListFilter
		want   int64
	}{
		{name: "provider", filter: WebhookEventListFilter{Provider: " SHOPIFY "}, want: 2},
		{name: "status", filter: WebhookEventListFilter{Status: "error"}, want: 1},
		{name: "event type", filter: WebhookEventListFilter{EventType: "orders/create"}, want: 2},
		{name: "source", filter: WebhookEventListFilter{Source: "shopify:b.myshopify.com"}, want: 1},
		{name: "keyword", filter: WebhookEventListFilter{Keyword: "signature"}, want: 1},
		{name: "received range", filter: WebhookEventListFilter{ReceivedFrom: timePtr(base.Add(30 * time.Minute)), ReceivedTo: timePtr(base.Add(90 * time.Minute))}, want: 1},
	}
	for _, tc := range cases {
		_, got, err := repo.List(tc.filter)
		if err != nil {
			t.Fatalf("%s: list failed: %v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("%s: total want %d got %d", tc.name, tc.want, got)
		}
	}
}

func TestWebhookEventGetAndCount(t *testing.T) {
	repo := NewWebhookEventRepository(openRepositoryTestDB(t, "webhook_count"))
	seedWebhookEvents(t, repo, time.Now())

	counts, err := repo.CountByStatus("")
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if counts[constants.WebhookEventStatusSuccess] != 1 || counts[constants.WebhookEventStatusFailed] != 1 || counts[constants.WebhookEventStatusError] != 1 {
		t.Fatalf("unexpected counts: %+v", counts)
	}
	shopify, err := repo.CountByStatus("shopify")
	if err != nil || len(shopify) != 2 || shopify[constants.WebhookEventStatusError] != 0 {
		t.Fatalf("unexpected shopify counts: %+v err=%v", shopify, err)
	}

	event, err := repo.GetByID(1)
	if err != nil || event == nil || event.Payload != `{"id":1}` {
		t.Fatalf("get by id failed: %+v err=%v", event, err)
	}
	missing, err := repo.GetByID(404)
	if err != nil || missing != nil {
		t.Fatalf("missing event should return nil,nil got %v %v", missing, err)
	}
}

func timePtr(v time.Time) *time.Time {
	return &v
}
