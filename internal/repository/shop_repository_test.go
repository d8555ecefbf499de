package repository

import (
	"testing"
	"time"

	"github.com/Performile1/Performile-Version-1-sub001/internal/constants"
	"github.com/Performile1/Performile-Version-1-sub001/internal/models"
)

func TestShopUpsertAndLookup(t *testing.T) {
	db := openRepositoryTestDB(t, "shop_upsert")
	repo := NewShopRepository(db)

	shop := &models.Shop{
		Provider:      " Shopify ",
		Domain:        "Demo.MyShopify.com",
		Name:          "Demo",
		WebhookSecret: "secret-1",
		IsActive:      true,
	}
	if err := repo.Upsert(shop); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if err := repo.Upsert(&models.Shop{
		Provider:      constants.ProviderShopify,
		Domain:        "demo.myshopify.com",
		Name:          "Demo renamed",
		WebhookSecret: "secret-2",
		AutoAssign:    true,
		IsActive:      true,
	}); err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}
	var count int64
	db.Model(&models.Shop{}).Count(&count)
	if count != 1 {
		t.Fatalf("upsert should keep one row per provider domain, got %d", count)
	}

	got, err := repo.GetByProviderDomain("SHOPIFY", " demo.myshopify.com ")
	if err != nil || got == nil {
		t.Fatalf("lookup failed: %v %v", got, err)
	}
	if got.WebhookSecret != "secret-2" || !got.AutoAssign || got.Name != "Demo renamed" {
		t.Fatalf("upsert should update mutable columns: %+v", got)
	}

	bySource, err := repo.GetBySource("shopify:demo.myshopify.com")
	if err != nil || bySource == nil || bySource.ID != got.ID {
		t.Fatalf("lookup by source failed: %v %v", bySource, err)
	}
	if invalid, err := repo.GetBySource("no-separator"); err != nil || invalid != nil {
		t.Fatalf("invalid source should return nil,nil got %v %v", invalid, err)
	}
	if empty, err := repo.GetByProviderDomain("shopify", ""); err != nil || empty != nil {
		t.Fatalf("empty domain should return nil,nil got %v %v", empty, err)
	}

	// 停用店铺不参与密钥解析
	if err := db.Model(&models.Shop{}).Where("id = ?", got.ID).Update("is_active", false).Error; err != nil {
		t.Fatalf("deactivate shop failed: %v", err)
	}
	if inactive, err := repo.GetByProviderDomain("shopify", "demo.myshopify.com"); err != nil || inactive != nil {
		t.Fatalf("inactive shop should not be returned, got %v %v", inactive, err)
	}
}

func TestOperatorRepository(t *testing.T) {
	repo := NewOperatorRepository(openRepositoryTestDB(t, "operator"))
	operator := &models.Operator{
		Username:     "ops",
		PasswordHash: "hash",
		Role:         constants.OperatorRoleAuditor,
		IsActive:     true,
	}
	if err := repo.Create(operator); err != nil {
		t.Fatalf("create operator failed: %v", err)
	}
	if err := repo.Create(&models.Operator{Username: "ops", PasswordHash: "x", Role: constants.OperatorRoleAuditor}); err == nil {
		t.Fatalf("duplicate username should be rejected")
	}

	byName, err := repo.GetByUsername("ops")
	if err != nil || byName == nil || byName.ID != operator.ID {
		t.Fatalf("get by username failed: %v %v", byName, err)
	}
	if missing, err := repo.GetByUsername("nobody"); err != nil || missing != nil {
		t.Fatalf("missing operator should return nil,nil got %v %v", missing, err)
	}

	at := time.Now()
	if err := repo.TouchLogin(operator.ID, at); err != nil {
		t.Fatalf("touch login failed: %v", err)
	}
	byID, err := repo.GetByID(operator.ID)
	if err != nil || byID == nil || byID.LastLoginAt == nil {
		t.Fatalf("last login not recorded: %+v err=%v", byID, err)
	}
}
