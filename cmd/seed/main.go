package main

import (
	"flag"
	"fmt"

	"github.com/Performile1/Performile-Version-1-sub001/internal/config"
	"github.com/Performile1/Performile-Version-1-sub001/internal/constants"
	"github.com/Performile1/Performile-Version-1-sub001/internal/logger"
	"github.com/Performile1/Performile-Version-1-sub001/internal/models"
	"github.com/Performile1/Performile-Version-1-sub001/internal/repository"
	"github.com/Performile1/Performile-Version-1-sub001/internal/service"
)

var demoProviders = []string{
	constants.ProviderShopify,
	constants.ProviderWooCommerce,
	constants.ProviderStripe,
	constants.ProviderMagento,
	constants.ProviderPrestaShop,
	constants.ProviderOpenCart,
	constants.ProviderWix,
	constants.ProviderSquarespace,
	constants.ProviderExternal,
}

func main() {
	var (
		operatorName     string
		operatorPassword string
	)
	flag.StringVar(&operatorName, "operator", "demo-operator", "演示运维账号")
	flag.StringVar(&operatorPassword, "password", "demo-operator-pass", "演示运维账号密码")
	flag.Parse()

	// 连接数据库
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}
	defer func() {
		_ = models.CloseDB()
	}()

	// 自动迁移
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	// 每个提供方一个演示店铺
	shopRepo := repository.NewShopRepository(models.DB)
	for _, provider := range demoProviders {
		shop := &models.Shop{
			Provider:      provider,
			Domain:        fmt.Sprintf("demo-%s.example.com", provider),
			Name:          fmt.Sprintf("Demo %s shop", provider),
			WebhookSecret: fmt.Sprintf("demo-%s-secret", provider),
			AutoAssign:    true,
			PickupAddress: "Drottninggatan 1, Stockholm",
			IsActive:      true,
		}
		if err := shopRepo.Upsert(shop); err != nil {
			stdLog.Fatalf("Failed to seed shop %s: %v", provider, err)
		}
		fmt.Printf("shop   %-12s source=%s\n", provider, shop.ExternalSource())
	}

	// 两个城市的演示骑手
	courierRepo := repository.NewCourierRepository(models.DB)
	var existing int64
	if err := models.DB.Model(&models.Courier{}).Count(&existing).Error; err != nil {
		stdLog.Fatalf("Failed to count couriers: %v", err)
	}
	if existing == 0 {
		capacity := 3
		couriers := []models.Courier{
			{Name: "Anna Lind", Email: "anna@example.com", City: "Stockholm", IsActive: true, Rating: 4.9, MaxConcurrentOrders: &capacity},
			{Name: "Erik Berg", Email: "erik@example.com", City: "Stockholm", IsActive: true, Rating: 4.6},
			{Name: "Sara Holm", Email: "sara@example.com", City: "Gothenburg", IsActive: true, Rating: 4.8, MaxConcurrentOrders: &capacity},
			{Name: "Johan Ek", Email: "johan@example.com", City: "Gothenburg", IsActive: true, Rating: 4.2},
		}
		for i := range couriers {
			if err := courierRepo.Create(&couriers[i]); err != nil {
				stdLog.Fatalf("Failed to seed courier %s: %v", couriers[i].Name, err)
			}
			fmt.Printf("courier %-10s city=%s id=%d\n", couriers[i].Name, couriers[i].City, couriers[i].ID)
		}
	} else {
		fmt.Printf("couriers already seeded (%d)\n", existing)
	}

	// 演示运维账号与令牌
	operatorRepo := repository.NewOperatorRepository(models.DB)
	authService := service.NewAuthService(&cfg.Ops, operatorRepo)
	operator, err := operatorRepo.GetByUsername(operatorName)
	if err != nil {
		stdLog.Fatalf("Failed to query operator: %v", err)
	}
	if operator == nil {
		hash, err := authService.HashPassword(operatorPassword)
		if err != nil {
			stdLog.Fatalf("Failed to hash operator password: %v", err)
		}
		operator = &models.Operator{
			Username:     operatorName,
			PasswordHash: hash,
			Role:         constants.OperatorRoleOperator,
			IsActive:     true,
		}
		if err := operatorRepo.Create(operator); err != nil {
			stdLog.Fatalf("Failed to seed operator: %v", err)
		}
	}
	token, expiresAt, err := authService.GenerateJWT(operator)
	if err != nil {
		stdLog.Fatalf("Failed to sign operator token: %v", err)
	}
	fmt.Printf("operator %s role=%s\n", operator.Username, operator.Role)
	fmt.Printf("token (expires %s):\n%s\n", expiresAt.Format("2006-01-02 15:04:05"), token)
	fmt.Println("Seed data created successfully")
}
