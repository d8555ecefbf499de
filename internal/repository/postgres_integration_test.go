//go:build integration
// +build integration

package repository

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Performile1/Performile-Version-1-sub001/internal/constants"
	"github.com/Performile1/Performile-Version-1-sub001/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// setupPostgresIntegrationDB 初始化 PostgreSQL 集成测试数据库。
func setupPostgresIntegrationDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := strings.TrimSpace(os.Getenv("TEST_POSTGRES_DSN"))
	if dsn == "" {
		t.Skip("skip postgres integration test: TEST_POSTGRES_DSN is empty")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open postgres failed: %v", err)
	}

	cleanupModels := models.AllModels()
	_ = db.Migrator().DropTable(cleanupModels...)

	if err := db.AutoMigrate(cleanupModels...); err != nil {
		t.Fatalf("migrate postgres models failed: %v", err)
	}

	t.Cleanup(func() {
		_ = db.Migrator().DropTable(cleanupModels...)
		sqlDB, err := db.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	})

	return db
}

func TestPostgresConcurrentCreateIfAbsentKeepsOneRow(t *testing.T) {
	db := setupPostgresIntegrationDB(t)
	repo := NewDeliveryRequestRepository(db)

	const workers = 8
	var wg sync.WaitGroup
	createdCount := make(chan bool, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			created, err := repo.CreateIfAbsent(newTestDeliveryRequest(fmt.Sprintf("pg-req-%d", i), "pg-1001"))
			if err != nil {
				t.Errorf("create if absent failed: %v", err)
				return
			}
			createdCount <- created
		}(i)
	}
	wg.Wait()
	close(createdCount)

	winners := 0
	for created := range createdCount {
		if created {
			winners++
		}
	}
	if winners != 1 {
		t.Fatalf("exactly one insert should win, got %d", winners)
	}
	var total int64
	db.Model(&models.DeliveryRequest{}).Where("external_order_id = ?", "pg-1001").Count(&total)
	if total != 1 {
		t.Fatalf("expected one row, got %d", total)
	}
}

func TestPostgresConcurrentAssignmentSingleWinner(t *testing.T) {
	db := setupPostgresIntegrationDB(t)
	repo := NewDeliveryRequestRepository(db)
	if _, err := repo.CreateIfAbsent(newTestDeliveryRequest("pg-assign", "pg-2001")); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	const workers = 6
	var wg sync.WaitGroup
	results := make(chan int64, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(courierID uint) {
			defer wg.Done()
			affected, err := repo.AssignCourier("pg-assign", courierID, time.Now())
			if err != nil {
				t.Errorf("assign failed: %v", err)
				return
			}
			results <- affected
		}(uint(i + 1))
	}
	wg.Wait()
	close(results)

	var wins int64
	for affected := range results {
		wins += affected
	}
	if wins != 1 {
		t.Fatalf("exactly one assignment should win, got %d", wins)
	}
}

func TestPostgresClaimDueSkipsLockedRows(t *testing.T) {
	db := setupPostgresIntegrationDB(t)
	repo := NewReminderTaskRepository(db)
	now := time.Now()
	for i := 0; i < 10; i++ {
		task := &models.ReminderTask{
			RequestID:    fmt.Sprintf("pg-reminder-%d", i),
			ScheduledFor: now.Add(-time.Minute),
			Status:       constants.ReminderStatusPending,
		}
		if _, err := repo.CreateIfAbsent(task); err != nil {
			t.Fatalf("create reminder failed: %v", err)
		}
	}

	const sweepers = 4
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[uint]int)
	)
	for i := 0; i < sweepers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claimed, err := repo.ClaimDue(now, now.Add(-5*time.Minute), 3)
			if err != nil {
				t.Errorf("claim failed: %v", err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			for _, task := range claimed {
				seen[task.ID]++
			}
		}()
	}
	wg.Wait()

	for id, count := range seen {
		if count != 1 {
			t.Fatalf("reminder %d claimed %d times", id, count)
		}
	}
}
