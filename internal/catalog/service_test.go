package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tillpoint/tillpoint-backend/internal/feed"
	"github.com/tillpoint/tillpoint-backend/internal/stock"
	"github.com/tillpoint/tillpoint-backend/pkg/db"
	"github.com/tillpoint/tillpoint-backend/pkg/db/models"
	"github.com/tillpoint/tillpoint-backend/pkg/enums"
	apperrors "github.com/tillpoint/tillpoint-backend/pkg/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:catalog_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := conn.AutoMigrate(
		&models.Store{},
		&models.Category{},
		&models.Product{},
		&models.Discount{},
		&models.StockEntry{},
		&models.SyncLogEntry{},
	); err != nil {
		t.Fatalf("migrate catalog: %v", err)
	}
	return conn
}

type fakeCounter struct{}

func (fakeCounter) CountByStatus(ctx context.Context, storeID uuid.UUID) (map[enums.TransactionStatus]int64, error) {
	return nil, nil
}

type noStock struct{}

func (noStock) ListByStore(ctx context.Context, storeID uuid.UUID) ([]models.StockEntry, error) {
	return nil, nil
}

func (noStock) ListByStoreAndProducts(ctx context.Context, storeID uuid.UUID, productIDs []uuid.UUID) ([]models.StockEntry, error) {
	return nil, nil
}

func newTestService(t *testing.T, conn *gorm.DB) (Service, feed.Repository) {
	t.Helper()
	feedRepo := feed.NewRepository(conn)
	catalogRepo := NewRepository(conn)
	feedSvc, err := feed.NewService(feedRepo, catalogRepo, noStock{}, fakeCounter{}, nil, time.Second)
	if err != nil {
		t.Fatalf("new feed service: %v", err)
	}
	stockSvc, err := stock.NewService(stock.NewRepository(conn))
	if err != nil {
		t.Fatalf("new stock service: %v", err)
	}
	svc, err := NewService(db.NewWithConn(conn), catalogRepo, stockSvc, feedSvc)
	if err != nil {
		t.Fatalf("new catalog service: %v", err)
	}
	return svc, feedRepo
}

func feedEntries(t *testing.T, repo feed.Repository, storeID uuid.UUID) []models.SyncLogEntry {
	t.Helper()
	entries, err := repo.ListSince(context.Background(), storeID, time.Time{})
	if err != nil {
		t.Fatalf("list feed: %v", err)
	}
	return entries
}

func TestUpsertProductRecordsFeedEntry(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc, feedRepo := newTestService(t, conn)
	ctx := context.Background()
	storeID := uuid.New()

	product, err := svc.UpsertProduct(ctx, &models.Product{
		StoreID: storeID,
		SKU:     "SKU-1",
		Name:    "espresso",
		Price:   decimal.NewFromInt(350),
	})
	if err != nil {
		t.Fatalf("upsert product: %v", err)
	}
	if product.ID == uuid.Nil {
		t.Fatal("product must receive an id")
	}

	product.Name = "double espresso"
	if _, err := svc.UpsertProduct(ctx, product); err != nil {
		t.Fatalf("update product: %v", err)
	}

	entries := feedEntries(t, feedRepo, storeID)
	if len(entries) != 2 {
		t.Fatalf("expected 2 feed entries, got %d", len(entries))
	}
	if entries[0].Action != enums.SyncActionCreate || entries[1].Action != enums.SyncActionUpdate {
		t.Fatalf("unexpected feed actions: %+v", entries)
	}
	if entries[0].EntityType != enums.SyncEntityProduct || entries[0].EntityID != product.ID {
		t.Fatalf("unexpected feed entry: %+v", entries[0])
	}
}

func TestDeleteCategoryRecordsFeedEntry(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc, feedRepo := newTestService(t, conn)
	ctx := context.Background()
	storeID := uuid.New()

	category, err := svc.UpsertCategory(ctx, &models.Category{StoreID: storeID, Name: "drinks"})
	if err != nil {
		t.Fatalf("upsert category: %v", err)
	}
	if err := svc.DeleteCategory(ctx, storeID, category.ID); err != nil {
		t.Fatalf("delete category: %v", err)
	}

	entries := feedEntries(t, feedRepo, storeID)
	if len(entries) != 2 {
		t.Fatalf("expected 2 feed entries, got %d", len(entries))
	}
	if entries[1].Action != enums.SyncActionDelete || entries[1].EntityID != category.ID {
		t.Fatalf("unexpected delete entry: %+v", entries[1])
	}

	var count int64
	if err := conn.Model(&models.Category{}).Where("id = ?", category.ID).Count(&count).Error; err != nil {
		t.Fatalf("count categories: %v", err)
	}
	if count != 0 {
		t.Fatal("category row must be removed")
	}
}

func TestUpsertProductRejectsNegativePrice(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc, _ := newTestService(t, conn)

	_, err := svc.UpsertProduct(context.Background(), &models.Product{
		StoreID: uuid.New(),
		Name:    "bad",
		Price:   decimal.NewFromInt(-1),
	})
	if !apperrors.HasCode(err, apperrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestIncrementDiscountUsageEnforcesLimit(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc, _ := newTestService(t, conn)
	ctx := context.Background()
	storeID := uuid.New()

	maxUsage := 2
	discount := &models.Discount{
		ID:       uuid.New(),
		StoreID:  storeID,
		Name:     "happy hour",
		Type:     enums.DiscountTypePercentage,
		Value:    decimal.NewFromInt(10),
		MaxUsage: &maxUsage,
		IsActive: true,
	}
	if err := conn.Create(discount).Error; err != nil {
		t.Fatalf("seed discount: %v", err)
	}

	for i := 0; i < 2; i++ {
		if _, err := svc.IncrementDiscountUsage(ctx, conn, discount.ID); err != nil {
			t.Fatalf("increment %d: %v", i, err)
		}
	}

	_, err := svc.IncrementDiscountUsage(ctx, conn, discount.ID)
	if !apperrors.HasCode(err, apperrors.CodeNotEligible) {
		t.Fatalf("expected usage limit error, got %v", err)
	}

	var reloaded models.Discount
	if err := conn.First(&reloaded, "id = ?", discount.ID).Error; err != nil {
		t.Fatalf("reload discount: %v", err)
	}
	if reloaded.UsageCount != 2 {
		t.Fatalf("expected usage count 2, got %d", reloaded.UsageCount)
	}
}
