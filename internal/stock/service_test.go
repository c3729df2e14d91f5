package stock

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tillpoint/tillpoint-backend/pkg/db/models"
	apperrors "github.com/tillpoint/tillpoint-backend/pkg/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:stock_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.StockEntry{}); err != nil {
		t.Fatalf("migrate stock: %v", err)
	}
	return db
}

func newTestService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(NewRepository(db))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func seedEntry(t *testing.T, db *gorm.DB, storeID, productID uuid.UUID, qty, threshold int) {
	t.Helper()
	entry := models.StockEntry{
		StoreID:           storeID,
		ProductID:         productID,
		Quantity:          qty,
		LowStockThreshold: threshold,
	}
	if err := db.Create(&entry).Error; err != nil {
		t.Fatalf("seed stock entry: %v", err)
	}
}

func TestAdjustDecrementsAndIncrements(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	storeID := uuid.New()
	productID := uuid.New()
	seedEntry(t, db, storeID, productID, 10, 2)

	got, err := svc.Adjust(ctx, storeID, productID, -4)
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if got != 6 {
		t.Fatalf("expected quantity 6, got %d", got)
	}

	got, err = svc.Adjust(ctx, storeID, productID, 3)
	if err != nil {
		t.Fatalf("adjust restock: %v", err)
	}
	if got != 9 {
		t.Fatalf("expected quantity 9, got %d", got)
	}
}

func TestAdjustRejectsOversell(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	storeID := uuid.New()
	productID := uuid.New()
	seedEntry(t, db, storeID, productID, 2, 0)

	_, err := svc.Adjust(ctx, storeID, productID, -3)
	if err == nil {
		t.Fatal("expected insufficient stock error")
	}
	typed := apperrors.As(err)
	if typed == nil || typed.Code() != apperrors.CodeInsufficientStock {
		t.Fatalf("unexpected error: %v", err)
	}
	shortfalls, ok := typed.Details().([]Shortfall)
	if !ok || len(shortfalls) != 1 {
		t.Fatalf("expected one shortfall, got %+v", typed.Details())
	}
	if shortfalls[0].Requested != 3 || shortfalls[0].Available != 2 {
		t.Fatalf("unexpected shortfall: %+v", shortfalls[0])
	}

	entry, gerr := NewRepository(db).Get(ctx, storeID, productID)
	if gerr != nil {
		t.Fatalf("reload entry: %v", gerr)
	}
	if entry.Quantity != 2 {
		t.Fatalf("quantity must be unchanged, got %d", entry.Quantity)
	}
}

func TestAdjustMissingEntryReportsZeroAvailable(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)

	_, err := svc.Adjust(context.Background(), uuid.New(), uuid.New(), -1)
	if err == nil {
		t.Fatal("expected error for missing entry")
	}
	if !apperrors.HasCode(err, apperrors.CodeInsufficientStock) {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCheckAvailabilityReportsShortfalls(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	storeID := uuid.New()
	productA := uuid.New()
	productB := uuid.New()
	productC := uuid.New()
	seedEntry(t, db, storeID, productA, 5, 0)
	seedEntry(t, db, storeID, productB, 1, 0)

	shortfalls, err := svc.CheckAvailability(ctx, storeID, []ItemRequest{
		{ProductID: productA, Quantity: 5},
		{ProductID: productB, Quantity: 2},
		{ProductID: productC, Quantity: 1},
	})
	if err != nil {
		t.Fatalf("check availability: %v", err)
	}
	if len(shortfalls) != 2 {
		t.Fatalf("expected 2 shortfalls, got %+v", shortfalls)
	}
	if shortfalls[0].ProductID != productB || shortfalls[0].Available != 1 {
		t.Fatalf("unexpected first shortfall: %+v", shortfalls[0])
	}
	if shortfalls[1].ProductID != productC || shortfalls[1].Available != 0 {
		t.Fatalf("unexpected second shortfall: %+v", shortfalls[1])
	}
}

func TestCheckAvailabilityRejectsInvalidQuantity(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)

	_, err := svc.CheckAvailability(context.Background(), uuid.New(), []ItemRequest{
		{ProductID: uuid.New(), Quantity: 0},
	})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !apperrors.HasCode(err, apperrors.CodeValidation) {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSetLevelUpsertsEntry(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	storeID := uuid.New()
	productID := uuid.New()

	entry, err := svc.SetLevel(ctx, storeID, productID, 7, 2)
	if err != nil {
		t.Fatalf("set level: %v", err)
	}
	if entry.Quantity != 7 {
		t.Fatalf("expected quantity 7, got %d", entry.Quantity)
	}

	entry, err = svc.SetLevel(ctx, storeID, productID, 3, 2)
	if err != nil {
		t.Fatalf("set level again: %v", err)
	}
	if entry.Quantity != 3 {
		t.Fatalf("expected quantity 3, got %d", entry.Quantity)
	}

	reloaded, err := NewRepository(db).Get(ctx, storeID, productID)
	if err != nil {
		t.Fatalf("reload entry: %v", err)
	}
	if reloaded.Quantity != 3 {
		t.Fatalf("expected persisted quantity 3, got %d", reloaded.Quantity)
	}
}

func TestLowStockListsEntriesAtOrBelowThreshold(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	storeID := uuid.New()
	low := uuid.New()
	ok := uuid.New()
	seedEntry(t, db, storeID, low, 1, 3)
	seedEntry(t, db, storeID, ok, 10, 3)

	entries, err := svc.LowStock(ctx, storeID)
	if err != nil {
		t.Fatalf("low stock: %v", err)
	}
	if len(entries) != 1 || entries[0].ProductID != low {
		t.Fatalf("unexpected low stock entries: %+v", entries)
	}
}
