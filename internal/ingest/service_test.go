package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tillpoint/tillpoint-backend/internal/catalog"
	"github.com/tillpoint/tillpoint-backend/internal/feed"
	"github.com/tillpoint/tillpoint-backend/internal/stock"
	"github.com/tillpoint/tillpoint-backend/internal/vouchers"
	"github.com/tillpoint/tillpoint-backend/pkg/config"
	"github.com/tillpoint/tillpoint-backend/pkg/db"
	"github.com/tillpoint/tillpoint-backend/pkg/db/models"
	"github.com/tillpoint/tillpoint-backend/pkg/enums"
	"github.com/tillpoint/tillpoint-backend/pkg/logger"
	"github.com/tillpoint/tillpoint-backend/pkg/pagination"
)

type pipeline struct {
	conn     *gorm.DB
	svc      Service
	feedRepo feed.Repository
	storeID  uuid.UUID
	cashier  uuid.UUID
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()

	dsn := "file:ingest_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := conn.AutoMigrate(
		&models.Store{},
		&models.User{},
		&models.Category{},
		&models.Product{},
		&models.StockEntry{},
		&models.Discount{},
		&models.Transaction{},
		&models.TransactionItem{},
		&models.TransactionPayment{},
		&models.Voucher{},
		&models.VoucherTransaction{},
		&models.OrderVoucher{},
		&models.SyncLogEntry{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	client := db.NewWithConn(conn)
	logg := logger.New(logger.Options{ServiceName: "ingest-test"})

	stockSvc, err := stock.NewService(stock.NewRepository(conn))
	if err != nil {
		t.Fatalf("stock service: %v", err)
	}
	voucherSvc, err := vouchers.NewService(client, vouchers.NewRepository(conn))
	if err != nil {
		t.Fatalf("voucher service: %v", err)
	}
	catRepo := catalog.NewRepository(conn)
	txnRepo := NewRepository(conn)
	feedSvc, err := feed.NewService(feed.NewRepository(conn), catRepo, stock.NewRepository(conn), txnRepo, nil, time.Second)
	if err != nil {
		t.Fatalf("feed service: %v", err)
	}
	catSvc, err := catalog.NewService(client, catRepo, stockSvc, feedSvc)
	if err != nil {
		t.Fatalf("catalog service: %v", err)
	}

	svc, err := NewService(client, txnRepo, stockSvc, voucherSvc, catRepo, catSvc, feedSvc, nil, nil, logg, config.SyncConfig{
		MaxBatchSize:       100,
		PushResultCacheTTL: time.Hour,
	})
	if err != nil {
		t.Fatalf("ingest service: %v", err)
	}

	storeID := uuid.New()
	cashierID := uuid.New()
	if err := conn.Create(&models.Store{ID: storeID, Code: "S01", Name: "Downtown", IsActive: true}).Error; err != nil {
		t.Fatalf("seed store: %v", err)
	}
	if err := conn.Create(&models.User{ID: cashierID, StoreID: storeID, Name: "Dana", Role: enums.MemberRoleCashier, IsActive: true}).Error; err != nil {
		t.Fatalf("seed cashier: %v", err)
	}

	return &pipeline{conn: conn, svc: svc, feedRepo: feed.NewRepository(conn), storeID: storeID, cashier: cashierID}
}

func (p *pipeline) seedProduct(t *testing.T, name string, price int64, qty int) uuid.UUID {
	t.Helper()
	product := models.Product{
		ID:       uuid.New(),
		StoreID:  p.storeID,
		SKU:      "SKU-" + name,
		Name:     name,
		Price:    decimal.NewFromInt(price),
		IsActive: true,
	}
	if err := p.conn.Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	entry := models.StockEntry{StoreID: p.storeID, ProductID: product.ID, Quantity: qty}
	if err := p.conn.Create(&entry).Error; err != nil {
		t.Fatalf("seed stock: %v", err)
	}
	return product.ID
}

func (p *pipeline) stockQty(t *testing.T, productID uuid.UUID) int {
	t.Helper()
	var entry models.StockEntry
	if err := p.conn.First(&entry, "store_id = ? AND product_id = ?", p.storeID, productID).Error; err != nil {
		t.Fatalf("load stock: %v", err)
	}
	return entry.Quantity
}

func simpleSale(clientID string, productID uuid.UUID, qty int, unitPrice int64, ts time.Time) Sale {
	total := decimal.NewFromInt(unitPrice * int64(qty))
	return Sale{
		ClientID:        clientID,
		Items:           []SaleItem{{ProductID: productID, Quantity: qty, UnitPrice: decimal.NewFromInt(unitPrice)}},
		PaymentMethod:   enums.PaymentMethodCash,
		Subtotal:        total,
		Total:           total,
		ClientTimestamp: ts,
	}
}

func TestPushSettlesSaleAndDecrementsStock(t *testing.T) {
	t.Parallel()

	p := newPipeline(t)
	productID := p.seedProduct(t, "espresso", 350, 10)
	ts := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	result, err := p.svc.Push(context.Background(), PushInput{
		StoreID:   p.storeID,
		CashierID: p.cashier,
		Sales:     []Sale{simpleSale("c-1", productID, 3, 350, ts)},
	})
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	if len(result.Synced) != 1 || len(result.Rejected) != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Synced[0].TransactionNumber != "INV-S01-000001" {
		t.Fatalf("unexpected transaction number: %s", result.Synced[0].TransactionNumber)
	}
	if len(result.StockUpdates) != 1 || result.StockUpdates[0].NewQuantity != 7 {
		t.Fatalf("unexpected stock updates: %+v", result.StockUpdates)
	}
	if got := p.stockQty(t, productID); got != 7 {
		t.Fatalf("expected stock 7, got %d", got)
	}

	entries, err := p.feedRepo.ListSince(context.Background(), p.storeID, time.Time{})
	if err != nil {
		t.Fatalf("list feed: %v", err)
	}
	if len(entries) != 1 || entries[0].EntityType != enums.SyncEntityStock || entries[0].EntityID != productID {
		t.Fatalf("expected one stock feed entry, got %+v", entries)
	}
}

func TestPushFlagsLowStockInResult(t *testing.T) {
	t.Parallel()

	p := newPipeline(t)
	productID := p.seedProduct(t, "matcha", 500, 10)
	if err := p.conn.Model(&models.StockEntry{}).
		Where("store_id = ? AND product_id = ?", p.storeID, productID).
		Update("low_stock_threshold", 8).Error; err != nil {
		t.Fatalf("set threshold: %v", err)
	}

	result, err := p.svc.Push(context.Background(), PushInput{
		StoreID:   p.storeID,
		CashierID: p.cashier,
		Sales:     []Sale{simpleSale("c-low-1", productID, 3, 500, time.Now().UTC())},
	})
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	if len(result.StockUpdates) != 1 {
		t.Fatalf("unexpected stock updates: %+v", result.StockUpdates)
	}
	if !result.StockUpdates[0].LowStock {
		t.Fatalf("expected low stock flag at quantity %d", result.StockUpdates[0].NewQuantity)
	}
}

func TestPushIsIdempotentPerClientID(t *testing.T) {
	t.Parallel()

	p := newPipeline(t)
	productID := p.seedProduct(t, "latte", 450, 10)
	ts := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	input := PushInput{
		StoreID:   p.storeID,
		CashierID: p.cashier,
		Sales:     []Sale{simpleSale("c-dup", productID, 2, 450, ts)},
	}
	ctx := context.Background()

	first, err := p.svc.Push(ctx, input)
	if err != nil {
		t.Fatalf("first push: %v", err)
	}
	second, err := p.svc.Push(ctx, input)
	if err != nil {
		t.Fatalf("second push: %v", err)
	}

	if len(second.Synced) != 1 {
		t.Fatalf("replay must report synced, got %+v", second)
	}
	if first.Synced[0].ServerID != second.Synced[0].ServerID ||
		first.Synced[0].TransactionNumber != second.Synced[0].TransactionNumber {
		t.Fatalf("replay must return the same identity: %+v vs %+v", first.Synced[0], second.Synced[0])
	}
	if got := p.stockQty(t, productID); got != 8 {
		t.Fatalf("stock must be decremented exactly once, got %d", got)
	}

	var count int64
	if err := p.conn.Model(&models.Transaction{}).Where("client_id = ?", "c-dup").Count(&count).Error; err != nil {
		t.Fatalf("count transactions: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one transaction, got %d", count)
	}
}

func TestPushRejectsWholeSaleOnPartialShortfall(t *testing.T) {
	t.Parallel()

	p := newPipeline(t)
	plenty := p.seedProduct(t, "beans", 1200, 10)
	scarce := p.seedProduct(t, "grinder", 8000, 1)
	ts := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	total := decimal.NewFromInt(1200*2 + 8000*2)
	sale := Sale{
		ClientID: "c-partial",
		Items: []SaleItem{
			{ProductID: plenty, Quantity: 2, UnitPrice: decimal.NewFromInt(1200)},
			{ProductID: scarce, Quantity: 2, UnitPrice: decimal.NewFromInt(8000)},
		},
		PaymentMethod:   enums.PaymentMethodCard,
		Subtotal:        total,
		Total:           total,
		ClientTimestamp: ts,
	}

	result, err := p.svc.Push(context.Background(), PushInput{
		StoreID:   p.storeID,
		CashierID: p.cashier,
		Sales:     []Sale{sale},
	})
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	if len(result.Synced) != 0 || len(result.Rejected) != 1 {
		t.Fatalf("sale must be rejected, got %+v", result)
	}
	rejected := result.Rejected[0]
	if len(rejected.StockIssues) != 1 {
		t.Fatalf("expected itemized shortfall, got %+v", rejected)
	}
	if rejected.StockIssues[0].ProductID != scarce ||
		rejected.StockIssues[0].Requested != 2 ||
		rejected.StockIssues[0].Available != 1 {
		t.Fatalf("unexpected shortfall: %+v", rejected.StockIssues[0])
	}

	// Neither line item may have touched stock.
	if got := p.stockQty(t, plenty); got != 10 {
		t.Fatalf("sufficient item stock must be untouched, got %d", got)
	}
	if got := p.stockQty(t, scarce); got != 1 {
		t.Fatalf("insufficient item stock must be untouched, got %d", got)
	}
}

func TestPushProcessesByClientTimestampOrder(t *testing.T) {
	t.Parallel()

	p := newPipeline(t)
	productID := p.seedProduct(t, "kettle", 3000, 5)

	// B (ts=2) uploaded before A (ts=1); A must settle first and win the
	// last units.
	saleA := simpleSale("c-a", productID, 3, 3000, time.Date(2025, 6, 1, 9, 0, 1, 0, time.UTC))
	saleB := simpleSale("c-b", productID, 3, 3000, time.Date(2025, 6, 1, 9, 0, 2, 0, time.UTC))

	result, err := p.svc.Push(context.Background(), PushInput{
		StoreID:   p.storeID,
		CashierID: p.cashier,
		Sales:     []Sale{saleB, saleA},
	})
	if err != nil {
		t.Fatalf("push: %v", err)
	}

	if len(result.Synced) != 1 || result.Synced[0].ClientID != "c-a" {
		t.Fatalf("older sale must settle, got %+v", result.Synced)
	}
	if len(result.Rejected) != 1 || result.Rejected[0].ClientID != "c-b" {
		t.Fatalf("newer sale must be rejected, got %+v", result.Rejected)
	}
	if len(result.Rejected[0].StockIssues) != 1 ||
		result.Rejected[0].StockIssues[0].Requested != 3 ||
		result.Rejected[0].StockIssues[0].Available != 2 {
		t.Fatalf("unexpected shortfall: %+v", result.Rejected[0].StockIssues)
	}
	if got := p.stockQty(t, productID); got != 2 {
		t.Fatalf("expected stock 2, got %d", got)
	}
}

func TestPushOneBadSaleDoesNotAbortBatch(t *testing.T) {
	t.Parallel()

	p := newPipeline(t)
	productID := p.seedProduct(t, "mug", 900, 10)
	ts := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	bad := simpleSale("c-bad", uuid.New(), 1, 900, ts) // unknown product
	good := simpleSale("c-good", productID, 1, 900, ts.Add(time.Second))

	result, err := p.svc.Push(context.Background(), PushInput{
		StoreID:   p.storeID,
		CashierID: p.cashier,
		Sales:     []Sale{bad, good},
	})
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	if len(result.Synced) != 1 || result.Synced[0].ClientID != "c-good" {
		t.Fatalf("good sale must settle, got %+v", result)
	}
	if len(result.Rejected) != 1 || result.Rejected[0].ClientID != "c-bad" {
		t.Fatalf("bad sale must be rejected, got %+v", result)
	}
}

func TestPushRejectsUnreconciledTotal(t *testing.T) {
	t.Parallel()

	p := newPipeline(t)
	productID := p.seedProduct(t, "scale", 2500, 5)
	sale := simpleSale("c-money", productID, 1, 2500, time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	sale.Total = decimal.NewFromInt(9999)

	result, err := p.svc.Push(context.Background(), PushInput{
		StoreID:   p.storeID,
		CashierID: p.cashier,
		Sales:     []Sale{sale},
	})
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	if len(result.Rejected) != 1 {
		t.Fatalf("sale must be rejected, got %+v", result)
	}
	if got := p.stockQty(t, productID); got != 5 {
		t.Fatalf("stock must be untouched, got %d", got)
	}
}

func TestPushVoucherFailureDoesNotFailSale(t *testing.T) {
	t.Parallel()

	p := newPipeline(t)
	productID := p.seedProduct(t, "dripper", 1500, 5)
	sale := simpleSale("c-voucher", productID, 1, 1500, time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	sale.Vouchers = []SaleVoucher{{Code: "NO-SUCH-CODE", AmountApplied: decimal.NewFromInt(500)}}

	result, err := p.svc.Push(context.Background(), PushInput{
		StoreID:   p.storeID,
		CashierID: p.cashier,
		Sales:     []Sale{sale},
	})
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	if len(result.Synced) != 1 {
		t.Fatalf("sale must settle despite voucher failure, got %+v", result)
	}
	if got := p.stockQty(t, productID); got != 4 {
		t.Fatalf("expected stock 4, got %d", got)
	}
}

func TestPushAppliesGiftCardVoucher(t *testing.T) {
	t.Parallel()

	p := newPipeline(t)
	productID := p.seedProduct(t, "roaster", 50000, 3)
	voucher := models.Voucher{
		ID:             uuid.New(),
		StoreID:        p.storeID,
		Code:           "GC-PUSH",
		Type:           enums.VoucherTypeGiftCard,
		Status:         enums.VoucherStatusActive,
		InitialBalance: decimal.NewFromInt(100000),
		CurrentBalance: decimal.NewFromInt(100000),
	}
	if err := p.conn.Create(&voucher).Error; err != nil {
		t.Fatalf("seed voucher: %v", err)
	}

	sale := simpleSale("c-gc", productID, 1, 50000, time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	sale.Vouchers = []SaleVoucher{{Code: "GC-PUSH", AmountApplied: decimal.NewFromInt(40000)}}

	result, err := p.svc.Push(context.Background(), PushInput{
		StoreID:   p.storeID,
		CashierID: p.cashier,
		Sales:     []Sale{sale},
	})
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	if len(result.Synced) != 1 {
		t.Fatalf("sale must settle, got %+v", result)
	}

	var reloaded models.Voucher
	if err := p.conn.First(&reloaded, "code = ?", "GC-PUSH").Error; err != nil {
		t.Fatalf("reload voucher: %v", err)
	}
	if !reloaded.CurrentBalance.Equal(decimal.NewFromInt(60000)) {
		t.Fatalf("expected balance 60000, got %s", reloaded.CurrentBalance)
	}

	var links []models.OrderVoucher
	if err := p.conn.Find(&links, "transaction_id = ?", result.Synced[0].ServerID).Error; err != nil {
		t.Fatalf("load links: %v", err)
	}
	if len(links) != 1 || !links[0].AmountApplied.Equal(decimal.NewFromInt(40000)) {
		t.Fatalf("unexpected order voucher links: %+v", links)
	}
}

func TestPushIncrementsDiscountUsage(t *testing.T) {
	t.Parallel()

	p := newPipeline(t)
	productID := p.seedProduct(t, "filter", 700, 5)
	discount := models.Discount{
		ID:       uuid.New(),
		StoreID:  p.storeID,
		Name:     "opening week",
		Type:     enums.DiscountTypePercentage,
		Value:    decimal.NewFromInt(10),
		IsActive: true,
	}
	if err := p.conn.Create(&discount).Error; err != nil {
		t.Fatalf("seed discount: %v", err)
	}

	sale := simpleSale("c-disc", productID, 1, 700, time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	sale.DiscountID = &discount.ID
	sale.DiscountAmount = decimal.NewFromInt(70)
	sale.Total = decimal.NewFromInt(630)

	result, err := p.svc.Push(context.Background(), PushInput{
		StoreID:   p.storeID,
		CashierID: p.cashier,
		Sales:     []Sale{sale},
	})
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	if len(result.Synced) != 1 {
		t.Fatalf("sale must settle, got %+v", result)
	}

	var reloaded models.Discount
	if err := p.conn.First(&reloaded, "id = ?", discount.ID).Error; err != nil {
		t.Fatalf("reload discount: %v", err)
	}
	if reloaded.UsageCount != 1 {
		t.Fatalf("expected usage count 1, got %d", reloaded.UsageCount)
	}
}

func TestVoidRestocksAndRefundsVouchers(t *testing.T) {
	t.Parallel()

	p := newPipeline(t)
	productID := p.seedProduct(t, "tamper", 2000, 5)
	voucher := models.Voucher{
		ID:             uuid.New(),
		StoreID:        p.storeID,
		Code:           "GC-VOIDSALE",
		Type:           enums.VoucherTypeGiftCard,
		Status:         enums.VoucherStatusActive,
		InitialBalance: decimal.NewFromInt(5000),
		CurrentBalance: decimal.NewFromInt(5000),
	}
	if err := p.conn.Create(&voucher).Error; err != nil {
		t.Fatalf("seed voucher: %v", err)
	}

	sale := simpleSale("c-void", productID, 2, 2000, time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	sale.Vouchers = []SaleVoucher{{Code: "GC-VOIDSALE", AmountApplied: decimal.NewFromInt(1000)}}
	ctx := context.Background()

	pushed, err := p.svc.Push(ctx, PushInput{
		StoreID:   p.storeID,
		CashierID: p.cashier,
		Sales:     []Sale{sale},
	})
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	serverID := pushed.Synced[0].ServerID

	voided, err := p.svc.Void(ctx, p.storeID, p.cashier, serverID)
	if err != nil {
		t.Fatalf("void: %v", err)
	}
	if voided.Status != enums.TransactionStatusVoided {
		t.Fatalf("expected voided status, got %s", voided.Status)
	}
	if got := p.stockQty(t, productID); got != 5 {
		t.Fatalf("stock must be restored to 5, got %d", got)
	}

	var reloaded models.Voucher
	if err := p.conn.First(&reloaded, "code = ?", "GC-VOIDSALE").Error; err != nil {
		t.Fatalf("reload voucher: %v", err)
	}
	if !reloaded.CurrentBalance.Equal(decimal.NewFromInt(5000)) {
		t.Fatalf("balance must be refunded, got %s", reloaded.CurrentBalance)
	}

	// Voiding again is a no-op.
	if _, err := p.svc.Void(ctx, p.storeID, p.cashier, serverID); err != nil {
		t.Fatalf("second void: %v", err)
	}
	if got := p.stockQty(t, productID); got != 5 {
		t.Fatalf("second void must not restock again, got %d", got)
	}
}

func TestListPaginatesWithCursor(t *testing.T) {
	t.Parallel()

	p := newPipeline(t)
	productID := p.seedProduct(t, "cup", 500, 50)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	sales := make([]Sale, 0, 5)
	for i := 0; i < 5; i++ {
		sales = append(sales, simpleSale("c-page-"+uuid.NewString(), productID, 1, 500, base.Add(time.Duration(i)*time.Second)))
	}
	if _, err := p.svc.Push(ctx, PushInput{StoreID: p.storeID, CashierID: p.cashier, Sales: sales}); err != nil {
		t.Fatalf("push: %v", err)
	}

	page, err := p.svc.List(ctx, p.storeID, pagination.Params{Limit: 3})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Transactions) != 3 || page.NextCursor == "" {
		t.Fatalf("expected 3 rows and a cursor, got %d and %q", len(page.Transactions), page.NextCursor)
	}

	rest, err := p.svc.List(ctx, p.storeID, pagination.Params{Limit: 3, Cursor: page.NextCursor})
	if err != nil {
		t.Fatalf("list page 2: %v", err)
	}
	if len(rest.Transactions) != 2 || rest.NextCursor != "" {
		t.Fatalf("expected trailing 2 rows, got %d and %q", len(rest.Transactions), rest.NextCursor)
	}

	seen := map[uuid.UUID]bool{}
	for _, txn := range append(page.Transactions, rest.Transactions...) {
		if seen[txn.ID] {
			t.Fatalf("transaction %s returned twice", txn.ID)
		}
		seen[txn.ID] = true
	}
}

func TestPushRejectsOversizedBatch(t *testing.T) {
	t.Parallel()

	p := newPipeline(t)
	productID := p.seedProduct(t, "spoon", 100, 1000)
	sales := make([]Sale, 0, 3)
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		sales = append(sales, simpleSale("c-big-"+uuid.NewString(), productID, 1, 100, base))
	}

	small, err := NewService(
		db.NewWithConn(p.conn), NewRepository(p.conn),
		mustStock(t, p.conn), mustVouchers(t, p.conn),
		catalog.NewRepository(p.conn), mustCatalog(t, p.conn), mustFeed(t, p.conn),
		nil, nil,
		logger.New(logger.Options{ServiceName: "ingest-test"}),
		config.SyncConfig{MaxBatchSize: 2},
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	_, err = small.Push(context.Background(), PushInput{StoreID: p.storeID, CashierID: p.cashier, Sales: sales})
	if err == nil {
		t.Fatal("expected batch size error")
	}
}

func mustStock(t *testing.T, conn *gorm.DB) stock.Service {
	t.Helper()
	svc, err := stock.NewService(stock.NewRepository(conn))
	if err != nil {
		t.Fatalf("stock service: %v", err)
	}
	return svc
}

func mustVouchers(t *testing.T, conn *gorm.DB) vouchers.Service {
	t.Helper()
	svc, err := vouchers.NewService(db.NewWithConn(conn), vouchers.NewRepository(conn))
	if err != nil {
		t.Fatalf("voucher service: %v", err)
	}
	return svc
}

func mustFeed(t *testing.T, conn *gorm.DB) feed.Service {
	t.Helper()
	svc, err := feed.NewService(feed.NewRepository(conn), catalog.NewRepository(conn), stock.NewRepository(conn), NewRepository(conn), nil, time.Second)
	if err != nil {
		t.Fatalf("feed service: %v", err)
	}
	return svc
}

func mustCatalog(t *testing.T, conn *gorm.DB) catalog.Service {
	t.Helper()
	svc, err := catalog.NewService(db.NewWithConn(conn), catalog.NewRepository(conn), mustStock(t, conn), mustFeed(t, conn))
	if err != nil {
		t.Fatalf("catalog service: %v", err)
	}
	return svc
}
