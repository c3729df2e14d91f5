package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tillpoint/tillpoint-backend/internal/catalog"
	"github.com/tillpoint/tillpoint-backend/internal/feed"
	"github.com/tillpoint/tillpoint-backend/internal/stock"
	"github.com/tillpoint/tillpoint-backend/internal/vouchers"
	"github.com/tillpoint/tillpoint-backend/pkg/config"
	"github.com/tillpoint/tillpoint-backend/pkg/db"
	"github.com/tillpoint/tillpoint-backend/pkg/db/models"
	"github.com/tillpoint/tillpoint-backend/pkg/enums"
	apperrors "github.com/tillpoint/tillpoint-backend/pkg/errors"
	"github.com/tillpoint/tillpoint-backend/pkg/logger"
	"github.com/tillpoint/tillpoint-backend/pkg/metrics"
	"github.com/tillpoint/tillpoint-backend/pkg/pagination"
	"github.com/tillpoint/tillpoint-backend/pkg/redis"
)

// moneyTolerance absorbs terminal-side rounding when cross-checking totals.
var moneyTolerance = decimal.NewFromFloat(0.01)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service is the push ingestion pipeline: it settles batches of
// offline-completed sales idempotently and exposes the settled transactions.
type Service interface {
	Push(ctx context.Context, input PushInput) (*PushResult, error)
	Get(ctx context.Context, storeID, id uuid.UUID) (*models.Transaction, error)
	List(ctx context.Context, storeID uuid.UUID, params pagination.Params) (*TransactionPage, error)
	Void(ctx context.Context, storeID, cashierID, id uuid.UUID) (*models.Transaction, error)
	CountByStatus(ctx context.Context, storeID uuid.UUID) (map[enums.TransactionStatus]int64, error)
}

// SaleItem is one terminal line item. Unit price and line discount are the
// terminal's values at sale time; product name and sku are snapshotted server
// side.
type SaleItem struct {
	ProductID      uuid.UUID       `json:"product_id" validate:"required"`
	Quantity       int             `json:"quantity" validate:"required,gt=0"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
}

// SalePayment is one tender of a split payment.
type SalePayment struct {
	Method enums.PaymentMethod `json:"method" validate:"required"`
	Amount decimal.Decimal     `json:"amount"`
}

// SaleVoucher attaches a voucher redemption to a sale.
type SaleVoucher struct {
	Code          string          `json:"code" validate:"required"`
	AmountApplied decimal.Decimal `json:"amount_applied"`
}

// Sale is one offline-completed sale in a push batch.
type Sale struct {
	ClientID        string              `json:"client_id" validate:"required"`
	Items           []SaleItem          `json:"items" validate:"required,min=1,dive"`
	PaymentMethod   enums.PaymentMethod `json:"payment_method" validate:"required"`
	Payments        []SalePayment       `json:"payments,omitempty" validate:"omitempty,dive"`
	Subtotal        decimal.Decimal     `json:"subtotal"`
	TaxAmount       decimal.Decimal     `json:"tax_amount"`
	DiscountAmount  decimal.Decimal     `json:"discount_amount"`
	DiscountID      *uuid.UUID          `json:"discount_id,omitempty"`
	Total           decimal.Decimal     `json:"total"`
	ClientTimestamp time.Time           `json:"client_timestamp" validate:"required"`
	Vouchers        []SaleVoucher       `json:"vouchers,omitempty" validate:"omitempty,dive"`
}

// PushInput is one terminal push batch.
type PushInput struct {
	StoreID   uuid.UUID
	CashierID uuid.UUID
	Sales     []Sale
}

// SyncedSale maps a terminal client id to its settled server identity.
type SyncedSale struct {
	ClientID          string    `json:"client_id"`
	ServerID          uuid.UUID `json:"server_id"`
	TransactionNumber string    `json:"transaction_number"`
}

// RejectedSale reports one sale the pipeline refused, with itemized stock
// shortfalls when that was the cause.
type RejectedSale struct {
	ClientID    string            `json:"client_id"`
	Reason      string            `json:"reason"`
	StockIssues []stock.Shortfall `json:"stock_issues,omitempty"`
}

// StockUpdate reports the resulting quantity after a settled sale. LowStock
// is set when the quantity sits at or below a configured threshold.
type StockUpdate struct {
	ProductID   uuid.UUID `json:"product_id"`
	NewQuantity int       `json:"new_quantity"`
	LowStock    bool      `json:"low_stock,omitempty"`
}

// PushResult is the batch outcome the terminal uses to purge its outbox.
type PushResult struct {
	Synced       []SyncedSale   `json:"synced"`
	Rejected     []RejectedSale `json:"rejected"`
	StockUpdates []StockUpdate  `json:"stock_updates"`
}

// TransactionPage is one cursor page of settled transactions.
type TransactionPage struct {
	Transactions []models.Transaction `json:"transactions"`
	NextCursor   string               `json:"next_cursor,omitempty"`
}

type service struct {
	tx       txRunner
	repo     Repository
	stock    stock.Service
	vouchers vouchers.Service
	catRepo  catalog.Repository
	catSvc   catalog.Service
	feed     feed.Service
	cache    *redis.Client
	metrics  *metrics.SyncMetrics
	logg     *logger.Logger
	cfg      config.SyncConfig
	now      func() time.Time
}

// NewService wires the push ingestion pipeline. cache and metrics may be nil.
func NewService(
	tx txRunner,
	repo Repository,
	stockSvc stock.Service,
	voucherSvc vouchers.Service,
	catRepo catalog.Repository,
	catSvc catalog.Service,
	feedSvc feed.Service,
	cache *redis.Client,
	syncMetrics *metrics.SyncMetrics,
	logg *logger.Logger,
	cfg config.SyncConfig,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("transaction repository required")
	}
	if stockSvc == nil {
		return nil, fmt.Errorf("stock service required")
	}
	if voucherSvc == nil {
		return nil, fmt.Errorf("voucher service required")
	}
	if catRepo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if catSvc == nil {
		return nil, fmt.Errorf("catalog service required")
	}
	if feedSvc == nil {
		return nil, fmt.Errorf("feed service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		tx:       tx,
		repo:     repo,
		stock:    stockSvc,
		vouchers: voucherSvc,
		catRepo:  catRepo,
		catSvc:   catSvc,
		feed:     feedSvc,
		cache:    cache,
		metrics:  syncMetrics,
		logg:     logg,
		cfg:      cfg,
		now:      time.Now,
	}, nil
}

// Push settles one batch. Sales are processed oldest clientTimestamp first so
// stock effects follow causal order even when the upload was out of order.
// Each sale commits or fails independently; one bad sale never aborts its
// siblings.
func (s *service) Push(ctx context.Context, input PushInput) (*PushResult, error) {
	if input.StoreID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "store id is required")
	}
	if input.CashierID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "cashier id is required")
	}
	if len(input.Sales) == 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "batch is empty")
	}
	if s.cfg.MaxBatchSize > 0 && len(input.Sales) > s.cfg.MaxBatchSize {
		return nil, apperrors.New(apperrors.CodeValidation,
			fmt.Sprintf("batch exceeds %d sales", s.cfg.MaxBatchSize))
	}

	started := s.now()
	ctx = s.logg.WithStoreID(ctx, input.StoreID.String())

	sales := make([]Sale, len(input.Sales))
	copy(sales, input.Sales)
	sort.SliceStable(sales, func(i, j int) bool {
		return sales[i].ClientTimestamp.Before(sales[j].ClientTimestamp)
	})

	result := &PushResult{
		Synced:   []SyncedSale{},
		Rejected: []RejectedSale{},
	}
	stockLevels := map[uuid.UUID]int{}

	for _, sale := range sales {
		s.processSale(ctx, input, sale, result, stockLevels)
	}

	thresholds := s.lowStockThresholds(ctx, input.StoreID, stockLevels)
	for productID, qty := range stockLevels {
		threshold, tracked := thresholds[productID]
		result.StockUpdates = append(result.StockUpdates, StockUpdate{
			ProductID:   productID,
			NewQuantity: qty,
			LowStock:    tracked && qty <= threshold,
		})
	}
	sort.Slice(result.StockUpdates, func(i, j int) bool {
		return result.StockUpdates[i].ProductID.String() < result.StockUpdates[j].ProductID.String()
	})

	s.metrics.ObservePushDuration(input.StoreID.String(), s.now().Sub(started))
	return result, nil
}

// lowStockThresholds maps touched products to their alert thresholds.
// Products without a positive threshold are omitted. Lookup failures only
// suppress the flag; the push result is already settled.
func (s *service) lowStockThresholds(ctx context.Context, storeID uuid.UUID, stockLevels map[uuid.UUID]int) map[uuid.UUID]int {
	if len(stockLevels) == 0 {
		return nil
	}

	productIDs := make([]uuid.UUID, 0, len(stockLevels))
	for productID := range stockLevels {
		productIDs = append(productIDs, productID)
	}

	entries, err := s.stock.EntriesFor(ctx, storeID, productIDs)
	if err != nil {
		s.logg.Warn(ctx, fmt.Sprintf("low stock lookup failed: %v", err))
		return nil
	}

	thresholds := make(map[uuid.UUID]int, len(entries))
	for _, entry := range entries {
		if entry.LowStockThreshold > 0 {
			thresholds[entry.ProductID] = entry.LowStockThreshold
		}
	}
	return thresholds
}

func (s *service) processSale(ctx context.Context, input PushInput, sale Sale, result *PushResult, stockLevels map[uuid.UUID]int) {
	ctx = s.logg.WithClientID(ctx, sale.ClientID)

	synced, err := s.settleSale(ctx, input, sale, stockLevels)
	if err == nil {
		result.Synced = append(result.Synced, *synced)
		return
	}

	typed := apperrors.As(err)
	if typed == nil {
		s.logg.Error(ctx, "sale settlement failed", err)
		s.metrics.IncPushSale("failed")
		result.Rejected = append(result.Rejected, RejectedSale{
			ClientID: sale.ClientID,
			Reason:   "internal processing error",
		})
		return
	}

	rejected := RejectedSale{ClientID: sale.ClientID, Reason: typed.Message()}
	if typed.Code() == apperrors.CodeInsufficientStock {
		if issues, ok := typed.Details().([]stock.Shortfall); ok {
			rejected.StockIssues = issues
		}
	}
	s.metrics.IncPushSale("rejected")
	result.Rejected = append(result.Rejected, rejected)
}

type cachedPushResult struct {
	ServerID          uuid.UUID `json:"server_id"`
	TransactionNumber string    `json:"transaction_number"`
}

func (s *service) settleSale(ctx context.Context, input PushInput, sale Sale, stockLevels map[uuid.UUID]int) (*SyncedSale, error) {
	if sale.ClientID == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "client id is required")
	}
	if len(sale.Items) == 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "sale has no items")
	}
	if sale.ClientTimestamp.IsZero() {
		return nil, apperrors.New(apperrors.CodeValidation, "client timestamp is required")
	}
	if !sale.PaymentMethod.IsValid() {
		return nil, apperrors.New(apperrors.CodeValidation,
			fmt.Sprintf("invalid payment method %q", sale.PaymentMethod))
	}

	// Settled results are cached per client id; replays skip the database
	// entirely.
	if cached := s.cachedResult(ctx, input.StoreID, sale.ClientID); cached != nil {
		s.metrics.IncPushSale("duplicate")
		return &SyncedSale{
			ClientID:          sale.ClientID,
			ServerID:          cached.ServerID,
			TransactionNumber: cached.TransactionNumber,
		}, nil
	}

	expected := sale.Subtotal.Sub(sale.DiscountAmount).Add(sale.TaxAmount)
	if expected.Sub(sale.Total).Abs().GreaterThan(moneyTolerance) {
		return nil, apperrors.New(apperrors.CodeValidation, "total does not reconcile with subtotal, discount and tax")
	}

	var synced *SyncedSale
	duplicate := false
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		// Idempotency: one settled transaction per client id, no matter how
		// often the batch is replayed.
		if existing, gerr := repo.GetByClientID(ctx, sale.ClientID); gerr == nil {
			synced = &SyncedSale{
				ClientID:          sale.ClientID,
				ServerID:          existing.ID,
				TransactionNumber: existing.TransactionNumber,
			}
			duplicate = true
			return nil
		} else if gerr != gorm.ErrRecordNotFound {
			return gerr
		}

		txn, serr := s.commitSale(ctx, tx, input, sale, stockLevels)
		if serr != nil {
			return serr
		}
		synced = &SyncedSale{
			ClientID:          sale.ClientID,
			ServerID:          txn.ID,
			TransactionNumber: txn.TransactionNumber,
		}
		return nil
	})
	if err != nil {
		// A concurrent replay can slip past the read and hit the unique
		// index; resolve it as the idempotent success it is.
		if db.IsUniqueViolation(err, "") {
			if existing, gerr := s.repo.GetByClientID(ctx, sale.ClientID); gerr == nil {
				s.metrics.IncPushSale("duplicate")
				return &SyncedSale{
					ClientID:          sale.ClientID,
					ServerID:          existing.ID,
					TransactionNumber: existing.TransactionNumber,
				}, nil
			}
		}
		return nil, err
	}

	if duplicate {
		s.metrics.IncPushSale("duplicate")
	} else {
		s.metrics.IncPushSale("accepted")
	}
	s.cacheResult(ctx, input.StoreID, sale.ClientID, synced)
	return synced, nil
}

// commitSale performs the all-or-nothing settlement of one sale inside tx.
func (s *service) commitSale(ctx context.Context, tx *gorm.DB, input PushInput, sale Sale, stockLevels map[uuid.UUID]int) (*models.Transaction, error) {
	catRepo := s.catRepo.WithTx(tx)
	stockSvc := s.stock.WithTx(tx)

	if _, err := catRepo.GetUser(ctx, input.CashierID); err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.New(apperrors.CodeValidation, "unknown cashier")
		}
		return nil, err
	}

	products, err := s.loadProducts(ctx, catRepo, input.StoreID, sale.Items)
	if err != nil {
		return nil, err
	}

	requests := make([]stock.ItemRequest, 0, len(sale.Items))
	for _, item := range sale.Items {
		requests = append(requests, stock.ItemRequest{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	shortfalls, err := stockSvc.CheckAvailability(ctx, input.StoreID, requests)
	if err != nil {
		return nil, err
	}
	if len(shortfalls) > 0 {
		return nil, apperrors.New(apperrors.CodeInsufficientStock, "insufficient stock").
			WithDetails(shortfalls)
	}

	number, err := s.claimTransactionNumber(ctx, catRepo, input.StoreID)
	if err != nil {
		return nil, err
	}

	txn := &models.Transaction{
		ID:                uuid.New(),
		ClientID:          sale.ClientID,
		StoreID:           input.StoreID,
		CashierID:         input.CashierID,
		TransactionNumber: number,
		Subtotal:          sale.Subtotal,
		TaxAmount:         sale.TaxAmount,
		DiscountAmount:    sale.DiscountAmount,
		Total:             sale.Total,
		PaymentMethod:     sale.PaymentMethod,
		IsSplitPayment:    len(sale.Payments) > 1,
		DiscountID:        sale.DiscountID,
		Status:            enums.TransactionStatusCompleted,
		ClientTimestamp:   sale.ClientTimestamp.UTC(),
	}
	for _, item := range sale.Items {
		product := products[item.ProductID]
		lineTotal := item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))).Sub(item.DiscountAmount)
		txn.Items = append(txn.Items, models.TransactionItem{
			ProductID:      item.ProductID,
			ProductSKU:     product.SKU,
			ProductName:    product.Name,
			Quantity:       item.Quantity,
			UnitPrice:      item.UnitPrice,
			DiscountAmount: item.DiscountAmount,
			Total:          lineTotal,
		})
	}
	payments, err := salePayments(sale)
	if err != nil {
		return nil, err
	}
	txn.Payments = payments

	if err := s.repo.WithTx(tx).Create(ctx, txn); err != nil {
		return nil, err
	}

	// Locked decrements; a concurrent sale that won the race surfaces here
	// as a shortfall and rolls the whole sale back.
	for _, item := range sale.Items {
		newQty, aerr := stockSvc.Adjust(ctx, input.StoreID, item.ProductID, -item.Quantity)
		if aerr != nil {
			return nil, aerr
		}
		stockLevels[item.ProductID] = newQty
		if ferr := s.feed.Record(ctx, tx, input.StoreID, enums.SyncEntityStock, item.ProductID, enums.SyncActionUpdate); ferr != nil {
			return nil, ferr
		}
	}

	// The discount counter and voucher redemptions are best effort: their
	// failure is logged but never rolls back a sale the cashier already
	// completed.
	if sale.DiscountID != nil {
		s.applyDiscount(ctx, tx, input.StoreID, *sale.DiscountID)
	}
	for i, voucher := range sale.Vouchers {
		s.applyVoucher(ctx, tx, input, sale, txn.ID, i, voucher)
	}

	return txn, nil
}

func (s *service) loadProducts(ctx context.Context, catRepo catalog.Repository, storeID uuid.UUID, items []SaleItem) (map[uuid.UUID]models.Product, error) {
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, apperrors.New(apperrors.CodeValidation,
				fmt.Sprintf("invalid quantity %d for product %s", item.Quantity, item.ProductID))
		}
		if item.UnitPrice.IsNegative() {
			return nil, apperrors.New(apperrors.CodeValidation, "unit price must not be negative")
		}
		ids = append(ids, item.ProductID)
	}

	rows, err := catRepo.ProductsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	products := make(map[uuid.UUID]models.Product, len(rows))
	for _, p := range rows {
		products[p.ID] = p
	}
	for _, item := range items {
		product, ok := products[item.ProductID]
		if !ok || product.StoreID != storeID {
			return nil, apperrors.New(apperrors.CodeValidation,
				fmt.Sprintf("unknown product %s", item.ProductID))
		}
	}
	return products, nil
}

// claimTransactionNumber advances the store's sale sequence under the store
// row lock and renders the human-readable number.
func (s *service) claimTransactionNumber(ctx context.Context, catRepo catalog.Repository, storeID uuid.UUID) (string, error) {
	store, err := catRepo.GetStoreLocked(ctx, storeID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return "", apperrors.New(apperrors.CodeValidation, "unknown store")
		}
		return "", err
	}
	store.TxnSeq++
	if err := catRepo.SaveStore(ctx, store); err != nil {
		return "", err
	}
	return fmt.Sprintf("INV-%s-%06d", store.Code, store.TxnSeq), nil
}

func salePayments(sale Sale) ([]models.TransactionPayment, error) {
	if len(sale.Payments) == 0 {
		return []models.TransactionPayment{{
			Method: sale.PaymentMethod,
			Amount: sale.Total,
		}}, nil
	}

	sum := decimal.Zero
	out := make([]models.TransactionPayment, 0, len(sale.Payments))
	for _, payment := range sale.Payments {
		if !payment.Method.IsValid() {
			return nil, apperrors.New(apperrors.CodeValidation,
				fmt.Sprintf("invalid payment method %q", payment.Method))
		}
		if payment.Amount.IsNegative() {
			return nil, apperrors.New(apperrors.CodeValidation, "payment amount must not be negative")
		}
		sum = sum.Add(payment.Amount)
		out = append(out, models.TransactionPayment{Method: payment.Method, Amount: payment.Amount})
	}
	if sum.LessThan(sale.Total) {
		return nil, apperrors.New(apperrors.CodeValidation, "payments do not cover the total")
	}
	return out, nil
}

func (s *service) applyDiscount(ctx context.Context, tx *gorm.DB, storeID, discountID uuid.UUID) {
	sp := "sale_discount"
	tx.SavePoint(sp)
	if _, err := s.catSvc.IncrementDiscountUsage(ctx, tx, discountID); err != nil {
		tx.RollbackTo(sp)
		s.logg.Warn(s.logg.WithField(ctx, "discount_id", discountID.String()),
			"discount usage increment skipped: "+err.Error())
	}
}

// applyVoucher redeems under a savepoint so a failed redemption leaves the
// sale itself committed.
func (s *service) applyVoucher(ctx context.Context, tx *gorm.DB, input PushInput, sale Sale, orderID uuid.UUID, idx int, voucher SaleVoucher) {
	cartItems := make([]vouchers.CartItem, 0, len(sale.Items))
	for _, item := range sale.Items {
		cartItems = append(cartItems, vouchers.CartItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}

	sp := fmt.Sprintf("sale_voucher_%d", idx)
	tx.SavePoint(sp)
	_, err := s.vouchers.UseInTx(ctx, tx, vouchers.UseInput{
		StoreID:       input.StoreID,
		Code:          voucher.Code,
		OrderID:       orderID,
		CartItems:     cartItems,
		AmountApplied: voucher.AmountApplied,
	})
	if err != nil {
		tx.RollbackTo(sp)
		s.logg.Warn(s.logg.WithField(ctx, "voucher_code", voucher.Code),
			"voucher redemption skipped: "+err.Error())
	}
}

func (s *service) cachedResult(ctx context.Context, storeID uuid.UUID, clientID string) *cachedPushResult {
	if s.cache == nil {
		return nil
	}
	raw, err := s.cache.Get(ctx, s.cache.PushResultKey(storeID.String(), clientID))
	if err != nil {
		return nil
	}
	var cached cachedPushResult
	if err := json.Unmarshal([]byte(raw), &cached); err != nil {
		return nil
	}
	return &cached
}

func (s *service) cacheResult(ctx context.Context, storeID uuid.UUID, clientID string, synced *SyncedSale) {
	if s.cache == nil || synced == nil {
		return
	}
	raw, err := json.Marshal(cachedPushResult{
		ServerID:          synced.ServerID,
		TransactionNumber: synced.TransactionNumber,
	})
	if err != nil {
		return
	}
	key := s.cache.PushResultKey(storeID.String(), clientID)
	if err := s.cache.Set(ctx, key, string(raw), s.cfg.PushResultCacheTTL); err != nil {
		s.logg.Warn(ctx, "push result cache write failed: "+err.Error())
	}
}

func (s *service) Get(ctx context.Context, storeID, id uuid.UUID) (*models.Transaction, error) {
	if id == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "transaction id is required")
	}
	txn, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.New(apperrors.CodeNotFound, "transaction not found")
		}
		return nil, err
	}
	if storeID != uuid.Nil && txn.StoreID != storeID {
		return nil, apperrors.New(apperrors.CodeNotFound, "transaction not found")
	}
	return txn, nil
}

func (s *service) List(ctx context.Context, storeID uuid.UUID, params pagination.Params) (*TransactionPage, error) {
	if storeID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "store id is required")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeValidation, err, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	txns, err := s.repo.ListByStore(ctx, storeID, limit+1, cursor)
	if err != nil {
		return nil, err
	}

	page := &TransactionPage{}
	if len(txns) > limit {
		txns = txns[:limit]
		last := txns[len(txns)-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}
	page.Transactions = txns
	return page, nil
}

// Void flips a completed transaction to voided, restocks every line item and
// reverses voucher redemptions, all in one transaction.
func (s *service) Void(ctx context.Context, storeID, cashierID, id uuid.UUID) (*models.Transaction, error) {
	if id == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "transaction id is required")
	}
	if cashierID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "cashier id is required")
	}

	var voided *models.Transaction
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		stockSvc := s.stock.WithTx(tx)

		txn, gerr := repo.GetByID(ctx, id)
		if gerr != nil {
			if gerr == gorm.ErrRecordNotFound {
				return apperrors.New(apperrors.CodeNotFound, "transaction not found")
			}
			return gerr
		}
		if storeID != uuid.Nil && txn.StoreID != storeID {
			return apperrors.New(apperrors.CodeNotFound, "transaction not found")
		}
		if txn.Status == enums.TransactionStatusVoided {
			voided = txn
			return nil
		}
		if txn.Status != enums.TransactionStatusCompleted {
			return apperrors.New(apperrors.CodeConflict,
				fmt.Sprintf("cannot void transaction in status %q", txn.Status))
		}

		for _, item := range txn.Items {
			if _, aerr := stockSvc.Adjust(ctx, txn.StoreID, item.ProductID, item.Quantity); aerr != nil {
				return aerr
			}
			if ferr := s.feed.Record(ctx, tx, txn.StoreID, enums.SyncEntityStock, item.ProductID, enums.SyncActionUpdate); ferr != nil {
				return ferr
			}
		}

		if verr := s.vouchers.RefundOrder(ctx, tx, txn.ID); verr != nil {
			return verr
		}

		txn.Status = enums.TransactionStatusVoided
		if serr := repo.Save(ctx, txn); serr != nil {
			return serr
		}
		voided = txn
		return nil
	})
	if err != nil {
		return nil, err
	}
	return voided, nil
}

func (s *service) CountByStatus(ctx context.Context, storeID uuid.UUID) (map[enums.TransactionStatus]int64, error) {
	return s.repo.CountByStatus(ctx, storeID)
}
