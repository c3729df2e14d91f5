package stock

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tillpoint/tillpoint-backend/pkg/db/models"
	apperrors "github.com/tillpoint/tillpoint-backend/pkg/errors"
)

// Service is the stock ledger. All quantity mutations flow through Adjust so
// the non-negativity invariant holds under concurrent sales.
type Service interface {
	WithTx(tx *gorm.DB) Service
	Adjust(ctx context.Context, storeID, productID uuid.UUID, delta int) (int, error)
	CheckAvailability(ctx context.Context, storeID uuid.UUID, requests []ItemRequest) ([]Shortfall, error)
	SetLevel(ctx context.Context, storeID, productID uuid.UUID, quantity, lowStockThreshold int) (*models.StockEntry, error)
	Levels(ctx context.Context, storeID uuid.UUID) ([]models.StockEntry, error)
	EntriesFor(ctx context.Context, storeID uuid.UUID, productIDs []uuid.UUID) ([]models.StockEntry, error)
	LowStock(ctx context.Context, storeID uuid.UUID) ([]models.StockEntry, error)
}

// ItemRequest asks whether quantity units of a product are on hand.
type ItemRequest struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

// Shortfall reports one line item the store cannot cover.
type Shortfall struct {
	ProductID uuid.UUID `json:"product_id"`
	Requested int       `json:"requested"`
	Available int       `json:"available"`
}

type service struct {
	repo Repository
}

// NewService wires a stock ledger with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("stock repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) WithTx(tx *gorm.DB) Service {
	if tx == nil {
		return s
	}
	return &service{repo: s.repo.WithTx(tx)}
}

// Adjust applies delta to the entry under a row lock and returns the new
// quantity. Negative delta is a sale, positive a void or restock. The write
// never persists a negative quantity.
func (s *service) Adjust(ctx context.Context, storeID, productID uuid.UUID, delta int) (int, error) {
	if storeID == uuid.Nil {
		return 0, apperrors.New(apperrors.CodeValidation, "store id is required")
	}
	if productID == uuid.Nil {
		return 0, apperrors.New(apperrors.CodeValidation, "product id is required")
	}

	entry, err := s.repo.GetLocked(ctx, storeID, productID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return 0, apperrors.New(apperrors.CodeInsufficientStock, "no stock entry for product").
				WithDetails([]Shortfall{{ProductID: productID, Requested: -delta, Available: 0}})
		}
		return 0, err
	}

	next := entry.Quantity + delta
	if next < 0 {
		return 0, apperrors.New(apperrors.CodeInsufficientStock, "insufficient stock").
			WithDetails([]Shortfall{{ProductID: productID, Requested: -delta, Available: entry.Quantity}})
	}

	entry.Quantity = next
	if err := s.repo.Save(ctx, entry); err != nil {
		return 0, err
	}
	return next, nil
}

// CheckAvailability reports every shortfall in the request set. A nil slice
// means the whole request can be covered. Reads are unlocked; callers that
// commit against the result must re-check via Adjust inside their transaction.
func (s *service) CheckAvailability(ctx context.Context, storeID uuid.UUID, requests []ItemRequest) ([]Shortfall, error) {
	if storeID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "store id is required")
	}

	productIDs := make([]uuid.UUID, 0, len(requests))
	for _, req := range requests {
		if req.Quantity <= 0 {
			return nil, apperrors.New(apperrors.CodeValidation,
				fmt.Sprintf("invalid quantity %d for product %s", req.Quantity, req.ProductID))
		}
		productIDs = append(productIDs, req.ProductID)
	}

	entries, err := s.repo.ListByStoreAndProducts(ctx, storeID, productIDs)
	if err != nil {
		return nil, err
	}
	available := make(map[uuid.UUID]int, len(entries))
	for _, entry := range entries {
		available[entry.ProductID] = entry.Quantity
	}

	var shortfalls []Shortfall
	for _, req := range requests {
		have := available[req.ProductID]
		if have < req.Quantity {
			shortfalls = append(shortfalls, Shortfall{
				ProductID: req.ProductID,
				Requested: req.Quantity,
				Available: have,
			})
		}
	}
	return shortfalls, nil
}

// SetLevel writes an absolute quantity, creating the entry if missing. Used
// by catalog imports and manual corrections, not by sales.
func (s *service) SetLevel(ctx context.Context, storeID, productID uuid.UUID, quantity, lowStockThreshold int) (*models.StockEntry, error) {
	if storeID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "store id is required")
	}
	if productID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "product id is required")
	}
	if quantity < 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "quantity must not be negative")
	}

	entry := &models.StockEntry{
		StoreID:           storeID,
		ProductID:         productID,
		Quantity:          quantity,
		LowStockThreshold: lowStockThreshold,
	}
	if err := s.repo.Upsert(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *service) Levels(ctx context.Context, storeID uuid.UUID) ([]models.StockEntry, error) {
	if storeID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "store id is required")
	}
	return s.repo.ListByStore(ctx, storeID)
}

func (s *service) EntriesFor(ctx context.Context, storeID uuid.UUID, productIDs []uuid.UUID) ([]models.StockEntry, error) {
	if storeID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "store id is required")
	}
	if len(productIDs) == 0 {
		return nil, nil
	}
	return s.repo.ListByStoreAndProducts(ctx, storeID, productIDs)
}

func (s *service) LowStock(ctx context.Context, storeID uuid.UUID) ([]models.StockEntry, error) {
	if storeID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "store id is required")
	}
	return s.repo.ListLowStock(ctx, storeID)
}
