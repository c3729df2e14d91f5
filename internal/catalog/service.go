package catalog

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tillpoint/tillpoint-backend/internal/feed"
	"github.com/tillpoint/tillpoint-backend/internal/stock"
	"github.com/tillpoint/tillpoint-backend/pkg/db/models"
	"github.com/tillpoint/tillpoint-backend/pkg/enums"
	apperrors "github.com/tillpoint/tillpoint-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service applies catalog mutations as sync inputs: every write commits
// together with its change feed entry so terminals can catch up.
type Service interface {
	UpsertCategory(ctx context.Context, category *models.Category) (*models.Category, error)
	DeleteCategory(ctx context.Context, storeID, id uuid.UUID) error
	UpsertProduct(ctx context.Context, product *models.Product) (*models.Product, error)
	DeleteProduct(ctx context.Context, storeID, id uuid.UUID) error
	UpsertDiscount(ctx context.Context, discount *models.Discount) (*models.Discount, error)
	DeleteDiscount(ctx context.Context, storeID, id uuid.UUID) error
	// SetStockLevel writes an absolute stock level and records the change on
	// the sync feed in the same transaction.
	SetStockLevel(ctx context.Context, storeID, productID uuid.UUID, quantity, lowStockThreshold int) (*models.StockEntry, error)
	// IncrementDiscountUsage bumps the usage counter inside the caller's
	// transaction. Returns NotEligible when the counter is exhausted or the
	// discount expired.
	IncrementDiscountUsage(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Discount, error)
}

type service struct {
	tx    txRunner
	repo  Repository
	stock stock.Service
	feed  feed.Service
}

// NewService wires a catalog service.
func NewService(tx txRunner, repo Repository, stockSvc stock.Service, feedSvc feed.Service) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if stockSvc == nil {
		return nil, fmt.Errorf("stock service required")
	}
	if feedSvc == nil {
		return nil, fmt.Errorf("feed service required")
	}
	return &service{tx: tx, repo: repo, stock: stockSvc, feed: feedSvc}, nil
}

func (s *service) UpsertCategory(ctx context.Context, category *models.Category) (*models.Category, error) {
	if category == nil || category.StoreID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "store id is required")
	}
	if category.Name == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "category name is required")
	}

	action := enums.SyncActionUpdate
	if category.ID == uuid.Nil {
		action = enums.SyncActionCreate
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if serr := s.repo.WithTx(tx).SaveCategory(ctx, category); serr != nil {
			return serr
		}
		return s.feed.Record(ctx, tx, category.StoreID, enums.SyncEntityCategory, category.ID, action)
	})
	if err != nil {
		return nil, err
	}
	return category, nil
}

func (s *service) DeleteCategory(ctx context.Context, storeID, id uuid.UUID) error {
	if storeID == uuid.Nil || id == uuid.Nil {
		return apperrors.New(apperrors.CodeValidation, "store id and category id are required")
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if derr := s.repo.WithTx(tx).DeleteCategory(ctx, id); derr != nil {
			return derr
		}
		return s.feed.Record(ctx, tx, storeID, enums.SyncEntityCategory, id, enums.SyncActionDelete)
	})
}

func (s *service) UpsertProduct(ctx context.Context, product *models.Product) (*models.Product, error) {
	if product == nil || product.StoreID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "store id is required")
	}
	if product.Name == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "product name is required")
	}
	if product.Price.IsNegative() {
		return nil, apperrors.New(apperrors.CodeValidation, "price must not be negative")
	}

	action := enums.SyncActionUpdate
	if product.ID == uuid.Nil {
		action = enums.SyncActionCreate
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if serr := s.repo.WithTx(tx).SaveProduct(ctx, product); serr != nil {
			return serr
		}
		return s.feed.Record(ctx, tx, product.StoreID, enums.SyncEntityProduct, product.ID, action)
	})
	if err != nil {
		return nil, err
	}
	return product, nil
}

func (s *service) DeleteProduct(ctx context.Context, storeID, id uuid.UUID) error {
	if storeID == uuid.Nil || id == uuid.Nil {
		return apperrors.New(apperrors.CodeValidation, "store id and product id are required")
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if derr := s.repo.WithTx(tx).DeleteProduct(ctx, id); derr != nil {
			return derr
		}
		return s.feed.Record(ctx, tx, storeID, enums.SyncEntityProduct, id, enums.SyncActionDelete)
	})
}

func (s *service) UpsertDiscount(ctx context.Context, discount *models.Discount) (*models.Discount, error) {
	if discount == nil || discount.StoreID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "store id is required")
	}
	if !discount.Type.IsValid() {
		return nil, apperrors.New(apperrors.CodeValidation, fmt.Sprintf("invalid discount type %q", discount.Type))
	}
	if discount.Value.IsNegative() {
		return nil, apperrors.New(apperrors.CodeValidation, "discount value must not be negative")
	}

	action := enums.SyncActionUpdate
	if discount.ID == uuid.Nil {
		action = enums.SyncActionCreate
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if serr := s.repo.WithTx(tx).SaveDiscount(ctx, discount); serr != nil {
			return serr
		}
		return s.feed.Record(ctx, tx, discount.StoreID, enums.SyncEntityDiscount, discount.ID, action)
	})
	if err != nil {
		return nil, err
	}
	return discount, nil
}

func (s *service) DeleteDiscount(ctx context.Context, storeID, id uuid.UUID) error {
	if storeID == uuid.Nil || id == uuid.Nil {
		return apperrors.New(apperrors.CodeValidation, "store id and discount id are required")
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if derr := s.repo.WithTx(tx).DeleteDiscount(ctx, id); derr != nil {
			return derr
		}
		return s.feed.Record(ctx, tx, storeID, enums.SyncEntityDiscount, id, enums.SyncActionDelete)
	})
}

func (s *service) SetStockLevel(ctx context.Context, storeID, productID uuid.UUID, quantity, lowStockThreshold int) (*models.StockEntry, error) {
	var entry *models.StockEntry
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var serr error
		entry, serr = s.stock.WithTx(tx).SetLevel(ctx, storeID, productID, quantity, lowStockThreshold)
		if serr != nil {
			return serr
		}
		return s.feed.Record(ctx, tx, storeID, enums.SyncEntityStock, productID, enums.SyncActionUpdate)
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *service) IncrementDiscountUsage(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Discount, error) {
	if id == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "discount id is required")
	}

	repo := s.repo.WithTx(tx)
	discount, err := repo.GetDiscountLocked(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.New(apperrors.CodeNotFound, "discount not found")
		}
		return nil, err
	}
	if !discount.IsActive {
		return nil, apperrors.New(apperrors.CodeNotEligible, "discount is inactive")
	}
	if discount.MaxUsage != nil && discount.UsageCount >= *discount.MaxUsage {
		return nil, apperrors.New(apperrors.CodeNotEligible, "discount usage limit reached")
	}

	discount.UsageCount++
	if err := repo.SaveDiscount(ctx, discount); err != nil {
		return nil, err
	}
	return discount, nil
}
