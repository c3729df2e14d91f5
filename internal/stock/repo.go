package stock

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tillpoint/tillpoint-backend/pkg/db/models"
)

// Repository manages persistence for stock entries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Get(ctx context.Context, storeID, productID uuid.UUID) (*models.StockEntry, error)
	// GetLocked reads the entry under a row lock so concurrent adjustments
	// on the same (store, product) serialize.
	GetLocked(ctx context.Context, storeID, productID uuid.UUID) (*models.StockEntry, error)
	ListByStore(ctx context.Context, storeID uuid.UUID) ([]models.StockEntry, error)
	ListByStoreAndProducts(ctx context.Context, storeID uuid.UUID, productIDs []uuid.UUID) ([]models.StockEntry, error)
	ListLowStock(ctx context.Context, storeID uuid.UUID) ([]models.StockEntry, error)
	Save(ctx context.Context, entry *models.StockEntry) error
	Upsert(ctx context.Context, entry *models.StockEntry) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a stock repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Get(ctx context.Context, storeID, productID uuid.UUID) (*models.StockEntry, error) {
	var entry models.StockEntry
	err := r.db.WithContext(ctx).
		Where("store_id = ? AND product_id = ?", storeID, productID).
		First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *repository) GetLocked(ctx context.Context, storeID, productID uuid.UUID) (*models.StockEntry, error) {
	var entry models.StockEntry
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("store_id = ? AND product_id = ?", storeID, productID).
		First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *repository) ListByStore(ctx context.Context, storeID uuid.UUID) ([]models.StockEntry, error) {
	var entries []models.StockEntry
	if err := r.db.WithContext(ctx).
		Where("store_id = ?", storeID).
		Order("product_id ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) ListByStoreAndProducts(ctx context.Context, storeID uuid.UUID, productIDs []uuid.UUID) ([]models.StockEntry, error) {
	if len(productIDs) == 0 {
		return nil, nil
	}
	var entries []models.StockEntry
	if err := r.db.WithContext(ctx).
		Where("store_id = ? AND product_id IN ?", storeID, productIDs).
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) ListLowStock(ctx context.Context, storeID uuid.UUID) ([]models.StockEntry, error) {
	var entries []models.StockEntry
	if err := r.db.WithContext(ctx).
		Where("store_id = ? AND quantity <= low_stock_threshold", storeID).
		Order("quantity ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) Save(ctx context.Context, entry *models.StockEntry) error {
	return r.db.WithContext(ctx).Save(entry).Error
}

func (r *repository) Upsert(ctx context.Context, entry *models.StockEntry) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "store_id"}, {Name: "product_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"quantity", "low_stock_threshold", "updated_at"}),
		}).
		Create(entry).Error
}
