package ingest

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tillpoint/tillpoint-backend/pkg/db/models"
	"github.com/tillpoint/tillpoint-backend/pkg/enums"
	"github.com/tillpoint/tillpoint-backend/pkg/pagination"
)

// Repository manages settled transactions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	GetByClientID(ctx context.Context, clientID string) (*models.Transaction, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	Create(ctx context.Context, txn *models.Transaction) error
	Save(ctx context.Context, txn *models.Transaction) error
	ListByStore(ctx context.Context, storeID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Transaction, error)
	CountByStatus(ctx context.Context, storeID uuid.UUID) (map[enums.TransactionStatus]int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a transaction repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) GetByClientID(ctx context.Context, clientID string) (*models.Transaction, error) {
	var txn models.Transaction
	err := r.db.WithContext(ctx).
		Where("client_id = ?", clientID).
		First(&txn).Error
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	var txn models.Transaction
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Payments").
		First(&txn, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *repository) Create(ctx context.Context, txn *models.Transaction) error {
	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}
	for i := range txn.Items {
		if txn.Items[i].ID == uuid.Nil {
			txn.Items[i].ID = uuid.New()
		}
		txn.Items[i].TransactionID = txn.ID
	}
	for i := range txn.Payments {
		if txn.Payments[i].ID == uuid.Nil {
			txn.Payments[i].ID = uuid.New()
		}
		txn.Payments[i].TransactionID = txn.ID
	}
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *repository) Save(ctx context.Context, txn *models.Transaction) error {
	return r.db.WithContext(ctx).Omit("Items", "Payments").Save(txn).Error
}

func (r *repository) ListByStore(ctx context.Context, storeID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Transaction, error) {
	query := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Payments").
		Where("store_id = ?", storeID).
		Order("created_at DESC, id DESC").
		Limit(limit)
	if cursor != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}
	var txns []models.Transaction
	if err := query.Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}

func (r *repository) CountByStatus(ctx context.Context, storeID uuid.UUID) (map[enums.TransactionStatus]int64, error) {
	type row struct {
		Status enums.TransactionStatus
		Count  int64
	}
	var rows []row
	if err := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Select("status, COUNT(*) AS count").
		Where("store_id = ?", storeID).
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	counts := make(map[enums.TransactionStatus]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}
