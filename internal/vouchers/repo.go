package vouchers

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tillpoint/tillpoint-backend/pkg/db/models"
)

// Repository manages persistence for vouchers and their audit trail.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	GetByCode(ctx context.Context, code string) (*models.Voucher, error)
	// GetByCodeLocked reads the voucher under a row lock so concurrent
	// redemptions of the same code serialize.
	GetByCodeLocked(ctx context.Context, code string) (*models.Voucher, error)
	Create(ctx context.Context, voucher *models.Voucher) error
	Save(ctx context.Context, voucher *models.Voucher) error
	CreateAudit(ctx context.Context, entry *models.VoucherTransaction) error
	ListAudit(ctx context.Context, voucherID uuid.UUID) ([]models.VoucherTransaction, error)
	GetOrderLink(ctx context.Context, transactionID, voucherID uuid.UUID) (*models.OrderVoucher, error)
	ListOrderLinks(ctx context.Context, transactionID uuid.UUID) ([]models.OrderVoucher, error)
	CreateOrderLink(ctx context.Context, link *models.OrderVoucher) error
	GetByIDLocked(ctx context.Context, id uuid.UUID) (*models.Voucher, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a voucher repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) GetByCode(ctx context.Context, code string) (*models.Voucher, error) {
	var voucher models.Voucher
	err := r.db.WithContext(ctx).
		Where("code = ?", normalizeCode(code)).
		First(&voucher).Error
	if err != nil {
		return nil, err
	}
	return &voucher, nil
}

func (r *repository) GetByCodeLocked(ctx context.Context, code string) (*models.Voucher, error) {
	var voucher models.Voucher
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("code = ?", normalizeCode(code)).
		First(&voucher).Error
	if err != nil {
		return nil, err
	}
	return &voucher, nil
}

func (r *repository) Create(ctx context.Context, voucher *models.Voucher) error {
	if voucher.ID == uuid.Nil {
		voucher.ID = uuid.New()
	}
	voucher.Code = normalizeCode(voucher.Code)
	return r.db.WithContext(ctx).Create(voucher).Error
}

func (r *repository) Save(ctx context.Context, voucher *models.Voucher) error {
	return r.db.WithContext(ctx).Save(voucher).Error
}

func (r *repository) CreateAudit(ctx context.Context, entry *models.VoucherTransaction) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) ListAudit(ctx context.Context, voucherID uuid.UUID) ([]models.VoucherTransaction, error) {
	var entries []models.VoucherTransaction
	if err := r.db.WithContext(ctx).
		Where("voucher_id = ?", voucherID).
		Order("created_at ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) GetOrderLink(ctx context.Context, transactionID, voucherID uuid.UUID) (*models.OrderVoucher, error) {
	var link models.OrderVoucher
	err := r.db.WithContext(ctx).
		Where("transaction_id = ? AND voucher_id = ?", transactionID, voucherID).
		First(&link).Error
	if err != nil {
		return nil, err
	}
	return &link, nil
}

func (r *repository) ListOrderLinks(ctx context.Context, transactionID uuid.UUID) ([]models.OrderVoucher, error) {
	var links []models.OrderVoucher
	if err := r.db.WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		Find(&links).Error; err != nil {
		return nil, err
	}
	return links, nil
}

func (r *repository) GetByIDLocked(ctx context.Context, id uuid.UUID) (*models.Voucher, error) {
	var voucher models.Voucher
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&voucher, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &voucher, nil
}

func (r *repository) CreateOrderLink(ctx context.Context, link *models.OrderVoucher) error {
	if link.ID == uuid.Nil {
		link.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(link).Error
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
