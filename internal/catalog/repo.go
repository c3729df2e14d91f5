package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tillpoint/tillpoint-backend/pkg/db/models"
)

// Repository manages catalog reads and writes: stores, users, categories,
// products and discounts. It also serves as the entity loader for the change
// feed's pull and bootstrap answers.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	GetStore(ctx context.Context, id uuid.UUID) (*models.Store, error)
	// GetStoreLocked locks the store row; the sale pipeline claims
	// transaction numbers from its sequence under this lock.
	GetStoreLocked(ctx context.Context, id uuid.UUID) (*models.Store, error)
	SaveStore(ctx context.Context, store *models.Store) error

	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)

	CategoriesByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Category, error)
	ActiveCategories(ctx context.Context, storeID uuid.UUID) ([]models.Category, error)
	SaveCategory(ctx context.Context, category *models.Category) error
	DeleteCategory(ctx context.Context, id uuid.UUID) error

	ProductsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
	ActiveProducts(ctx context.Context, storeID uuid.UUID) ([]models.Product, error)
	SaveProduct(ctx context.Context, product *models.Product) error
	DeleteProduct(ctx context.Context, id uuid.UUID) error

	DiscountsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Discount, error)
	ActiveDiscounts(ctx context.Context, storeID uuid.UUID) ([]models.Discount, error)
	GetDiscountLocked(ctx context.Context, id uuid.UUID) (*models.Discount, error)
	SaveDiscount(ctx context.Context, discount *models.Discount) error
	DeleteDiscount(ctx context.Context, id uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a catalog repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) GetStore(ctx context.Context, id uuid.UUID) (*models.Store, error) {
	var store models.Store
	if err := r.db.WithContext(ctx).First(&store, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &store, nil
}

func (r *repository) GetStoreLocked(ctx context.Context, id uuid.UUID) (*models.Store, error) {
	var store models.Store
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&store, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &store, nil
}

func (r *repository) SaveStore(ctx context.Context, store *models.Store) error {
	if store.ID == uuid.Nil {
		store.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Save(store).Error
}

func (r *repository) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *repository) CategoriesByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Category, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var categories []models.Category
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&categories).Error; err != nil {
		return nil, err
	}
	return categories, nil
}

func (r *repository) ActiveCategories(ctx context.Context, storeID uuid.UUID) ([]models.Category, error) {
	var categories []models.Category
	if err := r.db.WithContext(ctx).
		Where("store_id = ? AND is_active = ?", storeID, true).
		Order("name ASC").
		Find(&categories).Error; err != nil {
		return nil, err
	}
	return categories, nil
}

func (r *repository) SaveCategory(ctx context.Context, category *models.Category) error {
	if category.ID == uuid.Nil {
		category.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Save(category).Error
}

func (r *repository) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Category{}, "id = ?", id).Error
}

func (r *repository) ProductsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var products []models.Product
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

func (r *repository) ActiveProducts(ctx context.Context, storeID uuid.UUID) ([]models.Product, error) {
	var products []models.Product
	if err := r.db.WithContext(ctx).
		Where("store_id = ? AND is_active = ?", storeID, true).
		Order("name ASC").
		Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

func (r *repository) SaveProduct(ctx context.Context, product *models.Product) error {
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Save(product).Error
}

func (r *repository) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Product{}, "id = ?", id).Error
}

func (r *repository) DiscountsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Discount, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var discounts []models.Discount
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&discounts).Error; err != nil {
		return nil, err
	}
	return discounts, nil
}

func (r *repository) ActiveDiscounts(ctx context.Context, storeID uuid.UUID) ([]models.Discount, error) {
	var discounts []models.Discount
	if err := r.db.WithContext(ctx).
		Where("store_id = ? AND is_active = ?", storeID, true).
		Order("name ASC").
		Find(&discounts).Error; err != nil {
		return nil, err
	}
	return discounts, nil
}

func (r *repository) GetDiscountLocked(ctx context.Context, id uuid.UUID) (*models.Discount, error) {
	var discount models.Discount
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&discount, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &discount, nil
}

func (r *repository) SaveDiscount(ctx context.Context, discount *models.Discount) error {
	if discount.ID == uuid.Nil {
		discount.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Save(discount).Error
}

func (r *repository) DeleteDiscount(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Discount{}, "id = ?", id).Error
}
