package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionItem is a denormalized line item snapshot, immutable after commit.
type TransactionItem struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	TransactionID  uuid.UUID       `gorm:"column:transaction_id;type:uuid;not null;index"`
	ProductID      uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	ProductSKU     string          `gorm:"column:product_sku;not null"`
	ProductName    string          `gorm:"column:product_name;not null"`
	Quantity       int             `gorm:"column:quantity;not null"`
	UnitPrice      decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	DiscountAmount decimal.Decimal `gorm:"column:discount_amount;type:numeric(12,2);not null"`
	Total          decimal.Decimal `gorm:"column:total;type:numeric(12,2);not null"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
}
