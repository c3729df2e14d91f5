package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tillpoint/tillpoint-backend/pkg/enums"
)

// Discount is a store-level promotional discount applied at sale time.
// UsageCount is incremented inside the sale's commit transaction.
type Discount struct {
	ID         uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	StoreID    uuid.UUID          `gorm:"column:store_id;type:uuid;not null;index"`
	Name       string             `gorm:"column:name;not null"`
	Type       enums.DiscountType `gorm:"column:type;not null"`
	Value      decimal.Decimal    `gorm:"column:value;type:numeric(12,2);not null"`
	UsageCount int                `gorm:"column:usage_count;not null;default:0"`
	MaxUsage   *int               `gorm:"column:max_usage"`
	IsActive   bool               `gorm:"column:is_active;not null;default:true"`
	ExpiresAt  *time.Time         `gorm:"column:expires_at"`
	CreatedAt  time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
