package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	dbtypes "github.com/tillpoint/tillpoint-backend/pkg/db/types"
	"github.com/tillpoint/tillpoint-backend/pkg/enums"
)

// Voucher is a redeemable code. Gift cards carry a monotonically decreasing
// balance; promotional vouchers are single use and carry discount rules.
type Voucher struct {
	ID             uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	StoreID        uuid.UUID           `gorm:"column:store_id;type:uuid;not null;index"`
	Code           string              `gorm:"column:code;not null;uniqueIndex:ux_vouchers_code"`
	Type           enums.VoucherType   `gorm:"column:type;not null"`
	Status         enums.VoucherStatus `gorm:"column:status;not null;default:'active'"`
	InitialBalance decimal.Decimal     `gorm:"column:initial_balance;type:numeric(12,2);not null"`
	CurrentBalance decimal.Decimal     `gorm:"column:current_balance;type:numeric(12,2);not null"`

	// Promotional discount rules; unused for gift cards.
	DiscountType       enums.DiscountType `gorm:"column:discount_type"`
	DiscountValue      decimal.Decimal    `gorm:"column:discount_value;type:numeric(12,2)"`
	MaxDiscount        *decimal.Decimal   `gorm:"column:max_discount;type:numeric(12,2)"`
	MinPurchase        *decimal.Decimal   `gorm:"column:min_purchase;type:numeric(12,2)"`
	Scope              enums.VoucherScope `gorm:"column:scope;default:'cart'"`
	EligibleProductIDs dbtypes.UUIDArray  `gorm:"column:eligible_product_ids;type:uuid[]"`

	// Buy-X-get-Y rule: buying QualifyingMinQty of QualifyingProductID grants
	// FreeQty of FreeProductID.
	QualifyingProductID *uuid.UUID `gorm:"column:qualifying_product_id;type:uuid"`
	QualifyingMinQty    int        `gorm:"column:qualifying_min_qty;not null;default:0"`
	FreeProductID       *uuid.UUID `gorm:"column:free_product_id;type:uuid"`
	FreeQty             int        `gorm:"column:free_qty;not null;default:0"`

	ExpiresAt *time.Time `gorm:"column:expires_at"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
