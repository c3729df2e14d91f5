package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderVoucher links a redeemed voucher to the transaction it settled. The
// unique pair is the redemption idempotency guard: re-applying the same order
// is a no-op instead of a double debit.
type OrderVoucher struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	TransactionID uuid.UUID       `gorm:"column:transaction_id;type:uuid;not null;uniqueIndex:ux_order_vouchers_pair"`
	VoucherID     uuid.UUID       `gorm:"column:voucher_id;type:uuid;not null;uniqueIndex:ux_order_vouchers_pair"`
	AmountApplied decimal.Decimal `gorm:"column:amount_applied;type:numeric(12,2);not null"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
}
