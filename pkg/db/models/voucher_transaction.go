package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tillpoint/tillpoint-backend/pkg/enums"
)

// VoucherTransaction is the append-only balance audit trail; BalanceBefore and
// BalanceAfter prove every balance change arithmetically.
type VoucherTransaction struct {
	ID            uuid.UUID                    `gorm:"column:id;type:uuid;primaryKey"`
	VoucherID     uuid.UUID                    `gorm:"column:voucher_id;type:uuid;not null;index"`
	OrderID       *uuid.UUID                   `gorm:"column:order_id;type:uuid"`
	Type          enums.VoucherTransactionType `gorm:"column:type;not null"`
	Amount        decimal.Decimal              `gorm:"column:amount;type:numeric(12,2);not null"`
	BalanceBefore decimal.Decimal              `gorm:"column:balance_before;type:numeric(12,2);not null"`
	BalanceAfter  decimal.Decimal              `gorm:"column:balance_after;type:numeric(12,2);not null"`
	CreatedAt     time.Time                    `gorm:"column:created_at;autoCreateTime"`
}
