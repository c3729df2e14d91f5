package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tillpoint/tillpoint-backend/pkg/enums"
)

// Transaction is the immutable financial record of one terminal sale.
// ClientID is the terminal-generated idempotency key; exactly one row exists
// per ClientID no matter how many times a batch is replayed.
type Transaction struct {
	ID                uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	ClientID          string                  `gorm:"column:client_id;not null;uniqueIndex:ux_transactions_client_id"`
	StoreID           uuid.UUID               `gorm:"column:store_id;type:uuid;not null;index"`
	CashierID         uuid.UUID               `gorm:"column:cashier_id;type:uuid;not null"`
	TransactionNumber string                  `gorm:"column:transaction_number;not null"`
	Subtotal          decimal.Decimal         `gorm:"column:subtotal;type:numeric(12,2);not null"`
	TaxAmount         decimal.Decimal         `gorm:"column:tax_amount;type:numeric(12,2);not null"`
	DiscountAmount    decimal.Decimal         `gorm:"column:discount_amount;type:numeric(12,2);not null"`
	Total             decimal.Decimal         `gorm:"column:total;type:numeric(12,2);not null"`
	PaymentMethod     enums.PaymentMethod     `gorm:"column:payment_method;not null"`
	IsSplitPayment    bool                    `gorm:"column:is_split_payment;not null;default:false"`
	DiscountID        *uuid.UUID              `gorm:"column:discount_id;type:uuid"`
	Status            enums.TransactionStatus `gorm:"column:status;not null;default:'completed'"`
	ClientTimestamp   time.Time               `gorm:"column:client_timestamp;not null"`
	CreatedAt         time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time               `gorm:"column:updated_at;autoUpdateTime"`

	Items    []TransactionItem    `gorm:"foreignKey:TransactionID"`
	Payments []TransactionPayment `gorm:"foreignKey:TransactionID"`
}
