package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tillpoint/tillpoint-backend/pkg/enums"
)

// TransactionPayment is one tender row; split payments carry several.
type TransactionPayment struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	TransactionID uuid.UUID           `gorm:"column:transaction_id;type:uuid;not null;index"`
	Method        enums.PaymentMethod `gorm:"column:method;not null"`
	Amount        decimal.Decimal     `gorm:"column:amount;type:numeric(12,2);not null"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
}
