package models

import (
	"time"

	"github.com/google/uuid"
)

// StockEntry tracks on-hand quantity per (store, product). Quantity is only
// mutated through the stock ledger's locking adjust operation and never goes
// negative.
type StockEntry struct {
	StoreID           uuid.UUID `gorm:"column:store_id;type:uuid;primaryKey"`
	ProductID         uuid.UUID `gorm:"column:product_id;type:uuid;primaryKey"`
	Quantity          int       `gorm:"column:quantity;not null;default:0"`
	LowStockThreshold int       `gorm:"column:low_stock_threshold;not null;default:0"`
	UpdatedAt         time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
