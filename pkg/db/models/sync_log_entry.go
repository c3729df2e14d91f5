package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/tillpoint/tillpoint-backend/pkg/enums"
)

// SyncLogEntry is the append-only change feed row. Pull catch-up scans it by
// timestamp; the feed publisher relays unpublished rows downstream. Rows are
// never mutated except for the publisher bookkeeping columns.
type SyncLogEntry struct {
	ID           uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	StoreID      uuid.UUID            `gorm:"column:store_id;type:uuid;not null;index:ix_sync_log_store_ts"`
	EntityType   enums.SyncEntityType `gorm:"column:entity_type;not null"`
	EntityID     uuid.UUID            `gorm:"column:entity_id;type:uuid;not null"`
	Action       enums.SyncAction     `gorm:"column:action;not null"`
	Timestamp    time.Time            `gorm:"column:timestamp;not null;index:ix_sync_log_store_ts"`
	PublishedAt  *time.Time           `gorm:"column:published_at"`
	AttemptCount int                  `gorm:"column:attempt_count;not null;default:0"`
	LastError    *string              `gorm:"column:last_error"`
}
