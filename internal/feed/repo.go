package feed

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tillpoint/tillpoint-backend/pkg/db/models"
	"github.com/tillpoint/tillpoint-backend/pkg/enums"
)

// Repository manages the append-only sync log.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Append(ctx context.Context, entry *models.SyncLogEntry) error
	ListSince(ctx context.Context, storeID uuid.UUID, since time.Time) ([]models.SyncLogEntry, error)
	CountByEntityType(ctx context.Context, storeID uuid.UUID) (map[enums.SyncEntityType]int64, error)
	LastTimestamp(ctx context.Context, storeID uuid.UUID) (*time.Time, error)
	ListUnpublished(ctx context.Context, limit int, maxAttempts int) ([]models.SyncLogEntry, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a sync log repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Append(ctx context.Context, entry *models.SyncLogEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) ListSince(ctx context.Context, storeID uuid.UUID, since time.Time) ([]models.SyncLogEntry, error) {
	var entries []models.SyncLogEntry
	if err := r.db.WithContext(ctx).
		Where("store_id = ? AND timestamp > ?", storeID, since).
		Order("timestamp ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) CountByEntityType(ctx context.Context, storeID uuid.UUID) (map[enums.SyncEntityType]int64, error) {
	type row struct {
		EntityType enums.SyncEntityType
		Count      int64
	}
	var rows []row
	if err := r.db.WithContext(ctx).
		Model(&models.SyncLogEntry{}).
		Select("entity_type, COUNT(*) AS count").
		Where("store_id = ?", storeID).
		Group("entity_type").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	counts := make(map[enums.SyncEntityType]int64, len(rows))
	for _, r := range rows {
		counts[r.EntityType] = r.Count
	}
	return counts, nil
}

func (r *repository) LastTimestamp(ctx context.Context, storeID uuid.UUID) (*time.Time, error) {
	var entry models.SyncLogEntry
	err := r.db.WithContext(ctx).
		Where("store_id = ?", storeID).
		Order("timestamp DESC").
		First(&entry).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	ts := entry.Timestamp
	return &ts, nil
}

func (r *repository) ListUnpublished(ctx context.Context, limit int, maxAttempts int) ([]models.SyncLogEntry, error) {
	var entries []models.SyncLogEntry
	if err := r.db.WithContext(ctx).
		Where("published_at IS NULL AND attempt_count < ?", maxAttempts).
		Order("timestamp ASC").
		Limit(limit).
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.SyncLogEntry{}).
		Where("id IN ?", ids).
		Updates(map[string]any{
			"published_at":  at,
			"attempt_count": gorm.Expr("attempt_count + 1"),
			"last_error":    nil,
		}).Error
}

func (r *repository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	return r.db.WithContext(ctx).
		Model(&models.SyncLogEntry{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"attempt_count": gorm.Expr("attempt_count + 1"),
			"last_error":    reason,
		}).Error
}
