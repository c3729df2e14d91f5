package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tillpoint/tillpoint-backend/pkg/db/models"
	"github.com/tillpoint/tillpoint-backend/pkg/enums"
	apperrors "github.com/tillpoint/tillpoint-backend/pkg/errors"
	"github.com/tillpoint/tillpoint-backend/pkg/redis"
)

// CatalogLoader fetches current entity state for pull and bootstrap responses.
type CatalogLoader interface {
	GetStore(ctx context.Context, id uuid.UUID) (*models.Store, error)
	CategoriesByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Category, error)
	ProductsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
	DiscountsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Discount, error)
	ActiveCategories(ctx context.Context, storeID uuid.UUID) ([]models.Category, error)
	ActiveProducts(ctx context.Context, storeID uuid.UUID) ([]models.Product, error)
	ActiveDiscounts(ctx context.Context, storeID uuid.UUID) ([]models.Discount, error)
}

// StockLoader fetches stock entries for pull and bootstrap responses.
type StockLoader interface {
	ListByStore(ctx context.Context, storeID uuid.UUID) ([]models.StockEntry, error)
	ListByStoreAndProducts(ctx context.Context, storeID uuid.UUID, productIDs []uuid.UUID) ([]models.StockEntry, error)
}

// TransactionCounter reports settled transaction counts for the status view.
type TransactionCounter interface {
	CountByStatus(ctx context.Context, storeID uuid.UUID) (map[enums.TransactionStatus]int64, error)
}

type statusCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	SyncStatusKey(storeID string) string
}

// Service is the change feed: it records catalog mutations and answers
// incremental pull, full bootstrap, and status queries.
type Service interface {
	Record(ctx context.Context, tx *gorm.DB, storeID uuid.UUID, entityType enums.SyncEntityType, entityID uuid.UUID, action enums.SyncAction) error
	Pull(ctx context.Context, storeID uuid.UUID, since time.Time) (*PullResult, error)
	FullSync(ctx context.Context, storeID uuid.UUID, entities []enums.SyncEntityType) (*Snapshot, error)
	Status(ctx context.Context, storeID uuid.UUID) (*Status, error)
}

// CategoryChanges buckets category deltas for one pull window.
type CategoryChanges struct {
	Created []models.Category `json:"created"`
	Updated []models.Category `json:"updated"`
	Deleted []uuid.UUID       `json:"deleted"`
}

// ProductChanges buckets product deltas for one pull window.
type ProductChanges struct {
	Created []models.Product `json:"created"`
	Updated []models.Product `json:"updated"`
	Deleted []uuid.UUID      `json:"deleted"`
}

// StockChanges carries resulting stock levels; stock rows are never
// created or deleted through the feed.
type StockChanges struct {
	Updated []models.StockEntry `json:"updated"`
}

// DiscountChanges buckets discount deltas for one pull window.
type DiscountChanges struct {
	Created []models.Discount `json:"created"`
	Updated []models.Discount `json:"updated"`
	Deleted []uuid.UUID       `json:"deleted"`
}

// Changes is the pull response body per entity family.
type Changes struct {
	Categories CategoryChanges `json:"categories"`
	Products   ProductChanges  `json:"products"`
	Stock      StockChanges    `json:"stock"`
	Discounts  DiscountChanges `json:"discounts"`
}

// PullResult is the incremental catch-up answer.
type PullResult struct {
	Changes           Changes   `json:"changes"`
	LastSyncTimestamp time.Time `json:"last_sync_timestamp"`
}

// Snapshot is the full bootstrap answer.
type Snapshot struct {
	Store             *models.Store       `json:"store"`
	Categories        []models.Category   `json:"categories,omitempty"`
	Products          []models.Product    `json:"products,omitempty"`
	Stock             []models.StockEntry `json:"stock,omitempty"`
	Discounts         []models.Discount   `json:"discounts,omitempty"`
	LastSyncTimestamp time.Time           `json:"last_sync_timestamp"`
}

// TransactionCounts summarizes settled sales for the status view. Rejected
// sales are reported inline to the pushing terminal and are not persisted,
// so they do not appear here.
type TransactionCounts struct {
	Completed   int64 `json:"completed"`
	Voided      int64 `json:"voided"`
	PendingSync int64 `json:"pending_sync"`
}

// Status is the per-store sync health view.
type Status struct {
	Transactions      TransactionCounts              `json:"transactions"`
	Entities          map[enums.SyncEntityType]int64 `json:"entities"`
	LastSyncTimestamp *time.Time                     `json:"last_sync_timestamp"`
	GeneratedAt       time.Time                      `json:"generated_at"`
}

type service struct {
	repo      Repository
	catalog   CatalogLoader
	stock     StockLoader
	txns      TransactionCounter
	cache     statusCache
	statusTTL time.Duration
	now       func() time.Time
}

// NewService wires the change feed service. cache may be nil; status responses
// are then computed on every call.
func NewService(repo Repository, catalog CatalogLoader, stock StockLoader, txns TransactionCounter, cache *redis.Client, statusTTL time.Duration) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("feed repository required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("catalog loader required")
	}
	if stock == nil {
		return nil, fmt.Errorf("stock loader required")
	}
	if txns == nil {
		return nil, fmt.Errorf("transaction counter required")
	}
	s := &service{
		repo:      repo,
		catalog:   catalog,
		stock:     stock,
		txns:      txns,
		statusTTL: statusTTL,
		now:       time.Now,
	}
	if cache != nil {
		s.cache = cache
	}
	return s, nil
}

// Record appends one feed entry inside the caller's transaction so the entry
// commits or rolls back with the mutation it describes.
func (s *service) Record(ctx context.Context, tx *gorm.DB, storeID uuid.UUID, entityType enums.SyncEntityType, entityID uuid.UUID, action enums.SyncAction) error {
	if storeID == uuid.Nil || entityID == uuid.Nil {
		return apperrors.New(apperrors.CodeValidation, "store id and entity id are required")
	}
	if !entityType.IsValid() {
		return apperrors.New(apperrors.CodeValidation, fmt.Sprintf("invalid entity type %q", entityType))
	}
	if !action.IsValid() {
		return apperrors.New(apperrors.CodeValidation, fmt.Sprintf("invalid action %q", action))
	}

	return s.repo.WithTx(tx).Append(ctx, &models.SyncLogEntry{
		StoreID:    storeID,
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		Timestamp:  s.now().UTC(),
	})
}

type entityWindow struct {
	first enums.SyncAction
	last  enums.SyncAction
}

// Pull answers "what changed since". Entries are deduplicated per entity:
// the last action in the window wins, except that an entity first created in
// the window stays in the created bucket, and created-then-deleted reports
// only the deletion.
func (s *service) Pull(ctx context.Context, storeID uuid.UUID, since time.Time) (*PullResult, error) {
	if storeID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "store id is required")
	}

	entries, err := s.repo.ListSince(ctx, storeID, since)
	if err != nil {
		return nil, err
	}

	type key struct {
		entityType enums.SyncEntityType
		entityID   uuid.UUID
	}
	windows := make(map[key]*entityWindow)
	order := make([]key, 0, len(entries))
	lastTS := since
	for _, entry := range entries {
		k := key{entityType: entry.EntityType, entityID: entry.EntityID}
		if w, ok := windows[k]; ok {
			w.last = entry.Action
		} else {
			windows[k] = &entityWindow{first: entry.Action, last: entry.Action}
			order = append(order, k)
		}
		if entry.Timestamp.After(lastTS) {
			lastTS = entry.Timestamp
		}
	}

	buckets := map[enums.SyncEntityType]struct {
		created []uuid.UUID
		updated []uuid.UUID
		deleted []uuid.UUID
	}{}
	for _, k := range order {
		w := windows[k]
		b := buckets[k.entityType]
		switch {
		case w.last == enums.SyncActionDelete:
			b.deleted = append(b.deleted, k.entityID)
		case w.first == enums.SyncActionCreate:
			b.created = append(b.created, k.entityID)
		default:
			b.updated = append(b.updated, k.entityID)
		}
		buckets[k.entityType] = b
	}

	result := &PullResult{LastSyncTimestamp: lastTS}

	cats := buckets[enums.SyncEntityCategory]
	result.Changes.Categories.Deleted = cats.deleted
	if result.Changes.Categories.Created, err = s.catalog.CategoriesByIDs(ctx, cats.created); err != nil {
		return nil, err
	}
	if result.Changes.Categories.Updated, err = s.catalog.CategoriesByIDs(ctx, cats.updated); err != nil {
		return nil, err
	}

	prods := buckets[enums.SyncEntityProduct]
	result.Changes.Products.Deleted = prods.deleted
	if result.Changes.Products.Created, err = s.catalog.ProductsByIDs(ctx, prods.created); err != nil {
		return nil, err
	}
	if result.Changes.Products.Updated, err = s.catalog.ProductsByIDs(ctx, prods.updated); err != nil {
		return nil, err
	}

	stock := buckets[enums.SyncEntityStock]
	stockIDs := append(append([]uuid.UUID{}, stock.created...), stock.updated...)
	if result.Changes.Stock.Updated, err = s.stock.ListByStoreAndProducts(ctx, storeID, stockIDs); err != nil {
		return nil, err
	}

	discs := buckets[enums.SyncEntityDiscount]
	result.Changes.Discounts.Deleted = discs.deleted
	if result.Changes.Discounts.Created, err = s.catalog.DiscountsByIDs(ctx, discs.created); err != nil {
		return nil, err
	}
	if result.Changes.Discounts.Updated, err = s.catalog.DiscountsByIDs(ctx, discs.updated); err != nil {
		return nil, err
	}

	return result, nil
}

// FullSync returns a complete snapshot for the requested entity families and
// a fresh cursor. An empty entity list means all families.
func (s *service) FullSync(ctx context.Context, storeID uuid.UUID, entities []enums.SyncEntityType) (*Snapshot, error) {
	if storeID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "store id is required")
	}
	if len(entities) == 0 {
		entities = enums.AllSyncEntityTypes()
	}

	store, err := s.catalog.GetStore(ctx, storeID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.New(apperrors.CodeNotFound, "store not found")
		}
		return nil, err
	}

	snapshot := &Snapshot{Store: store}
	for _, entity := range entities {
		switch entity {
		case enums.SyncEntityCategory:
			if snapshot.Categories, err = s.catalog.ActiveCategories(ctx, storeID); err != nil {
				return nil, err
			}
		case enums.SyncEntityProduct:
			if snapshot.Products, err = s.catalog.ActiveProducts(ctx, storeID); err != nil {
				return nil, err
			}
		case enums.SyncEntityStock:
			if snapshot.Stock, err = s.stock.ListByStore(ctx, storeID); err != nil {
				return nil, err
			}
		case enums.SyncEntityDiscount:
			if snapshot.Discounts, err = s.catalog.ActiveDiscounts(ctx, storeID); err != nil {
				return nil, err
			}
		default:
			return nil, apperrors.New(apperrors.CodeValidation, fmt.Sprintf("invalid entity type %q", entity))
		}
	}

	snapshot.LastSyncTimestamp = s.now().UTC()
	return snapshot, nil
}

// Status summarizes sync health for one store, served from cache when fresh.
func (s *service) Status(ctx context.Context, storeID uuid.UUID) (*Status, error) {
	if storeID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "store id is required")
	}

	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, s.cache.SyncStatusKey(storeID.String())); err == nil {
			var cached Status
			if uerr := json.Unmarshal([]byte(raw), &cached); uerr == nil {
				return &cached, nil
			}
		}
	}

	byStatus, err := s.txns.CountByStatus(ctx, storeID)
	if err != nil {
		return nil, err
	}
	entities, err := s.repo.CountByEntityType(ctx, storeID)
	if err != nil {
		return nil, err
	}
	lastTS, err := s.repo.LastTimestamp(ctx, storeID)
	if err != nil {
		return nil, err
	}

	status := &Status{
		Transactions: TransactionCounts{
			Completed:   byStatus[enums.TransactionStatusCompleted],
			Voided:      byStatus[enums.TransactionStatusVoided],
			PendingSync: byStatus[enums.TransactionStatusPendingSync],
		},
		Entities:          entities,
		LastSyncTimestamp: lastTS,
		GeneratedAt:       s.now().UTC(),
	}

	if s.cache != nil {
		if raw, merr := json.Marshal(status); merr == nil {
			_ = s.cache.Set(ctx, s.cache.SyncStatusKey(storeID.String()), string(raw), s.statusTTL)
		}
	}

	return status, nil
}
