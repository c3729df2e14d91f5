package enums

import "fmt"

// SyncAction is the change-feed verb recorded for an entity mutation.
type SyncAction string

const (
	SyncActionCreate SyncAction = "create"
	SyncActionUpdate SyncAction = "update"
	SyncActionDelete SyncAction = "delete"
)

var validSyncActions = []SyncAction{
	SyncActionCreate,
	SyncActionUpdate,
	SyncActionDelete,
}

func (a SyncAction) IsValid() bool {
	for _, candidate := range validSyncActions {
		if candidate == a {
			return true
		}
	}
	return false
}

// SyncEntityType names the syncable entity families terminals cache.
type SyncEntityType string

const (
	SyncEntityCategory SyncEntityType = "category"
	SyncEntityProduct  SyncEntityType = "product"
	SyncEntityStock    SyncEntityType = "stock"
	SyncEntityDiscount SyncEntityType = "discount"
)

var validSyncEntityTypes = []SyncEntityType{
	SyncEntityCategory,
	SyncEntityProduct,
	SyncEntityStock,
	SyncEntityDiscount,
}

func (e SyncEntityType) IsValid() bool {
	for _, candidate := range validSyncEntityTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// AllSyncEntityTypes returns the full bootstrap entity set.
func AllSyncEntityTypes() []SyncEntityType {
	out := make([]SyncEntityType, len(validSyncEntityTypes))
	copy(out, validSyncEntityTypes)
	return out
}

// ParseSyncEntityType converts the raw string to SyncEntityType.
func ParseSyncEntityType(value string) (SyncEntityType, error) {
	for _, candidate := range validSyncEntityTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid sync entity type %q", value)
}
