package models

import (
	"time"

	"github.com/google/uuid"
)

// EntityType names a node of the cluster/plant/item hierarchy
type EntityType string

const (
	EntityCluster   EntityType = "CLUSTER"
	EntityPlant     EntityType = "PLANT"
	EntityItemGroup EntityType = "ITEM_GROUP"
	EntityItem      EntityType = "ITEM"
	EntityUser      EntityType = "USER"
)

// Audit-only entity types
const (
	EntityInventory                EntityType = "INVENTORY"
	EntityConsumption              EntityType = "CONSUMPTION"
	EntityScrapApproval            EntityType = "SCRAP_APPROVAL"
	EntityConsumptionScrapApproval EntityType = "CONSUMPTION_SCRAP_APPROVAL"
	EntityCurrentStock             EntityType = "CURRENT_STOCK"
)

type Cluster struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	Name      string     `json:"name" db:"name"`
	IsDeleted bool       `json:"is_deleted" db:"is_deleted"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
	UpdatedBy *uuid.UUID `json:"updated_by,omitempty" db:"updated_by"`
}

type Plant struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	Name      string     `json:"name" db:"name"`
	ClusterID uuid.UUID  `json:"cluster_id" db:"cluster_id"`
	IsDeleted bool       `json:"is_deleted" db:"is_deleted"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
	UpdatedBy *uuid.UUID `json:"updated_by,omitempty" db:"updated_by"`
}

type ItemGroup struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	Name      string     `json:"name" db:"name"`
	IsDeleted bool       `json:"is_deleted" db:"is_deleted"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
	UpdatedBy *uuid.UUID `json:"updated_by,omitempty" db:"updated_by"`
}

// Item is a stock-keeping unit. Code is unique among active items, case-insensitively.
type Item struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	Code        string     `json:"code" db:"code"`
	Description string     `json:"description" db:"description"`
	Unit        string     `json:"unit" db:"unit"`
	ItemGroupID uuid.UUID  `json:"item_group_id" db:"item_group_id"`
	IsDeleted   bool       `json:"is_deleted" db:"is_deleted"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
	UpdatedBy   *uuid.UUID `json:"updated_by,omitempty" db:"updated_by"`
}

// DeletedRecord is a row of the recovery listing
type DeletedRecord struct {
	EntityType EntityType `json:"entity_type"`
	ID         uuid.UUID  `json:"id"`
	Label      string     `json:"label"`
	ParentID   *uuid.UUID `json:"parent_id,omitempty"`
	UpdatedAt  time.Time  `json:"updated_at"`
}
