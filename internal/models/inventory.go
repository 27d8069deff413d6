package models

import (
	"time"

	"github.com/google/uuid"
)

// LedgerFilter holds filter criteria for inventory, consumption and stock listings
type LedgerFilter struct {
	PlantID   *uuid.UUID `json:"plant_id,omitempty" query:"plant_id"`     // Plant filter
	ItemID    *uuid.UUID `json:"item_id,omitempty" query:"item_id"`       // Item filter
	ClusterID *uuid.UUID `json:"cluster_id,omitempty" query:"cluster_id"` // Restricts to plants of a cluster
	From      *time.Time `json:"from,omitempty" query:"from"`             // Transaction date from
	To        *time.Time `json:"to,omitempty" query:"to"`                 // Transaction date to
	Limit     int        `json:"limit,omitempty" query:"limit"`           // Page size (default: 50)
	Offset    int        `json:"offset,omitempty" query:"offset"`         // Page offset
}

// Inventory is a receipt row. Total is always NewQty+OldUsedQty+ScrappedQty.
type Inventory struct {
	ID             uuid.UUID  `json:"id" db:"id"`
	ReservationRef string     `json:"reservation_ref" db:"reservation_ref"`
	Date           time.Time  `json:"date" db:"date"`
	PlantID        uuid.UUID  `json:"plant_id" db:"plant_id"`
	ItemID         uuid.UUID  `json:"item_id" db:"item_id"`
	NewQty         int64      `json:"new_qty" db:"new_qty"`
	OldUsedQty     int64      `json:"old_used_qty" db:"old_used_qty"`
	ScrappedQty    int64      `json:"scrapped_qty" db:"scrapped_qty"`
	Total          int64      `json:"total" db:"total"`
	Remarks        string     `json:"remarks,omitempty" db:"remarks"`
	IsDeleted      bool       `json:"is_deleted" db:"is_deleted"`
	CreatedBy      uuid.UUID  `json:"created_by" db:"created_by"`
	UpdatedBy      *uuid.UUID `json:"updated_by,omitempty" db:"updated_by"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}

// RecomputeTotal refreshes Total from the three category quantities
func (i *Inventory) RecomputeTotal() {
	i.Total = i.NewQty + i.OldUsedQty + i.ScrappedQty
}
