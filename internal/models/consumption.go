package models

import (
	"time"

	"github.com/google/uuid"
)

// StockCategory selects one of the consumable CurrentStock buckets
type StockCategory string

const (
	CategoryNew     StockCategory = "NEW"
	CategoryOldUsed StockCategory = "OLD_USED"
)

func (c StockCategory) Valid() bool {
	return c == CategoryNew || c == CategoryOldUsed
}

// ReturnDisposition says what happens to an item handed back during consumption
type ReturnDisposition string

const (
	DispositionOldUsed  ReturnDisposition = "OLD_USED"
	DispositionScrapped ReturnDisposition = "SCRAPPED"
)

func (d ReturnDisposition) Valid() bool {
	return d == DispositionOldUsed || d == DispositionScrapped
}

type Consumption struct {
	ID                uuid.UUID          `json:"id" db:"id"`
	Date              time.Time          `json:"date" db:"date"`
	PlantID           uuid.UUID          `json:"plant_id" db:"plant_id"`
	ItemID            uuid.UUID          `json:"item_id" db:"item_id"`
	Quantity          int64              `json:"quantity" db:"quantity"`
	SourceCategory    StockCategory      `json:"source_category" db:"source_category"`
	ReturnedItemID    *uuid.UUID         `json:"returned_item_id,omitempty" db:"returned_item_id"`
	ReturnDisposition *ReturnDisposition `json:"return_disposition,omitempty" db:"return_disposition"`
	// ReturnCredited is true while the returned quantity sits in the
	// returned item's old-used bucket.
	ReturnCredited bool       `json:"return_credited" db:"return_credited"`
	Remarks        string     `json:"remarks,omitempty" db:"remarks"`
	IsDeleted      bool       `json:"is_deleted" db:"is_deleted"`
	CreatedBy      uuid.UUID  `json:"created_by" db:"created_by"`
	UpdatedBy      *uuid.UUID `json:"updated_by,omitempty" db:"updated_by"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}

// HasReturn reports whether the consumption declared a returned item
func (c *Consumption) HasReturn() bool {
	return c.ReturnedItemID != nil && c.ReturnDisposition != nil
}
