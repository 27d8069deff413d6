package models

import (
	"time"

	"github.com/google/uuid"
)

// CurrentStock is the materialized balance of one (plant, item) pair.
// It is derived from the inventory and consumption rows and never holds scrap.
type CurrentStock struct {
	PlantID    uuid.UUID `json:"plant_id" db:"plant_id"`
	ItemID     uuid.UUID `json:"item_id" db:"item_id"`
	NewQty     int64     `json:"new_qty" db:"new_qty"`
	OldUsedQty int64     `json:"old_used_qty" db:"old_used_qty"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// StockPair identifies a CurrentStock row
type StockPair struct {
	PlantID uuid.UUID `json:"plant_id"`
	ItemID  uuid.UUID `json:"item_id"`
}

// StockView is a CurrentStock row joined with its plant and item labels
type StockView struct {
	CurrentStock
	PlantName       string `json:"plant_name"`
	ItemCode        string `json:"item_code"`
	ItemDescription string `json:"item_description"`
	Unit            string `json:"unit"`
}

func (p StockPair) String() string {
	return p.PlantID.String() + ":" + p.ItemID.String()
}
