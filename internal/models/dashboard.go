package models

import "github.com/google/uuid"

// SummaryMeasure is the quantity totalled per item group on the dashboard
type SummaryMeasure string

const (
	MeasureAvailable        SummaryMeasure = "AVAILABLE"
	MeasureAvailableNew     SummaryMeasure = "AVAILABLE_NEW"
	MeasureAvailableOldUsed SummaryMeasure = "AVAILABLE_OLD_USED"
	MeasureScrapped         SummaryMeasure = "SCRAPPED"
	MeasureConsumed         SummaryMeasure = "CONSUMED"
)

const (
	SummaryDataInventory   = "inventory"
	SummaryDataConsumption = "consumption"
)

// SummaryFilter selects the dashboard measure and an optional plant
type SummaryFilter struct {
	PlantID   *uuid.UUID `query:"plant_id"`
	DataType  string     `query:"data_type"`  // inventory (default) or consumption
	StockType string     `query:"stock_type"` // all (default), new, old_used or scrapped
}

// Measure maps the data and stock type to a measure. Stock type only applies
// to inventory.
func (f SummaryFilter) Measure() (SummaryMeasure, bool) {
	switch f.DataType {
	case "", SummaryDataInventory:
	case SummaryDataConsumption:
		return MeasureConsumed, f.StockType == "" || f.StockType == "all"
	default:
		return "", false
	}

	switch f.StockType {
	case "", "all":
		return MeasureAvailable, true
	case "new":
		return MeasureAvailableNew, true
	case "old_used":
		return MeasureAvailableOldUsed, true
	case "scrapped":
		return MeasureScrapped, true
	}
	return "", false
}

type GroupSummary struct {
	ItemGroupID uuid.UUID `json:"item_group_id"`
	Name        string    `json:"name"`
	Value       int64     `json:"value"`
}

// DashboardSummary is one value per active item group plus headline figures
type DashboardSummary struct {
	Measure       SummaryMeasure  `json:"measure"`
	Groups        []*GroupSummary `json:"groups"`
	TotalQuantity int64           `json:"total_quantity"`
	GroupCount    int             `json:"group_count"`    // groups with a non-zero value
	TopGroupName  string          `json:"top_group_name"` // "N/A" when there are no groups
}

func NewDashboardSummary(measure SummaryMeasure, groups []*GroupSummary) *DashboardSummary {
	s := &DashboardSummary{Measure: measure, Groups: groups, TopGroupName: "N/A"}
	if s.Groups == nil {
		s.Groups = []*GroupSummary{}
	}
	var top *GroupSummary
	for _, g := range groups {
		s.TotalQuantity += g.Value
		if g.Value > 0 {
			s.GroupCount++
		}
		if top == nil || g.Value > top.Value {
			top = g
		}
	}
	if top != nil {
		s.TopGroupName = top.Name
	}
	return s
}
