package models

import (
	"time"
)

const (
	BulkStatusCompleted = "completed"
	BulkStatusPartial   = "partial"
	BulkStatusFailed    = "failed"
)

// BulkOperationResult represents the result of a bulk operation
type BulkOperationResult struct {
	OperationID    string               `json:"operation_id"`              // Unique operation ID
	Status         string               `json:"status"`                    // Status: "completed", "partial", "failed"
	TotalItems     int                  `json:"total_items"`               // Total rows read
	ProcessedItems int                  `json:"processed_items"`           // Successfully applied rows
	FailedItems    int                  `json:"failed_items"`              // Rejected rows
	Progress       float64              `json:"progress"`                  // Progress percentage (0-100)
	StartTime      time.Time            `json:"start_time"`                // Operation start time
	CompletionTime *time.Time           `json:"completion_time,omitempty"` // Operation completion time
	ArchiveObject  string               `json:"archive_object,omitempty"`  // Object key of the archived source file
	Errors         []BulkOperationError `json:"errors,omitempty"`          // List of errors encountered
	Items          []BulkOperationItem  `json:"items,omitempty"`           // Results per row
}

// BulkOperationError represents an error for a specific row in a bulk operation
type BulkOperationError struct {
	Row   int    `json:"row"`   // Spreadsheet row number
	Error string `json:"error"` // Error message
}

// BulkOperationItem represents the result for a specific row
type BulkOperationItem struct {
	Row         int     `json:"row"`
	InventoryID string  `json:"inventory_id,omitempty"`
	Status      string  `json:"status"` // Status: "success", "failed"
	Error       *string `json:"error,omitempty"`
}

// ImportRow is one parsed line of an inventory workbook
type ImportRow struct {
	Row         int    `json:"row"`
	Plant       string `json:"plant"`
	ItemGroup   string `json:"item_group"`
	ItemCode    string `json:"item_code"`
	ItemName    string `json:"item_name"`
	Unit        string `json:"unit"`
	NewQty      int64  `json:"new_qty"`
	OldUsedQty  int64  `json:"old_used_qty"`
	ScrappedQty int64  `json:"scrapped_qty"`
}

// Finish computes the final status and progress
func (r *BulkOperationResult) Finish(now time.Time) {
	r.CompletionTime = &now
	switch {
	case r.FailedItems == 0:
		r.Status = BulkStatusCompleted
	case r.ProcessedItems == 0:
		r.Status = BulkStatusFailed
	default:
		r.Status = BulkStatusPartial
	}
	if r.TotalItems > 0 {
		r.Progress = float64(r.ProcessedItems+r.FailedItems) / float64(r.TotalItems) * 100
	} else {
		r.Progress = 100
	}
}
