package models

import (
	"time"

	"github.com/google/uuid"
)

// JSONB is a free-form JSON object column
type JSONB map[string]interface{}

// AuditLog represents an activity log entry. A nil UserID marks an anonymous actor.
type AuditLog struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	UserID     *uuid.UUID `json:"user_id" db:"user_id"`
	Action     string     `json:"action" db:"action"`
	EntityType string     `json:"entity_type" db:"entity_type"`
	EntityID   string     `json:"entity_id" db:"entity_id"`
	Details    JSONB      `json:"details" db:"details"`
	IPAddress  string     `json:"ip_address,omitempty" db:"ip_address"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

// Action codes for audit logs
const (
	ActionInventoryCreate     = "INVENTORY_CREATE"
	ActionInventoryUpdate     = "INVENTORY_UPDATE"
	ActionInventoryDelete     = "INVENTORY_DELETE"
	ActionInventoryImport     = "INVENTORY_IMPORT"
	ActionConsumptionCreate   = "CONSUMPTION_CREATE"
	ActionConsumptionUpdate   = "CONSUMPTION_UPDATE"
	ActionConsumptionDelete   = "CONSUMPTION_DELETE"
	ActionScrapRequestCreate  = "SCRAP_REQUEST_CREATE"
	ActionScrapRequestApprove = "SCRAP_REQUEST_APPROVE"
	ActionScrapRequestReject  = "SCRAP_REQUEST_REJECT"
	ActionUserApprove         = "USER_APPROVE"
	ActionUserReject          = "USER_REJECT"
	ActionDataRestore         = "DATA_RESTORE"
	ActionStockRebuild        = "STOCK_REBUILD"
)

// HierarchyAction builds the audit code for a hierarchy mutation, e.g. PLANT_DELETE
func HierarchyAction(entity EntityType, verb string) string {
	return string(entity) + "_" + verb
}

// AuditLogFilters represents filters for querying audit logs
type AuditLogFilters struct {
	UserID     *uuid.UUID `json:"user_id" query:"user_id"`
	Action     *string    `json:"action" query:"action"`
	EntityType *string    `json:"entity_type" query:"entity_type"`
	EntityID   *string    `json:"entity_id" query:"entity_id"`
	StartDate  *time.Time `json:"start_date" query:"start_date"`
	EndDate    *time.Time `json:"end_date" query:"end_date"`
	Limit      int        `json:"limit" query:"limit"`
	Offset     int        `json:"offset" query:"offset"`
}
