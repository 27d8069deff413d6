package models

import (
	"time"

	"github.com/google/uuid"
)

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "PENDING"
	ApprovalApproved ApprovalStatus = "APPROVED"
	ApprovalRejected ApprovalStatus = "REJECTED"
)

// ApprovalKind distinguishes where a scrap request originated
type ApprovalKind string

const (
	ApprovalKindInventory   ApprovalKind = "inventory"
	ApprovalKindConsumption ApprovalKind = "consumption"
)

type ApprovalAction string

const (
	ActionApprove ApprovalAction = "approve"
	ActionReject  ApprovalAction = "reject"
)

// ScrapApproval is a scrap-increase request raised from an inventory entry or edit
type ScrapApproval struct {
	ID           uuid.UUID      `json:"id" db:"id"`
	InventoryID  uuid.UUID      `json:"inventory_id" db:"inventory_id"`
	RequestedQty int64          `json:"requested_qty" db:"requested_qty"`
	Status       ApprovalStatus `json:"status" db:"status"`
	RequestedBy  uuid.UUID      `json:"requested_by" db:"requested_by"`
	ApprovedBy   *uuid.UUID     `json:"approved_by,omitempty" db:"approved_by"`
	ProcessedAt  *time.Time     `json:"processed_at,omitempty" db:"processed_at"`
	Remarks      string         `json:"remarks,omitempty" db:"remarks"`
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`
}

// ConsumptionScrapApproval is a scrap disposition of an item returned during consumption
type ConsumptionScrapApproval struct {
	ID            uuid.UUID      `json:"id" db:"id"`
	ConsumptionID uuid.UUID      `json:"consumption_id" db:"consumption_id"`
	RequestedQty  int64          `json:"requested_qty" db:"requested_qty"`
	Status        ApprovalStatus `json:"status" db:"status"`
	RequestedBy   uuid.UUID      `json:"requested_by" db:"requested_by"`
	ApprovedBy    *uuid.UUID     `json:"approved_by,omitempty" db:"approved_by"`
	ProcessedAt   *time.Time     `json:"processed_at,omitempty" db:"processed_at"`
	CreatedAt     time.Time      `json:"created_at" db:"created_at"`
}

// PendingApproval is the listing view shared by both approval kinds
type PendingApproval struct {
	Kind         ApprovalKind `json:"kind"`
	ID           uuid.UUID    `json:"id"`
	SourceID     uuid.UUID    `json:"source_id"`
	PlantID      uuid.UUID    `json:"plant_id"`
	PlantName    string       `json:"plant_name"`
	ItemID       uuid.UUID    `json:"item_id"`
	ItemCode     string       `json:"item_code"`
	RequestedQty int64        `json:"requested_qty"`
	RequestedBy  uuid.UUID    `json:"requested_by"`
	CreatedAt    time.Time    `json:"created_at"`
}

// Resolution is returned by a successful approval resolution
type Resolution struct {
	Kind        ApprovalKind   `json:"kind"`
	ApprovalID  uuid.UUID      `json:"approval_id"`
	Status      ApprovalStatus `json:"status"`
	ApprovedBy  uuid.UUID      `json:"approved_by"`
	ProcessedAt time.Time      `json:"processed_at"`
	// InventoryID is the row that received the scrap figure on approval
	InventoryID *uuid.UUID `json:"inventory_id,omitempty"`
}
