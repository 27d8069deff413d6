package models

import (
	"github.com/google/uuid"
)

// NotificationKind selects the email template
type NotificationKind string

const (
	NotificationScrapRequest  NotificationKind = "SCRAP_REQUEST"
	NotificationScrapApproved NotificationKind = "SCRAP_APPROVED"
	NotificationScrapRejected NotificationKind = "SCRAP_REJECTED"
)

// Notification is the payload of a NOTIFICATION outbox row
type Notification struct {
	Kind      NotificationKind `json:"kind"`
	Recipient string           `json:"recipient"`
	Payload   ScrapNotice      `json:"payload"`
}

// ScrapNotice carries the template fields of a scrap notification
type ScrapNotice struct {
	ApprovalID    uuid.UUID    `json:"approval_id"`
	Kind          ApprovalKind `json:"kind"`
	ItemCode      string       `json:"item_code"`
	ItemName      string       `json:"item_name"`
	PlantName     string       `json:"plant_name"`
	Quantity      int64        `json:"quantity"`
	RequesterName string       `json:"requester_name"`
	ApproverName  string       `json:"approver_name,omitempty"`
}
