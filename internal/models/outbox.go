package models

import (
	"time"

	"github.com/google/uuid"
)

type OutboxKind string

const (
	OutboxKindNotification OutboxKind = "NOTIFICATION"
	OutboxKindAudit        OutboxKind = "AUDIT"
)

const (
	OutboxStatusPending    = "PENDING"
	OutboxStatusProcessing = "PROCESSING"
	OutboxStatusFailed     = "FAILED"
	OutboxStatusSent       = "SENT"
	OutboxStatusDead       = "DEAD"
)

// OutboxMessage is a side effect queued after a committed ledger mutation
type OutboxMessage struct {
	ID            uuid.UUID  `json:"id" db:"id"`
	Kind          OutboxKind `json:"kind" db:"kind"`
	Payload       []byte     `json:"payload" db:"payload"`
	Status        string     `json:"status" db:"status"`
	Attempts      int        `json:"attempts" db:"attempts"`
	NextAttemptAt *time.Time `json:"next_attempt_at,omitempty" db:"next_attempt_at"`
	LockedAt      *time.Time `json:"locked_at,omitempty" db:"locked_at"`
	LockedBy      *string    `json:"locked_by,omitempty" db:"locked_by"`
	LastError     *string    `json:"last_error,omitempty" db:"last_error"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	SentAt        *time.Time `json:"sent_at,omitempty" db:"sent_at"`
}
