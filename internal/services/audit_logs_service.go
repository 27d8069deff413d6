package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"stockledger/internal/ledger"
	"stockledger/internal/models"
	"stockledger/internal/repositories"

	"github.com/google/uuid"
)

type AuditLogsService interface {
	// Record queues an audit entry for asynchronous persistence
	Record(ctx context.Context, actorID *uuid.UUID, action, entityType, entityID string, details models.JSONB) error
	// Persist writes a queued entry; called by the outbox dispatcher
	Persist(ctx context.Context, payload []byte) error

	// Query audit logs
	GetAuditLog(ctx context.Context, auditLogID uuid.UUID) (*models.AuditLog, error)
	ListAuditLogs(ctx context.Context, filters *models.AuditLogFilters) ([]*models.AuditLog, error)

	// Validation methods
	ValidateAuditFilters(filters *models.AuditLogFilters) error
}

type auditLogsService struct {
	outbox        repositories.OutboxRepository
	auditLogsRepo repositories.AuditLogsRepository
	users         repositories.UserRepository
}

func NewAuditLogsService(outbox repositories.OutboxRepository, auditLogsRepo repositories.AuditLogsRepository, users repositories.UserRepository) AuditLogsService {
	return &auditLogsService{
		outbox:        outbox,
		auditLogsRepo: auditLogsRepo,
		users:         users,
	}
}

// Record validates the entry and enqueues it as an AUDIT outbox message
func (s *auditLogsService) Record(ctx context.Context, actorID *uuid.UUID, action, entityType, entityID string, details models.JSONB) error {
	if action == "" {
		return errors.New("action is required")
	}
	if entityType == "" {
		return errors.New("entity_type is required")
	}

	auditLog := &models.AuditLog{
		ID:         uuid.New(),
		UserID:     actorID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Details:    details,
		CreatedAt:  time.Now(),
	}
	payload, err := json.Marshal(auditLog)
	if err != nil {
		return fmt.Errorf("failed to marshal audit log: %w", err)
	}

	_, err = s.outbox.Enqueue(ctx, models.OutboxKindAudit, payload)
	return err
}

// Persist stores a queued entry. An actor that is not a known user is
// recorded as anonymous.
func (s *auditLogsService) Persist(ctx context.Context, payload []byte) error {
	var auditLog models.AuditLog
	if err := json.Unmarshal(payload, &auditLog); err != nil {
		return fmt.Errorf("failed to decode audit log: %w", err)
	}

	if auditLog.UserID != nil {
		exists, err := s.users.Exists(ctx, *auditLog.UserID)
		if err != nil {
			return err
		}
		if !exists {
			auditLog.UserID = nil
		}
	}

	return s.auditLogsRepo.Create(ctx, &auditLog)
}

// GetAuditLog retrieves a single audit log entry
func (s *auditLogsService) GetAuditLog(ctx context.Context, auditLogID uuid.UUID) (*models.AuditLog, error) {
	return s.auditLogsRepo.GetByID(ctx, auditLogID)
}

// ListAuditLogs retrieves multiple audit log entries with filtering
func (s *auditLogsService) ListAuditLogs(ctx context.Context, filters *models.AuditLogFilters) ([]*models.AuditLog, error) {
	if filters == nil {
		filters = &models.AuditLogFilters{Limit: 50}
	}
	if err := s.ValidateAuditFilters(filters); err != nil {
		return nil, err
	}
	if filters.Limit <= 0 {
		filters.Limit = 50
	}

	return s.auditLogsRepo.List(ctx, filters)
}

// ValidateAuditFilters performs security and performance validation on audit filters
func (s *auditLogsService) ValidateAuditFilters(filters *models.AuditLogFilters) error {
	if filters == nil {
		return nil
	}

	if filters.StartDate != nil && filters.EndDate != nil {
		if filters.StartDate.After(*filters.EndDate) {
			return ledger.Violation(ledger.ErrValidation, "start_date cannot be after end_date")
		}
		// Limit date range to prevent excessive data extraction
		if filters.EndDate.Sub(*filters.StartDate) > 365*24*time.Hour {
			return ledger.Violation(ledger.ErrValidation, "date range cannot exceed 1 year")
		}
	}

	if filters.Limit > 1000 {
		return ledger.Violation(ledger.ErrValidation, "maximum limit is 1000 records")
	}
	if filters.Offset < 0 {
		return ledger.Violation(ledger.ErrValidation, "offset must not be negative")
	}

	return nil
}
