package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"stockledger/internal/models"

	"github.com/google/uuid"
)

type AuditLogsRepository interface {
	// Create a new audit log entry
	Create(ctx context.Context, auditLog *models.AuditLog) error

	// Get audit log by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.AuditLog, error)

	// List audit logs with filtering options
	List(ctx context.Context, filters *models.AuditLogFilters) ([]*models.AuditLog, error)
}

type auditLogsRepo struct {
	db Database
}

func NewAuditLogsRepo(db Database) AuditLogsRepository {
	return &auditLogsRepo{db: db}
}

func (r *auditLogsRepo) Create(ctx context.Context, auditLog *models.AuditLog) error {
	if auditLog.CreatedAt.IsZero() {
		auditLog.CreatedAt = time.Now()
	}
	if auditLog.ID == uuid.Nil {
		auditLog.ID = uuid.New()
	}

	query := `
		INSERT INTO audit_logs (id, user_id, action, entity_type, entity_id, details, ip_address, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`

	var details []byte
	if auditLog.Details != nil {
		var err error
		details, err = json.Marshal(auditLog.Details)
		if err != nil {
			return fmt.Errorf("failed to marshal details: %w", err)
		}
	}

	_, err := r.db.Exec(ctx, query,
		auditLog.ID,
		auditLog.UserID,
		auditLog.Action,
		auditLog.EntityType,
		auditLog.EntityID,
		details,
		auditLog.IPAddress,
		auditLog.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	return nil
}

func (r *auditLogsRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.AuditLog, error) {
	auditLog := &models.AuditLog{}
	var details []byte

	query := `
		SELECT id, user_id, action, entity_type, entity_id, details, ip_address, created_at
		FROM audit_logs
		WHERE id = $1
	`
	err := r.db.QueryRow(ctx, query, id).Scan(
		&auditLog.ID,
		&auditLog.UserID,
		&auditLog.Action,
		&auditLog.EntityType,
		&auditLog.EntityID,
		&details,
		&auditLog.IPAddress,
		&auditLog.CreatedAt,
	)
	if err != nil {
		return nil, notFound(err, "audit log")
	}

	if len(details) > 0 {
		if err := json.Unmarshal(details, &auditLog.Details); err != nil {
			return nil, fmt.Errorf("failed to unmarshal details: %w", err)
		}
	}
	return auditLog, nil
}

func (r *auditLogsRepo) List(ctx context.Context, filters *models.AuditLogFilters) ([]*models.AuditLog, error) {
	if filters == nil {
		filters = &models.AuditLogFilters{}
	}

	query := `
		SELECT id, user_id, action, entity_type, entity_id, details, ip_address, created_at
		FROM audit_logs
		WHERE 1 = 1
	`
	var args []interface{}
	argIdx := 0

	// Build WHERE clauses based on filters
	if filters.UserID != nil {
		argIdx++
		query += fmt.Sprintf(" AND user_id = $%d", argIdx)
		args = append(args, *filters.UserID)
	}

	if filters.Action != nil {
		argIdx++
		query += fmt.Sprintf(" AND action = $%d", argIdx)
		args = append(args, *filters.Action)
	}

	if filters.EntityType != nil {
		argIdx++
		query += fmt.Sprintf(" AND entity_type = $%d", argIdx)
		args = append(args, *filters.EntityType)
	}

	if filters.EntityID != nil {
		argIdx++
		query += fmt.Sprintf(" AND entity_id = $%d", argIdx)
		args = append(args, *filters.EntityID)
	}

	if filters.StartDate != nil {
		argIdx++
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *filters.StartDate)
	}

	if filters.EndDate != nil {
		argIdx++
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, *filters.EndDate)
	}

	argIdx++
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", argIdx)
	args = append(args, pageLimit(filters.Limit))
	if filters.Offset > 0 {
		argIdx++
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, filters.Offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	defer rows.Close()

	var auditLogs []*models.AuditLog
	for rows.Next() {
		auditLog := &models.AuditLog{}
		var details []byte
		if err := rows.Scan(
			&auditLog.ID,
			&auditLog.UserID,
			&auditLog.Action,
			&auditLog.EntityType,
			&auditLog.EntityID,
			&details,
			&auditLog.IPAddress,
			&auditLog.CreatedAt,
		); err != nil {
			return nil, err
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &auditLog.Details); err != nil {
				return nil, fmt.Errorf("failed to unmarshal details: %w", err)
			}
		}
		auditLogs = append(auditLogs, auditLog)
	}
	return auditLogs, rows.Err()
}
