package repositories

import (
	"context"
	"fmt"
	"time"

	"stockledger/internal/ledger"
	"stockledger/internal/models"

	"github.com/google/uuid"
)

type ApprovalRepository interface {
	CreateInventoryApproval(ctx context.Context, a *models.ScrapApproval) error
	CreateConsumptionApproval(ctx context.Context, a *models.ConsumptionScrapApproval) error

	// Get*ForUpdate lock the approval row for the rest of the transaction
	GetInventoryApprovalForUpdate(ctx context.Context, id uuid.UUID) (*models.ScrapApproval, error)
	GetConsumptionApprovalForUpdate(ctx context.Context, id uuid.UUID) (*models.ConsumptionScrapApproval, error)

	// Resolve* move a PENDING approval to a terminal status; any other
	// current status yields ledger.ErrAlreadyProcessed
	ResolveInventoryApproval(ctx context.Context, id uuid.UUID, status models.ApprovalStatus, approvedBy uuid.UUID, at time.Time) error
	ResolveConsumptionApproval(ctx context.Context, id uuid.UUID, status models.ApprovalStatus, approvedBy uuid.UUID, at time.Time) error

	// ListPending returns pending approvals of both kinds, oldest first
	ListPending(ctx context.Context, clusterID *uuid.UUID) ([]*models.PendingApproval, error)
}

type approvalRepo struct {
	db Database
}

func NewApprovalRepo(db Database) ApprovalRepository {
	return &approvalRepo{db: db}
}

func (r *approvalRepo) CreateInventoryApproval(ctx context.Context, a *models.ScrapApproval) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.Status = models.ApprovalPending
	a.CreatedAt = time.Now()

	query := `
		INSERT INTO scrap_approvals (id, inventory_id, requested_qty, status, requested_by, remarks, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.Exec(ctx, query, a.ID, a.InventoryID, a.RequestedQty, a.Status, a.RequestedBy, a.Remarks, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create scrap approval: %w", err)
	}
	return nil
}

func (r *approvalRepo) CreateConsumptionApproval(ctx context.Context, a *models.ConsumptionScrapApproval) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.Status = models.ApprovalPending
	a.CreatedAt = time.Now()

	query := `
		INSERT INTO consumption_scrap_approvals (id, consumption_id, requested_qty, status, requested_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.Exec(ctx, query, a.ID, a.ConsumptionID, a.RequestedQty, a.Status, a.RequestedBy, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create consumption scrap approval: %w", err)
	}
	return nil
}

func (r *approvalRepo) GetInventoryApprovalForUpdate(ctx context.Context, id uuid.UUID) (*models.ScrapApproval, error) {
	a := &models.ScrapApproval{}
	err := r.db.QueryRow(ctx, `
		SELECT id, inventory_id, requested_qty, status, requested_by, approved_by, processed_at, remarks, created_at
		FROM scrap_approvals WHERE id = $1
		FOR UPDATE
	`, id).Scan(&a.ID, &a.InventoryID, &a.RequestedQty, &a.Status, &a.RequestedBy, &a.ApprovedBy, &a.ProcessedAt, &a.Remarks, &a.CreatedAt)
	if err != nil {
		return nil, notFound(err, "scrap approval")
	}
	return a, nil
}

func (r *approvalRepo) GetConsumptionApprovalForUpdate(ctx context.Context, id uuid.UUID) (*models.ConsumptionScrapApproval, error) {
	a := &models.ConsumptionScrapApproval{}
	err := r.db.QueryRow(ctx, `
		SELECT id, consumption_id, requested_qty, status, requested_by, approved_by, processed_at, created_at
		FROM consumption_scrap_approvals WHERE id = $1
		FOR UPDATE
	`, id).Scan(&a.ID, &a.ConsumptionID, &a.RequestedQty, &a.Status, &a.RequestedBy, &a.ApprovedBy, &a.ProcessedAt, &a.CreatedAt)
	if err != nil {
		return nil, notFound(err, "consumption scrap approval")
	}
	return a, nil
}

func (r *approvalRepo) ResolveInventoryApproval(ctx context.Context, id uuid.UUID, status models.ApprovalStatus, approvedBy uuid.UUID, at time.Time) error {
	return r.resolve(ctx, "scrap_approvals", id, status, approvedBy, at)
}

func (r *approvalRepo) ResolveConsumptionApproval(ctx context.Context, id uuid.UUID, status models.ApprovalStatus, approvedBy uuid.UUID, at time.Time) error {
	return r.resolve(ctx, "consumption_scrap_approvals", id, status, approvedBy, at)
}

func (r *approvalRepo) resolve(ctx context.Context, table string, id uuid.UUID, status models.ApprovalStatus, approvedBy uuid.UUID, at time.Time) error {
	query := fmt.Sprintf(`
		UPDATE %s SET status = $1, approved_by = $2, processed_at = $3
		WHERE id = $4 AND status = $5 AND processed_at IS NULL
	`, table)
	tag, err := r.db.Exec(ctx, query, status, approvedBy, at, id, models.ApprovalPending)
	if err != nil {
		return fmt.Errorf("failed to resolve approval: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ledger.Violation(ledger.ErrAlreadyProcessed, "scrap request %s has already been processed", id)
	}
	return nil
}

func (r *approvalRepo) ListPending(ctx context.Context, clusterID *uuid.UUID) ([]*models.PendingApproval, error) {
	query := `
		SELECT kind, id, source_id, plant_id, plant_name, item_id, item_code, requested_qty, requested_by, created_at FROM (
			SELECT 'inventory' AS kind, sa.id, sa.inventory_id AS source_id, p.id AS plant_id, p.name AS plant_name,
			       it.id AS item_id, it.code AS item_code, sa.requested_qty, sa.requested_by, sa.created_at, p.cluster_id
			FROM scrap_approvals sa
			JOIN inventory inv ON inv.id = sa.inventory_id AND inv.is_deleted = false
			JOIN plants p ON p.id = inv.plant_id
			JOIN items it ON it.id = inv.item_id
			WHERE sa.status = $1
			UNION ALL
			SELECT 'consumption', csa.id, csa.consumption_id, p.id, p.name,
			       it.id, it.code, csa.requested_qty, csa.requested_by, csa.created_at, p.cluster_id
			FROM consumption_scrap_approvals csa
			JOIN consumption c ON c.id = csa.consumption_id AND c.is_deleted = false
			JOIN plants p ON p.id = c.plant_id
			JOIN items it ON it.id = c.returned_item_id
			WHERE csa.status = $1
		) pending
		WHERE ($2::uuid IS NULL OR pending.cluster_id = $2)
		ORDER BY created_at ASC
	`
	rows, err := r.db.Query(ctx, query, models.ApprovalPending, clusterID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending approvals: %w", err)
	}
	defer rows.Close()

	var pending []*models.PendingApproval
	for rows.Next() {
		p := &models.PendingApproval{}
		if err := rows.Scan(&p.Kind, &p.ID, &p.SourceID, &p.PlantID, &p.PlantName, &p.ItemID, &p.ItemCode,
			&p.RequestedQty, &p.RequestedBy, &p.CreatedAt); err != nil {
			return nil, err
		}
		pending = append(pending, p)
	}
	return pending, rows.Err()
}
