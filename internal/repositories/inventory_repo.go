package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"stockledger/internal/models"

	"github.com/google/uuid"
)

type InventoryRepository interface {
	Create(ctx context.Context, inv *models.Inventory) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Inventory, error)
	// GetForUpdate locks an active receipt row for the rest of the transaction
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Inventory, error)
	Update(ctx context.Context, inv *models.Inventory) error
	SetDeleted(ctx context.Context, id uuid.UUID, deleted bool, by uuid.UUID) error
	List(ctx context.Context, filter *models.LedgerFilter) ([]*models.Inventory, error)

	// CascadeDelete soft-deletes active rows of the given plants or items and
	// marks them as removed by a cascade
	CascadeDelete(ctx context.Context, plantIDs, itemIDs []uuid.UUID, by uuid.UUID) (int64, error)
	// CascadeRestore un-deletes cascade-removed rows of a plant or an item whose
	// plant and item are both active again
	CascadeRestore(ctx context.Context, plantID, itemID *uuid.UUID, by uuid.UUID) (int64, error)
}

type inventoryRepo struct {
	db Database
}

func NewInventoryRepo(db Database) InventoryRepository {
	return &inventoryRepo{db: db}
}

const inventoryColumns = `id, reservation_ref, date, plant_id, item_id, new_qty, old_used_qty, scrapped_qty, total, remarks, is_deleted, created_by, updated_by, created_at, updated_at`

func scanInventory(row interface{ Scan(dest ...interface{}) error }) (*models.Inventory, error) {
	i := &models.Inventory{}
	err := row.Scan(&i.ID, &i.ReservationRef, &i.Date, &i.PlantID, &i.ItemID, &i.NewQty, &i.OldUsedQty, &i.ScrappedQty,
		&i.Total, &i.Remarks, &i.IsDeleted, &i.CreatedBy, &i.UpdatedBy, &i.CreatedAt, &i.UpdatedAt)
	return i, err
}

func (r *inventoryRepo) Create(ctx context.Context, inv *models.Inventory) error {
	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}
	now := time.Now()
	inv.CreatedAt, inv.UpdatedAt = now, now
	if inv.Date.IsZero() {
		inv.Date = now
	}
	inv.RecomputeTotal()

	query := `
		INSERT INTO inventory (id, reservation_ref, date, plant_id, item_id, new_qty, old_used_qty, scrapped_qty, total, remarks, is_deleted, cascade_deleted, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, false, false, $11, $12, $13)
	`
	_, err := r.db.Exec(ctx, query, inv.ID, inv.ReservationRef, inv.Date, inv.PlantID, inv.ItemID, inv.NewQty, inv.OldUsedQty,
		inv.ScrappedQty, inv.Total, inv.Remarks, inv.CreatedBy, inv.CreatedAt, inv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create inventory record: %w", err)
	}
	return nil
}

func (r *inventoryRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Inventory, error) {
	i, err := scanInventory(r.db.QueryRow(ctx, `SELECT `+inventoryColumns+` FROM inventory WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "inventory record")
	}
	return i, nil
}

func (r *inventoryRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Inventory, error) {
	query := `SELECT ` + inventoryColumns + ` FROM inventory WHERE id = $1 AND is_deleted = false FOR UPDATE`
	i, err := scanInventory(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFound(err, "inventory record")
	}
	return i, nil
}

func (r *inventoryRepo) Update(ctx context.Context, inv *models.Inventory) error {
	inv.RecomputeTotal()
	query := `
		UPDATE inventory
		SET new_qty = $1, old_used_qty = $2, scrapped_qty = $3, total = $4, remarks = $5, updated_by = $6, updated_at = NOW()
		WHERE id = $7 AND is_deleted = false
	`
	tag, err := r.db.Exec(ctx, query, inv.NewQty, inv.OldUsedQty, inv.ScrappedQty, inv.Total, inv.Remarks, inv.UpdatedBy, inv.ID)
	if err != nil {
		return fmt.Errorf("failed to update inventory record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound(errNoRows, "inventory record")
	}
	return nil
}

func (r *inventoryRepo) SetDeleted(ctx context.Context, id uuid.UUID, deleted bool, by uuid.UUID) error {
	query := `
		UPDATE inventory SET is_deleted = $1, cascade_deleted = false, updated_by = $2, updated_at = NOW()
		WHERE id = $3 AND is_deleted = $4
	`
	tag, err := r.db.Exec(ctx, query, deleted, by, id, !deleted)
	if err != nil {
		return fmt.Errorf("failed to delete inventory record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound(errNoRows, "inventory record")
	}
	return nil
}

func (r *inventoryRepo) List(ctx context.Context, filter *models.LedgerFilter) ([]*models.Inventory, error) {
	if filter == nil {
		filter = &models.LedgerFilter{}
	}
	where, args := ledgerWhere("inv", filter)
	args = append(args, pageLimit(filter.Limit), filter.Offset)
	query := fmt.Sprintf(`
		SELECT %s FROM inventory inv
		WHERE %s
		ORDER BY inv.date DESC, inv.created_at DESC
		LIMIT $%d OFFSET $%d
	`, prefixColumns("inv", inventoryColumns), where, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list inventory: %w", err)
	}
	defer rows.Close()

	var records []*models.Inventory
	for rows.Next() {
		i, err := scanInventory(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, i)
	}
	return records, rows.Err()
}

func (r *inventoryRepo) CascadeDelete(ctx context.Context, plantIDs, itemIDs []uuid.UUID, by uuid.UUID) (int64, error) {
	query := `
		UPDATE inventory SET is_deleted = true, cascade_deleted = true, updated_by = $3, updated_at = NOW()
		WHERE is_deleted = false AND (plant_id = ANY($1) OR item_id = ANY($2))
	`
	tag, err := r.db.Exec(ctx, query, plantIDs, itemIDs, by)
	if err != nil {
		return 0, fmt.Errorf("failed to cascade inventory delete: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *inventoryRepo) CascadeRestore(ctx context.Context, plantID, itemID *uuid.UUID, by uuid.UUID) (int64, error) {
	query := `
		UPDATE inventory inv SET is_deleted = false, cascade_deleted = false, updated_by = $3, updated_at = NOW()
		FROM plants p, items it
		WHERE p.id = inv.plant_id AND it.id = inv.item_id
		  AND p.is_deleted = false AND it.is_deleted = false
		  AND inv.is_deleted = true AND inv.cascade_deleted = true
		  AND ($1::uuid IS NULL OR inv.plant_id = $1)
		  AND ($2::uuid IS NULL OR inv.item_id = $2)
	`
	tag, err := r.db.Exec(ctx, query, plantID, itemID, by)
	if err != nil {
		return 0, fmt.Errorf("failed to restore inventory: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ledgerWhere builds the shared filter clause of ledger listings
func ledgerWhere(alias string, filter *models.LedgerFilter) (string, []interface{}) {
	conditions := []string{alias + ".is_deleted = false"}
	var args []interface{}
	argN := 1

	if filter.PlantID != nil {
		conditions = append(conditions, fmt.Sprintf("%s.plant_id = $%d", alias, argN))
		args = append(args, *filter.PlantID)
		argN++
	}
	if filter.ItemID != nil {
		conditions = append(conditions, fmt.Sprintf("%s.item_id = $%d", alias, argN))
		args = append(args, *filter.ItemID)
		argN++
	}
	if filter.ClusterID != nil {
		conditions = append(conditions, fmt.Sprintf("%s.plant_id IN (SELECT id FROM plants WHERE cluster_id = $%d)", alias, argN))
		args = append(args, *filter.ClusterID)
		argN++
	}
	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("%s.date >= $%d", alias, argN))
		args = append(args, *filter.From)
		argN++
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("%s.date <= $%d", alias, argN))
		args = append(args, *filter.To)
	}

	return strings.Join(conditions, " AND "), args
}

func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ", ")
	for i, p := range parts {
		parts[i] = alias + "." + p
	}
	return strings.Join(parts, ", ")
}
