package repositories

import (
	"context"
	"fmt"
	"time"

	"stockledger/internal/models"

	"github.com/google/uuid"
)

type ConsumptionRepository interface {
	Create(ctx context.Context, c *models.Consumption) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Consumption, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Consumption, error)
	Update(ctx context.Context, c *models.Consumption) error
	SetReturnCredited(ctx context.Context, id uuid.UUID, credited bool) error
	SetDeleted(ctx context.Context, id uuid.UUID, deleted bool, by uuid.UUID) error
	List(ctx context.Context, filter *models.LedgerFilter) ([]*models.Consumption, error)
	CascadeDelete(ctx context.Context, plantIDs, itemIDs []uuid.UUID, by uuid.UUID) (int64, error)
	CascadeRestore(ctx context.Context, plantID, itemID *uuid.UUID, by uuid.UUID) (int64, error)
}

type consumptionRepo struct {
	db Database
}

func NewConsumptionRepo(db Database) ConsumptionRepository {
	return &consumptionRepo{db: db}
}

const consumptionColumns = `id, date, plant_id, item_id, quantity, source_category, returned_item_id, return_disposition, return_credited, remarks, is_deleted, created_by, updated_by, created_at, updated_at`

func scanConsumption(row interface{ Scan(dest ...interface{}) error }) (*models.Consumption, error) {
	c := &models.Consumption{}
	err := row.Scan(&c.ID, &c.Date, &c.PlantID, &c.ItemID, &c.Quantity, &c.SourceCategory, &c.ReturnedItemID, &c.ReturnDisposition,
		&c.ReturnCredited, &c.Remarks, &c.IsDeleted, &c.CreatedBy, &c.UpdatedBy, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (r *consumptionRepo) Create(ctx context.Context, c *models.Consumption) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	now := time.Now()
	c.CreatedAt, c.UpdatedAt = now, now
	if c.Date.IsZero() {
		c.Date = now
	}

	query := `
		INSERT INTO consumption (id, date, plant_id, item_id, quantity, source_category, returned_item_id, return_disposition, return_credited, remarks, is_deleted, cascade_deleted, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, false, false, $11, $12, $13)
	`
	_, err := r.db.Exec(ctx, query, c.ID, c.Date, c.PlantID, c.ItemID, c.Quantity, c.SourceCategory, c.ReturnedItemID,
		c.ReturnDisposition, c.ReturnCredited, c.Remarks, c.CreatedBy, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create consumption record: %w", err)
	}
	return nil
}

func (r *consumptionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Consumption, error) {
	c, err := scanConsumption(r.db.QueryRow(ctx, `SELECT `+consumptionColumns+` FROM consumption WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "consumption record")
	}
	return c, nil
}

func (r *consumptionRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Consumption, error) {
	query := `SELECT ` + consumptionColumns + ` FROM consumption WHERE id = $1 AND is_deleted = false FOR UPDATE`
	c, err := scanConsumption(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFound(err, "consumption record")
	}
	return c, nil
}

func (r *consumptionRepo) Update(ctx context.Context, c *models.Consumption) error {
	query := `
		UPDATE consumption SET quantity = $1, remarks = $2, updated_by = $3, updated_at = NOW()
		WHERE id = $4 AND is_deleted = false
	`
	tag, err := r.db.Exec(ctx, query, c.Quantity, c.Remarks, c.UpdatedBy, c.ID)
	if err != nil {
		return fmt.Errorf("failed to update consumption record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound(errNoRows, "consumption record")
	}
	return nil
}

func (r *consumptionRepo) SetReturnCredited(ctx context.Context, id uuid.UUID, credited bool) error {
	_, err := r.db.Exec(ctx, `UPDATE consumption SET return_credited = $1, updated_at = NOW() WHERE id = $2`, credited, id)
	if err != nil {
		return fmt.Errorf("failed to update consumption return: %w", err)
	}
	return nil
}

func (r *consumptionRepo) SetDeleted(ctx context.Context, id uuid.UUID, deleted bool, by uuid.UUID) error {
	query := `
		UPDATE consumption SET is_deleted = $1, cascade_deleted = false, updated_by = $2, updated_at = NOW()
		WHERE id = $3 AND is_deleted = $4
	`
	tag, err := r.db.Exec(ctx, query, deleted, by, id, !deleted)
	if err != nil {
		return fmt.Errorf("failed to delete consumption record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound(errNoRows, "consumption record")
	}
	return nil
}

func (r *consumptionRepo) List(ctx context.Context, filter *models.LedgerFilter) ([]*models.Consumption, error) {
	if filter == nil {
		filter = &models.LedgerFilter{}
	}
	where, args := ledgerWhere("c", filter)
	args = append(args, pageLimit(filter.Limit), filter.Offset)
	query := fmt.Sprintf(`
		SELECT %s FROM consumption c
		WHERE %s
		ORDER BY c.date DESC, c.created_at DESC
		LIMIT $%d OFFSET $%d
	`, prefixColumns("c", consumptionColumns), where, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list consumption: %w", err)
	}
	defer rows.Close()

	var records []*models.Consumption
	for rows.Next() {
		c, err := scanConsumption(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, c)
	}
	return records, rows.Err()
}

func (r *consumptionRepo) CascadeDelete(ctx context.Context, plantIDs, itemIDs []uuid.UUID, by uuid.UUID) (int64, error) {
	query := `
		UPDATE consumption SET is_deleted = true, cascade_deleted = true, updated_by = $3, updated_at = NOW()
		WHERE is_deleted = false AND (plant_id = ANY($1) OR item_id = ANY($2))
	`
	tag, err := r.db.Exec(ctx, query, plantIDs, itemIDs, by)
	if err != nil {
		return 0, fmt.Errorf("failed to cascade consumption delete: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *consumptionRepo) CascadeRestore(ctx context.Context, plantID, itemID *uuid.UUID, by uuid.UUID) (int64, error) {
	query := `
		UPDATE consumption c SET is_deleted = false, cascade_deleted = false, updated_by = $3, updated_at = NOW()
		FROM plants p, items it
		WHERE p.id = c.plant_id AND it.id = c.item_id
		  AND p.is_deleted = false AND it.is_deleted = false
		  AND c.is_deleted = true AND c.cascade_deleted = true
		  AND ($1::uuid IS NULL OR c.plant_id = $1)
		  AND ($2::uuid IS NULL OR c.item_id = $2)
	`
	tag, err := r.db.Exec(ctx, query, plantID, itemID, by)
	if err != nil {
		return 0, fmt.Errorf("failed to restore consumption: %w", err)
	}
	return tag.RowsAffected(), nil
}
