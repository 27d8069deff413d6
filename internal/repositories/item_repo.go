package repositories

import (
	"context"
	"fmt"
	"time"

	"stockledger/internal/models"

	"github.com/google/uuid"
)

type ItemRepository interface {
	Create(ctx context.Context, item *models.Item) error
	Update(ctx context.Context, item *models.Item) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Item, error)
	// GetByCode matches active items case-insensitively
	GetByCode(ctx context.Context, code string) (*models.Item, error)
	List(ctx context.Context, groupID *uuid.UUID, limit, offset int) ([]*models.Item, error)
	ListDeleted(ctx context.Context) ([]*models.Item, error)
	SetDeleted(ctx context.Context, id uuid.UUID, deleted bool, by uuid.UUID) error
	ActiveIDsByGroup(ctx context.Context, groupID uuid.UUID) ([]uuid.UUID, error)
}

type itemRepo struct {
	db Database
}

func NewItemRepo(db Database) ItemRepository {
	return &itemRepo{db: db}
}

const itemColumns = `id, code, description, unit, item_group_id, is_deleted, created_at, updated_at, updated_by`

func scanItem(row interface{ Scan(dest ...interface{}) error }) (*models.Item, error) {
	i := &models.Item{}
	err := row.Scan(&i.ID, &i.Code, &i.Description, &i.Unit, &i.ItemGroupID, &i.IsDeleted, &i.CreatedAt, &i.UpdatedAt, &i.UpdatedBy)
	return i, err
}

func (r *itemRepo) Create(ctx context.Context, item *models.Item) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	now := time.Now()
	item.CreatedAt, item.UpdatedAt = now, now

	query := `
		INSERT INTO items (id, code, description, unit, item_group_id, is_deleted, created_at, updated_at, updated_by)
		VALUES ($1, $2, $3, $4, $5, false, $6, $7, $8)
	`
	_, err := r.db.Exec(ctx, query, item.ID, item.Code, item.Description, item.Unit, item.ItemGroupID, item.CreatedAt, item.UpdatedAt, item.UpdatedBy)
	if err != nil {
		return fmt.Errorf("failed to create item: %w", err)
	}
	return nil
}

func (r *itemRepo) Update(ctx context.Context, item *models.Item) error {
	query := `
		UPDATE items SET code = $1, description = $2, unit = $3, item_group_id = $4, updated_at = NOW(), updated_by = $5
		WHERE id = $6 AND is_deleted = false
	`
	tag, err := r.db.Exec(ctx, query, item.Code, item.Description, item.Unit, item.ItemGroupID, item.UpdatedBy, item.ID)
	if err != nil {
		return fmt.Errorf("failed to update item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound(errNoRows, "item")
	}
	return nil
}

func (r *itemRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	i, err := scanItem(r.db.QueryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "item")
	}
	return i, nil
}

func (r *itemRepo) GetByCode(ctx context.Context, code string) (*models.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE LOWER(code) = LOWER($1) AND is_deleted = false`
	i, err := scanItem(r.db.QueryRow(ctx, query, code))
	if err != nil {
		return nil, notFound(err, "item")
	}
	return i, nil
}

func (r *itemRepo) List(ctx context.Context, groupID *uuid.UUID, limit, offset int) ([]*models.Item, error) {
	query := `
		SELECT ` + itemColumns + ` FROM items
		WHERE is_deleted = false AND ($1::uuid IS NULL OR item_group_id = $1)
		ORDER BY code ASC
		LIMIT $2 OFFSET $3
	`
	return r.query(ctx, query, groupID, pageLimit(limit), offset)
}

func (r *itemRepo) ListDeleted(ctx context.Context) ([]*models.Item, error) {
	return r.query(ctx, `SELECT `+itemColumns+` FROM items WHERE is_deleted = true ORDER BY updated_at DESC`)
}

func (r *itemRepo) query(ctx context.Context, query string, args ...interface{}) ([]*models.Item, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	var items []*models.Item
	for rows.Next() {
		i, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

func (r *itemRepo) SetDeleted(ctx context.Context, id uuid.UUID, deleted bool, by uuid.UUID) error {
	return setDeleted(ctx, r.db, "items", "item", id, deleted, by)
}

func (r *itemRepo) ActiveIDsByGroup(ctx context.Context, groupID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM items WHERE item_group_id = $1 AND is_deleted = false`, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list group items: %w", err)
	}
	return scanIDs(rows)
}
