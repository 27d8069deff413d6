package repositories

import (
	"context"
	"fmt"
	"time"

	"stockledger/internal/models"

	"github.com/google/uuid"
)

type ItemGroupRepository interface {
	Create(ctx context.Context, group *models.ItemGroup) error
	Update(ctx context.Context, group *models.ItemGroup) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.ItemGroup, error)
	GetByName(ctx context.Context, name string) (*models.ItemGroup, error)
	List(ctx context.Context) ([]*models.ItemGroup, error)
	ListDeleted(ctx context.Context) ([]*models.ItemGroup, error)
	SetDeleted(ctx context.Context, id uuid.UUID, deleted bool, by uuid.UUID) error
}

type itemGroupRepo struct {
	db Database
}

func NewItemGroupRepo(db Database) ItemGroupRepository {
	return &itemGroupRepo{db: db}
}

const itemGroupColumns = `id, name, is_deleted, created_at, updated_at, updated_by`

func scanItemGroup(row interface{ Scan(dest ...interface{}) error }) (*models.ItemGroup, error) {
	g := &models.ItemGroup{}
	err := row.Scan(&g.ID, &g.Name, &g.IsDeleted, &g.CreatedAt, &g.UpdatedAt, &g.UpdatedBy)
	return g, err
}

func (r *itemGroupRepo) Create(ctx context.Context, group *models.ItemGroup) error {
	if group.ID == uuid.Nil {
		group.ID = uuid.New()
	}
	now := time.Now()
	group.CreatedAt, group.UpdatedAt = now, now

	query := `
		INSERT INTO item_groups (id, name, is_deleted, created_at, updated_at, updated_by)
		VALUES ($1, $2, false, $3, $4, $5)
	`
	_, err := r.db.Exec(ctx, query, group.ID, group.Name, group.CreatedAt, group.UpdatedAt, group.UpdatedBy)
	if err != nil {
		return fmt.Errorf("failed to create item group: %w", err)
	}
	return nil
}

func (r *itemGroupRepo) Update(ctx context.Context, group *models.ItemGroup) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE item_groups SET name = $1, updated_at = NOW(), updated_by = $2
		WHERE id = $3 AND is_deleted = false
	`, group.Name, group.UpdatedBy, group.ID)
	if err != nil {
		return fmt.Errorf("failed to update item group: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound(errNoRows, "item group")
	}
	return nil
}

func (r *itemGroupRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.ItemGroup, error) {
	g, err := scanItemGroup(r.db.QueryRow(ctx, `SELECT `+itemGroupColumns+` FROM item_groups WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "item group")
	}
	return g, nil
}

func (r *itemGroupRepo) GetByName(ctx context.Context, name string) (*models.ItemGroup, error) {
	query := `SELECT ` + itemGroupColumns + ` FROM item_groups WHERE LOWER(name) = LOWER($1) AND is_deleted = false`
	g, err := scanItemGroup(r.db.QueryRow(ctx, query, name))
	if err != nil {
		return nil, notFound(err, "item group")
	}
	return g, nil
}

func (r *itemGroupRepo) List(ctx context.Context) ([]*models.ItemGroup, error) {
	return r.list(ctx, false)
}

func (r *itemGroupRepo) ListDeleted(ctx context.Context) ([]*models.ItemGroup, error) {
	return r.list(ctx, true)
}

func (r *itemGroupRepo) list(ctx context.Context, deleted bool) ([]*models.ItemGroup, error) {
	rows, err := r.db.Query(ctx, `SELECT `+itemGroupColumns+` FROM item_groups WHERE is_deleted = $1 ORDER BY name ASC`, deleted)
	if err != nil {
		return nil, fmt.Errorf("failed to list item groups: %w", err)
	}
	defer rows.Close()

	var groups []*models.ItemGroup
	for rows.Next() {
		g, err := scanItemGroup(rows)
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

func (r *itemGroupRepo) SetDeleted(ctx context.Context, id uuid.UUID, deleted bool, by uuid.UUID) error {
	return setDeleted(ctx, r.db, "item_groups", "item group", id, deleted, by)
}
