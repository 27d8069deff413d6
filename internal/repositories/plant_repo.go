package repositories

import (
	"context"
	"fmt"
	"time"

	"stockledger/internal/models"

	"github.com/google/uuid"
)

type PlantRepository interface {
	Create(ctx context.Context, plant *models.Plant) error
	Update(ctx context.Context, plant *models.Plant) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Plant, error)
	GetByName(ctx context.Context, name string) (*models.Plant, error)
	List(ctx context.Context, clusterID *uuid.UUID) ([]*models.Plant, error)
	ListDeleted(ctx context.Context) ([]*models.Plant, error)
	SetDeleted(ctx context.Context, id uuid.UUID, deleted bool, by uuid.UUID) error
	// ActiveIDsByCluster returns the non-deleted plants of a cluster
	ActiveIDsByCluster(ctx context.Context, clusterID uuid.UUID) ([]uuid.UUID, error)
}

type plantRepo struct {
	db Database
}

func NewPlantRepo(db Database) PlantRepository {
	return &plantRepo{db: db}
}

const plantColumns = `id, name, cluster_id, is_deleted, created_at, updated_at, updated_by`

func scanPlant(row interface{ Scan(dest ...interface{}) error }) (*models.Plant, error) {
	p := &models.Plant{}
	err := row.Scan(&p.ID, &p.Name, &p.ClusterID, &p.IsDeleted, &p.CreatedAt, &p.UpdatedAt, &p.UpdatedBy)
	return p, err
}

func (r *plantRepo) Create(ctx context.Context, plant *models.Plant) error {
	if plant.ID == uuid.Nil {
		plant.ID = uuid.New()
	}
	now := time.Now()
	plant.CreatedAt, plant.UpdatedAt = now, now

	query := `
		INSERT INTO plants (id, name, cluster_id, is_deleted, created_at, updated_at, updated_by)
		VALUES ($1, $2, $3, false, $4, $5, $6)
	`
	_, err := r.db.Exec(ctx, query, plant.ID, plant.Name, plant.ClusterID, plant.CreatedAt, plant.UpdatedAt, plant.UpdatedBy)
	if err != nil {
		return fmt.Errorf("failed to create plant: %w", err)
	}
	return nil
}

func (r *plantRepo) Update(ctx context.Context, plant *models.Plant) error {
	query := `
		UPDATE plants SET name = $1, cluster_id = $2, updated_at = NOW(), updated_by = $3
		WHERE id = $4 AND is_deleted = false
	`
	tag, err := r.db.Exec(ctx, query, plant.Name, plant.ClusterID, plant.UpdatedBy, plant.ID)
	if err != nil {
		return fmt.Errorf("failed to update plant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound(errNoRows, "plant")
	}
	return nil
}

func (r *plantRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Plant, error) {
	query := `SELECT ` + plantColumns + ` FROM plants WHERE id = $1`
	p, err := scanPlant(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFound(err, "plant")
	}
	return p, nil
}

func (r *plantRepo) GetByName(ctx context.Context, name string) (*models.Plant, error) {
	query := `SELECT ` + plantColumns + ` FROM plants WHERE LOWER(name) = LOWER($1) AND is_deleted = false`
	p, err := scanPlant(r.db.QueryRow(ctx, query, name))
	if err != nil {
		return nil, notFound(err, "plant")
	}
	return p, nil
}

func (r *plantRepo) List(ctx context.Context, clusterID *uuid.UUID) ([]*models.Plant, error) {
	query := `
		SELECT ` + plantColumns + ` FROM plants
		WHERE is_deleted = false AND ($1::uuid IS NULL OR cluster_id = $1)
		ORDER BY name ASC
	`
	return r.query(ctx, query, clusterID)
}

func (r *plantRepo) ListDeleted(ctx context.Context) ([]*models.Plant, error) {
	query := `SELECT ` + plantColumns + ` FROM plants WHERE is_deleted = true ORDER BY updated_at DESC`
	return r.query(ctx, query)
}

func (r *plantRepo) query(ctx context.Context, query string, args ...interface{}) ([]*models.Plant, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list plants: %w", err)
	}
	defer rows.Close()

	var plants []*models.Plant
	for rows.Next() {
		p, err := scanPlant(rows)
		if err != nil {
			return nil, err
		}
		plants = append(plants, p)
	}
	return plants, rows.Err()
}

func (r *plantRepo) SetDeleted(ctx context.Context, id uuid.UUID, deleted bool, by uuid.UUID) error {
	return setDeleted(ctx, r.db, "plants", "plant", id, deleted, by)
}

func (r *plantRepo) ActiveIDsByCluster(ctx context.Context, clusterID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM plants WHERE cluster_id = $1 AND is_deleted = false`, clusterID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cluster plants: %w", err)
	}
	return scanIDs(rows)
}
