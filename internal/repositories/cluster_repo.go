package repositories

import (
	"context"
	"fmt"
	"time"

	"stockledger/internal/models"

	"github.com/google/uuid"
)

type ClusterRepository interface {
	Create(ctx context.Context, cluster *models.Cluster) error
	Update(ctx context.Context, cluster *models.Cluster) error
	// GetByID returns the cluster whether or not it is deleted
	GetByID(ctx context.Context, id uuid.UUID) (*models.Cluster, error)
	// GetByName matches active clusters case-insensitively
	GetByName(ctx context.Context, name string) (*models.Cluster, error)
	List(ctx context.Context) ([]*models.Cluster, error)
	ListDeleted(ctx context.Context) ([]*models.Cluster, error)
	SetDeleted(ctx context.Context, id uuid.UUID, deleted bool, by uuid.UUID) error
	// Default returns the cluster auto-created masters are attached to
	Default(ctx context.Context) (*models.Cluster, error)
}

type clusterRepo struct {
	db Database
}

func NewClusterRepo(db Database) ClusterRepository {
	return &clusterRepo{db: db}
}

const clusterColumns = `id, name, is_deleted, created_at, updated_at, updated_by`

func scanCluster(row interface{ Scan(dest ...interface{}) error }) (*models.Cluster, error) {
	c := &models.Cluster{}
	err := row.Scan(&c.ID, &c.Name, &c.IsDeleted, &c.CreatedAt, &c.UpdatedAt, &c.UpdatedBy)
	return c, err
}

func (r *clusterRepo) Create(ctx context.Context, cluster *models.Cluster) error {
	if cluster.ID == uuid.Nil {
		cluster.ID = uuid.New()
	}
	now := time.Now()
	cluster.CreatedAt, cluster.UpdatedAt = now, now

	query := `
		INSERT INTO clusters (id, name, is_deleted, created_at, updated_at, updated_by)
		VALUES ($1, $2, false, $3, $4, $5)
	`
	_, err := r.db.Exec(ctx, query, cluster.ID, cluster.Name, cluster.CreatedAt, cluster.UpdatedAt, cluster.UpdatedBy)
	if err != nil {
		return fmt.Errorf("failed to create cluster: %w", err)
	}
	return nil
}

func (r *clusterRepo) Update(ctx context.Context, cluster *models.Cluster) error {
	query := `
		UPDATE clusters SET name = $1, updated_at = NOW(), updated_by = $2
		WHERE id = $3 AND is_deleted = false
	`
	tag, err := r.db.Exec(ctx, query, cluster.Name, cluster.UpdatedBy, cluster.ID)
	if err != nil {
		return fmt.Errorf("failed to update cluster: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound(errNoRows, "cluster")
	}
	return nil
}

func (r *clusterRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Cluster, error) {
	query := `SELECT ` + clusterColumns + ` FROM clusters WHERE id = $1`
	c, err := scanCluster(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFound(err, "cluster")
	}
	return c, nil
}

func (r *clusterRepo) GetByName(ctx context.Context, name string) (*models.Cluster, error) {
	query := `SELECT ` + clusterColumns + ` FROM clusters WHERE LOWER(name) = LOWER($1) AND is_deleted = false`
	c, err := scanCluster(r.db.QueryRow(ctx, query, name))
	if err != nil {
		return nil, notFound(err, "cluster")
	}
	return c, nil
}

func (r *clusterRepo) List(ctx context.Context) ([]*models.Cluster, error) {
	return r.list(ctx, false)
}

func (r *clusterRepo) ListDeleted(ctx context.Context) ([]*models.Cluster, error) {
	return r.list(ctx, true)
}

func (r *clusterRepo) list(ctx context.Context, deleted bool) ([]*models.Cluster, error) {
	query := `SELECT ` + clusterColumns + ` FROM clusters WHERE is_deleted = $1 ORDER BY name ASC`
	rows, err := r.db.Query(ctx, query, deleted)
	if err != nil {
		return nil, fmt.Errorf("failed to list clusters: %w", err)
	}
	defer rows.Close()

	var clusters []*models.Cluster
	for rows.Next() {
		c, err := scanCluster(rows)
		if err != nil {
			return nil, err
		}
		clusters = append(clusters, c)
	}
	return clusters, rows.Err()
}

func (r *clusterRepo) SetDeleted(ctx context.Context, id uuid.UUID, deleted bool, by uuid.UUID) error {
	return setDeleted(ctx, r.db, "clusters", "cluster", id, deleted, by)
}

func (r *clusterRepo) Default(ctx context.Context) (*models.Cluster, error) {
	query := `
		SELECT ` + clusterColumns + ` FROM clusters
		WHERE is_deleted = false
		ORDER BY (LOWER(name) = 'north cluster') DESC, created_at ASC
		LIMIT 1
	`
	c, err := scanCluster(r.db.QueryRow(ctx, query))
	if err != nil {
		return nil, notFound(err, "default cluster")
	}
	return c, nil
}
